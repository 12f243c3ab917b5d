package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"youtube-notification-bot/bot"
	"youtube-notification-bot/config"
)

func main() {
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	c, err := config.Load(os.Args[1:], config.DefaultFile)
	if err != nil {
		slog.Error("[main]: unable to load config", "error", err)
		os.Exit(1)
	}
	if c.Debug {
		level.Set(slog.LevelDebug)
	}

	ctx, cancel := context.WithCancel(context.Background())
	confirm := make(chan struct{})
	if err := c.Validate(); err != nil {
		slog.Error("[main]: bot is not started", "error", err)
		go func() {
			bot.Serve(ctx, &http.Server{Addr: c.ListenAddress(), Handler: bot.NewRouter()})
			confirm <- struct{}{}
		}()
	} else {
		go func() {
			err := bot.Start(ctx, c, confirm)
			if err != nil {
				slog.Error("[main]: bot stopped", "error", err)
				os.Exit(1)
			}
		}()
	}
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	<-s
	cancel()
	<-confirm
}
