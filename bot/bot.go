package bot

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"google.golang.org/api/option"
	tele "gopkg.in/telebot.v3"

	"youtube-notification-bot/config"
	"youtube-notification-bot/db"
	"youtube-notification-bot/hub"
	"youtube-notification-bot/mutex"
	"youtube-notification-bot/notify"
	"youtube-notification-bot/subscription"
	"youtube-notification-bot/youtube"
)

const (
	pollTimeout        = time.Second * 10
	shutdownTimeout    = time.Second * 10
	renewInterval      = time.Minute * 5
	renewMargin        = time.Minute * 5
	renewRetry         = time.Hour
	pruneInterval      = time.Hour * 24
	deliveryRetention  = time.Hour * 24 * 30
	notificationBuffer = 64
)

// NewRouter returns a router serving the health check on "/".
func NewRouter() *mux.Router {
	router := mux.NewRouter()
	router.Methods(http.MethodGet).Path("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write([]byte("pong"))
		if err != nil {
			slog.Warn("[bot.NewRouter]: unable to write pong", "error", err)
		}
	})
	return router
}

// Serve runs server until ctx is done, then shuts it down.
func Serve(ctx context.Context, server *http.Server) {
	go func() {
		slog.Info("[bot.Serve]: listening", "address", server.Addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[bot.Serve]: server stopped", "error", err)
		}
	}()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	if err != nil {
		slog.Error("[bot.Serve]: unable to shut down server", "error", err)
	}
}

func Start(ctx context.Context, cfg *config.Config, confirm chan<- struct{}) error {
	dbService := db.New(cfg.DBAddress, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	dbService.SetTimeout(cfg.DBTimeout)
	if cfg.Debug {
		dbService.EnableDebug()
	}
	err := dbService.CreateSchema(ctx)
	if err != nil {
		return err
	}

	resolver := youtube.Chain{}
	if cfg.YoutubeAPIKey != "" {
		apiResolver, err := youtube.NewAPIResolver(ctx, option.WithAPIKey(cfg.YoutubeAPIKey))
		if err != nil {
			return err
		}
		resolver = append(resolver, apiResolver)
	}
	resolver = append(resolver, youtube.NewPageResolver())

	var locks mutex.Provider = mutex.NewLocal()
	if cfg.RedisAddress != "" {
		builder := mutex.NewBuilder(cfg.RedisAddress)
		defer func() {
			err := builder.Close()
			if err != nil {
				slog.Warn("[bot.Start]: unable to close redis client", "error", err)
			}
		}()
		locks = builder
	}

	hubClient := hub.NewClient(
		cfg.CallbackURL(),
		hub.WithSecret(cfg.HubSecret),
		hub.WithLeaseSeconds(cfg.LeaseSeconds),
	)
	coordinator := subscription.NewCoordinator(resolver, dbService, hubClient, locks)

	s := tele.Settings{
		Token: cfg.TelegramToken,
		Poller: &tele.LongPoller{
			Timeout: pollTimeout,
		},
		OnError: func(err error, c tele.Context) {
			slog.Error("[bot.Start]: handler failed", "error", err)
		},
	}
	bot, err := tele.NewBot(s)
	if err != nil {
		return errors.Wrap(err, "error during creation of a new bot")
	}

	service := NewService(ctx, coordinator)
	bot.Handle("/start", service.OnHelp)
	bot.Handle("/help", service.OnHelp)
	bot.Handle(tele.OnText, service.OnText)

	notifications := make(chan hub.Notification, notificationBuffer)
	router := NewRouter()
	hub.NewHandler(coordinator, notifications, cfg.HubSecret).Register(router, config.NotificationsPath)
	server := &http.Server{Addr: cfg.ListenAddress(), Handler: router}

	dispatcher := notify.NewDispatcher(dbService, bot)
	go dispatcher.Run(ctx, notifications)
	leases := dbService.PollExpiringLeases(ctx, renewInterval, renewMargin, renewRetry)
	go coordinator.StartRenewal(ctx, leases)
	go startPruning(ctx, dbService)

	stopped := make(chan struct{})
	go func() {
		Serve(ctx, server)
		close(stopped)
	}()
	go func() {
		<-ctx.Done()
		bot.Stop()
		<-stopped
		err := dbService.Close()
		if err != nil {
			slog.Warn("[bot.Start]: unable to close database", "error", err)
		}
		confirm <- struct{}{}
	}()

	slog.Info("[bot.Start]: started", "callback", cfg.CallbackURL())
	// Blocks until stop
	bot.Start()
	return nil
}

func startPruning(ctx context.Context, dbService *db.DB) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pruned, err := dbService.PruneDeliveries(ctx, time.Now().Add(-deliveryRetention))
			if err != nil {
				slog.Error("[bot.startPruning]: unable to prune deliveries", "error", err)
				continue
			}
			slog.Debug("[bot.startPruning]: pruned deliveries", "count", pruned)
		}
	}
}
