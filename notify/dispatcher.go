package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"

	"youtube-notification-bot/db"
	"youtube-notification-bot/hub"
	"youtube-notification-bot/templates"
)

// Telegram allows about 30 messages per second per bot.
const (
	defaultRate  = rate.Limit(25)
	defaultBurst = 1
)

type Store interface {
	MarkDelivered(ctx context.Context, contentId string) (bool, error)
	UnmarkDelivered(ctx context.Context, contentId string) error
	Exists(ctx context.Context, channelUrl string) (bool, error)
	ListByChannel(ctx context.Context, channelId string) ([]db.Subscription, error)
	ListByFeed(ctx context.Context, channelUrl string) ([]db.Subscription, error)
}

// Sender is satisfied by *tele.Bot.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Dispatcher struct {
	store   Store
	sender  Sender
	limiter *rate.Limiter
}

func NewDispatcher(store Store, sender Sender) *Dispatcher {
	return &Dispatcher{
		store:   store,
		sender:  sender,
		limiter: rate.NewLimiter(defaultRate, defaultBurst),
	}
}

func (d *Dispatcher) SetLimit(limit rate.Limit, burst int) {
	d.limiter = rate.NewLimiter(limit, burst)
}

// Run delivers notifications until ctx is done or the channel is closed.
func (d *Dispatcher) Run(ctx context.Context, notifications <-chan hub.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-notifications:
			if !ok {
				return
			}
			err := d.Dispatch(ctx, notification)
			if err != nil {
				slog.Error("[notify.Dispatcher.Run]: unable to dispatch notification",
					"error", err, "contentId", notification.ContentID)
			}
		}
	}
}

// Dispatch sends one message per subscribed chat. Content already delivered is skipped.
// The content id is claimed only once the subscribers are known, and released when nothing was sent.
func (d *Dispatcher) Dispatch(ctx context.Context, notification hub.Notification) error {
	chats, err := d.subscribedChats(ctx, notification)
	if err != nil {
		return err
	}
	first, err := d.store.MarkDelivered(ctx, notification.ContentID)
	if err != nil {
		slog.Warn("[notify.Dispatcher.Dispatch]: unable to mark content, delivering anyway",
			"error", err, "contentId", notification.ContentID)
		first = true
	}
	if !first {
		slog.Debug("[notify.Dispatcher.Dispatch]: content already delivered", "contentId", notification.ContentID)
		return nil
	}
	message := fmt.Sprintf(templates.NewVideo, notification.FeedName, notification.ContentURL)
	sent := 0
	for _, chatId := range chats {
		err := d.limiter.Wait(ctx)
		if err != nil {
			if sent == 0 {
				d.release(ctx, notification.ContentID)
			}
			return errors.Wrap(err, "fan-out interrupted")
		}
		_, err = d.sender.Send(tele.ChatID(chatId), message)
		if err != nil {
			slog.Error("[notify.Dispatcher.Dispatch]: unable to notify chat",
				"error", err, "chatId", chatId, "contentId", notification.ContentID)
			continue
		}
		sent++
	}
	slog.Info("[notify.Dispatcher.Dispatch]: notification delivered",
		"contentId", notification.ContentID, "channelId", notification.ChannelID, "chats", sent)
	return nil
}

func (d *Dispatcher) release(ctx context.Context, contentId string) {
	err := d.store.UnmarkDelivered(context.WithoutCancel(ctx), contentId)
	if err != nil {
		slog.Error("[notify.Dispatcher.release]: unable to release content", "error", err, "contentId", contentId)
	}
}

func (d *Dispatcher) subscribedChats(ctx context.Context, notification hub.Notification) ([]int64, error) {
	var subs []db.Subscription
	if notification.ChannelID != "" {
		byChannel, err := d.store.ListByChannel(ctx, notification.ChannelID)
		if err != nil {
			return nil, err
		}
		subs = append(subs, byChannel...)
	}
	if notification.FeedURL != "" {
		followed, err := d.store.Exists(ctx, notification.FeedURL)
		if err != nil {
			return nil, err
		}
		if followed {
			byFeed, err := d.store.ListByFeed(ctx, notification.FeedURL)
			if err != nil {
				return nil, err
			}
			subs = append(subs, byFeed...)
		}
	}
	seen := make(map[int64]struct{}, len(subs))
	var chats []int64
	for _, sub := range subs {
		if _, ok := seen[sub.ChatId]; ok {
			continue
		}
		seen[sub.ChatId] = struct{}{}
		chats = append(chats, sub.ChatId)
	}
	return chats, nil
}
