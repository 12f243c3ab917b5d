package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"youtube-notification-bot/db"
	"youtube-notification-bot/hub"
	"youtube-notification-bot/mutex"
	"youtube-notification-bot/youtube"
)

// Store is the part of db.DB the coordinator works with.
type Store interface {
	ExistsForChat(ctx context.Context, chatId int64, channelUrl string) (bool, error)
	ExistsChannel(ctx context.Context, channelId string) (bool, error)
	Get(ctx context.Context, chatId int64, channelUrl string) (db.Subscription, error)
	Add(ctx context.Context, sub db.Subscription) (bool, error)
	Remove(ctx context.Context, chatId int64, channelUrl string) (bool, error)
	ListByChat(ctx context.Context, chatId int64) ([]db.Subscription, error)
	PutLease(ctx context.Context, channelId string, requestedAt time.Time) error
	GetLease(ctx context.Context, channelId string) (db.Lease, error)
	ConfirmLease(ctx context.Context, channelId string, leaseSeconds int, verifiedAt time.Time) (bool, error)
	DeleteLease(ctx context.Context, channelId string) error
}

type Hub interface {
	Subscribe(ctx context.Context, channelId string) error
	Unsubscribe(ctx context.Context, channelId string) error
}

// Coordinator keeps chat subscriptions and hub leases consistent.
// Every lease transition of a channel happens under the lock of that channel.
type Coordinator struct {
	resolver youtube.Resolver
	store    Store
	hub      Hub
	locks    mutex.Provider
	now      func() time.Time
}

func NewCoordinator(resolver youtube.Resolver, store Store, hub Hub, locks mutex.Provider) *Coordinator {
	return &Coordinator{
		resolver: resolver,
		store:    store,
		hub:      hub,
		locks:    locks,
		now:      time.Now,
	}
}

func (c *Coordinator) Add(ctx context.Context, chatId int64, channelUrl string) error {
	exists, err := c.store.ExistsForChat(ctx, chatId, channelUrl)
	if err != nil {
		return wrap(ErrStorage, err, "unable to check chat subscription")
	}
	if exists {
		return ErrAlreadySubscribed
	}
	channelId, err := c.resolve(ctx, channelUrl)
	if err != nil {
		return err
	}
	return c.withFeedLock(channelId, func() error {
		return c.add(ctx, chatId, channelUrl, channelId)
	})
}

func (c *Coordinator) add(ctx context.Context, chatId int64, channelUrl, channelId string) error {
	followed, err := c.store.ExistsChannel(ctx, channelId)
	if err != nil {
		return wrap(ErrStorage, err, "unable to check channel subscribers")
	}
	if !followed {
		err := c.store.PutLease(ctx, channelId, c.now())
		if err != nil {
			return wrap(ErrStorage, err, "unable to save lease")
		}
		err = c.hub.Subscribe(ctx, channelId)
		if err != nil {
			c.dropLease(ctx, channelId)
			return wrap(ErrHub, err, "unable to subscribe to channel")
		}
		slog.Info("[subscription.Coordinator.add]: requested hub subscription", "channelId", channelId)
	}
	inserted, err := c.store.Add(ctx, db.Subscription{ChatId: chatId, ChannelUrl: channelUrl, ChannelId: channelId})
	if err != nil {
		if !followed {
			c.abandonLease(ctx, channelId)
		}
		return wrap(ErrStorage, err, "unable to add subscription")
	}
	if !inserted {
		if !followed {
			c.abandonLease(ctx, channelId)
		}
		return ErrAlreadySubscribed
	}
	return nil
}

// Remove deletes the chat's subscription. A missing subscription is not an error.
func (c *Coordinator) Remove(ctx context.Context, chatId int64, channelUrl string) error {
	sub, err := c.store.Get(ctx, chatId, channelUrl)
	if err != nil && errors.Is(err, db.ErrNotFound) {
		return nil
	}
	if err != nil {
		return wrap(ErrStorage, err, "unable to get subscription")
	}
	channelId := sub.ChannelId
	if channelId == "" {
		channelId, err = c.resolve(ctx, channelUrl)
		if err != nil {
			return err
		}
	}
	return c.withFeedLock(channelId, func() error {
		return c.remove(ctx, chatId, channelUrl, channelId)
	})
}

func (c *Coordinator) remove(ctx context.Context, chatId int64, channelUrl, channelId string) error {
	removed, err := c.store.Remove(ctx, chatId, channelUrl)
	if err != nil {
		return wrap(ErrStorage, err, "unable to remove subscription")
	}
	if !removed {
		return nil
	}
	followed, err := c.store.ExistsChannel(ctx, channelId)
	if err != nil {
		return wrap(ErrStorage, err, "unable to check channel subscribers")
	}
	if followed {
		return nil
	}
	err = c.store.DeleteLease(ctx, channelId)
	if err != nil {
		return wrap(ErrStorage, err, "unable to delete lease")
	}
	err = c.hub.Unsubscribe(ctx, channelId)
	if err != nil {
		return wrap(ErrHub, err, "unable to unsubscribe from channel")
	}
	slog.Info("[subscription.Coordinator.remove]: requested hub unsubscription", "channelId", channelId)
	return nil
}

func (c *Coordinator) List(ctx context.Context, chatId int64) ([]db.Subscription, error) {
	subs, err := c.store.ListByChat(ctx, chatId)
	if err != nil {
		return nil, wrap(ErrStorage, err, "unable to list subscriptions")
	}
	return subs, nil
}

// Verify answers hub intent verification. A subscription is wanted while its lease row exists,
// an unsubscription once it is gone.
func (c *Coordinator) Verify(ctx context.Context, verification hub.Verification) (bool, error) {
	var accepted bool
	err := c.withFeedLock(verification.ChannelId, func() error {
		var err error
		accepted, err = c.verify(ctx, verification)
		return err
	})
	return accepted, err
}

func (c *Coordinator) verify(ctx context.Context, verification hub.Verification) (bool, error) {
	_, err := c.store.GetLease(ctx, verification.ChannelId)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return false, wrap(ErrStorage, err, "unable to get lease")
	}
	leased := err == nil
	switch verification.Mode {
	case youtube.HubModeSubscribe:
		if !leased {
			return false, nil
		}
		confirmed, err := c.store.ConfirmLease(ctx, verification.ChannelId, verification.LeaseSeconds, c.now())
		if err != nil {
			return false, wrap(ErrStorage, err, "unable to confirm lease")
		}
		return confirmed, nil
	case youtube.HubModeUnsubscribe:
		return !leased, nil
	}
	return false, nil
}

// StartRenewal re-subscribes every lease received from leases until the channel is closed.
func (c *Coordinator) StartRenewal(ctx context.Context, leases <-chan db.Lease) {
	for lease := range leases {
		err := c.withFeedLock(lease.ChannelId, func() error {
			return c.renew(ctx, lease.ChannelId)
		})
		if err != nil {
			slog.Error("[subscription.Coordinator.StartRenewal]: unable to renew lease",
				"error", err, "channelId", lease.ChannelId)
		}
	}
}

func (c *Coordinator) renew(ctx context.Context, channelId string) error {
	followed, err := c.store.ExistsChannel(ctx, channelId)
	if err != nil {
		return wrap(ErrStorage, err, "unable to check channel subscribers")
	}
	if !followed {
		err := c.store.DeleteLease(ctx, channelId)
		if err != nil {
			return wrap(ErrStorage, err, "unable to delete orphaned lease")
		}
		return nil
	}
	err = c.store.PutLease(ctx, channelId, c.now())
	if err != nil {
		return wrap(ErrStorage, err, "unable to save lease")
	}
	err = c.hub.Subscribe(ctx, channelId)
	if err != nil {
		return wrap(ErrHub, err, "unable to renew subscription")
	}
	slog.Info("[subscription.Coordinator.renew]: requested lease renewal", "channelId", channelId)
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, channelUrl string) (string, error) {
	channelId, err := c.resolver.Resolve(ctx, channelUrl)
	if err != nil && errors.Is(err, youtube.ErrUnavailable) {
		return "", wrap(ErrChannelUnavailable, err, "unable to resolve channel")
	}
	if err != nil {
		return "", wrap(ErrInvalidChannel, err, "unable to resolve channel")
	}
	return channelId, nil
}

func (c *Coordinator) withFeedLock(channelId string, f func() error) error {
	lock := c.locks.Feed(channelId)
	err := lock.Lock()
	if err != nil {
		return wrap(ErrStorage, err, "unable to lock feed")
	}
	defer func() {
		_, err := lock.Unlock()
		if err != nil {
			slog.Warn("[subscription.Coordinator]: unable to unlock feed", "error", err, "channelId", channelId)
		}
	}()
	return f()
}

func (c *Coordinator) dropLease(ctx context.Context, channelId string) {
	err := c.store.DeleteLease(ctx, channelId)
	if err != nil {
		slog.Error("[subscription.Coordinator]: unable to drop lease", "error", err, "channelId", channelId)
	}
}

// abandonLease undoes a subscription requested for a chat whose row could not be stored.
func (c *Coordinator) abandonLease(ctx context.Context, channelId string) {
	c.dropLease(ctx, channelId)
	err := c.hub.Unsubscribe(ctx, channelId)
	if err != nil {
		slog.Error("[subscription.Coordinator]: unable to unsubscribe abandoned lease", "error", err, "channelId", channelId)
	}
}
