package db

import (
	"time"

	"github.com/uptrace/bun"
)

// Subscription links a chat to a channel url. ChannelId caches the resolved id.
type Subscription struct {
	bun.BaseModel `bun:"table:subscriptions,alias:s"`

	ChatId     int64     `bun:",pk"`
	ChannelUrl string    `bun:",pk"`
	ChannelId  string    `bun:",notnull"`
	CreatedAt  time.Time `bun:",notnull"`
}

// Lease mirrors the hub lease of a channel. The row lives while the channel has subscribers.
type Lease struct {
	bun.BaseModel `bun:"table:leases,alias:l"`

	ChannelId    string    `bun:",pk"`
	RequestedAt  time.Time `bun:",notnull"`
	LeaseSeconds *int
	VerifiedAt   *time.Time
}

func (l Lease) Verified() bool {
	return l.VerifiedAt != nil
}

// ExpiresAt is zero until the hub has verified the lease.
func (l Lease) ExpiresAt() time.Time {
	if l.VerifiedAt == nil || l.LeaseSeconds == nil {
		return time.Time{}
	}
	return l.VerifiedAt.Add(time.Duration(*l.LeaseSeconds) * time.Second)
}

type Delivery struct {
	bun.BaseModel `bun:"table:deliveries,alias:d"`

	ContentId   string    `bun:",pk"`
	DeliveredAt time.Time `bun:",notnull"`
}
