package mutex

import (
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis"
)

// A waiter retries for as long as a holder may keep the lock.
const (
	feedLockExpiration = time.Minute * 2
	feedLockRetryDelay = time.Millisecond * 100
	feedLockTries      = int(feedLockExpiration / feedLockRetryDelay)
	feedKeyPattern     = "feed:%v"
)

// Locker is the part of redsync.Mutex the bot relies on.
type Locker interface {
	Lock() error
	Unlock() (bool, error)
}

// Provider hands out one lock per channel id.
type Provider interface {
	Feed(channelId string) Locker
}

// Builder creates redis backed locks, so lease transitions stay serialized across restarts and replicas.
type Builder struct {
	client *redis.Client
	rs     *redsync.Redsync
}

func NewBuilder(address string) *Builder {
	client := redis.NewClient(&redis.Options{Addr: address})
	pool := goredis.NewPool(client)
	rs := redsync.New(pool)
	return &Builder{client: client, rs: rs}
}

func (b *Builder) Feed(channelId string) Locker {
	key := fmt.Sprintf(feedKeyPattern, channelId)
	return b.rs.NewMutex(
		key,
		redsync.WithExpiry(feedLockExpiration),
		redsync.WithTries(feedLockTries),
		redsync.WithRetryDelay(feedLockRetryDelay),
	)
}

func (b *Builder) Close() error {
	return b.client.Close()
}
