package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
)

var (
	ErrNotFound = errors.New("entity not found")
)

type DB struct {
	db      *bun.DB
	timeout time.Duration
}

const (
	defaultTimeout      = time.Minute
	channelIdIndexName  = "subscriptions_channel_id_idx"
	channelUrlIndexName = "subscriptions_channel_url_idx"
)

func New(address, user, password, database string) *DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithInsecure(true),
		pgdriver.WithAddr(address),
		pgdriver.WithUser(user),
		pgdriver.WithPassword(password),
		pgdriver.WithDatabase(database),
	)
	return NewWithSQL(sql.OpenDB(connector))
}

// NewWithSQL wraps an already opened postgres connection pool.
func NewWithSQL(sqldb *sql.DB) *DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	return &DB{db: db, timeout: defaultTimeout}
}

func (d *DB) SetTimeout(duration time.Duration) {
	d.timeout = duration
}

func (d *DB) EnableDebug() {
	d.db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) CreateSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	models := []interface{}{(*Subscription)(nil), (*Lease)(nil), (*Delivery)(nil)}
	for _, model := range models {
		_, err := d.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return errors.Wrapf(err, "error during creating table for %T", model)
		}
	}
	indexes := [][2]string{
		{channelIdIndexName, "channel_id"},
		{channelUrlIndexName, "channel_url"},
	}
	for _, index := range indexes {
		name := index[0]
		_, err := d.db.NewCreateIndex().
			Model((*Subscription)(nil)).
			Index(name).
			Column(index[1]).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return errors.Wrapf(err, "error during creating index %v", name)
		}
	}
	return nil
}

// Exists reports whether any chat follows the channel url.
func (d *DB) Exists(ctx context.Context, channelUrl string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	exists, err := d.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("channel_url = ?", channelUrl).
		Exists(ctx)
	return exists, errors.Wrap(err, "error during checking feed subscribers")
}

func (d *DB) ExistsForChat(ctx context.Context, chatId int64, channelUrl string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	exists, err := d.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("chat_id = ?", chatId).
		Where("channel_url = ?", channelUrl).
		Exists(ctx)
	return exists, errors.Wrap(err, "error during checking chat subscription")
}

// ExistsChannel reports whether any chat follows the channel id, whatever url it was added with.
func (d *DB) ExistsChannel(ctx context.Context, channelId string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	exists, err := d.db.NewSelect().
		Model((*Subscription)(nil)).
		Where("channel_id = ?", channelId).
		Exists(ctx)
	return exists, errors.Wrap(err, "error during checking channel subscribers")
}

func (d *DB) Get(ctx context.Context, chatId int64, channelUrl string) (Subscription, error) {
	var sub Subscription
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&sub).
		Where("chat_id = ?", chatId).
		Where("channel_url = ?", channelUrl).
		Limit(1).
		Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, errors.Wrap(err, "error during querying subscription")
	}
	return sub, nil
}

// Add inserts the subscription unless the (chat, url) pair is already stored.
// It reports whether a row was written.
func (d *DB) Add(ctx context.Context, sub Subscription) (bool, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.db.NewInsert().
		Model(&sub).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "error during adding subscription")
	}
	return affected(result)
}

func (d *DB) Remove(ctx context.Context, chatId int64, channelUrl string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.db.NewDelete().
		Model((*Subscription)(nil)).
		Where("chat_id = ?", chatId).
		Where("channel_url = ?", channelUrl).
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "error during removing subscription")
	}
	return affected(result)
}

func (d *DB) ListByChat(ctx context.Context, chatId int64) ([]Subscription, error) {
	var subs []Subscription
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&subs).
		Where("chat_id = ?", chatId).
		Order("created_at ASC", "channel_url ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during listing chat subscriptions")
	}
	return subs, nil
}

func (d *DB) ListByFeed(ctx context.Context, channelUrl string) ([]Subscription, error) {
	var subs []Subscription
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&subs).
		Where("channel_url = ?", channelUrl).
		Order("chat_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during listing feed subscriptions")
	}
	return subs, nil
}

func (d *DB) ListByChannel(ctx context.Context, channelId string) ([]Subscription, error) {
	var subs []Subscription
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&subs).
		Where("channel_id = ?", channelId).
		Order("chat_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during listing channel subscriptions")
	}
	return subs, nil
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "unable to read affected rows")
	}
	return rows > 0, nil
}
