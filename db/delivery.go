package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// MarkDelivered claims the content id for delivery. Only the first caller gets true.
func (d *DB) MarkDelivered(ctx context.Context, contentId string) (bool, error) {
	delivery := Delivery{ContentId: contentId, DeliveredAt: time.Now().UTC()}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.db.NewInsert().
		Model(&delivery).
		On("CONFLICT DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "error during marking content as delivered")
	}
	return affected(result)
}

// UnmarkDelivered gives up a claim made by MarkDelivered, so the content can be delivered again.
func (d *DB) UnmarkDelivered(ctx context.Context, contentId string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewDelete().
		Model((*Delivery)(nil)).
		Where("content_id = ?", contentId).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during unmarking delivered content")
	}
	return nil
}

func (d *DB) PruneDeliveries(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.db.NewDelete().
		Model((*Delivery)(nil)).
		Where("delivered_at < ?", before.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "error during pruning deliveries")
	}
	return result.RowsAffected()
}
