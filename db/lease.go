package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

// PutLease records that a hub subscription was requested for the channel. Verification state is reset.
func (d *DB) PutLease(ctx context.Context, channelId string, requestedAt time.Time) error {
	lease := Lease{ChannelId: channelId, RequestedAt: requestedAt.UTC()}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewInsert().
		Model(&lease).
		On("CONFLICT (channel_id) DO UPDATE").
		Set("requested_at = EXCLUDED.requested_at").
		Set("lease_seconds = NULL").
		Set("verified_at = NULL").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during saving lease")
	}
	return nil
}

func (d *DB) GetLease(ctx context.Context, channelId string) (Lease, error) {
	lease := Lease{ChannelId: channelId}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().Model(&lease).WherePK().Scan(ctx)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		return Lease{}, ErrNotFound
	}
	if err != nil {
		return Lease{}, errors.Wrap(err, "error during querying lease")
	}
	return lease, nil
}

// ConfirmLease stores the lease granted by the hub. It reports false when there is no such lease.
func (d *DB) ConfirmLease(ctx context.Context, channelId string, leaseSeconds int, verifiedAt time.Time) (bool, error) {
	verifiedAt = verifiedAt.UTC()
	lease := Lease{ChannelId: channelId, LeaseSeconds: &leaseSeconds, VerifiedAt: &verifiedAt}
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	result, err := d.db.NewUpdate().
		Model(&lease).
		Set("lease_seconds = ?lease_seconds").
		Set("verified_at = ?verified_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return false, errors.Wrap(err, "error during confirming lease")
	}
	return affected(result)
}

func (d *DB) DeleteLease(ctx context.Context, channelId string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.db.NewDelete().
		Model((*Lease)(nil)).
		Where("channel_id = ?", channelId).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "error during deleting lease")
	}
	return nil
}

// ListExpiringLeases returns leases of followed channels which expire before expiresBefore,
// and requests the hub never verified that were sent before pendingBefore.
func (d *DB) ListExpiringLeases(ctx context.Context, expiresBefore, pendingBefore time.Time) ([]Lease, error) {
	var leases []Lease
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	err := d.db.NewSelect().
		Model(&leases).
		Where("EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = l.channel_id)").
		Where(
			"(l.verified_at + (l.lease_seconds || ' seconds')::interval < ?) "+
				"OR (l.verified_at IS NULL AND l.requested_at < ?)",
			expiresBefore.UTC(),
			pendingBefore.UTC(),
		).
		Order("l.channel_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "error during listing expiring leases")
	}
	return leases, nil
}
