package db

import (
	"context"
	"log/slog"
	"time"
)

// PollExpiringLeases emits leases which need a renewal every interval until ctx is done.
// margin is how long before expiry a lease is renewed, retry is how long an unverified request is waited for.
func (d *DB) PollExpiringLeases(ctx context.Context, interval, margin, retry time.Duration) <-chan Lease {
	leases := make(chan Lease)
	go func() {
		defer close(leases)
		d.startPolling(ctx, leases, interval, margin, retry)
	}()
	return leases
}

func (d *DB) startPolling(ctx context.Context, leases chan<- Lease, interval, margin, retry time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		now := time.Now()
		expiring, err := d.ListExpiringLeases(ctx, now.Add(margin), now.Add(-retry))
		if err != nil {
			slog.Error("[db.startPolling]: unable to list expiring leases", "error", err)
		}
		for _, lease := range expiring {
			select {
			case <-ctx.Done():
				return
			case leases <- lease:
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
