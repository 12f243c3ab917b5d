package youtube

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
)

// Chain tries every resolver in order and returns the first id found.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, channelURL string) (string, error) {
	unavailable := false
	var last error
	for _, resolver := range c {
		id, err := resolver.Resolve(ctx, channelURL)
		if err == nil {
			return id, nil
		}
		slog.Debug("[youtube.Chain.Resolve]: resolver failed", "url", channelURL, "error", err)
		if errors.Is(err, ErrUnavailable) {
			unavailable = true
		}
		last = err
	}
	if unavailable {
		return "", errors.WithMessagef(ErrUnavailable, "unable to resolve %v", channelURL)
	}
	if last == nil {
		return "", errors.WithMessage(ErrChannelNotFound, "no resolvers configured")
	}
	return "", last
}
