package youtube

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrChannelNotFound means the url does not point to a channel we can identify.
	ErrChannelNotFound = errors.New("channel id not found")
	// ErrUnavailable means the lookup could not be completed and may succeed later.
	ErrUnavailable = errors.New("channel lookup unavailable")
)

// Resolver maps a public channel url to its stable channel id.
type Resolver interface {
	Resolve(ctx context.Context, channelURL string) (string, error)
}

type ChannelInfo struct {
	Id    string
	Title string
}
