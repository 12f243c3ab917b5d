package hub

import "context"

// Verification is an intent verification request sent by the hub to the callback.
type Verification struct {
	Mode         string
	ChannelId    string
	Challenge    string
	LeaseSeconds int
}

// Verifier decides whether the bot really asked for the verified (un)subscription.
type Verifier interface {
	Verify(ctx context.Context, verification Verification) (bool, error)
}

// Notification is one feed entry pushed by the hub.
type Notification struct {
	ChannelID  string
	FeedURL    string
	FeedName   string
	ContentID  string
	ContentURL string
	Title      string
}
