package youtube

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/pkg/errors"
	"google.golang.org/api/option"
	ytApi "google.golang.org/api/youtube/v3"
)

var urlPattern = regexp.MustCompile("^(https?://)?(www\\.|m\\.)?youtu((\\.be)|(be\\..{2,5}?))/(channel/(UC[\\w-]{21}[AQgw])|(c/|user/)?([\\w-]+))/?$")

const (
	channelIdIndex  = 7
	kindIndex       = 8
	customNameIndex = 9
	userKind        = "user/"
)

var (
	channelParts = []string{"id", "snippet"}
)

// APIResolver resolves channel urls through the YouTube Data API. Only /channel/ and /user/ urls are supported,
// custom urls have no API lookup.
type APIResolver struct {
	yt *ytApi.Service
}

func NewAPIResolver(ctx context.Context, opts ...option.ClientOption) (*APIResolver, error) {
	service, err := ytApi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create youtube service")
	}
	return &APIResolver{yt: service}, nil
}

func (s *APIResolver) Resolve(ctx context.Context, channelURL string) (string, error) {
	channel, err := s.FindChannel(ctx, channelURL)
	if err != nil {
		return "", err
	}
	return channel.Id, nil
}

func (s *APIResolver) FindChannel(ctx context.Context, channelURL string) (ChannelInfo, error) {
	submatch := urlPattern.FindStringSubmatch(channelURL)
	if submatch == nil {
		return ChannelInfo{}, errors.WithMessagef(ErrChannelNotFound, "unable to parse url %q", channelURL)
	}
	call := s.yt.Channels.List(channelParts).Context(ctx).MaxResults(1)
	channelId := submatch[channelIdIndex]
	customName := submatch[customNameIndex]
	switch {
	case len(channelId) > 0:
		call = call.Id(channelId)
	case submatch[kindIndex] == userKind && len(customName) > 0:
		call = call.ForUsername(customName)
	default:
		return ChannelInfo{}, errors.WithMessagef(ErrChannelNotFound, "custom url %q is not supported", channelURL)
	}
	return s.executeChannelSearch(call)
}

func (s *APIResolver) executeChannelSearch(call *ytApi.ChannelsListCall) (ChannelInfo, error) {
	response, err := call.Do()
	if err != nil {
		return ChannelInfo{}, errors.WithMessagef(ErrUnavailable, "error on calling youtube api: %v", err)
	}
	items := response.Items
	if len(items) == 0 {
		return ChannelInfo{}, errors.WithMessage(ErrChannelNotFound, "youtube api returned no channel")
	}
	if len(items) > 1 {
		slog.Warn("[youtube.executeChannelSearch]: unexpected item count during search for channel", "count", len(items))
	}
	channel := items[0]
	info := ChannelInfo{Id: channel.Id}
	if channel.Snippet != nil {
		info.Title = channel.Snippet.Title
	}
	return info, nil
}
