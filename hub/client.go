package hub

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"youtube-notification-bot/youtube"
)

const (
	requestTimeout = time.Second * 10
	maxErrorBody   = 4096
)

// Client sends subscription requests for channel feeds to the hub.
type Client struct {
	client       *http.Client
	hubURL       string
	callback     string
	secret       string
	leaseSeconds int
}

type Option func(*Client)

// WithSecret makes the hub sign notifications with HMAC of the secret.
func WithSecret(secret string) Option {
	return func(c *Client) {
		c.secret = secret
	}
}

// WithLeaseSeconds asks the hub for a specific lease. The hub may grant another value.
func WithLeaseSeconds(seconds int) Option {
	return func(c *Client) {
		c.leaseSeconds = seconds
	}
}

func WithHubURL(hubURL string) Option {
	return func(c *Client) {
		c.hubURL = hubURL
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func NewClient(callback string, options ...Option) *Client {
	c := &Client{
		client:   &http.Client{Timeout: requestTimeout},
		hubURL:   youtube.HubYouTubeURL,
		callback: callback,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Client) Subscribe(ctx context.Context, channelId string) error {
	return c.send(ctx, youtube.HubModeSubscribe, channelId)
}

func (c *Client) Unsubscribe(ctx context.Context, channelId string) error {
	return c.send(ctx, youtube.HubModeUnsubscribe, channelId)
}

func (c *Client) send(ctx context.Context, mode, channelId string) error {
	values := url.Values{}
	values.Set(youtube.HubTopic, fmt.Sprintf(youtube.HubTopicFormat, channelId))
	values.Set(youtube.HubCallback, c.callback)
	values.Set(youtube.HubVerify, youtube.HubVerifyAsync)
	values.Set(youtube.HubMode, mode)
	if c.secret != "" {
		values.Set(youtube.HubSecret, c.secret)
	}
	if c.leaseSeconds > 0 && mode == youtube.HubModeSubscribe {
		values.Set(youtube.HubLeaseSeconds, strconv.Itoa(c.leaseSeconds))
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hubURL, strings.NewReader(values.Encode()))
	if err != nil {
		return errors.Wrapf(err, "unable to create %v request", mode)
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	response, err := c.client.Do(request)
	if err != nil {
		return errors.Wrapf(err, "unable to make %v request", mode)
	}
	body := response.Body
	defer func() {
		err := body.Close()
		if err != nil {
			slog.Warn("[hub.Client.send]: error when closing the body", "error", err)
		}
	}()
	code := response.StatusCode
	if code < 200 || code > 299 {
		payload, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
		if err != nil {
			return errors.Errorf("unexpected status during %v %v; can't read body: %v", mode, code, err.Error())
		}
		return errors.Errorf("unexpected status during %v %v; body: %v", mode, code, string(payload))
	}
	slog.Debug("[hub.Client.send]: request accepted", "mode", mode, "channelId", channelId, "status", code)
	return nil
}
