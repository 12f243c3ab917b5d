package youtube

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
)

const (
	resolveTimeout = time.Second * 10
	maxPageSize    = 10 << 20
	userAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0 Safari/537.36"
	// Skips the EU consent interstitial which carries no channel data.
	consentCookie = "CONSENT=YES+1"
	feedSelector  = `link[rel="alternate"][type="application/rss+xml"]`
	channelIdKey  = "channel_id"
)

var channelIdPattern = regexp.MustCompile(`channel_id=([^"\n]+)"`)

// PageResolver downloads the channel page and looks for the channel id embedded in it.
type PageResolver struct {
	client *http.Client
}

func NewPageResolver() *PageResolver {
	return &PageResolver{client: &http.Client{Timeout: resolveTimeout}}
}

// NewPageResolverWithClient is used when the transport has to be swapped, mostly in tests.
func NewPageResolverWithClient(client *http.Client) *PageResolver {
	return &PageResolver{client: client}
}

func (r *PageResolver) Resolve(ctx context.Context, channelURL string) (string, error) {
	page, err := r.fetch(ctx, channelURL)
	if err != nil {
		return "", err
	}
	if id := channelIdFromDocument(page); len(id) > 0 {
		return id, nil
	}
	if id := ChannelIdFromPageData(string(page)); len(id) > 0 {
		return id, nil
	}
	return "", errors.WithMessagef(ErrChannelNotFound, "no channel id on page %v", channelURL)
}

func (r *PageResolver) fetch(ctx context.Context, channelURL string) ([]byte, error) {
	parsed, err := url.Parse(channelURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || len(parsed.Host) == 0 {
		return nil, errors.WithMessagef(ErrChannelNotFound, "malformed channel url %q", channelURL)
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, errors.WithMessagef(ErrChannelNotFound, "unable to build request: %v", err)
	}
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Accept-Language", "en")
	request.Header.Set("Cookie", consentCookie)
	response, err := r.client.Do(request)
	if err != nil {
		return nil, errors.WithMessagef(ErrUnavailable, "unable to fetch %v: %v", channelURL, err)
	}
	defer response.Body.Close()
	code := response.StatusCode
	if code >= 500 || code == http.StatusTooManyRequests {
		return nil, errors.WithMessagef(ErrUnavailable, "unexpected status %v for %v", code, channelURL)
	}
	if code < 200 || code > 299 {
		return nil, errors.WithMessagef(ErrChannelNotFound, "unexpected status %v for %v", code, channelURL)
	}
	body, err := io.ReadAll(io.LimitReader(response.Body, maxPageSize))
	if err != nil {
		return nil, errors.WithMessagef(ErrUnavailable, "unable to read %v: %v", channelURL, err)
	}
	return body, nil
}

func channelIdFromDocument(page []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	var id string
	doc.Find(feedSelector).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		feedURL, err := url.Parse(href)
		if err != nil {
			return true
		}
		id = feedURL.Query().Get(channelIdKey)
		return len(id) == 0
	})
	return id
}

// ChannelIdFromPageData extracts the value of the first channel_id= marker, up to the closing quote.
func ChannelIdFromPageData(pageData string) string {
	submatch := channelIdPattern.FindStringSubmatch(pageData)
	if submatch == nil {
		return ""
	}
	return submatch[1]
}
