package youtube

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channelPage = `<!DOCTYPE html><html><head>
<link rel="alternate" type="application/rss+xml" title="RSS" href="https://www.youtube.com/feeds/videos.xml?channel_id=UCBR8-60-B28hp2BmDPdntcQ">
</head><body></body></html>`

const scriptPage = `<html><body><script>var ytInitialData = {"rssUrl":"https://www.youtube.com/feeds/videos.xml?channel_id=UC_x5XG1OV2P6uZZ5FSM9Ttw"};</script></body></html>`

func TestPageResolver(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/link":
			_, _ = w.Write([]byte(channelPage))
		case "/script":
			_, _ = w.Write([]byte(scriptPage))
		case "/empty":
			_, _ = w.Write([]byte("<html><body>nothing here</body></html>"))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	resolver := NewPageResolverWithClient(server.Client())
	ctx := context.Background()

	t.Run("feed link", func(t *testing.T) {
		id, err := resolver.Resolve(ctx, server.URL+"/link")
		require.NoError(t, err)
		assert.Equal(t, "UCBR8-60-B28hp2BmDPdntcQ", id)
	})

	t.Run("raw marker", func(t *testing.T) {
		id, err := resolver.Resolve(ctx, server.URL+"/script")
		require.NoError(t, err)
		assert.Equal(t, "UC_x5XG1OV2P6uZZ5FSM9Ttw", id)
	})

	t.Run("no marker", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, server.URL+"/empty")
		assert.True(t, errors.Is(err, ErrChannelNotFound))
	})

	t.Run("missing page", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, server.URL+"/missing")
		assert.True(t, errors.Is(err, ErrChannelNotFound))
	})

	t.Run("server error", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, server.URL+"/broken")
		assert.True(t, errors.Is(err, ErrUnavailable))
	})

	t.Run("malformed url", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "not a url")
		assert.True(t, errors.Is(err, ErrChannelNotFound))
	})
}

func TestPageResolverTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	address := server.URL
	server.Close()

	_, err := NewPageResolver().Resolve(context.Background(), address+"/channel")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestChannelIdFromPageData(t *testing.T) {
	assert.Equal(t, "abc", ChannelIdFromPageData(`<a href="x?channel_id=abc">`))
	assert.Equal(t, "", ChannelIdFromPageData(`channel_id=abc`))
	assert.Equal(t, "", ChannelIdFromPageData(""))
}
