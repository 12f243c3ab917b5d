package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const notificationPayload = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns="http://www.w3.org/2005/Atom">
  <link rel="hub" href="https://pubsubhubbub.appspot.com"/>
  <link rel="self" href="https://www.youtube.com/xml/feeds/videos.xml?channel_id=UCchannel1"/>
  <title>YouTube video feed</title>
  <updated>2024-03-01T10:00:00.000000000+00:00</updated>
  <entry>
    <id>yt:video:video1</id>
    <yt:videoId>video1</yt:videoId>
    <yt:channelId>UCchannel1</yt:channelId>
    <title>First video</title>
    <link rel="alternate" href="https://www.youtube.com/watch?v=video1"/>
    <author>
      <name>Channel One</name>
      <uri>https://www.youtube.com/channel/UCchannel1</uri>
    </author>
    <published>2024-03-01T09:59:00+00:00</published>
    <updated>2024-03-01T10:00:00.000000000+00:00</updated>
  </entry>
</feed>`

type recordingVerifier struct {
	accept bool
	err    error
	got    []Verification
}

func (v *recordingVerifier) Verify(_ context.Context, verification Verification) (bool, error) {
	v.got = append(v.got, verification)
	return v.accept, v.err
}

func newRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()
	h.Register(router, "/youtube/notifications")
	return router
}

func verificationRequest(values url.Values) *http.Request {
	return httptest.NewRequest(http.MethodGet, "/youtube/notifications?"+values.Encode(), nil)
}

func TestHandleVerification(t *testing.T) {
	topic := "https://www.youtube.com/xml/feeds/videos.xml?channel_id=UCchannel1"

	t.Run("accepted intent echoes challenge", func(t *testing.T) {
		verifier := &recordingVerifier{accept: true}
		router := newRouter(NewHandler(verifier, nil, ""))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, verificationRequest(url.Values{
			"hub.mode":          {"subscribe"},
			"hub.topic":         {topic},
			"hub.challenge":     {"challenge-123"},
			"hub.lease_seconds": {"432000"},
		}))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "challenge-123", recorder.Body.String())
		require.Len(t, verifier.got, 1)
		assert.Equal(t, Verification{
			Mode:         "subscribe",
			ChannelId:    "UCchannel1",
			Challenge:    "challenge-123",
			LeaseSeconds: 432000,
		}, verifier.got[0])
	})

	t.Run("rejected intent", func(t *testing.T) {
		verifier := &recordingVerifier{accept: false}
		router := newRouter(NewHandler(verifier, nil, ""))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, verificationRequest(url.Values{
			"hub.mode":      {"unsubscribe"},
			"hub.topic":     {topic},
			"hub.challenge": {"challenge-123"},
		}))

		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Empty(t, recorder.Body.String())
	})

	t.Run("verifier failure", func(t *testing.T) {
		verifier := &recordingVerifier{accept: true, err: errors.New("db is down")}
		router := newRouter(NewHandler(verifier, nil, ""))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, verificationRequest(url.Values{
			"hub.mode":      {"subscribe"},
			"hub.topic":     {topic},
			"hub.challenge": {"challenge-123"},
		}))

		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})

	t.Run("malformed requests never reach the verifier", func(t *testing.T) {
		cases := []url.Values{
			{"hub.mode": {"subscribe"}, "hub.topic": {"https://example.com/feed"}, "hub.challenge": {"c"}},
			{"hub.mode": {"subscribe"}, "hub.topic": {topic}, "hub.challenge": {"c"}, "hub.lease_seconds": {"soon"}},
			{"hub.mode": {"publish"}, "hub.topic": {topic}, "hub.challenge": {"c"}},
			{},
		}
		for _, values := range cases {
			verifier := &recordingVerifier{accept: true}
			router := newRouter(NewHandler(verifier, nil, ""))
			recorder := httptest.NewRecorder()
			router.ServeHTTP(recorder, verificationRequest(values))

			assert.Equal(t, http.StatusNotFound, recorder.Code, values.Encode())
			assert.Empty(t, verifier.got)
		}
	})

	t.Run("denied is acknowledged", func(t *testing.T) {
		verifier := &recordingVerifier{}
		router := newRouter(NewHandler(verifier, nil, ""))
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, verificationRequest(url.Values{
			"hub.mode":   {"denied"},
			"hub.topic":  {topic},
			"hub.reason": {"not allowed"},
		}))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Empty(t, verifier.got)
	})
}

func TestHandleNotification(t *testing.T) {
	t.Run("queues parsed entries", func(t *testing.T) {
		notifications := make(chan Notification, 1)
		router := newRouter(NewHandler(&recordingVerifier{}, notifications, ""))
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/youtube/notifications", strings.NewReader(notificationPayload))
		router.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		require.Len(t, notifications, 1)
		notification := <-notifications
		assert.Equal(t, Notification{
			ChannelID:  "UCchannel1",
			FeedURL:    "https://www.youtube.com/channel/UCchannel1",
			FeedName:   "Channel One",
			ContentID:  "video1",
			ContentURL: "https://www.youtube.com/watch?v=video1",
			Title:      "First video",
		}, notification)
	})

	t.Run("signed body", func(t *testing.T) {
		notifications := make(chan Notification, 1)
		router := newRouter(NewHandler(&recordingVerifier{}, notifications, "s3cret"))
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/youtube/notifications", strings.NewReader(notificationPayload))
		request.Header.Set("X-Hub-Signature", Sign("s3cret", []byte(notificationPayload)))
		router.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Len(t, notifications, 1)
	})

	t.Run("bad signature is dropped", func(t *testing.T) {
		notifications := make(chan Notification, 1)
		router := newRouter(NewHandler(&recordingVerifier{}, notifications, "s3cret"))
		for _, signature := range []string{"", "sha1=zz", Sign("other", []byte(notificationPayload))} {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodPost, "/youtube/notifications", strings.NewReader(notificationPayload))
			request.Header.Set("X-Hub-Signature", signature)
			router.ServeHTTP(recorder, request)

			assert.Equal(t, http.StatusOK, recorder.Code)
			assert.Empty(t, notifications)
		}
	})

	t.Run("garbage body", func(t *testing.T) {
		notifications := make(chan Notification, 1)
		router := newRouter(NewHandler(&recordingVerifier{}, notifications, ""))
		recorder := httptest.NewRecorder()
		request := httptest.NewRequest(http.MethodPost, "/youtube/notifications", strings.NewReader("not a feed"))
		router.ServeHTTP(recorder, request)

		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Empty(t, notifications)
	})
}

func TestParseNotificationsFallbacks(t *testing.T) {
	payload := strings.NewReplacer(
		"<yt:videoId>video1</yt:videoId>", "",
		"<yt:channelId>UCchannel1</yt:channelId>", "",
	).Replace(notificationPayload)

	notifications, err := ParseNotifications([]byte(payload))
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "video1", notifications[0].ContentID)
	assert.Equal(t, "UCchannel1", notifications[0].ChannelID)
}

func TestClientSubscribe(t *testing.T) {
	var forms []url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		forms = append(forms, r.PostForm)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(
		"https://bot.example:5050/youtube/notifications",
		WithHubURL(server.URL),
		WithSecret("s3cret"),
		WithLeaseSeconds(3600),
	)
	require.NoError(t, client.Subscribe(context.Background(), "UCchannel1"))
	require.NoError(t, client.Unsubscribe(context.Background(), "UCchannel1"))

	require.Len(t, forms, 2)
	assert.Equal(t, "subscribe", forms[0].Get("hub.mode"))
	assert.Equal(t, "https://www.youtube.com/xml/feeds/videos.xml?channel_id=UCchannel1", forms[0].Get("hub.topic"))
	assert.Equal(t, "https://bot.example:5050/youtube/notifications", forms[0].Get("hub.callback"))
	assert.Equal(t, "async", forms[0].Get("hub.verify"))
	assert.Equal(t, "s3cret", forms[0].Get("hub.secret"))
	assert.Equal(t, "3600", forms[0].Get("hub.lease_seconds"))
	assert.Equal(t, "unsubscribe", forms[1].Get("hub.mode"))
	assert.Empty(t, forms[1].Get("hub.lease_seconds"))
}

func TestClientRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("Invalid value for hub.topic"))
	}))
	defer server.Close()

	err := NewClient("https://bot.example:5050/youtube/notifications", WithHubURL(server.URL)).
		Subscribe(context.Background(), "UCchannel1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid value for hub.topic")
}
