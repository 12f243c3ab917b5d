package hub

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"

	"youtube-notification-bot/youtube"
)

const (
	maxNotificationBody = 1 << 20
	signaturePrefix     = "sha1="
	ytExtension         = "yt"
)

var ErrBadSignature = errors.New("notification signature mismatch")

// Handler serves the hub callback: intent verification on GET and content distribution on POST.
type Handler struct {
	verifier      Verifier
	notifications chan<- Notification
	secret        string
}

func NewHandler(verifier Verifier, notifications chan<- Notification, secret string) *Handler {
	return &Handler{verifier: verifier, notifications: notifications, secret: secret}
}

func (h *Handler) Register(router *mux.Router, path string) {
	router.Methods(http.MethodGet).Path(path).HandlerFunc(h.HandleVerification)
	router.Methods(http.MethodPost).Path(path).HandlerFunc(h.HandleNotification)
}

func (h *Handler) HandleVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.FormValue(youtube.HubMode)
	topic := r.FormValue(youtube.HubTopic)
	if mode == youtube.HubModeDenied {
		slog.Warn("[hub.HandleVerification]: subscription denied", "topic", topic, "reason", r.FormValue(youtube.HubReason))
		w.WriteHeader(http.StatusOK)
		return
	}
	if mode != youtube.HubModeSubscribe && mode != youtube.HubModeUnsubscribe {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	submatch := youtube.HubTopicPattern.FindStringSubmatch(topic)
	if submatch == nil {
		slog.Warn("[hub.HandleVerification]: unknown topic", "topic", topic)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	verification := Verification{
		Mode:      mode,
		ChannelId: submatch[1],
		Challenge: r.FormValue(youtube.HubChallenge),
	}
	if leaseSeconds := r.FormValue(youtube.HubLeaseSeconds); leaseSeconds != "" {
		lease, err := strconv.Atoi(leaseSeconds)
		if err != nil {
			slog.Warn("[hub.HandleVerification]: unable to parse lease seconds", "error", err, "source", leaseSeconds)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		verification.LeaseSeconds = lease
	}
	accepted, err := h.verifier.Verify(r.Context(), verification)
	if err != nil {
		slog.Error("[hub.HandleVerification]: unable to verify intent", "error", err, "channelId", verification.ChannelId)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if !accepted {
		slog.Info("[hub.HandleVerification]: intent rejected", "mode", mode, "channelId", verification.ChannelId)
		w.WriteHeader(http.StatusNotFound)
		return
	}
	slog.Info("[hub.HandleVerification]: intent confirmed", "mode", mode, "channelId", verification.ChannelId,
		"leaseSeconds", verification.LeaseSeconds)
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write([]byte(verification.Challenge))
	if err != nil {
		slog.Error("[hub.HandleVerification]: error during write challenge", "error", err, "channelId", verification.ChannelId)
	}
}

func (h *Handler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
	if err != nil {
		slog.Error("[hub.HandleNotification]: unable to read feed body", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if h.secret != "" {
		err := checkSignature(h.secret, r.Header.Get(youtube.HubSignatureHeader), body)
		if err != nil {
			// The hub must not learn that the message was dropped.
			slog.Warn("[hub.HandleNotification]: dropping notification", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}
	}
	notifications, err := ParseNotifications(body)
	if err != nil {
		slog.Error("[hub.HandleNotification]: unable to decode incoming feed", "error", err, "source", string(body))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	for _, notification := range notifications {
		select {
		case h.notifications <- notification:
		case <-r.Context().Done():
			slog.Warn("[hub.HandleNotification]: request finished before notification was queued",
				"contentId", notification.ContentID)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// ParseNotifications extracts notifications from an Atom document pushed by the YouTube hub.
// Entries without a video id are skipped, so a deleted-entry push yields nothing.
func ParseNotifications(body []byte) ([]Notification, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse feed")
	}
	feedChannelId := topicChannelId(feed.FeedLink)
	var notifications []Notification
	for _, item := range feed.Items {
		videoId := extension(item, "videoId")
		if videoId == "" {
			videoId = videoIdFromLink(item.Link)
		}
		if videoId == "" {
			slog.Warn("[hub.ParseNotifications]: videoId is missing", "guid", item.GUID)
			continue
		}
		channelId := extension(item, "channelId")
		if channelId == "" {
			channelId = feedChannelId
		}
		notification := Notification{
			ChannelID:  channelId,
			ContentID:  videoId,
			ContentURL: fmt.Sprintf(youtube.VideoURLFormat, videoId),
			Title:      item.Title,
		}
		if channelId != "" {
			notification.FeedURL = fmt.Sprintf(youtube.ChannelURLFormat, channelId)
		}
		if len(item.Authors) > 0 && item.Authors[0] != nil {
			notification.FeedName = item.Authors[0].Name
		}
		if notification.FeedName == "" {
			notification.FeedName = feed.Title
		}
		notifications = append(notifications, notification)
	}
	return notifications, nil
}

func extension(item *gofeed.Item, name string) string {
	values := item.Extensions[ytExtension][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func topicChannelId(feedLink string) string {
	submatch := youtube.HubTopicPattern.FindStringSubmatch(feedLink)
	if submatch == nil {
		return ""
	}
	return submatch[1]
}

func videoIdFromLink(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("v")
}

func checkSignature(secret, header string, body []byte) error {
	if !strings.HasPrefix(header, signaturePrefix) {
		return errors.WithMessage(ErrBadSignature, "missing sha1 signature")
	}
	expected, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return errors.WithMessage(ErrBadSignature, "malformed signature")
	}
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), expected) {
		return ErrBadSignature
	}
	return nil
}

// Sign returns the X-Hub-Signature value the hub sends for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}
