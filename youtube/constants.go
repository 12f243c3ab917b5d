package youtube

import "regexp"

const (
	HubMode         = "hub.mode"
	HubTopic        = "hub.topic"
	HubChallenge    = "hub.challenge"
	HubLeaseSeconds = "hub.lease_seconds"
	HubCallback     = "hub.callback"
	HubVerify       = "hub.verify"
	HubSecret       = "hub.secret"
	HubReason       = "hub.reason"
)

const (
	HubModeSubscribe   = "subscribe"
	HubModeUnsubscribe = "unsubscribe"
	HubModeDenied      = "denied"
	HubVerifyAsync     = "async"
	HubTopicFormat     = "https://www.youtube.com/xml/feeds/videos.xml?channel_id=%v"
	HubYouTubeURL      = "https://pubsubhubbub.appspot.com/subscribe"
	// Host (with scheme), port, path.
	HubCallbackURLFormat = "%v:%v%v"
	HubSignatureHeader   = "X-Hub-Signature"
	ChannelURLFormat     = "https://www.youtube.com/channel/%v"
	VideoURLFormat       = "https://www.youtube.com/watch?v=%v"
)

var (
	HubTopicPattern = regexp.MustCompile("^https://www\\.youtube\\.com/xml/feeds/videos\\.xml\\?channel_id=([\\w-]+)$")
)
