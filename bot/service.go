package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	tele "gopkg.in/telebot.v3"

	"youtube-notification-bot/db"
	"youtube-notification-bot/subscription"
	"youtube-notification-bot/templates"
)

const handleTimeout = time.Minute

var ErrMissingChatContext = errors.New("message has no chat")

type Coordinator interface {
	Add(ctx context.Context, chatId int64, channelUrl string) error
	Remove(ctx context.Context, chatId int64, channelUrl string) error
	List(ctx context.Context, chatId int64) ([]db.Subscription, error)
}

type Reply struct {
	Text string
	Mode tele.ParseMode
}

type Service struct {
	ctx         context.Context
	coordinator Coordinator
}

// NewService creates a Service whose handlers run with contexts derived from ctx.
func NewService(ctx context.Context, coordinator Coordinator) *Service {
	return &Service{ctx: ctx, coordinator: coordinator}
}

// OnText answers messages addressed to the bot and ignores everything else.
func (s *Service) OnText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		slog.Error("[bot.OnText]: unable to handle message", "error", ErrMissingChatContext)
		return nil
	}
	ctx, cancel := context.WithTimeout(s.ctx, handleTimeout)
	defer cancel()
	reply, ok := s.Handle(ctx, chat.ID, c.Text())
	if !ok {
		return nil
	}
	if reply.Mode != "" {
		return c.Send(reply.Text, reply.Mode)
	}
	return c.Send(reply.Text)
}

func (s *Service) OnHelp(c tele.Context) error {
	return c.Send(templates.Help, tele.ModeHTML)
}

// Handle executes the command in text for the chat. ok is false when nothing should be sent.
func (s *Service) Handle(ctx context.Context, chatId int64, text string) (reply Reply, ok bool) {
	command, err := ParseCommand(text)
	if errors.Is(err, ErrNotAddressed) {
		return Reply{}, false
	}
	if err != nil {
		slog.Error("[bot.Handle]: unable to parse command", "error", err, "chatId", chatId, "text", text)
		return Reply{}, false
	}
	switch command := command.(type) {
	case Add:
		return Reply{Text: s.add(ctx, chatId, command.URL)}, true
	case Remove:
		return Reply{Text: s.remove(ctx, chatId, command.URL)}, true
	case List:
		return Reply{Text: s.list(ctx, chatId)}, true
	case Help:
		return Reply{Text: templates.Help, Mode: tele.ModeHTML}, true
	case Unknown:
		slog.Debug("[bot.Handle]: unknown directive", "chatId", chatId, "directive", command.Directive)
		return Reply{Text: templates.UnknownCommand}, true
	}
	return Reply{}, false
}

func (s *Service) add(ctx context.Context, chatId int64, channelUrl string) string {
	if channelUrl == "" {
		return fmt.Sprintf(templates.EmptyUrl, directiveAdd)
	}
	err := s.coordinator.Add(ctx, chatId, channelUrl)
	switch {
	case err == nil:
		return fmt.Sprintf(templates.AddSuccess, channelUrl)
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		return templates.AlreadySubscribed
	case errors.Is(err, subscription.ErrChannelUnavailable):
		slog.Warn("[bot.add]: channel lookup unavailable", "error", err, "chatId", chatId, "url", channelUrl)
		return templates.ChannelUnavailable
	default:
		slog.Error("[bot.add]: unable to add subscription", "error", err, "chatId", chatId, "url", channelUrl)
		return templates.AddError
	}
}

func (s *Service) remove(ctx context.Context, chatId int64, channelUrl string) string {
	if channelUrl == "" {
		return fmt.Sprintf(templates.EmptyUrl, directiveRemove)
	}
	err := s.coordinator.Remove(ctx, chatId, channelUrl)
	if err != nil {
		slog.Error("[bot.remove]: unable to remove subscription", "error", err, "chatId", chatId, "url", channelUrl)
		return templates.RemoveError
	}
	return fmt.Sprintf(templates.RemoveSuccess, channelUrl)
}

func (s *Service) list(ctx context.Context, chatId int64) string {
	subs, err := s.coordinator.List(ctx, chatId)
	if err != nil {
		slog.Error("[bot.list]: unable to list subscriptions", "error", err, "chatId", chatId)
		return templates.UnexpectedError
	}
	if len(subs) == 0 {
		return templates.NoChannels
	}
	lines := make([]string, 0, len(subs))
	for _, sub := range subs {
		lines = append(lines, fmt.Sprintf(templates.ChannelList, sub.ChannelUrl))
	}
	return strings.Join(lines, "\n")
}
