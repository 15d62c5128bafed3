package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/ashureev/shsh-autopilot/internal/bot"
)

const (
	// TransportTelegram names events that arrive from Telegram.
	TransportTelegram = "telegram"

	// Telegram caps messages at 4096 UTF-16 units; limits here are counted in
	// runes and a rune takes at most two units.
	telegramMaxMessageChars = 2048
	telegramPollTimeoutSecs = 30
)

// messageSender is the slice of the Telegram API the sinks need.
type messageSender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// telegramSink posts plain text to one chat.
type telegramSink struct {
	sender messageSender
	chatID int64
}

func (s telegramSink) Send(ctx context.Context, text string) error {
	if _, err := s.sender.SendMessage(ctx, tu.Message(tu.ID(s.chatID), text)); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", s.chatID, err)
	}
	return nil
}

func (s telegramSink) MaxMessageLength() int { return telegramMaxMessageChars }

// TelegramChannel feeds Telegram messages to a Handler via long polling.
type TelegramChannel struct {
	bot     *telego.Bot
	handler Handler
	logger  *slog.Logger
}

// NewTelegramChannel creates a channel for the bot token. httpClient may be
// nil; pass one to route through a proxy.
func NewTelegramChannel(token string, httpClient *http.Client, handler Handler, logger *slog.Logger) (*TelegramChannel, error) {
	var opts []telego.BotOption
	if httpClient != nil {
		opts = append(opts, telego.WithHTTPClient(httpClient))
	}
	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TelegramChannel{bot: bot, handler: handler, logger: logger.With("transport", TransportTelegram)}, nil
}

// Start begins long polling. It returns once polling is running; the
// handler stops when ctx is done.
func (c *TelegramChannel) Start(ctx context.Context) error {
	c.logger.Info("Starting Telegram bot (polling mode)")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: telegramPollTimeoutSecs,
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	bh, err := th.NewBotHandler(c.bot, updates)
	if err != nil {
		return fmt.Errorf("create bot handler: %w", err)
	}

	bh.HandleMessage(func(_ *th.Context, message telego.Message) error {
		ev, ok := telegramEvent(c.bot, message)
		if !ok {
			return nil
		}
		c.handler.HandleIncoming(ctx, ev)
		return nil
	}, th.AnyMessage())

	go bh.Start()

	go func() {
		<-ctx.Done()
		bh.Stop()
		c.logger.Info("Telegram bot stopped")
	}()

	c.logger.Info("Telegram bot connected", "username", c.bot.Username())
	return nil
}

// telegramEvent converts a message into an event. Messages without a human
// author or text are skipped.
func telegramEvent(sender messageSender, message telego.Message) (bot.Event, bool) {
	user := message.From
	if user == nil || user.IsBot || message.Text == "" {
		return bot.Event{}, false
	}
	username := user.Username
	if username == "" {
		username = user.FirstName
	}
	return bot.Event{
		Transport: TransportTelegram,
		UserID:    strconv.FormatInt(user.ID, 10),
		Username:  username,
		Text:      message.Text,
		Direct:    message.Chat.Type == telego.ChatTypePrivate,
		Reply:     telegramSink{sender: sender, chatID: message.Chat.ID},
		// A private chat with a user has the user's ID.
		DM: telegramSink{sender: sender, chatID: user.ID},
	}, true
}
