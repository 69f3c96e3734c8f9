package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quakewatch/internal/domain"
	"github.com/couchcryptid/quakewatch/internal/observability"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Publisher delivers composed messages to one Telegram channel.
// It implements pipeline.Publisher.
type Publisher struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	channel string // @username when chatID is zero
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher authenticates the bot token with getMe. channel is either a
// numeric chat id or an @channel username. An empty endpoint uses the public Bot API.
func NewPublisher(token, channel, endpoint string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) (*Publisher, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	p := &Publisher{bot: bot, logger: logger, metrics: metrics}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		p.chatID = id
	} else {
		p.channel = channel
	}
	logger.Info("telegram bot authorized", "bot", bot.Self.UserName, "channel", channel)
	return p, nil
}

// Publish sends msg as a photo with caption when it carries one, as a text
// message otherwise. Both use HTML parse mode.
func (p *Publisher) Publish(ctx context.Context, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	kind := "text"
	var c tgbotapi.Chattable
	if msg.HasPhoto() {
		kind = "photo"
		c = p.photo(msg)
	} else {
		c = p.text(msg)
	}

	sent, err := p.bot.Send(c)
	if err != nil {
		p.metrics.Deliveries.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("telegram send %s: %w", kind, err)
	}
	p.metrics.Deliveries.WithLabelValues(kind, "success").Inc()
	p.logger.Info("message delivered", "kind", kind, "message_id", sent.MessageID)
	return nil
}

func (p *Publisher) text(msg domain.Message) tgbotapi.MessageConfig {
	var m tgbotapi.MessageConfig
	if p.channel != "" {
		m = tgbotapi.NewMessageToChannel(p.channel, msg.Body)
	} else {
		m = tgbotapi.NewMessage(p.chatID, msg.Body)
	}
	m.ParseMode = tgbotapi.ModeHTML
	return m
}

func (p *Publisher) photo(msg domain.Message) tgbotapi.PhotoConfig {
	file := tgbotapi.FileBytes{Name: msg.PhotoName, Bytes: msg.Photo}
	var m tgbotapi.PhotoConfig
	if p.channel != "" {
		m = tgbotapi.NewPhotoToChannel(p.channel, file)
	} else {
		m = tgbotapi.NewPhoto(p.chatID, file)
	}
	m.Caption = msg.Body
	m.ParseMode = tgbotapi.ModeHTML
	return m
}
