// Package telegram adapts job results to Telegram: the paced delivery
// channel and the rate-limited operator alerter.
package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/infra/metrics"
	"telegram-fortune-reading/internal/infra/redis"
)

// botAPI is the slice of tgbotapi.BotAPI the adapters use; tests stub it.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ adapter.DeliveryChannel = (*Sender)(nil)

// telegramMaxMessageLen is Telegram's hard per-message limit in runes.
const telegramMaxMessageLen = 4096

// paceWindow and paceLimit throttle sends per chat so multi-chunk
// readings do not trip Telegram's flood control.
const (
	paceWindow = time.Second
	paceLimit  = 1
)

// Sender delivers text to chats in order, pacing per chat through a
// shared Redis window so multiple workers stay under flood limits.
type Sender struct {
	bot     botAPI
	limiter *redis.RateLimiter
	log     *zerolog.Logger
}

func NewSender(bot botAPI, limiter *redis.RateLimiter, logger *zerolog.Logger) *Sender {
	l := logger.With().Str("component", "TelegramSender").Logger()
	return &Sender{bot: bot, limiter: limiter, log: &l}
}

func NewBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return bot, nil
}

func (s *Sender) MaxMessageLen() int { return telegramMaxMessageLen }

func (s *Sender) Send(ctx context.Context, chatID int64, text string, f adapter.Format) error {
	if err := s.pace(ctx, chatID); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = f.ParseMode
	msg.DisableWebPagePreview = f.DisablePreview
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	metrics.IncChunkSent()
	return nil
}

// pace blocks until the per-chat window admits another send. A broken
// limiter fails open: delivery matters more than pacing.
func (s *Sender) pace(ctx context.Context, chatID int64) error {
	if s.limiter == nil {
		return nil
	}
	key := redis.ChatSendKey(chatID)
	for {
		ok, err := s.limiter.Allow(ctx, key, paceLimit, paceWindow)
		if err != nil {
			s.log.Warn().Err(err).Int64("chat_id", chatID).Msg("send pacing unavailable")
			return nil
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
