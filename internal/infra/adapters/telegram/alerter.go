package telegram

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/infra/metrics"
	"telegram-fortune-reading/internal/infra/redis"
)

var _ adapter.OperatorAlerter = (*Alerter)(nil)

// Alerter pushes failure notices to the admin chats. Alerts are
// best-effort and rate-limited per error signature so a crash loop
// produces one message per window, not hundreds. It never returns an
// error to the caller: a failed alert must not fail the job.
type Alerter struct {
	bot     botAPI
	admins  []int64
	limiter *redis.RateLimiter
	window  time.Duration
	limit   int
	log     *zerolog.Logger
}

func NewAlerter(bot botAPI, admins []int64, limiter *redis.RateLimiter, window time.Duration, limit int, logger *zerolog.Logger) *Alerter {
	if window <= 0 {
		window = time.Minute
	}
	if limit <= 0 {
		limit = 1
	}
	l := logger.With().Str("component", "OperatorAlerter").Logger()
	return &Alerter{bot: bot, admins: admins, limiter: limiter, window: window, limit: limit, log: &l}
}

func (a *Alerter) Alert(ctx context.Context, err error, actx adapter.AlertContext) {
	if err == nil || len(a.admins) == 0 {
		return
	}

	sig := signature(actx.Queue, err)
	if a.limiter != nil {
		ok, lerr := a.limiter.Allow(ctx, redis.AlertKey(sig), a.limit, a.window)
		if lerr != nil {
			// Fail open: a broken limiter should not silence alerts.
			a.log.Warn().Err(lerr).Msg("alert rate limiter unavailable")
		} else if !ok {
			metrics.IncAlert("suppressed")
			return
		}
	}

	text := formatAlert(err, actx)
	for _, chatID := range a.admins {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, serr := a.bot.Send(msg); serr != nil {
			metrics.IncAlert("error")
			a.log.Error().Err(serr).Int64("chat_id", chatID).Msg("operator alert not delivered")
			continue
		}
		metrics.IncAlert("sent")
	}
}

// signature buckets alerts: same queue plus same error text share a
// window regardless of which job hit it.
func signature(queue string, err error) string {
	h := sha1.Sum([]byte(queue + "|" + err.Error()))
	return hex.EncodeToString(h[:8])
}

func formatAlert(err error, actx adapter.AlertContext) string {
	var b strings.Builder
	b.WriteString("⚠️ job failure\n")
	fmt.Fprintf(&b, "queue: %s\n", actx.Queue)
	if actx.JobID != "" {
		fmt.Fprintf(&b, "job: %s\n", actx.JobID)
	}
	if actx.UserID != "" {
		fmt.Fprintf(&b, "user: %s\n", actx.UserID)
	}
	if actx.ReadingID != "" {
		fmt.Fprintf(&b, "reading: %s\n", actx.ReadingID)
	}
	fmt.Fprintf(&b, "error: %v", err)
	return b.String()
}
