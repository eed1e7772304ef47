package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/valpere/nebo/pkg/metrics"
)

// UserRateLimiter throttles inbound requests per key (Telegram user id or client IP)
type UserRateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewUserRateLimiter(r rate.Limit, b int) *UserRateLimiter {
	return &UserRateLimiter{
		limiters: make(map[string]*rateLimiterEntry),
		rate:     r,
		burst:    b,
	}
}

func (rl *UserRateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[key]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastAccess = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// StartCleanup drops limiters idle for longer than idle, checking every interval, until ctx is done
func (rl *UserRateLimiter) StartCleanup(ctx context.Context, interval, idle time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rl.cleanup(now.Add(-idle))
			}
		}
	}()
}

func (rl *UserRateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, key)
		}
	}
}

// updateHandler adapts a plain function into a dispatcher handler that sees every update
type updateHandler struct {
	name string
	fn   func(bot *gotgbot.Bot, ctx *ext.Context) error
}

func (h updateHandler) CheckUpdate(_ *gotgbot.Bot, _ *ext.Context) bool { return true }

func (h updateHandler) HandleUpdate(bot *gotgbot.Bot, ctx *ext.Context) error {
	return h.fn(bot, ctx)
}

func (h updateHandler) Name() string { return h.name }

// UpdateType labels an update for logs and metrics
func UpdateType(ctx *ext.Context) string {
	switch {
	case ctx.CallbackQuery != nil:
		return "callback"
	case ctx.Message != nil && ctx.Message.Location != nil:
		return "location"
	case ctx.Message != nil && len(ctx.Message.Text) > 0 && ctx.Message.Text[0] == '/':
		return "command"
	case ctx.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// Logging logs each update before it reaches the command handlers
func Logging(logger *zerolog.Logger) ext.Handler {
	return updateHandler{name: "logging", fn: func(bot *gotgbot.Bot, ctx *ext.Context) error {
		event := logger.Debug().Str("update_type", UpdateType(ctx))
		if user := ctx.EffectiveUser; user != nil {
			event = event.Int64("user_id", user.Id).Str("username", user.Username)
		}
		if chat := ctx.EffectiveChat; chat != nil {
			event = event.Int64("chat_id", chat.Id)
		}
		if ctx.CallbackQuery != nil {
			event = event.Str("callback", ctx.CallbackQuery.Data)
		}
		event.Msg("Update received")
		return nil
	}}
}

// Metrics counts updates by type
func Metrics(m *metrics.Metrics) ext.Handler {
	return updateHandler{name: "metrics", fn: func(bot *gotgbot.Bot, ctx *ext.Context) error {
		m.IncrementCounter(metrics.BotUpdatesTotal, UpdateType(ctx))
		return nil
	}}
}

// RateLimit stops processing of updates from users over their budget
func RateLimit(rl *UserRateLimiter, m *metrics.Metrics) ext.Handler {
	return updateHandler{name: "rate_limit", fn: func(bot *gotgbot.Bot, ctx *ext.Context) error {
		user := ctx.EffectiveUser
		if user == nil {
			return nil
		}
		if rl.Allow(strconv.FormatInt(user.Id, 10)) {
			return nil
		}

		m.IncrementCounter(metrics.BotErrorsTotal, "rate_limited")
		if msg := ctx.EffectiveMessage; msg != nil {
			if _, err := msg.Reply(bot, "Too many requests. Please slow down and try again in a moment.", nil); err != nil {
				return err
			}
		}
		return ext.EndGroups
	}}
}

// GinRateLimit applies the limiter per client IP to HTTP API routes
func GinRateLimit(rl *UserRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// GinLogging logs each HTTP request after it completes
func GinLogging(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}
