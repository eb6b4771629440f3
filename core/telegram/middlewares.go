package telegram

import (
	"time"

	coreconfig "monobot/core/config"
	"monobot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Middleware pairs a bot-wide middleware with a name for wiring logs.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// DefaultMiddlewares assembles the standard bot-wide chain: panic recovery
// first, then rate limiting (when configured), then update logging and
// outbound message metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, v := range cfg.RateLimit.ExcludeUpdates {
			exclude[v] = struct{}{}
		}
		mws = append(mws, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   exclude,
				OnLimited: onLimited,
			}),
		})
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)
	return mws
}
