package telegram

import (
	"context"
	"fmt"
	"log/slog"

	coreconfig "monobot/core/config"
	"monobot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Route binds a Telebot endpoint to a prepared handler.
type Route struct {
	Endpoint interface{}
	Handler  tele.HandlerFunc
}

// Runtime exposes the live bot pieces to startup and shutdown hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// RunOptions carries everything RunTelegram needs to bring a bot up.
type RunOptions struct {
	Config     *coreconfig.Config
	Registry   *Registry
	Middleware []Middleware
	Routes     []Route

	// DisableWebhookCleanup skips the webhook removal normally done before
	// long polling starts.
	DisableWebhookCleanup bool

	OnStart func(ctx context.Context, rt *Runtime)
	OnStop  func(ctx context.Context, rt *Runtime)
}

// RunTelegram starts the bot and blocks until ctx is cancelled.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		return fmt.Errorf("telegram: nil config")
	}

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
	})
	if err != nil {
		return fmt.Errorf("telegram: create bot: %w", err)
	}

	switch cfg.Telegram.RunMode {
	case RunModeWebhook:
		logger.TG.LogAttrs(logger.Background(), slog.LevelInfo, "mode",
			slog.String("mode", RunModeWebhook),
			slog.String("listen", fmt.Sprintf("%s:%d", cfg.Webhook.Listen, cfg.Webhook.Port)),
			slog.String("public_url", cfg.Webhook.URL),
		)
	default:
		logger.TG.LogAttrs(logger.Background(), slog.LevelInfo, "mode",
			slog.String("mode", RunModeLongpoll),
		)
		if !opts.DisableWebhookCleanup {
			dropPendingWebhook(bot)
		}
	}

	for _, mw := range opts.Middleware {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
		logger.TWire.LogAttrs(logger.Background(), slog.LevelDebug, "middleware",
			slog.String("event", "use"),
			slog.String("handler", mw.Name),
		)
	}

	for _, r := range opts.Routes {
		bot.Handle(r.Endpoint, r.Handler)
	}

	if opts.Registry != nil {
		InitBotCommands(bot, opts.Registry)
	}

	rt := &Runtime{Bot: bot, Registry: opts.Registry}
	if opts.OnStart != nil {
		opts.OnStart(ctx, rt)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		bot.Start()
	}()

	<-ctx.Done()
	bot.Stop()
	<-done

	if opts.OnStop != nil {
		opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	return nil
}

// dropPendingWebhook removes a previously registered webhook so long polling
// does not conflict with it.
func dropPendingWebhook(bot *tele.Bot) {
	if err := bot.RemoveWebhook(true); err != nil {
		logger.TG.LogAttrs(logger.Background(), slog.LevelWarn, "webhook.cleanup_failed",
			slog.String("err", err.Error()),
		)
	}
}
