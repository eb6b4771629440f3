package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "monobot/core/telegram"
	"monobot/core/telegram/commands"
	tghelpers "monobot/core/telegram/helpers"
	"monobot/core/telegram/router"
	"monobot/internal/bot/flow"
	"monobot/internal/config"
	"monobot/internal/service"
	"monobot/internal/session"
)

// App binds the conversation flow to Telegram endpoints.
type App struct {
	cfg   *config.AppConfig
	flow  *flow.Flow
	cache *session.Cache
	reg   *tg.Registry
}

func NewApp(cfg *config.AppConfig, fl *flow.Flow, cache *session.Cache) *App {
	a := &App{
		cfg:   cfg,
		flow:  fl,
		cache: cache,
		reg:   tg.NewRegistry(),
	}
	a.registerCommands()
	return a
}

func (a *App) registerCommands() {
	a.reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Почати роботу з ботом",
	})
	a.reg.RegisterCommand("/connect", commands.Command{
		Handler:     a.handleConnect,
		Description: "Підключити токен Monobank",
	})
	a.reg.RegisterCommand("/me", commands.Command{
		Handler:     a.handleMe,
		Description: "Показати баланс",
	})
	a.reg.RegisterCommand("/select", commands.Command{
		Handler:     a.handleSelect,
		Description: "Обрати основний рахунок",
	})
	a.reg.RegisterCommand("/debug", commands.Command{
		Handler:     a.handleDebug,
		Description: "Службова інформація",
		AdminOnly:   true,
		Hidden:      true,
	})
	a.reg.SetTextFallback(a.handleText)
}

// TelegramRunOptions assembles the full transport wiring for RunTelegram.
func (a *App) TelegramRunOptions() tg.RunOptions {
	core := &a.cfg.Config
	routes := router.CommandRoutes(a.reg, router.CommandRouteOptions{
		AdminID: core.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.reg, router.TextOptions{})...)

	return tg.RunOptions{
		Config:     core,
		Registry:   a.reg,
		Middleware: tg.DefaultMiddlewares(core, nil),
		Routes:     routes,
	}
}

func senderProfile(c tele.Context) service.Profile {
	user := c.Sender()
	if user == nil {
		return service.Profile{}
	}
	name := strings.TrimSpace(strings.TrimSpace(user.FirstName) + " " + strings.TrimSpace(user.LastName))
	return service.Profile{
		TelegramID:   user.ID,
		Username:     user.Username,
		Name:         name,
		LanguageCode: user.LanguageCode,
		IsPremium:    user.IsPremium,
	}
}

// reply sends the single outbound message and keeps the flow error for the
// handler summary log.
func reply(c tele.Context, text string, flowErr error) error {
	if text != "" {
		if sendErr := tghelpers.SendText(c, text); sendErr != nil {
			return sendErr
		}
	}
	return flowErr
}

func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, err := a.flow.Start(ctx)
	return reply(c, text, err)
}

func (a *App) handleConnect(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, err := a.flow.Connect(ctx)
	return reply(c, text, err)
}

func (a *App) handleMe(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, err := a.flow.Me(ctx, senderProfile(c).TelegramID)
	return reply(c, text, err)
}

func (a *App) handleSelect(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, err := a.flow.Select(ctx, senderProfile(c).TelegramID)
	return reply(c, text, err)
}

func (a *App) handleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	text, err := a.flow.HandleText(ctx, senderProfile(c), c.Text())
	return reply(c, text, err)
}

// handleDebug reports session cache occupancy to the admin.
// "/debug purge" drops every cached session.
func (a *App) handleDebug(c tele.Context) error {
	if strings.EqualFold(strings.TrimSpace(c.Message().Payload), "purge") {
		n := a.cache.Len()
		a.cache.Purge()
		return tghelpers.SendText(c, fmt.Sprintf("purged %d sessions", n))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "sessions: %d\n", a.cache.Len())
	for _, u := range a.cache.Snapshot() {
		fmt.Fprintf(&b, "%d seq=%d token=%t awaiting=%t main=%q\n",
			u.TelegramID, u.SequenceID, u.HasToken(), u.AwaitingSelection, u.MainAccountID)
	}
	return tghelpers.SendText(c, b.String())
}
