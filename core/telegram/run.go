package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	"github.com/m3rciful/topupbot/core/logger"
	tghelpers "github.com/m3rciful/topupbot/core/telegram/helpers"
	"github.com/m3rciful/topupbot/core/telegram/netutil"
	tgsender "github.com/m3rciful/topupbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

const defaultSendRetries = 3

// Middleware is a named global middleware passed to bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry
	// OperatorChatID receives the operator command menu when non-zero.
	OperatorChatID int64

	// Dispatcher overrides the one built from Config.Sender.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// DisableHelperDispatcher keeps helpers.SendText sending inline.
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is handed to the lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// SenderOptions maps the sender config section onto dispatcher options.
// A zero max_retries selects the default.
func SenderOptions(cfg coreconfig.SenderConfig) tgsender.Options {
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultSendRetries
	}
	return tgsender.Options{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		MaxRetries:   retries,
		RetryBackoff: time.Duration(cfg.RetryBackoffMS) * time.Millisecond,
		MaxDuration:  time.Duration(cfg.MaxDurationMS) * time.Millisecond,
	}
}

// RunTelegram builds the bot, runs it until ctx is done and then stops it.
// A cancelled ctx is a clean shutdown.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  NewPoller(cfg),
		Client:  NewHTTPClient(),
		OnError: errorLogger(ctx),
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %s", netutil.Redact(err))
	}
	logMode(ctx, cfg, time.Since(start))
	if cfg.Telegram.RunMode == coreconfig.RunModeLongpoll && !cfg.Telegram.KeepWebhook {
		clearWebhook(ctx, bot)
	}

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(SenderOptions(cfg.Sender))
	}
	if !opts.DisableHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	release := func() {
		dispatcher.Close()
		if !opts.DisableHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			bot.Handle(route.Endpoint, route.Handler)
		}
	}
	InitBotCommands(bot, reg, opts.OperatorChatID)

	rt := Runtime{Bot: bot, Dispatcher: dispatcher, Registry: reg}
	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runErr := serve(ctx, bot)

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx), rt)
	}
	release()

	if stopErr != nil {
		return stopErr
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// serve runs the poller until ctx ends or the bot stops on its own.
func serve(ctx context.Context, bot *tele.Bot) error {
	done := make(chan struct{})
	go func() {
		bot.Start()
		close(done)
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-done
		return ctx.Err()
	case <-done:
		return nil
	}
}

func errorLogger(ctx context.Context) func(error, tele.Context) {
	return func(err error, c tele.Context) {
		lctx := ctx
		if c != nil {
			lctx = tghelpers.BuildContext(c)
		}
		logger.Error(lctx, "tg", "bot.error",
			slog.String("cause", string(netutil.Classify(err))),
			slog.String("err", logger.SanitizeLimit(netutil.Redact(err), 256)),
		)
	}
}

func logMode(ctx context.Context, cfg *coreconfig.Config, took time.Duration) {
	if cfg.Telegram.RunMode == coreconfig.RunModeWebhook {
		logger.Info(ctx, "tg", "mode",
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", cfg.Webhook.Listen),
			slog.String("public_url", cfg.Webhook.URL),
			slog.Bool("secret_token", cfg.Webhook.SecretToken != ""),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return
	}
	logger.Info(ctx, "tg", "mode",
		slog.String("mode", coreconfig.RunModeLongpoll),
		slog.Duration("timeout", longPollTimeout(cfg)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
}

// clearWebhook removes a webhook left by a previous deployment; Telegram
// refuses getUpdates while one is set. Pending updates are kept.
func clearWebhook(ctx context.Context, bot *tele.Bot) {
	if err := bot.RemoveWebhook(false); err != nil {
		logger.Warn(ctx, "tg", "webhook.delete",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
		)
		return
	}
	logger.Info(ctx, "tg", "webhook.delete", slog.String("status", "ok"))
}
