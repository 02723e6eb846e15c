// Package cmd runs a bot process: config, bootstrap, the ops listener and
// the Telegram loop under one signal-aware context.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/topupbot/core/config"
	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/metrics"
	coretelegram "github.com/m3rciful/topupbot/core/telegram"
)

const defaultConfigEnv = "CONFIG_PATH"

// ConfigCarrier is a bot config that embeds the core sections.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the options RunTelegram is started with.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// HealthChecker backs /healthz when the app implements it.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options wires a bot into Run. LoadConfig and Bootstrap are required; the
// remaining hooks default to the core implementations.
type Options struct {
	// ConfigPath wins over ConfigEnvVar, which wins over DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	ServeOps       func(ctx context.Context, listen string, health metrics.HealthFunc) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = defaultConfigEnv
	}
	for _, p := range []string{o.ConfigPath, os.Getenv(env), o.DefaultConfigPath} {
		if p != "" {
			return p, nil
		}
	}
	return "", fmt.Errorf("cmd: no config path: set %s or a default", env)
}

// Run blocks until SIGINT/SIGTERM, the bot stopping, or the ops listener
// failing, whichever comes first.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}

	path, err := opts.configPath()
	if err != nil {
		return err
	}
	// The structured logger does not exist until Bootstrap runs.
	log.Printf("config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config: %w", err)
	}
	core := cfg.CoreConfig()
	if core == nil {
		return errors.New("cmd: config has no core section")
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap: %w", err)
	}
	defer flushLogs(opts.ShutdownLogger)

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options: %w", err)
	}
	announceLifecycle(&runOpts, time.Now())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return supervise(ctx, stop, opts, core.Metrics.Listen, healthOf(app), runOpts)
}

// supervise runs the ops listener next to the bot. A failing listener
// cancels the bot and a returning bot cancels the listener.
func supervise(ctx context.Context, stop context.CancelFunc, opts Options, listen string, health metrics.HealthFunc, runOpts coretelegram.RunOptions) error {
	serveOps := opts.ServeOps
	if serveOps == nil {
		serveOps = metrics.Serve
	}
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := serveOps(gctx, listen, health); err != nil {
			return fmt.Errorf("cmd: ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer stop()
		return run(gctx, runOpts)
	})
	return g.Wait()
}

// announceLifecycle logs readiness and shutdown around the app's own hooks.
func announceLifecycle(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := runOpts.OnStart, runOpts.OnStop
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}

func healthOf(app TelegramApp) metrics.HealthFunc {
	if hc, ok := app.(HealthChecker); ok {
		return hc.Health
	}
	return nil
}

func flushLogs(shutdown func() error) {
	if shutdown == nil {
		shutdown = logger.Shutdown
	}
	if err := shutdown(); err != nil {
		log.Printf("logger shutdown: %v", err)
	}
}
