package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/topupbot/core/bootstrap"
	coredatabase "github.com/m3rciful/topupbot/core/database"
	"github.com/m3rciful/topupbot/core/logger"
	coretelegram "github.com/m3rciful/topupbot/core/telegram"
	"github.com/m3rciful/topupbot/core/telegram/middleware"
	"github.com/m3rciful/topupbot/core/telegram/router"
	"github.com/m3rciful/topupbot/topup/bot"
	"github.com/m3rciful/topupbot/topup/dedup"
	"github.com/m3rciful/topupbot/topup/flow"
	"github.com/m3rciful/topupbot/topup/keylock"
	"github.com/m3rciful/topupbot/topup/ledger"
	"github.com/m3rciful/topupbot/topup/reconcile"
	"github.com/m3rciful/topupbot/topup/session"
	"github.com/m3rciful/topupbot/topup/store"
)

const component = "app"

// App is the assembled bot.
type App struct {
	cfg *Config

	stateDB  *sqlx.DB
	ledgerDB *sqlx.DB

	notifier *bot.Notifier
	bot      *bot.Bot
}

// Bootstrap initializes logging and storage, then assembles the App.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   &cfg.Config,
		Database: cfg.Database,
		Open:     store.Open,
	})
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, cfg, res.DB)
	if err != nil {
		if res.DB != nil {
			_ = res.DB.Close()
		}
		return nil, err
	}
	return a, nil
}

// New assembles the App over an already migrated state database.
// A nil stateDB selects the in-process stores.
func New(ctx context.Context, cfg *Config, stateDB *sqlx.DB) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}

	var (
		registry dedup.Registry
		index    reconcile.Index
	)
	if stateDB != nil {
		registry = store.NewDedupRegistry(stateDB)
		index = store.NewRequestIndex(stateDB)
	} else {
		logger.Warn(ctx, component, "state.memory",
			slog.String("reason", "proof dedup and pending requests do not survive a restart"),
		)
		registry = dedup.NewMemoryRegistry()
		index = reconcile.NewMemoryIndex()
	}

	bridge, ledgerDB, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	renderer := bot.NewRenderer(bot.RenderConfig{
		Currency: cfg.TopUp.Currency,
		HowToURL: cfg.TopUp.HowToURL,
		Methods:  cfg.TopUp.PaymentMethods,
		Note:     cfg.TopUp.PaymentNote,
	})
	notifier := bot.NewNotifier(renderer, cfg.TopUp.OperatorChatID)
	machine := flow.New(session.NewStore(), registry, index, notifier, flow.Config{MinAmount: cfg.TopUp.MinAmount})
	resolver := reconcile.NewHandler(index, bridge, notifier, keylock.New())

	return &App{
		cfg:      cfg,
		stateDB:  stateDB,
		ledgerDB: ledgerDB,
		notifier: notifier,
		bot:      bot.New(machine, resolver, index, notifier),
	}, nil
}

func openLedger(ctx context.Context, cfg LedgerConfig) (ledger.Bridge, *sqlx.DB, error) {
	if cfg.Driver == coredatabase.DriverMemory {
		logger.Warn(ctx, component, "ledger.memory", slog.Int("accounts", len(cfg.Seed)))
		return ledger.NewMemoryBridge(cfg.Seed), nil, nil
	}
	db, err := coredatabase.Connect(ctx, cfg.Database())
	if err != nil {
		return nil, nil, fmt.Errorf("app: ledger: %w", err)
	}
	bridge, err := ledger.NewSQLBridge(db, cfg.Schema())
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("app: ledger: %w", err)
	}
	return bridge, db, nil
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.bot.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}

	operatorChat := a.cfg.TopUp.OperatorChatID
	mws := coretelegram.DefaultMiddlewares(&a.cfg.Config, a.bot.OnRateLimited)
	mws = append(mws, coretelegram.Middleware{Name: "state", Use: middleware.TrackState(a.bot.State)})

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{OperatorChatID: operatorChat})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.bot, reg, router.TextOptions{OperatorChatID: operatorChat})...)

	return coretelegram.RunOptions{
		Config:         &a.cfg.Config,
		Registry:       reg,
		OperatorChatID: operatorChat,
		Middlewares:    mws,
		Routes:         routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.notifier.SetSender(rt.Bot)
			a.notifier.SetRetrier(rt.Dispatcher)
			logger.Info(ctx, component, "topup.ready",
				slog.Int64("operator_chat_id", operatorChat),
				slog.Int64("min_amount", a.cfg.TopUp.MinAmount),
				slog.String("state_driver", a.cfg.Database.Driver),
				slog.String("ledger_driver", a.cfg.Ledger.Driver),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Health reports whether the databases answer.
func (a *App) Health(ctx context.Context) error {
	if a.stateDB != nil {
		if err := a.stateDB.PingContext(ctx); err != nil {
			return fmt.Errorf("state db: %w", err)
		}
	}
	if a.ledgerDB != nil {
		if err := a.ledgerDB.PingContext(ctx); err != nil {
			return fmt.Errorf("ledger db: %w", err)
		}
	}
	return nil
}

// Close releases database handles.
func (a *App) Close() error {
	var errs []error
	if a.stateDB != nil {
		errs = append(errs, a.stateDB.Close())
	}
	if a.ledgerDB != nil {
		errs = append(errs, a.ledgerDB.Close())
	}
	return errors.Join(errs...)
}
