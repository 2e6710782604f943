// Package app wires configuration, storage, transport and the funnel service
// into a runnable telegram bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/funnelbot/core/bootstrap"
	"github.com/m3rciful/funnelbot/core/logger"
	coretelegram "github.com/m3rciful/funnelbot/core/telegram"
	tgsender "github.com/m3rciful/funnelbot/core/telegram/sender"
	"github.com/m3rciful/funnelbot/internal/bot"
	"github.com/m3rciful/funnelbot/internal/broadcast"
	"github.com/m3rciful/funnelbot/internal/config"
	"github.com/m3rciful/funnelbot/internal/messages"
	"github.com/m3rciful/funnelbot/internal/service"
	"github.com/m3rciful/funnelbot/internal/store"
	"github.com/m3rciful/funnelbot/internal/transport"
	"github.com/m3rciful/funnelbot/internal/trigger"
	"github.com/m3rciful/funnelbot/internal/warmup"
)

const component = "app"

// shutdownTimeout bounds waiting for in-flight trigger actions.
const shutdownTimeout = 10 * time.Second

// App holds the composed bot.
type App struct {
	cfg      *config.Config
	infra    *bootstrap.Result
	store    store.Store
	sender   *transport.Telegram
	triggers *trigger.Engine
	scanner  *warmup.Scanner
	funnel   *service.Funnel
	handlers *bot.Handlers
	registry *coretelegram.Registry

	stopScanner context.CancelFunc
	scannerDone sync.WaitGroup
}

// Options overrides infrastructure steps, mostly for tests.
type Options struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
}

// New bootstraps infrastructure and builds every component.
func New(cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	boot := opts.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	infra, err := boot(bootstrap.Options{
		Config:       cfg.CoreConfig(),
		Database:     cfg.Database,
		SkipDatabase: !cfg.UsesDatabase(),
	})
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, infra: infra}
	if err := a.build(); err != nil {
		_ = infra.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build() error {
	ctx := logger.Background()
	fc := a.cfg.Funnel

	if a.infra.DB != nil {
		a.store = store.NewPostgres(a.infra.DB)
	} else {
		a.store = store.NewMemory()
		logger.Warn(ctx, component, "store.memory",
			slog.String("cause", "no database configured; records are lost on restart"),
		)
	}

	texts, err := messages.NewCatalog(a.cfg.Messages)
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	a.sender = transport.NewTelegram(transport.TelegramOptions{MaxRetries: fc.SendRetries})
	a.triggers = trigger.New(trigger.Options{})

	a.funnel, err = service.New(service.Config{
		CodeWord:      fc.CodeWord,
		DocumentPath:  fc.DocumentPath,
		OfferDelay:    fc.OfferDelay(),
		AdminID:       fc.AdminID,
		AdminUsername: fc.AdminUsername,
		Policy:        fc.Policy(),
	}, service.Deps{
		Store:       a.store,
		Sender:      a.sender,
		Texts:       texts,
		Triggers:    a.triggers,
		Broadcaster: broadcast.New(a.sender, broadcast.Options{Pause: fc.BroadcastPause()}),
	})
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}

	if fc.Policy().ContactCapture {
		a.scanner, err = warmup.New(a.store, a.funnel, warmup.Config{
			Interval: fc.CheckInterval(),
			Warmup1:  fc.Warmup1(),
			Warmup2:  fc.Warmup2(),
		}, nil)
		if err != nil {
			return fmt.Errorf("app: %w", err)
		}
	}

	a.handlers = bot.New(a.funnel, texts, nil)
	a.registry = coretelegram.NewRegistry()
	if err := a.handlers.Register(a.registry); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	logger.Info(ctx, component, "build",
		slog.String("status", "ok"),
		slog.String("store", fc.Store),
		slog.Bool("contact_capture", fc.Policy().ContactCapture),
		slog.Int64("offer_delay_ms", fc.OfferDelay().Milliseconds()),
	)
	return nil
}

// Funnel exposes the service, mostly for tests.
func (a *App) Funnel() *service.Funnel {
	return a.funnel
}

// TelegramRunOptions implements the runner contract.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	routes := a.handlers.Routes(a.registry, a.cfg.Funnel.AdminID)
	return coretelegram.RunOptions{
		Config:            core,
		Registry:          a.registry,
		DispatcherOptions: tgsender.Options{MaxRetries: a.cfg.Funnel.SendRetries},
		Middlewares:       coretelegram.DefaultMiddlewares(core, nil),
		Routes:            routes,
		OnStart:           a.onStart,
		OnStop:            a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot == nil {
		return errors.New("app: runtime without bot")
	}
	a.sender.Bind(rt.Bot)
	if a.scanner == nil {
		return nil
	}

	scanCtx, cancel := context.WithCancel(ctx)
	a.stopScanner = cancel
	a.scannerDone.Add(1)
	go func() {
		defer a.scannerDone.Done()
		if err := a.scanner.Run(scanCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(scanCtx, component, "scanner.stopped", slog.String("err", err.Error()))
		}
	}()
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.stopScanner != nil {
		a.stopScanner()
	}
	a.scannerDone.Wait()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	var errs []error
	if err := a.triggers.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("app: trigger shutdown: %w", err))
	}
	if err := a.infra.Close(); err != nil {
		errs = append(errs, fmt.Errorf("app: close database: %w", err))
	}
	return errors.Join(errs...)
}
