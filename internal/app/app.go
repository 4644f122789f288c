// Package app wires all Waveform subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and Shutdown
// tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithContentStore, WithPurchaseStore, etc.). When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/elfinch/waveform/internal/catalog"
	"github.com/elfinch/waveform/internal/config"
	"github.com/elfinch/waveform/internal/content"
	"github.com/elfinch/waveform/internal/health"
	"github.com/elfinch/waveform/internal/narrate"
	"github.com/elfinch/waveform/internal/payment"
	"github.com/elfinch/waveform/internal/resilience"
	"github.com/elfinch/waveform/internal/scriptgen"
	"github.com/elfinch/waveform/internal/server"
	"github.com/elfinch/waveform/pkg/audio"
	"github.com/elfinch/waveform/pkg/provider/image"
	"github.com/elfinch/waveform/pkg/provider/llm"
	"github.com/elfinch/waveform/pkg/provider/tts"
)

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	TTS   tts.Provider
	LLM   llm.Provider
	Image image.Provider
}

// App owns all subsystem lifetimes and serves the storefront.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems, initialised in New and torn down in Shutdown.
	catalog   *catalog.Catalog
	store     content.Store
	purchases payment.PurchaseStore
	pay       *payment.Service
	scripts   scriptgen.Generator
	narrator  *narrate.Manager
	httpSrv   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// checks feed the /readyz readiness probe.
	checks []health.Checker

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithContentStore injects an asset store instead of creating one from config.
func WithContentStore(s content.Store) Option {
	return func(a *App) { a.store = s }
}

// WithPurchaseStore injects a purchase store instead of creating one from config.
func WithPurchaseStore(s payment.PurchaseStore) Option {
	return func(a *App) { a.purchases = s }
}

// WithScriptGenerator injects a script generator instead of building one from
// the configured LLM provider.
func WithScriptGenerator(g scriptgen.Generator) Option {
	return func(a *App) { a.scripts = g }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: catalog construction, store
// connection, payment service setup, script generator assembly, and the
// narration manager.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("app: build catalog: %w", err)
	}
	a.catalog = cat

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initPayment(); err != nil {
		return nil, fmt.Errorf("app: init payment: %w", err)
	}
	a.initScripts()
	if err := a.initNarrator(); err != nil {
		return nil, fmt.Errorf("app: init narrator: %w", err)
	}
	if err := a.initServer(); err != nil {
		return nil, fmt.Errorf("app: init server: %w", err)
	}

	return a, nil
}

// initStores sets up the asset and purchase stores. With a DSN configured
// both run on a shared PostgreSQL pool; without one both fall back to memory.
func (a *App) initStores(ctx context.Context) error {
	if a.store != nil && a.purchases != nil {
		return nil // both injected
	}

	dsn := a.cfg.Store.PostgresDSN
	if dsn == "" {
		if a.store == nil {
			a.store = content.NewMemoryStore()
		}
		if a.purchases == nil {
			a.purchases = payment.NewMemoryPurchases()
		}
		slog.Info("using in-memory stores, assets and purchases will not survive a restart")
		return nil
	}

	pg, err := content.NewPostgresStore(ctx, dsn)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	a.checks = append(a.checks, health.Checker{
		Name:  "database",
		Check: func(ctx context.Context) error { return pg.Pool().Ping(ctx) },
	})
	if a.store == nil {
		a.store = pg
	}
	if a.purchases == nil {
		pp, err := payment.NewPostgresPurchasesFromPool(ctx, pg.Pool())
		if err != nil {
			return err
		}
		a.purchases = pp
	}
	slog.Info("connected to PostgreSQL store")
	return nil
}

// initPayment sets up the Stripe service when a secret key is configured.
func (a *App) initPayment() error {
	if a.cfg.Payment.StripeSecretKey == "" {
		slog.Warn("stripe is not configured, checkout endpoints are disabled")
		return nil
	}
	svc, err := payment.NewService(payment.Config{
		SecretKey:     a.cfg.Payment.StripeSecretKey,
		WebhookSecret: a.cfg.Payment.StripeWebhookSecret,
		SuccessURL:    a.cfg.Payment.SuccessURL,
		CancelURL:     a.cfg.Payment.CancelURL,
	}, a.catalog, a.purchases)
	if err != nil {
		return err
	}
	a.pay = svc
	return nil
}

// initScripts builds the script generator: the templated generator alone, or
// the LLM generator with the templated one as a fallback.
func (a *App) initScripts() {
	if a.scripts != nil {
		return
	}

	templated := scriptgen.NewTemplated(0)
	if a.providers.LLM == nil {
		a.scripts = templated
		return
	}

	fb := resilience.NewScriptFallback(
		scriptgen.NewLLM(a.providers.LLM),
		a.cfg.Providers.LLM.Name,
		resilience.FallbackConfig{},
	)
	fb.AddFallback("templated", templated)
	a.scripts = fb
}

// initNarrator builds the narration manager around the configured TTS
// provider, behind a circuit breaker with silent audio as the terminal
// fallback. Without any provider, the silent synthesizer keeps narration
// functional for development runs.
func (a *App) initNarrator() error {
	var synth tts.Provider
	if a.providers.TTS != nil {
		fb := resilience.NewTTSFallback(a.providers.TTS, a.cfg.Providers.TTS.Name, resilience.FallbackConfig{})
		fb.AddFallback("silence", &tts.Silence{})
		synth = fb
	} else {
		slog.Warn("no tts provider configured, narration uses silent placeholder audio")
		synth = &tts.Silence{}
	}

	m, err := narrate.NewManager(narrate.ManagerConfig{
		Synth:         synth,
		Player:        &audio.ClockPlayer{},
		PrefetchAhead: a.cfg.Narrate.PrefetchAhead,
	})
	if err != nil {
		return err
	}
	a.narrator = m
	return nil
}

// initServer assembles the HTTP surface.
func (a *App) initServer() error {
	srv, err := server.New(server.Config{
		Catalog:   a.catalog,
		Store:     a.store,
		Narrator:  a.narrator,
		Scripts:   a.scripts,
		Payment:   a.pay,
		Purchases: a.purchases,
		Images:    a.providers.Image,
		Health:    health.New(a.checks...),
	})
	if err != nil {
		return err
	}

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Run serves HTTP and blocks until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.httpSrv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("serving", "addr", a.httpSrv.Addr, "books", a.catalog.Len())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// Shutdown stops the HTTP server, tears down narration sessions, and runs
// all closers in order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.httpSrv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}

		a.narrator.StopAll(ctx)

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// Narrator exposes the narration manager, mainly for tests.
func (a *App) Narrator() *narrate.Manager {
	return a.narrator
}

// Addr returns the configured listen address.
func (a *App) Addr() string {
	return a.httpSrv.Addr
}
