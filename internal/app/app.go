// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app wires the panel's components together and runs them.
package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/wingedpig/gamepanel/internal/api"
	"github.com/wingedpig/gamepanel/internal/config"
	"github.com/wingedpig/gamepanel/internal/events"
	"github.com/wingedpig/gamepanel/internal/instance"
	"github.com/wingedpig/gamepanel/internal/java"
	"github.com/wingedpig/gamepanel/internal/load"
	"github.com/wingedpig/gamepanel/internal/store"
	"github.com/wingedpig/gamepanel/internal/terminal"
)

// App is the main application container.
type App struct {
	mu sync.RWMutex

	configPath string
	version    string
	noBoot     bool
	config     *config.Config
	fs         afero.Fs

	eventBus    events.EventBus
	store       store.Store
	terminal    *terminal.PTYService
	java        *java.Registry
	controller  *instance.Controller
	unsubscribe func()
	governor    *load.Governor
	apiServer   *api.Server

	bootCancel context.CancelFunc
	bootDone   chan struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// Options holds configuration options for the app.
type Options struct {
	ConfigPath string // empty runs with defaults
	Host       string
	Port       int
	NoBoot     bool   // skip auto-starting instances
	Version    string // Application version string
}

// New loads configuration and creates the event bus. Components are built
// by Initialize.
func New(opts Options) (*App, error) {
	app := &App{
		configPath: opts.ConfigPath,
		version:    opts.Version,
		noBoot:     opts.NoBoot,
		fs:         afero.NewOsFs(),
		done:       make(chan struct{}),
	}

	var cfg *config.Config
	if opts.ConfigPath == "" {
		cfg = config.Default()
	} else {
		var err error
		cfg, err = config.NewLoader().LoadWithDefaults(context.Background(), opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	// Override host/port if specified
	if opts.Host != "" {
		cfg.Server.Host = opts.Host
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}
	app.config = cfg

	app.eventBus = events.NewMemoryEventBus(events.MemoryBusConfig{
		HistoryMaxEvents: cfg.Events.History.MaxEvents,
		HistoryMaxAge:    config.ParseDuration(cfg.Events.History.MaxAge, time.Hour),
		SkipHistory:      []string{events.EventInstanceOutput},
	})

	return app, nil
}

// Config returns the effective configuration.
func (app *App) Config() *config.Config {
	return app.config
}

// Controller returns the instance controller. Nil before Initialize.
func (app *App) Controller() *instance.Controller {
	app.mu.RLock()
	defer app.mu.RUnlock()
	return app.controller
}

// Initialize sets up all components.
func (app *App) Initialize(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	cfg := app.config

	st, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path, app.fs)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	app.store = st
	log.Printf("Storage: %s at %s", cfg.Storage.Driver, cfg.Storage.Path)

	app.terminal = terminal.NewPTYService(terminal.Config{
		Shell: cfg.Terminal.Shell,
		Cols:  cfg.Terminal.Cols,
		Rows:  cfg.Terminal.Rows,
	})

	declared := make([]java.Declared, len(cfg.Java.Environments))
	for i, env := range cfg.Java.Environments {
		declared[i] = java.Declared{Version: env.Version, Path: env.Path}
	}
	app.java = java.NewRegistry(app.fs, cfg.Java.Root, runtime.GOOS, declared)
	if cfg.Java.IsWatching() {
		if err := app.java.Watch(config.ParseDuration(cfg.Java.Debounce, 500*time.Millisecond)); err != nil {
			log.Printf("Warning: not watching java root %s: %v", cfg.Java.Root, err)
		}
	}

	lc := cfg.Lifecycle
	ctrl, err := instance.NewController(instance.Options{
		Terminal: app.terminal,
		Resolver: instance.NewResolver(app.fs, runtime.GOOS, app.java),
		Store:    app.store,
		FS:       app.fs,
		Platform: runtime.GOOS,
		Timings: instance.Timings{
			ReadyTimeout:  config.ParseDuration(lc.ReadyTimeout, 5*time.Second),
			SettleDelay:   config.ParseDuration(lc.SettleDelay, time.Second),
			StopTimeout:   config.ParseDuration(lc.StopTimeout, 10*time.Second),
			RestartPoll:   config.ParseDuration(lc.RestartPoll, 500*time.Millisecond),
			RestartSettle: config.ParseDuration(lc.RestartSettle, 2*time.Second),
		},
		FlushDelay: config.ParseDuration(cfg.Storage.FlushDelay, time.Second),
		Cols:       cfg.Terminal.Cols,
		Rows:       cfg.Terminal.Rows,
	})
	if err != nil {
		return fmt.Errorf("create instance controller: %w", err)
	}
	app.controller = ctrl
	app.unsubscribe = ctrl.Subscribe(events.NewInstanceObserver(app.eventBus))

	boot := cfg.Boot
	app.governor = load.NewGovernor(load.Config{
		MemoryLimit:     boot.MemoryLimit,
		CPULimit:        boot.CPULimit,
		CPUResume:       boot.CPUResume,
		CPUWindow:       config.ParseDuration(boot.CPUWindow, 100*time.Millisecond),
		RecheckInterval: config.ParseDuration(boot.RecheckInterval, 5*time.Second),
		MaxWait:         config.ParseDuration(boot.MaxWait, 5*time.Minute),
	}, load.SystemSampler{})

	app.apiServer = api.NewServer(api.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		TLSCert:      cfg.Server.TLSCert,
		TLSKey:       cfg.Server.TLSKey,
		TailscaleTLS: cfg.Server.TailscaleTLS,
	}, api.Dependencies{
		Instances: ctrl,
		EventBus:  app.eventBus,
		Java:      app.java,
		Version:   app.version,
	})

	return nil
}

// Start launches the API server and, unless disabled, the boot sweep.
func (app *App) Start(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	if app.controller == nil {
		return fmt.Errorf("app not initialized")
	}

	go func() {
		if err := app.apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("API server error: %v", err)
			app.Stop()
		}
	}()

	if app.noBoot || !app.config.Boot.IsEnabled() {
		log.Printf("Boot: auto-start disabled")
		return nil
	}

	bootCtx, cancel := context.WithCancel(ctx)
	app.bootCancel = cancel
	app.bootDone = make(chan struct{})
	gap := config.ParseDuration(app.config.Boot.Gap, 2*time.Second)
	go func() {
		defer close(app.bootDone)
		app.runBootSweep(bootCtx, app.governor, gap)
	}()

	return nil
}

// runBootSweep starts auto-start instances and publishes the outcome.
func (app *App) runBootSweep(ctx context.Context, gate instance.Gate, gap time.Duration) instance.SweepReport {
	app.eventBus.Publish(ctx, events.Event{Type: events.EventBootStarted})

	report := app.controller.BootSweep(ctx, gate, gap)
	log.Printf("Boot: %d started, %d failed, %d skipped", len(report.Started), len(report.Failed), len(report.Skipped))

	app.eventBus.Publish(context.Background(), events.Event{
		Type: events.EventBootFinished,
		Payload: map[string]interface{}{
			"started": report.Started,
			"failed":  report.Failed,
			"skipped": report.Skipped,
			"aborted": report.Aborted,
		},
	})
	return report
}

// Run starts the app and blocks until shutdown.
func (app *App) Run(ctx context.Context) error {
	if err := app.Initialize(ctx); err != nil {
		return err
	}

	if err := app.Start(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case <-ctx.Done():
		log.Printf("Context cancelled, shutting down...")
	case <-app.done:
		log.Printf("Shutdown requested...")
	}

	return app.Shutdown(context.Background())
}

// Shutdown stops running instances, flushes state and releases resources.
func (app *App) Shutdown(ctx context.Context) error {
	app.mu.Lock()
	defer app.mu.Unlock()

	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Boot sweep first so it doesn't start instances we are about to stop
	if app.bootCancel != nil {
		app.bootCancel()
		select {
		case <-app.bootDone:
		case <-shutdownCtx.Done():
		}
	}

	if app.apiServer != nil {
		if err := app.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down API server: %v", err)
		}
	}

	if app.controller != nil {
		if err := app.controller.StopAll(shutdownCtx); err != nil {
			log.Printf("Error stopping instances: %v", err)
		}
	}

	if app.terminal != nil {
		if err := app.terminal.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error closing terminal sessions: %v", err)
		}
	}

	if app.controller != nil {
		if err := app.controller.Close(); err != nil {
			log.Printf("Error saving instances: %v", err)
		}
	}
	if app.unsubscribe != nil {
		app.unsubscribe()
	}

	if app.store != nil {
		if err := app.store.Close(); err != nil {
			log.Printf("Error closing store: %v", err)
		}
	}

	if app.java != nil {
		app.java.Close()
	}

	if app.eventBus != nil {
		if mb, ok := app.eventBus.(*events.MemoryEventBus); ok && mb.Dropped() > 0 {
			log.Printf("EventBus: %d events dropped (%d terminal output)", mb.Dropped(), mb.DroppedOf(events.EventInstanceOutput))
		}
		app.eventBus.Close()
	}

	log.Println("Shutdown complete")
	return nil
}

// Stop requests shutdown of a running app.
func (app *App) Stop() {
	app.stopOnce.Do(func() {
		close(app.done)
	})
}
