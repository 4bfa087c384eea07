package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/local"
	"github.com/mschirtzinger/tally/internal/netstatus"
	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/sync"
)

// app wires the stores, queue and façade for one command invocation.
type app struct {
	store    *local.Store
	queue    *queue.Queue
	backend  *remote.Backend // nil when no remote is configured or reachable
	monitor  *netstatus.Monitor
	provider *auth.FileProvider
	facade   *sync.Facade
	catalog  []schema.Habit
	file     map[string]schema.HabitOverride
}

// openApp opens everything a command needs. events may be nil.
func openApp(events sync.EventSink) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	store, err := local.Open(cfg.LocalPath())
	if err != nil {
		return nil, err
	}

	a := &app{
		store:    store,
		provider: auth.NewFileProvider(cfg.SessionPath()),
		catalog:  catalog.Default(),
		monitor: netstatus.New(netstatus.Config{
			ProbeURL: cfg.Remote.ProbeURL,
			Timeout:  cfg.Remote.ProbeTimeout,
			Logger:   logs.Logger("netstatus"),
		}),
	}
	a.queue = queue.New(store, &queue.Config{
		MaxAttempts: cfg.Queue.MaxAttempts,
		Logger:      logs.Logger("queue"),
	})

	if cfg.CatalogFile != "" {
		a.file, err = catalog.LoadOverrides(cfg.CatalogFile)
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	a.backend = openRemote()

	var backend sync.Backend
	if a.backend != nil {
		backend = a.backend
	}
	a.facade = sync.New(store, a.queue, backend, a.provider, a.monitor, &sync.Config{
		Logger:  logs.Logger("sync"),
		Events:  events,
		Catalog: a.catalog,
	})
	return a, nil
}

// openRemote returns nil when the remote is disabled or cannot be opened;
// the app then runs local-only and queues writes.
func openRemote() *remote.Backend {
	logger := logs.Logger("remote")
	switch {
	case cfg.Remote.URL != "":
		b, err := remote.OpenTurso(remote.Config{
			URL:          cfg.Remote.URL,
			AuthToken:    cfg.Remote.AuthToken,
			ReplicaPath:  cfg.Remote.ReplicaPath,
			SyncInterval: cfg.Remote.SyncInterval,
			Logger:       logger,
		})
		if err != nil {
			logger.Printf("Warning: remote unavailable, working offline: %v", err)
			return nil
		}
		return b
	case cfg.Remote.SQLitePath != "":
		b, err := remote.OpenSQLite(cfg.Remote.SQLitePath, logger)
		if err != nil {
			logger.Printf("Warning: remote unavailable, working offline: %v", err)
			return nil
		}
		return b
	}
	return nil
}

// habits returns the resolved habit list for display.
func (a *app) habits() []schema.Habit {
	settings := a.store.LoadSettings()
	if a.file != nil {
		settings = catalog.MergeOverrides(settings, a.file)
	}
	return catalog.Resolve(a.catalog, settings)
}

// startWorker runs the sync worker until the returned stop func is called.
// stop waits up to the timeout for posted writes to be delivered; anything
// left over stays queued.
func (a *app) startWorker(ctx context.Context) (stop func(timeout time.Duration)) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.facade.Run(ctx)
	}()
	return func(timeout time.Duration) {
		wctx, wcancel := context.WithTimeout(ctx, timeout)
		_ = a.facade.Wait(wctx)
		wcancel()
		cancel()
		<-done
	}
}

func (a *app) Close() {
	_ = a.facade.Close()
	if a.backend != nil {
		_ = a.backend.Close()
	}
	_ = a.store.Close()
}

// mustOpen opens the app or exits.
func mustOpen(events sync.EventSink) *app {
	a, err := openApp(events)
	if err != nil {
		fatal("%v", err)
	}
	return a
}
