package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/tally/internal/dashboard"
	"github.com/mschirtzinger/tally/internal/inbox"
	"github.com/mschirtzinger/tally/internal/sync"
	"github.com/mschirtzinger/tally/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run the background sync worker",
	Long: `Run the sync worker in the foreground until interrupted.

The daemon:
  - delivers writes and flushes the queue whenever connectivity returns
  - probes the remote every remote.sync_interval and flushes pending writes
  - imports day logs dropped as JSON files into the inbox directory
  - serves the live dashboard (disable with --no-dashboard)`,
	Run: func(cmd *cobra.Command, args []string) {
		noDashboard, _ := cmd.Flags().GetBool("no-dashboard")
		noInbox, _ := cmd.Flags().GetBool("no-inbox")
		runDaemon(cmd.Context(), !noInbox, !noDashboard)
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "sync",
	Short:   "Serve live sync status over WebSocket",
	Long: `Start the sync worker and a WebSocket dashboard broadcasting sync events
and status snapshots.

Messages:
  - event:  a sync event (saved, queued, synced, flushed, online, offline, ...)
  - status: sign-in, connectivity and queue counts

Connect with a browser at http://127.0.0.1:7878 or a WebSocket client at
ws://127.0.0.1:7878/ws.`,
	Run: func(cmd *cobra.Command, args []string) {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Dashboard.Addr = addr
		}
		runDaemon(cmd.Context(), false, true)
	},
}

func runDaemon(parent context.Context, withInbox, withDashboard bool) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var (
		a      *app
		events sync.EventSink
		server *dashboard.Server
	)
	if withDashboard {
		server = dashboard.NewServer(&dashboard.Config{
			Addr:   cfg.Dashboard.Addr,
			Logger: logs.Logger("dashboard"),
		})
		// The status func is only called once the server is running, by
		// which time a is set.
		events = dashboard.NewHandler(server, func(ctx context.Context) sync.Status {
			return a.facade.Status(ctx)
		}, logs.Logger("dashboard"))
	}

	a = mustOpen(events)
	defer a.Close()

	if server != nil {
		if err := server.Start(); err != nil {
			fatal("failed to start dashboard: %v", err)
		}
		defer server.Stop()
		fmt.Printf("%s Dashboard on http://%s\n", ui.RenderAccent("◉"), server.Addr())
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.facade.Run(ctx) })
	g.Go(func() error { return probeLoop(ctx, a) })

	if withInbox {
		importer := inbox.NewImporter(a.facade, inbox.Config{
			Dir:    cfg.Inbox.Dir,
			Events: events,
			Logger: logs.Logger("inbox"),
		})
		g.Go(func() error { return importer.Run(ctx) })
		fmt.Printf("%s Watching %s for day logs\n", ui.RenderAccent("◉"), cfg.Inbox.Dir)
	}

	fmt.Println("Sync daemon running, press Ctrl+C to stop...")
	if err := g.Wait(); err != nil {
		fatal("%v", err)
	}
	fmt.Printf("\n%s Stopped with %s queued\n", ui.RenderPass("✓"), ui.Plural(a.queue.Len(), "write"))
}

// probeLoop checks connectivity on an interval and flushes pending writes
// while online.
func probeLoop(ctx context.Context, a *app) error {
	interval := cfg.Remote.SyncInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if a.backend == nil || !a.queue.HasPending() {
				continue
			}
			if err := a.monitor.Probe(ctx); err != nil {
				continue
			}
			if _, err := a.facade.Flush(ctx); err != nil && ctx.Err() == nil {
				logs.Logger("daemon").Printf("Periodic flush failed: %v", err)
			}
		}
	}
}

func init() {
	daemonCmd.Flags().Bool("no-dashboard", false, "do not serve the dashboard")
	daemonCmd.Flags().Bool("no-inbox", false, "do not watch the inbox directory")
	dashboardCmd.Flags().String("addr", "", "listen address (default from config dashboard.addr)")
	rootCmd.AddCommand(daemonCmd, dashboardCmd)
}
