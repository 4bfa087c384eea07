package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Deliver queued writes and refresh from the remote",
	Long: `Flush the offline queue in order, then read the remote snapshot and
reconcile it with local data.

Local data is never replaced by an empty remote, and local sprint changes
that have not reached the remote yet are kept.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(nil)
		defer a.Close()

		if a.backend == nil {
			fatal("no remote configured (set remote.url or remote.sqlite_path)")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		if !a.facade.Eligible(ctx) {
			fmt.Printf("\n%s Not eligible to sync: sign in and check your connection\n", ui.RenderWarn("⚠"))
			fmt.Printf("   %s pending\n\n", ui.Plural(a.queue.Len(), "write"))
			return
		}

		fmt.Printf("%s Syncing...\n", ui.RenderAccent("🔄"))
		start := time.Now()

		res, err := a.facade.Flush(ctx)
		if err != nil {
			fatal("flush failed: %v", err)
		}
		st := a.facade.LoadState(ctx)

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Delivered: %d\n", res.Synced)
		if res.Failed > 0 {
			fmt.Printf("   %s %d failed, %d still queued\n", ui.RenderWarn("⚠"), res.Failed, res.Remaining)
		}
		if res.DeadLettered > 0 {
			fmt.Printf("   %s %d moved to dead letters\n", ui.RenderFail("✗"), res.DeadLettered)
		}
		fmt.Printf("   Days: %d, XP: %s\n\n", len(st.Logs), ui.Count(st.TotalXP))
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
