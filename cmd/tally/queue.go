package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect and manage the offline write queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending writes and dead letters",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(nil)
		defer a.Close()

		pending := a.queue.Pending()
		dead := a.queue.DeadLetters()

		fmt.Printf("\n%s %s\n", ui.RenderAccent("Pending"), ui.RenderMuted(fmt.Sprintf("(%d)", len(pending))))
		printOps(pending)
		if len(dead) > 0 {
			fmt.Printf("\n%s %s\n", ui.RenderFail("Dead letters"), ui.RenderMuted(fmt.Sprintf("(%d)", len(dead))))
			printOps(dead)
			fmt.Println("\n   Use 'tally queue retry <id>' or 'tally queue drop <id>'")
		}
		fmt.Println()
	},
}

func printOps(ops []queue.Operation) {
	if len(ops) == 0 {
		fmt.Println("   (none)")
		return
	}
	for _, op := range ops {
		line := fmt.Sprintf("   %s  %-7s %-18s rows=%-3d queued %s", shortID(op.ID), op.Action, op.Table, rowCount(op), ui.Ago(op.EnqueuedAt))
		if op.Attempts > 0 {
			line += ui.RenderWarn(fmt.Sprintf("  attempts=%d", op.Attempts))
		}
		fmt.Println(line)
		if op.LastError != "" {
			fmt.Println("      " + ui.RenderMuted(truncate(op.LastError, 100)))
		}
	}
}

func rowCount(op queue.Operation) int {
	var rows []json.RawMessage
	if err := json.Unmarshal(op.Payload, &rows); err != nil {
		return 0
	}
	return len(rows)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry [id]",
	Short: "Move dead letters back to the queue (all when no id is given)",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(nil)
		defer a.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		n, err := a.queue.Retry(id)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Requeued %s\n", ui.RenderPass("✓"), ui.Plural(n, "operation"))
	},
}

var queueDropCmd = &cobra.Command{
	Use:   "drop <id>",
	Short: "Discard dead letters permanently",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if len(args) == 0 && !all {
			fatal("give an operation id or --all")
		}

		a := mustOpen(nil)
		defer a.Close()

		id := ""
		if len(args) == 1 {
			id = args[0]
		}
		n, err := a.queue.Drop(id)
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Dropped %s\n", ui.RenderPass("✓"), ui.Plural(n, "operation"))
	},
}

func init() {
	queueDropCmd.Flags().Bool("all", false, "drop every dead letter")
	queueCmd.AddCommand(queueListCmd, queueRetryCmd, queueDropCmd)
	rootCmd.AddCommand(queueCmd)
}
