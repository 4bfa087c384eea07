package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show sign-in, connectivity and queue status",
	Long: `Show whether this device is signed in and online, how many writes are
waiting to be synced, and a summary of local progress.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpen(nil)
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		st := a.facade.Status(ctx)
		state := a.store.LoadState()

		fmt.Println()
		switch {
		case !st.SignedIn && st.UserID != "":
			fmt.Printf("%s Session for %s has expired (run 'tally login')\n", ui.RenderWarn("⚠"), st.UserID)
		case !st.SignedIn:
			fmt.Printf("%s Not signed in, data stays on this device\n", ui.RenderMuted("○"))
		default:
			fmt.Printf("%s Signed in as %s\n", ui.RenderPass("✓"), st.UserID)
		}

		switch {
		case a.backend == nil:
			fmt.Printf("%s No remote configured\n", ui.RenderMuted("○"))
		case st.Online:
			fmt.Printf("%s Remote reachable\n", ui.RenderPass("✓"))
		default:
			fmt.Printf("%s Offline, writes are queued\n", ui.RenderWarn("⚠"))
		}

		fmt.Println()
		fmt.Println("  " + ui.LabelValue("Pending writes", ui.Count(st.Pending)))
		if st.DeadLetters > 0 {
			fmt.Println("  " + ui.LabelValue("Dead letters", ui.RenderFail(ui.Count(st.DeadLetters))+" (see 'tally queue list')"))
		}
		fmt.Println("  " + ui.LabelValue("Last sync", ui.Ago(a.store.LastSynced())))
		fmt.Println("  " + ui.LabelValue("Migrated", st.Migrated))
		fmt.Println("  " + ui.LabelValue("Local store", fmt.Sprintf("%s (%s)", a.store.Path(), ui.Bytes(a.store.Size()))))

		fmt.Println()
		fmt.Println("  " + ui.LabelValue("Level", state.Level))
		fmt.Println("  " + ui.LabelValue("Total XP", ui.Count(state.TotalXP)))
		fmt.Println("  " + ui.LabelValue("Days logged", ui.Count(len(state.Logs))))
		if n := len(state.Logs); n > 0 {
			fmt.Println("  " + ui.LabelValue("Last check-in", state.Logs[n-1].Date))
		}
		if state.ActiveSprint != nil {
			fmt.Println("  " + ui.LabelValue("Sprint", sprintLine(*state.ActiveSprint)))
		}
		fmt.Println()
	},
}

func sprintLine(s schema.Sprint) string {
	done := 0
	for _, t := range s.Tasks {
		if t.Done {
			done++
		}
	}
	return fmt.Sprintf("%s (%d/%d tasks, since %s)", s.Name, done, len(s.Tasks), s.StartDate)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
