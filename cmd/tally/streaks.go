package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/ui"
)

var streaksCmd = &cobra.Command{
	Use:     "streaks",
	GroupID: "track",
	Short:   "Show current streaks and shields",
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")

		a := mustOpen(nil)
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		st := a.facade.LoadState(ctx)

		recent := lastDays(st, days, a.facade.Today())

		var b strings.Builder
		fmt.Fprintf(&b, "%-22s %7s  %s\n", "Habit", "Streak", "Last "+ui.Plural(days, "day"))
		for _, h := range a.habits() {
			if h.Bad {
				continue
			}
			marks := make([]string, 0, len(recent))
			for _, l := range recent {
				marks = append(marks, ui.StatusMark(string(l.Entries[h.ID].Status)))
			}
			streak := fmt.Sprintf("%7d", st.Streaks[h.Slug])
			if sh := st.Shields[h.Slug]; sh.Available {
				streak = fmt.Sprintf("%6d🛡", st.Streaks[h.Slug])
			}
			fmt.Fprintf(&b, "%-22s %s  %s\n", h.Name, streak, strings.Join(marks, ""))
		}
		fmt.Fprintf(&b, "\n%s  %s", ui.LabelValue("Bare minimum", ui.Plural(st.BareMinimumStreak, "day")),
			ui.LabelValue("Level", fmt.Sprintf("%d (%s XP)", st.Level, ui.Count(st.TotalXP))))

		fmt.Println(ui.Panel(b.String()))
	},
}

// lastDays returns one log per calendar day ending today, filling gaps with
// empty logs.
func lastDays(st schema.LocalState, n int, today time.Time) []schema.DayLog {
	idx := schema.IndexLogs(st.Logs)
	out := make([]schema.DayLog, 0, n)
	for i := n - 1; i >= 0; i-- {
		d := today.AddDate(0, 0, -i).Format(schema.DateLayout)
		l, ok := idx[d]
		if !ok {
			l = schema.NewDayLog(d)
		}
		out = append(out, l)
	}
	return out
}

func init() {
	streaksCmd.Flags().Int("days", 14, "days of history to show")
	rootCmd.AddCommand(streaksCmd)
}
