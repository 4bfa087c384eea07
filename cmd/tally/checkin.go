package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/ui"
)

// xpPerHabit is awarded for each good habit marked done.
const xpPerHabit = 10

var checkinCmd = &cobra.Command{
	Use:     "checkin",
	GroupID: "track",
	Short:   "Record today's habits",
	Long: `Record habit answers for a day. Without flags on a terminal an
interactive form is shown; otherwise list slugs per status.

Examples:
  tally checkin
  tally checkin --done water,read --missed sleep
  tally checkin --date yesterday --done exercise
  tally checkin --date "last friday" --slipped doomscroll`,
	Run: func(cmd *cobra.Command, args []string) {
		dateFlag, _ := cmd.Flags().GetString("date")
		done, _ := cmd.Flags().GetStringSlice("done")
		missed, _ := cmd.Flags().GetStringSlice("missed")
		later, _ := cmd.Flags().GetStringSlice("later")
		slipped, _ := cmd.Flags().GetStringSlice("slipped")
		clean, _ := cmd.Flags().GetStringSlice("clean")

		a := mustOpen(nil)
		defer a.Close()

		day, err := parseDate(dateFlag, a.facade.Today())
		if err != nil {
			fatal("%v", err)
		}
		date := day.Format(schema.DateLayout)

		habits := a.habits()
		state := a.store.LoadState()
		log, ok := state.Log(date)
		if !ok {
			log = schema.NewDayLog(date)
		}

		flagged := len(done)+len(missed)+len(later)+len(slipped)+len(clean) > 0
		switch {
		case flagged:
			answers := map[schema.Status][]string{
				schema.StatusDone:   done,
				schema.StatusMissed: missed,
				schema.StatusLater:  later,
			}
			if err := applyAnswers(&log, habits, answers, slipped, clean); err != nil {
				fatal("%v", err)
			}
		case term.IsTerminal(int(os.Stdin.Fd())):
			if err := runForm(&log, habits); err != nil {
				fatal("%v", err)
			}
		default:
			fatal("no answers given; pass --done/--missed/--later or run on a terminal")
		}

		score(&log, habits)
		log.SubmittedAt = time.Now().UTC().Format(time.RFC3339)

		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()
		stop := a.startWorker(ctx)
		st, err := a.facade.RecordDay(ctx, log)
		stop(10 * time.Second)
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("\n%s Checked in for %s: +%d XP (total %s, level %d)\n",
			ui.RenderPass("✓"), date, log.XPEarned, ui.Count(st.TotalXP), st.Level)
		if log.BareMinimumMet {
			fmt.Printf("   Bare minimum streak: %s\n", ui.Plural(st.BareMinimumStreak, "day"))
		}
		if n := a.queue.Len(); n > 0 {
			fmt.Printf("   %s %s queued for sync\n", ui.RenderWarn("⚠"), ui.Plural(n, "write"))
		}
		fmt.Println()
	},
}

// parseDate accepts YYYY-MM-DD or natural language like "yesterday".
// Future dates are rejected.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return now, nil
	}
	t, err := time.ParseInLocation(schema.DateLayout, s, now.Location())
	if err != nil {
		w := when.New(nil)
		w.Add(en.All...)
		w.Add(common.All...)
		r, perr := w.Parse(s, now)
		if perr != nil {
			return time.Time{}, fmt.Errorf("failed to parse date %q: %w", s, perr)
		}
		if r == nil {
			return time.Time{}, fmt.Errorf("could not understand date %q", s)
		}
		t = r.Time
	}
	if t.Format(schema.DateLayout) > now.Format(schema.DateLayout) {
		return time.Time{}, fmt.Errorf("cannot check in for a future date (%s)", t.Format(schema.DateLayout))
	}
	return t, nil
}

// applyAnswers sets entries from slug lists.
func applyAnswers(log *schema.DayLog, habits []schema.Habit, answers map[schema.Status][]string, slipped, clean []string) error {
	for status, slugs := range answers {
		for _, slug := range slugs {
			h, ok := catalog.BySlug(habits, slug)
			if !ok || h.Bad {
				return fmt.Errorf("unknown habit %q", slug)
			}
			e := log.Entries[h.ID]
			e.Status = status
			log.Entries[h.ID] = e
		}
	}
	for occurred, slugs := range map[bool][]string{true: slipped, false: clean} {
		for _, slug := range slugs {
			h, ok := catalog.BySlug(habits, slug)
			if !ok || !h.Bad {
				return fmt.Errorf("unknown bad habit %q", slug)
			}
			setBad(log, h.ID, occurred)
		}
	}
	return nil
}

func setBad(log *schema.DayLog, id string, occurred bool) {
	if log.BadEntries == nil {
		log.BadEntries = make(map[string]schema.BadEntry)
	}
	e := log.BadEntries[id]
	e.Occurred = &occurred
	log.BadEntries[id] = e
}

// runForm asks about every habit, prefilled with existing answers.
func runForm(log *schema.DayLog, habits []schema.Habit) error {
	var fields []huh.Field
	statuses := make(map[string]*string)
	slips := make(map[string]*bool)

	for _, h := range habits {
		if h.Bad {
			v := false
			if e, ok := log.BadEntries[h.ID]; ok && e.Occurred != nil {
				v = *e.Occurred
			}
			slips[h.ID] = &v
			fields = append(fields, huh.NewConfirm().
				Title(h.Name+"?").
				Affirmative("Slipped").
				Negative("Clean").
				Value(&v))
			continue
		}
		v := string(log.Entries[h.ID].Status)
		statuses[h.ID] = &v
		title := h.Name
		if h.Target > 0 {
			title = fmt.Sprintf("%s (%g %s)", h.Name, h.Target, h.Unit)
		}
		fields = append(fields, huh.NewSelect[string]().
			Title(title).
			Options(
				huh.NewOption("Done", string(schema.StatusDone)),
				huh.NewOption("Missed", string(schema.StatusMissed)),
				huh.NewOption("Later", string(schema.StatusLater)),
				huh.NewOption("Skip", string(schema.StatusUnset)),
			).
			Value(&v))
	}

	form := huh.NewForm(huh.NewGroup(fields...).Title("Check-in for " + log.Date))
	if err := form.Run(); err != nil {
		return fmt.Errorf("check-in cancelled: %w", err)
	}

	for id, v := range statuses {
		e := log.Entries[id]
		e.Status = schema.Status(*v)
		log.Entries[id] = e
	}
	for id, v := range slips {
		setBad(log, id, *v)
	}
	return nil
}

// score derives XP and the bare-minimum flag from the entries.
func score(log *schema.DayLog, habits []schema.Habit) {
	done := 0
	for _, h := range habits {
		if !h.Bad && log.Entries[h.ID].Status == schema.StatusDone {
			done++
		}
	}
	log.XPEarned = done * xpPerHabit
	log.BareMinimumMet = log.BareMinimumMet || done > 0
}

func init() {
	checkinCmd.Flags().String("date", "", `day to record: YYYY-MM-DD or e.g. "yesterday" (default today)`)
	checkinCmd.Flags().StringSlice("done", nil, "habit slugs done")
	checkinCmd.Flags().StringSlice("missed", nil, "habit slugs missed")
	checkinCmd.Flags().StringSlice("later", nil, "habit slugs to answer later")
	checkinCmd.Flags().StringSlice("slipped", nil, "bad habit slugs that happened")
	checkinCmd.Flags().StringSlice("clean", nil, "bad habit slugs avoided")
	rootCmd.AddCommand(checkinCmd)
}
