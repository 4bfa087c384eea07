// Package streak derives per-habit streaks and streak-shield state from
// day-log history.
//
// Stored streak counters are never trusted: duplicate submissions and merges
// can desynchronize them, so every read path recomputes from the logs.
package streak

import (
	"time"

	"github.com/mschirtzinger/tally/internal/schema"
)

const (
	// MaxWalk bounds how many days a single walk looks back.
	MaxWalk = 365

	// ShieldThreshold is the streak length that earns a shield.
	ShieldThreshold = 14
)

// Result holds the recalculated values for every habit that was asked for.
type Result struct {
	Streaks           map[string]int
	Shields           map[string]schema.StreakShield
	BareMinimumStreak int
}

// Recalc walks the log history of state and returns authoritative streaks
// keyed by slug. habitSlugs maps habit ids (as used in day-log entries) to
// slugs; several ids may share a slug, e.g. a local id and its remote remap.
// today fixes the walk's anchor so the function stays pure.
func Recalc(state schema.LocalState, habitSlugs map[string]string, today time.Time) Result {
	idx := schema.IndexLogs(state.Logs)
	todayKey := schema.Today(today)

	idsBySlug := make(map[string][]string)
	for id, slug := range habitSlugs {
		idsBySlug[slug] = append(idsBySlug[slug], id)
	}

	res := Result{
		Streaks: make(map[string]int, len(idsBySlug)),
		Shields: make(map[string]schema.StreakShield, len(idsBySlug)),
	}

	for slug, ids := range idsBySlug {
		shield := state.Shields[slug]
		prior := state.Streaks[slug]
		lookup := func(date string) schema.Status {
			return statusFor(idx, date, ids)
		}

		n, sh := walk(lookup, today, prior, shield)
		res.Streaks[slug] = n
		res.Shields[slug] = earn(sh, n, todayKey)
	}

	res.BareMinimumStreak = bareMinimum(idx, today)
	return res
}

// walk computes one habit's streak and the shield state after any absorption.
func walk(lookup func(string) schema.Status, today time.Time, prior int, shield schema.StreakShield) (int, schema.StreakShield) {
	todayKey := schema.Today(today)
	original := shield
	usable := shield.Available && !sameMonth(shield.UsedDate, todayKey)

	absorbed := false
	absorbedAt := -1 // streak count when a historical miss was absorbed
	start := today.AddDate(0, 0, -1)

	switch lookup(todayKey) {
	case schema.StatusDone:
		start = today
	case schema.StatusMissed:
		if shield.UsedDate == todayKey || (usable && prior >= ShieldThreshold) {
			absorbed = true
			shield.Available = false
			shield.UsedDate = todayKey
		}
	}

	streak := 0
	for i := 0; i < MaxWalk; i++ {
		day := schema.Today(start.AddDate(0, 0, -i))
		status := lookup(day)

		if status == schema.StatusDone {
			streak++
			continue
		}
		if status == schema.StatusMissed && !absorbed && (shield.UsedDate == day || usable) {
			absorbed = true
			absorbedAt = streak
			shield.Available = false
			shield.UsedDate = day
			continue
		}
		break
	}

	// A shield spent on a miss with nothing behind it saved nothing.
	if absorbedAt >= 0 && absorbedAt == streak && original.UsedDate != shield.UsedDate {
		shield = original
	}
	return streak, shield
}

// earn applies the shield-earning pass for one habit.
func earn(shield schema.StreakShield, streak int, todayKey string) schema.StreakShield {
	if streak < ShieldThreshold || shield.Available {
		return shield
	}
	if shield.UsedDate != "" && sameMonth(shield.UsedDate, todayKey) {
		return shield
	}
	shield.Available = true
	shield.EarnedDate = todayKey
	return shield
}

// statusFor collapses the entries of every id sharing a slug into one status.
func statusFor(idx map[string]schema.DayLog, date string, ids []string) schema.Status {
	log, ok := idx[date]
	if !ok {
		return schema.StatusUnset
	}
	out := schema.StatusUnset
	for _, id := range ids {
		switch log.Entries[id].Status {
		case schema.StatusDone:
			return schema.StatusDone
		case schema.StatusMissed:
			out = schema.StatusMissed
		case schema.StatusLater:
			if out == schema.StatusUnset {
				out = schema.StatusLater
			}
		}
	}
	return out
}

// bareMinimum counts consecutive days with the bare minimum met, using the
// same today/yesterday grace as habit streaks but without shields.
func bareMinimum(idx map[string]schema.DayLog, today time.Time) int {
	start := today.AddDate(0, 0, -1)
	if l, ok := idx[schema.Today(today)]; ok && l.BareMinimumMet {
		start = today
	}
	n := 0
	for i := 0; i < MaxWalk; i++ {
		l, ok := idx[schema.Today(start.AddDate(0, 0, -i))]
		if !ok || !l.BareMinimumMet {
			break
		}
		n++
	}
	return n
}

func sameMonth(a, b string) bool {
	return len(a) >= 7 && len(b) >= 7 && a[:7] == b[:7]
}

// Apply writes a Result back into state, replacing the stored counters.
func Apply(state *schema.LocalState, r Result) {
	if state.Streaks == nil {
		state.Streaks = make(map[string]int, len(r.Streaks))
	}
	if state.Shields == nil {
		state.Shields = make(map[string]schema.StreakShield, len(r.Shields))
	}
	for slug, n := range r.Streaks {
		state.Streaks[slug] = n
	}
	for slug, sh := range r.Shields {
		if sh == (schema.StreakShield{}) {
			delete(state.Shields, slug)
			continue
		}
		state.Shields[slug] = sh
	}
	state.BareMinimumStreak = r.BareMinimumStreak
}
