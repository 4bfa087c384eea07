package sync

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/streak"
)

// LoadState returns the best available snapshot. It never fails: when the
// remote cannot be used the local snapshot is returned.
func (f *Facade) LoadState(ctx context.Context) schema.LocalState {
	localState := f.local.LoadState()

	sess, ok := f.eligibleSession(ctx)
	if !ok {
		return localState
	}

	// Remote rows use remote habit ids; without a link they would not
	// map back to local ones.
	if f.link(ctx, sess.UserID) {
		f.flushQuiet(ctx)
	}

	remoteState, err := f.fetchState(ctx, sess.UserID)
	if err != nil {
		f.config.Logger.Printf("Remote fetch failed, using local: %v", err)
		f.emit(EventError, err.Error(), 0)
		return localState
	}

	if remoteState.IsEmpty() {
		if !localState.IsEmpty() {
			f.config.Logger.Println("Remote is empty, keeping local snapshot")
		}
		return localState
	}

	merged := Reconcile(localState, remoteState)
	f.recalc(&merged)

	if localState.IsEmpty() {
		f.saveMu.Lock()
		// A check-in may have landed while fetching.
		if cur := f.local.LoadState(); cur.IsEmpty() {
			if err := f.local.SaveState(merged); err != nil {
				f.config.Logger.Printf("Warning: failed to cache remote snapshot: %v", err)
			}
		}
		f.saveMu.Unlock()
	}
	f.emit(EventLoaded, fmt.Sprintf("%d day logs", len(merged.Logs)), 0)
	return merged
}

// Reconcile combines a local and a remote snapshot of the same user.
//
// Day logs present on both sides are merged with local first, so answers
// already given locally are never replaced. Logs on one side only are
// kept. XP is the larger of the two. Sprint state comes from local when
// local is more advanced than remote (see localSprintsAhead). Reflections
// are unioned by id, local winning.
func Reconcile(localState, remoteState schema.LocalState) schema.LocalState {
	out := schema.DefaultState()

	remoteLogs := schema.IndexLogs(remoteState.Logs)
	seen := make(map[string]bool, len(localState.Logs))
	for _, l := range localState.Logs {
		seen[l.Date] = true
		if r, ok := remoteLogs[l.Date]; ok {
			out.Logs = append(out.Logs, schema.MergeDayLogs(l, r))
			continue
		}
		out.Logs = append(out.Logs, l)
	}
	for _, r := range remoteState.Logs {
		if !seen[r.Date] {
			out.Logs = append(out.Logs, r)
		}
	}

	out.TotalXP = max(localState.TotalXP, remoteState.TotalXP)
	out.BareMinimumStreak = max(localState.BareMinimumStreak, remoteState.BareMinimumStreak)

	for slug, n := range remoteState.Streaks {
		out.Streaks[slug] = n
	}
	for slug, n := range localState.Streaks {
		out.Streaks[slug] = max(out.Streaks[slug], n)
	}
	for slug, sh := range remoteState.Shields {
		out.Shields[slug] = sh
	}
	for slug, sh := range localState.Shields {
		out.Shields[slug] = sh
	}

	if localSprintsAhead(localState, remoteState) {
		out.ActiveSprint = localState.ActiveSprint
		out.SprintHistory = localState.SprintHistory
	} else {
		out.ActiveSprint = remoteState.ActiveSprint
		out.SprintHistory = remoteState.SprintHistory
	}

	out.Reflections = unionByID(localState.Reflections, remoteState.Reflections,
		func(r schema.Reflection) string { return r.ID })

	out.Normalize()
	return out
}

// localSprintsAhead reports whether local sprint state has moved past
// remote's. Sprint transitions are written to local synchronously and to
// remote asynchronously, so remote can only lag.
func localSprintsAhead(l, r schema.LocalState) bool {
	switch {
	case len(l.SprintHistory) > len(r.SprintHistory):
		return true
	case l.ActiveSprint == nil && r.ActiveSprint != nil:
		// Ended locally, remote still shows it running.
		return true
	case l.ActiveSprint != nil && r.ActiveSprint == nil && len(l.SprintHistory) >= len(r.SprintHistory):
		// Started locally, not delivered yet.
		return true
	case l.ActiveSprint != nil && r.ActiveSprint != nil && l.ActiveSprint.ID != r.ActiveSprint.ID:
		return len(l.SprintHistory) >= len(r.SprintHistory)
	}
	return false
}

func (f *Facade) recalc(st *schema.LocalState) {
	res := streak.Recalc(*st, f.slugMap(), f.Today())
	streak.Apply(st, res)
}

// fetchState reads every state table in parallel and rebuilds a snapshot.
func (f *Facade) fetchState(ctx context.Context, userID string) (schema.LocalState, error) {
	if err := f.remote.Refresh(ctx); err != nil {
		return schema.LocalState{}, err
	}
	db := f.remote.DB()

	var (
		stats       []rows.UserStatsRow
		streakRows  []rows.HabitStreakRow
		bundle      rows.Bundle
		sprints     []rows.SprintRow
		sprintTasks []rows.SprintTaskRow
		reflections []rows.ReflectionRow
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { stats, err = remote.UserStats.Select(gctx, db, userID); return })
	g.Go(func() (err error) { streakRows, err = remote.HabitStreaks.Select(gctx, db, userID); return })
	g.Go(func() (err error) { bundle.Logs, err = remote.DailyLogs.Select(gctx, db, userID); return })
	g.Go(func() (err error) { bundle.BadLogs, err = remote.BadHabitLogs.Select(gctx, db, userID); return })
	g.Go(func() (err error) { bundle.Summaries, err = remote.DailySummaries.Select(gctx, db, userID); return })
	g.Go(func() (err error) { sprints, err = remote.Sprints.Select(gctx, db, userID); return })
	g.Go(func() (err error) { sprintTasks, err = remote.SprintTasks.Select(gctx, db, userID); return })
	g.Go(func() (err error) { reflections, err = remote.Reflections.Select(gctx, db, userID); return })
	if err := g.Wait(); err != nil {
		return schema.LocalState{}, err
	}

	st := schema.DefaultState()
	if len(stats) > 0 {
		st.TotalXP = stats[0].TotalXP
		st.BareMinimumStreak = stats[0].BareMinimumStreak
	}
	st.Streaks, st.Shields = rows.RowsToStreaks(streakRows)
	st.Logs = rows.RowsToDayLogs(bundle, f.idMap().Invert())
	st.ActiveSprint, st.SprintHistory = rows.RowsToSprints(sprints, sprintTasks)
	st.Reflections = rows.RowsToReflections(reflections)
	st.Normalize()
	return st, nil
}

// SaveState writes next locally and schedules the remote writes for what
// changed since the previous local snapshot.
//
// With nobody signed in only the local write happens; nothing is queued.
// Such data reaches the remote through the one-time upload (tally migrate),
// not through later saves.
func (f *Facade) SaveState(ctx context.Context, next schema.LocalState) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	return f.saveState(ctx, next)
}

// saveState requires saveMu.
func (f *Facade) saveState(ctx context.Context, next schema.LocalState) error {
	prev := f.local.LoadState()
	if next.IsEmpty() && !prev.IsEmpty() {
		f.config.Logger.Printf("Blocked destructive save (local has %d logs, %d XP)", len(prev.Logs), prev.TotalXP)
		return ErrDestructiveSave
	}

	next.Normalize()
	if err := f.local.SaveState(next); err != nil {
		return err
	}
	f.emit(EventSaved, "state", 0)

	sess, ok := f.session(ctx)
	if !ok {
		return nil
	}
	ops, err := StateOps(sess.UserID, prev, next, f.idMap(), f.config.Now())
	if err != nil {
		f.config.Logger.Printf("Error: failed to build state operations: %v", err)
		return nil
	}
	f.post("state", ops)
	return nil
}

// RecordDay merges log into the stored snapshot, adds its XP, recalculates
// streaks and saves. It is the check-in entry point.
func (f *Facade) RecordDay(ctx context.Context, log schema.DayLog) (schema.LocalState, error) {
	if err := log.Validate(); err != nil {
		return schema.LocalState{}, fmt.Errorf("invalid day log: %w", err)
	}
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	st := f.local.LoadState()
	if prev, ok := st.Log(log.Date); ok {
		st.TotalXP += max(0, log.XPEarned-prev.XPEarned)
	} else {
		st.TotalXP += log.XPEarned
	}
	st.PutLog(log)
	st.Normalize()
	f.recalc(&st)

	if err := f.saveState(ctx, st); err != nil {
		return schema.LocalState{}, err
	}
	return st, nil
}
