package sync

import (
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
)

// opList accumulates operations, keeping the first error.
type opList struct {
	ops []queue.Operation
	err error
}

func (l *opList) result() ([]queue.Operation, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.ops, nil
}

func add[R any](l *opList, t *remote.Table[R], action queue.Action, rs []R) {
	if l.err != nil || len(rs) == 0 {
		return
	}
	op, err := t.Op(action, rs)
	if err != nil {
		l.err = err
		return
	}
	l.ops = append(l.ops, op)
}

// diffRows splits next against prev into rows to upsert (new or changed)
// and rows to delete (key no longer present).
func diffRows[R any](prev, next []R, key func(R) string) (upserts, deletes []R) {
	before := make(map[string]R, len(prev))
	for _, r := range prev {
		before[key(r)] = r
	}
	after := make(map[string]bool, len(next))
	for _, r := range next {
		k := key(r)
		after[k] = true
		if p, ok := before[k]; !ok || !cmp.Equal(p, r) {
			upserts = append(upserts, r)
		}
	}
	for _, r := range prev {
		if !after[key(r)] {
			deletes = append(deletes, r)
		}
	}
	return upserts, deletes
}

// tableDiff is the pending upserts and deletes for one table. Upserts are
// emitted parents first, deletes children first.
type tableDiff interface {
	emitUpserts(l *opList)
	emitDeletes(l *opList)
}

type diffOf[R any] struct {
	table   *remote.Table[R]
	upserts []R
	deletes []R
}

func (d diffOf[R]) emitUpserts(l *opList) { add(l, d.table, queue.Upsert, d.upserts) }
func (d diffOf[R]) emitDeletes(l *opList) { add(l, d.table, queue.Delete, d.deletes) }

func diffTable[R any](t *remote.Table[R], prev, next []R, key func(R) string) tableDiff {
	up, del := diffRows(prev, next, key)
	return diffOf[R]{table: t, upserts: up, deletes: del}
}

// ordered emits every upsert in parent-to-child order, then every delete
// in child-to-parent order.
func ordered(diffs ...tableDiff) ([]queue.Operation, error) {
	l := &opList{}
	for _, d := range diffs {
		d.emitUpserts(l)
	}
	for i := len(diffs) - 1; i >= 0; i-- {
		diffs[i].emitDeletes(l)
	}
	return l.result()
}

func logKey(r rows.DailyLogRow) string         { return r.HabitID + "|" + r.LogDate }
func badLogKey(r rows.BadHabitLogRow) string   { return r.HabitID + "|" + r.LogDate }
func summaryKey(r rows.DailySummaryRow) string { return r.LogDate }

// StateOps diffs two snapshots into remote operations.
func StateOps(userID string, prev, next schema.LocalState, ids rows.IDMap, now time.Time) ([]queue.Operation, error) {
	l := &opList{}
	if prev.TotalXP != next.TotalXP || prev.BareMinimumStreak != next.BareMinimumStreak ||
		schema.LevelForXP(prev.TotalXP) != schema.LevelForXP(next.TotalXP) {
		add(l, remote.UserStats, queue.Upsert, []rows.UserStatsRow{rows.StatsToRow(userID, next, now)})
	}

	pb := rows.DayLogsToRows(userID, prev.Logs, ids)
	nb := rows.DayLogsToRows(userID, next.Logs, ids)

	ps, pt := rows.SprintsToRows(userID, allSprints(prev))
	ns, nt := rows.SprintsToRows(userID, allSprints(next))

	rest, err := ordered(
		diffTable(remote.DailySummaries, pb.Summaries, nb.Summaries, summaryKey),
		diffTable(remote.DailyLogs, pb.Logs, nb.Logs, logKey),
		diffTable(remote.BadHabitLogs, pb.BadLogs, nb.BadLogs, badLogKey),
		diffTable(remote.HabitStreaks,
			rows.StreaksToRows(userID, prev.Streaks, prev.Shields),
			rows.StreaksToRows(userID, next.Streaks, next.Shields),
			func(r rows.HabitStreakRow) string { return r.Slug }),
		diffTable(remote.Sprints, ps, ns, func(r rows.SprintRow) string { return r.ID }),
		diffTable(remote.SprintTasks, pt, nt, func(r rows.SprintTaskRow) string { return r.ID }),
		diffTable(remote.Reflections,
			rows.ReflectionsToRows(userID, prev.Reflections),
			rows.ReflectionsToRows(userID, next.Reflections),
			func(r rows.ReflectionRow) string { return r.ID }),
	)
	if err != nil {
		return nil, err
	}
	if l.err != nil {
		return nil, l.err
	}
	return append(l.ops, rest...), nil
}

func allSprints(st schema.LocalState) []schema.Sprint {
	out := make([]schema.Sprint, 0, len(st.SprintHistory)+1)
	out = append(out, st.SprintHistory...)
	if st.ActiveSprint != nil {
		out = append(out, *st.ActiveSprint)
	}
	return out
}

// SettingsOps diffs two settings documents.
func SettingsOps(userID string, prev, next schema.Settings, ids rows.IDMap) ([]queue.Operation, error) {
	pr := []rows.SettingsRow{rows.SettingsToRow(userID, prev)}
	nr := []rows.SettingsRow{rows.SettingsToRow(userID, next)}

	return ordered(
		diffTable(remote.Settings, pr, nr, func(r rows.SettingsRow) string { return r.UserID }),
		diffTable(remote.Habits,
			rows.HabitsToRows(userID, prev.CustomHabits, ids),
			rows.HabitsToRows(userID, next.CustomHabits, ids),
			func(r rows.HabitRow) string { return r.Slug }),
		diffTable(remote.HabitOverrides,
			rows.OverridesToRows(userID, prev.HabitOverrides, ids),
			rows.OverridesToRows(userID, next.HabitOverrides, ids),
			func(r rows.HabitOverrideRow) string { return r.HabitID }),
	)
}

// AdminTaskOps diffs two admin task lists.
func AdminTaskOps(userID string, prev, next []schema.AdminTask) ([]queue.Operation, error) {
	return ordered(
		diffTable(remote.AdminTasks,
			rows.AdminTasksToRows(userID, prev),
			rows.AdminTasksToRows(userID, next),
			func(r rows.AdminTaskRow) string { return r.ID }),
	)
}

// GymSessionOps diffs two session lists down to individual sets.
func GymSessionOps(userID string, prev, next []schema.GymSession) ([]queue.Operation, error) {
	pb := rows.GymSessionsToRows(userID, prev)
	nb := rows.GymSessionsToRows(userID, next)
	return ordered(
		diffTable(remote.GymSessions, pb.Sessions, nb.Sessions, func(r rows.GymSessionRow) string { return r.ID }),
		diffTable(remote.GymExercises, pb.Exercises, nb.Exercises, func(r rows.GymExerciseRow) string { return r.ID }),
		diffTable(remote.GymSets, pb.Sets, nb.Sets, func(r rows.GymSetRow) string { return r.ID }),
	)
}

// GymRoutineOps diffs two routine lists.
func GymRoutineOps(userID string, prev, next []schema.GymRoutine) ([]queue.Operation, error) {
	ph, pe := rows.GymRoutinesToRows(userID, prev)
	nh, ne := rows.GymRoutinesToRows(userID, next)
	return ordered(
		diffTable(remote.GymRoutines, ph, nh, func(r rows.GymRoutineRow) string { return r.ID }),
		diffTable(remote.RoutineExercises, pe, ne, func(r rows.RoutineExerciseRow) string { return r.ID }),
	)
}

// UsageCounterOps diffs two counter sets.
func UsageCounterOps(userID string, prev, next schema.UsageCounters) ([]queue.Operation, error) {
	return ordered(
		diffTable(remote.UsageCounters,
			rows.UsageCountersToRows(userID, prev),
			rows.UsageCountersToRows(userID, next),
			func(r rows.UsageCounterRow) string { return r.CounterKey }),
	)
}
