package remote

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/rows"
)

// Table descriptors, one per remote table.
var (
	Profiles         = NewTable[rows.ProfileRow]("profiles", "user_id")
	UserStats        = NewTable[rows.UserStatsRow]("user_stats", "user_id")
	Habits           = NewTable[rows.HabitRow]("habits", "user_id", "slug")
	HabitOverrides   = NewTable[rows.HabitOverrideRow]("habit_overrides", "user_id", "habit_id")
	HabitStreaks     = NewTable[rows.HabitStreakRow]("habit_streaks", "user_id", "slug")
	DailyLogs        = NewTable[rows.DailyLogRow]("daily_logs", "user_id", "habit_id", "log_date")
	BadHabitLogs     = NewTable[rows.BadHabitLogRow]("bad_habit_logs", "user_id", "habit_id", "log_date")
	DailySummaries   = NewTable[rows.DailySummaryRow]("daily_summaries", "user_id", "log_date")
	Settings         = NewTable[rows.SettingsRow]("user_settings", "user_id")
	Sprints          = NewTable[rows.SprintRow]("sprints", "id")
	SprintTasks      = NewTable[rows.SprintTaskRow]("sprint_tasks", "id")
	Reflections      = NewTable[rows.ReflectionRow]("reflections", "id")
	GymSessions      = NewTable[rows.GymSessionRow]("gym_sessions", "id")
	GymExercises     = NewTable[rows.GymExerciseRow]("gym_exercises", "id")
	GymSets          = NewTable[rows.GymSetRow]("gym_sets", "id")
	GymRoutines      = NewTable[rows.GymRoutineRow]("gym_routines", "id")
	RoutineExercises = NewTable[rows.RoutineExerciseRow]("routine_exercises", "id")
	AdminTasks       = NewTable[rows.AdminTaskRow]("admin_tasks", "id")
	UsageCounters    = NewTable[rows.UsageCounterRow]("usage_counters", "user_id", "counter_key")
)

// applier executes a queued operation against one table.
type applier interface {
	Name() string
	apply(ctx context.Context, db Execer, op queue.Operation) error
}

var registry = map[string]applier{}

func register(as ...applier) {
	for _, a := range as {
		registry[a.Name()] = a
	}
}

func init() {
	register(
		Profiles, UserStats, Habits, HabitOverrides, HabitStreaks,
		DailyLogs, BadHabitLogs, DailySummaries, Settings,
		Sprints, SprintTasks, Reflections,
		GymSessions, GymExercises, GymSets, GymRoutines, RoutineExercises,
		AdminTasks, UsageCounters,
	)
}

// Op builds a queue operation writing rs to this table. The conflict key
// is the table default unless given.
func (t *Table[R]) Op(action queue.Action, rs []R, conflict ...string) (queue.Operation, error) {
	if len(conflict) == 0 && action != queue.Insert {
		conflict = t.conflict
	}
	return queue.NewOperation(t.name, action, rs, conflict...)
}

func (t *Table[R]) apply(ctx context.Context, db Execer, op queue.Operation) error {
	var rs []R
	if err := json.Unmarshal(op.Payload, &rs); err != nil {
		return &RejectedError{Table: t.name, Err: fmt.Errorf("bad payload: %w", err)}
	}
	if len(rs) == 0 {
		return nil
	}
	switch op.Action {
	case queue.Upsert:
		return t.Upsert(ctx, db, rs, op.Columns()...)
	case queue.Insert:
		return t.Insert(ctx, db, rs)
	case queue.Delete:
		return t.Delete(ctx, db, rs, op.Columns()...)
	default:
		return &RejectedError{Table: t.name, Err: fmt.Errorf("unknown action %q", op.Action)}
	}
}
