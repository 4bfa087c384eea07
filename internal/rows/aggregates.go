package rows

import (
	"sort"
	"time"

	"github.com/mschirtzinger/tally/internal/schema"
)

// StatsToRow captures the snapshot totals.
func StatsToRow(userID string, st schema.LocalState, now time.Time) UserStatsRow {
	return UserStatsRow{
		UserID:            userID,
		TotalXP:           st.TotalXP,
		Level:             schema.LevelForXP(st.TotalXP),
		BareMinimumStreak: st.BareMinimumStreak,
		UpdatedAt:         now.UTC().Format(time.RFC3339),
	}
}

// StreaksToRows emits one row per slug present in either map.
func StreaksToRows(userID string, streaks map[string]int, shields map[string]schema.StreakShield) []HabitStreakRow {
	slugs := make(map[string]struct{})
	for s := range streaks {
		slugs[s] = struct{}{}
	}
	for s := range shields {
		slugs[s] = struct{}{}
	}

	out := make([]HabitStreakRow, 0, len(slugs))
	for _, slug := range sortedKeys(slugs) {
		sh := shields[slug]
		out = append(out, HabitStreakRow{
			UserID:           userID,
			Slug:             slug,
			CurrentStreak:    streaks[slug],
			ShieldAvailable:  sh.Available,
			ShieldEarnedDate: sh.EarnedDate,
			ShieldUsedDate:   sh.UsedDate,
		})
	}
	return out
}

// RowsToStreaks is the inverse of StreaksToRows.
func RowsToStreaks(rs []HabitStreakRow) (map[string]int, map[string]schema.StreakShield) {
	streaks := make(map[string]int, len(rs))
	shields := make(map[string]schema.StreakShield)
	for _, r := range rs {
		streaks[r.Slug] = r.CurrentStreak
		sh := schema.StreakShield{
			Available:  r.ShieldAvailable,
			EarnedDate: r.ShieldEarnedDate,
			UsedDate:   r.ShieldUsedDate,
		}
		if sh != (schema.StreakShield{}) {
			shields[r.Slug] = sh
		}
	}
	return streaks, shields
}

// SprintsToRows flattens sprints and their tasks.
func SprintsToRows(userID string, sprints []schema.Sprint) ([]SprintRow, []SprintTaskRow) {
	var hs []SprintRow
	var ts []SprintTaskRow
	for _, s := range sprints {
		hs = append(hs, SprintRow{
			ID:        s.ID,
			UserID:    userID,
			Name:      s.Name,
			Status:    string(s.Status),
			StartDate: s.StartDate,
			EndDate:   s.EndDate,
		})
		for i, t := range s.Tasks {
			ts = append(ts, SprintTaskRow{
				ID:        t.ID,
				UserID:    userID,
				SprintID:  s.ID,
				Title:     t.Title,
				Done:      t.Done,
				SortOrder: i,
			})
		}
	}
	return hs, ts
}

// RowsToSprints splits sprint rows into the active sprint (if any) and the
// history, oldest first. Tasks are attached in sort order.
func RowsToSprints(hs []SprintRow, ts []SprintTaskRow) (*schema.Sprint, []schema.Sprint) {
	sort.SliceStable(ts, func(i, j int) bool { return ts[i].SortOrder < ts[j].SortOrder })
	tasks := make(map[string][]schema.SprintTask)
	for _, t := range ts {
		tasks[t.SprintID] = append(tasks[t.SprintID], schema.SprintTask{ID: t.ID, Title: t.Title, Done: t.Done})
	}

	sort.SliceStable(hs, func(i, j int) bool { return hs[i].StartDate < hs[j].StartDate })

	var active *schema.Sprint
	var history []schema.Sprint
	for _, h := range hs {
		s := schema.Sprint{
			ID:        h.ID,
			Name:      h.Name,
			Status:    schema.SprintStatus(h.Status),
			StartDate: h.StartDate,
			EndDate:   h.EndDate,
			Tasks:     tasks[h.ID],
		}
		if s.Status == schema.SprintActive {
			// Latest active wins if the remote somehow holds two.
			cp := s
			active = &cp
			continue
		}
		history = append(history, s)
	}
	return active, history
}

// ReflectionsToRows converts reflections.
func ReflectionsToRows(userID string, rs []schema.Reflection) []ReflectionRow {
	out := make([]ReflectionRow, 0, len(rs))
	for _, r := range rs {
		out = append(out, ReflectionRow{
			ID:          r.ID,
			UserID:      userID,
			Period:      r.Period,
			PeriodStart: r.PeriodStart,
			Wins:        r.Wins,
			Lessons:     r.Lessons,
			NextFocus:   r.NextFocus,
			CreatedAt:   r.CreatedAt,
		})
	}
	return out
}

// RowsToReflections converts rows, ordered by period start.
func RowsToReflections(rs []ReflectionRow) []schema.Reflection {
	out := make([]schema.Reflection, 0, len(rs))
	for _, r := range rs {
		out = append(out, schema.Reflection{
			ID:          r.ID,
			Period:      r.Period,
			PeriodStart: r.PeriodStart,
			Wins:        r.Wins,
			Lessons:     r.Lessons,
			NextFocus:   r.NextFocus,
			CreatedAt:   r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PeriodStart < out[j].PeriodStart })
	return out
}

// GymBundle is the remote representation of gym sessions.
type GymBundle struct {
	Sessions  []GymSessionRow
	Exercises []GymExerciseRow
	Sets      []GymSetRow
}

// GymSessionsToRows flattens sessions into three tables.
func GymSessionsToRows(userID string, sessions []schema.GymSession) GymBundle {
	var b GymBundle
	for _, s := range sessions {
		b.Sessions = append(b.Sessions, GymSessionRow{ID: s.ID, UserID: userID, SessionDate: s.Date, Name: s.Name})
		for i, e := range s.Exercises {
			b.Exercises = append(b.Exercises, GymExerciseRow{ID: e.ID, UserID: userID, SessionID: s.ID, Name: e.Name, SortOrder: i})
			for j, set := range e.Sets {
				b.Sets = append(b.Sets, GymSetRow{
					ID:         set.ID,
					UserID:     userID,
					ExerciseID: e.ID,
					Reps:       set.Reps,
					WeightKg:   set.WeightKg,
					SortOrder:  j,
				})
			}
		}
	}
	return b
}

// RowsToGymSessions rebuilds sessions ordered by date.
func RowsToGymSessions(b GymBundle) []schema.GymSession {
	sort.SliceStable(b.Sets, func(i, j int) bool { return b.Sets[i].SortOrder < b.Sets[j].SortOrder })
	sets := make(map[string][]schema.GymSet)
	for _, s := range b.Sets {
		sets[s.ExerciseID] = append(sets[s.ExerciseID], schema.GymSet{ID: s.ID, Reps: s.Reps, WeightKg: s.WeightKg})
	}

	sort.SliceStable(b.Exercises, func(i, j int) bool { return b.Exercises[i].SortOrder < b.Exercises[j].SortOrder })
	exercises := make(map[string][]schema.GymExercise)
	for _, e := range b.Exercises {
		exercises[e.SessionID] = append(exercises[e.SessionID], schema.GymExercise{ID: e.ID, Name: e.Name, Sets: sets[e.ID]})
	}

	out := make([]schema.GymSession, 0, len(b.Sessions))
	for _, s := range b.Sessions {
		out = append(out, schema.GymSession{ID: s.ID, Date: s.SessionDate, Name: s.Name, Exercises: exercises[s.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// GymRoutinesToRows flattens routines.
func GymRoutinesToRows(userID string, routines []schema.GymRoutine) ([]GymRoutineRow, []RoutineExerciseRow) {
	var hs []GymRoutineRow
	var es []RoutineExerciseRow
	for _, r := range routines {
		hs = append(hs, GymRoutineRow{ID: r.ID, UserID: userID, Name: r.Name})
		for i, e := range r.Exercises {
			es = append(es, RoutineExerciseRow{
				ID:         e.ID,
				UserID:     userID,
				RoutineID:  r.ID,
				Name:       e.Name,
				TargetSets: e.TargetSets,
				TargetReps: e.TargetReps,
				SortOrder:  i,
			})
		}
	}
	return hs, es
}

// RowsToGymRoutines rebuilds routines ordered by name.
func RowsToGymRoutines(hs []GymRoutineRow, es []RoutineExerciseRow) []schema.GymRoutine {
	sort.SliceStable(es, func(i, j int) bool { return es[i].SortOrder < es[j].SortOrder })
	exercises := make(map[string][]schema.RoutineExercise)
	for _, e := range es {
		exercises[e.RoutineID] = append(exercises[e.RoutineID], schema.RoutineExercise{
			ID:         e.ID,
			Name:       e.Name,
			TargetSets: e.TargetSets,
			TargetReps: e.TargetReps,
		})
	}
	out := make([]schema.GymRoutine, 0, len(hs))
	for _, h := range hs {
		out = append(out, schema.GymRoutine{ID: h.ID, Name: h.Name, Exercises: exercises[h.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// AdminTasksToRows converts admin tasks.
func AdminTasksToRows(userID string, tasks []schema.AdminTask) []AdminTaskRow {
	out := make([]AdminTaskRow, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, AdminTaskRow{
			ID:        t.ID,
			UserID:    userID,
			Title:     t.Title,
			Done:      t.Done,
			DueDate:   t.DueDate,
			CreatedAt: t.CreatedAt,
		})
	}
	return out
}

// RowsToAdminTasks converts rows ordered by creation time.
func RowsToAdminTasks(rs []AdminTaskRow) []schema.AdminTask {
	out := make([]schema.AdminTask, 0, len(rs))
	for _, r := range rs {
		out = append(out, schema.AdminTask{
			ID:        r.ID,
			Title:     r.Title,
			Done:      r.Done,
			DueDate:   r.DueDate,
			CreatedAt: r.CreatedAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out
}

// UsageCountersToRows emits one row per counter, sorted by key.
func UsageCountersToRows(userID string, c schema.UsageCounters) []UsageCounterRow {
	out := make([]UsageCounterRow, 0, len(c))
	for _, k := range sortedKeys(c) {
		out = append(out, UsageCounterRow{UserID: userID, CounterKey: k, Count: c[k]})
	}
	return out
}

// RowsToUsageCounters is the inverse of UsageCountersToRows.
func RowsToUsageCounters(rs []UsageCounterRow) schema.UsageCounters {
	out := make(schema.UsageCounters, len(rs))
	for _, r := range rs {
		out[r.CounterKey] = r.Count
	}
	return out
}
