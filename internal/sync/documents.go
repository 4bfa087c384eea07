package sync

import (
	"context"
	"database/sql"

	"golang.org/x/sync/errgroup"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
)

// document describes how one secondary aggregate moves between the local
// store and the remote tables.
type document[T any] struct {
	name  string
	load  func() T
	save  func(T) error
	empty func(T) bool
	fetch func(ctx context.Context, db *sql.DB, userID string, local rows.IDMap) (T, error)
	merge func(localV, remoteV T) T
	ops   func(userID string, prev, next T, ids rows.IDMap) ([]queue.Operation, error)
}

// loadDocument applies the same gating and empty-remote rule as LoadState.
func loadDocument[T any](ctx context.Context, f *Facade, d document[T]) T {
	localV := d.load()

	sess, ok := f.eligibleSession(ctx)
	if !ok {
		return localV
	}
	if f.link(ctx, sess.UserID) {
		f.flushQuiet(ctx)
	}

	if err := f.remote.Refresh(ctx); err != nil {
		f.config.Logger.Printf("Remote refresh failed, using local %s: %v", d.name, err)
		return localV
	}
	remoteV, err := d.fetch(ctx, f.remote.DB(), sess.UserID, f.idMap().Invert())
	if err != nil {
		f.config.Logger.Printf("Remote fetch of %s failed, using local: %v", d.name, err)
		return localV
	}

	if d.empty(remoteV) {
		return localV
	}
	if d.empty(localV) {
		f.saveMu.Lock()
		if d.empty(d.load()) {
			if err := d.save(remoteV); err != nil {
				f.config.Logger.Printf("Warning: failed to cache remote %s: %v", d.name, err)
			}
		}
		f.saveMu.Unlock()
		return remoteV
	}
	return d.merge(localV, remoteV)
}

// saveDocument writes locally, then schedules the diff. Signed-out writes
// stay local; only tally migrate uploads them later.
func saveDocument[T any](ctx context.Context, f *Facade, d document[T], next T) error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	prev := d.load()
	if err := d.save(next); err != nil {
		return err
	}
	f.emit(EventSaved, d.name, 0)

	sess, ok := f.session(ctx)
	if !ok {
		return nil
	}
	ops, err := d.ops(sess.UserID, prev, next, f.idMap())
	if err != nil {
		f.config.Logger.Printf("Error: failed to build %s operations: %v", d.name, err)
		return nil
	}
	f.post(d.name, ops)
	return nil
}

func unionByID[T any](localV, remoteV []T, id func(T) string) []T {
	seen := make(map[string]bool, len(localV))
	out := make([]T, 0, len(localV)+len(remoteV))
	for _, v := range localV {
		seen[id(v)] = true
		out = append(out, v)
	}
	for _, v := range remoteV {
		if !seen[id(v)] {
			out = append(out, v)
		}
	}
	return out
}

func (f *Facade) settingsDoc() document[schema.Settings] {
	return document[schema.Settings]{
		name:  "settings",
		load:  f.local.LoadSettings,
		save:  f.local.SaveSettings,
		empty: func(s schema.Settings) bool { return s.IsEmpty() },
		fetch: func(ctx context.Context, db *sql.DB, userID string, ids rows.IDMap) (schema.Settings, error) {
			var (
				settings  []rows.SettingsRow
				habits    []rows.HabitRow
				overrides []rows.HabitOverrideRow
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) { settings, err = remote.Settings.Select(gctx, db, userID); return })
			g.Go(func() (err error) { habits, err = remote.Habits.Select(gctx, db, userID); return })
			g.Go(func() (err error) { overrides, err = remote.HabitOverrides.Select(gctx, db, userID); return })
			if err := g.Wait(); err != nil {
				return schema.Settings{}, err
			}
			var row rows.SettingsRow
			if len(settings) > 0 {
				row = settings[0]
			}
			return rows.RowsToSettings(row, habits, overrides, ids), nil
		},
		merge: func(l, r schema.Settings) schema.Settings {
			out := l
			if out.DisplayName == "" {
				out.DisplayName = r.DisplayName
			}
			out.CustomHabits = unionByID(l.CustomHabits, r.CustomHabits, func(h schema.Habit) string { return h.ID })
			out.HabitOverrides = make(map[string]schema.HabitOverride, len(l.HabitOverrides)+len(r.HabitOverrides))
			for id, o := range r.HabitOverrides {
				out.HabitOverrides[id] = o
			}
			for id, o := range l.HabitOverrides {
				out.HabitOverrides[id] = o
			}
			return out
		},
		ops: SettingsOps,
	}
}

// LoadSettings returns the user's settings.
func (f *Facade) LoadSettings(ctx context.Context) schema.Settings {
	return loadDocument(ctx, f, f.settingsDoc())
}

// SaveSettings writes settings.
func (f *Facade) SaveSettings(ctx context.Context, s schema.Settings) error {
	return saveDocument(ctx, f, f.settingsDoc(), s)
}

func (f *Facade) adminTasksDoc() document[[]schema.AdminTask] {
	return document[[]schema.AdminTask]{
		name:  "admin_tasks",
		load:  f.local.LoadAdminTasks,
		save:  f.local.SaveAdminTasks,
		empty: func(v []schema.AdminTask) bool { return len(v) == 0 },
		fetch: func(ctx context.Context, db *sql.DB, userID string, _ rows.IDMap) ([]schema.AdminTask, error) {
			rs, err := remote.AdminTasks.Select(ctx, db, userID)
			if err != nil {
				return nil, err
			}
			return rows.RowsToAdminTasks(rs), nil
		},
		merge: func(l, r []schema.AdminTask) []schema.AdminTask {
			return unionByID(l, r, func(t schema.AdminTask) string { return t.ID })
		},
		ops: func(userID string, prev, next []schema.AdminTask, _ rows.IDMap) ([]queue.Operation, error) {
			return AdminTaskOps(userID, prev, next)
		},
	}
}

// LoadAdminTasks returns the backlog.
func (f *Facade) LoadAdminTasks(ctx context.Context) []schema.AdminTask {
	return loadDocument(ctx, f, f.adminTasksDoc())
}

// SaveAdminTasks writes the backlog.
func (f *Facade) SaveAdminTasks(ctx context.Context, tasks []schema.AdminTask) error {
	return saveDocument(ctx, f, f.adminTasksDoc(), tasks)
}

func (f *Facade) gymSessionsDoc() document[[]schema.GymSession] {
	return document[[]schema.GymSession]{
		name:  "gym_sessions",
		load:  f.local.LoadGymSessions,
		save:  f.local.SaveGymSessions,
		empty: func(v []schema.GymSession) bool { return len(v) == 0 },
		fetch: func(ctx context.Context, db *sql.DB, userID string, _ rows.IDMap) ([]schema.GymSession, error) {
			var b rows.GymBundle
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) { b.Sessions, err = remote.GymSessions.Select(gctx, db, userID); return })
			g.Go(func() (err error) { b.Exercises, err = remote.GymExercises.Select(gctx, db, userID); return })
			g.Go(func() (err error) { b.Sets, err = remote.GymSets.Select(gctx, db, userID); return })
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return rows.RowsToGymSessions(b), nil
		},
		merge: func(l, r []schema.GymSession) []schema.GymSession {
			return unionByID(l, r, func(s schema.GymSession) string { return s.ID })
		},
		ops: func(userID string, prev, next []schema.GymSession, _ rows.IDMap) ([]queue.Operation, error) {
			return GymSessionOps(userID, prev, next)
		},
	}
}

// LoadGymSessions returns workout sessions.
func (f *Facade) LoadGymSessions(ctx context.Context) []schema.GymSession {
	return loadDocument(ctx, f, f.gymSessionsDoc())
}

// SaveGymSessions writes workout sessions.
func (f *Facade) SaveGymSessions(ctx context.Context, sessions []schema.GymSession) error {
	return saveDocument(ctx, f, f.gymSessionsDoc(), sessions)
}

func (f *Facade) gymRoutinesDoc() document[[]schema.GymRoutine] {
	return document[[]schema.GymRoutine]{
		name:  "gym_routines",
		load:  f.local.LoadGymRoutines,
		save:  f.local.SaveGymRoutines,
		empty: func(v []schema.GymRoutine) bool { return len(v) == 0 },
		fetch: func(ctx context.Context, db *sql.DB, userID string, _ rows.IDMap) ([]schema.GymRoutine, error) {
			var (
				hs []rows.GymRoutineRow
				es []rows.RoutineExerciseRow
			)
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() (err error) { hs, err = remote.GymRoutines.Select(gctx, db, userID); return })
			g.Go(func() (err error) { es, err = remote.RoutineExercises.Select(gctx, db, userID); return })
			if err := g.Wait(); err != nil {
				return nil, err
			}
			return rows.RowsToGymRoutines(hs, es), nil
		},
		merge: func(l, r []schema.GymRoutine) []schema.GymRoutine {
			return unionByID(l, r, func(x schema.GymRoutine) string { return x.ID })
		},
		ops: func(userID string, prev, next []schema.GymRoutine, _ rows.IDMap) ([]queue.Operation, error) {
			return GymRoutineOps(userID, prev, next)
		},
	}
}

// LoadGymRoutines returns workout routines.
func (f *Facade) LoadGymRoutines(ctx context.Context) []schema.GymRoutine {
	return loadDocument(ctx, f, f.gymRoutinesDoc())
}

// SaveGymRoutines writes workout routines.
func (f *Facade) SaveGymRoutines(ctx context.Context, routines []schema.GymRoutine) error {
	return saveDocument(ctx, f, f.gymRoutinesDoc(), routines)
}

func (f *Facade) usageCountersDoc() document[schema.UsageCounters] {
	return document[schema.UsageCounters]{
		name:  "usage_counters",
		load:  f.local.LoadUsageCounters,
		save:  f.local.SaveUsageCounters,
		empty: func(v schema.UsageCounters) bool { return len(v) == 0 },
		fetch: func(ctx context.Context, db *sql.DB, userID string, _ rows.IDMap) (schema.UsageCounters, error) {
			rs, err := remote.UsageCounters.Select(ctx, db, userID)
			if err != nil {
				return nil, err
			}
			return rows.RowsToUsageCounters(rs), nil
		},
		merge: func(l, r schema.UsageCounters) schema.UsageCounters {
			out := make(schema.UsageCounters, len(l)+len(r))
			for k, v := range r {
				out[k] = v
			}
			for k, v := range l {
				out[k] = max(out[k], v)
			}
			return out
		},
		ops: func(userID string, prev, next schema.UsageCounters, _ rows.IDMap) ([]queue.Operation, error) {
			return UsageCounterOps(userID, prev, next)
		},
	}
}

// LoadUsageCounters returns feature usage counters.
func (f *Facade) LoadUsageCounters(ctx context.Context) schema.UsageCounters {
	return loadDocument(ctx, f, f.usageCountersDoc())
}

// SaveUsageCounters writes feature usage counters.
func (f *Facade) SaveUsageCounters(ctx context.Context, c schema.UsageCounters) error {
	return saveDocument(ctx, f, f.usageCountersDoc(), c)
}

// CountUsage increments one counter locally and schedules the upload.
func (f *Facade) CountUsage(ctx context.Context, key string) error {
	c := f.local.LoadUsageCounters()
	next := make(schema.UsageCounters, len(c)+1)
	for k, v := range c {
		next[k] = v
	}
	next[key]++
	return f.SaveUsageCounters(ctx, next)
}
