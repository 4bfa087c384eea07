package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/local"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/streak"
)

// DefaultBatchSize is the number of days uploaded per transaction.
const DefaultBatchSize = 30

// Backend is the remote side of a migration.
type Backend interface {
	DB() *sql.DB
	Refresh(ctx context.Context) error
	InTx(ctx context.Context, fn func(tx remote.Execer) error) error
}

// Options configures a migration run.
type Options struct {
	UserID    string           // Expected account; empty accepts the session's user
	BatchSize int              // Days per history batch (default 30)
	Force     bool             // Run even when the migrated flag is set
	Catalog   []schema.Habit   // Canonical habits (default catalog.Default())
	OnStep    func(Step)       // Called on every step transition
	Logger    *log.Logger      // Defaults to stderr with a [migrate] prefix
	Now       func() time.Time // Clock for timestamps and session expiry
}

// Runner uploads a device's local history to the remote backend once.
type Runner struct {
	local   *local.Store
	backend Backend
	auth    auth.Provider
	opts    Options
	logger  *log.Logger

	steps   *StepLog
	session auth.Session
	ids     rows.IDMap
	bySlug  map[string]string // remote habit ids found before seeding
}

// NewRunner creates a runner.
func NewRunner(store *local.Store, backend Backend, provider auth.Provider, opts Options) *Runner {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	}
	return &Runner{
		local:   store,
		backend: backend,
		auth:    provider,
		opts:    opts,
		logger:  logger,
	}
}

// Run executes every step in order. Non-fatal failures are collected in the
// summary; a fatal failure skips the remaining steps and returns a
// *FatalError alongside the summary.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	r.steps = NewStepLog(r.opts.OnStep)
	r.steps.now = r.opts.Now

	if r.local.Migrated() && !r.opts.Force {
		for _, id := range Order {
			r.steps.Skip(id, "already migrated")
		}
		r.logger.Printf("Device already migrated, nothing to do")
		return &Summary{Success: true, AlreadyDone: true, Steps: r.steps.Steps()}, nil
	}

	steps := []struct {
		id StepID
		fn func(context.Context) (string, error)
	}{
		{StepVerifySession, r.verifySession},
		{StepEnsureProfile, r.ensureProfile},
		{StepSeedCatalog, r.seedCatalog},
		{StepUploadSettings, r.uploadSettings},
		{StepUploadCustomHabits, r.uploadCustomHabits},
		{StepApplyOverrides, r.applyOverrides},
		{StepUploadHistory, r.uploadHistory},
		{StepUploadAggregates, r.uploadAggregates},
		{StepUploadSprints, r.uploadSprints},
		{StepUploadReflections, r.uploadReflections},
		{StepUploadGymSessions, r.uploadGymSessions},
		{StepUploadGymRoutines, r.uploadGymRoutines},
		{StepUploadAdminTasks, r.uploadAdminTasks},
		{StepUploadUsage, r.uploadUsageCounters},
		{StepFinalize, r.finalize},
	}

	summary := &Summary{}
	var fatal *FatalError
	for _, s := range steps {
		if fatal != nil {
			r.steps.Skip(s.id, "aborted after "+string(fatal.Step))
			continue
		}
		if err := ctx.Err(); err != nil {
			fatal = &FatalError{Step: s.id, Err: err}
			r.steps.Fail(s.id, err)
			summary.FailedSteps = append(summary.FailedSteps, s.id)
			continue
		}

		r.steps.Start(s.id)
		detail, err := s.fn(ctx)
		if err != nil {
			r.steps.Fail(s.id, err)
			summary.FailedSteps = append(summary.FailedSteps, s.id)
			if s.id.Fatal() {
				fatal = &FatalError{Step: s.id, Err: err}
				r.logger.Printf("Fatal: %v", fatal)
			} else {
				r.logger.Printf("Warning: %v", &StepError{Step: s.id, Err: err})
			}
			continue
		}
		r.steps.Done(s.id, detail)
	}

	summary.Success = len(summary.FailedSteps) == 0
	summary.Steps = r.steps.Steps()
	if fatal != nil {
		return summary, fatal
	}
	return summary, nil
}

// Steps returns the step log of the last run.
func (r *Runner) Steps() []Step {
	if r.steps == nil {
		return nil
	}
	return r.steps.Steps()
}

func (r *Runner) verifySession(ctx context.Context) (string, error) {
	s, err := r.auth.Session(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	if !s.Valid(r.opts.Now()) {
		return "", fmt.Errorf("session for %s has expired", s.UserID)
	}
	if r.opts.UserID != "" && s.UserID != r.opts.UserID {
		return "", fmt.Errorf("signed in as %s, expected %s", s.UserID, r.opts.UserID)
	}
	r.session = s
	return s.UserID, nil
}

func (r *Runner) ensureProfile(ctx context.Context) (string, error) {
	db := r.backend.DB()
	n, err := remote.Profiles.Count(ctx, db, r.session.UserID)
	if err != nil {
		return "", err
	}
	if n > 0 {
		return "profile exists", nil
	}
	settings := r.local.LoadSettings()
	profile := rows.ProfileRow{
		UserID:      r.session.UserID,
		DisplayName: settings.DisplayName,
		CreatedAt:   r.opts.Now().UTC().Format(time.RFC3339),
	}
	if err := remote.Profiles.Upsert(ctx, db, []rows.ProfileRow{profile}); err != nil {
		return "", err
	}
	return "profile created", nil
}

// seedCatalog makes sure every canonical habit has a remote row and a stable
// remote id. A partial earlier run is detected by existing remote habits:
// the persisted id map is reused, and any id it lacks is recovered by slug.
func (r *Runner) seedCatalog(ctx context.Context) (string, error) {
	if err := r.backend.Refresh(ctx); err != nil {
		r.logger.Printf("Warning: refresh before seeding failed: %v", err)
	}

	existing, err := remote.Habits.Select(ctx, r.backend.DB(), r.session.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to check existing habits: %w", err)
	}
	bySlug := make(map[string]string, len(existing))
	for _, h := range existing {
		bySlug[h.Slug] = h.ID
	}

	ids := rows.IDMap(r.local.LoadIDRemap())
	reused, minted := 0, 0
	for _, h := range r.opts.Catalog {
		if id, ok := bySlug[h.Slug]; ok {
			ids[h.ID] = id
			reused++
			continue
		}
		if _, ok := ids[h.ID]; !ok {
			ids[h.ID] = uuid.NewString()
			minted++
		}
	}
	// Persist before writing so a retry reuses the same ids.
	if err := r.local.SaveIDRemap(ids); err != nil {
		return "", fmt.Errorf("failed to persist id map: %w", err)
	}
	r.ids = ids
	r.bySlug = bySlug

	missing := make([]schema.Habit, 0, len(r.opts.Catalog))
	for _, h := range r.opts.Catalog {
		if _, ok := bySlug[h.Slug]; !ok {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		hr := rows.HabitsToRows(r.session.UserID, missing, ids)
		if err := r.backend.InTx(ctx, func(tx remote.Execer) error {
			return remote.Habits.Upsert(ctx, tx, hr)
		}); err != nil {
			return "", fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	return fmt.Sprintf("%d seeded, %d reused, %d new ids", len(missing), reused, minted), nil
}

func (r *Runner) uploadSettings(ctx context.Context) (string, error) {
	settings := r.local.LoadSettings()
	row := rows.SettingsToRow(r.session.UserID, settings)
	if err := remote.Settings.Upsert(ctx, r.backend.DB(), []rows.SettingsRow{row}); err != nil {
		return "", err
	}
	return "", nil
}

func (r *Runner) uploadCustomHabits(ctx context.Context) (string, error) {
	custom := r.local.LoadSettings().CustomHabits
	if len(custom) == 0 {
		return "no custom habits", nil
	}
	for _, h := range custom {
		if id, ok := r.bySlug[h.Slug]; ok {
			r.ids[h.ID] = id
			continue
		}
		if _, ok := r.ids[h.ID]; !ok {
			r.ids[h.ID] = uuid.NewString()
		}
	}
	if err := r.local.SaveIDRemap(r.ids); err != nil {
		return "", fmt.Errorf("failed to persist id map: %w", err)
	}
	hr := rows.HabitsToRows(r.session.UserID, custom, r.ids)
	for i := range hr {
		hr[i].IsCustom = true
	}
	if err := remote.Habits.Upsert(ctx, r.backend.DB(), hr); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d habits", len(hr)), nil
}

func (r *Runner) applyOverrides(ctx context.Context) (string, error) {
	overrides := r.local.LoadSettings().HabitOverrides
	if len(overrides) == 0 {
		return "no overrides", nil
	}
	or := rows.OverridesToRows(r.session.UserID, overrides, r.ids)
	if err := remote.HabitOverrides.Upsert(ctx, r.backend.DB(), or); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d overrides", len(or)), nil
}

// uploadHistory writes day logs in batches. A failed batch stops the step;
// earlier batches stay committed.
func (r *Runner) uploadHistory(ctx context.Context) (string, error) {
	logs := r.local.LoadState().Logs
	size := r.opts.BatchSize
	done := 0
	for start := 0; start < len(logs); start += size {
		end := min(start+size, len(logs))
		b := rows.DayLogsToRows(r.session.UserID, logs[start:end], r.ids)
		err := r.backend.InTx(ctx, func(tx remote.Execer) error {
			if err := remote.DailySummaries.Upsert(ctx, tx, b.Summaries); err != nil {
				return err
			}
			if err := remote.DailyLogs.Upsert(ctx, tx, b.Logs); err != nil {
				return err
			}
			return remote.BadHabitLogs.Upsert(ctx, tx, b.BadLogs)
		})
		if err != nil {
			return "", fmt.Errorf("batch %d-%d (uploaded %d of %d days): %w",
				start, end, done, len(logs), err)
		}
		done = end
	}
	return fmt.Sprintf("%d days", done), nil
}

// uploadAggregates writes totals first; streaks are only written once the
// totals have landed.
func (r *Runner) uploadAggregates(ctx context.Context) (string, error) {
	st := r.local.LoadState()
	// Stored streaks may be stale; upload what the logs say.
	settings := r.local.LoadSettings()
	res := streak.Recalc(st, catalog.SlugMap(r.opts.Catalog, settings), r.opts.Now().In(settings.Location()))
	streak.Apply(&st, res)

	db := r.backend.DB()
	stats := rows.StatsToRow(r.session.UserID, st, r.opts.Now())
	if err := remote.UserStats.Upsert(ctx, db, []rows.UserStatsRow{stats}); err != nil {
		return "", fmt.Errorf("failed to upload stats: %w", err)
	}
	sr := rows.StreaksToRows(r.session.UserID, st.Streaks, st.Shields)
	if err := remote.HabitStreaks.Upsert(ctx, db, sr); err != nil {
		return "", fmt.Errorf("failed to upload streaks: %w", err)
	}
	return fmt.Sprintf("%d XP, %d streaks", st.TotalXP, len(sr)), nil
}

func (r *Runner) uploadSprints(ctx context.Context) (string, error) {
	st := r.local.LoadState()
	sprints := append([]schema.Sprint{}, st.SprintHistory...)
	if st.ActiveSprint != nil {
		sprints = append(sprints, *st.ActiveSprint)
	}
	if len(sprints) == 0 {
		return "no sprints", nil
	}
	hs, ts := rows.SprintsToRows(r.session.UserID, sprints)
	err := r.backend.InTx(ctx, func(tx remote.Execer) error {
		if err := remote.Sprints.Upsert(ctx, tx, hs); err != nil {
			return err
		}
		return remote.SprintTasks.Upsert(ctx, tx, ts)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d sprints", len(hs)), nil
}

func (r *Runner) uploadReflections(ctx context.Context) (string, error) {
	refl := r.local.LoadState().Reflections
	if len(refl) == 0 {
		return "no reflections", nil
	}
	rr := rows.ReflectionsToRows(r.session.UserID, refl)
	if err := remote.Reflections.Upsert(ctx, r.backend.DB(), rr); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d reflections", len(rr)), nil
}

func (r *Runner) uploadGymSessions(ctx context.Context) (string, error) {
	sessions := r.local.LoadGymSessions()
	if len(sessions) == 0 {
		return "no sessions", nil
	}
	b := rows.GymSessionsToRows(r.session.UserID, sessions)
	err := r.backend.InTx(ctx, func(tx remote.Execer) error {
		if err := remote.GymSessions.Upsert(ctx, tx, b.Sessions); err != nil {
			return err
		}
		if err := remote.GymExercises.Upsert(ctx, tx, b.Exercises); err != nil {
			return err
		}
		return remote.GymSets.Upsert(ctx, tx, b.Sets)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d sessions", len(b.Sessions)), nil
}

func (r *Runner) uploadGymRoutines(ctx context.Context) (string, error) {
	routines := r.local.LoadGymRoutines()
	if len(routines) == 0 {
		return "no routines", nil
	}
	hs, es := rows.GymRoutinesToRows(r.session.UserID, routines)
	err := r.backend.InTx(ctx, func(tx remote.Execer) error {
		if err := remote.GymRoutines.Upsert(ctx, tx, hs); err != nil {
			return err
		}
		return remote.RoutineExercises.Upsert(ctx, tx, es)
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d routines", len(hs)), nil
}

func (r *Runner) uploadAdminTasks(ctx context.Context) (string, error) {
	tasks := r.local.LoadAdminTasks()
	if len(tasks) == 0 {
		return "no tasks", nil
	}
	tr := rows.AdminTasksToRows(r.session.UserID, tasks)
	if err := remote.AdminTasks.Upsert(ctx, r.backend.DB(), tr); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d tasks", len(tr)), nil
}

func (r *Runner) uploadUsageCounters(ctx context.Context) (string, error) {
	counters := r.local.LoadUsageCounters()
	if len(counters) == 0 {
		return "no counters", nil
	}
	cr := rows.UsageCountersToRows(r.session.UserID, counters)
	if err := remote.UsageCounters.Upsert(ctx, r.backend.DB(), cr); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d counters", len(cr)), nil
}

// finalize only runs when no fatal step failed, so reaching it means the
// flag can be set even if later sections reported errors.
func (r *Runner) finalize(ctx context.Context) (string, error) {
	if err := r.local.SetMigrated(true); err != nil {
		return "", fmt.Errorf("failed to set migrated flag: %w", err)
	}
	return "", nil
}

var errNotRun = errors.New("migration has not run")

// Report renders the last run's step log as YAML.
func (r *Runner) Report() ([]byte, error) {
	if r.steps == nil {
		return nil, errNotRun
	}
	s := &Summary{Steps: r.steps.Steps()}
	for _, st := range s.Steps {
		if st.Status == StatusError {
			s.FailedSteps = append(s.FailedSteps, st.ID)
		}
	}
	s.Success = len(s.FailedSteps) == 0
	return s.YAML()
}
