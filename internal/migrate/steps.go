package migrate

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// StepID names a migration step.
type StepID string

const (
	StepVerifySession      StepID = "verify_session"
	StepEnsureProfile      StepID = "ensure_profile"
	StepSeedCatalog        StepID = "seed_catalog"
	StepUploadSettings     StepID = "upload_settings"
	StepUploadCustomHabits StepID = "upload_custom_habits"
	StepApplyOverrides     StepID = "apply_overrides"
	StepUploadHistory      StepID = "upload_history"
	StepUploadAggregates   StepID = "upload_aggregates"
	StepUploadSprints      StepID = "upload_sprints"
	StepUploadReflections  StepID = "upload_reflections"
	StepUploadGymSessions  StepID = "upload_gym_sessions"
	StepUploadGymRoutines  StepID = "upload_gym_routines"
	StepUploadAdminTasks   StepID = "upload_admin_tasks"
	StepUploadUsage        StepID = "upload_usage_counters"
	StepFinalize           StepID = "finalize"
)

// Order is the required step order.
var Order = []StepID{
	StepVerifySession,
	StepEnsureProfile,
	StepSeedCatalog,
	StepUploadSettings,
	StepUploadCustomHabits,
	StepApplyOverrides,
	StepUploadHistory,
	StepUploadAggregates,
	StepUploadSprints,
	StepUploadReflections,
	StepUploadGymSessions,
	StepUploadGymRoutines,
	StepUploadAdminTasks,
	StepUploadUsage,
	StepFinalize,
}

var labels = map[StepID]string{
	StepVerifySession:      "Verify session",
	StepEnsureProfile:      "Ensure profile",
	StepSeedCatalog:        "Seed habit catalog",
	StepUploadSettings:     "Upload settings",
	StepUploadCustomHabits: "Upload custom habits",
	StepApplyOverrides:     "Apply habit overrides",
	StepUploadHistory:      "Upload day history",
	StepUploadAggregates:   "Upload XP and streaks",
	StepUploadSprints:      "Upload sprints",
	StepUploadReflections:  "Upload reflections",
	StepUploadGymSessions:  "Upload gym sessions",
	StepUploadGymRoutines:  "Upload gym routines",
	StepUploadAdminTasks:   "Upload admin tasks",
	StepUploadUsage:        "Upload usage counters",
	StepFinalize:           "Finalize",
}

// Fatal reports whether a failure of id aborts the run.
func (id StepID) Fatal() bool {
	return id == StepVerifySession || id == StepEnsureProfile || id == StepSeedCatalog
}

// Label returns the human-readable step name.
func (id StepID) Label() string {
	if l, ok := labels[id]; ok {
		return l
	}
	return string(id)
}

// StepStatus is a step's state.
type StepStatus string

const (
	StatusPending StepStatus = "pending"
	StatusRunning StepStatus = "running"
	StatusDone    StepStatus = "done"
	StatusError   StepStatus = "error"
	StatusSkipped StepStatus = "skipped"
)

// Step is one entry in the step log.
type Step struct {
	ID         StepID     `yaml:"id"`
	Label      string     `yaml:"label"`
	Status     StepStatus `yaml:"status"`
	Detail     string     `yaml:"detail,omitempty"`
	Error      string     `yaml:"error,omitempty"`
	StartedAt  time.Time  `yaml:"started_at,omitempty"`
	FinishedAt time.Time  `yaml:"finished_at,omitempty"`
}

// StepError is a non-fatal step failure.
type StepError struct {
	Step StepID
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// FatalError aborts the run. The migrated flag stays unset.
type FatalError struct {
	Step StepID
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("migration aborted at %s: %v", e.Step, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// StepLog records step progress and reports each transition to OnStep.
type StepLog struct {
	mu     sync.Mutex
	steps  []Step
	index  map[StepID]int
	onStep func(Step)
	now    func() time.Time
}

// NewStepLog creates a log with every step pending. onStep may be nil.
func NewStepLog(onStep func(Step)) *StepLog {
	l := &StepLog{
		index:  make(map[StepID]int, len(Order)),
		onStep: onStep,
		now:    time.Now,
	}
	for i, id := range Order {
		l.steps = append(l.steps, Step{ID: id, Label: id.Label(), Status: StatusPending})
		l.index[id] = i
	}
	return l
}

func (l *StepLog) update(id StepID, fn func(*Step)) {
	l.mu.Lock()
	i, ok := l.index[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	fn(&l.steps[i])
	s := l.steps[i]
	cb := l.onStep
	l.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// Start marks id running.
func (l *StepLog) Start(id StepID) {
	l.update(id, func(s *Step) {
		s.Status = StatusRunning
		s.StartedAt = l.now()
	})
}

// Done marks id finished.
func (l *StepLog) Done(id StepID, detail string) {
	l.update(id, func(s *Step) {
		s.Status = StatusDone
		s.Detail = detail
		s.FinishedAt = l.now()
	})
}

// Fail marks id failed.
func (l *StepLog) Fail(id StepID, err error) {
	l.update(id, func(s *Step) {
		s.Status = StatusError
		s.Error = err.Error()
		s.FinishedAt = l.now()
	})
}

// Skip marks id skipped.
func (l *StepLog) Skip(id StepID, reason string) {
	l.update(id, func(s *Step) {
		s.Status = StatusSkipped
		s.Detail = reason
	})
}

// Steps returns a copy of the log in step order.
func (l *StepLog) Steps() []Step {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Step, len(l.steps))
	copy(out, l.steps)
	return out
}

// Summary is the outcome of a run.
type Summary struct {
	Success     bool     `yaml:"success"`
	AlreadyDone bool     `yaml:"already_migrated,omitempty"`
	FailedSteps []StepID `yaml:"failed_steps,omitempty"`
	Steps       []Step   `yaml:"steps"`
}

// YAML renders the summary as a report.
func (s *Summary) YAML() ([]byte, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal migration report: %w", err)
	}
	return out, nil
}
