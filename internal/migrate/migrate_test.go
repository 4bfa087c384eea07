package migrate

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/local"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/schema"
)

var testNow = time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *local.Store
	backend *remote.Backend
	session auth.Static
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	store, err := local.Open(filepath.Join(dir, "local.db"))
	if err != nil {
		t.Fatalf("local.Open() failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	rb, err := remote.OpenSQLite(filepath.Join(dir, "remote.db"), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("remote.OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { rb.Close() })

	return &fixture{
		store:   store,
		backend: rb,
		session: auth.Static{UserID: "u1", AccessToken: "tok", ExpiresAt: testNow.Add(time.Hour)},
	}
}

func (f *fixture) seedLocal(t *testing.T, days int) {
	t.Helper()
	st := schema.DefaultState()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < days; i++ {
		l := schema.NewDayLog(start.AddDate(0, 0, i).Format(schema.DateLayout))
		l.Entries["hab-water"] = schema.Entry{Status: schema.StatusDone}
		l.Entries["hab-custom-1"] = schema.Entry{Status: schema.StatusMissed}
		l.XPEarned = 10
		st.Logs = append(st.Logs, l)
		st.TotalXP += 10
	}
	st.Streaks["water"] = days
	st.Reflections = []schema.Reflection{{ID: "r1", Period: "week", PeriodStart: "2025-01-06", CreatedAt: "2025-01-12"}}
	if err := f.store.SaveState(st); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}

	settings := schema.DefaultSettings()
	settings.DisplayName = "Sam"
	settings.CustomHabits = []schema.Habit{{ID: "hab-custom-1", Slug: "stretch", Name: "Stretch", Order: 10, Custom: true}}
	target := 3.0
	settings.HabitOverrides["hab-water"] = schema.HabitOverride{Target: &target}
	if err := f.store.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() failed: %v", err)
	}
	if err := f.store.SaveAdminTasks([]schema.AdminTask{{ID: "a1", Title: "Taxes", CreatedAt: "2025-01-02"}}); err != nil {
		t.Fatalf("SaveAdminTasks() failed: %v", err)
	}
}

func (f *fixture) runner(opts Options) *Runner {
	opts.Logger = log.New(io.Discard, "", 0)
	opts.Now = func() time.Time { return testNow }
	return NewRunner(f.store, f.backend, f.session, opts)
}

func (f *fixture) count(t *testing.T, table interface {
	Count(context.Context, remote.Querier, string) (int, error)
}) int {
	t.Helper()
	n, err := table.Count(context.Background(), f.backend.DB(), "u1")
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	return n
}

func TestRunUploadsInOrder(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, 45)

	var started []StepID
	r := f.runner(Options{
		BatchSize: 30,
		OnStep: func(s Step) {
			if s.Status == StatusRunning {
				started = append(started, s.ID)
			}
		},
	})

	summary, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !summary.Success {
		t.Fatalf("Run() failed steps: %v", summary.FailedSteps)
	}
	if diff := cmp.Diff(Order, started); diff != "" {
		t.Errorf("step order mismatch (-want +got):\n%s", diff)
	}
	if !f.store.Migrated() {
		t.Error("migrated flag not set")
	}

	checks := []struct {
		name  string
		table interface {
			Count(context.Context, remote.Querier, string) (int, error)
		}
		want int
	}{
		{"profiles", remote.Profiles, 1},
		{"habits", remote.Habits, len(catalog.Default()) + 1},
		{"overrides", remote.HabitOverrides, 1},
		{"summaries", remote.DailySummaries, 45},
		{"logs", remote.DailyLogs, 90},
		{"stats", remote.UserStats, 1},
		{"streaks", remote.HabitStreaks, len(catalog.Default()) + 1},
		{"reflections", remote.Reflections, 1},
		{"admin tasks", remote.AdminTasks, 1},
	}
	for _, c := range checks {
		if got := f.count(t, c.table); got != c.want {
			t.Errorf("%s: got %d rows, want %d", c.name, got, c.want)
		}
	}

	ids := f.store.LoadIDRemap()
	for _, h := range catalog.Default() {
		if ids[h.ID] == "" || ids[h.ID] == h.ID {
			t.Errorf("id map for %s = %q, want a fresh remote id", h.ID, ids[h.ID])
		}
	}
	if ids["hab-custom-1"] == "" {
		t.Error("custom habit has no remote id")
	}
}

func TestRunUploadsRecalculatedStreaks(t *testing.T) {
	f := newFixture(t)
	st := schema.DefaultState()
	for i := 4; i >= 0; i-- {
		l := schema.NewDayLog(testNow.AddDate(0, 0, -i).Format(schema.DateLayout))
		l.Entries["hab-water"] = schema.Entry{Status: schema.StatusDone}
		l.XPEarned = 10
		st.Logs = append(st.Logs, l)
		st.TotalXP += 10
	}
	st.Streaks["water"] = 99
	st.Streaks["sleep"] = 12
	if err := f.store.SaveState(st); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}

	summary, err := f.runner(Options{}).Run(context.Background())
	if err != nil || !summary.Success {
		t.Fatalf("Run() = %+v, %v", summary, err)
	}

	streakRows, err := remote.HabitStreaks.Select(context.Background(), f.backend.DB(), "u1")
	if err != nil {
		t.Fatalf("HabitStreaks.Select() failed: %v", err)
	}
	got := map[string]int{}
	for _, r := range streakRows {
		got[r.Slug] = r.CurrentStreak
	}
	if got["water"] != 5 {
		t.Errorf("water streak = %d, want 5 from the logs", got["water"])
	}
	if got["sleep"] != 0 {
		t.Errorf("sleep streak = %d, want 0 from the logs", got["sleep"])
	}
}

func TestFatalProfileFailure(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, 3)

	if _, err := f.backend.DB().Exec("DROP TABLE profiles"); err != nil {
		t.Fatalf("failed to drop profiles: %v", err)
	}

	summary, err := f.runner(Options{}).Run(context.Background())
	if !IsFatal(err) {
		t.Fatalf("Run() error = %v, want fatal", err)
	}
	if summary.Success {
		t.Error("summary reports success")
	}
	if diff := cmp.Diff([]StepID{StepEnsureProfile}, summary.FailedSteps); diff != "" {
		t.Errorf("failed steps mismatch (-want +got):\n%s", diff)
	}
	for _, s := range summary.Steps {
		switch {
		case s.ID == StepVerifySession && s.Status != StatusDone:
			t.Errorf("%s status = %s, want done", s.ID, s.Status)
		case s.ID != StepVerifySession && s.ID != StepEnsureProfile && s.Status != StatusSkipped:
			t.Errorf("%s status = %s, want skipped", s.ID, s.Status)
		}
	}
	if n := f.count(t, remote.Habits); n != 0 {
		t.Errorf("got %d habit rows, want none", n)
	}
	if f.store.Migrated() {
		t.Error("migrated flag set after fatal failure")
	}
}

func TestNonFatalFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, 3)

	if _, err := f.backend.DB().Exec("DROP TABLE reflections"); err != nil {
		t.Fatalf("failed to drop reflections: %v", err)
	}

	summary, err := f.runner(Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil", err)
	}
	if diff := cmp.Diff([]StepID{StepUploadReflections}, summary.FailedSteps); diff != "" {
		t.Errorf("failed steps mismatch (-want +got):\n%s", diff)
	}
	if n := f.count(t, remote.AdminTasks); n != 1 {
		t.Errorf("admin tasks after failed step: got %d, want 1", n)
	}
	if !f.store.Migrated() {
		t.Error("migrated flag not set after non-fatal failure")
	}
}

func TestResumeReusesRemoteIDs(t *testing.T) {
	tests := []struct {
		name     string
		clearMap bool
	}{
		{"persisted map", false},
		{"map lost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedLocal(t, 2)

			if _, err := f.runner(Options{}).Run(context.Background()); err != nil {
				t.Fatalf("first Run() failed: %v", err)
			}
			first := f.store.LoadIDRemap()

			if tt.clearMap {
				if err := f.store.SaveIDRemap(map[string]string{}); err != nil {
					t.Fatalf("SaveIDRemap() failed: %v", err)
				}
			}
			if err := f.store.SetMigrated(false); err != nil {
				t.Fatalf("SetMigrated() failed: %v", err)
			}

			if _, err := f.runner(Options{}).Run(context.Background()); err != nil {
				t.Fatalf("second Run() failed: %v", err)
			}
			second := f.store.LoadIDRemap()
			for _, h := range append(catalog.Default(), schema.Habit{ID: "hab-custom-1"}) {
				if first[h.ID] != second[h.ID] {
					t.Errorf("%s: id changed from %q to %q", h.ID, first[h.ID], second[h.ID])
				}
			}
			want := len(catalog.Default()) + 1
			if n := f.count(t, remote.Habits); n != want {
				t.Errorf("got %d habit rows, want %d", n, want)
			}
		})
	}
}

func TestAlreadyMigratedSkipsEverything(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, 2)
	if err := f.store.SetMigrated(true); err != nil {
		t.Fatalf("SetMigrated() failed: %v", err)
	}

	summary, err := f.runner(Options{}).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !summary.AlreadyDone {
		t.Error("AlreadyDone = false")
	}
	for _, s := range summary.Steps {
		if s.Status != StatusSkipped {
			t.Errorf("%s status = %s, want skipped", s.ID, s.Status)
		}
	}
	if n := f.count(t, remote.Profiles); n != 0 {
		t.Errorf("got %d profiles, want none", n)
	}
}

func TestVerifySession(t *testing.T) {
	tests := []struct {
		name    string
		session auth.Static
		userID  string
	}{
		{"wrong user", auth.Static{UserID: "u1", ExpiresAt: testNow.Add(time.Hour)}, "u2"},
		{"expired", auth.Static{UserID: "u1", ExpiresAt: testNow.Add(-time.Minute)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.session = tt.session

			summary, err := f.runner(Options{UserID: tt.userID}).Run(context.Background())
			if !IsFatal(err) {
				t.Fatalf("Run() error = %v, want fatal", err)
			}
			if summary.FailedSteps[0] != StepVerifySession {
				t.Errorf("first failed step = %s, want %s", summary.FailedSteps[0], StepVerifySession)
			}
		})
	}
}

func TestReportYAML(t *testing.T) {
	f := newFixture(t)
	f.seedLocal(t, 1)

	r := f.runner(Options{})
	if _, err := r.Report(); err == nil {
		t.Error("Report() before Run() should fail")
	}
	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	out, err := r.Report()
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if !strings.Contains(string(out), "id: upload_history") {
		t.Errorf("report missing upload_history:\n%s", out)
	}

	var got Summary
	if err := yaml.Unmarshal(out, &got); err != nil {
		t.Fatalf("yaml.Unmarshal() failed: %v", err)
	}
	if !got.Success || len(got.Steps) != len(Order) {
		t.Errorf("report = success %v with %d steps", got.Success, len(got.Steps))
	}
}
