package rows

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mschirtzinger/tally/internal/schema"
)

func ptr[T any](v T) *T { return &v }

func TestIDMap(t *testing.T) {
	m := IDMap{"water": "u-1"}
	if got := m.Remote("water"); got != "u-1" {
		t.Errorf("Remote(water) = %q, want u-1", got)
	}
	if got := m.Remote("custom"); got != "custom" {
		t.Errorf("Remote(custom) = %q, want identity", got)
	}
	if got := m.Invert().Remote("u-1"); got != "water" {
		t.Errorf("Invert().Remote(u-1) = %q, want water", got)
	}
}

func TestIDMap_LinkBySlug(t *testing.T) {
	habits := []schema.Habit{{ID: "hab-water", Slug: "water"}, {ID: "hab-read", Slug: "read"}}
	remote := []HabitRow{{ID: "u-water", Slug: "water"}, {ID: "u-other", Slug: "other"}}

	m := IDMap{}
	if !m.LinkBySlug(habits, remote) {
		t.Fatal("LinkBySlug() = false, want a change")
	}
	if diff := cmp.Diff(IDMap{"hab-water": "u-water"}, m); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
	if m.Covers(habits) {
		t.Error("Covers() = true with read unlinked")
	}
	if m.LinkBySlug(habits, remote) {
		t.Error("second LinkBySlug() reported a change")
	}

	remote = append(remote, HabitRow{ID: "u-read", Slug: "read"})
	m.LinkBySlug(habits, remote)
	if !m.Covers(habits) {
		t.Errorf("Covers() = false after linking every slug: %v", m)
	}
}

func TestDayLogs_RoundTrip(t *testing.T) {
	ids := IDMap{"water": "u-water", "smoke": "u-smoke"}
	logs := []schema.DayLog{
		{
			Date: "2025-03-01",
			Entries: map[string]schema.Entry{
				"water": {Status: schema.StatusDone, Value: ptr(2.5)},
				"read":  {Status: schema.StatusMissed},
			},
			BadEntries: map[string]schema.BadEntry{
				"smoke": {Occurred: ptr(false)},
			},
			Admin:          &schema.AdminSummary{Total: 3, Completed: 1, Tasks: []string{"mail"}},
			XPEarned:       45,
			BareMinimumMet: true,
			SubmittedAt:    "2025-03-01T21:00:00Z",
		},
		{
			Date:       "2025-03-02",
			Entries:    map[string]schema.Entry{"water": {Status: schema.StatusLater}},
			BadEntries: map[string]schema.BadEntry{},
		},
	}

	b := DayLogsToRows("user-1", logs, ids)
	if len(b.Logs) != 3 || len(b.BadLogs) != 1 || len(b.Summaries) != 2 {
		t.Fatalf("bundle sizes = %d/%d/%d, want 3/1/2", len(b.Logs), len(b.BadLogs), len(b.Summaries))
	}
	for _, r := range b.Logs {
		if r.UserID != "user-1" {
			t.Errorf("row missing user id: %+v", r)
		}
		if r.HabitID == "water" {
			t.Errorf("habit id not remapped: %+v", r)
		}
	}

	got := RowsToDayLogs(b, ids.Invert())
	if diff := cmp.Diff(logs, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRowsToDayLogs_FillsMissingSummary(t *testing.T) {
	b := Bundle{
		Logs: []DailyLogRow{
			{UserID: "u", HabitID: "h1", LogDate: "2025-03-05", Status: "done"},
			{UserID: "u", HabitID: "h1", LogDate: "2025-03-04", Status: "missed"},
		},
		Summaries: []DailySummaryRow{
			{UserID: "u", LogDate: "2025-03-04", XPEarned: 10, SubmittedAt: "x"},
		},
	}

	got := RowsToDayLogs(b, nil)
	if len(got) != 2 {
		t.Fatalf("got %d logs, want 2", len(got))
	}
	if got[0].Date != "2025-03-04" || got[0].XPEarned != 10 {
		t.Errorf("first log = %+v", got[0])
	}
	if got[1].XPEarned != 0 || got[1].BareMinimumMet || got[1].SubmittedAt != "" || got[1].Admin != nil {
		t.Errorf("missing summary not defaulted: %+v", got[1])
	}
}

func TestDayLogsToRows_SkipsEmptyEntries(t *testing.T) {
	log := schema.NewDayLog("2025-03-01")
	log.Entries["h1"] = schema.Entry{}
	log.BadEntries["b1"] = schema.BadEntry{}

	b := DayLogsToRows("u", []schema.DayLog{log}, nil)
	if len(b.Logs) != 0 || len(b.BadLogs) != 0 {
		t.Errorf("empty entries produced rows: %+v", b)
	}
	if len(b.Summaries) != 1 {
		t.Errorf("want one summary row, got %d", len(b.Summaries))
	}
}

func TestStreaks_RoundTrip(t *testing.T) {
	streaks := map[string]int{"gym": 16, "read": 0}
	shields := map[string]schema.StreakShield{
		"gym": {Available: false, EarnedDate: "2025-02-20", UsedDate: "2025-03-09"},
	}

	rs := StreaksToRows("u", streaks, shields)
	if len(rs) != 2 || rs[0].Slug != "gym" {
		t.Fatalf("rows = %+v", rs)
	}

	gotStreaks, gotShields := RowsToStreaks(rs)
	if diff := cmp.Diff(streaks, gotStreaks); diff != "" {
		t.Errorf("streaks mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(shields, gotShields); diff != "" {
		t.Errorf("shields mismatch (-want +got):\n%s", diff)
	}
}

func TestSprints_SplitActiveAndHistory(t *testing.T) {
	sprints := []schema.Sprint{
		{ID: "s2", Name: "now", Status: schema.SprintActive, StartDate: "2025-03-01",
			Tasks: []schema.SprintTask{{ID: "t1", Title: "a"}, {ID: "t2", Title: "b", Done: true}}},
		{ID: "s1", Name: "before", Status: schema.SprintCompleted, StartDate: "2025-02-01", EndDate: "2025-02-14"},
	}

	hs, ts := SprintsToRows("u", sprints)
	active, history := RowsToSprints(hs, ts)

	if active == nil || active.ID != "s2" {
		t.Fatalf("active = %+v, want s2", active)
	}
	if diff := cmp.Diff(sprints[0], *active); diff != "" {
		t.Errorf("active mismatch (-want +got):\n%s", diff)
	}
	if len(history) != 1 || history[0].ID != "s1" {
		t.Errorf("history = %+v", history)
	}
}

func TestGymSessions_RoundTrip(t *testing.T) {
	sessions := []schema.GymSession{{
		ID: "g1", Date: "2025-03-01", Name: "push",
		Exercises: []schema.GymExercise{
			{ID: "e1", Name: "bench", Sets: []schema.GymSet{{ID: "s1", Reps: 5, WeightKg: 80}, {ID: "s2", Reps: 5, WeightKg: 82.5}}},
			{ID: "e2", Name: "dips"},
		},
	}}

	got := RowsToGymSessions(GymSessionsToRows("u", sessions))
	if diff := cmp.Diff(sessions, got); diff != "" {
		t.Errorf("gym round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGymRoutines_RoundTrip(t *testing.T) {
	routines := []schema.GymRoutine{{
		ID: "r1", Name: "legs",
		Exercises: []schema.RoutineExercise{{ID: "x1", Name: "squat", TargetSets: 5, TargetReps: 5}},
	}}

	got := RowsToGymRoutines(GymRoutinesToRows("u", routines))
	if diff := cmp.Diff(routines, got); diff != "" {
		t.Errorf("routine round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	ids := IDMap{"water": "u-water"}
	settings := schema.Settings{
		DisplayName: "sam",
		Timezone:    "Europe/Berlin",
		DailyXPGoal: 150,
		CustomHabits: []schema.Habit{
			{ID: "c1", Slug: "stretch", Name: "Stretch", Order: 20, Custom: true},
		},
		HabitOverrides: map[string]schema.HabitOverride{
			"water": {Target: ptr(3.0)},
		},
	}

	row := SettingsToRow("u", settings)
	habits := HabitsToRows("u", settings.CustomHabits, ids)
	overrides := OverridesToRows("u", settings.HabitOverrides, ids)
	if overrides[0].HabitID != "u-water" {
		t.Errorf("override habit id = %q, want u-water", overrides[0].HabitID)
	}

	got := RowsToSettings(row, habits, overrides, ids.Invert())
	if diff := cmp.Diff(settings, got); diff != "" {
		t.Errorf("settings round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSimpleAggregates(t *testing.T) {
	tasks := []schema.AdminTask{
		{ID: "a2", Title: "later", CreatedAt: "2025-03-02"},
		{ID: "a1", Title: "first", Done: true, CreatedAt: "2025-03-01"},
	}
	gotTasks := RowsToAdminTasks(AdminTasksToRows("u", tasks))
	if gotTasks[0].ID != "a1" || len(gotTasks) != 2 {
		t.Errorf("admin tasks = %+v", gotTasks)
	}

	counters := schema.UsageCounters{"checkin": 4, "export": 1}
	if diff := cmp.Diff(counters, RowsToUsageCounters(UsageCountersToRows("u", counters))); diff != "" {
		t.Errorf("counters mismatch (-want +got):\n%s", diff)
	}

	refl := []schema.Reflection{{ID: "r1", Period: "weekly", PeriodStart: "2025-03-03", Wins: "ran", CreatedAt: "t"}}
	if diff := cmp.Diff(refl, RowsToReflections(ReflectionsToRows("u", refl))); diff != "" {
		t.Errorf("reflections mismatch (-want +got):\n%s", diff)
	}

	st := schema.DefaultState()
	st.TotalXP = 1200
	st.BareMinimumStreak = 3
	row := StatsToRow("u", st, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if row.Level != 2 || row.UpdatedAt != "2025-03-01T00:00:00Z" {
		t.Errorf("stats row = %+v", row)
	}
}
