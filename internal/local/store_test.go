package local

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/mschirtzinger/tally/internal/schema"
)

// testStore opens a store in a temp dir and closes it on cleanup.
func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_CreatesDocumentsTable(t *testing.T) {
	s := testStore(t)

	var count int
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='documents'`).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("documents table does not exist")
	}
}

func TestLoadState_MissingReturnsDefault(t *testing.T) {
	s := testStore(t)

	got := s.LoadState()
	want := schema.DefaultState()
	if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("LoadState() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadState_CorruptReturnsDefault(t *testing.T) {
	s := testStore(t)

	if err := s.Put(KeyAppState, []byte("{not json")); err != nil {
		t.Fatalf("Put() failed: %v", err)
	}

	r := Read[schema.LocalState](s, KeyAppState)
	if r.Status != Corrupt {
		t.Errorf("Status = %v, want corrupt", r.Status)
	}
	if r.Err == nil {
		t.Error("expected a parse error on corrupt document")
	}

	got := s.LoadState()
	if got.TotalXP != 0 || len(got.Logs) != 0 || got.Level != 1 {
		t.Errorf("LoadState() on corrupt doc = %+v, want default", got)
	}
}

func TestSaveState_RoundTrip(t *testing.T) {
	s := testStore(t)

	st := schema.DefaultState()
	st.TotalXP = 2500
	log := schema.NewDayLog("2025-03-02")
	log.Entries["h1"] = schema.Entry{Status: schema.StatusDone}
	log.XPEarned = 40
	st.Logs = append(st.Logs, log, schema.NewDayLog("2025-03-01"))
	st.Streaks["gym"] = 4

	if err := s.SaveState(st); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}

	got := s.LoadState()
	if got.Level != 3 {
		t.Errorf("Level = %d, want 3", got.Level)
	}
	if len(got.Logs) != 2 || got.Logs[0].Date != "2025-03-01" {
		t.Errorf("logs not normalized: %+v", got.Logs)
	}
	if got.Logs[1].Entries["h1"].Status != schema.StatusDone {
		t.Errorf("entry lost: %+v", got.Logs[1])
	}
	if got.Streaks["gym"] != 4 {
		t.Errorf("Streaks[gym] = %d, want 4", got.Streaks["gym"])
	}
}

func TestSecondaryDocuments(t *testing.T) {
	s := testStore(t)

	settings := s.LoadSettings()
	if settings.Timezone != "UTC" || settings.HabitOverrides == nil {
		t.Errorf("LoadSettings() default = %+v", settings)
	}
	settings.DisplayName = "sam"
	if err := s.SaveSettings(settings); err != nil {
		t.Fatalf("SaveSettings() failed: %v", err)
	}
	if got := s.LoadSettings().DisplayName; got != "sam" {
		t.Errorf("DisplayName = %q, want sam", got)
	}

	tasks := []schema.AdminTask{{ID: "a1", Title: "taxes", CreatedAt: "2025-03-01T00:00:00Z"}}
	if err := s.SaveAdminTasks(tasks); err != nil {
		t.Fatalf("SaveAdminTasks() failed: %v", err)
	}
	if diff := cmp.Diff(tasks, s.LoadAdminTasks()); diff != "" {
		t.Errorf("admin tasks mismatch (-want +got):\n%s", diff)
	}

	if got := s.LoadGymSessions(); got == nil || len(got) != 0 {
		t.Errorf("LoadGymSessions() default = %v, want empty non-nil", got)
	}

	counters := schema.UsageCounters{"checkin": 3}
	if err := s.SaveUsageCounters(counters); err != nil {
		t.Fatalf("SaveUsageCounters() failed: %v", err)
	}
	if got := s.LoadUsageCounters()["checkin"]; got != 3 {
		t.Errorf("checkin counter = %d, want 3", got)
	}
}

func TestMigratedAndIDRemap(t *testing.T) {
	s := testStore(t)

	if s.Migrated() {
		t.Error("Migrated() = true on fresh store")
	}
	if err := s.SetMigrated(true); err != nil {
		t.Fatalf("SetMigrated() failed: %v", err)
	}
	if !s.Migrated() {
		t.Error("Migrated() = false after SetMigrated(true)")
	}

	if m := s.LoadIDRemap(); m == nil || len(m) != 0 {
		t.Errorf("LoadIDRemap() default = %v", m)
	}
	want := map[string]string{"local-1": "remote-1"}
	if err := s.SaveIDRemap(want); err != nil {
		t.Fatalf("SaveIDRemap() failed: %v", err)
	}
	if diff := cmp.Diff(want, s.LoadIDRemap()); diff != "" {
		t.Errorf("id remap mismatch (-want +got):\n%s", diff)
	}
}

func TestClearAll_RemovesEveryKey(t *testing.T) {
	s := testStore(t)

	for _, k := range AllKeys {
		if err := s.Put(k, []byte(`{}`)); err != nil {
			t.Fatalf("Put(%s) failed: %v", k, err)
		}
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() failed: %v", err)
	}

	for _, k := range AllKeys {
		if _, ok, err := s.Get(k); err != nil || ok {
			t.Errorf("key %s survived ClearAll (ok=%v err=%v)", k, ok, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		raw    []byte
		ok     bool
		status Status
		want   int
	}{
		{"missing", nil, false, Missing, 7},
		{"empty", []byte{}, true, Missing, 7},
		{"corrupt", []byte("x"), true, Corrupt, 7},
		{"found", []byte("42"), true, Found, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Decode[int](tt.raw, tt.ok)
			if r.Status != tt.status {
				t.Errorf("Status = %v, want %v", r.Status, tt.status)
			}
			if got := r.OrDefault(7); got != tt.want {
				t.Errorf("OrDefault(7) = %d, want %d", got, tt.want)
			}
		})
	}
}
