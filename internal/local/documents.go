package local

import (
	"time"

	"github.com/mschirtzinger/tally/internal/schema"
)

// LoadState returns the stored snapshot, or schema.DefaultState() when the
// document is missing or corrupt.
func (s *Store) LoadState() schema.LocalState {
	st := Read[schema.LocalState](s, KeyAppState).OrDefault(schema.DefaultState())
	st.Normalize()
	return st
}

// SaveState normalizes and writes the snapshot synchronously.
func (s *Store) SaveState(st schema.LocalState) error {
	st.Normalize()
	return Write(s, KeyAppState, st)
}

// LoadSettings returns stored settings or schema.DefaultSettings().
func (s *Store) LoadSettings() schema.Settings {
	st := Read[schema.Settings](s, KeySettings).OrDefault(schema.DefaultSettings())
	if st.HabitOverrides == nil {
		st.HabitOverrides = make(map[string]schema.HabitOverride)
	}
	return st
}

// SaveSettings writes settings.
func (s *Store) SaveSettings(st schema.Settings) error {
	return Write(s, KeySettings, st)
}

// LoadGymSessions returns stored sessions or none.
func (s *Store) LoadGymSessions() []schema.GymSession {
	return Read[[]schema.GymSession](s, KeyGymSessions).OrDefault([]schema.GymSession{})
}

// SaveGymSessions writes sessions.
func (s *Store) SaveGymSessions(v []schema.GymSession) error {
	return Write(s, KeyGymSessions, v)
}

// LoadGymRoutines returns stored routines or none.
func (s *Store) LoadGymRoutines() []schema.GymRoutine {
	return Read[[]schema.GymRoutine](s, KeyGymRoutines).OrDefault([]schema.GymRoutine{})
}

// SaveGymRoutines writes routines.
func (s *Store) SaveGymRoutines(v []schema.GymRoutine) error {
	return Write(s, KeyGymRoutines, v)
}

// LoadAdminTasks returns stored admin tasks or none.
func (s *Store) LoadAdminTasks() []schema.AdminTask {
	return Read[[]schema.AdminTask](s, KeyAdminTasks).OrDefault([]schema.AdminTask{})
}

// SaveAdminTasks writes admin tasks.
func (s *Store) SaveAdminTasks(v []schema.AdminTask) error {
	return Write(s, KeyAdminTasks, v)
}

// LoadUsageCounters returns stored counters or an empty set.
func (s *Store) LoadUsageCounters() schema.UsageCounters {
	return Read[schema.UsageCounters](s, KeyUsageCounters).OrDefault(schema.UsageCounters{})
}

// SaveUsageCounters writes counters.
func (s *Store) SaveUsageCounters(v schema.UsageCounters) error {
	return Write(s, KeyUsageCounters, v)
}

// Migrated reports whether the one-time upload has completed on this device.
func (s *Store) Migrated() bool {
	return Read[bool](s, KeyMigrated).OrDefault(false)
}

// SetMigrated records the migration marker.
func (s *Store) SetMigrated(v bool) error {
	return Write(s, KeyMigrated, v)
}

// LoadIDRemap returns the persisted old-id -> new-id table.
func (s *Store) LoadIDRemap() map[string]string {
	m := Read[map[string]string](s, KeyIDRemap).OrDefault(nil)
	if m == nil {
		m = make(map[string]string)
	}
	return m
}

// SaveIDRemap persists the id table.
func (s *Store) SaveIDRemap(m map[string]string) error {
	return Write(s, KeyIDRemap, m)
}

// LastSynced returns when a remote read or write last succeeded, or the zero
// time.
func (s *Store) LastSynced() time.Time {
	return Read[time.Time](s, KeyLastSync).OrDefault(time.Time{})
}

// MarkSynced records a successful remote exchange.
func (s *Store) MarkSynced(t time.Time) error {
	return Write(s, KeyLastSync, t.UTC())
}
