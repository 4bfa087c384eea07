package schema

import (
	"fmt"
)

// XPPerLevel is the XP needed to advance one level.
const XPPerLevel = 1000

// StreakShield forgives a single missed day once per calendar month.
type StreakShield struct {
	Available  bool   `json:"available"`
	EarnedDate string `json:"earned_date,omitempty"`
	UsedDate   string `json:"used_date,omitempty"`
}

// LocalState is the canonical on-device snapshot of a user's progress.
type LocalState struct {
	TotalXP           int                     `json:"total_xp"`
	Level             int                     `json:"level"`
	Streaks           map[string]int          `json:"streaks"`
	BareMinimumStreak int                     `json:"bare_minimum_streak"`
	Logs              []DayLog                `json:"logs"`
	ActiveSprint      *Sprint                 `json:"active_sprint,omitempty"`
	SprintHistory     []Sprint                `json:"sprint_history,omitempty"`
	Reflections       []Reflection            `json:"reflections,omitempty"`
	Shields           map[string]StreakShield `json:"shields,omitempty"`
}

// DefaultState is what the app starts from when nothing has been stored.
func DefaultState() LocalState {
	return LocalState{
		Level:   1,
		Streaks: make(map[string]int),
		Logs:    []DayLog{},
		Shields: make(map[string]StreakShield),
	}
}

// LevelForXP derives the level shown for a given XP total.
func LevelForXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	return 1 + xp/XPPerLevel
}

// IsEmpty reports whether the snapshot carries no meaningful data:
// no day logs and zero XP.
func (s *LocalState) IsEmpty() bool {
	return len(s.Logs) == 0 && s.TotalXP == 0
}

// Normalize enforces the snapshot invariants in place: logs sorted by date
// with duplicates merged, XP non-negative, level derived, maps non-nil.
func (s *LocalState) Normalize() {
	if s.TotalXP < 0 {
		s.TotalXP = 0
	}
	s.Level = LevelForXP(s.TotalXP)
	if s.Streaks == nil {
		s.Streaks = make(map[string]int)
	}
	if s.Shields == nil {
		s.Shields = make(map[string]StreakShield)
	}
	if s.Logs == nil {
		s.Logs = []DayLog{}
	}

	byDate := make(map[string]int, len(s.Logs))
	merged := make([]DayLog, 0, len(s.Logs))
	for _, l := range s.Logs {
		if l.Entries == nil {
			l.Entries = make(map[string]Entry)
		}
		if i, ok := byDate[l.Date]; ok {
			merged[i] = MergeDayLogs(l, merged[i])
			continue
		}
		byDate[l.Date] = len(merged)
		merged = append(merged, l)
	}
	SortLogs(merged)
	s.Logs = merged
}

// Validate checks invariants without modifying the snapshot.
func (s *LocalState) Validate() error {
	if s.TotalXP < 0 {
		return fmt.Errorf("total_xp must be non-negative (got %d)", s.TotalXP)
	}
	seen := make(map[string]bool, len(s.Logs))
	for i := range s.Logs {
		if err := s.Logs[i].Validate(); err != nil {
			return fmt.Errorf("log %d: %w", i, err)
		}
		if seen[s.Logs[i].Date] {
			return fmt.Errorf("duplicate log for %s", s.Logs[i].Date)
		}
		seen[s.Logs[i].Date] = true
	}
	return nil
}

// Log returns the day log for date, if present.
func (s *LocalState) Log(date string) (DayLog, bool) {
	for _, l := range s.Logs {
		if l.Date == date {
			return l, true
		}
	}
	return DayLog{}, false
}

// PutLog inserts or merges a day log, keeping invariants. The incoming log
// takes precedence for answered entries.
func (s *LocalState) PutLog(log DayLog) {
	for i, l := range s.Logs {
		if l.Date == log.Date {
			s.Logs[i] = MergeDayLogs(log, l)
			return
		}
	}
	s.Logs = append(s.Logs, log)
	SortLogs(s.Logs)
}
