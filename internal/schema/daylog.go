package schema

import (
	"fmt"
	"sort"
	"time"
)

// DateLayout is the calendar-day format used for every date key.
const DateLayout = "2006-01-02"

// Status is the answer recorded for a habit on a given day.
type Status string

const (
	StatusDone   Status = "done"
	StatusMissed Status = "missed"
	StatusLater  Status = "later"
	StatusUnset  Status = ""
)

// IsValid reports whether s is one of the known statuses (unset included).
func (s Status) IsValid() bool {
	switch s {
	case StatusDone, StatusMissed, StatusLater, StatusUnset:
		return true
	default:
		return false
	}
}

// Defined reports whether the user actually answered.
func (s Status) Defined() bool {
	return s != StatusUnset
}

// Entry is one habit's answer for a day.
type Entry struct {
	Status Status   `json:"status,omitempty"`
	Value  *float64 `json:"value,omitempty"`
}

// BadEntry records whether a bad habit occurred. Occurred is nil until answered.
type BadEntry struct {
	Occurred        *bool `json:"occurred,omitempty"`
	DurationMinutes *int  `json:"duration_minutes,omitempty"`
}

// AdminSummary is the day's admin-task rollup.
type AdminSummary struct {
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Tasks     []string `json:"tasks,omitempty"`
}

// DayLog is the record of one calendar day.
type DayLog struct {
	Date           string              `json:"date"`
	Entries        map[string]Entry    `json:"entries"`
	BadEntries     map[string]BadEntry `json:"bad_entries,omitempty"`
	Admin          *AdminSummary       `json:"admin,omitempty"`
	XPEarned       int                 `json:"xp_earned"`
	BareMinimumMet bool                `json:"bare_minimum_met"`
	SubmittedAt    string              `json:"submitted_at,omitempty"`
}

// NewDayLog returns an empty log for date.
func NewDayLog(date string) DayLog {
	return DayLog{
		Date:       date,
		Entries:    make(map[string]Entry),
		BadEntries: make(map[string]BadEntry),
	}
}

// Validate checks the date key and entry statuses.
func (d *DayLog) Validate() error {
	if d.Date == "" {
		return fmt.Errorf("date is required")
	}
	if _, err := time.Parse(DateLayout, d.Date); err != nil {
		return fmt.Errorf("date %q is not YYYY-MM-DD", d.Date)
	}
	for id, e := range d.Entries {
		if !e.Status.IsValid() {
			return fmt.Errorf("entry %s has invalid status %q", id, e.Status)
		}
	}
	if d.XPEarned < 0 {
		return fmt.Errorf("xp_earned must be non-negative (got %d)", d.XPEarned)
	}
	return nil
}

// Time parses the log's date in UTC.
func (d *DayLog) Time() (time.Time, error) {
	return time.Parse(DateLayout, d.Date)
}

// SortLogs orders logs by date ascending, in place.
func SortLogs(logs []DayLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Date < logs[j].Date
	})
}

// IndexLogs returns a date -> log lookup. Later duplicates win.
func IndexLogs(logs []DayLog) map[string]DayLog {
	idx := make(map[string]DayLog, len(logs))
	for _, l := range logs {
		idx[l.Date] = l
	}
	return idx
}

// Today formats t as a date key in t's location.
func Today(t time.Time) string {
	return t.Format(DateLayout)
}
