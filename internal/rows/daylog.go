package rows

import (
	"encoding/json"
	"sort"

	"github.com/mschirtzinger/tally/internal/schema"
)

// Bundle is the remote representation of a set of day logs.
type Bundle struct {
	Logs      []DailyLogRow
	BadLogs   []BadHabitLogRow
	Summaries []DailySummaryRow
}

// Empty reports whether the bundle has no rows at all.
func (b Bundle) Empty() bool {
	return len(b.Logs) == 0 && len(b.BadLogs) == 0 && len(b.Summaries) == 0
}

// DayLogsToRows flattens logs into per-habit rows plus one summary per day.
// Entries with neither a status nor a value are dropped.
func DayLogsToRows(userID string, logs []schema.DayLog, ids IDMap) Bundle {
	var b Bundle
	for _, log := range logs {
		for _, habitID := range sortedKeys(log.Entries) {
			e := log.Entries[habitID]
			if e.Status == schema.StatusUnset && e.Value == nil {
				continue
			}
			b.Logs = append(b.Logs, DailyLogRow{
				UserID:  userID,
				HabitID: ids.Remote(habitID),
				LogDate: log.Date,
				Status:  string(e.Status),
				Value:   e.Value,
			})
		}
		for _, habitID := range sortedKeys(log.BadEntries) {
			e := log.BadEntries[habitID]
			if e.Occurred == nil && e.DurationMinutes == nil {
				continue
			}
			b.BadLogs = append(b.BadLogs, BadHabitLogRow{
				UserID:          userID,
				HabitID:         ids.Remote(habitID),
				LogDate:         log.Date,
				Occurred:        e.Occurred,
				DurationMinutes: e.DurationMinutes,
			})
		}
		b.Summaries = append(b.Summaries, summaryRow(userID, log))
	}
	return b
}

func summaryRow(userID string, log schema.DayLog) DailySummaryRow {
	row := DailySummaryRow{
		UserID:         userID,
		LogDate:        log.Date,
		XPEarned:       log.XPEarned,
		BareMinimumMet: log.BareMinimumMet,
		SubmittedAt:    log.SubmittedAt,
	}
	if log.Admin != nil {
		total, completed := log.Admin.Total, log.Admin.Completed
		row.AdminTotal = &total
		row.AdminCompleted = &completed
		if len(log.Admin.Tasks) > 0 {
			raw, err := json.Marshal(log.Admin.Tasks)
			if err == nil {
				s := string(raw)
				row.AdminTasks = &s
			}
		}
	}
	return row
}

// RowsToDayLogs groups rows back into day logs, sorted by date. A day with
// entries but no summary row gets zero XP, no bare minimum and no
// submission time. local maps remote habit ids back to local ids.
func RowsToDayLogs(b Bundle, local IDMap) []schema.DayLog {
	byDate := make(map[string]*schema.DayLog)
	get := func(date string) *schema.DayLog {
		if l, ok := byDate[date]; ok {
			return l
		}
		l := schema.NewDayLog(date)
		byDate[date] = &l
		return &l
	}

	for _, r := range b.Logs {
		get(r.LogDate).Entries[local.Remote(r.HabitID)] = schema.Entry{
			Status: schema.Status(r.Status),
			Value:  r.Value,
		}
	}
	for _, r := range b.BadLogs {
		get(r.LogDate).BadEntries[local.Remote(r.HabitID)] = schema.BadEntry{
			Occurred:        r.Occurred,
			DurationMinutes: r.DurationMinutes,
		}
	}
	for _, r := range b.Summaries {
		l := get(r.LogDate)
		l.XPEarned = r.XPEarned
		l.BareMinimumMet = r.BareMinimumMet
		l.SubmittedAt = r.SubmittedAt
		if r.AdminTotal != nil {
			admin := &schema.AdminSummary{Total: *r.AdminTotal}
			if r.AdminCompleted != nil {
				admin.Completed = *r.AdminCompleted
			}
			if r.AdminTasks != nil {
				_ = json.Unmarshal([]byte(*r.AdminTasks), &admin.Tasks)
			}
			l.Admin = admin
		}
	}

	logs := make([]schema.DayLog, 0, len(byDate))
	for _, l := range byDate {
		logs = append(logs, *l)
	}
	schema.SortLogs(logs)
	return logs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
