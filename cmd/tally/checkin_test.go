package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/schema"
)

func TestParseDate(t *testing.T) {
	now := time.Date(2025, 3, 20, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "2025-03-20", false},
		{"today", "2025-03-20", false},
		{"2025-03-01", "2025-03-01", false},
		{"yesterday", "2025-03-19", false},
		{"2025-03-21", "", true},
		{"gibberish", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDate(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.Format(schema.DateLayout) != tt.want {
				t.Errorf("parseDate(%q) = %s, want %s", tt.in, got.Format(schema.DateLayout), tt.want)
			}
		})
	}
}

func TestParseDate_UsesUserTimezone(t *testing.T) {
	settings := schema.Settings{Timezone: "America/Los_Angeles"}
	// 06:30 UTC on the 21st is still the evening of the 20th in Los Angeles.
	now := time.Date(2025, 3, 21, 6, 30, 0, 0, time.UTC).In(settings.Location())

	got, err := parseDate("today", now)
	if err != nil {
		t.Fatalf("parseDate(today) failed: %v", err)
	}
	if d := got.Format(schema.DateLayout); d != "2025-03-20" {
		t.Errorf("parseDate(today) = %s, want 2025-03-20", d)
	}
	if _, err := parseDate("2025-03-21", now); err == nil {
		t.Error("parseDate(2025-03-21) succeeded, want future-date error")
	}
}

func TestLastDays(t *testing.T) {
	st := schema.DefaultState()
	l := schema.NewDayLog("2025-03-19")
	l.XPEarned = 10
	st.Logs = []schema.DayLog{l}

	got := lastDays(st, 3, time.Date(2025, 3, 20, 23, 0, 0, 0, time.UTC))
	var dates []string
	for _, d := range got {
		dates = append(dates, d.Date)
	}
	if diff := cmp.Diff([]string{"2025-03-18", "2025-03-19", "2025-03-20"}, dates); diff != "" {
		t.Errorf("dates mismatch (-want +got):\n%s", diff)
	}
	if got[1].XPEarned != 10 {
		t.Errorf("stored log not used: %+v", got[1])
	}
}

func TestApplyAnswersAndScore(t *testing.T) {
	habits := catalog.Default()
	log := schema.NewDayLog("2025-03-20")
	log.Entries["hab-sleep"] = schema.Entry{Status: schema.StatusDone}

	answers := map[schema.Status][]string{
		schema.StatusDone:   {"water", "read"},
		schema.StatusMissed: {"exercise"},
	}
	if err := applyAnswers(&log, habits, answers, []string{"doomscroll"}, []string{"late-snack"}); err != nil {
		t.Fatalf("applyAnswers() failed: %v", err)
	}
	score(&log, habits)

	got := map[string]schema.Status{}
	for id, e := range log.Entries {
		got[id] = e.Status
	}
	want := map[string]schema.Status{
		"hab-water":    schema.StatusDone,
		"hab-read":     schema.StatusDone,
		"hab-sleep":    schema.StatusDone,
		"hab-exercise": schema.StatusMissed,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
	if log.XPEarned != 3*xpPerHabit {
		t.Errorf("XPEarned = %d, want %d", log.XPEarned, 3*xpPerHabit)
	}
	if !log.BareMinimumMet {
		t.Error("BareMinimumMet = false")
	}
	if o := log.BadEntries["hab-doomscroll"].Occurred; o == nil || !*o {
		t.Error("doomscroll not recorded as slipped")
	}
	if o := log.BadEntries["hab-late-snack"].Occurred; o == nil || *o {
		t.Error("late-snack not recorded as clean")
	}
}

func TestApplyAnswersRejectsUnknown(t *testing.T) {
	habits := catalog.Default()
	tests := []struct {
		name    string
		answers map[schema.Status][]string
		slipped []string
	}{
		{"unknown slug", map[schema.Status][]string{schema.StatusDone: {"juggling"}}, nil},
		{"bad habit marked done", map[schema.Status][]string{schema.StatusDone: {"doomscroll"}}, nil},
		{"good habit slipped", nil, []string{"water"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := schema.NewDayLog("2025-03-20")
			if err := applyAnswers(&log, habits, tt.answers, tt.slipped, nil); err == nil {
				t.Error("applyAnswers() should fail")
			}
		})
	}
}

func TestWriteExport(t *testing.T) {
	b := exportBundle{State: schema.DefaultState(), Settings: schema.DefaultSettings()}
	b.State.TotalXP = 40

	var buf bytes.Buffer
	if err := writeExport(&buf, "json", b); err != nil {
		t.Fatalf("writeExport(json) failed: %v", err)
	}
	var back exportBundle
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	if back.State.TotalXP != 40 {
		t.Errorf("TotalXP = %d, want 40", back.State.TotalXP)
	}

	buf.Reset()
	if err := writeExport(&buf, "yaml", b); err != nil {
		t.Fatalf("writeExport(yaml) failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("empty yaml export")
	}

	if err := writeExport(&buf, "xml", b); err == nil {
		t.Error("writeExport(xml) should fail")
	}
}
