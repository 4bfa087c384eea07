package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
)

// seedRemoteHabits writes the catalog under fresh remote ids, the way a
// migration on another device does, and returns the id map.
func seedRemoteHabits(t *testing.T, h *harness) rows.IDMap {
	t.Helper()
	ids := rows.IDMap{}
	for _, hab := range catalog.Default() {
		ids[hab.ID] = "r-" + hab.Slug
	}
	op, err := remote.Habits.Op(queue.Upsert, rows.HabitsToRows("u1", catalog.Default(), ids))
	if err != nil {
		t.Fatalf("Habits.Op() failed: %v", err)
	}
	if err := h.backend.Backend.Apply(context.Background(), op); err != nil {
		t.Fatalf("seed habits failed: %v", err)
	}
	return ids
}

func remoteHabitIDs(t *testing.T, h *harness) map[string]bool {
	t.Helper()
	logs, err := remote.DailyLogs.Select(context.Background(), h.backend.DB(), "u1")
	if err != nil {
		t.Fatalf("DailyLogs.Select() failed: %v", err)
	}
	out := map[string]bool{}
	for _, l := range logs {
		out[l.HabitID] = true
	}
	return out
}

func TestLoadState_SecondDeviceLinksRemoteHabits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.SetMigrated(false); err != nil {
		t.Fatal(err)
	}

	// History written by the first device under its remote ids.
	ids := seedRemoteHabits(t, h)
	first := schema.DefaultState()
	for _, d := range []int{2, 1, 0} {
		first.PutLog(dayLog(d))
		first.TotalXP += 10
	}
	first.Normalize()
	ops, err := StateOps("u1", schema.DefaultState(), first, ids, testNow)
	if err != nil {
		t.Fatalf("StateOps() failed: %v", err)
	}
	for _, op := range ops {
		if err := h.backend.Backend.Apply(ctx, op); err != nil {
			t.Fatalf("seed Apply(%s) failed: %v", op, err)
		}
	}

	got := h.facade.LoadState(ctx)
	if got.Streaks["water"] != 3 {
		t.Errorf("water streak = %d, want 3", got.Streaks["water"])
	}
	today, ok := got.Log(testNow.Format(schema.DateLayout))
	if !ok {
		t.Fatal("today's log missing")
	}
	if _, ok := today.Entries["hab-water"]; !ok {
		t.Errorf("entries = %v, want keyed by local habit id", today.Entries)
	}
	if diff := cmp.Diff(map[string]string(ids), h.store.LoadIDRemap()); diff != "" {
		t.Errorf("persisted id map mismatch (-want +got):\n%s", diff)
	}

	h.run(t)
	if _, err := h.facade.RecordDay(ctx, dayLog(3)); err != nil {
		t.Fatalf("RecordDay() failed: %v", err)
	}
	h.wait(t)
	habitIDs := remoteHabitIDs(t, h)
	if habitIDs["hab-water"] || !habitIDs["r-water"] {
		t.Errorf("remote log habit ids = %v, want only remote ids", habitIDs)
	}
}

func TestFlush_HeldUntilHabitsLinked(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.store.SetMigrated(false); err != nil {
		t.Fatal(err)
	}
	h.run(t)

	if _, err := h.facade.RecordDay(ctx, dayLog(0)); err != nil {
		t.Fatalf("RecordDay() failed: %v", err)
	}
	h.wait(t)
	if !h.queue.HasPending() {
		t.Fatal("write before linking was not held in the queue")
	}
	if n := remoteLogCount(t, h); n != 0 {
		t.Errorf("remote summaries before linking = %d, want 0", n)
	}
	if _, err := h.facade.Flush(ctx); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("Flush() = %v, want ErrNotLinked", err)
	}

	seedRemoteHabits(t, h)
	res, err := h.facade.Flush(ctx)
	if err != nil {
		t.Fatalf("Flush() after linking failed: %v", err)
	}
	if res.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", res.Remaining)
	}
	habitIDs := remoteHabitIDs(t, h)
	if habitIDs["hab-water"] || !habitIDs["r-water"] {
		t.Errorf("remote log habit ids = %v, want queued ids translated", habitIDs)
	}
}

func TestRemapOp(t *testing.T) {
	ids := rows.IDMap{"hab-water": "r-water"}
	op, err := remote.DailyLogs.Op(queue.Upsert, []rows.DailyLogRow{
		{UserID: "u1", HabitID: "hab-water", LogDate: "2025-03-19", Status: "done"},
		{UserID: "u1", HabitID: "custom-1", LogDate: "2025-03-19", Status: "done"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := remapOp(op, ids)
	if err != nil {
		t.Fatalf("remapOp() failed: %v", err)
	}
	back, err := remote.DailyLogs.Op(queue.Upsert, []rows.DailyLogRow{
		{UserID: "u1", HabitID: "r-water", LogDate: "2025-03-19", Status: "done"},
		{UserID: "u1", HabitID: "custom-1", LogDate: "2025-03-19", Status: "done"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(string(back.Payload), string(got.Payload)); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if got.ID != op.ID {
		t.Errorf("ID changed: %q -> %q", op.ID, got.ID)
	}

	// Nothing to translate leaves the op untouched.
	same, _ := remapOp(op, rows.IDMap{"hab-sleep": "r-sleep"})
	if string(same.Payload) != string(op.Payload) {
		t.Error("payload rewritten with no matching ids")
	}
}
