package inbox

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/sync"
)

type fakeRecorder struct {
	mu    stdsync.Mutex
	dates []string
}

func (r *fakeRecorder) RecordDay(ctx context.Context, day schema.DayLog) (schema.LocalState, error) {
	if err := day.Validate(); err != nil {
		return schema.LocalState{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dates = append(r.dates, day.Date)
	return schema.DefaultState(), nil
}

func (r *fakeRecorder) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.dates...)
}

type sink struct {
	mu     stdsync.Mutex
	events []sync.Event
}

func (s *sink) Publish(e sync.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestImportAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2025-03-02.json", `{"date":"2025-03-02","entries":{"hab-read":{"status":"done"}},"xp_earned":10}`)
	writeFile(t, dir, "2025-03-01.json", `{"date":"2025-03-01","entries":{}}`)
	writeFile(t, dir, "bad-date.json", `{"date":"March 3rd"}`)
	writeFile(t, dir, "garbage.json", `{not json`)
	writeFile(t, dir, "notes.txt", `ignored`)

	rec := &fakeRecorder{}
	events := &sink{}
	im := NewImporter(rec, Config{Dir: dir, Events: events, Logger: log.New(io.Discard, "", 0)})

	res, err := im.ImportAll(context.Background())
	if err != nil {
		t.Fatalf("ImportAll() failed: %v", err)
	}
	if res.Imported != 2 || res.Failed != 2 {
		t.Errorf("ImportAll() = %d imported, %d failed; want 2, 2 (%v)", res.Imported, res.Failed, res.Errors)
	}
	if diff := cmp.Diff([]string{"2025-03-01", "2025-03-02"}, rec.recorded()); diff != "" {
		t.Errorf("recorded dates mismatch (-want +got):\n%s", diff)
	}

	for _, want := range []string{
		"processed/2025-03-01.json",
		"processed/2025-03-02.json",
		"failed/bad-date.json",
		"failed/garbage.json",
		"notes.txt",
	} {
		if !exists(filepath.Join(dir, want)) {
			t.Errorf("%s missing", want)
		}
	}
	if exists(filepath.Join(dir, "2025-03-01.json")) {
		t.Error("imported file left in inbox")
	}
	if len(events.events) != 2 || events.events[0].Type != sync.EventImported {
		t.Errorf("events = %+v", events.events)
	}
}

func TestImportFileMissing(t *testing.T) {
	im := NewImporter(&fakeRecorder{}, Config{Dir: t.TempDir(), Logger: log.New(io.Discard, "", 0)})
	if err := im.ImportFile(context.Background(), filepath.Join(t.TempDir(), "gone.json")); err != nil {
		t.Errorf("ImportFile() on a vanished file = %v, want nil", err)
	}
}

func TestRunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2025-03-01.json", `{"date":"2025-03-01","entries":{}}`)

	rec := &fakeRecorder{}
	im := NewImporter(rec, Config{Dir: dir, Settle: 50 * time.Millisecond, Logger: log.New(io.Discard, "", 0)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- im.Run(ctx) }()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() returned %v", err)
		}
	}()

	waitFor(t, func() bool { return exists(filepath.Join(dir, "processed", "2025-03-01.json")) })

	writeFile(t, dir, "2025-03-02.json", `{"date":"2025-03-02","entries":{"hab-water":{"status":"done"}}}`)
	waitFor(t, func() bool { return exists(filepath.Join(dir, "processed", "2025-03-02.json")) })

	if diff := cmp.Diff([]string{"2025-03-01", "2025-03-02"}, rec.recorded()); diff != "" {
		t.Errorf("recorded dates mismatch (-want +got):\n%s", diff)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
