package sync_test

import (
	"context"
	"fmt"
	"log"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/local"
	"github.com/mschirtzinger/tally/internal/netstatus"
	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/schema"
	"github.com/mschirtzinger/tally/internal/sync"
)

// ExampleReconcile shows how a locally answered day survives a stale
// remote copy of the same date.
func ExampleReconcile() {
	local := schema.DefaultState()
	day := schema.NewDayLog("2025-03-19")
	day.Entries["hab-read"] = schema.Entry{Status: schema.StatusDone}
	local.Logs = []schema.DayLog{day}
	local.TotalXP = 40

	remote := schema.DefaultState()
	stale := schema.NewDayLog("2025-03-19")
	stale.Entries["hab-read"] = schema.Entry{Status: schema.StatusLater}
	stale.Entries["hab-water"] = schema.Entry{Status: schema.StatusDone}
	remote.Logs = []schema.DayLog{stale, schema.NewDayLog("2025-03-18")}
	remote.TotalXP = 25

	merged := sync.Reconcile(local, remote)
	fmt.Println("days:", len(merged.Logs))
	fmt.Println("read:", merged.Logs[1].Entries["hab-read"].Status)
	fmt.Println("water:", merged.Logs[1].Entries["hab-water"].Status)
	fmt.Println("xp:", merged.TotalXP)
	// Output:
	// days: 2
	// read: done
	// water: done
	// xp: 40
}

// This example wires a façade the way the CLI does.
// Note: This is for documentation only and won't run as a test.
func ExampleNew() {
	store, err := local.Open(".tally/local.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	backend, err := remote.OpenSQLite(".tally/remote.db", nil)
	if err != nil {
		log.Fatal(err)
	}
	defer backend.Close()

	f := sync.New(store, queue.New(store, nil), backend,
		auth.NewFileProvider(".tally/session.json"), netstatus.New(netstatus.Config{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	st := f.LoadState(ctx)
	st.TotalXP += 10
	if err := f.SaveState(ctx, st); err != nil {
		log.Fatal(err)
	}
	_ = f.Wait(ctx)
	fmt.Println("Level", st.Level)
}
