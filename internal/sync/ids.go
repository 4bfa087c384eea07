package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
	"github.com/mschirtzinger/tally/internal/rows"
	"github.com/mschirtzinger/tally/internal/schema"
)

// ErrNotLinked is returned by Flush while local habit ids have no remote
// counterparts yet. Running the migration seeds them.
var ErrNotLinked = errors.New("habits not linked to the remote yet; run migrate")

func (f *Facade) idMap() rows.IDMap {
	return rows.IDMap(f.local.LoadIDRemap())
}

// link makes sure local habit ids can be translated for userID, rebuilding
// the id map by slug from the user's remote habits when it does not cover
// the catalog. This is how a second device, or a device that signed out,
// picks up the ids minted by the first migration. It reports whether
// writes may be delivered; until the remote has been seeded they wait in
// the queue. Requires an eligible session.
func (f *Facade) link(ctx context.Context, userID string) bool {
	if f.idMap().Covers(f.config.Catalog) {
		return true
	}

	f.linkMu.Lock()
	defer f.linkMu.Unlock()

	if err := f.remote.Refresh(ctx); err != nil {
		f.config.Logger.Printf("Warning: refresh before linking habits failed: %v", err)
	}
	existing, err := remote.Habits.Select(ctx, f.remote.DB(), userID)
	if err != nil {
		f.config.Logger.Printf("Failed to read remote habits: %v", err)
		return f.local.Migrated()
	}

	ids := f.idMap()
	habits := make([]schema.Habit, 0, len(f.config.Catalog))
	habits = append(habits, f.config.Catalog...)
	habits = append(habits, f.local.LoadSettings().CustomHabits...)
	if ids.LinkBySlug(habits, existing) {
		if err := f.local.SaveIDRemap(ids); err != nil {
			f.config.Logger.Printf("Error: failed to persist id map: %v", err)
			return false
		}
		f.config.Logger.Printf("Linked %d habit(s) to remote ids", len(ids))
	}
	return ids.Covers(f.config.Catalog) || f.local.Migrated()
}

// applier delivers operations with habit ids translated through the
// current id map, so writes queued before linking land on the right rows.
func (f *Facade) applier() queue.Applier {
	return queue.ApplierFunc(func(ctx context.Context, op queue.Operation) error {
		op, err := remapOp(op, f.idMap())
		if err != nil {
			return err
		}
		return f.remote.Apply(ctx, op)
	})
}

func remapOp(op queue.Operation, ids rows.IDMap) (queue.Operation, error) {
	if len(ids) == 0 {
		return op, nil
	}
	switch op.Table {
	case remote.DailyLogs.Name():
		return remapRows(op, ids, func(r *rows.DailyLogRow) *string { return &r.HabitID })
	case remote.BadHabitLogs.Name():
		return remapRows(op, ids, func(r *rows.BadHabitLogRow) *string { return &r.HabitID })
	case remote.HabitOverrides.Name():
		return remapRows(op, ids, func(r *rows.HabitOverrideRow) *string { return &r.HabitID })
	case remote.Habits.Name():
		return remapRows(op, ids, func(r *rows.HabitRow) *string { return &r.ID })
	}
	return op, nil
}

func remapRows[R any](op queue.Operation, ids rows.IDMap, field func(*R) *string) (queue.Operation, error) {
	var rs []R
	if err := json.Unmarshal(op.Payload, &rs); err != nil {
		// Left for the backend to reject.
		return op, nil
	}
	changed := false
	for i := range rs {
		id := field(&rs[i])
		if r := ids.Remote(*id); r != *id {
			*id = r
			changed = true
		}
	}
	if !changed {
		return op, nil
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		return op, fmt.Errorf("failed to re-encode %s: %w", op, err)
	}
	op.Payload = payload
	return op, nil
}
