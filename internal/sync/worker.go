package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/remote"
)

// Run hosts the background worker until ctx is done. It flushes anything
// queued while no worker was running, then delivers posted operations in
// order and flushes the queue whenever connectivity comes back. Tasks
// still in the backlog at shutdown are moved to the queue.
func (f *Facade) Run(ctx context.Context) error {
	online, unsubscribe := f.net.Subscribe()
	defer unsubscribe()

	f.workMu.Lock()
	f.running = true
	f.workMu.Unlock()
	defer f.stop()

	f.config.Logger.Println("Sync worker started")
	if f.queue.HasPending() {
		if _, err := f.Flush(ctx); err != nil && !errors.Is(err, ErrNotEligible) {
			f.config.Logger.Printf("Startup flush failed: %v", err)
		}
	}

	for {
		for ctx.Err() == nil {
			t, ok := f.next()
			if !ok {
				break
			}
			f.deliver(ctx, t)
			f.pending.Done()
		}

		select {
		case <-ctx.Done():
			f.config.Logger.Println("Sync worker stopped")
			return nil

		case <-f.wake:

		case up, ok := <-online:
			if !ok {
				online = nil
				continue
			}
			if !up {
				f.emit(EventOffline, "", 0)
				continue
			}
			f.emit(EventOnline, "", 0)
			if f.queue.HasPending() {
				if _, err := f.Flush(ctx); err != nil {
					f.config.Logger.Printf("Reconnect flush failed: %v", err)
				}
			}
		}
	}
}

// Wait blocks until every posted task has been delivered or queued, or
// ctx is done.
func (f *Facade) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops direct delivery; the backlog and every later write go to
// the queue, in order.
func (f *Facade) Close() error {
	f.workMu.Lock()
	defer f.workMu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	if !f.running {
		f.spill()
		return nil
	}
	select {
	case f.wake <- struct{}{}:
	default:
	}
	return nil
}

// post hands ops to the worker without blocking. With no worker running
// they are queued on the spot.
func (f *Facade) post(label string, ops []queue.Operation) {
	if len(ops) == 0 {
		return
	}
	f.workMu.Lock()
	if !f.running {
		f.enqueue(label, ops)
		f.workMu.Unlock()
		return
	}
	f.pending.Add(1)
	f.backlog = append(f.backlog, task{label: label, ops: ops})
	f.workMu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// next pops the oldest task. After Close the backlog is spilled to the
// queue instead and next reports nothing to deliver.
func (f *Facade) next() (task, bool) {
	f.workMu.Lock()
	defer f.workMu.Unlock()
	if f.closed {
		f.spill()
		return task{}, false
	}
	if len(f.backlog) == 0 {
		return task{}, false
	}
	t := f.backlog[0]
	f.backlog[0] = task{}
	f.backlog = f.backlog[1:]
	return t, true
}

// stop marks the worker gone and queues whatever it left behind.
func (f *Facade) stop() {
	f.workMu.Lock()
	defer f.workMu.Unlock()
	f.running = false
	f.spill()
}

// spill moves the backlog to the queue. Requires workMu.
func (f *Facade) spill() {
	for _, t := range f.backlog {
		f.enqueue(t.label, t.ops)
		f.pending.Done()
	}
	f.backlog = nil
}

// deliver sends one task's operations, or queues them. The queue only
// ever holds operations older than t, so it is drained first and t is
// applied directly only once it is empty.
func (f *Facade) deliver(ctx context.Context, t task) {
	sess, ok := f.eligibleSession(ctx)
	if !ok || !f.link(ctx, sess.UserID) {
		f.enqueue(t.label, t.ops)
		return
	}

	apply := f.applier()
	if f.queue.HasPending() {
		res, err := f.queue.Flush(ctx, apply)
		if err != nil || res.Remaining > 0 {
			f.enqueue(t.label, t.ops)
			return
		}
		if res.Synced > 0 {
			f.emit(EventFlushed, "", res.Synced)
		}
	}

	for i, op := range t.ops {
		if err := apply.Apply(ctx, op); err != nil {
			if remote.IsRejected(err) {
				// Still queued; MaxAttempts decides when it is dead-lettered.
				f.emit(EventError, fmt.Sprintf("%s rejected: %v", op, err), 1)
			}
			f.config.Logger.Printf("Direct write %s failed, queueing %d op(s): %v", op, len(t.ops)-i, err)
			rest := append([]queue.Operation(nil), t.ops[i:]...)
			rest[0].Attempts++
			rest[0].LastError = err.Error()
			f.enqueue(t.label, rest)
			return
		}
	}
	f.emit(EventSynced, t.label, len(t.ops))
}

func (f *Facade) enqueue(label string, ops []queue.Operation) {
	if err := f.queue.Enqueue(ops...); err != nil {
		// The local write already succeeded; the remote copy is now
		// behind until the next full upload.
		f.config.Logger.Printf("Error: failed to queue %s: %v", label, err)
		f.emit(EventError, fmt.Sprintf("queue %s: %v", label, err), len(ops))
		return
	}
	f.emit(EventQueued, label, len(ops))
}
