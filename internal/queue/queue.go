// Package queue implements the durable FIFO of remote writes that could not
// be delivered yet.
//
// Every Enqueue is persisted before it returns. Flush delivers operations
// strictly in order and stops at the first failure, so a later write to a
// row can never be overtaken by an earlier one that is still failing.
// Operations leave the queue only after the backend confirms them, which
// gives at-least-once delivery; remote upserts are idempotent on their
// conflict key, so redelivery is harmless.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/mschirtzinger/tally/internal/local"
)

// Storage is the document store the queue persists into.
// *local.Store satisfies it.
type Storage interface {
	Get(key local.Key) ([]byte, bool, error)
	Put(key local.Key, raw []byte) error
}

// Config holds queue configuration.
type Config struct {
	// MaxAttempts moves an operation to the dead-letter list once it has
	// failed this many times. Zero retries forever.
	MaxAttempts int

	// Logger for queue activity
	Logger *log.Logger
}

// DefaultConfig returns the default configuration: unlimited retries.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 0,
		Logger:      log.New(os.Stderr, "[queue] ", log.LstdFlags),
	}
}

// FlushResult summarizes one Flush call.
type FlushResult struct {
	Synced       int
	Failed       int
	Remaining    int
	DeadLettered int
}

// Queue is the persistent operation queue.
type Queue struct {
	store  Storage
	config *Config

	// mu guards read-modify-write of the persisted documents.
	mu sync.Mutex
	// flushMu serializes Flush so Enqueue never waits on the network.
	flushMu sync.Mutex
}

// New creates a queue persisting into store.
func New(store Storage, config *Config) *Queue {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	return &Queue{store: store, config: config}
}

// Enqueue appends ops to the tail and persists the queue.
func (q *Queue) Enqueue(ops ...Operation) error {
	if len(ops) == 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(local.KeySyncQueue)
	if err != nil {
		return err
	}
	pending = append(pending, ops...)
	if err := q.save(local.KeySyncQueue, pending); err != nil {
		return err
	}
	q.config.Logger.Printf("Queued %d operation(s), %d pending", len(ops), len(pending))
	return nil
}

// Pending returns a copy of the queued operations, head first. A store
// read error is logged and reported as an empty queue.
func (q *Queue) Pending() []Operation {
	return q.peek(local.KeySyncQueue)
}

// Len returns the number of queued operations.
func (q *Queue) Len() int {
	return len(q.Pending())
}

// HasPending reports whether anything is waiting to be delivered.
func (q *Queue) HasPending() bool {
	return q.Len() > 0
}

// Flush delivers queued operations in order until the queue is empty, an
// operation fails, or ctx is done. A failing operation stays at the head
// with its attempt count bumped, unless MaxAttempts moves it to the
// dead-letter list, in which case flushing continues with the next one.
//
// The returned error reports local persistence problems only; delivery
// failures are reflected in FlushResult.
func (q *Queue) Flush(ctx context.Context, a Applier) (FlushResult, error) {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	var res FlushResult
	for {
		if ctx.Err() != nil {
			break
		}

		q.mu.Lock()
		pending, err := q.load(local.KeySyncQueue)
		q.mu.Unlock()
		if err != nil {
			return res, err
		}
		if len(pending) == 0 {
			break
		}
		head := pending[0]

		applyErr := a.Apply(ctx, head)
		if applyErr != nil && ctx.Err() != nil && errors.Is(applyErr, ctx.Err()) {
			// Cancelled mid-delivery; not the operation's fault.
			break
		}

		q.mu.Lock()
		dead, err := q.settle(head, applyErr)
		q.mu.Unlock()
		if err != nil {
			return res, err
		}

		switch {
		case applyErr == nil:
			res.Synced++
		case dead:
			res.DeadLettered++
			q.config.Logger.Printf("Dead-lettered %s after %d attempts: %v", head, head.Attempts+1, applyErr)
		default:
			res.Failed++
			q.config.Logger.Printf("Flush halted at %s: %v", head, applyErr)
		}
		if applyErr != nil && !dead {
			break
		}
	}

	res.Remaining = q.Len()
	if res.Synced > 0 || res.Failed > 0 || res.DeadLettered > 0 {
		q.config.Logger.Printf("Flush: %d synced, %d failed, %d dead-lettered, %d remaining",
			res.Synced, res.Failed, res.DeadLettered, res.Remaining)
	}
	return res, nil
}

// settle records the outcome for op. Must be called with mu held.
func (q *Queue) settle(op Operation, applyErr error) (dead bool, err error) {
	pending, err := q.load(local.KeySyncQueue)
	if err != nil {
		return false, err
	}
	idx := indexOf(pending, op.ID)
	if idx < 0 {
		// Dropped from under us while delivering.
		return false, nil
	}

	if applyErr == nil {
		pending = append(pending[:idx], pending[idx+1:]...)
		return false, q.save(local.KeySyncQueue, pending)
	}

	pending[idx].Attempts++
	pending[idx].LastError = applyErr.Error()

	if q.config.MaxAttempts > 0 && pending[idx].Attempts >= q.config.MaxAttempts {
		letters, err := q.load(local.KeySyncDeadLetter)
		if err != nil {
			return false, err
		}
		letters = append(letters, pending[idx])
		if err := q.save(local.KeySyncDeadLetter, letters); err != nil {
			return false, err
		}
		pending = append(pending[:idx], pending[idx+1:]...)
		return true, q.save(local.KeySyncQueue, pending)
	}
	return false, q.save(local.KeySyncQueue, pending)
}

// DeadLetters returns operations that exhausted MaxAttempts.
func (q *Queue) DeadLetters() []Operation {
	return q.peek(local.KeySyncDeadLetter)
}

// Retry moves dead-lettered operations back to the tail of the queue with
// their attempt counters reset. An empty id retries all of them. It returns
// how many were moved.
func (q *Queue) Retry(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	letters, err := q.load(local.KeySyncDeadLetter)
	if err != nil {
		return 0, err
	}
	var keep, moved []Operation
	for _, op := range letters {
		if id == "" || op.ID == id || shortID(op.ID) == id {
			op.Attempts = 0
			op.LastError = ""
			moved = append(moved, op)
			continue
		}
		keep = append(keep, op)
	}
	if len(moved) == 0 {
		return 0, nil
	}

	pending, err := q.load(local.KeySyncQueue)
	if err != nil {
		return 0, err
	}
	pending = append(pending, moved...)
	if err := q.save(local.KeySyncQueue, pending); err != nil {
		return 0, err
	}
	if err := q.save(local.KeySyncDeadLetter, keep); err != nil {
		return 0, err
	}
	return len(moved), nil
}

// Drop permanently discards a dead-lettered operation. An empty id drops
// all of them.
func (q *Queue) Drop(id string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	letters, err := q.load(local.KeySyncDeadLetter)
	if err != nil {
		return 0, err
	}
	var keep []Operation
	for _, op := range letters {
		if id == "" || op.ID == id || shortID(op.ID) == id {
			continue
		}
		keep = append(keep, op)
	}
	dropped := len(letters) - len(keep)
	if dropped == 0 {
		return 0, nil
	}
	return dropped, q.save(local.KeySyncDeadLetter, keep)
}

// load reads the operations under key. A read error is returned so callers
// never rewrite the document from a partial view; a corrupt document
// cannot be recovered and reads as empty. Must be called with mu held.
func (q *Queue) load(key local.Key) ([]Operation, error) {
	raw, ok, err := q.store.Get(key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	r := local.Decode[[]Operation](raw, ok)
	if r.Status == local.Corrupt {
		q.config.Logger.Printf("Warning: %s is corrupt, treating as empty: %v", key, r.Err)
	}
	return r.OrDefault(nil), nil
}

// peek is load for read-only callers.
func (q *Queue) peek(key local.Key) []Operation {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops, err := q.load(key)
	if err != nil {
		q.config.Logger.Printf("Warning: %v", err)
		return nil
	}
	return ops
}

func (q *Queue) save(key local.Key, ops []Operation) error {
	if ops == nil {
		ops = []Operation{}
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := q.store.Put(key, raw); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func indexOf(ops []Operation, id string) int {
	for i, op := range ops {
		if op.ID == id {
			return i
		}
	}
	return -1
}
