package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/mschirtzinger/tally/internal/auth"
	"github.com/mschirtzinger/tally/internal/catalog"
	"github.com/mschirtzinger/tally/internal/local"
	"github.com/mschirtzinger/tally/internal/netstatus"
	"github.com/mschirtzinger/tally/internal/queue"
	"github.com/mschirtzinger/tally/internal/schema"
)

// ErrDestructiveSave is returned when a save would replace non-empty local
// data with an empty snapshot. Nothing is written.
var ErrDestructiveSave = errors.New("refusing to overwrite local data with an empty snapshot")

// ErrNotEligible is returned by Flush when there is no session or the
// backend is unreachable.
var ErrNotEligible = errors.New("sync not eligible")

// Backend is the remote database as the façade uses it.
// *remote.Backend satisfies it.
type Backend interface {
	queue.Applier

	// Refresh brings reads up to date with the primary
	Refresh(ctx context.Context) error

	// DB is the read handle for typed table selects
	DB() *sql.DB
}

// Config holds façade configuration.
type Config struct {
	// Logger for sync activity
	Logger *log.Logger

	// Events receives activity notifications (default: discarded)
	Events EventSink

	// Catalog is the canonical habit list (default: catalog.Default())
	Catalog []schema.Habit

	// Now returns the current time (default: time.Now)
	Now func() time.Time
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Logger:  log.New(os.Stderr, "[sync] ", log.LstdFlags),
		Events:  discardSink{},
		Catalog: catalog.Default(),
		Now:     time.Now,
	}
}

// Facade coordinates the local store, the queue and the remote backend.
type Facade struct {
	local  *local.Store
	queue  *queue.Queue
	remote Backend
	auth   auth.Provider
	net    *netstatus.Monitor
	config *Config

	// workMu guards the worker state below. While running, only the
	// worker moves posted tasks into the queue, so queued operations are
	// always older than anything still in the backlog.
	workMu  stdsync.Mutex
	backlog []task
	wake    chan struct{}
	running bool
	closed  bool
	pending stdsync.WaitGroup

	// saveMu serializes read-previous/write-next in Save* so diffs are
	// computed against the snapshot actually replaced.
	saveMu stdsync.Mutex

	// linkMu serializes rebuilding the id map.
	linkMu stdsync.Mutex
}

type task struct {
	label string
	ops   []queue.Operation
}

// New creates a façade. remote may be nil, in which case every write is
// queued and every read is local.
func New(store *local.Store, q *queue.Queue, remote Backend, provider auth.Provider, monitor *netstatus.Monitor, config *Config) *Facade {
	def := DefaultConfig()
	if config == nil {
		config = def
	}
	if config.Logger == nil {
		config.Logger = def.Logger
	}
	if config.Events == nil {
		config.Events = def.Events
	}
	if config.Catalog == nil {
		config.Catalog = def.Catalog
	}
	if config.Now == nil {
		config.Now = def.Now
	}
	if monitor == nil {
		monitor = netstatus.New(netstatus.Config{Logger: config.Logger})
	}
	return &Facade{
		local:  store,
		queue:  q,
		remote: remote,
		auth:   provider,
		net:    monitor,
		config: config,
		wake:   make(chan struct{}, 1),
	}
}

// Local returns the underlying local store.
func (f *Facade) Local() *local.Store {
	return f.local
}

// Queue returns the underlying queue.
func (f *Facade) Queue() *queue.Queue {
	return f.queue
}

// session returns the current session, or false when nobody is signed in.
// An expired session still identifies the owner of queued writes.
func (f *Facade) session(ctx context.Context) (auth.Session, bool) {
	if f.auth == nil {
		return auth.Session{}, false
	}
	s, err := f.auth.Session(ctx)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			f.config.Logger.Printf("Warning: failed to read session: %v", err)
		}
		return auth.Session{}, false
	}
	return s, true
}

// Eligible reports whether remote calls should be attempted: a valid
// session exists and the connectivity probe passes.
func (f *Facade) Eligible(ctx context.Context) bool {
	_, ok := f.eligibleSession(ctx)
	return ok
}

func (f *Facade) eligibleSession(ctx context.Context) (auth.Session, bool) {
	if f.remote == nil {
		return auth.Session{}, false
	}
	s, ok := f.session(ctx)
	if !ok || !s.Valid(f.config.Now()) {
		return auth.Session{}, false
	}
	if err := f.net.Probe(ctx); err != nil {
		return auth.Session{}, false
	}
	return s, true
}

// Flush delivers queued operations now. It returns ErrNotLinked, leaving
// the queue untouched, while the user's habits have no remote ids.
func (f *Facade) Flush(ctx context.Context) (queue.FlushResult, error) {
	sess, ok := f.eligibleSession(ctx)
	if !ok {
		return queue.FlushResult{Remaining: f.queue.Len()}, ErrNotEligible
	}
	if !f.link(ctx, sess.UserID) {
		return queue.FlushResult{Remaining: f.queue.Len()}, ErrNotLinked
	}
	res, err := f.queue.Flush(ctx, f.applier())
	if err != nil {
		f.emit(EventError, err.Error(), 0)
		return res, fmt.Errorf("failed to flush queue: %w", err)
	}
	if res.Synced > 0 || res.Failed > 0 || res.DeadLettered > 0 {
		f.emit(EventFlushed, fmt.Sprintf("%d synced, %d failed", res.Synced, res.Failed), res.Synced)
	}
	return res, nil
}

// flushQuiet flushes before a read; failures only mean the read may see a
// slightly stale remote. Requires a linked id map.
func (f *Facade) flushQuiet(ctx context.Context) {
	if !f.queue.HasPending() {
		return
	}
	res, err := f.queue.Flush(ctx, f.applier())
	if err != nil {
		f.config.Logger.Printf("Warning: pre-read flush failed: %v", err)
		return
	}
	if res.Synced > 0 {
		f.emit(EventFlushed, "pre-read flush", res.Synced)
	}
}

// Status is a point-in-time summary for status displays.
type Status struct {
	SignedIn    bool   `json:"signed_in"`
	UserID      string `json:"user_id,omitempty"`
	Online      bool   `json:"online"`
	Pending     int    `json:"pending"`
	DeadLetters int    `json:"dead_letters"`
	Migrated    bool   `json:"migrated"`
}

// Status reports the current sync status. It probes connectivity.
func (f *Facade) Status(ctx context.Context) Status {
	s, ok := f.session(ctx)
	st := Status{
		SignedIn:    ok && s.Valid(f.config.Now()),
		UserID:      s.UserID,
		Pending:     f.queue.Len(),
		DeadLetters: len(f.queue.DeadLetters()),
		Migrated:    f.local.Migrated(),
	}
	if f.remote != nil {
		st.Online = f.net.Probe(ctx) == nil
	}
	return st
}

// SignOut clears every local document. Queued writes are discarded with
// them; call Flush first to keep them.
func (f *Facade) SignOut() error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()
	if err := f.local.ClearAll(); err != nil {
		return fmt.Errorf("failed to clear local data: %w", err)
	}
	return nil
}

func (f *Facade) slugMap() map[string]string {
	settings := f.local.LoadSettings()
	slugs := catalog.SlugMap(f.config.Catalog, settings)
	// Remote ids reconstructed without a remap entry still resolve.
	for localID, remoteID := range f.idMap() {
		if slug, ok := slugs[localID]; ok {
			slugs[remoteID] = slug
		}
	}
	return slugs
}

// Today returns now in the user's configured timezone. Day boundaries for
// check-ins and streaks are taken from it.
func (f *Facade) Today() time.Time {
	settings := f.local.LoadSettings()
	return f.config.Now().In(settings.Location())
}

func (f *Facade) emit(t EventType, msg string, ops int) {
	now := f.config.Now().UTC()
	if t == EventSynced || t == EventLoaded || (t == EventFlushed && ops > 0) {
		if err := f.local.MarkSynced(now); err != nil {
			f.config.Logger.Printf("Warning: failed to record sync time: %v", err)
		}
	}
	f.config.Events.Publish(Event{
		Type:    t,
		Time:    now,
		Message: msg,
		Ops:     ops,
		Pending: f.queue.Len(),
	})
}
