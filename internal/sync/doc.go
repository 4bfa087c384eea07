// Package sync is tally's local/remote synchronization façade.
//
// Callers read and write through a Facade and never talk to the remote
// backend directly. Every write lands in the local store before the call
// returns; the matching remote writes are handed to a background worker,
// which delivers them when the user is signed in and the backend is
// reachable, and otherwise parks them in the durable queue.
//
// # Write path
//
//	SaveState(ctx, next)
//	  1. refuse to replace non-empty local data with an empty snapshot
//	  2. write next to the local store (synchronous)
//	  3. diff previous vs next into queue operations
//	  4. hand operations to the worker and return
//
// The worker flushes anything already queued before sending new
// operations, so delivery order always matches write order. If a direct
// send fails, the failing operation and every one after it go to the queue.
//
// # Read path
//
//	LoadState(ctx)
//	  1. not eligible (no session or probe fails): return local
//	  2. flush the queue so the fetch is not stale
//	  3. fetch remote tables in parallel and rebuild a snapshot
//	  4. remote empty: return local untouched
//	  5. reconcile: day logs merged with local first, XP max, sprint
//	     state from whichever side is more advanced
//	  6. recalculate streaks and shields from the merged logs
//	  7. write back to local only when local had nothing
//
// An empty remote usually means an upload that never ran or was
// interrupted, so it never overrides real local data.
//
// # Lifecycle
//
//	f := sync.New(store, q, backend, provider, monitor, nil)
//	go f.Run(ctx)          // background worker
//	...
//	f.Wait(ctx)            // outstanding deliveries settled
//	f.Close()
package sync
