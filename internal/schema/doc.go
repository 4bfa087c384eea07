// Package schema defines the local document shapes for tally.
//
// # Overview
//
// Everything the app knows about a user lives in a handful of JSON documents
// kept in the local store (see internal/local). The largest is LocalState,
// which carries the day-by-day check-in history and the aggregates derived
// from it. The secondary documents (settings, gym sessions, admin tasks,
// usage counters) travel through the same store/queue/transform pipeline.
//
// # Day Logs
//
// A DayLog is keyed by calendar date ("2006-01-02"). There is at most one per
// date in a LocalState; Normalize folds duplicates together with MergeDayLogs.
//
//	{
//	  "date": "2025-01-12",
//	  "entries": {"h1": {"status": "done"}},
//	  "bad_entries": {"b1": {"occurred": false}},
//	  "xp_earned": 40,
//	  "bare_minimum_met": true,
//	  "submitted_at": "2025-01-12T21:04:11Z"
//	}
//
// # Merging
//
// MergeDayLogs combines two versions of the same day without losing answers.
// The first argument's filled-in statuses are never overwritten by the second;
// every other field is symmetric (max XP, OR of flags, latest timestamp).
//
// # Design Principles
//
//   - Flat JSON documents, one per logical key
//   - Derived fields (level, streaks) are recomputed, never trusted
//   - Defaults are explicit values (DefaultState, DefaultSettings)
package schema
