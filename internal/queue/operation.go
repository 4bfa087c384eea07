package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of remote write an Operation performs.
type Action string

const (
	Upsert Action = "upsert"
	Insert Action = "insert"
	Delete Action = "delete"
)

// Operation is one pending remote write.
type Operation struct {
	// ID uniquely identifies the operation (UUID)
	ID string `json:"id"`

	// Table is the remote table name
	Table string `json:"table"`

	// Action is upsert, insert or delete
	Action Action `json:"action"`

	// Payload is a JSON array of rows of the table's row type
	Payload json.RawMessage `json:"payload"`

	// ConflictKey is the comma-separated list of columns an upsert (or
	// delete) matches on. Empty means the table's default.
	ConflictKey string `json:"conflict_key,omitempty"`

	// EnqueuedAt is when the operation was first queued
	EnqueuedAt time.Time `json:"enqueued_at"`

	// Attempts counts failed delivery attempts
	Attempts int `json:"attempts"`

	// LastError is the most recent delivery failure
	LastError string `json:"last_error,omitempty"`
}

// NewOperation encodes rows (a slice of row structs) into an Operation.
func NewOperation(table string, action Action, rows any, conflictKey ...string) (Operation, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return Operation{}, fmt.Errorf("failed to encode %s payload: %w", table, err)
	}
	return Operation{
		ID:          uuid.NewString(),
		Table:       table,
		Action:      action,
		Payload:     payload,
		ConflictKey: strings.Join(conflictKey, ","),
		EnqueuedAt:  time.Now().UTC(),
	}, nil
}

// Columns splits ConflictKey into column names.
func (op Operation) Columns() []string {
	if op.ConflictKey == "" {
		return nil
	}
	cols := strings.Split(op.ConflictKey, ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

// String returns a short description for logs.
func (op Operation) String() string {
	return fmt.Sprintf("%s %s (%s)", op.Action, op.Table, shortID(op.ID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Applier delivers an operation to the remote backend.
type Applier interface {
	Apply(ctx context.Context, op Operation) error
}

// ApplierFunc adapts a function to Applier.
type ApplierFunc func(ctx context.Context, op Operation) error

// Apply calls f(ctx, op).
func (f ApplierFunc) Apply(ctx context.Context, op Operation) error {
	return f(ctx, op)
}
