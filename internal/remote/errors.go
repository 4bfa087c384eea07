package remote

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTable is returned by Apply for an operation naming a table the
// backend does not know.
var ErrUnknownTable = errors.New("unknown table")

// RejectedError means the backend refused a write outright (constraint or
// authorization failure) rather than being unreachable. Retrying the same
// operation will keep failing until the data or credentials change.
type RejectedError struct {
	Table string
	Err   error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Table, e.Err)
}

func (e *RejectedError) Unwrap() error {
	return e.Err
}

// IsRejected reports whether err is (or wraps) a RejectedError.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

var rejectMarkers = []string{
	"constraint failed",
	"unique constraint",
	"not null constraint",
	"foreign key constraint",
	"check constraint",
	"unauthorized",
	"forbidden",
	"permission denied",
	"no such table",
	"no such column",
}

// classify wraps err in a RejectedError when the driver message says the
// backend refused the statement.
func classify(table string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rejectMarkers {
		if strings.Contains(msg, m) {
			return &RejectedError{Table: table, Err: err}
		}
	}
	return err
}
