package remote

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
)

// Execer runs statements. *sql.DB and *sql.Tx satisfy it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier runs queries. *sql.DB and *sql.Tx satisfy it.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Table is a typed adapter for one remote table whose rows are R.
//
// Every statement is scoped by the user_id column: writes carry it in the
// row, and Select filters on it.
type Table[R any] struct {
	name     string
	conflict []string
	fields   *fieldMap
}

// NewTable describes table name with row type R and default conflict key.
func NewTable[R any](name string, conflict ...string) *Table[R] {
	var zero R
	fm := fieldsOf(reflect.TypeOf(zero))
	for _, c := range conflict {
		if !fm.has(c) {
			panic(fmt.Sprintf("remote: conflict column %q not in %s", c, name))
		}
	}
	return &Table[R]{name: name, conflict: conflict, fields: fm}
}

// Name returns the table name.
func (t *Table[R]) Name() string { return t.name }

// Conflict returns the default conflict columns.
func (t *Table[R]) Conflict() []string { return t.conflict }

// Columns returns the column names in declaration order.
func (t *Table[R]) Columns() []string { return t.fields.names }

// Upsert inserts rows, updating existing ones that match on conflict (the
// table default when empty).
func (t *Table[R]) Upsert(ctx context.Context, db Execer, rows []R, conflict ...string) error {
	if len(conflict) == 0 {
		conflict = t.conflict
	}
	for _, c := range conflict {
		if !t.fields.has(c) {
			return fmt.Errorf("failed to upsert %s: unknown conflict column %q", t.name, c)
		}
	}
	query := t.insertSQL() + t.onConflictSQL(conflict)
	return t.execEach(ctx, db, "upsert", query, rows)
}

// Insert adds rows without conflict handling.
func (t *Table[R]) Insert(ctx context.Context, db Execer, rows []R) error {
	return t.execEach(ctx, db, "insert", t.insertSQL(), rows)
}

// Delete removes rows matching each row's conflict columns. It never
// touches rows owned by another user: user_id is always part of the match.
func (t *Table[R]) Delete(ctx context.Context, db Execer, rows []R, conflict ...string) error {
	if len(conflict) == 0 {
		conflict = t.conflict
	}
	conflict = t.owned(conflict)
	where := make([]string, len(conflict))
	for i, c := range conflict {
		where[i] = c + " = ?"
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", t.name, strings.Join(where, " AND "))

	for _, row := range rows {
		args, err := t.fields.valuesFor(reflect.ValueOf(row), conflict)
		if err != nil {
			return fmt.Errorf("failed to delete from %s: %w", t.name, err)
		}
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return classify(t.name, fmt.Errorf("failed to delete from %s: %w", t.name, err))
		}
	}
	return nil
}

// Select returns every row owned by userID.
func (t *Table[R]) Select(ctx context.Context, db Querier, userID string) ([]R, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE user_id = ?", strings.Join(t.fields.names, ", "), t.name)
	rs, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, classify(t.name, fmt.Errorf("failed to select from %s: %w", t.name, err))
	}
	defer rs.Close()

	var out []R
	for rs.Next() {
		var row R
		if err := rs.Scan(t.fields.dests(reflect.ValueOf(&row).Elem())...); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", t.name, err)
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", t.name, err)
	}
	return out, nil
}

// Count returns how many rows userID owns.
func (t *Table[R]) Count(ctx context.Context, db Querier, userID string) (int, error) {
	rs, err := db.QueryContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE user_id = ?", t.name), userID)
	if err != nil {
		return 0, classify(t.name, fmt.Errorf("failed to count %s: %w", t.name, err))
	}
	defer rs.Close()

	var n int
	if rs.Next() {
		if err := rs.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to scan %s count: %w", t.name, err)
		}
	}
	return n, rs.Err()
}

func (t *Table[R]) insertSQL() string {
	cols := t.fields.names
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", t.name, strings.Join(cols, ", "), marks)
}

func (t *Table[R]) onConflictSQL(conflict []string) string {
	keys := make(map[string]bool, len(conflict))
	for _, c := range conflict {
		keys[c] = true
	}
	var sets []string
	for _, col := range t.fields.names {
		if keys[col] {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", col, col))
	}
	if len(sets) == 0 {
		return fmt.Sprintf(" ON CONFLICT(%s) DO NOTHING", strings.Join(conflict, ", "))
	}
	clause := fmt.Sprintf(" ON CONFLICT(%s) DO UPDATE SET %s", strings.Join(conflict, ", "), strings.Join(sets, ", "))
	if t.fields.has(ownerColumn) && !keys[ownerColumn] {
		// A colliding id owned by someone else is left alone.
		clause += fmt.Sprintf(" WHERE %s.%s = excluded.%s", t.name, ownerColumn, ownerColumn)
	}
	return clause
}

const ownerColumn = "user_id"

// owned adds user_id to cols when the table has it and cols lacks it.
func (t *Table[R]) owned(cols []string) []string {
	if !t.fields.has(ownerColumn) {
		return cols
	}
	for _, c := range cols {
		if c == ownerColumn {
			return cols
		}
	}
	return append([]string{ownerColumn}, cols...)
}

func (t *Table[R]) execEach(ctx context.Context, db Execer, verb, query string, rows []R) error {
	for _, row := range rows {
		args := t.fields.values(reflect.ValueOf(row))
		if _, err := db.ExecContext(ctx, query, args...); err != nil {
			return classify(t.name, fmt.Errorf("failed to %s %s: %w", verb, t.name, err))
		}
	}
	return nil
}
