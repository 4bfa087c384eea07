package remote

import (
	"fmt"
	"reflect"
	"sync"
)

// fieldMap is the column layout of a row struct, read from `db` tags.
type fieldMap struct {
	names []string
	index map[string]int
}

var fieldMaps sync.Map // reflect.Type -> *fieldMap

func fieldsOf(t reflect.Type) *fieldMap {
	if fm, ok := fieldMaps.Load(t); ok {
		return fm.(*fieldMap)
	}
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("remote: row type %s is not a struct", t))
	}
	fm := &fieldMap{index: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		col := f.Tag.Get("db")
		if col == "" || col == "-" {
			continue
		}
		fm.names = append(fm.names, col)
		fm.index[col] = i
	}
	actual, _ := fieldMaps.LoadOrStore(t, fm)
	return actual.(*fieldMap)
}

// values returns the column values of row in column order.
func (fm *fieldMap) values(row reflect.Value) []any {
	out := make([]any, len(fm.names))
	for i, col := range fm.names {
		out[i] = row.Field(fm.index[col]).Interface()
	}
	return out
}

// valuesFor returns the values of the named columns.
func (fm *fieldMap) valuesFor(row reflect.Value, cols []string) ([]any, error) {
	out := make([]any, len(cols))
	for i, col := range cols {
		idx, ok := fm.index[col]
		if !ok {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		out[i] = row.Field(idx).Interface()
	}
	return out, nil
}

// dests returns scan destinations into row (a pointer) in column order.
func (fm *fieldMap) dests(row reflect.Value) []any {
	out := make([]any, len(fm.names))
	for i, col := range fm.names {
		out[i] = row.Field(fm.index[col]).Addr().Interface()
	}
	return out
}

func (fm *fieldMap) has(col string) bool {
	_, ok := fm.index[col]
	return ok
}
