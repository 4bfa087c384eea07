package rows

import "github.com/mschirtzinger/tally/internal/schema"

// IDMap translates local habit ids to remote ids. Ids with no entry map to
// themselves.
type IDMap map[string]string

// Remote returns the remote id for a local id.
func (m IDMap) Remote(local string) string {
	if r, ok := m[local]; ok && r != "" {
		return r
	}
	return local
}

// Invert returns the remote -> local map.
func (m IDMap) Invert() IDMap {
	out := make(IDMap, len(m))
	for local, remote := range m {
		out[remote] = local
	}
	return out
}

// Covers reports whether every habit has a remote id.
func (m IDMap) Covers(habits []schema.Habit) bool {
	for _, h := range habits {
		if m[h.ID] == "" {
			return false
		}
	}
	return true
}

// LinkBySlug maps each habit to the remote habit sharing its slug and
// reports whether m changed. Habits with no remote counterpart keep their
// current entry.
func (m IDMap) LinkBySlug(habits []schema.Habit, remote []HabitRow) bool {
	bySlug := make(map[string]string, len(remote))
	for _, r := range remote {
		bySlug[r.Slug] = r.ID
	}
	changed := false
	for _, h := range habits {
		id, ok := bySlug[h.Slug]
		if !ok || m[h.ID] == id {
			continue
		}
		m[h.ID] = id
		changed = true
	}
	return changed
}
