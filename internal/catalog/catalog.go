// Package catalog holds the canonical habit list and applies a user's
// customizations to it.
package catalog

import (
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/mschirtzinger/tally/internal/schema"
)

var defaults = []schema.Habit{
	{ID: "hab-water", Slug: "water", Name: "Drink water", Category: "health", Target: 2, Unit: "l", Order: 1},
	{ID: "hab-exercise", Slug: "exercise", Name: "Exercise", Category: "health", Target: 30, Unit: "min", Order: 2},
	{ID: "hab-sleep", Slug: "sleep", Name: "Sleep 7h+", Category: "health", Target: 7, Unit: "h", Order: 3},
	{ID: "hab-read", Slug: "read", Name: "Read", Category: "mind", Target: 20, Unit: "pages", Order: 4},
	{ID: "hab-meditate", Slug: "meditate", Name: "Meditate", Category: "mind", Target: 10, Unit: "min", Order: 5},
	{ID: "hab-journal", Slug: "journal", Name: "Journal", Category: "mind", Order: 6},
	{ID: "hab-deep-work", Slug: "deep-work", Name: "Deep work", Category: "work", Target: 2, Unit: "h", Order: 7},
	{ID: "hab-doomscroll", Slug: "doomscroll", Name: "Doomscrolling", Category: "bad", Bad: true, Unit: "min", Order: 50},
	{ID: "hab-late-snack", Slug: "late-snack", Name: "Late-night snacking", Category: "bad", Bad: true, Order: 51},
}

// Default returns a copy of the canonical habits in display order.
func Default() []schema.Habit {
	out := make([]schema.Habit, len(defaults))
	copy(out, defaults)
	return out
}

// Resolve applies settings to the canonical list: overrides replace the
// fields they set, archived habits are dropped, custom habits are added.
// The result is sorted by Order, then ID.
func Resolve(canonical []schema.Habit, settings schema.Settings) []schema.Habit {
	out := make([]schema.Habit, 0, len(canonical)+len(settings.CustomHabits))
	for _, h := range canonical {
		o, ok := settings.HabitOverrides[h.ID]
		if ok {
			if o.Archived != nil && *o.Archived {
				continue
			}
			h = apply(h, o)
		}
		out = append(out, h)
	}
	for _, h := range settings.CustomHabits {
		h.Custom = true
		if o, ok := settings.HabitOverrides[h.ID]; ok {
			if o.Archived != nil && *o.Archived {
				continue
			}
			h = apply(h, o)
		}
		out = append(out, h)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func apply(h schema.Habit, o schema.HabitOverride) schema.Habit {
	if o.Name != nil {
		h.Name = *o.Name
	}
	if o.Target != nil {
		h.Target = *o.Target
	}
	if o.Unit != nil {
		h.Unit = *o.Unit
	}
	return h
}

// SlugMap maps every habit id to its slug, including archived canonical
// habits so their history keeps counting toward streaks.
func SlugMap(canonical []schema.Habit, settings schema.Settings) map[string]string {
	m := make(map[string]string, len(canonical)+len(settings.CustomHabits))
	for _, h := range canonical {
		m[h.ID] = h.Slug
	}
	for _, h := range settings.CustomHabits {
		m[h.ID] = h.Slug
	}
	return m
}

// BySlug finds a habit by slug.
func BySlug(habits []schema.Habit, slug string) (schema.Habit, bool) {
	for _, h := range habits {
		if h.Slug == slug {
			return h, true
		}
	}
	return schema.Habit{}, false
}

// overridesFile is the on-disk TOML layout:
//
//	[habits.hab-water]
//	target = 3
//	unit = "l"
type overridesFile struct {
	Habits map[string]schema.HabitOverride `toml:"habits"`
}

// LoadOverrides reads habit overrides from a TOML file, keyed by habit id.
func LoadOverrides(path string) (map[string]schema.HabitOverride, error) {
	var f overridesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("failed to parse overrides %s: %w", path, err)
	}
	if f.Habits == nil {
		f.Habits = make(map[string]schema.HabitOverride)
	}
	return f.Habits, nil
}

// MergeOverrides layers file overrides onto settings; settings win per
// field.
func MergeOverrides(settings schema.Settings, file map[string]schema.HabitOverride) schema.Settings {
	merged := make(map[string]schema.HabitOverride, len(file)+len(settings.HabitOverrides))
	for id, o := range file {
		merged[id] = o
	}
	for id, o := range settings.HabitOverrides {
		base := merged[id]
		if o.Name != nil {
			base.Name = o.Name
		}
		if o.Target != nil {
			base.Target = o.Target
		}
		if o.Unit != nil {
			base.Unit = o.Unit
		}
		if o.Archived != nil {
			base.Archived = o.Archived
		}
		merged[id] = base
	}
	settings.HabitOverrides = merged
	return settings
}
