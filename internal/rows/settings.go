package rows

import (
	"github.com/mschirtzinger/tally/internal/schema"
)

// SettingsToRow converts the preference fields of settings.
func SettingsToRow(userID string, s schema.Settings) SettingsRow {
	return SettingsRow{
		UserID:      userID,
		DisplayName: s.DisplayName,
		Timezone:    s.Timezone,
		DailyXPGoal: s.DailyXPGoal,
	}
}

// HabitsToRows converts habit definitions, translating ids.
func HabitsToRows(userID string, habits []schema.Habit, ids IDMap) []HabitRow {
	out := make([]HabitRow, 0, len(habits))
	for _, h := range habits {
		out = append(out, HabitRow{
			ID:        ids.Remote(h.ID),
			UserID:    userID,
			Slug:      h.Slug,
			Name:      h.Name,
			Category:  h.Category,
			IsBad:     h.Bad,
			Target:    h.Target,
			Unit:      h.Unit,
			SortOrder: h.Order,
			IsCustom:  h.Custom,
		})
	}
	return out
}

// RowToHabit converts one habit row back, translating the id.
func RowToHabit(r HabitRow, local IDMap) schema.Habit {
	return schema.Habit{
		ID:       local.Remote(r.ID),
		Slug:     r.Slug,
		Name:     r.Name,
		Category: r.Category,
		Bad:      r.IsBad,
		Target:   r.Target,
		Unit:     r.Unit,
		Order:    r.SortOrder,
		Custom:   r.IsCustom,
	}
}

// OverridesToRows converts habit overrides, sorted by habit id.
func OverridesToRows(userID string, overrides map[string]schema.HabitOverride, ids IDMap) []HabitOverrideRow {
	out := make([]HabitOverrideRow, 0, len(overrides))
	for _, id := range sortedKeys(overrides) {
		o := overrides[id]
		out = append(out, HabitOverrideRow{
			UserID:   userID,
			HabitID:  ids.Remote(id),
			Name:     o.Name,
			Target:   o.Target,
			Unit:     o.Unit,
			Archived: o.Archived,
		})
	}
	return out
}

// RowsToSettings rebuilds settings from the preference row, the user's
// custom habit rows and the override rows.
func RowsToSettings(row SettingsRow, habits []HabitRow, overrides []HabitOverrideRow, local IDMap) schema.Settings {
	s := schema.Settings{
		DisplayName:    row.DisplayName,
		Timezone:       row.Timezone,
		DailyXPGoal:    row.DailyXPGoal,
		HabitOverrides: make(map[string]schema.HabitOverride, len(overrides)),
	}
	for _, h := range habits {
		if h.IsCustom {
			s.CustomHabits = append(s.CustomHabits, RowToHabit(h, local))
		}
	}
	for _, o := range overrides {
		s.HabitOverrides[local.Remote(o.HabitID)] = schema.HabitOverride{
			Name:     o.Name,
			Target:   o.Target,
			Unit:     o.Unit,
			Archived: o.Archived,
		}
	}
	return s
}
