package schema

import "time"

// SprintStatus tracks a sprint's lifecycle.
type SprintStatus string

const (
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
	SprintAbandoned SprintStatus = "abandoned"
)

// Sprint is a time-boxed push with its own task list.
type Sprint struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    SprintStatus `json:"status"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date,omitempty"`
	Tasks     []SprintTask `json:"tasks,omitempty"`
}

// SprintTask is one item in a sprint.
type SprintTask struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Reflection is a weekly or monthly wrap-up.
type Reflection struct {
	ID          string `json:"id"`
	Period      string `json:"period"`
	PeriodStart string `json:"period_start"`
	Wins        string `json:"wins,omitempty"`
	Lessons     string `json:"lessons,omitempty"`
	NextFocus   string `json:"next_focus,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Habit is a trackable habit definition, canonical or user-created.
type Habit struct {
	ID       string  `json:"id"`
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	Category string  `json:"category,omitempty"`
	Bad      bool    `json:"bad,omitempty"`
	Target   float64 `json:"target,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	Order    int     `json:"order"`
	Custom   bool    `json:"custom,omitempty"`
}

// HabitOverride replaces selected fields of a canonical habit.
type HabitOverride struct {
	Name     *string  `json:"name,omitempty" toml:"name"`
	Target   *float64 `json:"target,omitempty" toml:"target"`
	Unit     *string  `json:"unit,omitempty" toml:"unit"`
	Archived *bool    `json:"archived,omitempty" toml:"archived"`
}

// Settings holds per-user preferences plus the user's habit customizations.
type Settings struct {
	DisplayName    string                   `json:"display_name,omitempty"`
	Timezone       string                   `json:"timezone,omitempty"`
	DailyXPGoal    int                      `json:"daily_xp_goal,omitempty"`
	CustomHabits   []Habit                  `json:"custom_habits,omitempty"`
	HabitOverrides map[string]HabitOverride `json:"habit_overrides,omitempty"`
}

// DefaultSettings is used when no settings document exists.
func DefaultSettings() Settings {
	return Settings{
		Timezone:       "UTC",
		DailyXPGoal:    100,
		HabitOverrides: make(map[string]HabitOverride),
	}
}

// IsEmpty reports whether s holds nothing beyond defaults.
func (s *Settings) IsEmpty() bool {
	return s.DisplayName == "" && len(s.CustomHabits) == 0 && len(s.HabitOverrides) == 0
}

// Location returns the configured timezone, or UTC when it is unset or
// unknown.
func (s *Settings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GymSession is one workout.
type GymSession struct {
	ID        string        `json:"id"`
	Date      string        `json:"date"`
	Name      string        `json:"name,omitempty"`
	Exercises []GymExercise `json:"exercises,omitempty"`
}

// GymExercise is one exercise within a session.
type GymExercise struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Sets []GymSet `json:"sets,omitempty"`
}

// GymSet is one set of an exercise.
type GymSet struct {
	ID       string  `json:"id"`
	Reps     int     `json:"reps"`
	WeightKg float64 `json:"weight_kg"`
}

// GymRoutine is a reusable workout template.
type GymRoutine struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Exercises []RoutineExercise `json:"exercises,omitempty"`
}

// RoutineExercise is one planned exercise in a routine.
type RoutineExercise struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	TargetSets int    `json:"target_sets"`
	TargetReps int    `json:"target_reps"`
}

// AdminTask is a backlog item.
type AdminTask struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Done      bool   `json:"done"`
	DueDate   string `json:"due_date,omitempty"`
	CreatedAt string `json:"created_at"`
}

// UsageCounters counts feature usage by key.
type UsageCounters map[string]int
