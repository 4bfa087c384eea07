package rows

// ProfileRow is the user's profile. Conflict key: user_id.
type ProfileRow struct {
	UserID      string `db:"user_id" json:"user_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	CreatedAt   string `db:"created_at" json:"created_at"`
}

// UserStatsRow holds totals. Conflict key: user_id.
type UserStatsRow struct {
	UserID            string `db:"user_id" json:"user_id"`
	TotalXP           int    `db:"total_xp" json:"total_xp"`
	Level             int    `db:"level" json:"level"`
	BareMinimumStreak int    `db:"bare_minimum_streak" json:"bare_minimum_streak"`
	UpdatedAt         string `db:"updated_at" json:"updated_at"`
}

// HabitRow is a habit definition owned by the user. Conflict key: user_id, slug.
type HabitRow struct {
	ID        string  `db:"id" json:"id"`
	UserID    string  `db:"user_id" json:"user_id"`
	Slug      string  `db:"slug" json:"slug"`
	Name      string  `db:"name" json:"name"`
	Category  string  `db:"category" json:"category"`
	IsBad     bool    `db:"is_bad" json:"is_bad"`
	Target    float64 `db:"target" json:"target"`
	Unit      string  `db:"unit" json:"unit"`
	SortOrder int     `db:"sort_order" json:"sort_order"`
	IsCustom  bool    `db:"is_custom" json:"is_custom"`
}

// HabitOverrideRow customizes a canonical habit. Conflict key: user_id, habit_id.
type HabitOverrideRow struct {
	UserID   string   `db:"user_id" json:"user_id"`
	HabitID  string   `db:"habit_id" json:"habit_id"`
	Name     *string  `db:"name" json:"name,omitempty"`
	Target   *float64 `db:"target" json:"target,omitempty"`
	Unit     *string  `db:"unit" json:"unit,omitempty"`
	Archived *bool    `db:"archived" json:"archived,omitempty"`
}

// HabitStreakRow is the recalculated streak for one slug. Conflict key: user_id, slug.
type HabitStreakRow struct {
	UserID           string `db:"user_id" json:"user_id"`
	Slug             string `db:"slug" json:"slug"`
	CurrentStreak    int    `db:"current_streak" json:"current_streak"`
	ShieldAvailable  bool   `db:"shield_available" json:"shield_available"`
	ShieldEarnedDate string `db:"shield_earned_date" json:"shield_earned_date"`
	ShieldUsedDate   string `db:"shield_used_date" json:"shield_used_date"`
}

// DailyLogRow is one habit's entry on one day. Conflict key: user_id, habit_id, log_date.
type DailyLogRow struct {
	UserID  string   `db:"user_id" json:"user_id"`
	HabitID string   `db:"habit_id" json:"habit_id"`
	LogDate string   `db:"log_date" json:"log_date"`
	Status  string   `db:"status" json:"status"`
	Value   *float64 `db:"value" json:"value,omitempty"`
}

// BadHabitLogRow is one bad habit's entry on one day. Conflict key: user_id, habit_id, log_date.
type BadHabitLogRow struct {
	UserID          string `db:"user_id" json:"user_id"`
	HabitID         string `db:"habit_id" json:"habit_id"`
	LogDate         string `db:"log_date" json:"log_date"`
	Occurred        *bool  `db:"occurred" json:"occurred,omitempty"`
	DurationMinutes *int   `db:"duration_minutes" json:"duration_minutes,omitempty"`
}

// DailySummaryRow carries the per-day totals. Conflict key: user_id, log_date.
type DailySummaryRow struct {
	UserID         string `db:"user_id" json:"user_id"`
	LogDate        string `db:"log_date" json:"log_date"`
	XPEarned       int    `db:"xp_earned" json:"xp_earned"`
	BareMinimumMet bool   `db:"bare_minimum_met" json:"bare_minimum_met"`
	SubmittedAt    string `db:"submitted_at" json:"submitted_at"`
	AdminTotal     *int   `db:"admin_total" json:"admin_total,omitempty"`
	AdminCompleted *int   `db:"admin_completed" json:"admin_completed,omitempty"`
	// AdminTasks is a JSON array of task titles.
	AdminTasks *string `db:"admin_tasks" json:"admin_tasks,omitempty"`
}

// SettingsRow holds preferences. Conflict key: user_id.
type SettingsRow struct {
	UserID      string `db:"user_id" json:"user_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	Timezone    string `db:"timezone" json:"timezone"`
	DailyXPGoal int    `db:"daily_xp_goal" json:"daily_xp_goal"`
}

// SprintRow is a sprint header. Conflict key: id.
type SprintRow struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Name      string `db:"name" json:"name"`
	Status    string `db:"status" json:"status"`
	StartDate string `db:"start_date" json:"start_date"`
	EndDate   string `db:"end_date" json:"end_date"`
}

// SprintTaskRow is one sprint task. Conflict key: id.
type SprintTaskRow struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	SprintID  string `db:"sprint_id" json:"sprint_id"`
	Title     string `db:"title" json:"title"`
	Done      bool   `db:"done" json:"done"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

// ReflectionRow is a reflection. Conflict key: id.
type ReflectionRow struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	Period      string `db:"period" json:"period"`
	PeriodStart string `db:"period_start" json:"period_start"`
	Wins        string `db:"wins" json:"wins"`
	Lessons     string `db:"lessons" json:"lessons"`
	NextFocus   string `db:"next_focus" json:"next_focus"`
	CreatedAt   string `db:"created_at" json:"created_at"`
}

// GymSessionRow is a workout header. Conflict key: id.
type GymSessionRow struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	SessionDate string `db:"session_date" json:"session_date"`
	Name        string `db:"name" json:"name"`
}

// GymExerciseRow is an exercise in a session. Conflict key: id.
type GymExerciseRow struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	SessionID string `db:"session_id" json:"session_id"`
	Name      string `db:"name" json:"name"`
	SortOrder int    `db:"sort_order" json:"sort_order"`
}

// GymSetRow is a set in an exercise. Conflict key: id.
type GymSetRow struct {
	ID         string  `db:"id" json:"id"`
	UserID     string  `db:"user_id" json:"user_id"`
	ExerciseID string  `db:"exercise_id" json:"exercise_id"`
	Reps       int     `db:"reps" json:"reps"`
	WeightKg   float64 `db:"weight_kg" json:"weight_kg"`
	SortOrder  int     `db:"sort_order" json:"sort_order"`
}

// GymRoutineRow is a routine header. Conflict key: id.
type GymRoutineRow struct {
	ID     string `db:"id" json:"id"`
	UserID string `db:"user_id" json:"user_id"`
	Name   string `db:"name" json:"name"`
}

// RoutineExerciseRow is a planned exercise. Conflict key: id.
type RoutineExerciseRow struct {
	ID         string `db:"id" json:"id"`
	UserID     string `db:"user_id" json:"user_id"`
	RoutineID  string `db:"routine_id" json:"routine_id"`
	Name       string `db:"name" json:"name"`
	TargetSets int    `db:"target_sets" json:"target_sets"`
	TargetReps int    `db:"target_reps" json:"target_reps"`
	SortOrder  int    `db:"sort_order" json:"sort_order"`
}

// AdminTaskRow is a backlog item. Conflict key: id.
type AdminTaskRow struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Title     string `db:"title" json:"title"`
	Done      bool   `db:"done" json:"done"`
	DueDate   string `db:"due_date" json:"due_date"`
	CreatedAt string `db:"created_at" json:"created_at"`
}

// UsageCounterRow is one counter. Conflict key: user_id, counter_key.
type UsageCounterRow struct {
	UserID     string `db:"user_id" json:"user_id"`
	CounterKey string `db:"counter_key" json:"counter_key"`
	Count      int    `db:"count" json:"count"`
}
