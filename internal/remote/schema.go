package remote

// schemaSQL creates the remote tables. Every UNIQUE constraint or unique
// index below is the conflict key the matching Table upserts on. Habit
// ids are only unique per user, so keys involving habit_id include user_id.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS profiles (
	user_id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS user_stats (
	user_id TEXT PRIMARY KEY,
	total_xp INTEGER NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
	level INTEGER NOT NULL DEFAULT 1,
	bare_minimum_streak INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS habits (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	slug TEXT NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	is_bad INTEGER NOT NULL DEFAULT 0,
	target REAL NOT NULL DEFAULT 0,
	unit TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	is_custom INTEGER NOT NULL DEFAULT 0,
	UNIQUE (user_id, slug)
);

CREATE TABLE IF NOT EXISTS habit_overrides (
	user_id TEXT NOT NULL,
	habit_id TEXT NOT NULL,
	name TEXT,
	target REAL,
	unit TEXT,
	archived INTEGER,
	UNIQUE (user_id, habit_id)
);

CREATE TABLE IF NOT EXISTS habit_streaks (
	user_id TEXT NOT NULL,
	slug TEXT NOT NULL,
	current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
	shield_available INTEGER NOT NULL DEFAULT 0,
	shield_earned_date TEXT NOT NULL DEFAULT '',
	shield_used_date TEXT NOT NULL DEFAULT '',
	UNIQUE (user_id, slug)
);

CREATE TABLE IF NOT EXISTS daily_logs (
	user_id TEXT NOT NULL,
	habit_id TEXT NOT NULL,
	log_date TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	value REAL
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_daily_logs_owner ON daily_logs(user_id, habit_id, log_date);
CREATE INDEX IF NOT EXISTS idx_daily_logs_user ON daily_logs(user_id, log_date);

CREATE TABLE IF NOT EXISTS bad_habit_logs (
	user_id TEXT NOT NULL,
	habit_id TEXT NOT NULL,
	log_date TEXT NOT NULL,
	occurred INTEGER,
	duration_minutes INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS ux_bad_habit_logs_owner ON bad_habit_logs(user_id, habit_id, log_date);
CREATE INDEX IF NOT EXISTS idx_bad_habit_logs_user ON bad_habit_logs(user_id, log_date);

CREATE TABLE IF NOT EXISTS daily_summaries (
	user_id TEXT NOT NULL,
	log_date TEXT NOT NULL,
	xp_earned INTEGER NOT NULL DEFAULT 0,
	bare_minimum_met INTEGER NOT NULL DEFAULT 0,
	submitted_at TEXT NOT NULL DEFAULT '',
	admin_total INTEGER,
	admin_completed INTEGER,
	admin_tasks TEXT,
	UNIQUE (user_id, log_date)
);

CREATE TABLE IF NOT EXISTS user_settings (
	user_id TEXT PRIMARY KEY,
	display_name TEXT NOT NULL DEFAULT '',
	timezone TEXT NOT NULL DEFAULT 'UTC',
	daily_xp_goal INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sprints (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sprint_tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	sprint_id TEXT NOT NULL,
	title TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS reflections (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	period TEXT NOT NULL,
	period_start TEXT NOT NULL,
	wins TEXT NOT NULL DEFAULT '',
	lessons TEXT NOT NULL DEFAULT '',
	next_focus TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS gym_sessions (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_date TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS gym_exercises (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	name TEXT NOT NULL,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS gym_sets (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	exercise_id TEXT NOT NULL,
	reps INTEGER NOT NULL DEFAULT 0,
	weight_kg REAL NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS gym_routines (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS routine_exercises (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	routine_id TEXT NOT NULL,
	name TEXT NOT NULL,
	target_sets INTEGER NOT NULL DEFAULT 0,
	target_reps INTEGER NOT NULL DEFAULT 0,
	sort_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS admin_tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	done INTEGER NOT NULL DEFAULT 0,
	due_date TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS usage_counters (
	user_id TEXT NOT NULL,
	counter_key TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	UNIQUE (user_id, counter_key)
);
`
