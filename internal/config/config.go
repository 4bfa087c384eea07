// Package config loads tally's settings from a YAML file, TALLY_* environment
// variables and built-in defaults, in increasing order of precedence:
// defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TALLY_REMOTE_URL.
const EnvPrefix = "TALLY"

// Config is the full configuration.
type Config struct {
	// Directory holding the local database, session and inbox
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	Remote    RemoteConfig    `yaml:"remote" mapstructure:"remote"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Migrate   MigrateConfig   `yaml:"migrate" mapstructure:"migrate"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Inbox     InboxConfig     `yaml:"inbox" mapstructure:"inbox"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`

	// Optional TOML file with habit overrides
	CatalogFile string `yaml:"catalog_file" mapstructure:"catalog_file"`
}

// RemoteConfig configures the remote backend.
type RemoteConfig struct {
	// libsql:// or https:// URL of the Turso primary; empty disables remote
	URL       string `yaml:"url" mapstructure:"url"`
	AuthToken string `yaml:"auth_token" mapstructure:"auth_token"`

	// Embedded replica file (default: <data_dir>/replica.db)
	ReplicaPath string `yaml:"replica_path" mapstructure:"replica_path"`

	// Use a plain SQLite file as the remote instead of Turso
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`

	SyncInterval time.Duration `yaml:"sync_interval" mapstructure:"sync_interval"`

	// HEAD target for connectivity checks; empty trusts the online signal
	ProbeURL     string        `yaml:"probe_url" mapstructure:"probe_url"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" mapstructure:"probe_timeout"`
}

// Enabled reports whether any remote is configured.
func (r RemoteConfig) Enabled() bool {
	return r.URL != "" || r.SQLitePath != ""
}

// QueueConfig configures the offline write queue.
type QueueConfig struct {
	// Attempts before an op is dead-lettered; 0 retries forever
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// MigrateConfig configures the first-sign-in migration.
type MigrateConfig struct {
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// DashboardConfig configures the status dashboard.
type DashboardConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// InboxConfig configures the day-log inbox.
type InboxConfig struct {
	// Watched directory (default: <data_dir>/inbox)
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LogConfig configures log output.
type LogConfig struct {
	// Rotated log file (default: <data_dir>/tally.log); "-" logs to stderr only
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" mapstructure:"max_age_days"`
}

// Defaults returns the built-in configuration. Paths are resolved against
// the data directory by Load.
func Defaults() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Remote: RemoteConfig{
			SyncInterval: time.Minute,
			ProbeTimeout: 3 * time.Second,
		},
		Migrate:   MigrateConfig{BatchSize: 30},
		Dashboard: DashboardConfig{Addr: "127.0.0.1:7878"},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultDataDir is $XDG_DATA_HOME/tally, falling back to ~/.local/share/tally.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tally")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tally"
	}
	return filepath.Join(home, ".local", "share", "tally")
}

// DefaultConfigPath is ~/.config/tally/config.yaml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tally", "config.yaml")
}

// Load reads path (or the default location when empty) and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if explicit || !(errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.resolve()
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("catalog_file", d.CatalogFile)
	v.SetDefault("remote.url", d.Remote.URL)
	v.SetDefault("remote.auth_token", d.Remote.AuthToken)
	v.SetDefault("remote.replica_path", d.Remote.ReplicaPath)
	v.SetDefault("remote.sqlite_path", d.Remote.SQLitePath)
	v.SetDefault("remote.sync_interval", d.Remote.SyncInterval)
	v.SetDefault("remote.probe_url", d.Remote.ProbeURL)
	v.SetDefault("remote.probe_timeout", d.Remote.ProbeTimeout)
	v.SetDefault("queue.max_attempts", d.Queue.MaxAttempts)
	v.SetDefault("migrate.batch_size", d.Migrate.BatchSize)
	v.SetDefault("dashboard.addr", d.Dashboard.Addr)
	v.SetDefault("inbox.dir", d.Inbox.Dir)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

func (c *Config) resolve() {
	if c.DataDir == "" {
		c.DataDir = DefaultDataDir()
	}
	if c.Remote.ReplicaPath == "" {
		c.Remote.ReplicaPath = filepath.Join(c.DataDir, "replica.db")
	}
	if c.Inbox.Dir == "" {
		c.Inbox.Dir = filepath.Join(c.DataDir, "inbox")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(c.DataDir, "tally.log")
	}
	if c.Migrate.BatchSize <= 0 {
		c.Migrate.BatchSize = 30
	}
}

// LocalPath is the local document store.
func (c *Config) LocalPath() string {
	return filepath.Join(c.DataDir, "local.db")
}

// SessionPath is the file written by `tally login`.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}
