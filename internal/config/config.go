package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Environment variables that override the file.
const (
	EnvListen      = "STUDYPLAN_LISTEN"
	EnvStoreDriver = "STUDYPLAN_STORE_DRIVER"
	EnvSQLitePath  = "STUDYPLAN_SQLITE_PATH"
	EnvRedisAddr   = "STUDYPLAN_REDIS_ADDR"
	EnvLogLevel    = "STUDYPLAN_LOG_LEVEL"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// StoreConfig selects and configures the record store backend.
type StoreConfig struct {
	// Driver is one of "memory", "sqlite" or "redis".
	Driver string `yaml:"driver" json:"driver"`

	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr" json:"redis_addr"`
	RedisPassword string `yaml:"redis_password,omitempty" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that defines "today" for the ranking views
	// (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is DEBUG, INFO or ERROR; LogFormat is "json" or "console".
	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	Store StoreConfig `yaml:"store" json:"store"`

	// PriorityLimit is the default number of tasks in the priority view.
	PriorityLimit int `yaml:"priority_limit" json:"priority_limit"`

	// StressHorizonDays is the default window of the stress overview.
	StressHorizonDays int `yaml:"stress_horizon_days" json:"stress_horizon_days"`

	// ReminderCron is the cron schedule (5 fields) of the reminder sweep.
	ReminderCron string `yaml:"reminder_cron" json:"reminder_cron"`

	// DefaultReminderMinutes applies to tasks without their own lead time.
	DefaultReminderMinutes int `yaml:"default_reminder_minutes" json:"default_reminder_minutes"`

	// ICSCacheDir holds cached bodies of calendars imported by URL.
	ICSCacheDir string `yaml:"ics_cache_dir" json:"ics_cache_dir"`

	// ICSAllowPrivateHosts lets import by URL reach loopback and private
	// network addresses. Off by default.
	ICSAllowPrivateHosts bool `yaml:"ics_allow_private_hosts" json:"ics_allow_private_hosts"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:    "127.0.0.1:8080",
		Timezone:  "UTC",
		LogLevel:  "INFO",
		LogFormat: "json",
		Store: StoreConfig{
			Driver:      DriverSQLite,
			SQLitePath:  "./var/studyplan.db",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "studyplan",
		},
		PriorityLimit:          5,
		StressHorizonDays:      30,
		ReminderCron:           "* * * * *",
		DefaultReminderMinutes: 1440,
		ICSCacheDir:            "./var/ics-cache",
		CORSOrigins:            []string{},
		BasicAuth:              nil,
	}
}

// Normalize fills in missing/zero values with defaults so that partially
// filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	c.LogLevel = strings.ToUpper(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "DEBUG", "INFO", "ERROR":
	default:
		c.LogLevel = def.LogLevel
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		c.LogFormat = def.LogFormat
	}

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		c.Store.Driver = def.Store.Driver
	}
	if c.Store.SQLitePath == "" {
		c.Store.SQLitePath = def.Store.SQLitePath
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = def.Store.RedisAddr
	}
	if c.Store.RedisPrefix == "" {
		c.Store.RedisPrefix = def.Store.RedisPrefix
	}

	if c.PriorityLimit <= 0 {
		c.PriorityLimit = def.PriorityLimit
	}
	if c.StressHorizonDays <= 0 {
		c.StressHorizonDays = def.StressHorizonDays
	}
	if c.ReminderCron == "" {
		c.ReminderCron = def.ReminderCron
	}
	if c.DefaultReminderMinutes <= 0 {
		c.DefaultReminderMinutes = def.DefaultReminderMinutes
	}
	if c.ICSCacheDir == "" {
		c.ICSCacheDir = def.ICSCacheDir
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = []string{}
	}
}

// Location resolves Timezone, falling back to UTC for unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApplyEnv overrides file values with the STUDYPLAN_* environment
// variables that are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvStoreDriver); v != "" {
		c.Store.Driver = v
	}
	if v := os.Getenv(EnvSQLitePath); v != "" {
		c.Store.SQLitePath = v
	}
	if v := os.Getenv(EnvRedisAddr); v != "" {
		c.Store.RedisAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	c.Normalize()
}

// LoadEnvFile loads a .env file next to the config file into the process
// environment. Variables already set are kept. A missing file is not an
// error.
func LoadEnvFile(configPath string) error {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(envPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(envPath)
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshalled and defaults are filled in.
//   - In both cases the .env file and STUDYPLAN_* variables are applied on
//     top; they are never written back.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}
	if err := LoadEnvFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".studyplan-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}

// String renders the effective config for the startup log, with secrets
// masked.
func (c *Config) String() string {
	auth := "off"
	if c.BasicAuth != nil {
		auth = "on"
	}
	return "listen=" + c.Listen +
		" store=" + c.Store.Driver +
		" tz=" + c.Timezone +
		" log=" + c.LogLevel +
		" reminder_cron=" + strconv.Quote(c.ReminderCron) +
		" basic_auth=" + auth
}
