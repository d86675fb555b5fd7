// Package config loads and persists the YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/rental-calendar/backend/internal/calendar"
	"github.com/rental-calendar/backend/internal/export"
)

const (
	defaultListen          = ":8099"
	defaultDataDir         = "/data"
	defaultFetchTimeout    = 30 * time.Second
	defaultUserAgent       = "RentalCalendar/1.0"
	defaultRecheckInterval = 3600
	defaultRetentionDays   = 30
)

// Environment overrides, applied by ApplyEnv.
const (
	EnvAddr    = "RENTALCAL_ADDR"
	EnvDataDir = "RENTALCAL_DATA"
)

// LogConfig controls log level and the optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// SyncConfig controls periodic feed imports.
type SyncConfig struct {
	// Schedule is a six-field cron spec (with seconds) or a descriptor
	// such as "@every 5m".
	Schedule     string        `yaml:"schedule" json:"schedule"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	UserAgent    string        `yaml:"user_agent" json:"user_agent"`
}

// ExportConfig controls the exported calendar.
type ExportConfig struct {
	ProductID           string `yaml:"product_id" json:"product_id"`
	EarlyStartTime      string `yaml:"early_start_time" json:"early_start_time"`
	StandardStartTime   string `yaml:"standard_start_time" json:"standard_start_time"`
	StandardEndTime     string `yaml:"standard_end_time" json:"standard_end_time"`
	LateEndTime         string `yaml:"late_end_time" json:"late_end_time"`
	PreReservationDays  int    `yaml:"pre_reservation_days" json:"pre_reservation_days"`
	PostReservationDays int    `yaml:"post_reservation_days" json:"post_reservation_days"`
}

// PartnerConfig holds per-partner sync settings.
type PartnerConfig struct {
	// RecheckInterval is the minimum number of seconds between fetches.
	RecheckInterval int `yaml:"recheck_interval" json:"recheck_interval"`
	// KeepDeletedReservationsFor is how many days a past reservation that
	// vanished from the feed is kept (orphaned) before it is deleted.
	KeepDeletedReservationsFor int `yaml:"keep_deleted_reservations_for" json:"keep_deleted_reservations_for"`
	// Sentinels are event summaries that mark availability blocks.
	Sentinels []string `yaml:"sentinels,omitempty" json:"sentinels,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen   string                   `yaml:"listen" json:"listen"`
	DataDir  string                   `yaml:"data_dir" json:"data_dir"`
	Log      LogConfig                `yaml:"log" json:"log"`
	Sync     SyncConfig               `yaml:"sync" json:"sync"`
	Export   ExportConfig             `yaml:"export" json:"export"`
	Partners map[string]PartnerConfig `yaml:"partners" json:"partners"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	tw := export.DefaultTimeWindows()
	return &Config{
		Listen:  defaultListen,
		DataDir: defaultDataDir,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Sync: SyncConfig{
			Schedule:     calendar.DefaultSchedule,
			FetchTimeout: defaultFetchTimeout,
			UserAgent:    defaultUserAgent,
		},
		Export: ExportConfig{
			ProductID:         export.DefaultProductID,
			EarlyStartTime:    tw.EarlyStart,
			StandardStartTime: tw.StandardStart,
			StandardEndTime:   tw.StandardEnd,
			LateEndTime:       tw.LateEnd,
		},
		Partners: map[string]PartnerConfig{
			calendar.AirbnbName: {
				RecheckInterval:            defaultRecheckInterval,
				KeepDeletedReservationsFor: defaultRetentionDays,
			},
		},
	}
}

// Normalize fills in missing or zero values so partially filled files
// still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.DataDir == "" {
		c.DataDir = def.DataDir
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.MaxSizeMB <= 0 {
		c.Log.MaxSizeMB = def.Log.MaxSizeMB
	}
	if c.Log.MaxBackups < 0 {
		c.Log.MaxBackups = 0
	}
	if c.Log.MaxAgeDays < 0 {
		c.Log.MaxAgeDays = 0
	}

	if c.Sync.Schedule == "" {
		c.Sync.Schedule = def.Sync.Schedule
	}
	if c.Sync.FetchTimeout <= 0 {
		c.Sync.FetchTimeout = def.Sync.FetchTimeout
	}
	if c.Sync.UserAgent == "" {
		c.Sync.UserAgent = def.Sync.UserAgent
	}

	if c.Export.ProductID == "" {
		c.Export.ProductID = def.Export.ProductID
	}
	if c.Export.EarlyStartTime == "" {
		c.Export.EarlyStartTime = def.Export.EarlyStartTime
	}
	if c.Export.StandardStartTime == "" {
		c.Export.StandardStartTime = def.Export.StandardStartTime
	}
	if c.Export.StandardEndTime == "" {
		c.Export.StandardEndTime = def.Export.StandardEndTime
	}
	if c.Export.LateEndTime == "" {
		c.Export.LateEndTime = def.Export.LateEndTime
	}
	c.Export.PreReservationDays = max(c.Export.PreReservationDays, 0)
	c.Export.PostReservationDays = max(c.Export.PostReservationDays, 0)

	if c.Partners == nil {
		c.Partners = def.Partners
	}
	for name, p := range c.Partners {
		if p.RecheckInterval <= 0 {
			p.RecheckInterval = defaultRecheckInterval
		}
		if p.KeepDeletedReservationsFor <= 0 {
			p.KeepDeletedReservationsFor = defaultRetentionDays
		}
		c.Partners[name] = p
	}
}

// scheduleParser matches the scheduler's cron.WithSeconds parser.
var scheduleParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports settings that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := scheduleParser.Parse(c.Sync.Schedule); err != nil {
		return fmt.Errorf("sync schedule %q: %w", c.Sync.Schedule, err)
	}
	if err := c.TimeWindows().Validate(); err != nil {
		return fmt.Errorf("export time windows: %w", err)
	}
	return nil
}

// Partner returns the settings for a partner, falling back to defaults
// when it is not configured.
func (c *Config) Partner(name string) PartnerConfig {
	if p, ok := c.Partners[name]; ok {
		return p
	}
	return PartnerConfig{
		RecheckInterval:            defaultRecheckInterval,
		KeepDeletedReservationsFor: defaultRetentionDays,
	}
}

// PartnerNames returns the configured partner names, sorted.
func (c *Config) PartnerNames() []string {
	names := make([]string, 0, len(c.Partners))
	for name := range c.Partners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TimeWindows converts the export section for the export generator.
func (c *Config) TimeWindows() export.TimeWindows {
	return export.TimeWindows{
		EarlyStart:    c.Export.EarlyStartTime,
		StandardStart: c.Export.StandardStartTime,
		StandardEnd:   c.Export.StandardEndTime,
		LateEnd:       c.Export.LateEndTime,
		PreDays:       c.Export.PreReservationDays,
		PostDays:      c.Export.PostReservationDays,
	}
}

// DBPath is the SQLite database location inside the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "rental-calendar.db")
}

// ApplyEnv overrides the listen address and data directory from the
// environment.
func (c *Config) ApplyEnv() {
	c.Listen = getEnv(EnvAddr, c.Listen)
	c.DataDir = getEnv(EnvDataDir, c.DataDir)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Load reads the YAML file at path. A missing file is created with the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, fmt.Errorf("writing default config: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return Parse(data)
}

// Parse decodes and normalizes YAML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes cfg to path atomically with 0600 permissions.
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
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".rental-calendar-config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}

// FeedRules describes every configured partner. AirBNB gets the Airbnb
// label rules; any other name uses its event summaries as labels.
func (c *Config) FeedRules() []calendar.FeedRules {
	rules := make([]calendar.FeedRules, 0, len(c.Partners))
	for _, name := range c.PartnerNames() {
		p := c.Partners[name]
		if name == calendar.AirbnbName {
			rules = append(rules, calendar.AirbnbRules(p.Sentinels...))
			continue
		}
		rules = append(rules, calendar.GenericRules(name, p.Sentinels...))
	}
	return rules
}
