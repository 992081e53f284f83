package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"pampatime/internal/model"
)

// FeedConfig is one subscribed iCalendar feed.
type FeedConfig struct {
	// Name is the import source key; events from the feed are replaced as a
	// group under it.
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// HoursConfig bounds the slots accepted on creation, as HH:MM.
type HoursConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

type Config struct {
	Listen   string `yaml:"listen" json:"listen"`
	Database string `yaml:"database" json:"database"`

	// Timezone is the IANA zone sessions are created and shown in.
	Timezone string `yaml:"timezone" json:"timezone"`
	LogLevel string `yaml:"log_level" json:"log_level"`

	BusinessHours HoursConfig `yaml:"business_hours" json:"business_hours"`

	// RefreshCron schedules feed sync (standard 5-field cron syntax).
	RefreshCron string `yaml:"refresh" json:"refresh"`
	CacheDir    string `yaml:"cache_dir" json:"cache_dir"`

	// FeedMaxBytes caps the size of a downloaded feed body.
	FeedMaxBytes int64        `yaml:"feed_max_bytes" json:"feed_max_bytes"`
	Feeds        []FeedConfig `yaml:"feeds" json:"feeds"`

	// TypeColors overrides or extends the default session palette.
	TypeColors map[string]model.Style `yaml:"type_colors,omitempty" json:"type_colors,omitempty"`

	// BasicAuth, if set, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultDatabase = "./var/pampatime.db"
	defaultTimezone = "America/Sao_Paulo"
	defaultRefresh  = "*/30 * * * *"
	defaultCacheDir = "./var/ics-cache"

	defaultFeedMaxBytes int64 = 10 << 20
)

func DefaultConfig() *Config {
	return &Config{
		Listen:        defaultListen,
		Database:      defaultDatabase,
		Timezone:      defaultTimezone,
		LogLevel:      "info",
		BusinessHours: HoursConfig{Start: "07:30", End: "22:30"},
		RefreshCron:   defaultRefresh,
		CacheDir:      defaultCacheDir,
		FeedMaxBytes:  defaultFeedMaxBytes,
		Feeds:         []FeedConfig{},
	}
}

// Normalize fills zero values with defaults and canonicalizes keys.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Database == "" {
		c.Database = defaultDatabase
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BusinessHours.Start == "" {
		c.BusinessHours.Start = "07:30"
	}
	if c.BusinessHours.End == "" {
		c.BusinessHours.End = "22:30"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.FeedMaxBytes <= 0 {
		c.FeedMaxBytes = defaultFeedMaxBytes
	}
	if c.Feeds == nil {
		c.Feeds = []FeedConfig{}
	}
	for i := range c.Feeds {
		if c.Feeds[i].Name == "" {
			c.Feeds[i].Name = fmt.Sprintf("feed-%d", i+1)
		}
	}
	if len(c.TypeColors) > 0 {
		lowered := make(map[string]model.Style, len(c.TypeColors))
		for k, v := range c.TypeColors {
			lowered[strings.ToLower(strings.TrimSpace(k))] = v
		}
		c.TypeColors = lowered
	}
}

// Validate reports settings that would make the service fail later.
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := c.Hours(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	seen := map[string]bool{}
	for _, f := range c.Feeds {
		if f.URL == "" {
			errs = append(errs, fmt.Errorf("feed %s: url is empty", f.Name))
		}
		if seen[f.Name] {
			errs = append(errs, fmt.Errorf("feed name %s is used twice", f.Name))
		}
		seen[f.Name] = true
	}
	return errors.Join(errs...)
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Hours parses BusinessHours.
func (c *Config) Hours() (model.BusinessHours, error) {
	open, err := model.ParseClock(c.BusinessHours.Start)
	if err != nil {
		return model.BusinessHours{}, fmt.Errorf("business_hours.start: %w", err)
	}
	closing, err := model.ParseClock(c.BusinessHours.End)
	if err != nil {
		return model.BusinessHours{}, fmt.Errorf("business_hours.end: %w", err)
	}
	if closing <= open {
		return model.BusinessHours{}, errors.New("business_hours.end must be after start")
	}
	return model.BusinessHours{Open: open, Close: closing}, nil
}

// Palette is the default palette with TypeColors applied on top.
func (c *Config) Palette() model.Palette {
	p := model.DefaultPalette()
	for k, v := range c.TypeColors {
		p[k] = v
	}
	return p
}

// Load reads the YAML file at path, writing a default one on first run, then
// applies PAMPATIME_* environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	var cfg *Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			return cfg, err
		}
	case err != nil:
		return nil, err
	default:
		cfg = &Config{}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Normalize()
	return cfg, nil
}

func applyEnv(c *Config) {
	v := viper.New()
	v.SetEnvPrefix("PAMPATIME")
	v.AutomaticEnv()

	_ = v.BindEnv("listen")
	_ = v.BindEnv("database")
	_ = v.BindEnv("timezone")
	_ = v.BindEnv("log_level")
	_ = v.BindEnv("refresh")
	_ = v.BindEnv("cache_dir")
	_ = v.BindEnv("auth_username")
	_ = v.BindEnv("auth_password")

	override := func(key string, dst *string) {
		if s := strings.TrimSpace(v.GetString(key)); s != "" {
			*dst = s
		}
	}
	override("listen", &c.Listen)
	override("database", &c.Database)
	override("timezone", &c.Timezone)
	override("log_level", &c.LogLevel)
	override("refresh", &c.RefreshCron)
	override("cache_dir", &c.CacheDir)

	user := strings.TrimSpace(v.GetString("auth_username"))
	pass := v.GetString("auth_password")
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}
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
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pampatime-config-*.tmp")
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
