package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.RefreshCron != defaultRefresh {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_ParsesAndNormalizes(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
listen: ":9000"
timezone: UTC
log_level: DEBUG
business_hours:
  start: "08:00"
  end: "18:00"
feeds:
  - url: https://example.com/a.ics
  - name: school
    url: https://example.com/b.ics
type_colors:
  Theory:
    background: "#000000"
    border: "#111111"
    text: "#ffffff"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9000" || cfg.LogLevel != "debug" || cfg.Database != defaultDatabase {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.FeedMaxBytes != defaultFeedMaxBytes {
		t.Fatalf("feed_max_bytes default = %d", cfg.FeedMaxBytes)
	}
	if cfg.Feeds[0].Name != "feed-1" || cfg.Feeds[1].Name != "school" {
		t.Fatalf("feeds = %+v", cfg.Feeds)
	}

	hours, err := cfg.Hours()
	if err != nil || hours.Open != 8*60 || hours.Close != 18*60 {
		t.Fatalf("hours = %+v, %v", hours, err)
	}
	if got := cfg.Palette().Lookup("THEORY").Background; got != "#000000" {
		t.Fatalf("palette override = %q", got)
	}
	if got := cfg.Palette().Lookup("lab").Background; got == "" {
		t.Fatalf("default palette entries must survive overrides")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.RefreshCron = "every so often"
	cfg.BusinessHours = HoursConfig{Start: "18:00", End: "08:00"}
	cfg.Feeds = []FeedConfig{{Name: "a", URL: ""}, {Name: "a", URL: "https://x"}}

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"timezone", "refresh", "business_hours", "url is empty", "used twice"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PAMPATIME_LISTEN", ":7000")
	t.Setenv("PAMPATIME_DATABASE", "/tmp/override.db")
	t.Setenv("PAMPATIME_AUTH_USERNAME", "admin")
	t.Setenv("PAMPATIME_AUTH_PASSWORD", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":7000" || cfg.Database != "/tmp/override.db" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.BasicAuth == nil || cfg.BasicAuth.Username != "admin" {
		t.Fatalf("basic auth = %+v", cfg.BasicAuth)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Feeds = []FeedConfig{{Name: "school", URL: "https://example.com/cal.ics"}}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(back.Feeds) != 1 || back.Feeds[0].URL != cfg.Feeds[0].URL {
		t.Fatalf("feeds = %+v", back.Feeds)
	}
}
