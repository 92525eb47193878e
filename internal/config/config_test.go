package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "config.yaml", `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
  poll_timeout: "10s"
logging:
  level: debug
  console: true
schedule:
  path: data/schedule.json
  timezone: Asia/Jakarta
storage:
  driver: sqlite
  path: ./data/tockbot.db
  busy_timeout: "5s"
housekeeping:
  audit_retention: "720h"
modules:
  admin:
    enabled: true
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Schedule.Timezone != "Asia/Jakarta" {
		t.Fatalf("timezone = %q", cfg.Schedule.Timezone)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "sqlite" {
		t.Fatalf("storage = %+v", cfg.Storage)
	}
	if !cfg.Modules["admin"].Enabled {
		t.Fatal("admin module should be enabled")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "config.json", `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true},
  "schedule": {},
  "modules": {},
  "telgram_typo": {}
}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}

	path = writeConfigFile(t, "config2.json", `{
  "telegram": {"token": "123:abc", "poll_timeout": "10s"},
  "logging": {"level": "info", "console": true},
  "schedule": {},
  "modules": {"admin": {"enabled": true, "timeout": "5s"}}
}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown module key")
	}
}

func TestLoadRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "config.json",
		`{"telegram": {"token": "123:abc"}, "logging": {}, "schedule": {}, "modules": {}} {"extra": 1}`)
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{name: "ok", mutate: func(c *Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = " " }, wantSub: "telegram.token"},
		{name: "bad poll timeout", mutate: func(c *Config) { c.Telegram.PollTimeout = "banana" }, wantSub: "poll_timeout"},
		{name: "negative rate", mutate: func(c *Config) { c.Telegram.SendRatePerSec = -1 }, wantSub: "send_rate_per_sec"},
		{name: "storage without driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Path: "x"} }, wantSub: "storage.driver"},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "postgres", Path: "x"} }, wantSub: "unknown driver"},
		{name: "storage without path", mutate: func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite"} }, wantSub: "storage.path"},
		{name: "bad retention", mutate: func(c *Config) { c.Housekeeping.AuditRetention = "-1h" }, wantSub: "audit_retention"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{Telegram: TelegramConfig{Token: "123:abc", PollTimeout: "10s"}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantSub == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.wantSub)
			}
		})
	}
}

func TestAsJSONStringifiesKeys(t *testing.T) {
	t.Parallel()
	b, err := asJSON("m.yaml", []byte("1: one\n2: [a, b]\n"))
	if err != nil {
		t.Fatalf("asJSON: %v", err)
	}
	want := `{"1":"one","2":["a","b"]}`
	if string(b) != want {
		t.Fatalf("asJSON = %s, want %s", b, want)
	}

	b, err = asJSON("m.json", []byte(`{"passes": "through"}`))
	if err != nil || string(b) != `{"passes": "through"}` {
		t.Fatalf("json passthrough = (%s, %v)", b, err)
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty = (%v, %v), want (0, nil)", d, err)
	}
	if d, err := ParseDurationField("x", " 90s "); err != nil || d != 90*time.Second {
		t.Fatalf("90s = (%v, %v)", d, err)
	}
	if _, err := ParseDurationField("x", "-5s"); err == nil {
		t.Fatal("negative duration must be rejected")
	}
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = (%v, %v), want (1m, nil)", d, err)
	}
}

func TestSummarizeChange(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Telegram: TelegramConfig{Token: "a", PollTimeout: "10s"},
		Logging:  LoggingConfig{Level: "info"},
		Modules:  map[string]ModuleConfigRaw{"admin": {Enabled: true}},
	}
	newCfg := &Config{
		Telegram: TelegramConfig{Token: "a", PollTimeout: "10s"},
		Logging:  LoggingConfig{Level: "debug"},
		Modules:  map[string]ModuleConfigRaw{"admin": {Enabled: false}},
	}
	changed, _ := SummarizeChange(oldCfg, newCfg)
	want := []string{"logging", "modules"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}
