package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`

	// Schedule controls the reminder scheduler and its persistence file.
	Schedule ScheduleConfig `json:"schedule"`

	// Storage backs permissions and the audit trail. Nil means the bot runs
	// without persistence and every sender gets the default permission level.
	Storage *StorageConfig `json:"storage,omitempty"`

	Housekeeping HousekeepingConfig `json:"housekeeping,omitempty"`

	Modules map[string]ModuleConfigRaw `json:"modules"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
	// SendRatePerSec caps outbound messages per second. 0 keeps the default.
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled    bool   `json:"enabled"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
}

type ScheduleConfig struct {
	// Path is the JSON file the scheduler writes on shutdown and reads on
	// startup. Default: "data/schedule.json".
	Path string `json:"path,omitempty"`
	// Timezone is an IANA name used when resolving calendar constraints.
	// Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./data/tockbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HousekeepingConfig controls periodic maintenance jobs.
type HousekeepingConfig struct {
	// AuditRetention is how long audit rows are kept. Go duration string;
	// empty or "0s" disables pruning.
	AuditRetention string `json:"audit_retention,omitempty"`
	// PruneSpec is a cron expression for the prune job. Default: "17 3 * * *".
	PruneSpec string `json:"prune_spec,omitempty"`
}

type ModuleConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON disallows unknown fields so typos in a module section are
// caught at load time instead of being silently ignored.
func (m *ModuleConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*m = ModuleConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}

// Validate checks the fields that would otherwise fail deep inside a service
// at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token: required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if c.Telegram.SendRatePerSec < 0 {
		return fmt.Errorf("telegram.send_rate_per_sec: must be >= 0")
	}
	if c.Storage != nil {
		switch strings.TrimSpace(c.Storage.Driver) {
		case "sqlite":
		case "":
			return fmt.Errorf("storage.driver: required when storage is set")
		default:
			return fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
		}
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path: required")
		}
		if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	if _, err := ParseDurationField("housekeeping.audit_retention", c.Housekeeping.AuditRetention); err != nil {
		return err
	}
	return nil
}

// ParseDurationField parses a duration-valued config field. An empty field
// means unset and yields zero; negative values are rejected.
func ParseDurationField(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: %q is negative", field, raw)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset.
func ParseDurationOrDefault(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(field, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
