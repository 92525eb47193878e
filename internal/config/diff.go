package config

import (
	"reflect"
	"sort"
	"strings"

	logx "tockbot/pkg/logx"
)

// SummarizeChange returns the sections that differ between two snapshots and
// structured attrs safe for logging. Secrets (the bot token) are reported as
// set/unset only.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if strings.TrimSpace(oldCfg.Telegram.Token) != strings.TrimSpace(newCfg.Telegram.Token) ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) ||
		oldCfg.Telegram.SendRatePerSec != newCfg.Telegram.SendRatePerSec ||
		!reflect.DeepEqual(oldCfg.Telegram.OwnerUserIDs, newCfg.Telegram.OwnerUserIDs) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", strings.TrimSpace(newCfg.Telegram.Token) != ""),
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Int("telegram.owner_count", len(newCfg.Telegram.OwnerUserIDs)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.timezone", strings.TrimSpace(newCfg.Schedule.Timezone)),
			logx.Bool("schedule.path_set", strings.TrimSpace(newCfg.Schedule.Path) != ""),
		)
	}

	oldS, newS := oldCfg.Storage, newCfg.Storage
	if (oldS == nil) != (newS == nil) || (oldS != nil && !reflect.DeepEqual(*oldS, *newS)) {
		changed = append(changed, "storage")
		if newS != nil {
			attrs = append(attrs,
				logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
				logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
			)
		} else {
			attrs = append(attrs, logx.Bool("storage.enabled", false))
		}
	}

	if !reflect.DeepEqual(oldCfg.Housekeeping, newCfg.Housekeeping) {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.String("housekeeping.audit_retention", strings.TrimSpace(newCfg.Housekeeping.AuditRetention)),
		)
	}

	if modChanged := diffModules(oldCfg.Modules, newCfg.Modules); len(modChanged) > 0 {
		changed = append(changed, "modules")
		attrs = append(attrs, logx.Any("modules.changed", modChanged))
	}

	sort.Strings(changed)
	return changed, attrs
}

func diffModules(oldM, newM map[string]ModuleConfigRaw) []string {
	set := map[string]struct{}{}
	for k := range oldM {
		set[k] = struct{}{}
	}
	for k := range newM {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, n := oldM[name], newM[name]
		if o.Enabled != n.Enabled || !jsonEqual(o.Config, n.Config) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func jsonEqual(a, b []byte) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return string(a) == string(b)
}
