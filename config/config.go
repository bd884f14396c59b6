// Package config holds the validated monitoring configuration and its
// atomically hot-swapped store.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ftahirops/diskmon/model"
)

// Config is one immutable configuration snapshot. Readers obtain it from a
// Store and keep using it for the duration of one operation; a reload never
// mutates a snapshot in place.
type Config struct {
	General       GeneralConfig       `mapstructure:"general"`
	Alerts        AlertConfig         `mapstructure:"alerts"`
	Devices       DevicesConfig       `mapstructure:"devices"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

// GeneralConfig holds poll cadences.
type GeneralConfig struct {
	// Fast tick interval in milliseconds (I/O sampling rate).
	UpdateIntervalMs int `mapstructure:"update_interval_ms"`
	// SMART refresh interval in seconds.
	SmartIntervalSec int `mapstructure:"smart_interval_sec"`
	// Filesystem / NFS / volume-manager refresh interval in seconds.
	SlowIntervalSec int `mapstructure:"slow_interval_sec"`
}

// UpdateInterval returns the fast cadence as a duration.
func (g GeneralConfig) UpdateInterval() time.Duration {
	return time.Duration(g.UpdateIntervalMs) * time.Millisecond
}

// SmartInterval returns the SMART cadence as a duration.
func (g GeneralConfig) SmartInterval() time.Duration {
	return time.Duration(g.SmartIntervalSec) * time.Second
}

// SlowInterval returns the coarse cadence as a duration.
func (g GeneralConfig) SlowInterval() time.Duration {
	return time.Duration(g.SlowIntervalSec) * time.Second
}

// AlertConfig holds thresholds and the alert engine tuning.
type AlertConfig struct {
	Thresholds AlertThresholds `mapstructure:"thresholds"`
	// Suppress re-notifying the same (subject, rule, severity) for this many
	// minutes. 0 disables cooldown. Escalations bypass it.
	CooldownMinutes int `mapstructure:"cooldown_minutes"`
	// Per-attribute SMART rules feeding the sector-count rule kind.
	SmartRules []SmartRule `mapstructure:"smart_rules"`
}

// Cooldown returns the cooldown window as a duration.
func (a AlertConfig) Cooldown() time.Duration {
	return time.Duration(a.CooldownMinutes) * time.Minute
}

// AlertThresholds are the per-rule warn/crit levels. A zero latency or
// fill-days threshold disables that check.
type AlertThresholds struct {
	FilesystemWarnPct float64 `mapstructure:"filesystem_warn_pct"`
	FilesystemCritPct float64 `mapstructure:"filesystem_crit_pct"`
	InodeWarnPct      float64 `mapstructure:"inode_warn_pct"`
	InodeCritPct      float64 `mapstructure:"inode_crit_pct"`
	TempWarnSSD       int     `mapstructure:"temperature_warn_ssd"`
	TempCritSSD       int     `mapstructure:"temperature_crit_ssd"`
	TempWarnHDD       int     `mapstructure:"temperature_warn_hdd"`
	TempCritHDD       int     `mapstructure:"temperature_crit_hdd"`
	IOUtilWarnPct     float64 `mapstructure:"io_util_warn_pct"`
	IOUtilCritPct     float64 `mapstructure:"io_util_crit_pct"`
	LatencyWarnMs     float64 `mapstructure:"latency_warn_ms"`
	LatencyCritMs     float64 `mapstructure:"latency_crit_ms"`
	NFSRttWarnMs      float64 `mapstructure:"nfs_rtt_warn_ms"`
	NFSRttCritMs      float64 `mapstructure:"nfs_rtt_crit_ms"`
	FillDaysWarn      float64 `mapstructure:"fill_days_warn"`
	FillDaysCrit      float64 `mapstructure:"fill_days_crit"`
}

// TempLevels returns the (warn, crit) temperature thresholds for a device
// kind. Rotational devices use the HDD bands.
func (t AlertThresholds) TempLevels(kind model.DeviceKind) (warn, crit int) {
	if kind == model.KindHDD {
		return t.TempWarnHDD, t.TempCritHDD
	}
	return t.TempWarnSSD, t.TempCritSSD
}

// SmartRule is one configurable SMART attribute rule evaluated against the
// attribute's raw value.
type SmartRule struct {
	// SMART attribute ID (5=reallocated, 197=pending, 198=uncorrectable).
	Attr uint32 `mapstructure:"attr"`
	// Comparison operator: gt, gte, lt, lte, eq, ne.
	Op string `mapstructure:"op"`
	// Threshold value.
	Value uint64 `mapstructure:"value"`
	// "warn" or "crit".
	Severity string `mapstructure:"severity"`
	// Optional message override; empty = generated from the attribute.
	Message string `mapstructure:"message"`
}

// Matches applies the rule's operator to a raw value.
func (r SmartRule) Matches(raw uint64) bool {
	switch r.Op {
	case "gt", ">":
		return raw > r.Value
	case "gte", ">=":
		return raw >= r.Value
	case "lt", "<":
		return raw < r.Value
	case "lte", "<=":
		return raw <= r.Value
	case "eq", "==":
		return raw == r.Value
	case "ne", "!=":
		return raw != r.Value
	default:
		return false
	}
}

// SeverityLevel maps the configured severity string to a model severity.
func (r SmartRule) SeverityLevel() model.Severity {
	if strings.EqualFold(r.Severity, "crit") {
		return model.SeverityCrit
	}
	return model.SeverityWarn
}

// DefaultSmartRules watch the classic bad-sector attributes.
func DefaultSmartRules() []SmartRule {
	return []SmartRule{
		{Attr: 5, Op: "gt", Value: 0, Severity: "warn"},
		{Attr: 197, Op: "gt", Value: 0, Severity: "warn"},
		{Attr: 198, Op: "gt", Value: 0, Severity: "crit"},
	}
}

// DevicesConfig controls which devices are monitored.
type DevicesConfig struct {
	// Glob-style patterns of devices to exclude (e.g. "loop*", "sr*").
	Exclude []string `mapstructure:"exclude"`
	// Friendly aliases: {"sda": "boot-ssd"}.
	Aliases map[string]string `mapstructure:"aliases"`
}

// Excluded reports whether a device name matches an exclusion glob.
func (d DevicesConfig) Excluded(name string) bool {
	for _, pat := range d.Exclude {
		if ok, err := path.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

// NotificationsConfig controls the dispatcher side channels.
type NotificationsConfig struct {
	// Webhook URL for alert POSTs. Empty = disabled.
	WebhookURL string `mapstructure:"webhook_url"`
	// Fire for new crit-severity alerts.
	NotifyCritical bool `mapstructure:"notify_critical"`
	// Fire for new warn-severity alerts (default off: crit only).
	NotifyWarning bool `mapstructure:"notify_warning"`
	// Send a desktop notification via notify-send for new alerts.
	NotifySend bool `mapstructure:"notify_send"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: GeneralConfig{
			UpdateIntervalMs: 2000,
			SmartIntervalSec: 300,
			SlowIntervalSec:  5,
		},
		Alerts: AlertConfig{
			Thresholds: AlertThresholds{
				FilesystemWarnPct: 85,
				FilesystemCritPct: 95,
				InodeWarnPct:      85,
				InodeCritPct:      95,
				TempWarnSSD:       55,
				TempCritSSD:       70,
				TempWarnHDD:       50,
				TempCritHDD:       60,
				IOUtilWarnPct:     95,
				IOUtilCritPct:     0,
				LatencyWarnMs:     50,
				LatencyCritMs:     200,
				NFSRttWarnMs:      50,
				NFSRttCritMs:      200,
				FillDaysWarn:      14,
				FillDaysCrit:      3,
			},
			CooldownMinutes: 0,
			SmartRules:      DefaultSmartRules(),
		},
		Devices: DevicesConfig{
			Exclude: []string{"loop*", "sr*", "ram*", "fd*"},
		},
		Notifications: NotificationsConfig{
			NotifyCritical: true,
		},
	}
}

// Validate rejects configurations that could never evaluate sensibly. A
// rejected reload keeps the previous snapshot active.
func (c *Config) Validate() error {
	if c.General.UpdateIntervalMs < 100 {
		return fmt.Errorf("general.update_interval_ms %d: below 100ms floor", c.General.UpdateIntervalMs)
	}
	if c.General.SmartIntervalSec < 1 {
		return fmt.Errorf("general.smart_interval_sec %d: must be positive", c.General.SmartIntervalSec)
	}
	if c.General.SlowIntervalSec < 1 {
		return fmt.Errorf("general.slow_interval_sec %d: must be positive", c.General.SlowIntervalSec)
	}
	t := c.Alerts.Thresholds
	for _, pair := range []struct {
		name       string
		warn, crit float64
	}{
		{"filesystem", t.FilesystemWarnPct, t.FilesystemCritPct},
		{"inode", t.InodeWarnPct, t.InodeCritPct},
		{"temperature_ssd", float64(t.TempWarnSSD), float64(t.TempCritSSD)},
		{"temperature_hdd", float64(t.TempWarnHDD), float64(t.TempCritHDD)},
	} {
		if pair.crit < pair.warn {
			return fmt.Errorf("alerts.thresholds.%s: crit %v below warn %v", pair.name, pair.crit, pair.warn)
		}
	}
	if t.LatencyCritMs != 0 && t.LatencyCritMs < t.LatencyWarnMs {
		return fmt.Errorf("alerts.thresholds.latency: crit %v below warn %v", t.LatencyCritMs, t.LatencyWarnMs)
	}
	if c.Alerts.CooldownMinutes < 0 {
		return fmt.Errorf("alerts.cooldown_minutes %d: must not be negative", c.Alerts.CooldownMinutes)
	}
	for i, r := range c.Alerts.SmartRules {
		if !oneOf(r.Op, "gt", ">", "gte", ">=", "lt", "<", "lte", "<=", "eq", "==", "ne", "!=") {
			return fmt.Errorf("alerts.smart_rules[%d]: unknown op %q", i, r.Op)
		}
		if !strings.EqualFold(r.Severity, "warn") && !strings.EqualFold(r.Severity, "crit") {
			return fmt.Errorf("alerts.smart_rules[%d]: severity must be warn or crit, got %q", i, r.Severity)
		}
	}
	for _, pat := range c.Devices.Exclude {
		if _, err := path.Match(pat, "x"); err != nil {
			return fmt.Errorf("devices.exclude pattern %q: %w", pat, err)
		}
	}
	return nil
}

func oneOf(s string, opts ...string) bool {
	for _, o := range opts {
		if s == o {
			return true
		}
	}
	return false
}

// Load reads the configuration file at path. A missing file yields the
// defaults; a present but malformed or invalid file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("general.update_interval_ms", d.General.UpdateIntervalMs)
	v.SetDefault("general.smart_interval_sec", d.General.SmartIntervalSec)
	v.SetDefault("general.slow_interval_sec", d.General.SlowIntervalSec)
	v.SetDefault("alerts.cooldown_minutes", d.Alerts.CooldownMinutes)
	v.SetDefault("devices.exclude", d.Devices.Exclude)
	v.SetDefault("notifications.notify_critical", d.Notifications.NotifyCritical)
	v.SetDefault("notifications.notify_warning", d.Notifications.NotifyWarning)
}
