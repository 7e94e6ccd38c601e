// Package config loads rulec.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chriserin/rulec/internal/export"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "rulec.yaml"

// Config is the rulec project configuration.
type Config struct {
	Sources     []string       `yaml:"sources"`
	RulePattern string         `yaml:"rule_pattern"`
	Database    string         `yaml:"database"`
	Output      OutputConfig   `yaml:"output"`
	Defaults    DefaultsConfig `yaml:"defaults"`
	Messages    MessagesConfig `yaml:"messages"`
	Log         LogConfig      `yaml:"log"`
}

// OutputConfig names the exported artifacts. An empty path disables that artifact.
type OutputConfig struct {
	JSON string `yaml:"json"`
	CSV  string `yaml:"csv"`
}

// DefaultsConfig holds record values used when a rule does not set them.
// Pointers distinguish "unset" from zero values.
type DefaultsConfig struct {
	TenantID     string `yaml:"tenant_id"`
	Category     string `yaml:"category"`
	Priority     *int   `yaml:"priority"`
	Severity     *int   `yaml:"severity"`
	CooldownDays *int   `yaml:"cooldown_days"`
	MaxPerDay    *int   `yaml:"max_per_day"`
	Enabled      *bool  `yaml:"enabled"`
	Locale       string `yaml:"locale"`
}

// MessagesConfig configures message templating.
type MessagesConfig struct {
	Max      int    `yaml:"max"`
	Weight   int    `yaml:"weight"`
	Variant  string `yaml:"variant"`
	Fallback string `yaml:"fallback"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values.
const (
	DefaultSource   = "rules/*.yaml"
	DefaultDatabase = "rules/rulec.db"
	DefaultJSON     = "rules_ui_format.json"
	DefaultCSV      = "rules_ui_format.csv"
	DefaultLogLevel = "info"
	DefaultLogFmt   = "text"
)

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unset fields.
func ApplyDefaults(cfg *Config) {
	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{DefaultSource}
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.Output.JSON == "" && cfg.Output.CSV == "" {
		cfg.Output.JSON = DefaultJSON
		cfg.Output.CSV = DefaultCSV
	}

	std := export.StandardDefaults()
	d := &cfg.Defaults
	if d.TenantID == "" {
		d.TenantID = std.TenantID
	}
	if d.Category == "" {
		d.Category = std.Category
	}
	if d.Priority == nil {
		d.Priority = intPtr(std.Priority)
	}
	if d.Severity == nil {
		d.Severity = intPtr(std.Severity)
	}
	if d.CooldownDays == nil {
		d.CooldownDays = intPtr(std.CooldownDays)
	}
	if d.MaxPerDay == nil {
		d.MaxPerDay = intPtr(std.MaxPerDay)
	}
	if d.Enabled == nil {
		enabled := std.Enabled
		d.Enabled = &enabled
	}
	if d.Locale == "" {
		d.Locale = std.Locale
	}

	tmpl := export.DefaultTemplater()
	m := &cfg.Messages
	if m.Max == 0 {
		m.Max = tmpl.Max
	}
	if m.Weight == 0 {
		m.Weight = tmpl.Weight
	}
	if m.Variant == "" {
		m.Variant = tmpl.Variant
	}
	if m.Fallback == "" {
		m.Fallback = tmpl.Fallback
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFmt
	}
}

// Load reads, defaults and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads path when it exists and falls back to Default otherwise.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnvOverrides(cfg)
		return cfg, Validate(cfg)
	}
	return Load(path)
}

// Write saves cfg as YAML.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides applies RULEC_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RULEC_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("RULEC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RULEC_RULE_PATTERN"); v != "" {
		cfg.RulePattern = v
	}
}

// Validate checks field values.
func Validate(cfg *Config) error {
	var errs []error
	if cfg.RulePattern != "" {
		if _, err := regexp.Compile(cfg.RulePattern); err != nil {
			errs = append(errs, fmt.Errorf("rule_pattern: %w", err))
		}
	}
	for _, src := range cfg.Sources {
		if strings.TrimSpace(src) == "" {
			errs = append(errs, errors.New("sources: empty entry"))
		}
	}
	if cfg.Messages.Max < 0 {
		errs = append(errs, fmt.Errorf("messages.max: must not be negative, got %d", cfg.Messages.Max))
	}
	for _, v := range []struct {
		name string
		val  *int
	}{
		{"defaults.priority", cfg.Defaults.Priority},
		{"defaults.severity", cfg.Defaults.Severity},
		{"defaults.cooldown_days", cfg.Defaults.CooldownDays},
		{"defaults.max_per_day", cfg.Defaults.MaxPerDay},
	} {
		if v.val != nil && *v.val < 0 {
			errs = append(errs, fmt.Errorf("%s: must not be negative, got %d", v.name, *v.val))
		}
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", cfg.Log.Level))
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", cfg.Log.Format))
	}
	return errors.Join(errs...)
}

// Pattern returns the compiled rule pattern, or nil when none is set.
func (c *Config) Pattern() *regexp.Regexp {
	if c.RulePattern == "" {
		return nil
	}
	return regexp.MustCompile(c.RulePattern)
}

// RecordDefaults converts the defaults section for the exporter.
func (c *Config) RecordDefaults() export.Defaults {
	d := c.Defaults
	out := export.StandardDefaults()
	out.TenantID = d.TenantID
	out.Category = d.Category
	if d.Priority != nil {
		out.Priority = *d.Priority
	}
	if d.Severity != nil {
		out.Severity = *d.Severity
	}
	if d.CooldownDays != nil {
		out.CooldownDays = *d.CooldownDays
	}
	if d.MaxPerDay != nil {
		out.MaxPerDay = *d.MaxPerDay
	}
	if d.Enabled != nil {
		out.Enabled = *d.Enabled
	}
	out.Locale = d.Locale
	return out
}

// Templater builds the message templater from the messages section.
func (c *Config) Templater() *export.CandidateTemplater {
	return &export.CandidateTemplater{
		Max:      c.Messages.Max,
		Weight:   c.Messages.Weight,
		Variant:  c.Messages.Variant,
		Fallback: c.Messages.Fallback,
	}
}

func intPtr(i int) *int { return &i }
