// Package config loads the tracker's operational configuration: environment
// -supplied scheduler/storage/voice-agent settings (§6), plus a declarative
// YAML defaults file for escalation locale templates and protocol text,
// merged over built-in defaults — grounded on the teacher's config.Initialize
// staging (load → merge → return ready-to-use Config).
package config

// Config is the umbrella configuration object returned by Initialize and
// threaded through every component at startup.
type Config struct {
	configDir  string
	Scheduler  *SchedulerConfig
	Storage    *StorageConfig
	Vapi       *VapiConfig
	Escalation *EscalationConfig
}

// ConfigDir returns the directory Initialize loaded the declarative YAML
// defaults from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// OrphanFallbackEnabled reports whether coordinates without a matching
// trip should fall back to the first active trip (spec.md §9 Open
// Question, resolved via COORDINATOR_ORPHAN_FALLBACK_ENABLED / the
// declarative defaults file).
func (c *Config) OrphanFallbackEnabled() bool {
	if c.Escalation == nil || c.Escalation.OrphanFallback == nil {
		return true
	}
	return *c.Escalation.OrphanFallback
}

// Locale resolves a locale's prompt template bundle, falling back to "es".
func (c *Config) Locale(code string) LocaleConfig {
	if c.Escalation != nil {
		if l, ok := c.Escalation.Locales[code]; ok {
			return l
		}
		if l, ok := c.Escalation.Locales["es"]; ok {
			return l
		}
	}
	return LocaleConfig{}
}
