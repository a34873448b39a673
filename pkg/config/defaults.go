package config

import "time"

// Settings is the fully resolved configuration the daemon binary builds
// at startup: environment variables layered over built-in defaults, with
// an optional YAML overlay for values operators want to pin per-host.
//
// Field names track the environment variables spec.md §6 names; the
// mapping is handled entirely in loader.go so the rest of the module
// only ever sees this struct.
type Settings struct {
	// StateDir overrides the default "$HOME/.pilotd" state directory.
	// Corresponds to PILOTD_STATE_DIR.
	StateDir string `yaml:"state_dir,omitempty"`

	// AutoAllowRead, when true, lets the permission decider approve Read
	// classifications without a confirmation round trip.
	// Corresponds to ORCHESTRATOR_AUTO_ALLOW_READ.
	AutoAllowRead bool `yaml:"auto_allow_read"`

	// RequireCUDConfirmation forces Create/Update/Delete classifications
	// through ConfirmationRequired even when an allow-rule matches.
	// Corresponds to ORCHESTRATOR_REQUIRE_CUD_CONFIRMATION.
	RequireCUDConfirmation bool `yaml:"require_cud_confirmation"`

	// HooksEnabled gates whether the daemon exposes the hooks surface
	// (classify, permission-request, decisions) at all.
	// Corresponds to ORCHESTRATOR_HOOKS_ENABLED.
	HooksEnabled bool `yaml:"hooks_enabled"`

	// InferenceTimeout bounds a single classifier call (spec.md §5).
	// Corresponds to inference_timeout_ms, default 2000ms.
	InferenceTimeout time.Duration `yaml:"inference_timeout_ms,omitempty"`

	// CacheByteBudget bounds the response cache's total resident size.
	CacheByteBudget int64 `yaml:"cache_byte_budget,omitempty"`

	// CacheTTL bounds how long a cached response stays eligible for a hit.
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`

	// ContextCacheByteBudget bounds the context injector's LRU (C10).
	ContextCacheByteBudget int64 `yaml:"context_cache_byte_budget,omitempty"`

	// SidecarPort is the sidecar HTTP surface's fixed well-known port.
	// Corresponds to ORCHESTRATION_SIDECAR_PORT, default 3001.
	SidecarPort int `yaml:"sidecar_port,omitempty"`

	// SidecarEnabled gates whether the sidecar HTTP surface starts at all.
	// Corresponds to ORCHESTRATION_SIDECAR_ENABLED.
	SidecarEnabled bool `yaml:"sidecar_enabled"`

	// TokenTTL bounds how long an issued bearer token remains valid.
	// spec.md §4.10 fixes this at 24h; exposed here only so tests can
	// shrink it without waiting a day.
	TokenTTL time.Duration `yaml:"token_ttl,omitempty"`

	// OverrideRules rewrites requested models to cheaper equivalents
	// before the cache key is computed (spec.md §4.5).
	OverrideRules []OverrideRuleSetting `yaml:"override_rules,omitempty"`
}

// OverrideRuleSetting is the YAML/struct shape of one analytics.OverrideRule.
type OverrideRuleSetting struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Default returns the built-in Settings baseline every environment
// variable and YAML overlay value is layered on top of.
func Default() *Settings {
	return &Settings{
		AutoAllowRead:          true,
		RequireCUDConfirmation: true,
		HooksEnabled:           true,
		InferenceTimeout:       2 * time.Second,
		CacheByteBudget:        1 << 30,
		CacheTTL:               time.Hour,
		ContextCacheByteBudget: 1 << 30,
		SidecarPort:            3001,
		SidecarEnabled:         true,
		TokenTTL:               24 * time.Hour,
	}
}
