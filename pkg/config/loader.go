// Package config resolves pilotd's runtime settings from the environment
// variables the host CLI sets (spec.md §6), an optional YAML overlay file,
// and a built-in default baseline — in that order of increasing priority.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load resolves Settings for one daemon process. envFile, if non-empty,
// is loaded into the process environment first (the same .env-in-config-dir
// convention the host CLI uses); overlayPath, if non-empty, is parsed as
// a YAML overlay and merged over the environment-derived settings with
// mergo — non-zero overlay fields win.
func Load(envFile, overlayPath string) (*Settings, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			slog.Warn("could not load .env file, continuing with existing environment", "path", envFile, "error", err)
		}
	}

	cfg := Default()
	applyEnv(cfg)

	if overlayPath != "" {
		overlay, err := loadOverlay(overlayPath)
		if err != nil {
			return nil, err
		}
		if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge YAML overlay %s: %w", overlayPath, err)
		}
	}

	return cfg, nil
}

func loadOverlay(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var overlay Settings
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidYAML, path, err)
	}
	return &overlay, nil
}

// applyEnv layers the environment variables spec.md §6 names over cfg's
// built-in defaults, in place. Malformed values are logged and ignored so
// a typo'd env var degrades to the default rather than failing startup.
func applyEnv(cfg *Settings) {
	if v := os.Getenv("PILOTD_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	applyBool("ORCHESTRATOR_AUTO_ALLOW_READ", &cfg.AutoAllowRead)
	applyBool("ORCHESTRATOR_REQUIRE_CUD_CONFIRMATION", &cfg.RequireCUDConfirmation)
	applyBool("ORCHESTRATOR_HOOKS_ENABLED", &cfg.HooksEnabled)
	applyBool("ORCHESTRATION_SIDECAR_ENABLED", &cfg.SidecarEnabled)

	if v := os.Getenv("inference_timeout_ms"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.InferenceTimeout = time.Duration(ms) * time.Millisecond
		} else {
			slog.Warn("invalid inference_timeout_ms, keeping default", "value", v)
		}
	}
	if v := os.Getenv("ORCHESTRATION_SIDECAR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.SidecarPort = port
		} else {
			slog.Warn("invalid ORCHESTRATION_SIDECAR_PORT, keeping default", "value", v)
		}
	}
}

func applyBool(envVar string, dst *bool) {
	v := os.Getenv(envVar)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("invalid boolean env var, keeping default", "var", envVar, "value", v)
		return
	}
	*dst = b
}

// DefaultEnvFile returns the conventional ".env" path next to dir (the
// config directory the host CLI points at), matching the teacher's
// filepath.Join(configDir, ".env") convention.
func DefaultEnvFile(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, ".env")
}
