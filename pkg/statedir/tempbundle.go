package statedir

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TempBundle is the set of volatile files the daemon writes to the system
// temp directory on start so the host CLI's child (the coding assistant)
// can discover the effective configuration without talking to the daemon.
// Every path is prefixed ".pilotd-" so a stale-cleanup sweep can find them
// by glob without touching unrelated temp files.
type TempBundle struct {
	dir string
}

// NewTempBundle returns a handle rooted at os.TempDir().
func NewTempBundle() *TempBundle {
	return &TempBundle{dir: os.TempDir()}
}

func (b *TempBundle) path(name string) string {
	return filepath.Join(b.dir, tempBundlePrefix+name)
}

// SettingsPath returns the path of the sealed orchestrator-settings file.
func (b *TempBundle) SettingsPath() string { return b.path("orchestrator-settings") }

// AgentsPath returns the path of the sealed agents roster file.
func (b *TempBundle) AgentsPath() string { return b.path("agents-sealed") }

// RulesPath returns the path of the sealed permission rules file.
func (b *TempBundle) RulesPath() string { return b.path("rules-sealed") }

// HooksPath returns the path of the sealed hooks config file.
func (b *TempBundle) HooksPath() string { return b.path("hooks-sealed") }

// ChatTemplatePath returns the path of the embedded classifier's chat
// template, written once per model load.
func (b *TempBundle) ChatTemplatePath() string { return b.path("chat-template.json") }

// WriteJSON seals v as JSON at the given path with 0600 permissions
// (these files may carry auto-allow rules and should not be world-readable).
func (b *TempBundle) WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sealed file %q: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write sealed file %q: %w", path, err)
	}
	return nil
}

// Clean removes every file in the bundle. Called on daemon stop and as a
// best-effort step when start() fails.
func (b *TempBundle) Clean() {
	for _, p := range []string{
		b.SettingsPath(), b.AgentsPath(), b.RulesPath(), b.HooksPath(), b.ChatTemplatePath(),
	} {
		_ = os.Remove(p)
	}
}
