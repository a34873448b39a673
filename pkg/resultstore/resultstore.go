// Package resultstore implements the durable per-(issue, agent) artifact
// store (C9): filesystem-backed, atomic write-then-rename, idempotent
// overwrite, with cheap existence probes for agent-status derivation.
package resultstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store roots every result under <root>/results/<issue_id>/<agent_type>.json.
type Store struct {
	root string
}

// New returns a Store rooted at root (the daemon's configured storage
// directory).
func New(root string) *Store {
	return &Store{root: filepath.Join(root, "results")}
}

func (s *Store) path(issueID, agentType string) string {
	return filepath.Join(s.root, sanitize(issueID), sanitize(agentType)+".json")
}

// StoreResult durably writes result for (issueID, agentType). Writes go to
// a temp file in the same directory, then rename — rename is atomic on
// the same filesystem, so a reader never observes a partial file.
// Overwriting an existing result is idempotent.
func (s *Store) StoreResult(issueID, agentType string, result any) error {
	dir := filepath.Join(s.root, sanitize(issueID))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create result directory for issue %q: %w", issueID, err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result for %s/%s: %w", issueID, agentType, err)
	}

	target := s.path(issueID, agentType)
	tmp, err := os.CreateTemp(dir, sanitize(agentType)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp result file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp result file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp result file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename result into place for %s/%s: %w", issueID, agentType, err)
	}
	return nil
}

// HasResult reports whether a result has been stored for (issueID, agentType).
func (s *Store) HasResult(issueID, agentType string) bool {
	_, err := os.Stat(s.path(issueID, agentType))
	return err == nil
}

// LoadResult reads back a previously stored result into v.
func (s *Store) LoadResult(issueID, agentType string, v any) error {
	data, err := os.ReadFile(s.path(issueID, agentType))
	if err != nil {
		return fmt.Errorf("read result for %s/%s: %w", issueID, agentType, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal result for %s/%s: %w", issueID, agentType, err)
	}
	return nil
}

func sanitize(name string) string {
	clean := filepath.Base(filepath.Clean(name))
	if clean == "" || clean == "." || clean == string(filepath.Separator) {
		return "_"
	}
	return clean
}
