// Package statedir resolves and owns the daemon's per-user state directory
// and the volatile temp-file bundle the host CLI and the coding assistant
// read on every session.
package statedir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	dirName        = ".pilotd"
	tempBundlePrefix = ".pilotd-"
)

// Dir is a resolved state directory with typed accessors for every file
// spec.md §3/§6 names. Callers never hand-build paths themselves.
type Dir struct {
	root string
}

// Open resolves the state directory, creating it (and the models/knowledge
// subdirectories) if it does not exist yet. If override is non-empty it is
// used verbatim (PILOTD_STATE_DIR); otherwise root falls back to
// "$HOME/.pilotd".
func Open(override string) (*Dir, error) {
	root := override
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		root = filepath.Join(home, dirName)
	}

	d := &Dir{root: root}
	for _, sub := range []string{"", "models", "knowledge"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o700); err != nil {
			return nil, fmt.Errorf("create state subdirectory %q: %w", sub, err)
		}
	}
	return d, nil
}

// Root returns the state directory's root path.
func (d *Dir) Root() string { return d.root }

// PidFile returns the path to daemon.pid.
func (d *Dir) PidFile() string { return filepath.Join(d.root, "daemon.pid") }

// LockFile returns the path to daemon.lock. Always a distinct path from
// PidFile per spec.md §3.
func (d *Dir) LockFile() string { return filepath.Join(d.root, "daemon.lock") }

// AuditDB returns the path to decisions.db.
func (d *Dir) AuditDB() string { return filepath.Join(d.root, "decisions.db") }

// TokensFile returns the path to tokens.json.
func (d *Dir) TokensFile() string { return filepath.Join(d.root, "tokens.json") }

// KnowledgeDB returns the path to the per-repository knowledge database.
func (d *Dir) KnowledgeDB(repo string) string {
	return filepath.Join(d.root, "knowledge", sanitizeRepoName(repo), "knowledge.db")
}

// ModelFile returns the path to a cached embedded model artifact.
func (d *Dir) ModelFile(name string) string {
	return filepath.Join(d.root, "models", name+".gguf")
}

// sanitizeRepoName keeps path traversal out of a caller-supplied repo name.
func sanitizeRepoName(repo string) string {
	clean := filepath.Base(filepath.Clean(repo))
	if clean == "" || clean == "." || clean == string(filepath.Separator) {
		return "default"
	}
	return clean
}
