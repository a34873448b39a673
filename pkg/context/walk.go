package context

import (
	"os"
	"path/filepath"
	"sync"
	"time"
)

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "target": true, "dist": true,
	"build": true, ".venv": true, "__pycache__": true, ".next": true,
	"vendor": true,
}

var rootMarkers = []string{".git", "Cargo.toml", "package.json", "pyproject.toml"}

// findProjectRoot ascends from start looking for a root marker, falling
// back to start itself (spec.md §4.8: "falling back to CWD").
func findProjectRoot(start string) string {
	dir := start
	for {
		for _, marker := range rootMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

type walkMemo struct {
	structure ProjectStructure
	expiresAt time.Time
}

// walkCache memoizes project-structure walks per root for at least 60 s
// so one gather never re-walks the tree more than once (spec.md §4.8
// performance floor).
type walkCache struct {
	mu    sync.Mutex
	memos map[string]walkMemo
}

func newWalkCache() *walkCache {
	return &walkCache{memos: make(map[string]walkMemo)}
}

const walkMemoTTL = 60 * time.Second

func (c *walkCache) structureFor(root string) (ProjectStructure, error) {
	c.mu.Lock()
	if memo, ok := c.memos[root]; ok && time.Now().Before(memo.expiresAt) {
		c.mu.Unlock()
		return memo.structure, nil
	}
	c.mu.Unlock()

	structure, err := walkProject(root)
	if err != nil {
		return ProjectStructure{}, err
	}

	c.mu.Lock()
	c.memos[root] = walkMemo{structure: structure, expiresAt: time.Now().Add(walkMemoTTL)}
	c.mu.Unlock()

	return structure, nil
}

func walkProject(root string) (ProjectStructure, error) {
	structure := ProjectStructure{Root: root}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if path == root {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			structure.Dirs = append(structure.Dirs, rel)
			return nil
		}
		structure.Files = append(structure.Files, rel)
		return nil
	})
	if err != nil {
		return ProjectStructure{}, err
	}
	return structure, nil
}
