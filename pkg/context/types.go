// Package context implements the context injector / knowledge broker's
// gather side (C10): project structure, relevant files, git state,
// previous outputs, and project metadata, behind a bounded LRU cache.
//
// The package name shadows the standard library's context package on
// purpose, the same way the rest of this module names packages after
// what they do; call sites alias the standard import as stdctx where
// both are needed in one file.
package context

import "time"

// ProjectStructure is the walked project tree.
type ProjectStructure struct {
	Root  string   `json:"root"`
	Files []string `json:"files"`
	Dirs  []string `json:"dirs"`
}

// RelevantFile is one file selected for an agent_type, possibly truncated.
type RelevantFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Truncated bool   `json:"truncated"`
	SizeBytes int64  `json:"size_bytes"`
}

// Commit is one non-merge git log entry.
type Commit struct {
	Hash         string `json:"hash"`
	Message      string `json:"message"`
	Author       string `json:"author"`
	ISOTimestamp string `json:"iso_timestamp"`
}

// GitContext is the VCS slice of the gathered context. Failures to invoke
// git never surface as errors: Branch becomes "unknown", the slices stay
// empty (spec.md §4.8).
type GitContext struct {
	Branch             string   `json:"branch"`
	RecentCommits      []Commit `json:"recent_commits"`
	UncommittedChanges []string `json:"uncommitted_changes"`
}

// ProjectType is one of the markers-file-detected project kinds.
type ProjectType string

const (
	ProjectRust       ProjectType = "rust"
	ProjectJavaScript ProjectType = "javascript"
	ProjectPython     ProjectType = "python"
	ProjectGo         ProjectType = "go"
	ProjectFlutter    ProjectType = "flutter"
	ProjectUnknown    ProjectType = "unknown"
)

// Metadata is the detected project type and parsed dependency list.
type Metadata struct {
	ProjectType  ProjectType `json:"project_type"`
	Dependencies []string    `json:"dependencies"`
}

// Context is what gather_context returns: everything C13 hands an agent
// at spawn time.
type Context struct {
	IssueID         string           `json:"issue_id"`
	AgentType       string           `json:"agent_type"`
	Structure       ProjectStructure `json:"structure"`
	RelevantFiles   []RelevantFile   `json:"relevant_files"`
	Git             GitContext       `json:"git"`
	PreviousOutputs []string         `json:"previous_outputs"`
	Metadata        Metadata         `json:"metadata"`
	GatheredAt      time.Time        `json:"gathered_at"`
}
