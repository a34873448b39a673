package context

import (
	stdctx "context"
	"os/exec"
	"strings"
	"time"
)

const gitTimeout = 2 * time.Second

// gatherGitContext shells out to git the same way the teacher's own
// context-gathering paths prefer the real VCS binary over a Go
// reimplementation of its plumbing. Every failure degrades to "unknown"
// / empty rather than propagating an error (spec.md §4.8).
func gatherGitContext(root string) GitContext {
	branch := runGit(root, "rev-parse", "--abbrev-ref", "HEAD")
	if branch == "" {
		branch = "unknown"
	}

	commits := parseCommits(runGitMultiline(root, "log", "--no-merges", "-n", "5",
		"--pretty=format:%H%x1f%s%x1f%an%x1f%aI"))

	uncommitted := splitNonEmpty(runGitMultiline(root, "status", "--porcelain"))

	return GitContext{
		Branch:             branch,
		RecentCommits:      commits,
		UncommittedChanges: uncommitted,
	}
}

func runGit(root string, args ...string) string {
	out := runGitMultiline(root, args...)
	return strings.TrimSpace(out)
}

func runGitMultiline(root string, args ...string) string {
	ctx, cancel := stdctx.WithTimeout(stdctx.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

func parseCommits(raw string) []Commit {
	if raw == "" {
		return nil
	}
	var commits []Commit
	for _, line := range strings.Split(raw, "\n") {
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\x1f")
		if len(fields) != 4 {
			continue
		}
		commits = append(commits, Commit{
			Hash:         fields[0],
			Message:      fields[1],
			Author:       fields[2],
			ISOTimestamp: fields[3],
		})
	}
	return commits
}

func splitNonEmpty(raw string) []string {
	if raw == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(raw, "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
