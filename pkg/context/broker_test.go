package context

import (
	stdctx "context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGitRepo(t *testing.T, dir string) {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		require.NoError(t, cmd.Run())
	}
	run("init", "-q")
	run("commit", "--allow-empty", "-m", "init", "-q")
}

func TestFindProjectRoot_AscendsToMarkerFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644))
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	assert.Equal(t, root, findProjectRoot(sub))
}

func TestFindProjectRoot_FallsBackToStart(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir, findProjectRoot(dir))
}

func TestWalkProject_SkipsIgnoredDirectories(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "x.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.go"), []byte("package main"), 0o644))

	structure, err := walkProject(root)
	require.NoError(t, err)

	assert.Contains(t, structure.Files, filepath.Join("src", "main.go"))
	for _, f := range structure.Files {
		assert.NotContains(t, f, "node_modules")
	}
}

func TestGatherRelevantFiles_RespectsExtensionMapAndCap(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# readme"), 0o644))

	structure, err := walkProject(root)
	require.NoError(t, err)

	files := gatherRelevantFiles(root, structure, "go-specialist")
	require.Len(t, files, 1)
	assert.Equal(t, "main.go", files[0].Path)
	assert.False(t, files[0].Truncated)
}

func TestGatherRelevantFiles_TruncatesOversizeFiles(t *testing.T) {
	root := t.TempDir()
	big := make([]byte, maxFullReadBytes+1024)
	for i := range big {
		big[i] = 'a'
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.go"), big, 0o644))

	structure, err := walkProject(root)
	require.NoError(t, err)

	files := gatherRelevantFiles(root, structure, "go-specialist")
	require.Len(t, files, 1)
	assert.True(t, files[0].Truncated)
	assert.Contains(t, files[0].Content, "truncated")
	assert.LessOrEqual(t, len(files[0].Content), truncateToBytes+len(truncationMarker)+16)
}

func TestDetectProjectType(t *testing.T) {
	cases := map[string]ProjectType{
		"Cargo.toml":     ProjectRust,
		"go.mod":         ProjectGo,
		"package.json":   ProjectJavaScript,
		"pyproject.toml": ProjectPython,
	}
	for marker, want := range cases {
		assert.Equal(t, want, detectProjectType(ProjectStructure{Files: []string{marker}}), marker)
	}
	assert.Equal(t, ProjectUnknown, detectProjectType(ProjectStructure{}))
}

func TestGatherGitContext_NoRepoYieldsUnknown(t *testing.T) {
	dir := t.TempDir()
	git := gatherGitContext(dir)
	assert.Equal(t, "unknown", git.Branch)
	assert.Empty(t, git.RecentCommits)
}

func TestGatherGitContext_WithRepo(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	initGitRepo(t, dir)

	git := gatherGitContext(dir)
	assert.NotEqual(t, "unknown", git.Branch)
	require.Len(t, git.RecentCommits, 1)
	assert.Equal(t, "init", git.RecentCommits[0].Message)
}

func TestLRUCache_GetAfterInsert(t *testing.T) {
	c := newLRUCache(DefaultCacheByteBudget)
	ctx := Context{IssueID: "i1", AgentType: "go-specialist"}
	c.insert("i1", "go-specialist", ctx)

	got, ok := c.get("i1", "go-specialist")
	require.True(t, ok)
	assert.Equal(t, "i1", got.IssueID)
}

func TestLRUCache_ClearRemovesOnlyMatchingIssue(t *testing.T) {
	c := newLRUCache(DefaultCacheByteBudget)
	c.insert("i1", "go-specialist", Context{IssueID: "i1"})
	c.insert("i2", "go-specialist", Context{IssueID: "i2"})

	c.clear("i1")

	_, ok := c.get("i1", "go-specialist")
	assert.False(t, ok)
	_, ok = c.get("i2", "go-specialist")
	assert.True(t, ok)
}

func TestLRUCache_EvictsLeastRecentlyAccessedOnBudgetExceed(t *testing.T) {
	c := newLRUCache(1) // forces eviction on every insert beyond the first
	c.insert("i1", "a", Context{IssueID: "i1"})
	c.insert("i2", "a", Context{IssueID: "i2"})

	_, ok := c.get("i1", "a")
	assert.False(t, ok)
	_, ok = c.get("i2", "a")
	assert.True(t, ok)
}

func TestBroker_GatherContext_CachesResult(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	b := NewBroker(nil)
	first, err := b.GatherContext(stdctx.Background(), root, "issue-1", "go-specialist")
	require.NoError(t, err)
	assert.Equal(t, "issue-1", first.IssueID)
	assert.Empty(t, first.PreviousOutputs)

	second, err := b.GatherContext(stdctx.Background(), root, "issue-1", "go-specialist")
	require.NoError(t, err)
	assert.Equal(t, first.GatheredAt, second.GatheredAt, "second call should be served from cache, not re-gathered")
}

type fakeOutputsClient struct {
	outputs []string
	err     error
}

func (f *fakeOutputsClient) SearchImplementationOutputs(stdctx.Context, string) ([]string, error) {
	return f.outputs, f.err
}

func TestBroker_GatherContext_UsesPreviousOutputsClient(t *testing.T) {
	root := t.TempDir()
	b := NewBroker(&fakeOutputsClient{outputs: []string{"did the thing"}})

	got, err := b.GatherContext(stdctx.Background(), root, "issue-2", "go-specialist")
	require.NoError(t, err)
	assert.Equal(t, []string{"did the thing"}, got.PreviousOutputs)
}

func TestBroker_GatherContext_OutputsFailureDegradesSilently(t *testing.T) {
	root := t.TempDir()
	b := NewBroker(&fakeOutputsClient{err: assert.AnError})

	got, err := b.GatherContext(stdctx.Background(), root, "issue-3", "go-specialist")
	require.NoError(t, err)
	assert.Empty(t, got.PreviousOutputs)
}
