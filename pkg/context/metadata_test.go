package context

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCargoToml(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Cargo.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[package]
name = "x"

[dependencies]
serde = "1.0"
tokio = { version = "1", features = ["full"] }
`), 0o644))

	deps := parseCargoToml(path)
	assert.ElementsMatch(t, []string{"serde", "tokio"}, deps)
}

func TestParsePackageJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"dependencies": {"react": "^18.0.0"},
		"devDependencies": {"typescript": "^5.0.0"}
	}`), 0o644))

	deps := parsePackageJSON(path)
	assert.ElementsMatch(t, []string{"react", "typescript"}, deps)
}

func TestParseRequirementsTxt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "requirements.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nrequests>=2.0\nflask==2.1.0\n\nnumpy\n"), 0o644))

	deps := parseRequirementsTxt(path)
	assert.Equal(t, []string{"requests", "flask", "numpy"}, deps)
}

func TestParseGoMod(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.mod")
	require.NoError(t, os.WriteFile(path, []byte(`module example.com/x

go 1.25

require (
	github.com/foo/bar v1.0.0
	github.com/baz/qux v2.0.0
)
`), 0o644))

	deps := parseGoMod(path)
	assert.Equal(t, []string{"github.com/foo/bar", "github.com/baz/qux"}, deps)
}

func TestGatherMetadata_UnknownProjectHasNoDeps(t *testing.T) {
	meta := gatherMetadata(t.TempDir(), ProjectUnknown)
	assert.Empty(t, meta.Dependencies)
	assert.Equal(t, ProjectUnknown, meta.ProjectType)
}
