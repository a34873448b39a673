package context

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// gatherMetadata detects the project type and parses its dependency
// manifest per-language (spec.md §4.8).
func gatherMetadata(root string, projectType ProjectType) Metadata {
	meta := Metadata{ProjectType: projectType}
	switch projectType {
	case ProjectRust:
		meta.Dependencies = parseCargoToml(filepath.Join(root, "Cargo.toml"))
	case ProjectJavaScript:
		meta.Dependencies = parsePackageJSON(filepath.Join(root, "package.json"))
	case ProjectPython:
		meta.Dependencies = parsePythonDeps(root)
	case ProjectGo:
		meta.Dependencies = parseGoMod(filepath.Join(root, "go.mod"))
	case ProjectFlutter:
		meta.Dependencies = parsePubspecYAML(filepath.Join(root, "pubspec.yaml"))
	}
	return meta
}

func parseCargoToml(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc struct {
		Dependencies map[string]any `toml:"dependencies"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return sortedKeys(doc.Dependencies)
}

func parsePackageJSON(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil
	}
	var deps []string
	for name := range doc.Dependencies {
		deps = append(deps, name)
	}
	for name := range doc.DevDependencies {
		deps = append(deps, name)
	}
	return deps
}

func parsePythonDeps(root string) []string {
	if deps := parsePyprojectToml(filepath.Join(root, "pyproject.toml")); deps != nil {
		return deps
	}
	return parseRequirementsTxt(filepath.Join(root, "requirements.txt"))
}

func parsePyprojectToml(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	var deps []string
	for _, spec := range doc.Project.Dependencies {
		deps = append(deps, firstToken(spec))
	}
	return deps
}

func parseRequirementsTxt(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var deps []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		deps = append(deps, firstToken(line))
	}
	return deps
}

// firstToken strips a requirement specifier down to the bare package name
// (e.g. "requests>=2.0" -> "requests").
func firstToken(spec string) string {
	for i, r := range spec {
		if strings.ContainsRune("<>=!~; ", r) {
			return spec[:i]
		}
	}
	return spec
}

func parseGoMod(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var deps []string
	inBlock := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, "require ("):
			inBlock = true
		case inBlock && line == ")":
			inBlock = false
		case inBlock:
			fields := strings.Fields(line)
			if len(fields) >= 1 {
				deps = append(deps, fields[0])
			}
		case strings.HasPrefix(line, "require ") && !strings.HasSuffix(line, "("):
			fields := strings.Fields(strings.TrimPrefix(line, "require "))
			if len(fields) >= 1 {
				deps = append(deps, fields[0])
			}
		}
	}
	return deps
}

func parsePubspecYAML(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var deps []string
	inDeps := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "dependencies:" {
			inDeps = true
			continue
		}
		if inDeps {
			if trimmed == "" || !strings.HasPrefix(line, "  ") {
				inDeps = false
				continue
			}
			if strings.HasSuffix(trimmed, ":") {
				deps = append(deps, strings.TrimSuffix(trimmed, ":"))
			}
		}
	}
	return deps
}

func sortedKeys(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
