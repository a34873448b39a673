package context

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	maxRelevantFiles = 50
	maxFullReadBytes = 1 << 20   // 1 MiB
	truncateToBytes  = 512 << 10 // ~1/2 MiB
	truncationMarker = "\n... [truncated: file exceeds 1 MiB] ...\n"
)

// agentFileExtensions is the fixed agent_type -> allowed extension set
// mapping spec.md §4.8 names. Extensions are matched case-sensitively
// against filepath.Ext output, including the leading dot.
var agentFileExtensions = map[string][]string{
	"rust-specialist":       {".rs", ".toml"},
	"go-specialist":         {".go", ".mod", ".sum"},
	"python-specialist":     {".py", ".toml", ".txt", ".cfg"},
	"javascript-specialist": {".js", ".jsx", ".ts", ".tsx", ".json"},
	"flutter-specialist":    {".dart", ".yaml"},
	"chief-architect":       {".md", ".toml", ".yaml", ".json"},
}

// gatherRelevantFiles selects candidate files under structure whose
// extension matches agentType's allowed set, reading each in full up to
// 1 MiB and truncating larger files with an explicit marker. At most 50
// files are returned.
func gatherRelevantFiles(root string, structure ProjectStructure, agentType string) []RelevantFile {
	allowed := agentFileExtensions[agentType]
	if len(allowed) == 0 {
		return nil
	}
	allowedSet := make(map[string]bool, len(allowed))
	for _, ext := range allowed {
		allowedSet[ext] = true
	}

	var out []RelevantFile
	for _, rel := range structure.Files {
		if len(out) >= maxRelevantFiles {
			break
		}
		if !allowedSet[filepath.Ext(rel)] {
			continue
		}

		full := filepath.Join(root, rel)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}

		if info.Size() <= maxFullReadBytes {
			data, err := os.ReadFile(full)
			if err != nil {
				continue
			}
			out = append(out, RelevantFile{Path: rel, Content: string(data), SizeBytes: info.Size()})
			continue
		}

		data, err := readPrefix(full, truncateToBytes)
		if err != nil {
			continue
		}
		out = append(out, RelevantFile{
			Path:      rel,
			Content:   string(data) + truncationMarker,
			Truncated: true,
			SizeBytes: info.Size(),
		})
	}
	return out
}

func readPrefix(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && read == 0 {
		return nil, err
	}
	return buf[:read], nil
}

// detectProjectType inspects structure's top-level files for the marker
// files spec.md §4.8 names.
func detectProjectType(structure ProjectStructure) ProjectType {
	has := func(name string) bool {
		for _, f := range structure.Files {
			if f == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("Cargo.toml"):
		return ProjectRust
	case has("go.mod"):
		return ProjectGo
	case has("package.json"):
		return ProjectJavaScript
	case has("pyproject.toml") || hasAny(structure.Files, "requirements.txt"):
		return ProjectPython
	case hasSuffixAny(structure.Files, ".dart") && has("pubspec.yaml"):
		return ProjectFlutter
	default:
		return ProjectUnknown
	}
}

func hasAny(files []string, name string) bool {
	for _, f := range files {
		if f == name {
			return true
		}
	}
	return false
}

func hasSuffixAny(files []string, suffix string) bool {
	for _, f := range files {
		if strings.HasSuffix(f, suffix) {
			return true
		}
	}
	return false
}
