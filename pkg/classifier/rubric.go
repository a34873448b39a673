package classifier

import (
	"context"
	"regexp"
)

// RubricEngine implements Engine directly in Go using the same mapping
// rules the embedded model is prompted with (spec.md §4.2): list/show/
// search → READ, new file/dir → CREATE, mutate existing → UPDATE, remove →
// DELETE. It is the engine used whenever no local inference binary is
// configured (PILOTD_CLASSIFIER_CMD unset) — keeping classify() usable
// offline and in tests, with the exact same documented contract as the
// model-backed path (bounded latency, CREATE fallback, confidence ∈[0,1]).
type RubricEngine struct{}

// NewRubricEngine returns a ready-to-use heuristic engine.
func NewRubricEngine() *RubricEngine { return &RubricEngine{} }

var (
	readVerbs = regexp.MustCompile(`(?i)^\s*(ls|cat|less|more|head|tail|grep|rg|find|which|file|stat|tree|du|df|ps|diff|git\s+(log|status|diff|show|branch)|echo)\b`)

	createVerbs = regexp.MustCompile(`(?i)^\s*(touch|mkdir)\b|>\s*[^>]`)

	updateVerbs = regexp.MustCompile(`(?i)^\s*(chmod|chown|sed\s+-i|mv|cp|truncate|tee)\b|>>`)

	deleteVerbs = regexp.MustCompile(`(?i)^\s*(rm|rmdir|unlink)\b`)
)

// Complete implements Engine. It always succeeds (never returns err) since
// it performs no I/O — a fixed local rubric cannot itself be "unavailable".
func (e *RubricEngine) Complete(_ context.Context, command string) (string, float64, error) {
	switch {
	case deleteVerbs.MatchString(command):
		return "DELETE", 0.8, nil
	case createVerbs.MatchString(command):
		return "CREATE", 0.7, nil
	case updateVerbs.MatchString(command):
		return "UPDATE", 0.7, nil
	case readVerbs.MatchString(command):
		return "READ", 0.8, nil
	default:
		// No rule matched — conservative fallback per spec.md §4.2/§8.
		return "CREATE", 0.2, nil
	}
}
