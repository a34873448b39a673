// Package classifier implements the embedded CRUD classifier (spec.md
// §4.2): it turns a shell command into one of {Read, Create, Update,
// Delete} with a confidence score, backed by a lazily-loaded local model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Classification is one of the four CRUD classes a command maps to.
type Classification string

const (
	Read   Classification = "READ"
	Create Classification = "CREATE"
	Update Classification = "UPDATE"
	Delete Classification = "DELETE"
)

// classOrder is the scan order used to parse a raw model completion: the
// first keyword found wins (spec.md §4.2 — "scanning for the first
// occurrence of any of the four class keywords").
var classOrder = []Classification{Read, Create, Update, Delete}

// Result is the classifier's output for one command.
type Result struct {
	Classification Classification
	Confidence     float64
	Reasoning      string
}

var (
	ErrUnavailable = errors.New("classifier unavailable")
	ErrTimeout     = errors.New("classifier inference timed out")
)

// Engine produces a raw completion for the fixed CRUD rubric prompt. The
// production engine shells out to a local inference binary; RubricEngine
// below implements the same contract with a pure-Go keyword heuristic so
// classify() works with no model artifact present.
type Engine interface {
	// Complete returns the model's raw text completion for command, and a
	// best-effort confidence signal in [0,1] when the engine can produce
	// one (0 otherwise — the caller derives a heuristic confidence).
	Complete(ctx context.Context, command string) (text string, confidence float64, err error)
}

// Config controls classifier behavior.
type Config struct {
	// InferenceTimeout bounds every Classify call (spec.md §4.2, default 2s).
	InferenceTimeout time.Duration
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{InferenceTimeout: 2 * time.Second}
}

// Classifier is the public CRUD classifier. It is safe for concurrent use.
type Classifier struct {
	cfg    Config
	engine Engine
	pool   *Pool
}

// New constructs a Classifier. engine is typically a lazily-loading
// *ModelEngine; tests and minimal installs may pass a RubricEngine
// directly.
func New(cfg Config, engine Engine, pool *Pool) *Classifier {
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = DefaultConfig().InferenceTimeout
	}
	return &Classifier{cfg: cfg, engine: engine, pool: pool}
}

// Classify maps command to a CRUD classification. It never blocks past
// cfg.InferenceTimeout; on timeout it returns ErrTimeout and the caller
// (the permission decider) must fall back to Create per spec.md §7.
func (c *Classifier) Classify(ctx context.Context, command string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.InferenceTimeout)
	defer cancel()

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)

	run := func() {
		text, engineConfidence, err := c.engine.Complete(ctx, command)
		if err != nil {
			done <- outcome{err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
			return
		}
		class, matched := parseClassification(text)
		confidence := engineConfidence
		if confidence == 0 {
			confidence = heuristicConfidence(command, matched)
		}
		if !matched {
			slog.Warn("classifier output did not match any known class, defaulting to CREATE",
				"command", command, "raw_output", text)
		}
		done <- outcome{res: Result{Classification: class, Confidence: confidence, Reasoning: text}}
	}

	if c.pool != nil {
		c.pool.Submit(run)
	} else {
		go run()
	}

	select {
	case <-ctx.Done():
		return Result{}, ErrTimeout
	case o := <-done:
		return o.res, o.err
	}
}

// parseClassification scans text for the first occurrence (in classOrder)
// of a known keyword. matched is false when no keyword is found, in which
// case the conservative CREATE fallback is returned (spec.md §4.2, §8).
func parseClassification(text string) (class Classification, matched bool) {
	upper := strings.ToUpper(text)

	bestIdx := -1
	var best Classification
	for _, candidate := range classOrder {
		if idx := strings.Index(upper, string(candidate)); idx != -1 {
			if bestIdx == -1 || idx < bestIdx {
				bestIdx = idx
				best = candidate
			}
		}
	}
	if bestIdx == -1 {
		return Create, false
	}
	return best, true
}

// heuristicConfidence produces a deterministic, bounded-[0,1] confidence
// when the engine itself didn't supply one: an exact, unambiguous keyword
// match on a non-empty command scores high; an empty command or a
// fallback-to-CREATE parse scores low. Calibration is not a defined
// contract (spec.md §9 open question 2) — only the bound is tested.
func heuristicConfidence(command string, matched bool) float64 {
	if strings.TrimSpace(command) == "" {
		return 0.1
	}
	if !matched {
		return 0.3
	}
	return 0.75
}
