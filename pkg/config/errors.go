package config

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidYAML indicates the YAML overlay failed to parse.
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// ErrInvalidValue indicates an environment variable or YAML field
	// carried a value that could not be parsed into its target type.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// LoadError wraps a configuration loading failure with the source it
// came from (an env var name or a YAML file path), matching the
// diagnostic shape the rest of this module uses for its own load paths.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load config from %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// NewLoadError builds a LoadError.
func NewLoadError(source string, err error) *LoadError {
	return &LoadError{Source: source, Err: err}
}
