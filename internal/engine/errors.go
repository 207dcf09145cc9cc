package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors for the synthesis pipeline.
var (
	// ErrUnknownProfile indicates a voice profile id with no registry entry.
	ErrUnknownProfile = errors.New("unknown voice profile")

	// ErrModelMissing indicates a required voice model file is not on disk.
	ErrModelMissing = errors.New("voice model file missing")

	// ErrEngineUnavailable indicates the engine's availability probe failed.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrSynthesisFailed indicates a synthesis attempt failed.
	ErrSynthesisFailed = errors.New("synthesis failed")

	// ErrTimeout indicates a synthesis attempt exceeded its deadline.
	ErrTimeout = errors.New("synthesis timed out")

	// ErrAllEnginesFailed indicates every candidate engine failed for a line.
	ErrAllEnginesFailed = errors.New("all engines failed")
)

// Attempt records the outcome of one engine in a fallback walk.
type Attempt struct {
	Kind    Kind
	Skipped bool // availability probe returned false, synthesis never ran
	Err     error
}

func (a Attempt) String() string {
	if a.Skipped {
		return fmt.Sprintf("%s: skipped (unavailable)", a.Kind)
	}
	return fmt.Sprintf("%s: %v", a.Kind, a.Err)
}

// ChainError aggregates the per-engine failure history of an exhausted
// fallback walk. It unwraps to ErrAllEnginesFailed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	reasons := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		reasons[i] = a.String()
	}
	return fmt.Sprintf("all engines failed: [%s]", strings.Join(reasons, "; "))
}

func (e *ChainError) Unwrap() error {
	return ErrAllEnginesFailed
}
