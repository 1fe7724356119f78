// Package llm provides the LLM-judged criterion capability used by the
// evaluators. The external model is treated as a capability contract: a
// Judge scores a named criterion over an interaction and returns a value
// in [0,1] with a short rationale.
package llm

import (
	"context"
	"errors"
)

// ErrUnavailable signals that no judge capability is configured.
var ErrUnavailable = errors.New("llm: judge capability unavailable")

// Criterion identifies a judged property of an interaction. Score semantics
// follow the criterion's Direction: for DirectionAbsence, 1.0 means the
// property is fully absent.
type Criterion struct {
	Name        string
	Description string
	Direction   Direction
}

// Direction declares what a high score means for a criterion.
type Direction string

const (
	// DirectionQuality: higher score means better quality (e.g. factual
	// consistency).
	DirectionQuality Direction = "quality"
	// DirectionAbsence: higher score means the (bad) property is absent
	// (e.g. toxicity, manipulation).
	DirectionAbsence Direction = "absence"
)

// Judgment is the result of scoring one criterion over one interaction.
type Judgment struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"` // [0,1]
	Rationale string  `json:"rationale,omitempty"`
}

// Judge scores criteria over interaction text. Implementations must be safe
// for concurrent use.
type Judge interface {
	// Score evaluates one criterion. Context may carry supporting reference
	// material for grounding (accuracy checks); pass nil when not needed.
	Score(ctx context.Context, criterion Criterion, input, output string, reference []string) (Judgment, error)

	// Available reports whether the backing capability is usable.
	Available() bool
}
