// Package evaluator defines the plug-in contract for compliance evaluators
// and the process-wide registry that routes required metric identifiers to
// the evaluators able to produce them.
package evaluator

import (
	"context"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// Common configuration keys recognized by every evaluator.
const (
	ConfigKeyThreshold    = "threshold"
	ConfigKeyMockFallback = "use_mock_if_unavailable"
)

// Evaluator is the uniform contract every compliance evaluator implements.
//
// Error discipline: Evaluate and EvaluateAsync never fail across the
// boundary. Unrecoverable conditions are reported as a non-compliant
// EvaluationResult carrying diagnostic detail.
type Evaluator interface {
	// Name is the stable evaluator identifier used as the result map key.
	Name() string

	// SupportedMetrics lists the metric identifiers this evaluator can
	// produce (e.g. "fairness.score"). Used by the registry for discovery.
	SupportedMetrics() []string

	// DefaultConfig returns the starting configuration, including at
	// minimum a "threshold" in [0,1].
	DefaultConfig() map[string]any

	// Initialize validates the merged configuration and prepares
	// dependencies. It fails with a dependency-kinded error when a
	// required external capability is absent and mock fallback is off.
	Initialize(config map[string]any) error

	// Evaluate runs the evaluator synchronously over a full contract.
	Evaluate(ctx context.Context, c *contracts.Contract) evaluation.EvaluationResult

	// EvaluateAsync runs the evaluation off the caller's goroutine. The
	// returned channel delivers exactly one result and is then closed.
	EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult
}

// RunAsync is the default EvaluateAsync implementation: it runs fn on a
// fresh goroutine and coerces panics into failed results so a misbehaving
// evaluator cannot take down the orchestrator.
func RunAsync(ctx context.Context, name string, fn func(context.Context) evaluation.EvaluationResult) <-chan evaluation.EvaluationResult {
	out := make(chan evaluation.EvaluationResult, 1)
	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				out <- evaluation.NewFailedResult(name, evaluation.Errorf(evaluation.KindInternal, name, "panic: %v", r))
			}
		}()
		out <- fn(ctx)
	}()
	return out
}
