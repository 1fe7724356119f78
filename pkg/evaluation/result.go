// Package evaluation defines the uniform result and report types shared by
// every evaluator, the orchestrator, and the policy pipeline.
//
// An EvaluationResult is the single verdict an evaluator produces for a
// contract. Scores are always normalized to [0,1] with higher meaning better;
// evaluators that detect a bad signal (toxicity, manipulation) invert
// internally before reporting.
package evaluation

import (
	"time"
)

// ReportFormat identifies a report serialization.
type ReportFormat string

const (
	FormatJSON     ReportFormat = "json"
	FormatMarkdown ReportFormat = "markdown"
	FormatPDF      ReportFormat = "pdf"
	FormatHTML     ReportFormat = "html"
)

// EvaluationResult is the verdict of one evaluator over one contract.
type EvaluationResult struct {
	EvaluatorName string         `json:"evaluator_name"`
	Compliant     bool           `json:"compliant"`
	Score         float64        `json:"score"` // [0,1], higher is better
	Threshold     *float64       `json:"threshold,omitempty"`
	Reason        string         `json:"reason"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Report is serialized evaluation output in one of the supported formats.
type Report struct {
	Content     []byte         `json:"content"`
	Format      ReportFormat   `json:"format"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Threshold is a convenience for building the optional threshold pointer.
func Threshold(v float64) *float64 { return &v }

// NewResult builds a result with the compliance verdict derived from the
// score-vs-threshold convention. The score is clamped to [0,1] before the
// comparison so the stored score and the verdict always agree.
func NewResult(name string, score, threshold float64, reason string, details map[string]any) EvaluationResult {
	score = clamp01(score)
	return EvaluationResult{
		EvaluatorName: name,
		Compliant:     score >= threshold,
		Score:         score,
		Threshold:     Threshold(threshold),
		Reason:        reason,
		Details:       details,
		Timestamp:     time.Now().UTC(),
	}
}

// NewFailedResult converts an internal evaluator error into the mandated
// non-compliant result. Evaluators never propagate errors across the
// orchestrator boundary.
func NewFailedResult(name string, err error) EvaluationResult {
	return EvaluationResult{
		EvaluatorName: name,
		Compliant:     false,
		Score:         0,
		Reason:        "evaluation failed: " + err.Error(),
		Details:       map[string]any{"error": err.Error()},
		Timestamp:     time.Now().UTC(),
	}
}

// NewDependencyUnavailableResult reports a missing external capability in
// strict mode (mock fallback disabled).
func NewDependencyUnavailableResult(name, capability string) EvaluationResult {
	return EvaluationResult{
		EvaluatorName: name,
		Compliant:     false,
		Score:         0,
		Reason:        "required capability unavailable: " + capability,
		Details: map[string]any{
			"dependency_unavailable": true,
			"capability":             capability,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEmptyResult reports that the evaluator had no material to score
// (no interactions, missing documentation).
func NewEmptyResult(name, reason string) EvaluationResult {
	return EvaluationResult{
		EvaluatorName: name,
		Compliant:     false,
		Score:         0,
		Reason:        reason,
		Details:       map[string]any{"empty": true},
		Timestamp:     time.Now().UTC(),
	}
}

// NewTimeoutResult fills an abandoned evaluator's slot after the pipeline
// deadline expires.
func NewTimeoutResult(name string) EvaluationResult {
	return EvaluationResult{
		EvaluatorName: name,
		Compliant:     false,
		Score:         0,
		Reason:        "evaluation timed out",
		Details:       map[string]any{"timeout": true},
		Timestamp:     time.Now().UTC(),
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
