package evaluators

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
	"github.com/Mindburn-Labs/aicert/pkg/llm"
)

const AccuracyName = "accuracy"

// ContextKeyReference holds the list of reference strings used to ground
// hallucination and consistency judgments.
const ContextKeyReference = "reference_context"

var (
	hallucinationCriterion = llm.Criterion{
		Name:        "hallucination",
		Description: "the output is free of fabricated facts not supported by the reference context",
		Direction:   llm.DirectionQuality,
	}
	consistencyCriterion = llm.Criterion{
		Name:        "factual_consistency",
		Description: "the output is factually consistent with the reference context",
		Direction:   llm.DirectionQuality,
	}
)

// AccuracyConfig is the typed configuration for the accuracy evaluator.
type AccuracyConfig struct {
	HallucinationThreshold      float64 `json:"hallucination_threshold"`
	FactualConsistencyThreshold float64 `json:"factual_consistency_threshold"`
	Model                       string  `json:"model,omitempty"`
	UseMockIfUnavailable        bool    `json:"use_mock_if_unavailable"`
}

// Accuracy wraps two LLM-judged criteria per interaction: a hallucination
// score and a factual consistency score. Both scores are higher-is-better.
type Accuracy struct {
	config AccuracyConfig
	judge  llm.Judge
	extras map[string]any
}

// NewAccuracy creates an uninitialized accuracy evaluator.
func NewAccuracy() *Accuracy { return &Accuracy{} }

// WithJudge injects the judge capability.
func (e *Accuracy) WithJudge(j llm.Judge) *Accuracy {
	e.judge = j
	return e
}

func (e *Accuracy) Name() string { return AccuracyName }

func (e *Accuracy) SupportedMetrics() []string {
	return []string{
		"accuracy.score",
		"accuracy.hallucination_score",
		"accuracy.factual_consistency",
	}
}

func (e *Accuracy) DefaultConfig() map[string]any {
	return map[string]any{
		"hallucination_threshold":       0.5,
		"factual_consistency_threshold": 0.6,
		"use_mock_if_unavailable":       true,
	}
}

func (e *Accuracy) Initialize(config map[string]any) error {
	extras, err := evaluator.DecodeConfig(config, &e.config)
	if err != nil {
		return err
	}
	e.extras = extras
	judge, err := resolveJudge(AccuracyName, config, e.judge)
	if err != nil {
		return err
	}
	e.judge = judge
	return nil
}

func (e *Accuracy) EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult {
	return evaluator.RunAsync(ctx, AccuracyName, func(ctx context.Context) evaluation.EvaluationResult {
		return e.Evaluate(ctx, c)
	})
}

func (e *Accuracy) Evaluate(ctx context.Context, c *contracts.Contract) evaluation.EvaluationResult {
	if len(c.Interactions) == 0 {
		return evaluation.NewEmptyResult(AccuracyName, "no interactions to evaluate")
	}

	reference := referenceContext(c)
	lowConfidence := len(reference) == 0

	interactionResults := make([]map[string]any, 0, len(c.Interactions))
	allPass := true
	worst := 1.0
	for _, it := range c.Interactions {
		hall, err := e.judge.Score(ctx, hallucinationCriterion, it.InputText, it.OutputText, reference)
		if err != nil {
			return evaluation.NewFailedResult(AccuracyName, err)
		}
		cons, err := e.judge.Score(ctx, consistencyCriterion, it.InputText, it.OutputText, reference)
		if err != nil {
			return evaluation.NewFailedResult(AccuracyName, err)
		}

		hasHallucination := hall.Score < e.config.HallucinationThreshold
		consistent := cons.Score >= e.config.FactualConsistencyThreshold
		passed := !hasHallucination && consistent
		if !passed {
			allPass = false
		}
		score := hall.Score
		if cons.Score < score {
			score = cons.Score
		}
		if score < worst {
			worst = score
		}

		interactionResults = append(interactionResults, map[string]any{
			"interaction_id":       it.InteractionID,
			"hallucination_score":  hall.Score,
			"factual_consistency":  cons.Score,
			"has_hallucination":    hasHallucination,
			"factually_consistent": consistent,
			"passed":               passed,
		})
	}

	details := map[string]any{
		"interaction_results": interactionResults,
		"low_confidence":      lowConfidence,
	}
	if lowConfidence {
		details["warning"] = "no reference_context provided; judgments are low-confidence"
	}

	reason := fmt.Sprintf("minimum interaction score %.3f", worst)
	if !allPass {
		reason = "one or more interactions failed the hallucination or consistency check"
	}

	result := evaluation.EvaluationResult{
		EvaluatorName: AccuracyName,
		Compliant:     allPass,
		Score:         worst,
		Reason:        reason,
		Details:       details,
		Timestamp:     timeNow(),
	}
	return result
}

func referenceContext(c *contracts.Contract) []string {
	raw, ok := c.Context[ContextKeyReference]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
