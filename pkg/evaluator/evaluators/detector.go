package evaluators

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
	"github.com/Mindburn-Labs/aicert/pkg/llm"
)

// detectorSpec is one LLM-judged boolean detector. The judge reports an
// absence score; the detector fires when the worst per-interaction score
// falls below its threshold.
type detectorSpec struct {
	criterion llm.Criterion
	threshold float64 // default; overridable via config "<name>_threshold"
}

// detection is the evaluated state of one detector over a contract.
type detection struct {
	name      string
	score     float64 // worst (minimum) absence score across interactions
	threshold float64
	detected  bool
	rationale string
}

// detectorEvaluator is the shared engine behind the prohibited-practice
// evaluators (biometric categorization, manipulation, vulnerability
// exploitation, social scoring, emotion recognition). Concrete evaluators
// supply their detector set and a verdict function.
type detectorEvaluator struct {
	name      string
	metrics   []string
	detectors []detectorSpec
	// verdict decides compliance and the exposed score from the detector
	// states, in declaration order.
	verdict func([]detection) (bool, float64, string)

	judge      llm.Judge
	thresholds map[string]float64
	extras     map[string]any
}

func (d *detectorEvaluator) Name() string               { return d.name }
func (d *detectorEvaluator) SupportedMetrics() []string { return d.metrics }

func (d *detectorEvaluator) DefaultConfig() map[string]any {
	cfg := map[string]any{"use_mock_if_unavailable": true}
	for _, spec := range d.detectors {
		cfg[spec.criterion.Name+"_threshold"] = spec.threshold
	}
	return cfg
}

// WithJudge injects the judge capability.
func (d *detectorEvaluator) WithJudge(j llm.Judge) *detectorEvaluator {
	d.judge = j
	return d
}

func (d *detectorEvaluator) Initialize(config map[string]any) error {
	d.thresholds = make(map[string]float64, len(d.detectors))
	for _, spec := range d.detectors {
		key := spec.criterion.Name + "_threshold"
		threshold := spec.threshold
		if raw, ok := config[key]; ok {
			if f, ok := toFloat(raw); ok {
				if f < 0 || f > 1 {
					return evaluation.Errorf(evaluation.KindValidation, d.name, "%s %v outside [0,1]", key, f)
				}
				threshold = f
			}
		}
		d.thresholds[spec.criterion.Name] = threshold
	}

	extras := make(map[string]any)
	for k, v := range config {
		if k == evaluator.ConfigKeyMockFallback || k == "model" {
			continue
		}
		if _, ok := d.thresholds[trimSuffix(k, "_threshold")]; ok {
			continue
		}
		extras[k] = v
	}
	d.extras = extras

	judge, err := resolveJudge(d.name, config, d.judge)
	if err != nil {
		return err
	}
	d.judge = judge
	return nil
}

func (d *detectorEvaluator) EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult {
	return evaluator.RunAsync(ctx, d.name, func(ctx context.Context) evaluation.EvaluationResult {
		return d.Evaluate(ctx, c)
	})
}

func (d *detectorEvaluator) Evaluate(ctx context.Context, c *contracts.Contract) evaluation.EvaluationResult {
	if len(c.Interactions) == 0 {
		return evaluation.NewEmptyResult(d.name, "no interactions to evaluate")
	}
	if d.judge == nil || !d.judge.Available() {
		return evaluation.NewDependencyUnavailableResult(d.name, "detector judge")
	}

	states := make([]detection, 0, len(d.detectors))
	detectorDetails := make(map[string]any, len(d.detectors))
	for _, spec := range d.detectors {
		threshold := d.thresholds[spec.criterion.Name]
		worst := 1.0
		rationale := ""
		for _, it := range c.Interactions {
			judgment, err := d.judge.Score(ctx, spec.criterion, it.InputText, it.OutputText, nil)
			if err != nil {
				return evaluation.NewFailedResult(d.name, err)
			}
			if judgment.Score < worst {
				worst = judgment.Score
				rationale = judgment.Rationale
			}
		}
		state := detection{
			name:      spec.criterion.Name,
			score:     worst,
			threshold: threshold,
			detected:  worst < threshold,
			rationale: rationale,
		}
		states = append(states, state)
		detectorDetails[spec.criterion.Name] = map[string]any{
			"score":     state.score,
			"threshold": state.threshold,
			"detected":  state.detected,
			"rationale": state.rationale,
		}
	}

	compliant, score, reason := d.verdict(states)
	return evaluation.EvaluationResult{
		EvaluatorName: d.name,
		Compliant:     compliant,
		Score:         score,
		Reason:        reason,
		Details:       map[string]any{"detectors": detectorDetails},
		Timestamp:     timeNow(),
	}
}

// noneDetected is the common verdict: compliant iff no detector fired.
func noneDetected(aggregate func([]detection) float64) func([]detection) (bool, float64, string) {
	return func(states []detection) (bool, float64, string) {
		var fired []string
		for _, s := range states {
			if s.detected {
				fired = append(fired, s.name)
			}
		}
		score := aggregate(states)
		if len(fired) == 0 {
			return true, score, "no prohibited signal detected"
		}
		return false, score, fmt.Sprintf("detected: %s", joinNames(fired))
	}
}

func meanScore(states []detection) float64 {
	if len(states) == 0 {
		return 0
	}
	var sum float64
	for _, s := range states {
		sum += s.score
	}
	return sum / float64(len(states))
}

func minScore(states []detection) float64 {
	min := 1.0
	for _, s := range states {
		if s.score < min {
			min = s.score
		}
	}
	return min
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	}
	return 0, false
}

func trimSuffix(s, suffix string) string {
	if len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix {
		return s[:len(s)-len(suffix)]
	}
	return s
}
