package evaluators

import (
	"context"
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
)

const ModelCardName = "model_card"

// cardSection is one required model card section with its subsections,
// aggregation weight, and the EU AI Act reference cited in findings.
type cardSection struct {
	name        string
	weight      float64
	subsections []string
	actRef      string
}

var cardSections = []cardSection{
	{"model_details", 0.15, []string{"description", "version", "architecture", "license"}, "EU AI Act Art. 11, Annex IV(1)"},
	{"intended_use", 0.15, []string{"primary_uses", "out_of_scope_uses", "users"}, "EU AI Act Art. 13(3)(b)"},
	{"factors", 0.10, []string{"relevant_factors", "evaluation_factors"}, "EU AI Act Annex IV(2)(d)"},
	{"metrics", 0.10, []string{"performance_measures", "decision_thresholds"}, "EU AI Act Art. 15(1)"},
	{"evaluation_data", 0.10, []string{"datasets", "motivation", "preprocessing"}, "EU AI Act Annex IV(2)(g)"},
	{"training_data", 0.10, []string{"datasets", "preprocessing"}, "EU AI Act Art. 10(2)"},
	{"quantitative_analyses", 0.10, []string{"unitary_results", "intersectional_results"}, "EU AI Act Art. 15(2)"},
	{"ethical_considerations", 0.10, []string{"risks", "mitigations", "sensitive_data"}, "EU AI Act Art. 9(2)"},
	{"caveats_recommendations", 0.10, []string{"caveats", "recommendations"}, "EU AI Act Art. 13(3)(d)"},
}

// ContentQualityThresholds maps content length (runes) to quality tiers.
type ContentQualityThresholds struct {
	Minimal       int `json:"minimal"`
	Partial       int `json:"partial"`
	Comprehensive int `json:"comprehensive"`
}

// ModelCardConfig is the typed configuration for the documentation
// evaluator.
type ModelCardConfig struct {
	ComplianceThreshold      float64                  `json:"compliance_threshold"`
	SectionWeights           map[string]float64       `json:"section_weights,omitempty"`
	ContentQualityThresholds ContentQualityThresholds `json:"content_quality_thresholds"`
}

// Subsection quality scores by tier.
const (
	qualityMissing       = 0.0
	qualityMinimal       = 0.3
	qualityPartial       = 0.7
	qualityComprehensive = 1.0
)

// ModelCard scores a structured model_card object against the nine required
// documentation sections.
type ModelCard struct {
	config ModelCardConfig
	extras map[string]any
}

// NewModelCard creates an uninitialized documentation evaluator.
func NewModelCard() *ModelCard { return &ModelCard{} }

func (e *ModelCard) Name() string { return ModelCardName }

func (e *ModelCard) SupportedMetrics() []string {
	return []string{
		"model_card.score",
		"model_card.missing_sections",
	}
}

func (e *ModelCard) DefaultConfig() map[string]any {
	return map[string]any{
		"compliance_threshold": 0.7,
		"content_quality_thresholds": map[string]any{
			"minimal":       1,
			"partial":       100,
			"comprehensive": 300,
		},
	}
}

func (e *ModelCard) Initialize(config map[string]any) error {
	extras, err := evaluator.DecodeConfig(config, &e.config)
	if err != nil {
		return err
	}
	if e.config.ComplianceThreshold < 0 || e.config.ComplianceThreshold > 1 {
		return evaluation.Errorf(evaluation.KindValidation, ModelCardName, "compliance_threshold %v outside [0,1]", e.config.ComplianceThreshold)
	}
	e.extras = extras
	return nil
}

func (e *ModelCard) EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult {
	return evaluator.RunAsync(ctx, ModelCardName, func(ctx context.Context) evaluation.EvaluationResult {
		return e.Evaluate(ctx, c)
	})
}

func (e *ModelCard) Evaluate(_ context.Context, c *contracts.Contract) evaluation.EvaluationResult {
	card, ok := c.ModelCard()
	if !ok {
		return evaluation.NewEmptyResult(ModelCardName, "no model_card in contract context")
	}

	var (
		overall     float64
		totalWeight float64
		missing     []string
	)
	sectionDetails := make(map[string]any, len(cardSections))
	for _, section := range cardSections {
		weight := section.weight
		if w, ok := e.config.SectionWeights[section.name]; ok {
			weight = w
		}
		totalWeight += weight

		score, subDetails := e.scoreSection(card, section)
		overall += weight * score
		if score == 0 {
			missing = append(missing, section.name)
		}
		sectionDetails[section.name] = map[string]any{
			"score":                score,
			"weight":               weight,
			"subsections":          subDetails,
			"eu_ai_act_reference":  section.actRef,
			"present_in_contract":  score > 0,
		}
	}
	if totalWeight > 0 {
		overall /= totalWeight
	}
	sort.Strings(missing)

	details := map[string]any{
		"sections":         sectionDetails,
		"missing_sections": missing,
	}
	reason := fmt.Sprintf("model card completeness %.3f, %d/%d sections missing", overall, len(missing), len(cardSections))
	return evaluation.NewResult(ModelCardName, overall, e.config.ComplianceThreshold, reason, details)
}

// scoreSection averages subsection quality for one section. Sections may be
// a map of subsections or a single free-text block applied to every
// subsection.
func (e *ModelCard) scoreSection(card map[string]any, section cardSection) (float64, map[string]any) {
	raw, ok := card[section.name]
	subDetails := make(map[string]any, len(section.subsections))
	if !ok {
		for _, sub := range section.subsections {
			subDetails[sub] = qualityMissing
		}
		return 0, subDetails
	}

	var total float64
	switch content := raw.(type) {
	case map[string]any:
		for _, sub := range section.subsections {
			text, _ := content[sub].(string)
			q := e.quality(text)
			subDetails[sub] = q
			total += q
		}
	case string:
		q := e.quality(content)
		for _, sub := range section.subsections {
			subDetails[sub] = q
			total += q
		}
	default:
		for _, sub := range section.subsections {
			subDetails[sub] = qualityMissing
		}
		return 0, subDetails
	}
	return total / float64(len(section.subsections)), subDetails
}

// quality maps content length to the tiered score.
func (e *ModelCard) quality(text string) float64 {
	t := e.config.ContentQualityThresholds
	length := len([]rune(text))
	switch {
	case length >= t.Comprehensive && t.Comprehensive > 0:
		return qualityComprehensive
	case length >= t.Partial && t.Partial > 0:
		return qualityPartial
	case length >= t.Minimal && t.Minimal > 0:
		return qualityMinimal
	default:
		return qualityMissing
	}
}
