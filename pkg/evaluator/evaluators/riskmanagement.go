package evaluators

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
)

const RiskManagementName = "risk_management"

// riskSection describes one required documentation section: its aggregation
// weight, the curated keyword list, and the required structural elements.
type riskSection struct {
	name     string
	weight   float64
	keywords []string
	elements []string
}

// element coverage dominates keyword coverage in the per-section blend.
const (
	elementCoverageWeight = 0.6
	keywordCoverageWeight = 0.4
)

var riskSections = []riskSection{
	{
		name:   "risk_assessment",
		weight: 0.4,
		keywords: []string{
			"risk", "hazard", "probability", "severity", "impact",
			"likelihood", "assessment", "identification", "analysis",
		},
		elements: []string{
			"identified risks", "risk classification", "affected groups",
			"assessment methodology",
		},
	},
	{
		name:   "mitigation_measures",
		weight: 0.3,
		keywords: []string{
			"mitigation", "control", "safeguard", "reduce", "prevent",
			"measure", "remediation", "fallback",
		},
		elements: []string{
			"mitigation measures", "residual risk", "control effectiveness",
			"human oversight",
		},
	},
	{
		name:   "monitoring_system",
		weight: 0.3,
		keywords: []string{
			"monitor", "monitoring", "alert", "review", "audit", "logging",
			"incident", "report", "post-market",
		},
		elements: []string{
			"monitoring system", "incident response", "review cadence",
			"escalation path",
		},
	},
}

// RiskManagementConfig is the typed configuration for the risk management
// documentation evaluator.
type RiskManagementConfig struct {
	Threshold float64 `json:"threshold"`
}

// RiskManagement statically scores the contract's risk documentation for
// the three required sections.
type RiskManagement struct {
	config RiskManagementConfig
	extras map[string]any
}

// NewRiskManagement creates an uninitialized risk management evaluator.
func NewRiskManagement() *RiskManagement { return &RiskManagement{} }

func (e *RiskManagement) Name() string { return RiskManagementName }

func (e *RiskManagement) SupportedMetrics() []string {
	return []string{
		"risk_management.score",
		"risk_management.section_scores",
	}
}

func (e *RiskManagement) DefaultConfig() map[string]any {
	return map[string]any{"threshold": 0.7}
}

func (e *RiskManagement) Initialize(config map[string]any) error {
	extras, err := evaluator.DecodeConfig(config, &e.config)
	if err != nil {
		return err
	}
	if e.config.Threshold < 0 || e.config.Threshold > 1 {
		return evaluation.Errorf(evaluation.KindValidation, RiskManagementName, "threshold %v outside [0,1]", e.config.Threshold)
	}
	e.extras = extras
	return nil
}

func (e *RiskManagement) EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult {
	return evaluator.RunAsync(ctx, RiskManagementName, func(ctx context.Context) evaluation.EvaluationResult {
		return e.Evaluate(ctx, c)
	})
}

func (e *RiskManagement) Evaluate(_ context.Context, c *contracts.Contract) evaluation.EvaluationResult {
	doc := c.RiskDocumentation()
	if doc == "" {
		return evaluation.NewEmptyResult(RiskManagementName, "no risk documentation available")
	}
	folded := fold(doc)

	var overall float64
	sectionScores := make(map[string]any, len(riskSections))
	for _, section := range riskSections {
		keywordCov := coverage(folded, section.keywords)
		elementCov := coverage(folded, section.elements)
		score := elementCoverageWeight*elementCov + keywordCoverageWeight*keywordCov
		overall += section.weight * score
		sectionScores[section.name] = map[string]any{
			"score":            score,
			"weight":           section.weight,
			"keyword_coverage": keywordCov,
			"element_coverage": elementCov,
		}
	}

	details := map[string]any{"section_scores": sectionScores}
	reason := fmt.Sprintf("risk documentation coverage %.3f across %d sections", overall, len(riskSections))
	return evaluation.NewResult(RiskManagementName, overall, e.config.Threshold, reason, details)
}

// coverage is the fraction of terms present in the folded document.
func coverage(foldedDoc string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	var present int
	for _, term := range terms {
		if containsFolded(foldedDoc, term) {
			present++
		}
	}
	return float64(present) / float64(len(terms))
}

func containsFolded(foldedDoc, term string) bool {
	return len(term) > 0 && strings.Contains(foldedDoc, fold(term))
}
