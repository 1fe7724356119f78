// Package report projects evaluation and policy results into serialized
// compliance reports. JSON and Markdown are implemented natively; PDF and
// HTML delegate to registered renderers.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Mindburn-Labs/aicert/pkg/canonicalize"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/policy"
)

// Combined is the full outcome of one pipeline run: phase-1 evaluator
// results plus phase-2 normalized policy results.
type Combined struct {
	ContractID        string                                 `json:"contract_id"`
	ApplicationName   string                                 `json:"application_name"`
	PolicyFolder      string                                 `json:"policy_folder"`
	PolicyPackage     string                                 `json:"policy_package"`
	EvaluationResults map[string]evaluation.EvaluationResult `json:"evaluation_results"`
	PolicyResults     []policy.Result                        `json:"policy_results,omitempty"`
	PolicyError       string                                 `json:"policy_error,omitempty"`
	OverallCompliant  bool                                   `json:"overall_compliant"`
	GeneratedAt       time.Time                              `json:"generated_at"`
	ContentHash       string                                 `json:"content_hash,omitempty"`
	ReportPath        string                                 `json:"report_path,omitempty"`
}

// SealHash stamps the deterministic content hash over the combined result
// (excluding the hash itself and the report path).
func (c *Combined) SealHash() error {
	clone := *c
	clone.ContentHash = ""
	clone.ReportPath = ""
	hash, err := canonicalize.CanonicalHash(clone)
	if err != nil {
		return evaluation.NewError(evaluation.KindReport, "report.SealHash", err)
	}
	c.ContentHash = hash
	return nil
}

// Renderer produces a report for formats the core does not implement
// natively (PDF, HTML).
type Renderer func(c *Combined) (evaluation.Report, error)

var (
	renderersMu sync.RWMutex
	renderers   = make(map[evaluation.ReportFormat]Renderer)
)

// RegisterRenderer installs a renderer for a delegated format.
func RegisterRenderer(format evaluation.ReportFormat, r Renderer) {
	renderersMu.Lock()
	defer renderersMu.Unlock()
	renderers[format] = r
}

// ProjectEvaluation serializes a phase-1 result map on its own, the default
// projection every evaluator shares.
func ProjectEvaluation(results map[string]evaluation.EvaluationResult, overall bool, format evaluation.ReportFormat) (evaluation.Report, error) {
	const op = "report.ProjectEvaluation"
	now := time.Now().UTC()

	switch format {
	case evaluation.FormatJSON:
		payload := map[string]any{
			"evaluation_results": results,
			"overall_compliant":  overall,
			"timestamp":          now.Format(time.RFC3339),
		}
		content, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return evaluation.Report{}, evaluation.NewError(evaluation.KindReport, op, err)
		}
		return evaluation.Report{Content: content, Format: format, GeneratedAt: now}, nil

	case evaluation.FormatMarkdown:
		var b strings.Builder
		writeEvaluationMarkdown(&b, results, overall)
		return evaluation.Report{Content: []byte(b.String()), Format: format, GeneratedAt: now}, nil

	default:
		return evaluation.Report{}, evaluation.Errorf(evaluation.KindReport, op, "format %q requires a combined report", format)
	}
}

// ProjectCombined serializes the full pipeline outcome.
func ProjectCombined(c *Combined, format evaluation.ReportFormat) (evaluation.Report, error) {
	const op = "report.ProjectCombined"
	now := time.Now().UTC()

	switch format {
	case evaluation.FormatJSON:
		content, err := json.MarshalIndent(c, "", "  ")
		if err != nil {
			return evaluation.Report{}, evaluation.NewError(evaluation.KindReport, op, err)
		}
		return evaluation.Report{
			Content:     content,
			Format:      format,
			Metadata:    map[string]any{"application_name": c.ApplicationName, "content_hash": c.ContentHash},
			GeneratedAt: now,
		}, nil

	case evaluation.FormatMarkdown:
		var b strings.Builder
		writeCombinedMarkdown(&b, c)
		return evaluation.Report{
			Content:     []byte(b.String()),
			Format:      format,
			Metadata:    map[string]any{"application_name": c.ApplicationName, "content_hash": c.ContentHash},
			GeneratedAt: now,
		}, nil

	case evaluation.FormatPDF, evaluation.FormatHTML:
		renderersMu.RLock()
		r, ok := renderers[format]
		renderersMu.RUnlock()
		if !ok {
			return evaluation.Report{}, evaluation.Errorf(evaluation.KindReport, op, "no renderer registered for format %q", format)
		}
		return r(c)

	default:
		return evaluation.Report{}, evaluation.Errorf(evaluation.KindReport, op, "unknown format %q", format)
	}
}

func writeEvaluationMarkdown(b *strings.Builder, results map[string]evaluation.EvaluationResult, overall bool) {
	b.WriteString("# AI Compliance Evaluation Report\n\n")
	writeVerdictLine(b, overall)
	writeSummaryTable(b, results)
	writeEvaluatorSections(b, results)
}

func writeCombinedMarkdown(b *strings.Builder, c *Combined) {
	b.WriteString("# AI Compliance Evaluation Report\n\n")
	fmt.Fprintf(b, "**Application:** %s  \n", c.ApplicationName)
	fmt.Fprintf(b, "**Contract:** %s  \n", c.ContractID)
	fmt.Fprintf(b, "**Policy folder:** %s  \n", c.PolicyFolder)
	fmt.Fprintf(b, "**Generated:** %s\n\n", c.GeneratedAt.Format(time.RFC3339))
	writeVerdictLine(b, c.OverallCompliant)
	writeSummaryTable(b, c.EvaluationResults)
	writeEvaluatorSections(b, c.EvaluationResults)

	b.WriteString("## Policy Results\n\n")
	if c.PolicyError != "" {
		fmt.Fprintf(b, "**Error:** %s\n\n", c.PolicyError)
	}
	for _, pr := range c.PolicyResults {
		fmt.Fprintf(b, "### %s\n\n", pr.PolicyName)
		if pr.Version != "" {
			fmt.Fprintf(b, "- Version: %s\n", pr.Version)
		}
		fmt.Fprintf(b, "- Result: %s\n", passFail(pr.OverallResult))
		fmt.Fprintf(b, "- Status: %s\n", pr.Status)
		if msg, ok := pr.Details["message"].(string); ok {
			fmt.Fprintf(b, "- Message: %s\n", msg)
		}
		if len(pr.Recommendations) > 0 {
			b.WriteString("- Recommendations:\n")
			for _, rec := range pr.Recommendations {
				fmt.Fprintf(b, "  - %s\n", rec)
			}
		}
		b.WriteString("\n")
	}
}

func writeVerdictLine(b *strings.Builder, overall bool) {
	fmt.Fprintf(b, "**Overall: %s**\n\n", passFail(overall))
}

func writeSummaryTable(b *strings.Builder, results map[string]evaluation.EvaluationResult) {
	b.WriteString("| Evaluator | Verdict | Score | Threshold |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, name := range sortedNames(results) {
		r := results[name]
		threshold := "-"
		if r.Threshold != nil {
			threshold = fmt.Sprintf("%.2f", *r.Threshold)
		}
		fmt.Fprintf(b, "| %s | %s | %.3f | %s |\n", name, passFail(r.Compliant), r.Score, threshold)
	}
	b.WriteString("\n")
}

func writeEvaluatorSections(b *strings.Builder, results map[string]evaluation.EvaluationResult) {
	for _, name := range sortedNames(results) {
		r := results[name]
		fmt.Fprintf(b, "## %s\n\n", name)
		fmt.Fprintf(b, "- Verdict: %s\n", passFail(r.Compliant))
		fmt.Fprintf(b, "- Reason: %s\n", r.Reason)
		if r.Threshold != nil {
			fmt.Fprintf(b, "- Threshold: %.2f\n", *r.Threshold)
		}
		if len(r.Details) > 0 {
			details, err := json.MarshalIndent(r.Details, "", "  ")
			if err == nil {
				b.WriteString("\n```json\n")
				b.Write(details)
				b.WriteString("\n```\n")
			}
		}
		b.WriteString("\n")
	}
}

func passFail(ok bool) string {
	if ok {
		return "PASS"
	}
	return "FAIL"
}

func sortedNames(results map[string]evaluation.EvaluationResult) []string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
