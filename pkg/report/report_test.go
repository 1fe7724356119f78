package report

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/policy"
)

func sampleCombined(compliant bool) *Combined {
	stamp := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &Combined{
		ContractID:      "contract-7",
		ApplicationName: "Triage Bot",
		PolicyFolder:    "international/eu_ai_act/v1",
		PolicyPackage:   "international.eu_ai_act.v1",
		EvaluationResults: map[string]evaluation.EvaluationResult{
			"fairness": {
				EvaluatorName: "fairness",
				Compliant:     true,
				Score:         0.9,
				Threshold:     evaluation.Threshold(0.7),
				Reason:        "stable under substitution",
				Timestamp:     stamp,
			},
			"content_safety": {
				EvaluatorName: "content_safety",
				Compliant:     compliant,
				Score:         boolScore(compliant),
				Threshold:     evaluation.Threshold(1.0),
				Reason:        "toxicity check",
				Details:       map[string]any{"toxic_fraction": 0.0},
				Timestamp:     stamp,
			},
		},
		PolicyResults: []policy.Result{{
			PolicyName:      "eu-ai-act-core",
			Version:         "v1",
			OverallResult:   compliant,
			Status:          policy.StatusActive,
			Details:         map[string]any{"message": "all rules satisfied"},
			Recommendations: []string{"keep monitoring"},
		}},
		OverallCompliant: compliant,
		GeneratedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func boolScore(ok bool) float64 {
	if ok {
		return 1.0
	}
	return 0.0
}

func TestProjectCombinedJSON(t *testing.T) {
	c := sampleCombined(true)
	require.NoError(t, c.SealHash())

	r, err := ProjectCombined(c, evaluation.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, evaluation.FormatJSON, r.Format)
	assert.Equal(t, c.ContentHash, r.Metadata["content_hash"])

	var decoded Combined
	require.NoError(t, json.Unmarshal(r.Content, &decoded))
	assert.Equal(t, "contract-7", decoded.ContractID)
	assert.True(t, decoded.OverallCompliant)
	assert.Len(t, decoded.EvaluationResults, 2)
}

func TestProjectCombinedMarkdown(t *testing.T) {
	c := sampleCombined(false)
	r, err := ProjectCombined(c, evaluation.FormatMarkdown)
	require.NoError(t, err)

	body := string(r.Content)
	assert.Contains(t, body, "# AI Compliance Evaluation Report")
	assert.Contains(t, body, "**Overall: FAIL**")
	assert.Contains(t, body, "| fairness | PASS |")
	assert.Contains(t, body, "| content_safety | FAIL |")
	assert.Contains(t, body, "## Policy Results")
	assert.Contains(t, body, "eu-ai-act-core")
	assert.Contains(t, body, "keep monitoring")
}

func TestProjectCombinedUnregisteredRenderer(t *testing.T) {
	_, err := ProjectCombined(sampleCombined(true), evaluation.FormatPDF)
	require.Error(t, err)
	assert.True(t, evaluation.IsKind(err, evaluation.KindReport))
}

func TestRegisteredRendererIsUsed(t *testing.T) {
	RegisterRenderer(evaluation.FormatHTML, func(c *Combined) (evaluation.Report, error) {
		return evaluation.Report{
			Content: []byte("<html>" + c.ApplicationName + "</html>"),
			Format:  evaluation.FormatHTML,
		}, nil
	})

	r, err := ProjectCombined(sampleCombined(true), evaluation.FormatHTML)
	require.NoError(t, err)
	assert.Contains(t, string(r.Content), "Triage Bot")
}

func TestProjectEvaluationMarkdown(t *testing.T) {
	results := map[string]evaluation.EvaluationResult{
		"fairness": evaluation.NewResult("fairness", 0.9, 0.7, "ok", nil),
	}
	r, err := ProjectEvaluation(results, true, evaluation.FormatMarkdown)
	require.NoError(t, err)
	assert.Contains(t, string(r.Content), "**Overall: PASS**")
}

func TestSealHashDeterministic(t *testing.T) {
	a := sampleCombined(true)
	b := sampleCombined(true)
	require.NoError(t, a.SealHash())
	require.NoError(t, b.SealHash())

	assert.NotEmpty(t, a.ContentHash)
	assert.Equal(t, a.ContentHash, b.ContentHash, "identical content hashes identically")

	// The hash excludes itself and the report path: re-sealing after setting
	// ReportPath yields the same hash.
	b.ReportPath = "/tmp/report.json"
	require.NoError(t, b.SealHash())
	assert.Equal(t, a.ContentHash, b.ContentHash)

	// Any material change produces a different hash.
	b.OverallCompliant = false
	require.NoError(t, b.SealHash())
	assert.NotEqual(t, a.ContentHash, b.ContentHash)
}

func TestWriteFileNaming(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "reports")
	r := evaluation.Report{
		Content:     []byte("{}"),
		Format:      evaluation.FormatJSON,
		GeneratedAt: time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC),
	}

	path, err := WriteFile(r, dir, "Triage Bot v2.1")
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.Equal(t, "compliance_report_triage_bot_v2_1_2026-03-01T12-30-45Z.json", base)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}

func TestWriteFileMarkdownExtension(t *testing.T) {
	path, err := WriteFile(evaluation.Report{
		Content: []byte("# report"),
		Format:  evaluation.FormatMarkdown,
	}, t.TempDir(), "")
	require.NoError(t, err)

	base := filepath.Base(path)
	assert.True(t, strings.HasPrefix(base, "compliance_report_application_"))
	assert.True(t, strings.HasSuffix(base, ".md"))
}

func TestAttestRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a := NewAttestor(priv, "aicert-test", 0)
	c := sampleCombined(true)

	token, err := a.Attest(c)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ContentHash, "attesting seals the hash when missing")

	claims, err := Verify(token, pub)
	require.NoError(t, err)
	assert.Equal(t, "Triage Bot", claims.ApplicationName)
	assert.Equal(t, "contract-7", claims.ContractID)
	assert.Equal(t, c.ContentHash, claims.ContentHash)
	assert.Equal(t, "aicert-test", claims.Issuer)
	// Sorted regardless of map iteration, so identical runs attest
	// identical claims.
	assert.Equal(t, []string{"content_safety", "fairness"}, claims.Evaluators)
}

func TestAttestRefusesNonCompliant(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	a := NewAttestor(priv, "aicert-test", 0)
	_, err = a.Attest(sampleCombined(false))
	require.Error(t, err)
	assert.True(t, evaluation.IsKind(err, evaluation.KindReport))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	token, err := NewAttestor(priv, "aicert-test", 0).Attest(sampleCombined(true))
	require.NoError(t, err)

	_, err = Verify(token, otherPub)
	require.Error(t, err)
}
