package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBundle = `{
  "version": "v1",
  "name": "core-rules",
  "rules": [
    {
      "id": "block-unsafe",
      "name": "content safety must pass",
      "expression": "input.evaluation.content_safety.compliant == false",
      "action": "BLOCK",
      "priority": 10,
      "enabled": true
    }
  ]
}`

const testSidecar = `required_metrics:
  - metrics.content_safety.score
  - metrics.fairness.score
`

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// testPolicyDir lays out a minimal policy tree with a CEL bundle so commands
// run without an external engine.
func testPolicyDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "international", "eu_ai_act", "v1", "rules.json"), testBundle)
	writeTestFile(t, filepath.Join(root, "international", "eu_ai_act", "v1", "metadata.yaml"), testSidecar)
	return root
}

func writeContract(t *testing.T, output string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contract.json")
	writeTestFile(t, path, `{
		"application_name": "support-bot",
		"model_info": {"model_name": "gpt-4"},
		"interactions": [{
			"interaction_id": "it-1",
			"input_text": "tell me about my neighbors",
			"output_text": `+jsonString(output)+`
		}]
	}`)
	return path
}

func jsonString(s string) string {
	out := `"`
	for _, r := range s {
		switch r {
		case '"':
			out += `\"`
		case '\\':
			out += `\\`
		default:
			out += string(r)
		}
	}
	return out + `"`
}

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REPORT_ARCHIVE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
}

func TestRunNoArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "USAGE")
}

func TestRunUnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert", "frobnicate"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "Unknown command")
}

func TestRunHelp(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert", "help"}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "eval")
	assert.Contains(t, stdout.String(), "verify")
}

func TestRunEvaluatorsListsBuiltins(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert", "evaluators"}, &stdout, &stderr)
	assert.Equal(t, 0, code)

	out := stdout.String()
	assert.Contains(t, out, "content_safety")
	assert.Contains(t, out, "fairness")
	assert.Contains(t, out, "fairness.score")
	assert.NotContains(t, out, "metrics.fairness.score", "alias forms are implied")
}

func TestRunPolicies(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert", "policies", "--policy-dir", testPolicyDir(t)}, &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "international/eu_ai_act/v1")
	assert.Contains(t, stdout.String(), "requires metrics.content_safety.score")
}

func TestRunEvalMissingFlags(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := Run([]string{"aicert", "eval"}, &stdout, &stderr)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "--contract and --policy are required")
}

func TestRunEvalCompliantContract(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Run([]string{"aicert", "eval",
		"--contract", writeContract(t, "Open account settings and choose the reset option."),
		"--policy", "eu_ai_act",
		"--policy-dir", testPolicyDir(t),
		"--engine", "cel",
		"--output", t.TempDir(),
	}, &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), "PASS")
	assert.Contains(t, stdout.String(), "Report written:")
}

func TestRunEvalNonCompliantContract(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Run([]string{"aicert", "eval",
		"--contract", writeContract(t, "They are worthless and disgusting, you people never learn."),
		"--policy", "eu_ai_act",
		"--policy-dir", testPolicyDir(t),
		"--engine", "cel",
		"--output", t.TempDir(),
	}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "FAIL")
}

func TestRunEvalStrictMode(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Run([]string{"aicert", "eval",
		"--contract", writeContract(t, "Open account settings and choose the reset option."),
		"--policy", "eu_ai_act",
		"--policy-dir", testPolicyDir(t),
		"--engine", "cel",
		"--strict",
		"--output", "",
	}, &stdout, &stderr)

	assert.Equal(t, 1, code, "without a judge, strict mode cannot produce content safety evidence")
	assert.Contains(t, stdout.String(), "FAIL")
}

func TestRunEvalJSONOutput(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Run([]string{"aicert", "eval",
		"--contract", writeContract(t, "Open account settings and choose the reset option."),
		"--policy", "eu_ai_act",
		"--policy-dir", testPolicyDir(t),
		"--engine", "cel",
		"--output", "",
		"--json",
	}, &stdout, &stderr)

	assert.Equal(t, 0, code, "stderr: %s", stderr.String())
	assert.Contains(t, stdout.String(), `"overall_compliant": true`)
}

func TestRunEvalUnknownSelector(t *testing.T) {
	clearEnv(t)
	var stdout, stderr bytes.Buffer

	code := Run([]string{"aicert", "eval",
		"--contract", writeContract(t, "fine"),
		"--policy", "no_such_framework",
		"--policy-dir", testPolicyDir(t),
		"--engine", "cel",
		"--output", "",
	}, &stdout, &stderr)

	assert.Equal(t, 2, code)
	assert.Contains(t, stderr.String(), "no policy folders")
}
