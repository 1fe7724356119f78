package policy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Result is the normalized outcome of one policy, regardless of engine mode
// or raw payload shape.
type Result struct {
	PolicyName      string         `json:"policy_name"`
	Version         string         `json:"version,omitempty"`
	OverallResult   bool           `json:"overall_result"`
	Status          string         `json:"status"` // "Active" | "Error"
	Details         map[string]any `json:"details"`
	Recommendations []string       `json:"recommendations"`
	Raw             any            `json:"raw,omitempty"`
}

const (
	StatusActive = "Active"
	StatusError  = "Error"
)

// policyPayloadSchema validates the per-policy raw payload before
// normalization. Two forms conform: a full compliance_report sub-object, or
// the flat {allow, reason, recommendations} shape.
const policyPayloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "anyOf": [
    {
      "required": ["compliance_report"],
      "properties": {
        "compliance_report": {
          "type": "object",
          "properties": {
            "overall_result": {"type": "boolean"},
            "compliant": {"type": "boolean"},
            "details": {"type": "object"},
            "recommendations": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    },
    {
      "required": ["allow"],
      "properties": {
        "allow": {"type": "boolean"},
        "reason": {"type": "string"},
        "recommendations": {"type": "array", "items": {"type": "string"}}
      }
    }
  ]
}`

var compiledPayloadSchema = jsonschema.MustCompileString("policy_payload.schema.json", policyPayloadSchema)

// Normalize transforms a raw engine value into the uniform per-policy
// results. The value may be a policy map directly or nested one level under
// version keys. Non-conforming payloads become status=Error records carrying
// the raw blob; they never abort the batch.
func Normalize(value any) []Result {
	root, ok := value.(map[string]any)
	if !ok {
		return []Result{errorResult("", "", value, "engine returned a non-object result")}
	}

	var results []Result
	keys := sortedKeys(root)
	for _, key := range keys {
		child, ok := root[key].(map[string]any)
		if !ok {
			results = append(results, errorResult(key, "", root[key], "policy payload is not an object"))
			continue
		}
		if isPolicyPayload(child) {
			results = append(results, normalizePolicy(key, "", child))
			continue
		}
		// Treat key as a version level.
		for _, policyName := range sortedKeys(child) {
			payload, ok := child[policyName].(map[string]any)
			if !ok {
				results = append(results, errorResult(policyName, key, child[policyName], "policy payload is not an object"))
				continue
			}
			results = append(results, normalizePolicy(policyName, key, payload))
		}
	}
	if len(results) == 0 {
		results = append(results, errorResult("", "", value, "engine result contained no policies"))
	}
	return results
}

func isPolicyPayload(m map[string]any) bool {
	if _, ok := m["compliance_report"]; ok {
		return true
	}
	_, ok := m["allow"]
	return ok
}

// normalizePolicy validates and converts one per-policy payload.
func normalizePolicy(name, version string, payload map[string]any) Result {
	if err := compiledPayloadSchema.Validate(payload); err != nil {
		return errorResult(name, version, payload, fmt.Sprintf("payload failed schema validation: %v", err))
	}

	if reportRaw, ok := payload["compliance_report"].(map[string]any); ok {
		return normalizeReport(name, version, payload, reportRaw)
	}

	// Flat {allow, reason, recommendations}: synthesize a report.
	allow, _ := payload["allow"].(bool)
	reason, _ := payload["reason"].(string)
	if reason == "" {
		if allow {
			reason = "policy allowed the contract"
		} else {
			reason = "policy denied the contract"
		}
	}
	return Result{
		PolicyName:      name,
		Version:         version,
		OverallResult:   allow,
		Status:          StatusActive,
		Details:         map[string]any{"message": reason, "synthesized": true},
		Recommendations: stringSlice(payload["recommendations"]),
		Raw:             payload,
	}
}

func normalizeReport(name, version string, payload, report map[string]any) Result {
	overall, ok := report["overall_result"].(bool)
	if !ok {
		overall, _ = report["compliant"].(bool)
	}
	details, _ := report["details"].(map[string]any)
	if details == nil {
		details = map[string]any{}
	}
	if msg, _ := details["message"].(string); msg == "" {
		if overall {
			details["message"] = "all policy rules satisfied"
		} else {
			details["message"] = "one or more policy rules violated"
		}
	}
	return Result{
		PolicyName:      name,
		Version:         version,
		OverallResult:   overall,
		Status:          StatusActive,
		Details:         details,
		Recommendations: stringSlice(report["recommendations"]),
		Raw:             payload,
	}
}

func errorResult(name, version string, raw any, message string) Result {
	if name == "" {
		name = "unknown"
	}
	return Result{
		PolicyName:    name,
		Version:       version,
		OverallResult: false,
		Status:        StatusError,
		Details:       map[string]any{"message": message},
		Recommendations: []string{
			"inspect the raw engine payload in details",
			"verify the policy bundle produces a compliance_report or allow result",
		},
		Raw: raw,
	}
}

func stringSlice(v any) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AllPassed reports whether every normalized policy allowed the contract.
// An empty batch does not pass.
func AllPassed(results []Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.OverallResult {
			return false
		}
	}
	return true
}

// MarshalRaw keeps raw payloads JSON-stable for reports.
func (r Result) MarshalRaw() json.RawMessage {
	b, err := json.Marshal(r.Raw)
	if err != nil {
		return json.RawMessage(`null`)
	}
	return b
}
