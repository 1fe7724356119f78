package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeProfile(t *testing.T, dir, code, content string) {
	t.Helper()
	path := filepath.Join(dir, "profile_"+code+".yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "eu", `
name: EU AI Act
policy_selector: healthcare
report_formats: [json, markdown]
strict_mode: true
evaluators:
  content_safety:
    toxicity_threshold: 0.2
custom_params:
  jurisdiction: eu
`)

	p, err := LoadProfile(dir, "EU")
	if err != nil {
		t.Fatalf("LoadProfile(eu): %v", err)
	}
	if p.Name != "EU AI Act" {
		t.Errorf("expected name 'EU AI Act', got %q", p.Name)
	}
	if p.Code != "eu" {
		t.Errorf("expected code filled from filename, got %q", p.Code)
	}
	if p.PolicySelector != "healthcare" {
		t.Errorf("unexpected selector %q", p.PolicySelector)
	}
	if !p.StrictMode {
		t.Error("strict mode should be set")
	}
}

func TestLoadProfile_Missing(t *testing.T) {
	if _, err := LoadProfile(t.TempDir(), "nope"); err == nil {
		t.Fatal("expected error for missing profile")
	}
}

func TestLoadAllProfiles(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "eu", "name: EU\npolicy_selector: healthcare\n")
	writeProfile(t, dir, "us", "name: US\npolicy_selector: finance\n")

	profiles, err := LoadAllProfiles(dir)
	if err != nil {
		t.Fatalf("LoadAllProfiles: %v", err)
	}
	if len(profiles) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(profiles))
	}
	if profiles["us"].PolicySelector != "finance" {
		t.Errorf("us profile selector = %q", profiles["us"].PolicySelector)
	}
}

func TestConfigFor_StrictModeDisablesMocks(t *testing.T) {
	p := &EvaluationProfile{
		StrictMode: true,
		Evaluators: map[string]map[string]any{
			"content_safety": {"toxicity_threshold": 0.2},
		},
	}

	cfg := p.ConfigFor("content_safety")
	if cfg["toxicity_threshold"] != 0.2 {
		t.Errorf("override lost: %v", cfg["toxicity_threshold"])
	}
	if cfg["use_mock_if_unavailable"] != false {
		t.Error("strict mode should disable mock fallback")
	}

	// Evaluator with no overrides still gets the strict flag.
	other := p.ConfigFor("fairness")
	if other["use_mock_if_unavailable"] != false {
		t.Error("strict mode should apply to all evaluators")
	}
}
