package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EvaluationProfile is a named, file-based preset for a certification run:
// which policy category to evaluate against, which report formats to emit,
// and per-evaluator configuration overrides.
type EvaluationProfile struct {
	Name           string                    `yaml:"name" json:"name"`
	Code           string                    `yaml:"code" json:"code"`
	PolicySelector string                    `yaml:"policy_selector" json:"policy_selector"`
	ReportFormats  []string                  `yaml:"report_formats,omitempty" json:"report_formats,omitempty"`
	StrictMode     bool                      `yaml:"strict_mode,omitempty" json:"strict_mode,omitempty"`
	Evaluators     map[string]map[string]any `yaml:"evaluators,omitempty" json:"evaluators,omitempty"`
	CustomParams   map[string]any            `yaml:"custom_params,omitempty" json:"custom_params,omitempty"`
}

// LoadProfile loads an evaluation profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*EvaluationProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile EvaluationProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}

// LoadAllProfiles loads all profile_*.yaml files from the profiles directory.
func LoadAllProfiles(profilesDir string) (map[string]*EvaluationProfile, error) {
	matches, err := filepath.Glob(filepath.Join(profilesDir, "profile_*.yaml"))
	if err != nil {
		return nil, err
	}

	profiles := make(map[string]*EvaluationProfile, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		var profile EvaluationProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}

		if profile.Code == "" {
			// Extract code from filename: profile_eu.yaml -> eu
			base := filepath.Base(path)
			profile.Code = strings.TrimSuffix(strings.TrimPrefix(base, "profile_"), ".yaml")
		}

		profiles[profile.Code] = &profile
	}

	return profiles, nil
}

// ConfigFor returns the configuration overrides for one evaluator, applying
// the profile's strict mode (disables mock fallbacks) on top.
func (p *EvaluationProfile) ConfigFor(evaluatorName string) map[string]any {
	overrides := make(map[string]any, len(p.Evaluators[evaluatorName])+1)
	for k, v := range p.Evaluators[evaluatorName] {
		overrides[k] = v
	}
	if p.StrictMode {
		overrides["use_mock_if_unavailable"] = false
	}
	return overrides
}
