package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/aicert/pkg/config"
)

// TestLoad_Defaults verifies that Load() returns sensible defaults
// when no environment variables are set.
// Invariant: System must boot with safe defaults in dev mode.
func TestLoad_Defaults(t *testing.T) {
	// Ensure clean env
	t.Setenv("POLICY_DIR", "")
	t.Setenv("POLICY_ENGINE_PATH", "")
	t.Setenv("POLICY_TIMEOUT", "")
	t.Setenv("EVALUATION_TIMEOUT", "")
	t.Setenv("REPORT_OUTPUT_DIR", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CI", "")

	cfg := config.Load()

	assert.Equal(t, "policies", cfg.PolicyDir)
	assert.Equal(t, "reports", cfg.OutputDir)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.PolicyTimeout)
	assert.Equal(t, 120*time.Second, cfg.EvaluationTimeout)
	assert.False(t, cfg.CI)
	assert.False(t, cfg.UseExternalServer)
}

// TestLoad_Overrides verifies that environment variables correctly
// override default values.
// Invariant: Ops can control config via standard 12-factor env vars.
func TestLoad_Overrides(t *testing.T) {
	t.Setenv("POLICY_DIR", "/etc/aicert/policies")
	t.Setenv("POLICY_ENGINE_SERVER_URL", "http://opa:8181")
	t.Setenv("POLICY_ENGINE_USE_EXTERNAL_SERVER", "true")
	t.Setenv("POLICY_TIMEOUT", "45s")
	t.Setenv("EVALUATION_TIMEOUT", "300")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CI", "true")

	cfg := config.Load()

	assert.Equal(t, "/etc/aicert/policies", cfg.PolicyDir)
	assert.Equal(t, "http://opa:8181", cfg.EngineServerURL)
	assert.True(t, cfg.UseExternalServer)
	assert.Equal(t, 45*time.Second, cfg.PolicyTimeout)
	assert.Equal(t, 300*time.Second, cfg.EvaluationTimeout)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.True(t, cfg.CI)
}
