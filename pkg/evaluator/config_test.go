package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfig(t *testing.T) {
	defaults := map[string]any{"threshold": 0.7, "use_mock_if_unavailable": true}
	overrides := map[string]any{"threshold": 0.9}

	merged := MergeConfig(defaults, overrides)
	assert.Equal(t, 0.9, merged["threshold"])
	assert.Equal(t, true, merged["use_mock_if_unavailable"])

	// Inputs stay untouched.
	assert.Equal(t, 0.7, defaults["threshold"])
	assert.Len(t, overrides, 1)
}

func TestDecodeConfigExtras(t *testing.T) {
	type cfg struct {
		Threshold float64 `json:"threshold"`
	}
	var out cfg
	extras, err := DecodeConfig(map[string]any{
		"threshold":  0.8,
		"custom_key": "kept",
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, 0.8, out.Threshold)
	assert.Equal(t, map[string]any{"custom_key": "kept"}, extras)
}

func TestThresholdFrom(t *testing.T) {
	assert.Equal(t, 0.7, ThresholdFrom(map[string]any{}, 0.7))
	assert.Equal(t, 0.9, ThresholdFrom(map[string]any{"threshold": 0.9}, 0.7))
	assert.Equal(t, 1.0, ThresholdFrom(map[string]any{"threshold": 1}, 0.7))
	// Out-of-range values fall back to the default.
	assert.Equal(t, 0.7, ThresholdFrom(map[string]any{"threshold": 1.5}, 0.7))
	assert.Equal(t, 0.7, ThresholdFrom(map[string]any{"threshold": "high"}, 0.7))
}

func TestMockFallbackFrom(t *testing.T) {
	assert.True(t, MockFallbackFrom(map[string]any{}))
	assert.True(t, MockFallbackFrom(map[string]any{ConfigKeyMockFallback: "yes"}))
	assert.False(t, MockFallbackFrom(map[string]any{ConfigKeyMockFallback: false}))
}
