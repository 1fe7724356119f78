package evaluator

import (
	"encoding/json"
	"fmt"
)

// MergeConfig overlays caller overrides on top of an evaluator's defaults
// without mutating either map.
func MergeConfig(defaults, overrides map[string]any) map[string]any {
	merged := make(map[string]any, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

// DecodeConfig maps the generic configuration into an evaluator's typed
// struct via JSON tags. Keys the struct does not declare are returned in
// the extras map so callers never lose unknown options.
func DecodeConfig(config map[string]any, out any) (extras map[string]any, err error) {
	raw, err := json.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("evaluator: marshal config: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("evaluator: decode config: %w", err)
	}

	// Round-trip the typed struct to learn which keys it consumed.
	typed, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("evaluator: re-marshal config: %w", err)
	}
	known := map[string]any{}
	if err := json.Unmarshal(typed, &known); err != nil {
		return nil, fmt.Errorf("evaluator: scan typed config: %w", err)
	}

	extras = make(map[string]any)
	for k, v := range config {
		if _, ok := known[k]; !ok {
			extras[k] = v
		}
	}
	return extras, nil
}

// ThresholdFrom extracts a [0,1] threshold from config, falling back to def.
func ThresholdFrom(config map[string]any, def float64) float64 {
	v, ok := config[ConfigKeyThreshold]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		if t >= 0 && t <= 1 {
			return t
		}
	case int:
		if t == 0 || t == 1 {
			return float64(t)
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && f >= 0 && f <= 1 {
			return f
		}
	}
	return def
}

// MockFallbackFrom extracts the mock fallback flag, defaulting to true.
func MockFallbackFrom(config map[string]any) bool {
	v, ok := config[ConfigKeyMockFallback]
	if !ok {
		return true
	}
	b, ok := v.(bool)
	if !ok {
		return true
	}
	return b
}
