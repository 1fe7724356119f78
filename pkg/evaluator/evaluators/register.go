package evaluators

import (
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
)

// Builtins returns a factory for every built-in evaluator, keyed by name.
func Builtins() map[string]evaluator.Factory {
	return map[string]evaluator.Factory{
		FairnessName:       func() evaluator.Evaluator { return NewFairness() },
		ContentSafetyName:  func() evaluator.Evaluator { return NewContentSafety() },
		RiskManagementName: func() evaluator.Evaluator { return NewRiskManagement() },
		AccuracyName:       func() evaluator.Evaluator { return NewAccuracy() },
		ModelCardName:      func() evaluator.Evaluator { return NewModelCard() },
		BiometricName:      func() evaluator.Evaluator { return NewBiometricCategorization() },
		ManipulationName:   func() evaluator.Evaluator { return NewManipulation() },
		VulnerabilityName:  func() evaluator.Evaluator { return NewVulnerabilityExploitation() },
		SocialScoringName:  func() evaluator.Evaluator { return NewSocialScoring() },
		EmotionName:        func() evaluator.Evaluator { return NewEmotionRecognition() },
	}
}

// RegisterAll queues every built-in factory for the one-shot process-wide
// registration. Call evaluator.InitializeOnce afterwards.
func RegisterAll() {
	for _, factory := range Builtins() {
		evaluator.RegisterBuiltin(factory)
	}
}

// InitializeOnce queues the builtins and performs the one-shot registration.
// Safe to call repeatedly; later calls are no-ops.
func InitializeOnce() *evaluator.Registry {
	RegisterAll()
	return evaluator.InitializeOnce()
}
