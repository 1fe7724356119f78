package evaluators

import (
	"os"
	"time"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
	"github.com/Mindburn-Labs/aicert/pkg/llm"
)

// timeNow is injectable for deterministic result timestamps in tests.
var timeNow = func() time.Time { return time.Now().UTC() }

// resolveJudge picks the LLM judge for an evaluator. Precedence:
//  1. an injected judge (tests, orchestrator wiring)
//  2. an OpenAI-compatible client when an API key is configured
//  3. the deterministic pattern fallback, when mock fallback is enabled
//
// With no capability and mock fallback disabled, a dependency-kinded error
// is returned and Initialize fails in strict mode.
func resolveJudge(name string, config map[string]any, injected llm.Judge) (llm.Judge, error) {
	if injected != nil {
		return injected, nil
	}
	model, _ := config["model"].(string)
	client := llm.NewOpenAIJudge(llm.OpenAIJudgeConfig{
		APIKey:   os.Getenv("OPENAI_API_KEY"),
		Model:    model,
		Endpoint: os.Getenv("OPENAI_BASE_URL"),
	})
	if client.Available() {
		return client, nil
	}
	if evaluator.MockFallbackFrom(config) {
		return llm.NewPatternJudge(), nil
	}
	return nil, evaluation.Errorf(evaluation.KindDependencyUnavailable, name, "LLM judge not configured and mock fallback disabled")
}
