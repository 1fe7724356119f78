package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultEndpoint   = "https://api.openai.com/v1/chat/completions"
	defaultModel      = "gpt-4o-mini"
	defaultTimeout    = 30 * time.Second
	defaultJudgeRPS   = 2
	defaultJudgeBurst = 4
)

// OpenAIJudgeConfig configures the OpenAI-compatible judge client.
type OpenAIJudgeConfig struct {
	APIKey   string
	Model    string
	Endpoint string        // OpenAI-compatible chat completions URL
	Timeout  time.Duration // per-request timeout
	RPS      float64       // outbound rate limit; 0 uses the default
}

// OpenAIJudge scores criteria via an OpenAI-compatible chat completions API.
// Outbound calls are rate limited to stay inside provider quotas.
type OpenAIJudge struct {
	config  OpenAIJudgeConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewOpenAIJudge creates a judge backed by an OpenAI-compatible endpoint.
func NewOpenAIJudge(cfg OpenAIJudgeConfig) *OpenAIJudge {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = defaultJudgeRPS
	}
	return &OpenAIJudge{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), defaultJudgeBurst),
	}
}

// Available implements Judge.
func (j *OpenAIJudge) Available() bool { return j.config.APIKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// judgeVerdict is the structured response format requested from the model.
type judgeVerdict struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Score implements Judge.
func (j *OpenAIJudge) Score(ctx context.Context, criterion Criterion, input, output string, reference []string) (Judgment, error) {
	if !j.Available() {
		return Judgment{}, ErrUnavailable
	}
	if err := j.limiter.Wait(ctx); err != nil {
		return Judgment{}, fmt.Errorf("llm: rate limiter: %w", err)
	}

	reqBody := chatRequest{
		Model: j.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(criterion)},
			{Role: "user", Content: userPrompt(criterion, input, output, reference)},
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Judgment{}, fmt.Errorf("llm: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return Judgment{}, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+j.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return Judgment{}, fmt.Errorf("llm: judge call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Judgment{}, fmt.Errorf("llm: judge returned HTTP %d", resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return Judgment{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return Judgment{}, fmt.Errorf("llm: empty response")
	}

	verdict, err := parseVerdict(chat.Choices[0].Message.Content)
	if err != nil {
		return Judgment{}, err
	}
	return Judgment{
		Criterion: criterion.Name,
		Score:     clamp01(verdict.Score),
		Rationale: verdict.Rationale,
	}, nil
}

func systemPrompt(criterion Criterion) string {
	direction := "Higher scores mean better quality."
	if criterion.Direction == DirectionAbsence {
		direction = "A score of 1.0 means the property is fully absent; 0.0 means it is clearly present."
	}
	return fmt.Sprintf(
		"You are a compliance auditor scoring AI system outputs. Score the criterion %q: %s. %s "+
			`Respond with only a JSON object: {"score": <0.0-1.0>, "rationale": "<one sentence>"}.`,
		criterion.Name, criterion.Description, direction)
}

func userPrompt(criterion Criterion, input, output string, reference []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "User input:\n%s\n\nSystem output:\n%s\n", input, output)
	if len(reference) > 0 {
		b.WriteString("\nReference context:\n")
		for _, r := range reference {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// parseVerdict extracts the JSON verdict, tolerating fenced code blocks.
func parseVerdict(content string) (judgeVerdict, error) {
	trimmed := strings.TrimSpace(content)
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			trimmed = trimmed[start : end+1]
		}
	}
	var v judgeVerdict
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return judgeVerdict{}, fmt.Errorf("llm: malformed verdict %q: %w", content, err)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
