// Package config loads runtime configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds pipeline configuration.
type Config struct {
	// Policy engine.
	PolicyDir         string
	EngineBinaryPath  string
	EngineServerURL   string
	UseExternalServer bool
	EngineDebug       bool
	PolicyTimeout     time.Duration

	// Evaluation.
	EvaluationTimeout time.Duration
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string

	// Output and persistence.
	OutputDir  string
	ArchiveDSN string // sqlite path or postgres DSN; empty disables archiving
	RedisAddr  string // empty disables the evaluation cache

	// Telemetry. An empty endpoint disables OTLP export.
	OTLPEndpoint string
	OTLPInsecure bool

	// CI disables construction-time engine health checks.
	CI       bool
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	policyDir := os.Getenv("POLICY_DIR")
	if policyDir == "" {
		policyDir = "policies"
	}

	outputDir := os.Getenv("REPORT_OUTPUT_DIR")
	if outputDir == "" {
		outputDir = "reports"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &Config{
		PolicyDir:         policyDir,
		EngineBinaryPath:  os.Getenv("POLICY_ENGINE_PATH"),
		EngineServerURL:   os.Getenv("POLICY_ENGINE_SERVER_URL"),
		UseExternalServer: os.Getenv("POLICY_ENGINE_USE_EXTERNAL_SERVER") == "true",
		EngineDebug:       os.Getenv("POLICY_ENGINE_DEBUG") == "true",
		PolicyTimeout:     durationEnv("POLICY_TIMEOUT", 30*time.Second),
		EvaluationTimeout: durationEnv("EVALUATION_TIMEOUT", 120*time.Second),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIModel:       model,
		OutputDir:         outputDir,
		ArchiveDSN:        os.Getenv("REPORT_ARCHIVE_DSN"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		OTLPEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPInsecure:      os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true",
		CI:                os.Getenv("CI") == "true",
		LogLevel:          logLevel,
	}
}

// durationEnv accepts Go duration strings ("45s") or plain seconds ("45").
func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}
