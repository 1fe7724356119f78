package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// Mode selects how policy queries are executed.
type Mode string

const (
	// ModeEmbedded invokes a locally installed policy decision binary per
	// query.
	ModeEmbedded Mode = "embedded"
	// ModeServer POSTs queries to a long-running policy HTTP server.
	ModeServer Mode = "server"
	// ModeCEL evaluates JSON rule bundles in-process with CEL.
	ModeCEL Mode = "cel"
)

// EvalMode controls the detail level requested from the engine.
type EvalMode string

const (
	EvalDevelopment EvalMode = "development"
	EvalProduction  EvalMode = "production"
)

const defaultQueryTimeout = 30 * time.Second

// DriverConfig configures the policy engine driver.
type DriverConfig struct {
	Mode       Mode
	BinaryPath string // embedded mode: policy decision binary
	ServerURL  string // server mode: base URL
	Timeout    time.Duration
	EvalMode   EvalMode
	// SkipHealthCheck disables the construction-time reachability check
	// (set in CI).
	SkipHealthCheck bool
}

// Driver executes policy evaluation against the configured backend and
// normalizes results. Fail-soft: per-policy engine errors become
// status=Error records; only whole-engine unavailability surfaces as an
// error for the pipeline to fold into the combined report.
type Driver struct {
	config DriverConfig
	loader *Loader
	client *http.Client
	cel    *CELBackend
	logger *slog.Logger
}

// NewDriver builds a driver over a loaded policy index. The engine
// reachability check runs once here and is cached for the driver lifetime.
func NewDriver(cfg DriverConfig, loader *Loader) (*Driver, error) {
	const op = "policy.NewDriver"
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultQueryTimeout
	}
	if cfg.EvalMode == "" {
		cfg.EvalMode = EvalProduction
	}

	d := &Driver{
		config: cfg,
		loader: loader,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default().With("component", "policy-driver", "mode", string(cfg.Mode)),
	}
	if cfg.Mode == ModeCEL {
		d.cel = NewCELBackend(loader)
	}

	if !cfg.SkipHealthCheck {
		if err := d.healthCheck(); err != nil {
			return nil, evaluation.NewError(evaluation.KindPolicyEngine, op, err)
		}
	}
	return d, nil
}

// healthCheck verifies the backend is reachable.
func (d *Driver) healthCheck() error {
	switch d.config.Mode {
	case ModeEmbedded:
		if d.config.BinaryPath == "" {
			if _, err := exec.LookPath("opa"); err != nil {
				return fmt.Errorf("policy binary not found in PATH: %w", err)
			}
			return nil
		}
		if _, err := os.Stat(d.config.BinaryPath); err != nil {
			return fmt.Errorf("policy binary %s: %w", d.config.BinaryPath, err)
		}
		return nil
	case ModeServer:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(d.config.ServerURL, "/")+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return fmt.Errorf("policy server unreachable: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("policy server health returned HTTP %d", resp.StatusCode)
		}
		return nil
	case ModeCEL:
		return nil
	default:
		return fmt.Errorf("unknown engine mode %q", d.config.Mode)
	}
}

// EvaluatePolicyCategory is the main entry point: resolve the selector to a
// folder, run its policies over the input, and normalize the results.
// Custom parameters are merged into the engine input without overwriting
// the contract/evaluation keys the core controls.
func (d *Driver) EvaluatePolicyCategory(ctx context.Context, selector string, input map[string]any, customParams map[string]any) ([]Result, error) {
	const op = "policy.EvaluatePolicyCategory"

	folders := d.loader.FindMatchingFolders(selector)
	if len(folders) == 0 {
		return nil, evaluation.Errorf(evaluation.KindNoMatchingPolicy, op, "selector %q matched no policy folders", selector)
	}
	folder := folders[0]
	pkg := d.loader.PackagePath(folder)

	merged := make(map[string]any, len(input)+len(customParams))
	for k, v := range customParams {
		merged[k] = v
	}
	for k, v := range input {
		merged[k] = v
	}

	ctx, span := otel.Tracer("aicert/policy").Start(ctx, "policy.evaluate")
	span.SetAttributes(
		attribute.String("policy.folder", folder),
		attribute.String("policy.package", pkg),
		attribute.String("policy.mode", string(d.config.Mode)),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	var (
		value any
		err   error
	)
	switch d.config.Mode {
	case ModeEmbedded:
		value, err = d.queryEmbedded(ctx, pkg, merged)
	case ModeServer:
		value, err = d.queryServer(ctx, pkg, merged)
	case ModeCEL:
		return d.cel.Evaluate(ctx, folder, merged)
	default:
		err = fmt.Errorf("unknown engine mode %q", d.config.Mode)
	}
	if err != nil {
		return nil, evaluation.NewError(evaluation.KindPolicyEngine, op, err)
	}

	results := Normalize(value)
	d.logger.Info("policy category evaluated",
		"folder", folder, "policies", len(results), "all_passed", AllPassed(results))
	return results, nil
}

// queryEmbedded shells out to the policy decision binary, feeding input on
// stdin and parsing the engine's JSON result envelope.
func (d *Driver) queryEmbedded(ctx context.Context, pkg string, input map[string]any) (any, error) {
	binary := d.config.BinaryPath
	if binary == "" {
		binary = "opa"
	}
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	args := []string{
		"eval",
		"--format", "json",
		"--stdin-input",
		"--data", d.loader.Root(),
		"data." + pkg,
	}
	if d.config.EvalMode == EvalDevelopment {
		args = append(args, "--explain", "notes")
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("policy binary: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	// Engine CLI envelope: result[0].expressions[0].value
	var envelope struct {
		Result []struct {
			Expressions []struct {
				Value any `json:"value"`
			} `json:"expressions"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &envelope); err != nil {
		return nil, fmt.Errorf("non-JSON engine output: %w", err)
	}
	if len(envelope.Result) == 0 || len(envelope.Result[0].Expressions) == 0 {
		return nil, fmt.Errorf("engine returned an empty result set")
	}
	return envelope.Result[0].Expressions[0].Value, nil
}

// queryServer POSTs the input to the policy server's data API.
func (d *Driver) queryServer(ctx context.Context, pkg string, input map[string]any) (any, error) {
	body, err := json.Marshal(map[string]any{"input": input})
	if err != nil {
		return nil, fmt.Errorf("marshal input: %w", err)
	}

	url := strings.TrimRight(d.config.ServerURL, "/") + "/v1/data/" + strings.ReplaceAll(pkg, ".", "/")
	if d.config.EvalMode == EvalDevelopment {
		url += "?explain=notes"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("policy server: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("policy server returned HTTP %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Result any `json:"result"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("non-JSON engine output: %w", err)
	}
	if envelope.Result == nil {
		return nil, fmt.Errorf("engine returned no result for package %s", pkg)
	}
	return envelope.Result, nil
}
