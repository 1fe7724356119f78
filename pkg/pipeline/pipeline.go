// Package pipeline runs the full certification flow: contract validation,
// concurrent evaluation, policy engine execution, and combined report
// emission.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/aicert/pkg/cache"
	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
	"github.com/Mindburn-Labs/aicert/pkg/observability"
	"github.com/Mindburn-Labs/aicert/pkg/orchestrator"
	"github.com/Mindburn-Labs/aicert/pkg/policy"
	"github.com/Mindburn-Labs/aicert/pkg/report"
	"github.com/Mindburn-Labs/aicert/pkg/report/archive"
	"github.com/Mindburn-Labs/aicert/pkg/report/sink"
)

const defaultEvaluationTimeout = 120 * time.Second

// Pipeline wires the evaluator registry, the policy index, and the engine
// driver into one certification flow.
type Pipeline struct {
	registry *evaluator.Registry
	loader   *policy.Loader
	driver   *policy.Driver
	logger   *slog.Logger

	timeout          time.Duration
	outputDir        string
	formats          []evaluation.ReportFormat
	evaluatorConfigs map[string]map[string]any
	customParams     map[string]any
	mockFallback     *bool
	obs              *observability.Provider

	cache    *cache.EvaluationCache
	archive  archive.Store
	sink     sink.Sink
	attestor *report.Attestor
}

// Option configures optional pipeline behavior.
type Option func(*Pipeline)

// WithTimeout bounds the evaluation phase. The policy phase is bounded
// separately by the driver's own timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.timeout = d }
}

// WithOutputDir enables report file emission into dir.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) { p.outputDir = dir }
}

// WithFormats selects the report formats to emit. Defaults to JSON.
func WithFormats(formats ...evaluation.ReportFormat) Option {
	return func(p *Pipeline) { p.formats = formats }
}

// WithEvaluatorConfig overrides one evaluator's configuration for every run.
func WithEvaluatorConfig(name string, config map[string]any) Option {
	return func(p *Pipeline) {
		if p.evaluatorConfigs == nil {
			p.evaluatorConfigs = make(map[string]map[string]any)
		}
		p.evaluatorConfigs[name] = config
	}
}

// WithCustomParams merges extra parameters into the policy engine input.
func WithCustomParams(params map[string]any) Option {
	return func(p *Pipeline) { p.customParams = params }
}

// WithMockFallback sets the run-wide mock fallback flag for every evaluator
// that does not override use_mock_if_unavailable itself. Pass false for
// strict mode: evaluators missing a real dependency are excluded instead of
// degrading to the pattern fallback.
func WithMockFallback(allowed bool) Option {
	return func(p *Pipeline) { p.mockFallback = &allowed }
}

// WithObservability routes evaluation spans and RED metrics through the
// provider.
func WithObservability(obs *observability.Provider) Option {
	return func(p *Pipeline) { p.obs = obs }
}

// WithCache short-circuits the evaluation phase for unchanged contracts.
func WithCache(c *cache.EvaluationCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithArchive persists every combined result.
func WithArchive(store archive.Store) Option {
	return func(p *Pipeline) { p.archive = store }
}

// WithSink publishes rendered reports to object storage.
func WithSink(s sink.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithAttestor signs a conformance attestation for compliant runs.
func WithAttestor(a *report.Attestor) Option {
	return func(p *Pipeline) { p.attestor = a }
}

// New assembles a pipeline.
func New(registry *evaluator.Registry, loader *policy.Loader, driver *policy.Driver, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: registry,
		loader:   loader,
		driver:   driver,
		logger:   slog.Default().With("component", "pipeline"),
		timeout:  defaultEvaluationTimeout,
		formats:  []evaluation.ReportFormat{evaluation.FormatJSON},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Outcome is what one certification run produced.
type Outcome struct {
	Combined    *report.Combined
	Reports     []evaluation.Report
	ReportPaths []string
	Attestation string
}

// Certify runs the full flow for one contract against the policy folder
// matching selector.
//
// Failure semantics: contract validation errors and an unmatched selector
// abort the run; evaluator failures and policy engine unavailability do not.
// An unreachable engine yields a combined report with PolicyError set and
// OverallCompliant forced false.
func (p *Pipeline) Certify(ctx context.Context, c *contracts.Contract, selector string) (*Outcome, error) {
	const op = "pipeline.Certify"

	ctx, span := otel.Tracer("aicert/pipeline").Start(ctx, "pipeline.certify")
	span.SetAttributes(
		attribute.String("contract.id", c.ContractID),
		attribute.String("policy.selector", selector),
	)
	defer span.End()

	if err := c.Validate(); err != nil {
		return nil, err
	}

	folders := p.loader.FindMatchingFolders(selector)
	if len(folders) == 0 {
		return nil, evaluation.Errorf(evaluation.KindNoMatchingPolicy, op, "selector %q matched no policy folders", selector)
	}
	folder := folders[0]

	results, evaluatorNames, err := p.evaluate(ctx, c, folder)
	if err != nil {
		return nil, err
	}

	combined := &report.Combined{
		ContractID:        c.ContractID,
		ApplicationName:   c.ApplicationName,
		PolicyFolder:      folder,
		PolicyPackage:     p.loader.PackagePath(folder),
		EvaluationResults: results,
		GeneratedAt:       time.Now().UTC(),
	}

	p.runPolicies(ctx, c, folder, results, combined)

	combined.OverallCompliant = orchestrator.IsCompliant(results) &&
		combined.PolicyError == "" && policy.AllPassed(combined.PolicyResults)
	if err := combined.SealHash(); err != nil {
		return nil, err
	}

	outcome := &Outcome{Combined: combined}
	if err := p.emit(ctx, combined, outcome); err != nil {
		return nil, err
	}

	p.logger.Info("certification complete",
		"contract_id", c.ContractID,
		"application", c.ApplicationName,
		"policy_folder", folder,
		"compliant", combined.OverallCompliant,
		"evaluators", len(evaluatorNames))
	return outcome, nil
}

// evaluate resolves the folder's required metrics to evaluators and runs
// them under the evaluation deadline, consulting the cache first. A folder
// that declares no required metrics gets the full registered suite.
func (p *Pipeline) evaluate(ctx context.Context, c *contracts.Contract, folder string) (map[string]evaluation.EvaluationResult, []string, error) {
	required := p.loader.RequiredMetricsForFolder(folder)
	var factories map[string]evaluator.Factory
	if len(required) == 0 {
		factories = p.registry.All()
		p.logger.Info("no required metrics declared, running every registered evaluator", "folder", folder)
	} else {
		var uncovered []string
		factories, uncovered = p.registry.Discover(required)
		if len(uncovered) > 0 {
			p.logger.Warn("metrics without evaluator coverage", "folder", folder, "metrics", uncovered)
		}
	}

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}

	var cacheKey string
	if p.cache != nil {
		key, err := cache.Key(c, names)
		if err == nil {
			cacheKey = key
			if cached := p.cache.Get(ctx, key); cached != nil {
				p.logger.Info("evaluation served from cache", "contract_id", c.ContractID)
				return cached, names, nil
			}
		}
	}

	var orchOpts []orchestrator.Option
	for name, config := range p.evaluatorConfigs {
		orchOpts = append(orchOpts, orchestrator.WithConfig(name, config))
	}
	if p.mockFallback != nil {
		orchOpts = append(orchOpts, orchestrator.WithMockFallback(*p.mockFallback))
	}
	if p.obs != nil {
		orchOpts = append(orchOpts, orchestrator.WithObservability(p.obs))
	}
	orch, err := orchestrator.New(factories, orchOpts...)
	if err != nil {
		return nil, nil, err
	}

	evalCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	results := orch.EvaluateContract(evalCtx, c)

	if p.cache != nil && cacheKey != "" {
		p.cache.Set(ctx, cacheKey, results)
	}
	return results, names, nil
}

// runPolicies executes the policy phase and folds engine unavailability into
// the combined report instead of failing the run.
func (p *Pipeline) runPolicies(ctx context.Context, c *contracts.Contract, folder string, results map[string]evaluation.EvaluationResult, combined *report.Combined) {
	contractMap, err := c.ToMap()
	if err != nil {
		p.logger.Error("contract not serializable for policy input", "error", err)
		combined.PolicyError = err.Error()
		return
	}
	input := map[string]any{
		"contract":   contractMap,
		"evaluation": evaluationInput(results),
	}
	policyResults, err := p.driver.EvaluatePolicyCategory(ctx, folder, input, p.customParams)
	if err != nil {
		p.logger.Error("policy phase failed", "folder", folder, "error", err)
		combined.PolicyError = err.Error()
		return
	}
	combined.PolicyResults = policyResults
}

// evaluationInput flattens results for policy consumption: policies address
// metrics as evaluation.<name>.score / .compliant.
func evaluationInput(results map[string]evaluation.EvaluationResult) map[string]any {
	out := make(map[string]any, len(results))
	for name, r := range results {
		entry := map[string]any{
			"compliant": r.Compliant,
			"score":     r.Score,
			"reason":    r.Reason,
		}
		if r.Threshold != nil {
			entry["threshold"] = *r.Threshold
		}
		if len(r.Details) > 0 {
			entry["details"] = r.Details
		}
		out[name] = entry
	}
	return out
}

// emit renders, writes, publishes, archives, and attests the combined
// result. Emission errors after the verdict is sealed abort the run: a
// report the caller cannot retrieve is a failed certification.
func (p *Pipeline) emit(ctx context.Context, combined *report.Combined, outcome *Outcome) error {
	for _, format := range p.formats {
		r, err := report.ProjectCombined(combined, format)
		if err != nil {
			return err
		}
		outcome.Reports = append(outcome.Reports, r)

		if p.outputDir != "" {
			path, err := report.WriteFile(r, p.outputDir, combined.ApplicationName)
			if err != nil {
				return err
			}
			outcome.ReportPaths = append(outcome.ReportPaths, path)
			if combined.ReportPath == "" {
				combined.ReportPath = path
			}
		}

		if p.sink != nil {
			key := combined.ApplicationName + "/" + combined.ContentHash + "." + string(format)
			if _, err := p.sink.Put(ctx, key, r); err != nil {
				return err
			}
		}
	}

	if p.archive != nil {
		rec := &archive.Record{
			ContractID:      combined.ContractID,
			ApplicationName: combined.ApplicationName,
			PolicyFolder:    combined.PolicyFolder,
			ContentHash:     combined.ContentHash,
			Compliant:       combined.OverallCompliant,
			Combined:        combined,
		}
		if err := p.archive.Save(ctx, rec); err != nil {
			return err
		}
	}

	if p.attestor != nil && combined.OverallCompliant {
		token, err := p.attestor.Attest(combined)
		if err != nil {
			return err
		}
		outcome.Attestation = token
	}
	return nil
}
