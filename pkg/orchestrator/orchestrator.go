// Package orchestrator fans a contract out to a set of evaluators
// concurrently and folds their results into a single verdict.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator"
	"github.com/Mindburn-Labs/aicert/pkg/observability"
	"github.com/Mindburn-Labs/aicert/pkg/report"
)

// collectGrace bounds how long collection waits for an evaluator after its
// context deadline has already passed.
const collectGrace = 2 * time.Second

// Orchestrator owns a set of initialized evaluator instances for one run.
// Instances are not shared across runs.
type Orchestrator struct {
	evaluators map[string]evaluator.Evaluator
	configs    map[string]map[string]any
	obs        *observability.Provider
	logger     *slog.Logger
}

// Option adjusts orchestrator construction.
type Option func(*options)

type options struct {
	configs      map[string]map[string]any
	mockFallback *bool
	obs          *observability.Provider
}

// WithConfig overrides the default configuration of one evaluator. Values
// merge over the evaluator's DefaultConfig.
func WithConfig(evaluatorName string, config map[string]any) Option {
	return func(o *options) {
		if o.configs == nil {
			o.configs = make(map[string]map[string]any)
		}
		o.configs[evaluatorName] = config
	}
}

// WithMockFallback sets the run-wide mock fallback flag. It is injected into
// every evaluator's config unless that evaluator's own override already sets
// use_mock_if_unavailable.
func WithMockFallback(allowed bool) Option {
	return func(o *options) { o.mockFallback = &allowed }
}

// WithObservability routes a span and RED metrics through the provider for
// each evaluator run.
func WithObservability(p *observability.Provider) Option {
	return func(o *options) { o.obs = p }
}

// New builds and initializes evaluator instances from the given factories.
// A factory whose evaluator fails Initialize is skipped with a warning;
// construction only fails when no evaluator at all could be initialized.
func New(factories map[string]evaluator.Factory, opts ...Option) (*Orchestrator, error) {
	const op = "orchestrator.New"

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := slog.Default().With("component", "orchestrator")
	instances := make(map[string]evaluator.Evaluator, len(factories))
	configs := make(map[string]map[string]any, len(factories))

	for name, factory := range factories {
		inst := factory()
		config := evaluator.MergeConfig(inst.DefaultConfig(), o.configs[name])
		if o.mockFallback != nil {
			if _, set := o.configs[name][evaluator.ConfigKeyMockFallback]; !set {
				config[evaluator.ConfigKeyMockFallback] = *o.mockFallback
			}
		}
		if err := inst.Initialize(config); err != nil {
			logger.Warn("evaluator failed to initialize, excluded from run",
				"evaluator", name, "error", err)
			continue
		}
		instances[name] = inst
		configs[name] = config
	}

	if len(instances) == 0 {
		return nil, evaluation.Errorf(evaluation.KindInternal, op, "no evaluators could be initialized")
	}
	return &Orchestrator{evaluators: instances, configs: configs, obs: o.obs, logger: logger}, nil
}

// Names returns the initialized evaluator names, sorted.
func (o *Orchestrator) Names() []string {
	names := make([]string, 0, len(o.evaluators))
	for name := range o.evaluators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EvaluateContract runs every evaluator concurrently over the contract and
// returns the result map keyed by evaluator name. An evaluator that misses
// the context deadline contributes a timeout result; the map always has one
// entry per initialized evaluator.
func (o *Orchestrator) EvaluateContract(ctx context.Context, c *contracts.Contract) map[string]evaluation.EvaluationResult {
	ctx, span := otel.Tracer("aicert/orchestrator").Start(ctx, "orchestrator.evaluate_contract")
	span.SetAttributes(
		attribute.String("contract.id", c.ContractID),
		attribute.Int("evaluators.count", len(o.evaluators)),
	)
	defer span.End()

	started := time.Now()
	channels := make(map[string]<-chan evaluation.EvaluationResult, len(o.evaluators))
	finishes := make(map[string]func(error), len(o.evaluators))
	for name, inst := range o.evaluators {
		runCtx := ctx
		if o.obs != nil {
			runCtx, finishes[name] = o.obs.TrackEvaluation(ctx, "evaluator.run",
				attribute.String("evaluator", name))
		}
		channels[name] = inst.EvaluateAsync(runCtx, c)
	}

	results := make(map[string]evaluation.EvaluationResult, len(channels))
	for name, ch := range channels {
		r := o.collect(ctx, name, ch)
		results[name] = r
		if finish := finishes[name]; finish != nil {
			finish(resultError(r))
		}
	}

	o.logger.Info("contract evaluated",
		"contract_id", c.ContractID,
		"evaluators", len(results),
		"compliant", IsCompliant(results),
		"duration", time.Since(started))
	return results
}

// collect waits for one evaluator's result, converting deadline misses into
// timeout results. The grace period lets evaluators that observed the
// cancellation deliver their own partial result first.
func (o *Orchestrator) collect(ctx context.Context, name string, ch <-chan evaluation.EvaluationResult) evaluation.EvaluationResult {
	select {
	case r, ok := <-ch:
		if !ok {
			return evaluation.NewFailedResult(name, evaluation.Errorf(evaluation.KindInternal, name, "evaluator closed its channel without a result"))
		}
		return r
	case <-ctx.Done():
	}

	select {
	case r, ok := <-ch:
		if ok {
			return r
		}
	case <-time.After(collectGrace):
	}
	o.logger.Warn("evaluator timed out", "evaluator", name)
	return evaluation.NewTimeoutResult(name)
}

// resultError surfaces an evaluator failure to the metrics layer. A merely
// non-compliant result is not an error.
func resultError(r evaluation.EvaluationResult) error {
	if msg, ok := r.Details["error"].(string); ok {
		return errors.New(msg)
	}
	return nil
}

// IsCompliant reports whether every evaluator in the map passed. An empty
// map is non-compliant: silence is not a pass.
func IsCompliant(results map[string]evaluation.EvaluationResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !r.Compliant {
			return false
		}
	}
	return true
}

// ProjectReport serializes the result map in the requested format.
func (o *Orchestrator) ProjectReport(results map[string]evaluation.EvaluationResult, format evaluation.ReportFormat) (evaluation.Report, error) {
	return report.ProjectEvaluation(results, IsCompliant(results), format)
}
