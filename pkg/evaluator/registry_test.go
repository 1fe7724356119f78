package evaluator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

type fakeEvaluator struct {
	name    string
	metrics []string
}

func (f *fakeEvaluator) Name() string                    { return f.name }
func (f *fakeEvaluator) SupportedMetrics() []string      { return f.metrics }
func (f *fakeEvaluator) DefaultConfig() map[string]any   { return map[string]any{"threshold": 0.5} }
func (f *fakeEvaluator) Initialize(map[string]any) error { return nil }

func (f *fakeEvaluator) Evaluate(_ context.Context, _ *contracts.Contract) evaluation.EvaluationResult {
	return evaluation.NewResult(f.name, 1.0, 0.5, "ok", nil)
}

func (f *fakeEvaluator) EvaluateAsync(ctx context.Context, c *contracts.Contract) <-chan evaluation.EvaluationResult {
	return RunAsync(ctx, f.name, func(ctx context.Context) evaluation.EvaluationResult {
		return f.Evaluate(ctx, c)
	})
}

func fakeFactory(name string, metrics ...string) Factory {
	return func() Evaluator { return &fakeEvaluator{name: name, metrics: metrics} }
}

func TestRegistryRegisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeFactory("fairness", "fairness.score"))
	r.Register(fakeFactory("fairness", "fairness.other"))

	assert.Equal(t, []string{"fairness"}, r.Names())
	// The second registration is dropped wholesale, including its metrics.
	assert.Equal(t, []string{"fairness.score", "metrics.fairness.score"}, r.MetricsFor("fairness"))
}

func TestRegistryDiscover(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeFactory("fairness", "fairness.score"))
	r.Register(fakeFactory("content_safety", "content_safety.score", "content_safety.toxic_fraction"))

	selected, uncovered := r.Discover([]string{
		"fairness.score",
		"metrics.content_safety.score",
		"nonexistent.metric",
	})

	assert.Len(t, selected, 2)
	assert.Contains(t, selected, "fairness")
	assert.Contains(t, selected, "content_safety")
	assert.Equal(t, []string{"nonexistent.metric"}, uncovered)
}

func TestRegistryDiscoverAliasFallback(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeFactory("fairness", "fairness.score"))

	// The prefixed form resolves even when the caller mixes styles.
	selected, uncovered := r.Discover([]string{"metrics.fairness.score"})
	assert.Len(t, selected, 1)
	assert.Empty(t, uncovered)
}

func TestRegistryFactory(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeFactory("fairness", "fairness.score"))

	f, ok := r.Factory("fairness")
	require.True(t, ok)
	assert.Equal(t, "fairness", f().Name())

	_, ok = r.Factory("missing")
	assert.False(t, ok)
}

func TestRunAsyncDeliversOneResult(t *testing.T) {
	ch := RunAsync(context.Background(), "fake", func(context.Context) evaluation.EvaluationResult {
		return evaluation.NewResult("fake", 0.9, 0.5, "done", nil)
	})

	r, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, "fake", r.EvaluatorName)

	_, ok = <-ch
	assert.False(t, ok, "channel closes after the single result")
}

func TestRunAsyncCoercesPanics(t *testing.T) {
	ch := RunAsync(context.Background(), "fake", func(context.Context) evaluation.EvaluationResult {
		panic("boom")
	})

	r := <-ch
	assert.False(t, r.Compliant)
	assert.Contains(t, r.Reason, "panic")
	assert.Contains(t, r.Reason, "boom")
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry()
	r.Register(fakeFactory("fairness", "fairness.score"))
	r.Register(fakeFactory("content_safety", "content_safety.score"))

	all := r.All()
	require.Len(t, all, 2)
	require.Contains(t, all, "fairness")
	require.Contains(t, all, "content_safety")

	// Callers get a copy, not the registry's own map.
	delete(all, "fairness")
	assert.Len(t, r.All(), 2)
}
