package evaluator

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Factory constructs a fresh evaluator instance. Evaluator instances are not
// required to be reentrant, so the orchestrator builds new ones per run.
type Factory func() Evaluator

// metricAliasPrefix: policy folders in the wild declare both "fairness.score"
// and "metrics.fairness.score"; both forms resolve to the same evaluators.
const metricAliasPrefix = "metrics."

// Registry maps metric identifiers to the evaluators that advertise them.
// It is written once during InitializeOnce and read-only afterwards.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory  // evaluator name -> factory
	byMetric  map[string][]string // metric id -> evaluator names
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		byMetric:  make(map[string][]string),
		logger:    slog.Default().With("component", "evaluator-registry"),
	}
}

// Register indexes an evaluator factory under every metric it advertises.
// Registration is idempotent by evaluator name.
func (r *Registry) Register(factory Factory) {
	probe := factory()
	name := probe.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return
	}
	r.factories[name] = factory
	for _, metric := range probe.SupportedMetrics() {
		r.indexMetric(metric, name)
		r.indexMetric(metricAliasPrefix+metric, name)
	}
}

func (r *Registry) indexMetric(metric, name string) {
	for _, existing := range r.byMetric[metric] {
		if existing == name {
			return
		}
	}
	r.byMetric[metric] = append(r.byMetric[metric], name)
}

// Discover returns factories for every evaluator that advertises at least
// one of the required metrics, de-duplicated by name, plus the list of
// metrics no registered evaluator covers. Uncovered metrics are logged, not
// fatal: the policy layer decides how to treat them.
func (r *Registry) Discover(required []string) (map[string]Factory, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	selected := make(map[string]Factory)
	var uncovered []string
	for _, metric := range required {
		names, ok := r.byMetric[metric]
		if !ok {
			names, ok = r.byMetric[strings.TrimPrefix(metric, metricAliasPrefix)]
		}
		if !ok || len(names) == 0 {
			uncovered = append(uncovered, metric)
			continue
		}
		for _, name := range names {
			selected[name] = r.factories[name]
		}
	}
	if len(uncovered) > 0 {
		sort.Strings(uncovered)
		r.logger.Warn("required metrics not covered by any evaluator", "metrics", uncovered)
	}
	return selected, uncovered
}

// All returns every registered factory keyed by evaluator name. Callers get
// a copy; the registry's own map stays private.
func (r *Registry) All() map[string]Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make(map[string]Factory, len(r.factories))
	for name, f := range r.factories {
		all[name] = f
	}
	return all
}

// Names returns all registered evaluator names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Factory returns the factory for a named evaluator.
func (r *Registry) Factory(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// MetricsFor returns the metric identifiers currently indexed, sorted.
// Alias forms are included.
func (r *Registry) MetricsFor(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var metrics []string
	for metric, names := range r.byMetric {
		for _, n := range names {
			if n == name {
				metrics = append(metrics, metric)
				break
			}
		}
	}
	sort.Strings(metrics)
	return metrics
}

// --- process-wide registry ---

var (
	defaultRegistry     = NewRegistry()
	defaultRegistryOnce sync.Once
	builtins            []Factory
	builtinsMu          sync.Mutex
)

// RegisterBuiltin queues a factory for one-shot registration. Called from
// the evaluators package at wiring time, never from init side effects in
// unrelated packages.
func RegisterBuiltin(factory Factory) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	builtins = append(builtins, factory)
}

// InitializeOnce registers every built-in evaluator into the process-wide
// registry exactly once. Re-entry is a no-op.
func InitializeOnce() *Registry {
	defaultRegistryOnce.Do(func() {
		builtinsMu.Lock()
		defer builtinsMu.Unlock()
		for _, f := range builtins {
			defaultRegistry.Register(f)
		}
	})
	return defaultRegistry
}

// Default returns the process-wide registry. Callers should run
// InitializeOnce at process start before relying on discovery.
func Default() *Registry { return defaultRegistry }
