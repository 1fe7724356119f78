package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/decls"
	"github.com/google/cel-go/common/types"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// CELRule is a single rule inside a JSON bundle. The expression evaluates a
// violation condition over the engine input: true means the rule fired.
type CELRule struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
	Action      string `json:"action"`   // "BLOCK", "WARN", "LOG"
	Priority    int    `json:"priority"` // higher evaluated first
	Enabled     bool   `json:"enabled"`
}

// CELBundle is a versioned collection of CEL rules stored as a .json policy
// file.
type CELBundle struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	Rules     []CELRule `json:"rules"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CELBackend evaluates JSON rule bundles in-process. Compiled programs are
// cached per bundle path.
type CELBackend struct {
	mu       sync.Mutex
	loader   *Loader
	env      *cel.Env
	programs map[string]map[string]cel.Program // bundle path -> rule id -> program
}

// NewCELBackend creates the in-process backend over a loaded policy index.
func NewCELBackend(loader *Loader) *CELBackend {
	env, err := cel.NewEnv(
		cel.VariableDecls(
			decls.NewVariable("input", types.NewMapType(types.StringType, types.DynType)),
		),
	)
	if err != nil {
		// The static environment only fails on programming errors.
		panic(fmt.Sprintf("policy: CEL environment: %v", err))
	}
	return &CELBackend{
		loader:   loader,
		env:      env,
		programs: make(map[string]map[string]cel.Program),
	}
}

// Evaluate runs every enabled rule of every .json bundle in the folder.
// Each bundle normalizes to one Result; a bundle that fails to load or
// compile becomes a status=Error record rather than aborting the batch.
func (b *CELBackend) Evaluate(ctx context.Context, folder string, input map[string]any) ([]Result, error) {
	const op = "policy.CELBackend.Evaluate"

	var bundles []File
	for _, f := range b.loader.PoliciesByFolder(folder) {
		if len(f.Path) > 5 && f.Path[len(f.Path)-5:] == ".json" {
			bundles = append(bundles, f)
		}
	}
	if len(bundles) == 0 {
		return nil, evaluation.Errorf(evaluation.KindNoMatchingPolicy, op, "folder %q has no CEL rule bundles", folder)
	}

	results := make([]Result, 0, len(bundles))
	for _, file := range bundles {
		select {
		case <-ctx.Done():
			return nil, evaluation.NewError(evaluation.KindPolicyEngine, op, ctx.Err())
		default:
		}
		results = append(results, b.evaluateBundle(file, input))
	}
	return results, nil
}

func (b *CELBackend) evaluateBundle(file File, input map[string]any) Result {
	bundle, programs, err := b.compile(file)
	if err != nil {
		return errorResult(file.RelPath, file.Version, nil, err.Error())
	}

	rules := enabledByPriority(bundle.Rules)
	activation := map[string]any{"input": input}

	var violations []map[string]any
	var recommendations []string
	blocked := false
	for _, rule := range rules {
		prg := programs[rule.ID]
		out, _, err := prg.Eval(activation)
		if err != nil {
			// Fail closed on evaluation errors for blocking rules.
			violations = append(violations, map[string]any{
				"rule": rule.ID, "name": rule.Name, "error": err.Error(),
			})
			if rule.Action == "BLOCK" {
				blocked = true
			}
			continue
		}
		fired, ok := out.Value().(bool)
		if !ok || !fired {
			continue
		}
		violations = append(violations, map[string]any{
			"rule": rule.ID, "name": rule.Name, "action": rule.Action, "description": rule.Description,
		})
		switch rule.Action {
		case "BLOCK":
			blocked = true
			recommendations = append(recommendations, fmt.Sprintf("resolve blocking rule %s: %s", rule.ID, rule.Name))
		case "WARN":
			recommendations = append(recommendations, fmt.Sprintf("review warning from rule %s: %s", rule.ID, rule.Name))
		}
	}

	message := fmt.Sprintf("%d/%d enabled rules fired", len(violations), len(rules))
	if len(violations) == 0 {
		message = "all rules satisfied"
	}
	return Result{
		PolicyName:    bundle.Name,
		Version:       bundle.Version,
		OverallResult: !blocked,
		Status:        StatusActive,
		Details: map[string]any{
			"message":    message,
			"violations": violations,
			"rule_count": len(rules),
		},
		Recommendations: recommendations,
		Raw:             map[string]any{"bundle": file.RelPath, "violations": violations},
	}
}

// compile loads and caches the bundle's programs.
func (b *CELBackend) compile(file File) (*CELBundle, map[string]cel.Program, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(file.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("read bundle: %w", err)
	}
	var bundle CELBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, nil, fmt.Errorf("parse bundle: %w", err)
	}
	if bundle.Name == "" {
		bundle.Name = file.RelPath
	}

	if cached, ok := b.programs[file.Path]; ok {
		return &bundle, cached, nil
	}

	programs := make(map[string]cel.Program, len(bundle.Rules))
	for _, rule := range bundle.Rules {
		if !rule.Enabled {
			continue
		}
		ast, issues := b.env.Compile(rule.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, nil, fmt.Errorf("rule %s compilation failed: %w", rule.ID, issues.Err())
		}
		prg, err := b.env.Program(ast)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s program construction failed: %w", rule.ID, err)
		}
		programs[rule.ID] = prg
	}
	b.programs[file.Path] = programs
	return &bundle, programs, nil
}

func enabledByPriority(rules []CELRule) []CELRule {
	out := make([]CELRule, 0, len(rules))
	for _, r := range rules {
		if r.Enabled {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}
