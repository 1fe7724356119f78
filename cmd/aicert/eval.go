package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Mindburn-Labs/aicert/pkg/cache"
	"github.com/Mindburn-Labs/aicert/pkg/config"
	"github.com/Mindburn-Labs/aicert/pkg/contracts"
	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
	"github.com/Mindburn-Labs/aicert/pkg/evaluator/evaluators"
	"github.com/Mindburn-Labs/aicert/pkg/observability"
	"github.com/Mindburn-Labs/aicert/pkg/pipeline"
	"github.com/Mindburn-Labs/aicert/pkg/policy"
	"github.com/Mindburn-Labs/aicert/pkg/report"
	"github.com/Mindburn-Labs/aicert/pkg/report/archive"
)

// evalFlags are the options shared by eval and eval-all.
type evalFlags struct {
	contractPath string
	selector     string
	policyDir    string
	engineMode   string
	formats      multiFlag
	outputDir    string
	profileCode  string
	profilesDir  string
	jsonOutput   bool
	strict       bool
	timeout      time.Duration
}

func bindEvalFlags(cmd *flag.FlagSet, f *evalFlags, cfg *config.Config, withSelector bool) {
	cmd.StringVar(&f.contractPath, "contract", "", "Path to the contract JSON file (REQUIRED)")
	if withSelector {
		cmd.StringVar(&f.selector, "policy", "", "Policy category selector, e.g. healthcare (REQUIRED)")
	}
	cmd.StringVar(&f.policyDir, "policy-dir", cfg.PolicyDir, "Policy root directory")
	cmd.StringVar(&f.engineMode, "engine", "", "Engine mode: embedded, server, or cel (default: auto)")
	cmd.Var(&f.formats, "format", "Report format: json, markdown (repeatable)")
	cmd.StringVar(&f.outputDir, "output", cfg.OutputDir, "Directory for report files (empty disables)")
	cmd.StringVar(&f.profileCode, "profile", "", "Evaluation profile code, e.g. eu")
	cmd.StringVar(&f.profilesDir, "profiles-dir", "profiles", "Directory holding profile_*.yaml files")
	cmd.BoolVar(&f.jsonOutput, "json", false, "Print the combined report JSON to stdout")
	cmd.BoolVar(&f.strict, "strict", false, "Disable mock fallback: exclude evaluators whose dependencies are missing")
	cmd.DurationVar(&f.timeout, "timeout", cfg.EvaluationTimeout, "Evaluation phase timeout")
}

// runEvalCmd implements `aicert eval`.
func runEvalCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	cmd := flag.NewFlagSet("eval", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var f evalFlags
	bindEvalFlags(cmd, &f, cfg, true)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if f.contractPath == "" || f.selector == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --contract and --policy are required")
		return 2
	}

	return evaluateSelectors(stdout, stderr, cfg, &f, []string{f.selector})
}

// runEvalAllCmd implements `aicert eval-all`: the contract runs against
// every top-level policy category.
func runEvalAllCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	cmd := flag.NewFlagSet("eval-all", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var f evalFlags
	bindEvalFlags(cmd, &f, cfg, false)
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if f.contractPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --contract is required")
		return 2
	}

	loader := policy.NewLoader(f.policyDir)
	if err := loader.Load(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: load policies: %v\n", err)
		return 2
	}
	selectors := topLevelFolders(loader.Folders())
	if len(selectors) == 0 {
		_, _ = fmt.Fprintf(stderr, "Error: no policy folders under %s\n", f.policyDir)
		return 2
	}

	return evaluateSelectors(stdout, stderr, cfg, &f, selectors)
}

func evaluateSelectors(stdout, stderr io.Writer, cfg *config.Config, f *evalFlags, selectors []string) int {
	contract, err := contracts.Load(f.contractPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx := context.Background()
	obs, err := newObservability(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: telemetry disabled: %v\n", err)
	}
	if obs != nil {
		defer func() { _ = obs.Shutdown(ctx) }()
	}

	p, err := buildPipeline(cfg, f, obs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	allCompliant := true
	for _, selector := range selectors {
		outcome, err := p.Certify(ctx, contract, selector)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %s: %v\n", selector, err)
			return 2
		}

		if f.jsonOutput {
			data, _ := json.MarshalIndent(outcome.Combined, "", "  ")
			_, _ = fmt.Fprintln(stdout, string(data))
		} else {
			printOutcome(stdout, outcome)
		}
		if !outcome.Combined.OverallCompliant {
			allCompliant = false
		}
	}

	if !allCompliant {
		return 1
	}
	return 0
}

// newObservability constructs and installs the OTel provider when an OTLP
// endpoint is configured. A nil provider means telemetry stays off.
func newObservability(ctx context.Context, cfg *config.Config) (*observability.Provider, error) {
	if cfg.OTLPEndpoint == "" {
		return nil, nil
	}
	oc := observability.DefaultConfig()
	oc.OTLPEndpoint = cfg.OTLPEndpoint
	oc.Insecure = cfg.OTLPInsecure
	return observability.New(ctx, oc)
}

// buildPipeline assembles the pipeline from config, flags, and the optional
// evaluation profile.
func buildPipeline(cfg *config.Config, f *evalFlags, obs *observability.Provider) (*pipeline.Pipeline, error) {
	registry := evaluators.InitializeOnce()

	loader := policy.NewLoader(f.policyDir)
	if err := loader.Load(); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	driver, err := policy.NewDriver(driverConfig(cfg, f.engineMode), loader)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithTimeout(f.timeout),
		pipeline.WithFormats(parseFormats(f.formats)...),
	}
	if obs != nil {
		opts = append(opts, pipeline.WithObservability(obs))
	}
	if f.strict {
		opts = append(opts, pipeline.WithMockFallback(false))
	}
	if f.outputDir != "" {
		opts = append(opts, pipeline.WithOutputDir(f.outputDir))
	}
	if cfg.RedisAddr != "" {
		opts = append(opts, pipeline.WithCache(cache.New(cache.Config{Addr: cfg.RedisAddr})))
	}
	if cfg.ArchiveDSN != "" {
		store, err := openArchive(cfg.ArchiveDSN)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithArchive(store))
	}

	if f.profileCode != "" {
		profile, err := config.LoadProfile(f.profilesDir, f.profileCode)
		if err != nil {
			return nil, err
		}
		for _, name := range registry.Names() {
			if overrides := profile.ConfigFor(name); len(overrides) > 0 {
				opts = append(opts, pipeline.WithEvaluatorConfig(name, overrides))
			}
		}
		if len(profile.CustomParams) > 0 {
			opts = append(opts, pipeline.WithCustomParams(profile.CustomParams))
		}
	}

	return pipeline.New(registry, loader, driver, opts...), nil
}

// driverConfig resolves the engine mode: an explicit flag wins, then the
// configured external server, then the embedded binary.
func driverConfig(cfg *config.Config, flagMode string) policy.DriverConfig {
	mode := policy.Mode(flagMode)
	if mode == "" {
		switch {
		case cfg.UseExternalServer && cfg.EngineServerURL != "":
			mode = policy.ModeServer
		default:
			mode = policy.ModeEmbedded
		}
	}

	evalMode := policy.EvalProduction
	if cfg.EngineDebug {
		evalMode = policy.EvalDevelopment
	}

	return policy.DriverConfig{
		Mode:            mode,
		BinaryPath:      cfg.EngineBinaryPath,
		ServerURL:       cfg.EngineServerURL,
		Timeout:         cfg.PolicyTimeout,
		EvalMode:        evalMode,
		SkipHealthCheck: cfg.CI,
	}
}

func parseFormats(raw []string) []evaluation.ReportFormat {
	if len(raw) == 0 {
		return []evaluation.ReportFormat{evaluation.FormatJSON}
	}
	formats := make([]evaluation.ReportFormat, 0, len(raw))
	for _, r := range raw {
		formats = append(formats, evaluation.ReportFormat(strings.ToLower(r)))
	}
	return formats
}

// topLevelFolders reduces the folder list to its first path segments.
func topLevelFolders(folders []string) []string {
	seen := make(map[string]bool)
	var top []string
	for _, folder := range folders {
		head := folder
		if idx := strings.Index(folder, "/"); idx > 0 {
			head = folder[:idx]
		}
		if head != "" && !seen[head] {
			seen[head] = true
			top = append(top, head)
		}
	}
	return top
}

func printOutcome(w io.Writer, outcome *pipeline.Outcome) {
	c := outcome.Combined
	verdict := ColorGreen + "PASS" + ColorReset
	if !c.OverallCompliant {
		verdict = "\033[31mFAIL" + ColorReset
	}
	_, _ = fmt.Fprintf(w, "\n%s%s%s  [%s]\n", ColorBold, c.ApplicationName, ColorReset, verdict)
	_, _ = fmt.Fprintf(w, "Policy folder: %s\n", c.PolicyFolder)
	_, _ = fmt.Fprintf(w, "Content hash:  %s\n\n", c.ContentHash)

	for _, name := range sortedResultNames(c) {
		r := c.EvaluationResults[name]
		mark := "✅"
		if !r.Compliant {
			mark = "❌"
		}
		_, _ = fmt.Fprintf(w, "  %s  %-28s %.3f  %s\n", mark, name, r.Score, r.Reason)
	}

	if c.PolicyError != "" {
		_, _ = fmt.Fprintf(w, "\nPolicy engine error: %s\n", c.PolicyError)
	}
	for _, pr := range c.PolicyResults {
		mark := "✅"
		if !pr.OverallResult {
			mark = "❌"
		}
		_, _ = fmt.Fprintf(w, "  %s  policy %s (%s)\n", mark, pr.PolicyName, pr.Status)
	}

	for _, path := range outcome.ReportPaths {
		_, _ = fmt.Fprintf(w, "\nReport written: %s\n", path)
	}
	if outcome.Attestation != "" {
		_, _ = fmt.Fprintf(w, "Attestation issued (%d bytes)\n", len(outcome.Attestation))
	}
}

func sortedResultNames(c *report.Combined) []string {
	names := make([]string, 0, len(c.EvaluationResults))
	for name := range c.EvaluationResults {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// openArchive picks the archive backend from the DSN: postgres URLs go to
// PostgreSQL, anything else is treated as a SQLite file path.
func openArchive(dsn string) (archive.Store, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open report archive: %w", err)
		}
		return archive.NewPostgresStore(db)
	}
	return archive.OpenSQLite(dsn)
}

// runEvaluatorsCmd implements `aicert evaluators`.
func runEvaluatorsCmd(stdout, _ io.Writer) int {
	registry := evaluators.InitializeOnce()
	for _, name := range registry.Names() {
		_, _ = fmt.Fprintf(stdout, "%s%s%s\n", ColorBold, name, ColorReset)
		for _, metric := range registry.MetricsFor(name) {
			if strings.HasPrefix(metric, "metrics.") {
				continue // alias form, implied
			}
			_, _ = fmt.Fprintf(stdout, "  %s\n", metric)
		}
	}
	return 0
}

// runPoliciesCmd implements `aicert policies`.
func runPoliciesCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	cmd := flag.NewFlagSet("policies", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	policyDir := cmd.String("policy-dir", cfg.PolicyDir, "Policy root directory")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	loader := policy.NewLoader(*policyDir)
	if err := loader.Load(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: load policies: %v\n", err)
		return 2
	}

	for _, folder := range loader.Folders() {
		_, _ = fmt.Fprintf(stdout, "%s%s%s\n", ColorBold, folder, ColorReset)
		for _, metric := range loader.RequiredMetricsForFolder(folder) {
			_, _ = fmt.Fprintf(stdout, "  requires %s\n", metric)
		}
	}
	return 0
}

// multiFlag allows repeatable flag values (e.g. --format json --format markdown).
type multiFlag []string

func (f *multiFlag) String() string { return fmt.Sprintf("%v", *f) }
func (f *multiFlag) Set(value string) error {
	*f = append(*f, value)
	return nil
}
