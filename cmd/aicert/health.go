package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/aicert/pkg/config"
	"github.com/Mindburn-Labs/aicert/pkg/policy"
)

// runHealthCmd implements `aicert health`: a construction-time reachability
// check against the configured policy engine.
func runHealthCmd(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	cmd := flag.NewFlagSet("health", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	policyDir := cmd.String("policy-dir", cfg.PolicyDir, "Policy root directory")
	engineMode := cmd.String("engine", "", "Engine mode: embedded, server, or cel (default: auto)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	loader := policy.NewLoader(*policyDir)
	if err := loader.Load(); err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ policy index: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "✅ policy index: %d folders under %s\n", len(loader.Folders()), *policyDir)

	driverCfg := driverConfig(cfg, *engineMode)
	driverCfg.SkipHealthCheck = false
	if _, err := policy.NewDriver(driverCfg, loader); err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ policy engine (%s): %v\n", driverCfg.Mode, err)
		return 2
	}
	_, _ = fmt.Fprintf(stdout, "✅ policy engine reachable (%s mode)\n", driverCfg.Mode)
	return 0
}
