package main

import (
	"fmt"
	"io"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
//
// Exit codes:
//
//	0 = contract compliant / command succeeded
//	1 = contract non-compliant
//	2 = runtime error or bad usage
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "eval":
		return runEvalCmd(args[2:], stdout, stderr)
	case "eval-all":
		return runEvalAllCmd(args[2:], stdout, stderr)
	case "policies":
		return runPoliciesCmd(args[2:], stdout, stderr)
	case "evaluators":
		return runEvaluatorsCmd(stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "health":
		return runHealthCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorGreen = "\033[32m"
	ColorBlue  = "\033[34m"
	ColorCyan  = "\033[36m"
	ColorGray  = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%saicert %s%s\n", ColorBold+ColorBlue, "v1.0.0", ColorReset)
	fmt.Fprintf(w, "%sAI compliance certification for interaction contracts.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  aicert <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "CERTIFICATION")
	printCommand(w, "eval", "Evaluate a contract against one policy category")
	printCommand(w, "eval-all", "Evaluate a contract against every policy category")
	printCommand(w, "verify", "Verify a signed conformance attestation")

	printSection(w, "INSPECTION")
	printCommand(w, "policies", "List policy folders and their required metrics")
	printCommand(w, "evaluators", "List registered evaluators and their metrics")
	printCommand(w, "health", "Check policy engine reachability")

	printSection(w, "UTILITIES")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-12s%s %s\n", ColorGreen, name, ColorReset, desc)
}
