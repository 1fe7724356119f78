package main

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/aicert/pkg/report"
)

// runVerifyCmd implements `aicert verify`: checks a signed conformance
// attestation against an Ed25519 public key.
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)
	tokenPath := cmd.String("attestation", "", "Path to the attestation token file (REQUIRED)")
	keyPath := cmd.String("key", "", "Path to the PEM-encoded Ed25519 public key (REQUIRED)")
	jsonOutput := cmd.Bool("json", false, "Print the verified claims as JSON")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *tokenPath == "" || *keyPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --attestation and --key are required")
		return 2
	}

	token, err := os.ReadFile(*tokenPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read attestation: %v\n", err)
		return 2
	}
	pub, err := loadPublicKey(*keyPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	claims, err := report.Verify(string(token), pub)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "❌ attestation invalid: %v\n", err)
		return 1
	}

	if *jsonOutput {
		data, _ := json.MarshalIndent(claims, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}
	_, _ = fmt.Fprintf(stdout, "✅ attestation valid\n")
	_, _ = fmt.Fprintf(stdout, "Application:  %s\n", claims.ApplicationName)
	_, _ = fmt.Fprintf(stdout, "Contract:     %s\n", claims.ContractID)
	_, _ = fmt.Fprintf(stdout, "Policy:       %s\n", claims.PolicyPackage)
	_, _ = fmt.Fprintf(stdout, "Content hash: %s\n", claims.ContentHash)
	if claims.ExpiresAt != nil {
		_, _ = fmt.Fprintf(stdout, "Expires:      %s\n", claims.ExpiresAt.Format("2006-01-02"))
	}
	return 0
}

func loadPublicKey(path string) (ed25519.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		// Raw 32-byte key file.
		if len(data) == ed25519.PublicKeySize {
			return ed25519.PublicKey(data), nil
		}
		return nil, fmt.Errorf("key file %s is neither PEM nor a raw Ed25519 key", path)
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key in %s is %T, expected Ed25519", path, parsed)
	}
	return pub, nil
}
