package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Mindburn-Labs/aicert/pkg/evaluation"
)

// WriteFile persists a report under outputDir, creating the directory when
// missing. File names embed the application name and an ISO-8601 timestamp:
// compliance_report_<application_name>_<timestamp>.<ext>.
func WriteFile(r evaluation.Report, outputDir, applicationName string) (string, error) {
	const op = "report.WriteFile"

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", evaluation.NewError(evaluation.KindReport, op, err)
	}

	ext := extensionFor(r.Format)
	stamp := r.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now().UTC()
	}
	name := fmt.Sprintf("compliance_report_%s_%s.%s",
		sanitizeName(applicationName),
		stamp.Format("2006-01-02T15-04-05Z"),
		ext)
	path := filepath.Join(outputDir, name)

	if err := os.WriteFile(path, r.Content, 0o644); err != nil {
		return "", evaluation.NewError(evaluation.KindReport, op, err)
	}
	return path, nil
}

func extensionFor(format evaluation.ReportFormat) string {
	switch format {
	case evaluation.FormatMarkdown:
		return "md"
	case evaluation.FormatPDF:
		return "pdf"
	case evaluation.FormatHTML:
		return "html"
	default:
		return "json"
	}
}

// sanitizeName keeps file names portable.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_' || r == '.':
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "application"
	}
	return b.String()
}
