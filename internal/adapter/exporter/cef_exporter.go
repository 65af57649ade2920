package exporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// CEFExporter writes one Common Event Format line per assessment.
type CEFExporter struct{}

func NewCEFExporter() *CEFExporter {
	return &CEFExporter{}
}

func (e *CEFExporter) Format() string { return "cef" }

func (e *CEFExporter) Export(w io.Writer, assessments []domain.Assessment) error {
	for _, a := range assessments {
		if _, err := io.WriteString(w, formatCEF(a)+"\n"); err != nil {
			return fmt.Errorf("failed to write CEF line: %w", err)
		}
	}
	return nil
}

// formatCEF renders
// CEF:Version|Device Vendor|Device Product|Device Version|Signature ID|Name|Severity|Extension
func formatCEF(a domain.Assessment) string {
	vendor := "Hive"
	product := "Phishwatch"
	version := "1.0"
	signatureID := "phishing-url"
	name := fmt.Sprintf("%s phishing URL", a.Level)
	severity := levelSeverity(a.Level)

	extensions := []string{
		fmt.Sprintf("request=%s", escapeExtension(a.URL)),
		"cn1Label=ThreatScore",
		fmt.Sprintf("cn1=%d", a.Score),
		"cn2Label=SourceCount",
		fmt.Sprintf("cn2=%d", a.SourceCount),
		"cs1Label=ThreatLevel",
		fmt.Sprintf("cs1=%s", a.Level),
		"cs2Label=Sources",
		fmt.Sprintf("cs2=%s", escapeExtension(strings.Join(a.Sources, ","))),
	}
	if a.Prediction != nil {
		extensions = append(extensions,
			"cs3Label=ModelLabel",
			fmt.Sprintf("cs3=%s", a.Prediction.Label),
		)
	}

	return fmt.Sprintf("CEF:0|%s|%s|%s|%s|%s|%d|%s",
		vendor, product, version, signatureID, escapeHeader(name), severity, strings.Join(extensions, " "))
}

// levelSeverity maps a threat level onto the CEF 0-10 severity scale.
func levelSeverity(level domain.ThreatLevel) int {
	switch level {
	case domain.Critical:
		return 10
	case domain.High:
		return 8
	case domain.Medium:
		return 6
	case domain.Low:
		return 4
	}
	return 2
}

func escapeHeader(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return strings.ReplaceAll(s, "|", "\\|")
}

func escapeExtension(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "=", "\\=")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	return s
}
