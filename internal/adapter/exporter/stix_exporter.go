package exporter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// STIXExporter writes assessments as a STIX 2.1 bundle of URL indicators for
// SIEM ingestion.
type STIXExporter struct{}

func NewSTIXExporter() *STIXExporter {
	return &STIXExporter{}
}

func (e *STIXExporter) Format() string { return "stix" }

// Export writes one bundle. The threat score becomes the indicator confidence.
func (e *STIXExporter) Export(w io.Writer, assessments []domain.Assessment) error {
	bundle := STIXBundle{
		Type:    "bundle",
		ID:      fmt.Sprintf("bundle--%s", uuid.New().String()),
		Objects: []STIXObject{},
	}

	now := time.Now().UTC()
	for _, a := range assessments {
		bundle.Objects = append(bundle.Objects, e.convertToSTIX(a, now))
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to marshal STIX bundle: %w", err)
	}
	return nil
}

func (e *STIXExporter) convertToSTIX(a domain.Assessment, now time.Time) STIXObject {
	var refs []ExternalReference
	for _, source := range a.Sources {
		refs = append(refs, ExternalReference{
			SourceName: source,
			URL:        sourceURL(source),
		})
	}

	labels := []string{strings.ToLower(string(a.Level))}
	if a.Prediction != nil {
		labels = append(labels, "model-"+strings.ToLower(string(a.Prediction.Label)))
	}

	return STIXObject{
		Type:               "indicator",
		SpecVersion:        "2.1",
		ID:                 fmt.Sprintf("indicator--%s", uuid.New().String()),
		Created:            now.Format(time.RFC3339),
		Modified:           now.Format(time.RFC3339),
		Name:               fmt.Sprintf("%s phishing URL", a.Level),
		Pattern:            buildPattern(a.URL),
		PatternType:        "stix",
		ValidFrom:          now.Format(time.RFC3339),
		IndicatorTypes:     indicatorTypes(a),
		Confidence:         a.Score,
		Labels:             labels,
		ExternalReferences: refs,
	}
}

// buildPattern quotes the URL as a STIX string literal.
func buildPattern(rawURL string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(rawURL)
	return fmt.Sprintf("[url:value = '%s']", escaped)
}

func indicatorTypes(a domain.Assessment) []string {
	if a.Malicious {
		return []string{"malicious-activity", "phishing"}
	}
	return []string{"anomalous-activity"}
}

func sourceURL(source string) string {
	urls := map[string]string{
		"alienvault-otx":  "https://otx.alienvault.com",
		"abusech-urlhaus": "https://urlhaus.abuse.ch",
		"openphish":       "https://openphish.com",
		"phishtank":       "https://phishtank.org",
	}
	return urls[source]
}

// STIX 2.1 data structures

type STIXBundle struct {
	Type    string       `json:"type"`
	ID      string       `json:"id"`
	Objects []STIXObject `json:"objects"`
}

type STIXObject struct {
	Type               string              `json:"type"`
	SpecVersion        string              `json:"spec_version"`
	ID                 string              `json:"id"`
	Created            string              `json:"created"`
	Modified           string              `json:"modified"`
	Name               string              `json:"name"`
	Pattern            string              `json:"pattern"`
	PatternType        string              `json:"pattern_type"`
	ValidFrom          string              `json:"valid_from"`
	IndicatorTypes     []string            `json:"indicator_types"`
	Confidence         int                 `json:"confidence"`
	Labels             []string            `json:"labels,omitempty"`
	ExternalReferences []ExternalReference `json:"external_references,omitempty"`
}

type ExternalReference struct {
	SourceName string `json:"source_name"`
	URL        string `json:"url,omitempty"`
}
