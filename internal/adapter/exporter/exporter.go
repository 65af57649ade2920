package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// Exporter serializes a finished run.
type Exporter interface {
	Format() string
	Export(w io.Writer, assessments []domain.Assessment) error
}

// JSONLinesExporter writes one assessment object per line.
type JSONLinesExporter struct{}

func (JSONLinesExporter) Format() string { return "jsonl" }

func (JSONLinesExporter) Export(w io.Writer, assessments []domain.Assessment) error {
	enc := json.NewEncoder(w)
	for _, a := range assessments {
		if err := enc.Encode(a); err != nil {
			return fmt.Errorf("failed to encode assessment: %w", err)
		}
	}
	return nil
}

// ByName returns the exporter for "jsonl", "stix" or "cef".
func ByName(format string) (Exporter, error) {
	switch format {
	case "", "jsonl", "json":
		return JSONLinesExporter{}, nil
	case "stix":
		return NewSTIXExporter(), nil
	case "cef":
		return NewCEFExporter(), nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// FilterByLevel keeps assessments at or above min.
func FilterByLevel(assessments []domain.Assessment, min domain.ThreatLevel) []domain.Assessment {
	var out []domain.Assessment
	for _, a := range assessments {
		if a.Level.AtLeast(min) {
			out = append(out, a)
		}
	}
	return out
}
