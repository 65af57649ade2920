package domain

// Assessment is the result object every collaborator exchanges for one URL:
// the CLI prints one per line, the REST and gRPC handlers return it and the
// ingestion pipeline exports it.
type Assessment struct {
	URL              string          `json:"url"`
	SchemaVersion    SchemaVersion   `json:"schema_version"`
	Features         FeatureRecord   `json:"features"`
	ExtractionFailed bool            `json:"extraction_failed,omitempty"`
	Score            int             `json:"threat_score"`
	Level            ThreatLevel     `json:"threat_level"`
	Breakdown        ScoreBreakdown  `json:"score_breakdown"`
	Malicious        bool            `json:"malicious"`
	SourceCount      int             `json:"source_count"`
	Signals          ExternalSignals `json:"external_signals"`
	Prediction       *Prediction     `json:"prediction,omitempty"`
	Sources          []string        `json:"sources,omitempty"`
	Error            string          `json:"error,omitempty"`
}
