package ports

import (
	"context"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// ThreatProvider downloads one threat feed.
type ThreatProvider interface {
	FetchIOCS(ctx context.Context) ([]domain.IOC, error)
	Name() string
}

// ReputationChecker asks a third-party service about a single URL.
type ReputationChecker interface {
	Check(ctx context.Context, rawURL string) (domain.ExternalSignals, error)
	Name() string
}

// Classifier is a trained model over one feature schema. Predict returns the
// phishing probability in [0,1].
type Classifier interface {
	Predict(rec domain.FeatureRecord) (float64, error)
	Version() string
	Schema() domain.SchemaVersion
}

// AssessmentRecorder observes finished assessments (metrics, audit).
type AssessmentRecorder interface {
	RecordAssessment(a domain.Assessment)
}

// FeedRecorder observes feed downloads.
type FeedRecorder interface {
	RecordFeedFetch(provider string, iocs int, err error)
}

// LookupRecorder observes reputation lookups. result is "malicious", "clean"
// or "failed".
type LookupRecorder interface {
	RecordLookup(checker, result string)
}
