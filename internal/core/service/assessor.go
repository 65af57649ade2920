package service

import (
	"encoding/json"
	"fmt"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/ports"
)

// Request is one URL to assess together with what the caller already knows
// about it.
type Request struct {
	URL         string                 `json:"url"`
	SourceCount int                    `json:"source_count"`
	Signals     domain.ExternalSignals `json:"external_signals"`

	// Invalid is set by readers for input that could not be decoded. URL then
	// holds the raw input and Assess reports the error instead of scoring.
	Invalid error `json:"-"`
}

// UnmarshalJSON reads source_count loosely: numeric strings and floats are
// accepted, anything else counts as zero.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw struct {
		URL         string                 `json:"url"`
		SourceCount any                    `json:"source_count"`
		Signals     domain.ExternalSignals `json:"external_signals"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	count, _ := domain.CoerceCount(raw.SourceCount)
	*r = Request{URL: raw.URL, SourceCount: count, Signals: raw.Signals}
	return nil
}

// Options configures an Assessor. Zero values select the default schema, the
// default threshold and no classifier. A non-nil Threshold is used as given
// after clamping into [0,1], so an explicit 0 stays 0.
type Options struct {
	Schema     domain.SchemaVersion
	Threshold  *float64
	Classifier ports.Classifier
	Recorder   ports.AssessmentRecorder
}

// Assessor combines feature extraction, rule-based scoring and the optional
// trained classifier into one Assessment. It keeps no per-call state and is
// safe for concurrent use.
type Assessor struct {
	extractor  *domain.Extractor
	threshold  float64
	classifier ports.Classifier
	recorder   ports.AssessmentRecorder
}

func NewAssessor(opts Options) (*Assessor, error) {
	schema := opts.Schema
	if schema == "" {
		schema = domain.DefaultSchema
	}
	extractor, err := domain.NewExtractor(schema)
	if err != nil {
		return nil, err
	}

	if opts.Classifier != nil && opts.Classifier.Schema() != "" && opts.Classifier.Schema() != schema {
		return nil, fmt.Errorf("%w: extractor uses %s, model uses %s",
			domain.ErrSchemaMismatch, schema, opts.Classifier.Schema())
	}

	threshold := domain.DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	return &Assessor{
		extractor:  extractor,
		threshold:  domain.NormalizeThreshold(threshold),
		classifier: opts.Classifier,
		recorder:   opts.Recorder,
	}, nil
}

func (a *Assessor) Schema() domain.SchemaVersion { return a.extractor.Schema() }

func (a *Assessor) Threshold() float64 { return a.threshold }

// Extract exposes the assessor's extractor for feature-only callers.
func (a *Assessor) Extract(rawURL string) (domain.FeatureRecord, error) {
	return a.extractor.Extract(rawURL)
}

// Assess never fails: extraction and prediction problems are reported in the
// Error field while the rule-based score is still filled in. A request marked
// Invalid gets an unscored result carrying only the error.
func (a *Assessor) Assess(req Request) domain.Assessment {
	if req.Invalid != nil {
		return a.record(domain.Assessment{
			URL:              req.URL,
			SchemaVersion:    a.extractor.Schema(),
			Features:         a.extractor.FailedRecord(),
			ExtractionFailed: true,
			Level:            domain.Classify(0),
			Error:            "invalid input: " + req.Invalid.Error(),
		})
	}

	sourceCount := max(req.SourceCount, 0)
	signals := req.Signals.Normalize()

	features, err := a.extractor.Extract(req.URL)
	breakdown := domain.ScoreDetailed(req.URL, sourceCount, signals)

	out := domain.Assessment{
		URL:           req.URL,
		SchemaVersion: a.extractor.Schema(),
		Features:      features,
		Score:         breakdown.Total,
		Level:         domain.Classify(breakdown.Total),
		Breakdown:     breakdown,
		Malicious:     breakdown.Total >= domain.MaliciousScore,
		SourceCount:   sourceCount,
		Signals:       signals,
	}

	switch {
	case err != nil:
		out.ExtractionFailed = true
		out.Error = err.Error()
	case a.classifier != nil:
		prediction, err := a.predict(features)
		if err != nil {
			out.Error = "prediction: " + err.Error()
		} else {
			out.Prediction = prediction
		}
	}

	return a.record(out)
}

func (a *Assessor) record(out domain.Assessment) domain.Assessment {
	if a.recorder != nil {
		a.recorder.RecordAssessment(out)
	}
	return out
}

func (a *Assessor) predict(features domain.FeatureRecord) (*domain.Prediction, error) {
	probability, err := a.classifier.Predict(features)
	if err != nil {
		return nil, err
	}
	return &domain.Prediction{
		Label:        domain.ApplyThreshold(probability, a.threshold),
		Probability:  probability,
		Threshold:    a.threshold,
		ModelVersion: a.classifier.Version(),
	}, nil
}
