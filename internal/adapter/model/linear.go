package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// LinearModel is a standardized logistic regression over one feature schema.
// It is the artifact written by the trainer and loaded at inference time.
type LinearModel struct {
	ID            uuid.UUID            `json:"id"`
	ModelVersion  string               `json:"version"`
	SchemaVersion domain.SchemaVersion `json:"schema_version"`
	CreatedAt     time.Time            `json:"created_at"`
	Features      []string             `json:"features"`
	Weights       []float64            `json:"weights"`
	Bias          float64              `json:"bias"`
	Mean          []float64            `json:"mean"`
	Std           []float64            `json:"std"`
	Metrics       *Metrics             `json:"metrics,omitempty"`
}

// Predict returns the phishing probability of a feature record.
func (m *LinearModel) Predict(rec domain.FeatureRecord) (float64, error) {
	if rec.Schema() != m.SchemaVersion || rec.Len() != len(m.Weights) {
		return 0, fmt.Errorf("%w: record %s/%d, model %s/%d",
			domain.ErrSchemaMismatch, rec.Schema(), rec.Len(), m.SchemaVersion, len(m.Weights))
	}
	return sigmoid(m.logit(rec.Values())), nil
}

func (m *LinearModel) Version() string {
	if m.ModelVersion != "" {
		return m.ModelVersion
	}
	return m.ID.String()
}

func (m *LinearModel) Schema() domain.SchemaVersion { return m.SchemaVersion }

func (m *LinearModel) logit(x []float64) float64 {
	z := m.Bias
	for i, w := range m.Weights {
		z += w * standardize(x[i], m.Mean[i], m.Std[i])
	}
	return z
}

func (m *LinearModel) validate() error {
	n := len(m.Features)
	if n == 0 {
		return errors.New("model has no features")
	}
	if len(m.Weights) != n || len(m.Mean) != n || len(m.Std) != n {
		return fmt.Errorf("model vectors disagree: %d features, %d weights, %d means, %d stds",
			n, len(m.Weights), len(m.Mean), len(m.Std))
	}
	names := domain.FeatureNames(m.SchemaVersion)
	if len(names) != n {
		return fmt.Errorf("%w: model lists %d features, schema %s has %d",
			domain.ErrSchemaMismatch, n, m.SchemaVersion, len(names))
	}
	for i, name := range names {
		if m.Features[i] != name {
			return fmt.Errorf("%w: feature %d is %q, schema expects %q",
				domain.ErrSchemaMismatch, i, m.Features[i], name)
		}
	}
	return nil
}

// Load reads a model artifact. A missing file is reported as
// domain.ErrModelNotLoaded.
func Load(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrModelNotLoaded, path)
		}
		return nil, fmt.Errorf("failed to read model: %w", err)
	}

	var m LinearModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode model %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid model %s: %w", path, err)
	}
	return &m, nil
}

// Save writes the artifact as indented JSON.
func (m *LinearModel) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	return nil
}

// Unavailable stands in for a model that could not be loaded. Every
// prediction fails with the load error so assessments carry it in their
// error field while rule-based scoring carries on.
type Unavailable struct {
	Err error
}

func (u Unavailable) Predict(domain.FeatureRecord) (float64, error) {
	if u.Err == nil {
		return 0, domain.ErrModelNotLoaded
	}
	return 0, u.Err
}

func (u Unavailable) Version() string              { return "" }
func (u Unavailable) Schema() domain.SchemaVersion { return "" }

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func standardize(x, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (x - mean) / std
}
