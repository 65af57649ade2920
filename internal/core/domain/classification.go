package domain

import (
	"errors"
	"math"
)

// Label is the binary verdict of a trained classifier.
type Label string

const (
	LabelPhishing Label = "PHISHING"
	LabelLegit    Label = "LEGIT"
)

// DefaultThreshold is the phishing probability cut-off when none is configured.
const DefaultThreshold = 0.5

var (
	ErrModelNotLoaded = errors.New("model not found")
	ErrSchemaMismatch = errors.New("feature schema does not match model")
)

// NormalizeThreshold coerces a configured threshold into [0,1]. NaN falls
// back to DefaultThreshold.
func NormalizeThreshold(t float64) float64 {
	switch {
	case math.IsNaN(t):
		return DefaultThreshold
	case t < 0:
		return 0
	case t > 1:
		return 1
	}
	return t
}

// ApplyThreshold labels a phishing probability. Probabilities at or above the
// threshold are PHISHING.
func ApplyThreshold(probability, threshold float64) Label {
	if probability >= NormalizeThreshold(threshold) {
		return LabelPhishing
	}
	return LabelLegit
}

// Prediction is the model-based part of an assessment.
type Prediction struct {
	Label        Label   `json:"label"`
	Probability  float64 `json:"probability"`
	Threshold    float64 `json:"threshold"`
	ModelVersion string  `json:"model_version"`
}
