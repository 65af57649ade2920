package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

// Example is one labeled URL of a training set.
type Example struct {
	URL      string
	Phishing bool
}

// ReadExamples parses a CSV with a header containing "url" and "label"
// columns. Labels accept 1/0, true/false, phishing/legit and bad/good.
func ReadExamples(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	head, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	urlCol, labelCol := -1, -1
	for i, name := range head {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "url":
			urlCol = i
		case "label":
			labelCol = i
		}
	}
	if urlCol < 0 || labelCol < 0 {
		return nil, errors.New("training csv needs url and label columns")
	}

	var examples []Example
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if urlCol >= len(record) || labelCol >= len(record) {
			continue
		}
		phishing, err := parseLabel(record[labelCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		examples = append(examples, Example{URL: record[urlCol], Phishing: phishing})
	}
	return examples, nil
}

func parseLabel(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "phishing", "bad", "malicious":
		return true, nil
	case "0", "false", "legit", "legitimate", "good", "benign":
		return false, nil
	}
	return false, fmt.Errorf("unknown label %q", s)
}

// TrainConfig controls gradient descent. The zero value uses the defaults.
type TrainConfig struct {
	Schema       domain.SchemaVersion
	Epochs       int
	LearningRate float64
	L2           float64
	Version      string
}

func (c TrainConfig) withDefaults() TrainConfig {
	if c.Schema == "" {
		c.Schema = domain.DefaultSchema
	}
	if c.Epochs <= 0 {
		c.Epochs = 500
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.1
	}
	if c.L2 < 0 {
		c.L2 = 0
	}
	return c
}

// Train fits a logistic regression with full-batch gradient descent. The
// procedure has no randomness: the same examples and config always produce
// the same weights.
func Train(examples []Example, cfg TrainConfig) (*LinearModel, error) {
	cfg = cfg.withDefaults()
	if len(examples) == 0 {
		return nil, errors.New("no training examples")
	}

	extractor, err := domain.NewExtractor(cfg.Schema)
	if err != nil {
		return nil, err
	}

	x := make([][]float64, 0, len(examples))
	y := make([]float64, 0, len(examples))
	positives := 0
	for _, ex := range examples {
		rec, err := extractor.Extract(ex.URL)
		if err != nil {
			continue
		}
		x = append(x, rec.Values())
		if ex.Phishing {
			y = append(y, 1)
			positives++
		} else {
			y = append(y, 0)
		}
	}
	if positives == 0 || positives == len(y) {
		return nil, errors.New("training set needs both phishing and legitimate examples")
	}

	n := len(extractor.FeatureNames())
	mean, std := moments(x, n)

	z := make([][]float64, len(x))
	for i, row := range x {
		z[i] = make([]float64, n)
		for j, v := range row {
			z[i][j] = standardize(v, mean[j], std[j])
		}
	}

	weights := make([]float64, n)
	bias := 0.0
	grad := make([]float64, n)
	m := float64(len(z))

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		for j := range grad {
			grad[j] = 0
		}
		gradBias := 0.0

		for i, row := range z {
			p := bias
			for j, v := range row {
				p += weights[j] * v
			}
			diff := sigmoid(p) - y[i]
			for j, v := range row {
				grad[j] += diff * v
			}
			gradBias += diff
		}

		for j := range weights {
			weights[j] -= cfg.LearningRate * (grad[j]/m + cfg.L2*weights[j])
		}
		bias -= cfg.LearningRate * gradBias / m
	}

	id := uuid.New()
	version := cfg.Version
	if version == "" {
		version = fmt.Sprintf("%s-%s", cfg.Schema, id.String()[:8])
	}

	model := &LinearModel{
		ID:            id,
		ModelVersion:  version,
		SchemaVersion: cfg.Schema,
		CreatedAt:     time.Now().UTC(),
		Features:      extractor.FeatureNames(),
		Weights:       weights,
		Bias:          bias,
		Mean:          mean,
		Std:           std,
	}
	return model, nil
}

func moments(x [][]float64, n int) (mean, std []float64) {
	mean = make([]float64, n)
	std = make([]float64, n)
	for _, row := range x {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(len(x))
	}
	for _, row := range x {
		for j, v := range row {
			d := v - mean[j]
			std[j] += d * d
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(len(x)))
	}
	return mean, std
}

// Metrics summarizes a model on a labeled set.
type Metrics struct {
	Examples  int     `json:"examples"`
	Threshold float64 `json:"threshold"`
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
}

func (m Metrics) String() string {
	return "accuracy=" + strconv.FormatFloat(m.Accuracy, 'f', 3, 64) +
		" precision=" + strconv.FormatFloat(m.Precision, 'f', 3, 64) +
		" recall=" + strconv.FormatFloat(m.Recall, 'f', 3, 64) +
		" f1=" + strconv.FormatFloat(m.F1, 'f', 3, 64)
}

// Evaluate labels every example with ApplyThreshold and compares against the
// truth. Examples whose features cannot be extracted count as misses.
func Evaluate(m *LinearModel, examples []Example, threshold float64) (Metrics, error) {
	extractor, err := domain.NewExtractor(m.SchemaVersion)
	if err != nil {
		return Metrics{}, err
	}
	threshold = domain.NormalizeThreshold(threshold)

	var tp, fp, tn, fn int
	for _, ex := range examples {
		predicted := false
		if rec, err := extractor.Extract(ex.URL); err == nil {
			p, err := m.Predict(rec)
			if err != nil {
				return Metrics{}, err
			}
			predicted = domain.ApplyThreshold(p, threshold) == domain.LabelPhishing
		}
		switch {
		case predicted && ex.Phishing:
			tp++
		case predicted && !ex.Phishing:
			fp++
		case !predicted && ex.Phishing:
			fn++
		default:
			tn++
		}
	}

	out := Metrics{Examples: len(examples), Threshold: threshold}
	if len(examples) > 0 {
		out.Accuracy = float64(tp+tn) / float64(len(examples))
	}
	if tp+fp > 0 {
		out.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		out.Recall = float64(tp) / float64(tp+fn)
	}
	if out.Precision+out.Recall > 0 {
		out.F1 = 2 * out.Precision * out.Recall / (out.Precision + out.Recall)
	}
	return out, nil
}
