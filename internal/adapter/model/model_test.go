package model

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

func loadExamples(t *testing.T) []Example {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", "train.csv"))
	if err != nil {
		t.Fatalf("Failed to open training data: %v", err)
	}
	defer f.Close()

	examples, err := ReadExamples(f)
	if err != nil {
		t.Fatalf("ReadExamples failed: %v", err)
	}
	return examples
}

func TestReadExamples(t *testing.T) {
	examples := loadExamples(t)
	if len(examples) != 20 {
		t.Fatalf("Expected 20 examples, got %d", len(examples))
	}
	if !examples[0].Phishing || examples[len(examples)-1].Phishing {
		t.Error("Labels were not parsed")
	}

	_, err := ReadExamples(strings.NewReader("url,label\nhttp://a.tk,maybe\n"))
	if err == nil {
		t.Error("Expected error for unknown label")
	}
	_, err = ReadExamples(strings.NewReader("link,class\nhttp://a.tk,1\n"))
	if err == nil {
		t.Error("Expected error for missing columns")
	}
}

func TestTrain_SeparatesTrainingSet(t *testing.T) {
	examples := loadExamples(t)

	m, err := Train(examples, TrainConfig{})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	if m.SchemaVersion != domain.DefaultSchema {
		t.Errorf("Expected default schema, got %s", m.SchemaVersion)
	}

	metrics, err := Evaluate(m, examples, domain.DefaultThreshold)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if metrics.Accuracy < 0.9 {
		t.Errorf("Expected training accuracy >= 0.9, got %s", metrics)
	}
	if metrics.Examples != len(examples) {
		t.Errorf("Expected %d evaluated examples, got %d", len(examples), metrics.Examples)
	}
}

func TestTrain_Deterministic(t *testing.T) {
	examples := loadExamples(t)
	cfg := TrainConfig{Schema: domain.SchemaRealistic, Epochs: 100}

	a, err := Train(examples, cfg)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	b, _ := Train(examples, cfg)

	if !reflect.DeepEqual(a.Weights, b.Weights) || a.Bias != b.Bias {
		t.Error("Training twice on the same data must give the same weights")
	}
	if a.ID == b.ID {
		t.Error("Each artifact should get its own ID")
	}
}

func TestTrain_RejectsSingleClass(t *testing.T) {
	_, err := Train([]Example{{URL: "http://a.tk", Phishing: true}}, TrainConfig{})
	if err == nil {
		t.Error("Expected error for single-class training set")
	}
	if _, err := Train(nil, TrainConfig{}); err == nil {
		t.Error("Expected error for empty training set")
	}
}

func TestSaveLoad(t *testing.T) {
	m, err := Train(loadExamples(t), TrainConfig{Schema: domain.SchemaBasic, Version: "basic-test"})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Version() != "basic-test" || loaded.Schema() != domain.SchemaBasic {
		t.Errorf("Unexpected loaded model %s/%s", loaded.Version(), loaded.Schema())
	}

	extractor, _ := domain.NewExtractor(domain.SchemaBasic)
	rec, _ := extractor.Extract("http://paypal-secure.tk/login")
	want, _ := m.Predict(rec)
	got, err := loaded.Predict(rec)
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}
	if got != want {
		t.Errorf("Loaded model predicts %v, trained %v", got, want)
	}
	if got < 0 || got > 1 {
		t.Errorf("Probability %v out of [0,1]", got)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded, got %v", err)
	}
}

func TestLoad_SchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	bad := `{"schema_version":"v1-basic","features":["a","b","c","d","e","f"],
		"weights":[0,0,0,0,0,0],"mean":[0,0,0,0,0,0],"std":[1,1,1,1,1,1]}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("Expected ErrSchemaMismatch, got %v", err)
	}
}

func TestPredict_SchemaMismatch(t *testing.T) {
	m, err := Train(loadExamples(t), TrainConfig{Schema: domain.SchemaBasic, Epochs: 10})
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	rec, _ := domain.Extract("https://example.com")

	if _, err := m.Predict(rec); !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Errorf("Expected ErrSchemaMismatch, got %v", err)
	}
}

func TestUnavailable(t *testing.T) {
	u := Unavailable{}
	if _, err := u.Predict(domain.FeatureRecord{}); !errors.Is(err, domain.ErrModelNotLoaded) {
		t.Errorf("Expected ErrModelNotLoaded, got %v", err)
	}
}
