package domain

import (
	"math"
	"testing"
)

func TestScore_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		sourceCount int
		signals     ExternalSignals
		wantScore   int
		wantLevel   ThreatLevel
	}{
		{
			name:        "reported brand phish on free tld",
			url:         "http://paypal-secure.tk/login",
			sourceCount: 3,
			signals:     ExternalSignals{MaliciousCount: 5},
			wantScore:   95, // 30 + 40 + (10 + 15)
			wantLevel:   Critical,
		},
		{
			name:      "clean url",
			url:       "https://example.com/home",
			wantScore: 0,
			wantLevel: Informational,
		},
		{
			name:        "single source with failed lookup",
			url:         "http://google-support12345.ga/security",
			sourceCount: 1,
			signals:     ExternalSignals{LookupFailed: true},
			wantScore:   60, // 10 + 25 + (10 + 15)
			wantLevel:   High,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score := Score(tt.url, tt.sourceCount, tt.signals)
			if score != tt.wantScore {
				t.Errorf("Expected score %d, got %d", tt.wantScore, score)
			}
			if level := Classify(score); level != tt.wantLevel {
				t.Errorf("Expected level %s, got %s", tt.wantLevel, level)
			}
		})
	}
}

func TestScore_Bounds(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		sourceCount int
		signals     ExternalSignals
		want        int
	}{
		{"everything maxed", "http://paypal.tk/?a=1", 1000, ExternalSignals{MaliciousCount: math.MaxInt32}, 100},
		{"huge source count", "https://example.com/", math.MaxInt, ExternalSignals{}, 30},
		{"negative source count", "https://example.com/", -5, ExternalSignals{}, 0},
		{"negative malicious count", "https://example.com/", 0, ExternalSignals{MaliciousCount: -3}, 0},
		{"detection outranks failure", "https://example.com/", 0, ExternalSignals{MaliciousCount: 2, LookupFailed: true}, 40},
		{"empty url", "", 0, ExternalSignals{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.url, tt.sourceCount, tt.signals)
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
			if got < 0 || got > MaxScore {
				t.Errorf("Score %d out of [0,%d]", got, MaxScore)
			}
		})
	}
}

func TestScore_SourceWeight(t *testing.T) {
	for count, want := range map[int]int{0: 0, 1: 10, 2: 20, 3: 30, 4: 30, 50: 30} {
		if got := ScoreDetailed("https://example.com/", count, ExternalSignals{}).SourceWeight; got != want {
			t.Errorf("sourceCount %d: expected weight %d, got %d", count, want, got)
		}
	}
}

func TestScore_Deterministic(t *testing.T) {
	first := ScoreDetailed("http://paypal-secure.tk/login?id=1", 2, ExternalSignals{LookupFailed: true})
	for i := 0; i < 50; i++ {
		if got := ScoreDetailed("http://paypal-secure.tk/login?id=1", 2, ExternalSignals{LookupFailed: true}); got != first {
			t.Fatalf("Run %d differs: %+v vs %+v", i, got, first)
		}
	}
	if first.Total != first.SourceWeight+first.ReputationWeight+first.LexicalWeight {
		t.Errorf("Breakdown does not add up: %+v", first)
	}
}

func TestAnalyzeURLPatterns(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"https://example.com/home", 0},
		{"http://evil.cc/", 0},
		{"http://amazon-billing.example.com/", 0},
		{"http://facebook-help.net/", 0},
		{"http://example.gq/", 10},
		{"example.tk", 10},
		{"https://www.paypal.com/", 15}, // the keyword rule fires on legitimate domains too
		{"http://example.com/path?x=1", 5},
		{"http://example.com/@@@%%%", 5},
		{"http://paypal.tk/?a=1", 30},
		{"http://amazon-paypal.ml/login", 25},
		{"http://apple-id.cf/", 25},
		{"HTTP://PAYPAL.TK", 25},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := AnalyzeURLPatterns(tt.url); got != tt.want {
				t.Errorf("AnalyzeURLPatterns(%q) = %d, want %d", tt.url, got, tt.want)
			}
		})
	}
}
