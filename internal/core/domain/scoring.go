package domain

import (
	"slices"
	"strings"
)

// Weights of the three independent sub-scores. Each is capped on its own and
// the total is clamped to MaxScore.
const (
	MaxScore = 100

	sourceWeightPerFeed = 10
	maxSourceWeight     = 30

	maliciousWeight    = 40
	lookupFailedWeight = 25

	tldWeight        = 10
	brandWeight      = 15
	symbolWeight     = 5
	maxLexicalWeight = 30
)

// ScoreBreakdown explains how a threat score was composed.
type ScoreBreakdown struct {
	SourceWeight     int `json:"source_weight"`
	ReputationWeight int `json:"reputation_weight"`
	LexicalWeight    int `json:"lexical_weight"`
	Total            int `json:"total"`
}

// Score computes the threat score of a URL in [0,100].
//
// sourceCount is the number of independent feeds that reported the URL;
// negative values count as zero. signals carries third-party reputation.
func Score(rawURL string, sourceCount int, signals ExternalSignals) int {
	return ScoreDetailed(rawURL, sourceCount, signals).Total
}

// ScoreDetailed is Score with the sub-scores exposed.
func ScoreDetailed(rawURL string, sourceCount int, signals ExternalSignals) ScoreBreakdown {
	b := ScoreBreakdown{
		SourceWeight:     sourceWeight(sourceCount),
		ReputationWeight: reputationWeight(signals),
		LexicalWeight:    AnalyzeURLPatterns(rawURL),
	}
	b.Total = clamp(b.SourceWeight+b.ReputationWeight+b.LexicalWeight, 0, MaxScore)
	return b
}

func sourceWeight(sourceCount int) int {
	if sourceCount <= 0 {
		return 0
	}
	// compare before multiplying so huge counts cannot overflow
	if sourceCount >= maxSourceWeight/sourceWeightPerFeed {
		return maxSourceWeight
	}
	return sourceCount * sourceWeightPerFeed
}

// reputationWeight: a confirmed detection outranks a failed lookup and the two
// never stack.
func reputationWeight(s ExternalSignals) int {
	switch {
	case s.MaliciousCount > 0:
		return maliciousWeight
	case s.LookupFailed:
		return lookupFailedWeight
	default:
		return 0
	}
}

// AnalyzeURLPatterns is the lexical part of the threat score, in [0,30].
// Each rule fires at most once regardless of how often its pattern occurs.
//
// The brand rule deliberately fires on any brand keyword, legitimate domains
// included; the stricter brand_spoofing feature lives in the extractor.
func AnalyzeURLPatterns(rawURL string) int {
	lower := strings.ToLower(rawURL)
	score := 0

	if hasSuspiciousTLDSuffix(rawURL, lower) {
		score += tldWeight
	}

	for _, b := range scorerBrands {
		if strings.Contains(lower, b) {
			score += brandWeight
			break
		}
	}

	if strings.ContainsAny(rawURL, scorerSymbols) {
		score += symbolWeight
	}

	return min(score, maxLexicalWeight)
}

// hasSuspiciousTLDSuffix matches scorerTLDs against the host when the URL
// parses and against the end of the raw text either way.
func hasSuspiciousTLDSuffix(rawURL, lower string) bool {
	trimmed := strings.TrimRight(lower, "/")
	for _, tld := range scorerTLDs {
		if strings.HasSuffix(trimmed, "."+tld) {
			return true
		}
	}
	if p, err := parseURL(rawURL); err == nil {
		return slices.Contains(scorerTLDs, p.tld)
	}
	return false
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
