package domain

import (
	"fmt"
	"strings"
)

// ThreatLevel is the severity band of a threat score.
type ThreatLevel string

const (
	Informational ThreatLevel = "INFORMATIONAL"
	Low           ThreatLevel = "LOW"
	Medium        ThreatLevel = "MEDIUM"
	High          ThreatLevel = "HIGH"
	Critical      ThreatLevel = "CRITICAL"
)

// Lower bounds of each band, highest first. The bands partition [0,100].
var levelThresholds = []struct {
	min   int
	level ThreatLevel
}{
	{80, Critical},
	{60, High},
	{40, Medium},
	{20, Low},
}

// MaliciousScore is the score from which a URL is reported as malicious.
const MaliciousScore = 60

// Classify maps a score to its band. Scores outside [0,100] fall into the
// nearest band.
func Classify(score int) ThreatLevel {
	for _, t := range levelThresholds {
		if score >= t.min {
			return t.level
		}
	}
	return Informational
}

// Levels returns all levels from least to most severe.
func Levels() []ThreatLevel {
	return []ThreatLevel{Informational, Low, Medium, High, Critical}
}

// Rank orders levels: INFORMATIONAL is 0, CRITICAL is 4, unknown is -1.
func (l ThreatLevel) Rank() int {
	for i, lv := range Levels() {
		if lv == l {
			return i
		}
	}
	return -1
}

// AtLeast reports whether l is as severe as other.
func (l ThreatLevel) AtLeast(other ThreatLevel) bool {
	return l.Rank() >= other.Rank()
}

// ParseThreatLevel accepts a level name in any case and rejects unknown names.
func ParseThreatLevel(s string) (ThreatLevel, error) {
	l := ThreatLevel(strings.ToUpper(strings.TrimSpace(s)))
	if l.Rank() < 0 {
		return "", fmt.Errorf("unknown threat level %q", s)
	}
	return l, nil
}
