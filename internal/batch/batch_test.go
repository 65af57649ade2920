package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

func newAssessor(t *testing.T) *service.Assessor {
	t.Helper()
	a, err := service.NewAssessor(service.Options{})
	if err != nil {
		t.Fatalf("NewAssessor failed: %v", err)
	}
	return a
}

func TestReadRequests(t *testing.T) {
	input := `# comment
https://example.com/home

{"url": "http://paypal-secure.tk/login", "source_count": 3, "external_signals": {"malicious_count": 5}}
  http://google-support12345.ga/security  
`
	reqs, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadRequests failed: %v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(reqs))
	}
	if reqs[0].URL != "https://example.com/home" || reqs[0].SourceCount != 0 {
		t.Errorf("Unexpected bare URL request %+v", reqs[0])
	}
	if reqs[1].SourceCount != 3 || reqs[1].Signals.MaliciousCount != 5 {
		t.Errorf("Unexpected JSON request %+v", reqs[1])
	}
	if reqs[2].URL != "http://google-support12345.ga/security" {
		t.Errorf("Expected trimmed URL, got %q", reqs[2].URL)
	}
}

func TestReadRequests_LooseSourceCount(t *testing.T) {
	tests := []struct {
		line string
		want int
	}{
		{`{"url": "http://b.com", "source_count": "2"}`, 2},
		{`{"url": "http://b.com", "source_count": 2.0}`, 2},
		{`{"url": "http://b.com", "source_count": "many"}`, 0},
		{`{"url": "http://b.com", "source_count": -3}`, 0},
		{`{"url": "http://b.com", "source_count": null}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			reqs, err := ReadRequests(strings.NewReader(tt.line + "\n"))
			if err != nil {
				t.Fatalf("ReadRequests failed: %v", err)
			}
			if len(reqs) != 1 || reqs[0].Invalid != nil || reqs[0].SourceCount != tt.want {
				t.Errorf("Expected one valid request with source_count %d, got %+v", tt.want, reqs)
			}
		})
	}
}

func TestReadRequests_BadLineKeepsItsSlot(t *testing.T) {
	input := "http://a.tk/login\n" +
		"{bad json\n" +
		"{\"source_count\": 2}\n" +
		"http://c.com\n"

	reqs, err := ReadRequests(strings.NewReader(input))
	if err != nil {
		t.Fatalf("A bad line must not fail the batch: %v", err)
	}
	if len(reqs) != 4 {
		t.Fatalf("Expected 4 requests, got %d", len(reqs))
	}
	if reqs[1].Invalid == nil || reqs[1].URL != "{bad json" {
		t.Errorf("Expected line 2 marked invalid with its raw text, got %+v", reqs[1])
	}
	if reqs[2].Invalid != nil || reqs[2].URL != "" || reqs[2].SourceCount != 2 {
		t.Errorf("A JSON line without url is an empty URL, got %+v", reqs[2])
	}

	results, err := NewRunner(newAssessor(t), 2, zerolog.Nop()).Run(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("Expected one result per line, got %d", len(results))
	}
	if results[0].Score != 10 || results[3].URL != "http://c.com" {
		t.Errorf("Good rows around the bad one must be assessed, got %+v / %+v", results[0], results[3])
	}
	if !results[1].ExtractionFailed || !strings.Contains(results[1].Error, "invalid input: line 2") {
		t.Errorf("Expected an error result for line 2, got %+v", results[1])
	}
	if results[1].Level != domain.Informational {
		t.Errorf("Invalid rows are not scored, got %s", results[1].Level)
	}
}

func TestRunner_Run(t *testing.T) {
	r := NewRunner(newAssessor(t), 0, zerolog.Nop())
	results, err := r.Run(context.Background(), []service.Request{
		{URL: "http://paypal-secure.tk/login", SourceCount: 3, Signals: domain.ExternalSignals{MaliciousCount: 5}},
		{URL: "https://example.com/home"},
		{URL: "http://[::1"},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if results[0].Level != domain.Critical || results[1].Level != domain.Informational {
		t.Errorf("Unexpected levels %s, %s", results[0].Level, results[1].Level)
	}
	if !results[2].ExtractionFailed {
		t.Error("Malformed URL should carry the extraction failure marker")
	}
}

func TestScoreCSV(t *testing.T) {
	input := "id,url,source_count,note\n" +
		"1,http://paypal-secure.tk/login,3,\"has, comma\"\n" +
		"2,https://example.com/home,,\n" +
		"3,http://google-support12345.ga/security,1,x\n"

	var out bytes.Buffer
	n, err := ScoreCSV(context.Background(), strings.NewReader(input), &out, newAssessor(t), CSVOptions{Workers: 2})
	if err != nil {
		t.Fatalf("ScoreCSV failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 rows, got %d", n)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}

	wantHeader := []string{"id", "url", "source_count", "note", "threat_score", "threat_level"}
	if strings.Join(records[0], ",") != strings.Join(wantHeader, ",") {
		t.Errorf("Unexpected header %v", records[0])
	}

	tests := []struct {
		row   int
		score string
		level string
	}{
		{1, "55", "MEDIUM"},
		{2, "0", "INFORMATIONAL"},
		{3, "35", "LOW"},
	}
	for _, tt := range tests {
		got := records[tt.row]
		if got[4] != tt.score || got[5] != tt.level {
			t.Errorf("Row %d: expected %s/%s, got %s/%s", tt.row, tt.score, tt.level, got[4], got[5])
		}
	}
	if records[1][3] != "has, comma" {
		t.Errorf("Existing columns must be copied unchanged, got %q", records[1][3])
	}
}

func TestScoreCSV_StrayQuoteDoesNotAbort(t *testing.T) {
	input := "id,url,note\n" +
		"1,http://paypal-secure.tk/login,ok\n" +
		"2,http://b.com/\"login,he said \"hi\"\n" +
		"3,http://google-support12345.ga/security,\"unterminated\n"

	var out bytes.Buffer
	n, err := ScoreCSV(context.Background(), strings.NewReader(input), &out, newAssessor(t), CSVOptions{})
	if err != nil {
		t.Fatalf("A stray quote must not abort the job: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 scored rows, got %d", n)
	}

	records, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header and 3 rows, got %d records", len(records))
	}
	if records[1][3] != "25" || records[3][3] != "25" || records[3][4] != "LOW" {
		t.Errorf("Rows around the stray quote must be scored, got %v and %v", records[1], records[3])
	}
	if records[2][1] != `http://b.com/"login` || records[2][2] != `he said "hi"` {
		t.Errorf("Stray quotes must stay in their cells, got %v", records[2])
	}
	if records[2][3] != "0" || records[2][4] != "INFORMATIONAL" {
		t.Errorf("Unexpected score for the quoted row %v", records[2])
	}
}

func TestScoreCSV_HeaderErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    CSVOptions
		wantErr error
	}{
		{"score column present", "url,threat_score\nhttps://example.com,1\n", CSVOptions{}, ErrColumnExists},
		{"level column present", "threat_level,url\nLOW,https://example.com\n", CSVOptions{}, ErrColumnExists},
		{"no url column", "link\nhttps://example.com\n", CSVOptions{}, ErrURLColumnMissing},
		{"custom url column missing", "url\nhttps://example.com\n", CSVOptions{URLColumn: "link"}, ErrURLColumnMissing},
		{"empty input", "", CSVOptions{}, ErrURLColumnMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			_, err := ScoreCSV(context.Background(), strings.NewReader(tt.input), &out, newAssessor(t), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			if out.Len() != 0 {
				t.Errorf("Nothing should be written on header errors, got %q", out.String())
			}
		})
	}
}

func TestScoreCSV_CustomURLColumn(t *testing.T) {
	var out bytes.Buffer
	_, err := ScoreCSV(context.Background(), strings.NewReader("link\nhttp://paypal-secure.tk/login\n"), &out, newAssessor(t), CSVOptions{URLColumn: "link"})
	if err != nil {
		t.Fatalf("ScoreCSV failed: %v", err)
	}
	if !strings.Contains(out.String(), "link,threat_score,threat_level") {
		t.Errorf("Unexpected output %q", out.String())
	}
}
