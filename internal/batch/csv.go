package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

const (
	ScoreColumn       = "threat_score"
	LevelColumn       = "threat_level"
	SourceCountColumn = "source_count"
	DefaultURLColumn  = "url"
)

var (
	ErrColumnExists     = errors.New("output column already present")
	ErrURLColumnMissing = errors.New("url column not found")
)

type CSVOptions struct {
	// URLColumn names the header holding the URL. Defaults to "url".
	URLColumn string
	Workers   int
}

// ScoreCSV copies every input row to w with threat_score and threat_level
// appended. The header is checked before anything is written. Rows are read
// one at a time with lenient quoting, so a stray quote stays part of its cell
// instead of failing the file. It returns the number of data rows scored.
func ScoreCSV(ctx context.Context, r io.Reader, w io.Writer, assessor *service.Assessor, opts CSVOptions) (int, error) {
	urlColumn := opts.URLColumn
	if urlColumn == "" {
		urlColumn = DefaultURLColumn
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, fmt.Errorf("%w: empty input", ErrURLColumnMissing)
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	urlIdx, sourceIdx := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case ScoreColumn, LevelColumn:
			return 0, fmt.Errorf("%w: %s", ErrColumnExists, name)
		case urlColumn:
			urlIdx = i
		case SourceCountColumn:
			sourceIdx = i
		}
	}
	if urlIdx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrURLColumnMissing, urlColumn)
	}

	var (
		rows [][]string
		reqs []service.Request
	)
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}

		req := service.Request{URL: cell(row, urlIdx)}
		if sourceIdx >= 0 {
			// unparseable counts score as zero sources
			req.SourceCount, _ = domain.CoerceCount(strings.TrimSpace(cell(row, sourceIdx)))
		}
		rows = append(rows, row)
		reqs = append(reqs, req)
	}

	results, err := service.AssessAll(ctx, assessor, reqs, opts.Workers)
	if err != nil {
		return 0, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, header...), ScoreColumn, LevelColumn)); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for i, row := range rows {
		out := make([]string, 0, len(row)+2)
		out = append(out, row...)
		out = append(out, strconv.Itoa(results[i].Score), string(results[i].Level))
		if err := writer.Write(out); err != nil {
			return i, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return len(rows), fmt.Errorf("flush: %w", err)
	}
	return len(rows), nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
