package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/phishwatch/internal/adapter/exporter"
	"github.com/hive-corporation/phishwatch/internal/batch"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
)

// ErrThreatsFound is returned by assess --fail-level when a URL reaches the
// level, so CI jobs exit non-zero.
var ErrThreatsFound = errors.New("threats found")

func newAssessCmd(root *rootOptions) *cobra.Command {
	var (
		file        string
		sourceCount int
		format      string
		minLevel    string
		failLevel   string
	)

	cmd := &cobra.Command{
		Use:   "assess [url...]",
		Short: "Assess URLs given as arguments, from --file or from stdin",
		Long: `Assess prints one result per URL.

Input lines are bare URLs or JSON objects such as
{"url": "...", "source_count": 2, "external_signals": {"malicious_count": 1}}.
Blank lines and lines starting with # are ignored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.load(cmd)
			if err != nil {
				return err
			}

			exp, err := exporter.ByName(format)
			if err != nil {
				return err
			}
			floor, err := domain.ParseThreatLevel(minLevel)
			if err != nil {
				return err
			}
			var fail domain.ThreatLevel
			if failLevel != "" {
				if fail, err = domain.ParseThreatLevel(failLevel); err != nil {
					return err
				}
			}

			reqs, err := readAssessInput(cmd.InOrStdin(), file, args, sourceCount)
			if err != nil {
				return err
			}

			assessor, err := rt.assessor()
			if err != nil {
				return err
			}
			results, err := batch.NewRunner(assessor, rt.cfg.Scoring.Workers, rt.log).Run(cmd.Context(), reqs)
			if err != nil {
				return err
			}

			if err := exp.Export(cmd.OutOrStdout(), exporter.FilterByLevel(results, floor)); err != nil {
				return err
			}

			if fail != "" {
				if n := len(exporter.FilterByLevel(results, fail)); n > 0 {
					return fmt.Errorf("%w: %d URLs at or above %s", ErrThreatsFound, n, fail)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read URLs from a file (- for stdin)")
	cmd.Flags().IntVar(&sourceCount, "source-count", 0, "Feed count for URLs given as arguments")
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format: jsonl, stix or cef")
	cmd.Flags().StringVar(&minLevel, "min-level", string(domain.Informational), "Only print results at or above this level")
	cmd.Flags().StringVar(&failLevel, "fail-level", "", "Exit non-zero when any URL reaches this level")

	return cmd
}

func readAssessInput(stdin io.Reader, file string, args []string, sourceCount int) ([]service.Request, error) {
	if len(args) > 0 {
		if file != "" {
			return nil, errors.New("give URLs as arguments or --file, not both")
		}
		reqs := make([]service.Request, len(args))
		for i, u := range args {
			reqs[i] = service.Request{URL: u, SourceCount: sourceCount}
		}
		return reqs, nil
	}

	in := stdin
	if file != "" && file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("error reading file: %w", err)
		}
		defer f.Close()
		in = f
	}
	return batch.ReadRequests(in)
}
