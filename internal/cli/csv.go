package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/phishwatch/internal/batch"
)

func newCSVCmd(root *rootOptions) *cobra.Command {
	var (
		in        string
		out       string
		urlColumn string
	)

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Append threat_score and threat_level columns to a CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.load(cmd)
			if err != nil {
				return err
			}
			assessor, err := rt.assessor()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if in != "-" {
				f, err := os.Open(in)
				if err != nil {
					return fmt.Errorf("error reading file: %w", err)
				}
				defer f.Close()
				r = f
			}

			var w io.Writer = cmd.OutOrStdout()
			var outFile *os.File
			if out != "-" {
				if outFile, err = os.Create(out); err != nil {
					return fmt.Errorf("error creating output: %w", err)
				}
				w = outFile
			}

			n, err := batch.ScoreCSV(cmd.Context(), r, w, assessor, batch.CSVOptions{
				URLColumn: urlColumn,
				Workers:   rt.cfg.Scoring.Workers,
			})
			if outFile != nil {
				if cerr := outFile.Close(); err == nil {
					err = cerr
				}
			}
			if err != nil {
				return err
			}

			rt.log.Info().Int("rows", n).Str("out", out).Msg("✅ CSV scored")
			return nil
		},
	}

	cmd.Flags().StringVar(&in, "in", "-", "Input CSV (- for stdin)")
	cmd.Flags().StringVar(&out, "out", "-", "Output CSV (- for stdout)")
	cmd.Flags().StringVar(&urlColumn, "url-column", batch.DefaultURLColumn, "Header of the URL column")
	return cmd
}
