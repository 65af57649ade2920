package cli

import (
	"github.com/spf13/cobra"

	"github.com/hive-corporation/phishwatch/internal/core/domain"
)

func newFeaturesCmd(root *rootOptions) *cobra.Command {
	var names bool

	cmd := &cobra.Command{
		Use:   "features [url]",
		Short: "Print the feature record of a URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := root.load(cmd)
			if err != nil {
				return err
			}
			schema := rt.cfg.SchemaVersion()

			if names || len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), map[string]interface{}{
					"schema_version": schema,
					"features":       domain.FeatureNames(schema),
				})
			}

			extractor, err := domain.NewExtractor(schema)
			if err != nil {
				return err
			}
			rec, err := extractor.Extract(args[0])
			out := map[string]interface{}{
				"url":            args[0],
				"schema_version": schema,
				"features":       rec,
			}
			if err != nil {
				out["extraction_failed"] = true
				out["error"] = err.Error()
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().BoolVar(&names, "names", false, "List the schema's feature names instead")
	return cmd
}

func newScoreCmd() *cobra.Command {
	var (
		sourceCount    int
		maliciousCount int
		lookupFailed   bool
	)

	cmd := &cobra.Command{
		Use:   "score <url>",
		Short: "Print the rule-based threat score of a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signals := domain.ExternalSignals{MaliciousCount: maliciousCount, LookupFailed: lookupFailed}
			b := domain.ScoreDetailed(args[0], sourceCount, signals)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"url":       args[0],
				"score":     b.Total,
				"level":     domain.Classify(b.Total),
				"malicious": b.Total >= domain.MaliciousScore,
				"breakdown": b,
			})
		},
	}

	cmd.Flags().IntVar(&sourceCount, "source-count", 1, "Number of feeds that reported the URL")
	cmd.Flags().IntVar(&maliciousCount, "malicious-count", 0, "Reputation engines flagging the URL")
	cmd.Flags().BoolVar(&lookupFailed, "lookup-failed", false, "The reputation lookup failed")
	return cmd
}
