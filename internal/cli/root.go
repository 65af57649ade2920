// Package cli holds the cobra commands of the phishwatch and trainer
// binaries.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hive-corporation/phishwatch/internal/bootstrap"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/core/service"
	"github.com/hive-corporation/phishwatch/internal/logging"
)

type rootOptions struct {
	configPath string
	schema     string
	threshold  float64
	modelPath  string
	workers    int
	logLevel   string
}

func NewRoot(version string) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "phishwatch",
		Short:         "phishwatch: phishing URL features and threat scores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Version = version
	cmd.SetVersionTemplate("phishwatch {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "YAML config file (default $PHISHWATCH_CONFIG)")
	pf.StringVar(&opts.schema, "schema", "", "Feature schema: v1, v2 or v3")
	pf.Float64Var(&opts.threshold, "threshold", domain.DefaultThreshold, "Phishing probability threshold")
	pf.StringVar(&opts.modelPath, "model", "", "Trained model artifact")
	pf.IntVar(&opts.workers, "workers", 0, "Concurrent assessments (0 = GOMAXPROCS)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newAssessCmd(opts))
	cmd.AddCommand(newFeaturesCmd(opts))
	cmd.AddCommand(newScoreCmd())
	cmd.AddCommand(newCSVCmd(opts))
	cmd.AddCommand(newRemoteCmd(opts))
	cmd.AddCommand(newVersionCmd(version))

	return cmd
}

// runtime is what every local command needs after flags are parsed.
type runtime struct {
	cfg *config.Config
	log zerolog.Logger
}

// load reads the config and lets explicitly set flags win over it.
func (o *rootOptions) load(cmd *cobra.Command) (*runtime, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("schema") {
		if _, err := domain.ParseSchemaVersion(o.schema); err != nil {
			return nil, err
		}
		cfg.Scoring.Schema = o.schema
	}
	if flags.Changed("threshold") {
		t := domain.NormalizeThreshold(o.threshold)
		cfg.Scoring.Threshold = &t
	}
	if flags.Changed("model") {
		cfg.Scoring.ModelPath = o.modelPath
	}
	if flags.Changed("workers") && o.workers >= 0 {
		cfg.Scoring.Workers = o.workers
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}

	return &runtime{
		cfg: cfg,
		log: logging.NewWithWriter(cmd.ErrOrStderr(), cfg.Logging, "phishwatch"),
	}, nil
}

func (r *runtime) assessor() (*service.Assessor, error) {
	return bootstrap.Assessor(r.cfg, nil, r.log)
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "phishwatch %s\n", version)
			return err
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
