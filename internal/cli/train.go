package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hive-corporation/phishwatch/internal/adapter/model"
	"github.com/hive-corporation/phishwatch/internal/config"
	"github.com/hive-corporation/phishwatch/internal/core/domain"
	"github.com/hive-corporation/phishwatch/internal/logging"
)

// NewTrainer is the root command of the offline trainer binary.
func NewTrainer(version string) *cobra.Command {
	var (
		data         string
		eval         string
		out          string
		schema       string
		modelVersion string
		epochs       int
		learningRate float64
		l2           float64
		threshold    float64
		logLevel     string
	)

	cmd := &cobra.Command{
		Use:           "trainer --data labeled.csv --out model.json",
		Short:         "Train the phishing classifier from a labeled CSV",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.NewWithWriter(cmd.ErrOrStderr(), config.LoggingConfig{Level: logLevel}, "trainer")

			v, err := domain.ParseSchemaVersion(schema)
			if err != nil {
				return err
			}

			examples, err := readExamples(data)
			if err != nil {
				return err
			}
			log.Info().Str("data", data).Int("examples", len(examples)).Str("schema", string(v)).Msg("📥 Training set loaded")

			m, err := model.Train(examples, model.TrainConfig{
				Schema:       v,
				Epochs:       epochs,
				LearningRate: learningRate,
				L2:           l2,
				Version:      modelVersion,
			})
			if err != nil {
				return fmt.Errorf("training failed: %w", err)
			}

			evalSet, evalSource := examples, data
			if eval != "" {
				if evalSet, err = readExamples(eval); err != nil {
					return err
				}
				evalSource = eval
			}
			metrics, err := model.Evaluate(m, evalSet, threshold)
			if err != nil {
				return fmt.Errorf("evaluation failed: %w", err)
			}
			m.Metrics = &metrics
			log.Info().Str("eval", evalSource).Str("metrics", metrics.String()).Msg("📊 Model evaluated")

			if err := m.Save(out); err != nil {
				return err
			}
			log.Info().Str("out", out).Str("version", m.Version()).Msg("✅ Model saved")

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", m.Version(), metrics)
			return err
		},
	}

	cmd.Version = version
	f := cmd.Flags()
	f.StringVar(&data, "data", "", "Labeled CSV with url and label columns")
	f.StringVar(&eval, "eval", "", "Held-out CSV for the reported metrics (default: the training set)")
	f.StringVar(&out, "out", "model.json", "Where to write the model artifact")
	f.StringVar(&schema, "schema", string(domain.DefaultSchema), "Feature schema: v1, v2 or v3")
	f.StringVar(&modelVersion, "model-version", "", "Version recorded in the artifact (default: schema plus id)")
	f.IntVar(&epochs, "epochs", 500, "Gradient descent epochs")
	f.Float64Var(&learningRate, "learning-rate", 0.1, "Gradient descent step size")
	f.Float64Var(&l2, "l2", 0, "L2 regularization strength")
	f.Float64Var(&threshold, "threshold", domain.DefaultThreshold, "Threshold used for the reported metrics")
	f.StringVar(&logLevel, "log-level", "info", "Log level")
	_ = cmd.MarkFlagRequired("data")

	return cmd
}

func readExamples(path string) ([]model.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	defer f.Close()

	examples, err := model.ReadExamples(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}
