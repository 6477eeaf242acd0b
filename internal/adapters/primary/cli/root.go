package cli

import (
	"context"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"iris-model-pipeline/internal/adapters/secondary/artifacts"
	"iris-model-pipeline/internal/adapters/secondary/csvstore"
	"iris-model-pipeline/internal/adapters/secondary/mlflow"
	"iris-model-pipeline/internal/config"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/core/services"
	"iris-model-pipeline/internal/ml/logreg"
)

type ExitCode int

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

// app carries state shared by every subcommand once the root pre-run has loaded config.
type app struct {
	out io.Writer
	cfg *config.Config

	verbose     bool
	dataPath    string
	modelName   string
	trackingURI string
}

// Run executes the command line in args and returns the process exit code.
func Run(ctx context.Context, args []string, out io.Writer) ExitCode {
	a := &app{out: out}

	rootCmd := &cobra.Command{
		Use:           "mlpipeline",
		Short:         "Train, register and promote an Iris classifier on an MLflow tracking server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "set debug logging level")
	flags.StringVar(&a.dataPath, "data", "", "path of the dataset CSV (overrides DATA_PATH)")
	flags.StringVar(&a.modelName, "model-name", "", "registered model name (overrides MODEL_NAME)")
	flags.StringVar(&a.trackingURI, "tracking-uri", "", "MLflow tracking server URI (overrides MLFLOW_TRACKING_URI)")

	rootCmd.AddCommand(
		a.prepareCmd(),
		a.trainCmd(),
		a.promoteCmd(),
		a.runCmd(),
		a.serveCmd(),
	)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.WithError(err).Error("command failed")
		return exitCodeError
	}
	return exitCodeSuccess
}

func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dataPath != "" {
		cfg.Data.Path = a.dataPath
	}
	if a.modelName != "" {
		cfg.Model.Name = a.modelName
	}
	if a.trackingURI != "" {
		cfg.Tracking.URI = a.trackingURI
	}
	a.cfg = cfg

	initLogger(cfg, a.verbose)
	return nil
}

func initLogger(cfg *config.Config, verbose bool) {
	level, err := log.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = log.InfoLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	log.SetLevel(level)

	if cfg.Logger.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// ============================================================================
// Wiring
// ============================================================================

func (a *app) tracking() (*mlflow.Client, ports.ArtifactStore) {
	client := mlflow.NewClient(&a.cfg.Tracking)
	store := artifacts.NewRouter(
		mlflow.NewArtifactStore(client),
		artifacts.NewLocalStore(),
	)
	return client, store
}

func (a *app) provisionService() *services.ProvisionService {
	return services.NewProvisionService(csvstore.NewDatasetRepository())
}

func (a *app) trainingService() *services.TrainingService {
	client, store := a.tracking()
	log.WithField("tracking_uri", client.BaseURL()).Debug("tracking client initialized")

	return services.NewTrainingService(csvstore.NewDatasetRepository(), client, store, services.TrainingOptions{
		ExperimentName: a.cfg.Tracking.ExperimentName,
		ModelName:      a.cfg.Model.Name,
		ArtifactPath:   a.cfg.Model.ArtifactPath,
		TestSize:       a.cfg.Training.TestSize,
		RandomState:    a.cfg.Training.RandomState,
		Model:          modelParams(a.cfg.Training),

		RegistrationWait: a.cfg.Registry.StageWaitTimeout,
	})
}

func (a *app) registryService() *services.RegistryService {
	client, store := a.tracking()
	log.WithField("tracking_uri", client.BaseURL()).Debug("tracking client initialized")

	return services.NewRegistryService(client, store, services.RegistryOptions{
		ModelName:        a.cfg.Model.Name,
		StageWaitTimeout: a.cfg.Registry.StageWaitTimeout,
		SampleInput:      a.cfg.Registry.SampleInput,
	})
}

func modelParams(t config.TrainingConfig) logreg.Params {
	p := logreg.DefaultParams()
	if t.MaxIter > 0 {
		p.MaxIter = t.MaxIter
	}
	if t.C > 0 {
		p.C = t.C
	}
	return p
}
