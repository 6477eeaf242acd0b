package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Data     DataConfig
	Tracking TrackingConfig
	Model    ModelConfig
	Training TrainingConfig
	Registry RegistryConfig
	Server   ServerConfig
	Logger   LoggerConfig
}

type DataConfig struct {
	Path string
}

type TrackingConfig struct {
	URI            string
	Timeout        time.Duration
	ExperimentName string
	Token          string
	Username       string
	Password       string
}

type ModelConfig struct {
	Name         string
	ArtifactPath string
}

type TrainingConfig struct {
	TestSize    float64
	RandomState int64
	MaxIter     int
	C           float64
}

type RegistryConfig struct {
	StageWaitTimeout time.Duration
	SampleInput      []float64
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, after merging an optional .env file from the
// working directory. Unset keys fall back to the defaults below.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("DATA_PATH", "data/iris.csv")
	v.SetDefault("MLFLOW_TRACKING_URI", "http://localhost:5000")
	v.SetDefault("MLFLOW_TIMEOUT", "30s")
	v.SetDefault("MLFLOW_EXPERIMENT_NAME", "Default")
	v.SetDefault("MODEL_NAME", "IrisLogisticRegressionModel")
	v.SetDefault("MODEL_ARTIFACT_PATH", "iris_model")
	v.SetDefault("TRAIN_TEST_SIZE", 0.2)
	v.SetDefault("TRAIN_RANDOM_STATE", 42)
	v.SetDefault("TRAIN_MAX_ITER", 100)
	v.SetDefault("TRAIN_C", 1.0)
	v.SetDefault("REGISTRY_STAGE_WAIT_TIMEOUT", "10s")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "text")

	// Env
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("MLFLOW_TIMEOUT"))
	if err != nil {
		timeout = 30 * time.Second
	}
	stageWait, err := time.ParseDuration(v.GetString("REGISTRY_STAGE_WAIT_TIMEOUT"))
	if err != nil {
		stageWait = 10 * time.Second
	}

	cfg := &Config{
		Data: DataConfig{
			Path: v.GetString("DATA_PATH"),
		},
		Tracking: TrackingConfig{
			URI:            v.GetString("MLFLOW_TRACKING_URI"),
			Timeout:        timeout,
			ExperimentName: v.GetString("MLFLOW_EXPERIMENT_NAME"),
			Token:          v.GetString("MLFLOW_TRACKING_TOKEN"),
			Username:       v.GetString("MLFLOW_TRACKING_USERNAME"),
			Password:       v.GetString("MLFLOW_TRACKING_PASSWORD"),
		},
		Model: ModelConfig{
			Name:         v.GetString("MODEL_NAME"),
			ArtifactPath: v.GetString("MODEL_ARTIFACT_PATH"),
		},
		Training: TrainingConfig{
			TestSize:    v.GetFloat64("TRAIN_TEST_SIZE"),
			RandomState: v.GetInt64("TRAIN_RANDOM_STATE"),
			MaxIter:     v.GetInt("TRAIN_MAX_ITER"),
			C:           v.GetFloat64("TRAIN_C"),
		},
		Registry: RegistryConfig{
			StageWaitTimeout: stageWait,
			// First row of the Iris dataset.
			SampleInput: []float64{5.1, 3.5, 1.4, 0.2},
		},
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
	}

	return cfg, nil
}
