package ports

import (
	"context"
	"time"

	"iris-model-pipeline/internal/core/domain"
)

type VersionSearch struct {
	ModelName  string
	OrderBy    []string
	MaxResults int
}

// TrackingClient is the contract with the experiment tracking and model registry service.
type TrackingClient interface {
	// Experiments
	GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error)
	CreateExperiment(ctx context.Context, name string) (string, error)

	// Runs
	CreateRun(ctx context.Context, experimentID, runName string, tags map[string]string) (*domain.Run, error)
	GetRun(ctx context.Context, runID string) (*domain.Run, error)
	LogBatch(ctx context.Context, runID string, params []domain.Param, metrics []domain.Metric) error
	UpdateRun(ctx context.Context, runID string, status domain.RunStatus, endTime time.Time) error

	// Registry
	CreateRegisteredModel(ctx context.Context, name string) (*domain.RegisteredModel, error)
	CreateModelVersion(ctx context.Context, name, source, runID string) (*domain.ModelVersion, error)
	SearchModelVersions(ctx context.Context, search VersionSearch) ([]*domain.ModelVersion, error)
	GetModelVersion(ctx context.Context, name string, version int) (*domain.ModelVersion, error)
	TransitionModelVersionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error)
	GetLatestVersions(ctx context.Context, name string, stages []domain.Stage) ([]*domain.ModelVersion, error)
}
