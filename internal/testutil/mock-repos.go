package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

// MockDatasetRepo is a mock of DatasetRepository.
type MockDatasetRepo struct {
	mock.Mock
}

func (m *MockDatasetRepo) Write(ctx context.Context, path string, ds *domain.Dataset) error {
	args := m.Called(ctx, path, ds)
	return args.Error(0)
}

func (m *MockDatasetRepo) Read(ctx context.Context, path string) (*domain.Dataset, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Dataset), args.Error(1)
}

// MockArtifactStore is a mock of ArtifactStore.
type MockArtifactStore struct {
	mock.Mock
}

func (m *MockArtifactStore) Supports(rootURI string) bool {
	args := m.Called(rootURI)
	return args.Bool(0)
}

func (m *MockArtifactStore) Upload(ctx context.Context, rootURI, relPath string, content []byte) error {
	args := m.Called(ctx, rootURI, relPath, content)
	return args.Error(0)
}

func (m *MockArtifactStore) Download(ctx context.Context, rootURI, relPath string) ([]byte, error) {
	args := m.Called(ctx, rootURI, relPath)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockTrackingClient is a mock of TrackingClient.
type MockTrackingClient struct {
	mock.Mock
}

func (m *MockTrackingClient) GetExperimentByName(ctx context.Context, name string) (*domain.Experiment, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Experiment), args.Error(1)
}

func (m *MockTrackingClient) CreateExperiment(ctx context.Context, name string) (string, error) {
	args := m.Called(ctx, name)
	return args.String(0), args.Error(1)
}

func (m *MockTrackingClient) CreateRun(ctx context.Context, experimentID, runName string, tags map[string]string) (*domain.Run, error) {
	args := m.Called(ctx, experimentID, runName, tags)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockTrackingClient) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Run), args.Error(1)
}

func (m *MockTrackingClient) LogBatch(ctx context.Context, runID string, params []domain.Param, metrics []domain.Metric) error {
	args := m.Called(ctx, runID, params, metrics)
	return args.Error(0)
}

func (m *MockTrackingClient) UpdateRun(ctx context.Context, runID string, status domain.RunStatus, endTime time.Time) error {
	args := m.Called(ctx, runID, status, endTime)
	return args.Error(0)
}

func (m *MockTrackingClient) CreateRegisteredModel(ctx context.Context, name string) (*domain.RegisteredModel, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RegisteredModel), args.Error(1)
}

func (m *MockTrackingClient) CreateModelVersion(ctx context.Context, name, source, runID string) (*domain.ModelVersion, error) {
	args := m.Called(ctx, name, source, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) SearchModelVersions(ctx context.Context, search ports.VersionSearch) ([]*domain.ModelVersion, error) {
	args := m.Called(ctx, search)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) GetModelVersion(ctx context.Context, name string, version int) (*domain.ModelVersion, error) {
	args := m.Called(ctx, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) TransitionModelVersionStage(ctx context.Context, name string, version int, stage domain.Stage, archiveExisting bool) (*domain.ModelVersion, error) {
	args := m.Called(ctx, name, version, stage, archiveExisting)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockTrackingClient) GetLatestVersions(ctx context.Context, name string, stages []domain.Stage) ([]*domain.ModelVersion, error) {
	args := m.Called(ctx, name, stages)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ModelVersion), args.Error(1)
}
