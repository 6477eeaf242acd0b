package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/testutil"
)

const (
	testModel  = "IrisLogisticRegressionModel"
	testSource = "mlflow-artifacts:/0/abc/artifacts/iris_model"
)

func registryOpts() RegistryOptions {
	return RegistryOptions{
		ModelName:        testModel,
		StageWaitTimeout: 2 * time.Second,
		SampleInput:      []float64{5.1, 3.5, 1.4, 0.2},
	}
}

func modelVersion(n int, stage domain.Stage) *domain.ModelVersion {
	return &domain.ModelVersion{Name: testModel, Version: n, CurrentStage: stage, Source: testSource, Status: domain.VersionStatusReady}
}

func TestRegistryService_ManageLifecycle(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	store := new(testutil.MockArtifactStore)
	svc := NewRegistryService(tracking, store, registryOpts())

	data, err := fitIris(t).MarshalArtifact()
	require.NoError(t, err)

	tracking.On("SearchModelVersions", mock.Anything, ports.VersionSearch{ModelName: testModel, OrderBy: []string{"version_number DESC"}}).
		Return([]*domain.ModelVersion{modelVersion(2, domain.StageNone), modelVersion(1, domain.StageProduction)}, nil)
	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 2, domain.StageStaging, true).Return(modelVersion(2, domain.StageStaging), nil)
	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 2, domain.StageProduction, true).Return(modelVersion(2, domain.StageProduction), nil)
	tracking.On("GetModelVersion", mock.Anything, testModel, 2).Return(modelVersion(2, domain.StageStaging), nil).Once()
	tracking.On("GetModelVersion", mock.Anything, testModel, 2).Return(modelVersion(2, domain.StageProduction), nil).Once()
	tracking.On("GetLatestVersions", mock.Anything, testModel, []domain.Stage{domain.StageProduction}).
		Return([]*domain.ModelVersion{modelVersion(2, domain.StageProduction)}, nil)
	store.On("Download", mock.Anything, testSource, ModelDescriptor).Return(nil, domain.ErrArtifactNotFound)
	store.On("Download", mock.Anything, testSource, ModelDataFile).Return(data, nil)

	res, err := svc.ManageLifecycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Version)
	require.Len(t, res.Checkpoints, 2)
	assert.Equal(t, StageCheckpoint{Requested: domain.StageStaging, Observed: domain.StageStaging}, res.Checkpoints[0])
	assert.Equal(t, StageCheckpoint{Requested: domain.StageProduction, Observed: domain.StageProduction}, res.Checkpoints[1])
	assert.Equal(t, "models:/IrisLogisticRegressionModel/Production", res.ModelURI)
	assert.NoError(t, res.LoadError)
	require.NotNil(t, res.Prediction)
	assert.Equal(t, 0, *res.Prediction)
	tracking.AssertExpectations(t)
}

func TestRegistryService_ManageLifecycle_NoVersions(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	store := new(testutil.MockArtifactStore)
	svc := NewRegistryService(tracking, store, registryOpts())

	tracking.On("SearchModelVersions", mock.Anything, mock.Anything).Return([]*domain.ModelVersion{}, nil)

	_, err := svc.ManageLifecycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoModelVersions)
	tracking.AssertNotCalled(t, "TransitionModelVersionStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tracking.AssertNotCalled(t, "GetLatestVersions", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistryService_ManageLifecycle_SearchFails(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	store := new(testutil.MockArtifactStore)
	svc := NewRegistryService(tracking, store, registryOpts())

	tracking.On("SearchModelVersions", mock.Anything, mock.Anything).Return(nil, errors.New("mlflow: http 500: boom"))

	_, err := svc.ManageLifecycle(context.Background())
	assert.ErrorIs(t, err, domain.ErrVersionSearchFailed)
	assert.NotErrorIs(t, err, domain.ErrNoModelVersions)
	tracking.AssertNotCalled(t, "TransitionModelVersionStage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistryService_ManageLifecycle_LoadFailureIsReported(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	store := new(testutil.MockArtifactStore)
	svc := NewRegistryService(tracking, store, registryOpts())

	tracking.On("SearchModelVersions", mock.Anything, mock.Anything).Return([]*domain.ModelVersion{modelVersion(1, domain.StageNone)}, nil)
	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 1, mock.Anything, true).Return(modelVersion(1, domain.StageStaging), nil)
	tracking.On("GetModelVersion", mock.Anything, testModel, 1).Return(modelVersion(1, domain.StageStaging), nil).Once()
	tracking.On("GetModelVersion", mock.Anything, testModel, 1).Return(modelVersion(1, domain.StageProduction), nil)
	tracking.On("GetLatestVersions", mock.Anything, testModel, mock.Anything).Return([]*domain.ModelVersion{modelVersion(1, domain.StageProduction)}, nil)
	store.On("Download", mock.Anything, testSource, mock.Anything).Return(nil, domain.ErrArtifactNotFound)

	res, err := svc.ManageLifecycle(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, res.LoadError, domain.ErrArtifactNotFound)
	assert.Nil(t, res.Prediction)
	assert.Len(t, res.Checkpoints, 2)
}

func TestRegistryService_Promote_WaitsForStage(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), registryOpts())

	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 4, domain.StageStaging, true).Return(modelVersion(4, domain.StageNone), nil)
	tracking.On("GetModelVersion", mock.Anything, testModel, 4).Return(modelVersion(4, domain.StageNone), nil).Twice()
	tracking.On("GetModelVersion", mock.Anything, testModel, 4).Return(modelVersion(4, domain.StageStaging), nil)

	mv, err := svc.Promote(context.Background(), 4, domain.StageStaging)
	require.NoError(t, err)
	assert.Equal(t, domain.StageStaging, mv.CurrentStage)
	tracking.AssertNumberOfCalls(t, "GetModelVersion", 3)
}

func TestRegistryService_Promote_TimeoutReturnsLastObserved(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	opts := registryOpts()
	opts.StageWaitTimeout = 300 * time.Millisecond
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), opts)

	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 1, domain.StageProduction, true).Return(modelVersion(1, domain.StageStaging), nil)
	tracking.On("GetModelVersion", mock.Anything, testModel, 1).Return(modelVersion(1, domain.StageStaging), nil)

	mv, err := svc.Promote(context.Background(), 1, domain.StageProduction)
	require.NoError(t, err)
	assert.Equal(t, domain.StageStaging, mv.CurrentStage)
}

func TestRegistryService_Promote_VersionNotFound(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), registryOpts())

	tracking.On("TransitionModelVersionStage", mock.Anything, testModel, 9, domain.StageStaging, true).Return(nil, domain.ErrVersionNotFound)

	_, err := svc.Promote(context.Background(), 9, domain.StageStaging)
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
	tracking.AssertNotCalled(t, "GetModelVersion", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistryService_Promote_InvalidStage(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), registryOpts())

	_, err := svc.Promote(context.Background(), 1, domain.Stage("Canary"))
	assert.ErrorIs(t, err, domain.ErrInvalidStage)
}

func TestRegistryService_LoadModel_NoProductionVersion(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), registryOpts())

	tracking.On("GetLatestVersions", mock.Anything, testModel, []domain.Stage{domain.StageProduction}).Return([]*domain.ModelVersion{}, nil)

	_, err := svc.LoadModel(context.Background(), domain.StageProduction)
	assert.ErrorIs(t, err, domain.ErrNoProductionModel)
}

func TestRegistryService_LatestVersion(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	svc := NewRegistryService(tracking, new(testutil.MockArtifactStore), registryOpts())

	tracking.On("SearchModelVersions", mock.Anything, mock.Anything).
		Return([]*domain.ModelVersion{modelVersion(5, domain.StageNone), modelVersion(4, domain.StageArchived)}, nil)

	mv, err := svc.LatestVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, mv.Version)
}
