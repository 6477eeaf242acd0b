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
	"iris-model-pipeline/internal/testutil"
)

func TestBuildDescriptor(t *testing.T) {
	clf := fitIris(t)

	out, err := buildDescriptor("iris_model", "abc", clf, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	doc, err := parseDescriptor(out)
	require.NoError(t, err)
	assert.Equal(t, "iris_model", doc.ArtifactPath)
	assert.Equal(t, "abc", doc.RunID)
	assert.Equal(t, "2024-01-02 03:04:05.000000", doc.UTCTimeCreated)
	assert.NotEmpty(t, doc.ModelUUID)
	assert.Equal(t, ModelDataFile, doc.Flavors[FlavorName].Data)
	assert.Equal(t, []int{0, 1, 2}, doc.Flavors[FlavorName].Classes)
	assert.Len(t, doc.Signature["inputs"], 4)
}

func TestParseDescriptor_MissingFlavor(t *testing.T) {
	_, err := parseDescriptor([]byte("artifact_path: model\nflavors:\n  python_function:\n    loader_module: x\n"))
	assert.Error(t, err)
}

func TestLogModel(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	run := &domain.Run{ID: "abc", ArtifactURI: "mlflow-artifacts:/0/abc/artifacts"}

	store.On("Upload", mock.Anything, run.ArtifactURI, "iris_model/model.json", mock.Anything).Return(nil)
	store.On("Upload", mock.Anything, run.ArtifactURI, "iris_model/MLmodel", mock.Anything).Return(nil)

	err := logModel(context.Background(), store, run, "iris_model", fitIris(t))
	assert.NoError(t, err)
	store.AssertExpectations(t)
}

func TestResolveSource(t *testing.T) {
	tracking := new(testutil.MockTrackingClient)
	tracking.On("GetRun", mock.Anything, "abc").Return(&domain.Run{ID: "abc", ArtifactURI: "mlflow-artifacts:/0/abc/artifacts/"}, nil)

	root, err := resolveSource(context.Background(), tracking, "runs:/abc/iris_model")
	require.NoError(t, err)
	assert.Equal(t, "mlflow-artifacts:/0/abc/artifacts/iris_model", root)

	root, err = resolveSource(context.Background(), tracking, "file:///tmp/mlruns/0/abc/artifacts/iris_model")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/mlruns/0/abc/artifacts/iris_model", root)
	tracking.AssertNumberOfCalls(t, "GetRun", 1)
}

func TestLoadModel_FollowsDescriptor(t *testing.T) {
	clf := fitIris(t)
	data, err := clf.MarshalArtifact()
	require.NoError(t, err)
	desc := []byte("flavors:\n  go_logreg:\n    data: weights.json\n")

	store := new(testutil.MockArtifactStore)
	store.On("Download", mock.Anything, testSource, ModelDescriptor).Return(desc, nil)
	store.On("Download", mock.Anything, testSource, "weights.json").Return(data, nil)

	got, err := loadModel(context.Background(), new(testutil.MockTrackingClient), store, testSource)
	require.NoError(t, err)
	assert.Equal(t, clf.Classes, got.Classes)
	assert.Equal(t, clf.Coef, got.Coef)
}

func TestLoadModel_DescriptorReadError(t *testing.T) {
	store := new(testutil.MockArtifactStore)
	store.On("Download", mock.Anything, testSource, ModelDescriptor).Return(nil, errors.New("http 503"))

	_, err := loadModel(context.Background(), new(testutil.MockTrackingClient), store, testSource)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ModelDescriptor)
	store.AssertNotCalled(t, "Download", mock.Anything, testSource, ModelDataFile)
}
