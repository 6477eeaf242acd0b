package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"iris-model-pipeline/internal/core/domain"
	"iris-model-pipeline/internal/datasets/iris"
	"iris-model-pipeline/internal/ml/logreg"
)

func irisDataset(t *testing.T) *domain.Dataset {
	t.Helper()
	ds, err := iris.Load()
	require.NoError(t, err)
	return ds
}

func fitIris(t *testing.T) *logreg.Classifier {
	t.Helper()
	ds := irisDataset(t)
	clf := logreg.New(logreg.DefaultParams())
	clf.FeatureNames = ds.FeatureNames
	require.NoError(t, clf.Fit(ds.Features, ds.Targets))
	return clf
}
