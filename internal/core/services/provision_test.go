package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"iris-model-pipeline/internal/testutil"
)

func TestProvisionService_Provision(t *testing.T) {
	repo := new(testutil.MockDatasetRepo)
	svc := NewProvisionService(repo)

	repo.On("Write", mock.Anything, "data/iris.csv", mock.AnythingOfType("*domain.Dataset")).Return(nil)

	ds, err := svc.Provision(context.Background(), "data/iris.csv")
	assert.NoError(t, err)
	assert.Equal(t, 150, ds.Len())
	assert.Equal(t, "target", ds.Columns()[4])
	repo.AssertExpectations(t)
}

func TestProvisionService_Provision_WriteError(t *testing.T) {
	repo := new(testutil.MockDatasetRepo)
	svc := NewProvisionService(repo)

	boom := errors.New("read-only file system")
	repo.On("Write", mock.Anything, mock.Anything, mock.Anything).Return(boom)

	_, err := svc.Provision(context.Background(), "/ro/iris.csv")
	assert.ErrorIs(t, err, boom)
}
