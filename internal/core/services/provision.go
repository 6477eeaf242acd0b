package services

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
	"iris-model-pipeline/internal/datasets/iris"
)

type ProvisionService struct {
	repo ports.DatasetRepository
	load func() (*domain.Dataset, error)
}

func NewProvisionService(repo ports.DatasetRepository) *ProvisionService {
	return &ProvisionService{repo: repo, load: iris.Load}
}

// Provision writes the Iris dataset to path, replacing any existing file.
func (s *ProvisionService) Provision(ctx context.Context, path string) (*domain.Dataset, error) {
	ds, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if err := s.repo.Write(ctx, path, ds); err != nil {
		return nil, fmt.Errorf("save dataset: %w", err)
	}

	log.WithFields(log.Fields{
		"path": path,
		"rows": ds.Len(),
	}).Infof("Iris dataset saved to %s", path)
	return ds, nil
}
