package ports

import (
	"context"

	"iris-model-pipeline/internal/core/domain"
)

// DatasetRepository persists tabular datasets.
type DatasetRepository interface {
	// Write replaces whatever is stored at path.
	Write(ctx context.Context, path string, ds *domain.Dataset) error
	// Read returns domain.ErrDataFileNotFound when nothing is stored at path.
	Read(ctx context.Context, path string) (*domain.Dataset, error)
}
