package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"iris-model-pipeline/internal/core/domain"
	ports "iris-model-pipeline/internal/core/ports/output"
)

type datasetRepository struct{}

// NewDatasetRepository creates a DatasetRepository backed by comma separated files with a
// header row.
func NewDatasetRepository() ports.DatasetRepository {
	return &datasetRepository{}
}

func (r *datasetRepository) Write(ctx context.Context, path string, ds *domain.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create data file: %w", err)
	}

	if err := writeDataset(f, ds); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close data file: %w", err)
	}
	return nil
}

func writeDataset(w io.Writer, ds *domain.Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(ds.FeatureNames)+1)
	for i, row := range ds.Features {
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		record[len(row)] = strconv.Itoa(ds.Targets[i])
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func (r *datasetRepository) Read(ctx context.Context, path string) (*domain.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDataFileNotFound, path)
		}
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()

	return readDataset(f)
}

func readDataset(rd io.Reader) (*domain.Dataset, error) {
	cr := csv.NewReader(rd)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header", domain.ErrMalformedDataset)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
	}

	targetIdx := -1
	for i, col := range header {
		if col == domain.TargetColumn {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return nil, fmt.Errorf("%w: no %q column", domain.ErrMalformedDataset, domain.TargetColumn)
	}

	featureNames := make([]string, 0, len(header)-1)
	for i, col := range header {
		if i != targetIdx {
			featureNames = append(featureNames, col)
		}
	}

	var (
		features [][]float64
		targets  []int
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDataset, err)
		}

		row := make([]float64, 0, len(featureNames))
		for i, cell := range rec {
			if i == targetIdx {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %v", domain.ErrMalformedDataset, line, header[i], err)
			}
			row = append(row, v)
		}
		target, err := parseTarget(rec[targetIdx])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d target: %v", domain.ErrMalformedDataset, line, err)
		}
		features = append(features, row)
		targets = append(targets, target)
	}

	if len(targets) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	return domain.NewDataset(featureNames, features, targets)
}

// parseTarget accepts integral values written either as "1" or "1.0".
func parseTarget(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("non-integer class label %q", s)
	}
	return int(f), nil
}
