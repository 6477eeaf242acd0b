package domain

import "fmt"

const TargetColumn = "target"

// Dataset is a fully materialised table of numeric features and integer class labels.
type Dataset struct {
	FeatureNames []string
	TargetName   string
	Features     [][]float64
	Targets      []int
}

// NewDataset validates the shape of the table before wrapping it.
func NewDataset(featureNames []string, features [][]float64, targets []int) (*Dataset, error) {
	if len(featureNames) == 0 {
		return nil, fmt.Errorf("%w: no feature columns", ErrMalformedDataset)
	}
	if len(features) != len(targets) {
		return nil, fmt.Errorf("%w: %d feature rows but %d targets", ErrMalformedDataset, len(features), len(targets))
	}
	for i, row := range features {
		if len(row) != len(featureNames) {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrMalformedDataset, i, len(row), len(featureNames))
		}
	}
	return &Dataset{
		FeatureNames: featureNames,
		TargetName:   TargetColumn,
		Features:     features,
		Targets:      targets,
	}, nil
}

func (d *Dataset) Len() int {
	return len(d.Targets)
}

// Columns returns the header row: feature names followed by the target column.
func (d *Dataset) Columns() []string {
	cols := make([]string, 0, len(d.FeatureNames)+1)
	cols = append(cols, d.FeatureNames...)
	return append(cols, d.TargetName)
}

// Subset returns a dataset holding the rows at idx, in idx order.
func (d *Dataset) Subset(idx []int) *Dataset {
	out := &Dataset{
		FeatureNames: d.FeatureNames,
		TargetName:   d.TargetName,
		Features:     make([][]float64, len(idx)),
		Targets:      make([]int, len(idx)),
	}
	for i, j := range idx {
		out.Features[i] = d.Features[j]
		out.Targets[i] = d.Targets[j]
	}
	return out
}
