// Package iris embeds the Fisher Iris dataset (the 150-row revision shipped with scikit-learn).
package iris

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"fmt"
	"strconv"

	"iris-model-pipeline/internal/core/domain"
)

//go:embed iris.data
var raw []byte

const (
	NumSamples  = 150
	NumFeatures = 4
)

var FeatureNames = []string{
	"sepal length (cm)",
	"sepal width (cm)",
	"petal length (cm)",
	"petal width (cm)",
}

var TargetNames = []string{"setosa", "versicolor", "virginica"}

// TargetName returns the species name for a class label, or "" for a label outside 0..2.
func TargetName(class int) string {
	if class < 0 || class >= len(TargetNames) {
		return ""
	}
	return TargetNames[class]
}

// Load parses the embedded rows into a fresh Dataset. Callers may mutate the result.
func Load() (*domain.Dataset, error) {
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read embedded iris data: %w", err)
	}

	features := make([][]float64, 0, len(records))
	targets := make([]int, 0, len(records))
	for i, rec := range records {
		if len(rec) != NumFeatures+1 {
			return nil, fmt.Errorf("iris row %d: %w", i, domain.ErrMalformedDataset)
		}
		row := make([]float64, NumFeatures)
		for j := 0; j < NumFeatures; j++ {
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				return nil, fmt.Errorf("iris row %d col %d: %w", i, j, err)
			}
			row[j] = v
		}
		target, err := strconv.Atoi(rec[NumFeatures])
		if err != nil {
			return nil, fmt.Errorf("iris row %d target: %w", i, err)
		}
		features = append(features, row)
		targets = append(targets, target)
	}

	names := make([]string, len(FeatureNames))
	copy(names, FeatureNames)
	return domain.NewDataset(names, features, targets)
}
