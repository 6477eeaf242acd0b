package csvstore

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iris-model-pipeline/internal/core/domain"
	"iris-model-pipeline/internal/datasets/iris"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	repo := NewDatasetRepository()
	path := filepath.Join(t.TempDir(), "nested", "dir", "iris.csv")

	ds, err := iris.Load()
	require.NoError(t, err)
	require.NoError(t, repo.Write(context.Background(), path, ds))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	assert.Len(t, lines, iris.NumSamples+1)
	assert.Equal(t, "sepal length (cm),sepal width (cm),petal length (cm),petal width (cm),target", lines[0])
	assert.Equal(t, "5.1,3.5,1.4,0.2,0", lines[1])

	got, err := repo.Read(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ds.FeatureNames, got.FeatureNames)
	assert.Equal(t, ds.Features, got.Features)
	assert.Equal(t, ds.Targets, got.Targets)
}

func TestWrite_Overwrites(t *testing.T) {
	repo := NewDatasetRepository()
	path := filepath.Join(t.TempDir(), "iris.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("junk\n", 500)), 0o644))

	ds, err := domain.NewDataset([]string{"a"}, [][]float64{{1.5}}, []int{1})
	require.NoError(t, err)
	require.NoError(t, repo.Write(context.Background(), path, ds))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,target\n1.5,1\n", string(data))
}

func TestRead_MissingFile(t *testing.T) {
	_, err := NewDatasetRepository().Read(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, domain.ErrDataFileNotFound)
}

func TestRead_Malformed(t *testing.T) {
	cases := map[string]string{
		"no target column": "a,b\n1,2\n",
		"non numeric":      "a,target\nx,1\n",
		"bad label":        "a,target\n1,1.5\n",
		"ragged row":       "a,b,target\n1,2\n",
		"empty":            "",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := readDataset(strings.NewReader(body))
			assert.ErrorIs(t, err, domain.ErrMalformedDataset)
		})
	}
}

func TestRead_TargetFirstAndFloatLabels(t *testing.T) {
	ds, err := readDataset(strings.NewReader("target,x,y\n2.0,1,2\n0,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ds.FeatureNames)
	assert.Equal(t, []int{2, 0}, ds.Targets)
	assert.Equal(t, [][]float64{{1, 2}, {3, 4}}, ds.Features)
}

func TestRead_HeaderOnly(t *testing.T) {
	_, err := readDataset(strings.NewReader("a,target\n"))
	assert.ErrorIs(t, err, domain.ErrEmptyDataset)
}
