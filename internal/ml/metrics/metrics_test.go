package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iris-model-pipeline/internal/core/domain"
)

func TestEvaluate_Perfect(t *testing.T) {
	y := []int{0, 1, 2, 2, 1, 0}
	r, err := Evaluate(y, y)
	require.NoError(t, err)
	for name, v := range r.Map() {
		assert.InDelta(t, 1.0, v, 1e-12, name)
	}
}

func TestEvaluate_Weighted(t *testing.T) {
	yTrue := []int{0, 0, 1, 1, 1, 2}
	yPred := []int{0, 1, 1, 1, 2, 2}
	r, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)

	// class 0: p=1 r=0.5 f1=2/3 support 2
	// class 1: p=2/3 r=2/3 f1=2/3 support 3
	// class 2: p=0.5 r=1 f1=2/3 support 1
	assert.InDelta(t, 4.0/6, r.Accuracy, 1e-12)
	assert.InDelta(t, (2*1+3*(2.0/3)+1*0.5)/6, r.Precision, 1e-12)
	assert.InDelta(t, (2*0.5+3*(2.0/3)+1*1)/6, r.Recall, 1e-12)
	assert.InDelta(t, 2.0/3, r.F1, 1e-12)
}

func TestEvaluate_ZeroDivisionIsZero(t *testing.T) {
	// class 1 is never predicted: its precision has a zero denominator.
	yTrue := []int{0, 1}
	yPred := []int{0, 0}
	r, err := Evaluate(yTrue, yPred)
	require.NoError(t, err)

	assert.InDelta(t, 0.5, r.Accuracy, 1e-12)
	assert.InDelta(t, 0.25, r.Precision, 1e-12)
	assert.InDelta(t, 0.5, r.Recall, 1e-12)
	for name, v := range r.Map() {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 1.0, name)
	}
}

func TestEvaluate_Errors(t *testing.T) {
	_, err := Evaluate([]int{0}, []int{0, 1})
	assert.ErrorIs(t, err, domain.ErrMalformedDataset)

	_, err = Evaluate(nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyDataset)
}

func TestReport_Map(t *testing.T) {
	m := Report{Accuracy: 0.1, Precision: 0.2, Recall: 0.3, F1: 0.4}.Map()
	assert.Equal(t, map[string]float64{
		"accuracy": 0.1, "precision": 0.2, "recall": 0.3, "f1_score": 0.4,
	}, m)
}
