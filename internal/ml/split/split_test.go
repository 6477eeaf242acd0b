package split

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainTest_Sizes(t *testing.T) {
	train, test, err := TrainTest(150, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 30)
	assert.Len(t, train, 120)

	all := append(append([]int{}, train...), test...)
	sort.Ints(all)
	for i, v := range all {
		assert.Equal(t, i, v)
	}
}

func TestTrainTest_RoundsTestUp(t *testing.T) {
	train, test, err := TrainTest(11, 0.2, 1)
	require.NoError(t, err)
	assert.Len(t, test, 3)
	assert.Len(t, train, 8)
}

func TestTrainTest_Deterministic(t *testing.T) {
	tr1, te1, err := TrainTest(150, 0.2, 42)
	require.NoError(t, err)
	tr2, te2, err := TrainTest(150, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, tr1, tr2)
	assert.Equal(t, te1, te2)

	_, te3, err := TrainTest(150, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, te1, te3)
}

func TestTrainTest_Invalid(t *testing.T) {
	_, _, err := TrainTest(10, 0, 42)
	assert.Error(t, err)
	_, _, err = TrainTest(10, 1, 42)
	assert.Error(t, err)
	_, _, err = TrainTest(1, 0.5, 42)
	assert.Error(t, err)
}
