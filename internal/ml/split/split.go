// Package split partitions row indices into train and test sets.
package split

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// TrainTest shuffles 0..n-1 with a generator seeded by seed and returns
// ceil(testSize*n) test indices and the remaining train indices. The same
// (n, testSize, seed) always yields the same partition.
func TrainTest(n int, testSize float64, seed int64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return nil, nil, fmt.Errorf("test size %v leaves no rows in one partition of %d", testSize, n)
	}

	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	perm := rng.Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
