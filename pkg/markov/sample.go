package markov

import (
	"errors"
	"math/rand/v2"
	"sort"
)

var (
	// ErrNoCandidates is returned by the sampler when there is nothing to
	// pick from or every weight is zero.
	ErrNoCandidates = errors.New("markov: no candidates with positive weight")
	// ErrNegativeWeight is returned by the sampler for a weight below zero.
	ErrNegativeWeight = errors.New("markov: negative weight")
)

// Source is the randomness used for sampling. *rand.Rand from math/rand/v2
// satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

// globalSource draws from the top-level math/rand/v2 generator, which is
// safe for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

// Weight is any numeric type usable as a sampling weight.
type Weight interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64 | ~float32 | ~float64
}

// Pick draws an index with probability proportional to its weight. It
// builds the running sum of weights, draws a uniform value in [0, total)
// and returns the left-most index whose running sum exceeds the draw.
// Integer weights draw an exact integer with IntN, so counts are sampled
// without float rounding; Step samples through this path.
func Pick[W Weight](src Source, weights []W) (int, error) {
	if ints, ok := any(weights).([]int); ok {
		return pickInts(src, ints)
	}
	if len(weights) == 0 {
		return 0, ErrNoCandidates
	}
	cumulative := make([]float64, len(weights))
	var total float64
	for i, w := range weights {
		if w < 0 {
			return 0, ErrNegativeWeight
		}
		total += float64(w)
		cumulative[i] = total
	}
	if total <= 0 {
		return 0, ErrNoCandidates
	}
	draw := src.Float64() * total
	i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > draw })
	if i == len(cumulative) {
		// draw rounded up to total; take the last positive weight.
		for i = len(weights) - 1; weights[i] == 0; i-- {
		}
	}
	return i, nil
}

// pickInts is Pick for int weights. The running sum is scanned rather than
// stored, which keeps Step free of allocations.
func pickInts(src Source, weights []int) (int, error) {
	var total int
	for _, w := range weights {
		if w < 0 {
			return 0, ErrNegativeWeight
		}
		total += w
	}
	if total <= 0 {
		return 0, ErrNoCandidates
	}
	draw := src.IntN(total)
	var sum int
	for i, w := range weights {
		sum += w
		if sum > draw {
			return i, nil
		}
	}
	return len(weights) - 1, nil
}

// RandomElement picks one of items uniformly.
func RandomElement[T any](src Source, items []T) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrNoCandidates
	}
	return items[src.IntN(len(items))], nil
}

// WeightedElement picks one of items using weights when they match items
// one to one, and uniformly otherwise.
func WeightedElement[T any, W Weight](src Source, items []T, weights []W) (T, error) {
	var zero T
	if len(items) == 0 {
		return zero, ErrNoCandidates
	}
	if len(weights) != len(items) {
		return RandomElement(src, items)
	}
	i, err := Pick(src, weights)
	if err != nil {
		return zero, err
	}
	return items[i], nil
}
