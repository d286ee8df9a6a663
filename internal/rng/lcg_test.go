/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lcg_test.go
Description: Golden-value and invariant tests for the deterministic LCG.
*/

package rng_test

import (
	"testing"

	"github.com/kleascm/fuzzcore/internal/rng"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextGoldenSequence(t *testing.T) {
	l := rng.NewLCG(42)
	want := []uint32{175, 400, 17869, 30056, 16083, 12879, 8016, 7644, 15809, 1769, 32409, 29950}
	for i, w := range want {
		got := l.Next()
		assert.Equalf(t, w, got, "draw %d", i)
	}
}

func TestUint32GoldenSequence(t *testing.T) {
	l := rng.NewLCG(42)
	want := []uint32{1086849199, 3748263272, 1324228432, 3209463529}
	for i, w := range want {
		got := l.Uint32()
		assert.Equalf(t, w, got, "draw %d", i)
	}
}

func TestSameSeedSameSequence(t *testing.T) {
	a := rng.NewLCG(1234)
	b := rng.NewLCG(1234)
	for i := 0; i < 100; i++ {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a := rng.NewLCG(1)
	b := rng.NewLCG(2)
	same := true
	for i := 0; i < 20; i++ {
		if a.Next() != b.Next() {
			same = false
			break
		}
	}
	assert.False(t, same, "two distinct seeds should not produce identical sequences")
}

func TestIntInRangeBounds(t *testing.T) {
	l := rng.NewLCG(7)
	for i := 0; i < 1000; i++ {
		v := l.IntInRange(10, 20)
		assert.GreaterOrEqual(t, v, uint64(10))
		assert.Less(t, v, uint64(20))
	}
}

func TestIntInRangeEmptyRangePanics(t *testing.T) {
	l := rng.NewLCG(7)
	assert.Panics(t, func() {
		l.IntInRange(5, 5)
	})
}

func TestWeightedPickRespectsZeroWeightPrefix(t *testing.T) {
	l := rng.NewLCG(99)
	cumulative := []float64{0, 0, 10, 10}
	for i := 0; i < 200; i++ {
		idx := l.WeightedPick(cumulative)
		assert.Equal(t, 2, idx, "only index 2 carries any weight")
	}
}

func TestWeightedPickEmptyPanics(t *testing.T) {
	l := rng.NewLCG(7)
	assert.Panics(t, func() {
		l.WeightedPick(nil)
	})
}

func TestShuffleIsPermutation(t *testing.T) {
	l := rng.NewLCG(55)
	n := 20
	seen := make([]int, n)
	for i := range seen {
		seen[i] = i
	}
	l.Shuffle(n, func(i, j int) {
		seen[i], seen[j] = seen[j], seen[i]
	})

	present := make(map[int]bool, n)
	for _, v := range seen {
		present[v] = true
	}
	assert.Len(t, present, n)
}
