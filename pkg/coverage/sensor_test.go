/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: sensor_test.go
Description: Tests for the TracePC sensor's guard table, feature
collection ordering/dedup, and cumulative edge-seen bookkeeping.
*/

package coverage_test

import (
	"testing"

	"github.com/kleascm/fuzzcore/internal/feature"
	"github.com/kleascm/fuzzcore/pkg/coverage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initGuards(s *coverage.Sensor, n int) []uint32 {
	guards := make([]uint32, n)
	s.HandlePCGuardInit(guards)
	return guards
}

func TestGuardInitIsIdempotent(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 4)
	first := append([]uint32{}, guards...)

	s.HandlePCGuardInit(guards)
	assert.Equal(t, first, guards)
}

func TestGuardCounterSaturatesAt255(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 1)
	id := guards[0]

	for i := 0; i < 300; i++ {
		s.HandlePCGuard(id)
	}

	var found feature.Feature
	var count int
	s.CollectFeatures(func(f feature.Feature) {
		found = f
		count++
	})
	require.Equal(t, 1, count)
	assert.Equal(t, feature.Bucket(255), found.CounterBucket)
}

func TestCollectFeaturesSkipsZeroCounters(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 3)
	s.HandlePCGuard(guards[1])

	count := 0
	s.CollectFeatures(func(f feature.Feature) { count++ })
	assert.Equal(t, 1, count)
}

func TestCollectFeaturesEmitsEdgesInAscendingGuardOrder(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 5)
	s.HandlePCGuard(guards[3])
	s.HandlePCGuard(guards[1])
	s.HandlePCGuard(guards[4])

	var order []uint32
	s.CollectFeatures(func(f feature.Feature) {
		order = append(order, f.GuardID)
	})
	assert.Equal(t, []uint32{guards[1], guards[3], guards[4]}, order)
}

func TestIndirectCallsDedupByReducedKey(t *testing.T) {
	s := coverage.New(0)
	s.HandlePCIndir(0x1000, 0x2000)
	s.HandlePCIndir(0x1000, 0x2000)
	s.HandlePCIndir(0x1001, 0x2000)

	count := 0
	s.CollectFeatures(func(f feature.Feature) { count++ })
	assert.Equal(t, 2, count)
}

func TestComparisonsDedupByReducedKey(t *testing.T) {
	s := coverage.New(0)
	s.HandleTraceCmp32(0x500, 1, 2)
	s.HandleTraceCmp32(0x500, 4, 8)

	count := 0
	s.CollectFeatures(func(f feature.Feature) { count++ })
	assert.Equal(t, 1, count, "same pc, same hamming distance bucket => same reduced key")
}

func TestResetCollectedFeaturesClearsPerExecutionStateOnly(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 2)
	s.HandlePCGuard(guards[0])
	s.HandlePCIndir(1, 2)
	s.RecordEdgeObserved(guards[0])

	s.ResetCollectedFeatures()

	count := 0
	s.CollectFeatures(func(f feature.Feature) { count++ })
	assert.Equal(t, 0, count)
	assert.Equal(t, 1, s.TotalEdgesObserved(), "cumulative edge-seen state must survive a reset")
}

func TestRecordEdgeObservedIsOnlyWriter(t *testing.T) {
	s := coverage.New(0)
	guards := initGuards(s, 3)
	s.HandlePCGuard(guards[0])
	s.HandlePCGuard(guards[1])

	s.CollectFeatures(func(f feature.Feature) {})
	assert.Equal(t, 0, s.TotalEdgesObserved(), "CollectFeatures alone must not mark edges observed")

	s.RecordEdgeObserved(guards[0])
	assert.Equal(t, 1, s.TotalEdgesObserved())
}

func TestTraceCmp32FeedsTORC4(t *testing.T) {
	s := coverage.New(0)
	s.HandleTraceCmp32(0x10, 0b1010, 0b0000)

	_, ok := s.TORC4().Get(3)
	assert.True(t, ok, "hamming distance 2 => slot 3")
}

func TestOnSaturateFiresOnce(t *testing.T) {
	s := coverage.New(2)
	fired := 0
	s.OnSaturate(func(n uint32) { fired++ })

	initGuards(s, 5)
	assert.Equal(t, 1, fired)
}

func TestSaturatedGuardsFoldOntoEarlierIdsInsteadOfBeingDropped(t *testing.T) {
	s := coverage.New(2)
	guards := initGuards(s, 5)

	for _, id := range guards {
		assert.GreaterOrEqual(t, id, uint32(1))
		assert.LessOrEqual(t, id, uint32(2))
	}

	for _, id := range guards {
		s.HandlePCGuard(id)
	}

	var collected []feature.Feature
	s.CollectFeatures(func(f feature.Feature) { collected = append(collected, f) })
	assert.NotEmpty(t, collected, "folded guard ids must still register edge hits")
}
