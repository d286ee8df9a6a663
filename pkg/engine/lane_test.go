/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lane_test.go
Description: Tests for the single-lane mutate-run-observe-accept loop.
*/

package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/kleascm/fuzzcore/internal/rng"
	"github.com/kleascm/fuzzcore/pkg/engine"
	"github.com/kleascm/fuzzcore/pkg/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func byteLengthMutator(rand *rng.LCG, parent []byte) ([]byte, float64) {
	mutated := append([]byte{}, parent...)
	mutated[0] = byte(rand.Next())
	return mutated, float64(len(mutated))
}

type fakeEventLog struct {
	executions int
	accepted   int
	evicted    int
}

func (f *fakeEventLog) LogLaneExecution(laneID string, duration time.Duration, featuresEmitted int, fields map[string]interface{}) {
	f.executions++
}

func (f *fakeEventLog) LogUnitAccepted(unitID string, complexity float64, newFeatures int, fields map[string]interface{}) {
	f.accepted++
}

func (f *fakeEventLog) LogUnitEvicted(unitID string, fields map[string]interface{}) {
	f.evicted++
}

// newCoverageLane builds a lane whose target exercises a different guard
// depending on the first byte of the candidate input, giving the lane
// real feedback to chase.
func newCoverageLane(id int, seed uint32, w *world.MemoryWorld) (*engine.Lane, []uint32) {
	l := engine.NewLane(id, seed, 0, 0, w, byteLengthMutator, nil, nil)
	guards := make([]uint32, 3)
	l.Sensor().HandlePCGuardInit(guards)
	l.SetTest(func(unit []byte) bool {
		if len(unit) == 0 {
			return false
		}
		switch {
		case unit[0] == 0:
			l.Sensor().HandlePCGuard(guards[0])
		case unit[0] < 128:
			l.Sensor().HandlePCGuard(guards[1])
		default:
			l.Sensor().HandlePCGuard(guards[2])
		}
		return false
	})
	return l, guards
}

func TestLaneSeedAndStepAccumulateCoverage(t *testing.T) {
	w := world.NewMemoryWorld()
	l, _ := newCoverageLane(0, 42, w)

	require.NoError(t, l.Seed([]byte{0}, 1))
	assert.Equal(t, 1, l.Pool().Len())

	accepted := false
	for i := 0; i < 50 && !accepted; i++ {
		var err error
		accepted, err = l.Step()
		require.NoError(t, err)
	}
	assert.True(t, accepted, "mutating the seed byte should eventually discover a new edge feature")

	executions, acceptedCount, crashes := l.Stats()
	assert.Greater(t, executions, uint64(0))
	assert.GreaterOrEqual(t, acceptedCount, uint64(2))
	assert.Equal(t, uint64(0), crashes)
}

func TestLaneStepOnEmptyPoolErrors(t *testing.T) {
	l := engine.NewLane(0, 1, 0, 0, nil, byteLengthMutator, func(u []byte) bool { return false }, nil)
	_, err := l.Step()
	assert.Error(t, err)
}

func TestLaneSeedRecoversCrashes(t *testing.T) {
	w := world.NewMemoryWorld()
	guards := make([]uint32, 1)

	l := engine.NewLane(0, 3, 0, 0, w, byteLengthMutator, nil, nil)
	l.Sensor().HandlePCGuardInit(guards)

	crashed := false
	l.OnCrash(func(unit []byte, recovered any) { crashed = true })
	l.SetTest(func(unit []byte) bool {
		l.Sensor().HandlePCGuard(guards[0])
		panic("boom")
	})

	require.Error(t, l.Seed([]byte{1}, 1), "a seed unit that crashes must report an error")
	assert.True(t, crashed)
}

func TestNewLaneThreadsMaxNumGuardsIntoItsSensor(t *testing.T) {
	l := engine.NewLane(0, 1, 2, 0, nil, byteLengthMutator, nil, nil)
	guards := make([]uint32, 5)
	l.Sensor().HandlePCGuardInit(guards)
	assert.LessOrEqual(t, l.Sensor().NumGuards(), uint32(2))
}

func TestSetEventLogReceivesExecutionAndAcceptanceEvents(t *testing.T) {
	w := world.NewMemoryWorld()
	l, _ := newCoverageLane(0, 42, w)

	events := &fakeEventLog{}
	l.SetEventLog(events)

	require.NoError(t, l.Seed([]byte{0}, 1))
	assert.Equal(t, 1, events.executions)
	assert.Equal(t, 1, events.accepted)
}

func TestRunnerRunReturnsFirstLaneError(t *testing.T) {
	l1 := engine.NewLane(0, 1, 0, 0, nil, byteLengthMutator, nil, nil)
	l2 := engine.NewLane(1, 2, 0, 0, nil, byteLengthMutator, nil, nil)
	r := engine.NewRunner(l1, l2)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := r.Run(ctx, func(ctx context.Context, lane *engine.Lane) error {
		return assert.AnError
	})
	assert.Error(t, err)
}
