/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: lane.go
Description: A Lane is one single-threaded mutate-run-observe-accept
fuzzing loop: its own sensor, its own pool, its own PRNG. No suspension
points appear inside Step, matching the engine's single-threaded-per-lane
scheduling model.
*/

package engine

import (
	"fmt"
	"time"

	"github.com/kleascm/fuzzcore/internal/feature"
	"github.com/kleascm/fuzzcore/internal/rng"
	"github.com/kleascm/fuzzcore/pkg/corpus"
	"github.com/kleascm/fuzzcore/pkg/coverage"
	"github.com/sirupsen/logrus"
)

// Mutator produces a candidate input and its complexity from a parent
// unit. Concrete mutators are out of scope for this engine; the caller
// supplies one.
type Mutator func(rand *rng.LCG, parent []byte) (unit []byte, complexity float64)

// TestFunc runs the target against a candidate input. It returns true if
// the input crashed the target; the lane recovers any panic raised by
// the target itself and treats it as a crash.
type TestFunc func(unit []byte) bool

// CrashHandler is invoked once per crashing input, outside the hot path.
type CrashHandler func(unit []byte, recovered any)

// Metrics receives per-step observability events. A Lane calls these
// synchronously from its own Step; implementations must tolerate being
// called from many Lanes' distinct goroutines concurrently, but never
// concurrently by the same Lane.
type Metrics interface {
	ObserveExecution()
	ObserveAccepted(complexity float64)
	ObserveEvicted()
	ObserveCrash()
}

// EventLog receives the lane's lifecycle events outside its hot path:
// one execution, one acceptance, one eviction. *fuzzlog.Logger satisfies
// this without pkg/engine importing pkg/fuzzlog directly.
type EventLog interface {
	LogLaneExecution(laneID string, duration time.Duration, featuresEmitted int, fields map[string]interface{})
	LogUnitAccepted(unitID string, complexity float64, newFeatures int, fields map[string]interface{})
	LogUnitEvicted(unitID string, fields map[string]interface{})
}

// Lane runs one fuzzing loop. Not safe for concurrent use; run several
// Lanes concurrently via Runner instead.
type Lane struct {
	ID int

	sensor *coverage.Sensor
	pool   *corpus.Pool
	rand   *rng.LCG
	world  corpus.World

	mutate  Mutator
	test    TestFunc
	onCrash CrashHandler
	metrics Metrics
	events  EventLog

	logger *logrus.Logger

	executions uint64
	accepted   uint64
	crashes    uint64
}

// NewLane builds a lane with its own sensor, pool, and PRNG. maxNumGuards
// configures the sensor's guard-saturation limit (0 selects
// coverage.DefaultMaxNumGuards); favoredOdds configures the pool's
// favored-unit selection probability (0 selects corpus.DefaultFavoredOdds).
func NewLane(id int, seed uint32, maxNumGuards uint32, favoredOdds float64, world corpus.World, mutate Mutator, test TestFunc, logger *logrus.Logger) *Lane {
	if logger == nil {
		logger = logrus.New()
	}
	pool := corpus.New()
	if favoredOdds > 0 {
		pool.SetFavoredOdds(favoredOdds)
	}
	return &Lane{
		ID:     id,
		sensor: coverage.New(maxNumGuards),
		pool:   pool,
		rand:   rng.NewLCG(seed),
		world:  world,
		mutate: mutate,
		test:   test,
		logger: logger,
	}
}

// Sensor exposes the lane's coverage sensor, for wiring instrumentation
// callbacks before the loop starts.
func (l *Lane) Sensor() *coverage.Sensor {
	return l.sensor
}

// Pool exposes the lane's corpus.
func (l *Lane) Pool() *corpus.Pool {
	return l.pool
}

// OnCrash registers a handler invoked whenever Step's test run crashes.
func (l *Lane) OnCrash(handler CrashHandler) {
	l.onCrash = handler
}

// SetTest replaces the lane's target function. Exists because a target
// that drives the lane's own Sensor needs a reference to it, which is
// only available after NewLane returns.
func (l *Lane) SetTest(test TestFunc) {
	l.test = test
}

// SetMetrics wires an observability sink into the lane's loop. Optional;
// a nil Metrics (the default) makes Step a no-op for reporting.
func (l *Lane) SetMetrics(m Metrics) {
	l.metrics = m
}

// SetEventLog wires a structured event sink into the lane's loop.
// Optional; a nil EventLog (the default) makes Step a no-op for event
// logging beyond the plain *logrus.Logger calls already in execute/accept.
func (l *Lane) SetEventLog(e EventLog) {
	l.events = e
}

// Seed runs a unit through the target once, unconditionally accepting it
// into the pool if it carries any feature at all. Used to bootstrap a
// lane's corpus before the mutate loop starts.
func (l *Lane) Seed(unit []byte, complexity float64) error {
	features, crashed := l.execute(unit)
	if crashed {
		return fmt.Errorf("engine: seed unit crashed the target")
	}
	if len(features) == 0 {
		return nil
	}
	l.accept(unit, complexity, features)
	return nil
}

// Step runs one mutate-run-observe-accept iteration. Returns true if the
// candidate was accepted into the pool.
func (l *Lane) Step() (bool, error) {
	if l.pool.Len() == 0 {
		return false, fmt.Errorf("engine: lane %d has an empty pool; call Seed before Step", l.ID)
	}

	idx := l.pool.ChooseUnitIdxToMutate(l.rand)
	parent := l.pool.Get(idx)

	candidate, complexity := l.mutate(l.rand, parent.Unit)

	features, crashed := l.execute(candidate)
	if crashed {
		l.crashes++
		l.logger.WithFields(logrus.Fields{"lane": l.ID, "executions": l.executions}).Warn("target crashed")
		return false, nil
	}

	if !l.pool.IsInteresting(complexity, features) {
		return false, nil
	}

	l.accept(candidate, complexity, features)
	return true, nil
}

// execute runs one instrumented target invocation and drains the
// sensor's feature stream. A panic inside test is recovered and reported
// as a crash, matching the teacher's worker-level panic containment.
func (l *Lane) execute(unit []byte) (features []feature.Feature, crashed bool) {
	l.sensor.ResetCollectedFeatures()

	start := time.Now()
	func() {
		defer func() {
			if r := recover(); r != nil {
				crashed = true
				if l.onCrash != nil {
					l.onCrash(unit, r)
				}
			}
		}()
		crashed = l.test(unit)
	}()
	duration := time.Since(start)

	l.executions++
	if l.metrics != nil {
		l.metrics.ObserveExecution()
	}
	if crashed {
		if l.metrics != nil {
			l.metrics.ObserveCrash()
		}
		return nil, true
	}

	l.sensor.CollectFeatures(func(f feature.Feature) {
		features = append(features, f)
	})
	if l.events != nil {
		l.events.LogLaneExecution(fmt.Sprintf("lane-%d", l.ID), duration, len(features), nil)
	}
	return features, false
}

// accept records a newly interesting unit: marks every edge it carries
// as cumulatively observed, appends it to the pool, rescales scores and
// weights, and applies the resulting add/remove callbacks against the
// lane's World.
func (l *Lane) accept(unit []byte, complexity float64, features []feature.Feature) {
	for _, f := range features {
		if f.Kind == feature.KindEdge {
			l.sensor.RecordEdgeObserved(f.GuardID)
		}
	}

	info := corpus.UnitInfo{
		ID:         fmt.Sprintf("lane-%d-unit-%d", l.ID, l.accepted),
		Unit:       unit,
		Complexity: complexity,
		Features:   features,
	}

	addCB := l.pool.Append(info)
	l.accepted++
	if l.metrics != nil {
		l.metrics.ObserveAccepted(complexity)
	}
	if l.events != nil {
		l.events.LogUnitAccepted(info.ID, complexity, len(features), nil)
	}

	if l.world != nil {
		if err := addCB(l.world); err != nil {
			l.logger.WithFields(logrus.Fields{"lane": l.ID}).Errorf("failed to persist accepted unit: %v", err)
		}
	}

	removals := l.pool.UpdateScoresAndWeights()
	for _, rm := range removals {
		if l.metrics != nil {
			l.metrics.ObserveEvicted()
		}
		if l.events != nil {
			l.events.LogUnitEvicted(rm.ID, nil)
		}
		if l.world != nil {
			if err := rm.Remove(l.world); err != nil {
				l.logger.WithFields(logrus.Fields{"lane": l.ID}).Errorf("failed to remove evicted unit: %v", err)
			}
		}
	}

	l.logger.WithFields(logrus.Fields{
		"lane":            l.ID,
		"pool_size":       l.pool.Len(),
		"pool_score":      l.pool.CoverageScore(),
		"new_features":    len(features),
		"unit_complexity": complexity,
	}).Info("unit accepted")
}

// Stats returns a snapshot of the lane's execution counters.
func (l *Lane) Stats() (executions, accepted, crashes uint64) {
	return l.executions, l.accepted, l.crashes
}
