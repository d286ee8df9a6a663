/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: sensor.go
Description: TracePC coverage sensor. Owns the per-guard edge counter
table, the indirect-call and comparison lists for the execution in flight,
and the TORC/value-bitmap tables instrumentation callbacks feed into.
Emits a deterministic, ordered feature stream per execution via
CollectFeatures. The instrumentation callbacks (HandlePCGuard,
HandlePCIndir, HandleTraceCmp*) are the hot path: they take no lock and
only append to buffers that keep their capacity across executions.
CollectFeatures sorts copies of the per-execution lists, so it allocates
once per execution.
*/

package coverage

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/kleascm/fuzzcore/internal/feature"
	"github.com/kleascm/fuzzcore/internal/torc"
	"github.com/kleascm/fuzzcore/internal/valuemap"
)

// DefaultMaxNumGuards is the upper bound on instrumented edges before the
// sensor starts saturating guard ids modulo this limit.
const DefaultMaxNumGuards = 1 << 21

type indirectEvent struct {
	caller, callee uint64
	reduced        feature.Reduced
}

type comparisonEvent struct {
	pc, arg1, arg2 uint64
	reduced        feature.Reduced
}

// Sensor is the TracePC coverage sensor. One Sensor exists per fuzzing
// lane; it is not safe for concurrent use by more than one goroutine.
type Sensor struct {
	maxNumGuards uint32

	// Guard table state, lives for the process (or lane) lifetime.
	numGuards    uint32
	counters     []uint8
	edgeObserved []bool // cumulative, updated only on RecordEdgeObserved

	// Per-execution state, cleared by ResetCollectedFeatures.
	indirects    []indirectEvent
	comparisons  []comparisonEvent

	torc4 *torc.Table[uint32]
	torc8 *torc.Table[uint64]

	valueBitmap *valuemap.Map

	saturationWarned bool
	onSaturate       func(numGuards uint32)
	foldCounter      uint32
}

// New creates a sensor with the given max-guards saturation limit. A
// limit of 0 selects DefaultMaxNumGuards.
func New(maxNumGuards uint32) *Sensor {
	if maxNumGuards == 0 {
		maxNumGuards = DefaultMaxNumGuards
	}
	return &Sensor{
		maxNumGuards: maxNumGuards,
		torc4:        torc.New[uint32](),
		torc8:        torc.New[uint64](),
		valueBitmap:  valuemap.New(),
	}
}

// OnSaturate registers a callback invoked exactly once, the first time the
// number of guards would exceed maxNumGuards.
func (s *Sensor) OnSaturate(fn func(numGuards uint32)) {
	s.onSaturate = fn
}

// HandlePCGuardInit walks a module's guard range, assigning each slot a
// fresh increasing guard id starting from 1. Idempotent: if the range was
// already initialized (first slot nonzero), it is ignored.
//
// Once numGuards reaches maxNumGuards, further slots fold onto earlier
// ids (guard_id % maxNumGuards, 1-based) instead of all collapsing onto
// a single saturation id, so edges beyond the limit still contribute
// distinguishable feedback rather than being dropped by HandlePCGuard's
// bounds check.
func (s *Sensor) HandlePCGuardInit(guards []uint32) {
	if len(guards) == 0 {
		return
	}
	if guards[0] != 0 {
		return // already initialized
	}

	for i := range guards {
		if s.numGuards+1 > s.maxNumGuards {
			if !s.saturationWarned {
				s.saturationWarned = true
				if s.onSaturate != nil {
					s.onSaturate(s.numGuards)
				}
			}
			s.foldCounter++
			guards[i] = (s.foldCounter % s.maxNumGuards) + 1
			continue
		}
		s.numGuards++
		guards[i] = s.numGuards
	}

	s.growGuardBuffers()
}

func (s *Sensor) growGuardBuffers() {
	need := int(s.numGuards) + 1
	if len(s.counters) >= need {
		return
	}
	counters := make([]uint8, need)
	copy(counters, s.counters)
	s.counters = counters

	observed := make([]bool, need)
	copy(observed, s.edgeObserved)
	s.edgeObserved = observed
}

// HandlePCGuard increments the saturating 8-bit counter for the edge
// identified by guardID. Called on every edge entry.
func (s *Sensor) HandlePCGuard(guardID uint32) {
	if guardID == 0 || int(guardID) >= len(s.counters) {
		return
	}
	if s.counters[guardID] < 255 {
		s.counters[guardID]++
	}
}

// HandlePCIndir records an observed indirect call pair.
func (s *Sensor) HandlePCIndir(caller, callee uint64) {
	f := feature.NewIndirect(caller, callee)
	s.indirects = append(s.indirects, indirectEvent{
		caller: caller, callee: callee, reduced: f.Reduced(),
	})
	s.valueBitmap.AddValueModPrime(caller ^ callee)
}

// HandleTraceCmp8 records a comparison of two 8-bit operands.
func (s *Sensor) HandleTraceCmp8(pc uint64, a, b uint8) {
	s.recordComparison(pc, uint64(a), uint64(b))
}

// HandleTraceCmp16 records a comparison of two 16-bit operands.
func (s *Sensor) HandleTraceCmp16(pc uint64, a, b uint16) {
	s.recordComparison(pc, uint64(a), uint64(b))
}

// HandleTraceCmp32 records a comparison of two 32-bit operands, and
// mines the pair into torc4.
func (s *Sensor) HandleTraceCmp32(pc uint64, a, b uint32) {
	s.recordComparison(pc, uint64(a), uint64(b))
	slot := bits.OnesCount32(a^b) + 1
	s.torc4.Record(uint64(slot), a, b)
}

// HandleTraceCmp64 records a comparison of two 64-bit operands, and
// mines the pair into torc8.
func (s *Sensor) HandleTraceCmp64(pc uint64, a, b uint64) {
	s.recordComparison(pc, a, b)
	slot := bits.OnesCount64(a^b) + 1
	s.torc8.Record(uint64(slot), a, b)
}

func (s *Sensor) recordComparison(pc, a, b uint64) {
	f := feature.NewComparison(pc, a, b)
	s.comparisons = append(s.comparisons, comparisonEvent{
		pc: pc, arg1: a, arg2: b, reduced: f.Reduced(),
	})
	s.valueBitmap.AddValue(a ^ b)
}

// CollectFeatures emits, in the deterministic order required by the
// sensor's contract:
//  1. every nonzero edge counter, in ascending guard-id order;
//  2. the indirect-call list, sorted by reduced key, consecutive
//     duplicates by reduced key skipped;
//  3. the comparison list, sorted the same way.
func (s *Sensor) CollectFeatures(handle func(feature.Feature)) {
	for guardID := 1; guardID < len(s.counters); guardID++ {
		count := s.counters[guardID]
		if count == 0 {
			continue
		}
		handle(feature.NewEdge(uint32(guardID), feature.Bucket(count)))
	}

	sorted := make([]indirectEvent, len(s.indirects))
	copy(sorted, s.indirects)
	sort.Slice(sorted, func(i, j int) bool {
		return reducedLess(sorted[i].reduced, sorted[j].reduced)
	})
	var lastReduced feature.Reduced
	haveLast := false
	for _, ev := range sorted {
		if haveLast && ev.reduced == lastReduced {
			continue
		}
		handle(feature.NewIndirect(ev.caller, ev.callee))
		lastReduced = ev.reduced
		haveLast = true
	}

	sortedCmp := make([]comparisonEvent, len(s.comparisons))
	copy(sortedCmp, s.comparisons)
	sort.Slice(sortedCmp, func(i, j int) bool {
		return reducedLess(sortedCmp[i].reduced, sortedCmp[j].reduced)
	})
	haveLast = false
	for _, ev := range sortedCmp {
		if haveLast && ev.reduced == lastReduced {
			continue
		}
		handle(feature.NewComparison(ev.pc, ev.arg1, ev.arg2))
		lastReduced = ev.reduced
		haveLast = true
	}
}

func reducedLess(a, b feature.Reduced) bool {
	if a.A != b.A {
		return a.A < b.A
	}
	return a.B < b.B
}

// ResetCollectedFeatures zeroes the counter buffer and clears the
// indirect/comparison lists, preserving their allocated capacity. It does
// not touch the cumulative edge-seen bitmap.
func (s *Sensor) ResetCollectedFeatures() {
	for i := range s.counters {
		s.counters[i] = 0
	}
	s.indirects = s.indirects[:0]
	s.comparisons = s.comparisons[:0]
}

// RecordEdgeObserved marks a guard id as having ever been exercised by an
// accepted input. The cumulative edge-seen bitmap is only ever updated
// here, never during CollectFeatures, so "total edges ever exercised by
// an accepted input" is a well-defined, testable quantity.
func (s *Sensor) RecordEdgeObserved(guardID uint32) {
	if int(guardID) >= len(s.edgeObserved) {
		return
	}
	s.edgeObserved[guardID] = true
}

// TotalEdgesObserved returns the number of guard ids ever marked via
// RecordEdgeObserved.
func (s *Sensor) TotalEdgesObserved() int {
	n := 0
	for _, seen := range s.edgeObserved {
		if seen {
			n++
		}
	}
	return n
}

// NumGuards returns the number of guards assigned so far.
func (s *Sensor) NumGuards() uint32 {
	return s.numGuards
}

// ValueBitMap exposes the sensor's value bitmap, for mutators that want to
// mine it for interesting constants.
func (s *Sensor) ValueBitMap() *valuemap.Map {
	return s.valueBitmap
}

// TORC4 exposes the 4-byte table of recent compares.
func (s *Sensor) TORC4() *torc.Table[uint32] {
	return s.torc4
}

// TORC8 exposes the 8-byte table of recent compares.
func (s *Sensor) TORC8() *torc.Table[uint64] {
	return s.torc8
}

func (s *Sensor) String() string {
	return fmt.Sprintf("Sensor(guards=%d, indirects=%d, comparisons=%d)",
		s.numGuards, len(s.indirects), len(s.comparisons))
}
