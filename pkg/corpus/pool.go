/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: pool.go
Description: UnitPool is the accepted-input corpus. It tracks the
simplest known carrier of every feature ever seen, recomputes a
complexity-weighted score for each live unit, evicts units no longer the
simplest carrier of anything, and samples the next unit to mutate from a
weighted distribution. The scoring equation here is the single most
sensitive piece of the engine: two implementations must reproduce it
exactly, or two replay runs of the same seed will diverge.
*/

package corpus

import (
	"fmt"

	"github.com/kleascm/fuzzcore/internal/feature"
	"github.com/kleascm/fuzzcore/internal/rng"
)

// DefaultFavoredOdds is the probability of picking the favored unit when
// one is present, per spec's favored_selection_odds knob.
const DefaultFavoredOdds = 0.25

// Pool is the accepted-input corpus.
type Pool struct {
	units             []UnitInfo
	cumulativeWeights []float64
	coverageScore     float64

	smallestComplexityForFeature map[feature.Key]float64

	favoredUnit *UnitInfo
	favoredOdds float64

	scores feature.Scores
}

// New creates an empty pool.
func New() *Pool {
	return &Pool{
		smallestComplexityForFeature: make(map[feature.Key]float64),
		favoredOdds:                  DefaultFavoredOdds,
		scores:                       feature.DefaultScores(),
	}
}

// SetFavoredOdds overrides the default favored-selection probability.
func (p *Pool) SetFavoredOdds(odds float64) {
	p.favoredOdds = odds
}

// SetScores overrides the default per-variant score budget that
// UpdateScoresAndWeights distributes among a feature's surviving carriers.
func (p *Pool) SetScores(scores feature.Scores) {
	p.scores = scores
}

// SetFavoredUnit designates a unit given nonzero selection weight
// independent of scoring.
func (p *Pool) SetFavoredUnit(u *UnitInfo) {
	p.favoredUnit = u
}

// Len returns the number of units currently live in the pool.
func (p *Pool) Len() int {
	return len(p.units)
}

// CoverageScore returns the pool-wide sum of live unit scores.
func (p *Pool) CoverageScore() float64 {
	return p.coverageScore
}

// SmallestComplexityFor returns the smallest complexity ever recorded for
// the given feature's reduced key, and whether any unit has ever carried
// it.
func (p *Pool) SmallestComplexityFor(f feature.Feature) (float64, bool) {
	v, ok := p.smallestComplexityForFeature[f.Key()]
	return v, ok
}

// IsInteresting reports whether a candidate input, if accepted, would
// carry at least one feature that is either never seen before or held
// at a strictly smaller complexity than any unit has achieved so far.
func (p *Pool) IsInteresting(complexity float64, features []feature.Feature) bool {
	for _, f := range features {
		if cur, ok := p.smallestComplexityForFeature[f.Key()]; !ok || complexity < cur {
			return true
		}
	}
	return false
}

// Append records a newly accepted unit. For every feature it carries,
// updates the all-time smallest complexity for that feature's reduced
// key, then appends the unit to the pool. Returns a callback that
// persists the unit when invoked with a World.
func (p *Pool) Append(u UnitInfo) AddCallback {
	for _, f := range u.Features {
		key := f.Key()
		if cur, ok := p.smallestComplexityForFeature[key]; !ok || u.Complexity < cur {
			p.smallestComplexityForFeature[key] = u.Complexity
		}
	}

	p.units = append(p.units, u)

	unit := u.Unit
	return func(w World) error {
		return w.AddToOutputCorpus(unit)
	}
}

// ratio computes r(u, f) = (s_f / c_u)^2 where s_f is the all-time
// smallest complexity for f's reduced key and c_u is u's own complexity.
func (p *Pool) ratio(u *UnitInfo, f feature.Feature) float64 {
	s := p.smallestComplexityForFeature[f.Key()]
	r := s / u.Complexity
	return r * r
}

// UpdateScoresAndWeights runs the four-pass scoring algorithm: flag units
// that carry no feature at its all-time-simplest complexity, distribute
// each feature's fixed score budget among its surviving carriers in
// proportion to their complexity fitness, then compact the pool and
// rebuild the weighted-selection prefix sums. Returns an EvictedUnit per
// evicted unit, batched for the caller to apply to a World and/or report.
func (p *Pool) UpdateScoresAndWeights() []EvictedUnit {
	flagged := make([]bool, len(p.units))

	// Pass 1: flag every unit, then clear the flag for any unit that is
	// the (or a) simplest carrier of at least one of its features.
	for i := range p.units {
		flagged[i] = true
		u := &p.units[i]
		for _, f := range u.Features {
			if p.ratio(u, f) == 1 {
				flagged[i] = false
				break
			}
		}
	}

	// Pass 2: aggregate ratios per feature across surviving units only.
	sumRatios := make(map[feature.Key]float64)
	for i := range p.units {
		if flagged[i] {
			continue
		}
		u := &p.units[i]
		for _, f := range u.Features {
			sumRatios[f.Key()] += p.ratio(u, f)
		}
	}

	// Pass 3: distribute each feature's fixed score budget among its
	// surviving carriers, in proportion to their complexity fitness.
	p.coverageScore = 0
	for i := range p.units {
		if flagged[i] {
			continue
		}
		u := &p.units[i]
		var total float64
		for _, f := range u.Features {
			key := f.Key()
			base := p.scores.For(f) / sumRatios[key]
			total += base * p.ratio(u, f)
		}
		u.coverageScore = total
		p.coverageScore += total
	}

	// Pass 4: compact, collecting eviction callbacks, and rebuild the
	// weighted-selection prefix sums over the survivors.
	var removals []EvictedUnit
	survivors := make([]UnitInfo, 0, len(p.units))
	for i := range p.units {
		if flagged[i] {
			id := p.units[i].ID
			unit := p.units[i].Unit
			removals = append(removals, EvictedUnit{
				ID: id,
				Remove: func(w World) error {
					return w.RemoveFromOutputCorpus(unit)
				},
			})
			continue
		}
		survivors = append(survivors, p.units[i])
	}
	p.units = survivors

	p.cumulativeWeights = make([]float64, len(p.units))
	running := 0.0
	for i := range p.units {
		running += p.units[i].coverageScore
		p.cumulativeWeights[i] = running
	}

	return removals
}

// ChooseUnitIdxToMutate picks the next unit to mutate. With probability
// favoredOdds it returns the favored index, if one is set; otherwise it
// draws from the weighted distribution over live units. Panics if the
// pool is empty and no favored unit is set.
func (p *Pool) ChooseUnitIdxToMutate(r *rng.LCG) CorpusIndex {
	if p.favoredUnit != nil {
		const resolution = 1 << 20
		draw := r.IntInRange(0, resolution)
		if float64(draw) < p.favoredOdds*resolution {
			return Favored
		}
	}

	if len(p.units) == 0 {
		if p.favoredUnit != nil {
			return Favored
		}
		panic("corpus: ChooseUnitIdxToMutate called on an empty pool with no favored unit")
	}

	idx := r.WeightedPick(p.cumulativeWeights)
	return Normal(idx)
}

// DeleteUnit removes the unit at idx, which must be Normal. Deleting the
// favored unit is forbidden. Returns a callback that removes the unit
// from a World when invoked.
func (p *Pool) DeleteUnit(idx CorpusIndex) RemoveCallback {
	if idx.IsFavored() {
		panic("corpus: DeleteUnit called on the favored unit")
	}
	i := idx.Index()
	unit := p.units[i].Unit

	p.units = append(p.units[:i], p.units[i+1:]...)
	p.rebuildWeights()

	return func(w World) error {
		return w.RemoveFromOutputCorpus(unit)
	}
}

func (p *Pool) rebuildWeights() {
	p.coverageScore = 0
	p.cumulativeWeights = make([]float64, len(p.units))
	running := 0.0
	for i := range p.units {
		running += p.units[i].coverageScore
		p.cumulativeWeights[i] = running
	}
	p.coverageScore = running
}

// Get reads the unit at idx. idx may be Favored.
func (p *Pool) Get(idx CorpusIndex) *UnitInfo {
	if idx.IsFavored() {
		return p.favoredUnit
	}
	return &p.units[idx.Index()]
}

// Set overwrites the unit at idx. Writing to Favored is forbidden.
func (p *Pool) Set(idx CorpusIndex, u UnitInfo) {
	if idx.IsFavored() {
		panic("corpus: Set called on the favored index")
	}
	p.units[idx.Index()] = u
}

func (p *Pool) String() string {
	return fmt.Sprintf("Pool(units=%d, score=%.4f)", len(p.units), p.coverageScore)
}
