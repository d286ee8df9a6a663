/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Corpus types. UnitInfo is one entry per accepted input;
CorpusIndex distinguishes the externally-favored unit from ordinary,
pool-managed ones.
*/

package corpus

import (
	"github.com/kleascm/fuzzcore/internal/feature"
)

// UnitInfo is one accepted input, with everything the pool's scoring
// algorithm needs to track about it.
type UnitInfo struct {
	ID         string
	Unit       []byte
	Complexity float64
	Features   []feature.Feature

	coverageScore      float64
	flaggedForDeletion bool
}

// CoverageScore returns this unit's most recently computed score.
func (u *UnitInfo) CoverageScore() float64 {
	return u.coverageScore
}

// CorpusIndex identifies either an ordinary pool slot or the externally
// supplied favored unit.
type CorpusIndex struct {
	favored bool
	index   int
}

// Normal builds a CorpusIndex pointing at an ordinary pool slot.
func Normal(index int) CorpusIndex {
	return CorpusIndex{index: index}
}

// Favored is the CorpusIndex naming the externally supplied favored unit.
var Favored = CorpusIndex{favored: true}

// IsFavored reports whether this index names the favored unit.
func (c CorpusIndex) IsFavored() bool {
	return c.favored
}

// Index returns the underlying slot for a Normal index. Calling it on
// Favored panics.
func (c CorpusIndex) Index() int {
	if c.favored {
		panic("corpus: Index called on the favored CorpusIndex")
	}
	return c.index
}
