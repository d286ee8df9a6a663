/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: feature.go
Description: The closed set of feedback events the sensor can emit. A
Feature carries a reduced key (used for corpus deduplication), a fixed
per-variant score, and a total order so corpus acceptance is deterministic.
*/

package feature

import "math/bits"

// Kind tags which variant a Feature carries.
type Kind uint8

const (
	KindEdge Kind = iota
	KindIndirect
	KindComparison
)

// Score constants per variant. Edges and indirect-call pairs weigh more
// than comparisons: spec.md leaves the exact ranking between edge and
// indirect open ("a single constant per variant is sufficient") so both
// are given the same top-tier weight, strictly above comparisons.
const (
	ScoreEdge       = 4.0
	ScoreIndirect   = 4.0
	ScoreComparison = 1.0
)

// Reduced is the bucketed key used to deduplicate "equivalent" features.
// Its meaning depends on the Kind it was derived from, but it is always
// compared as a plain (uint32, uint32) pair.
type Reduced struct {
	A, B uint32
}

// Key is the composite (variant, reduced key) identity used by the pool's
// feature-indexed bookkeeping maps. Reduced alone is only unique within a
// single Kind.
type Key struct {
	Kind    Kind
	Reduced Reduced
}

// Feature is a tagged variant: Edge, Indirect, or Comparison.
type Feature struct {
	Kind Kind

	// Edge
	GuardID       uint32
	CounterBucket uint8

	// Indirect
	Caller, Callee uint64

	// Comparison
	PC   uint64
	Arg1 uint64
	Arg2 uint64
}

// NewEdge builds an Edge feature.
func NewEdge(guardID uint32, counterBucket uint8) Feature {
	return Feature{Kind: KindEdge, GuardID: guardID, CounterBucket: counterBucket}
}

// NewIndirect builds an Indirect feature.
func NewIndirect(caller, callee uint64) Feature {
	return Feature{Kind: KindIndirect, Caller: caller, Callee: callee}
}

// NewComparison builds a Comparison feature.
func NewComparison(pc, arg1, arg2 uint64) Feature {
	return Feature{Kind: KindComparison, PC: pc, Arg1: arg1, Arg2: arg2}
}

// Reduced computes the bucketed deduplication key for this feature.
func (f Feature) Reduced() Reduced {
	switch f.Kind {
	case KindEdge:
		return Reduced{A: f.GuardID, B: uint32(f.CounterBucket)}
	case KindIndirect:
		key := (f.Caller & 0xFFF) | ((f.Callee & 0xFFF) << 12)
		return Reduced{A: uint32(key)}
	case KindComparison:
		distance := bits.OnesCount64(f.Arg1 ^ f.Arg2)
		key := uint32(f.PC&0xFFF) | (uint32(distance) << 12)
		return Reduced{A: key}
	default:
		panic("feature: unknown kind")
	}
}

// Key returns this feature's composite (variant, reduced) identity.
func (f Feature) Key() Key {
	return Key{Kind: f.Kind, Reduced: f.Reduced()}
}

// Score returns this feature's fixed per-variant score constant.
func (f Feature) Score() float64 {
	return DefaultScores().For(f)
}

// Scores holds the per-variant score budget the pool's scoring algorithm
// distributes among a feature's surviving carriers. DefaultScores returns
// the engine's built-in constants; a caller that wires its own score
// budget (e.g. from configuration) builds a Scores and passes it to
// Pool.SetScores instead.
type Scores struct {
	Edge       float64
	Indirect   float64
	Comparison float64
}

// DefaultScores returns the compile-time default score budget.
func DefaultScores() Scores {
	return Scores{Edge: ScoreEdge, Indirect: ScoreIndirect, Comparison: ScoreComparison}
}

// For returns f's score under this table.
func (s Scores) For(f Feature) float64 {
	switch f.Kind {
	case KindEdge:
		return s.Edge
	case KindIndirect:
		return s.Indirect
	case KindComparison:
		return s.Comparison
	default:
		panic("feature: unknown kind")
	}
}

// Less implements the total order required for deterministic corpus
// acceptance: variant tag first, then reduced key, then raw payload.
func (f Feature) Less(other Feature) bool {
	if f.Kind != other.Kind {
		return f.Kind < other.Kind
	}

	fr, or := f.Reduced(), other.Reduced()
	if fr.A != or.A {
		return fr.A < or.A
	}
	if fr.B != or.B {
		return fr.B < or.B
	}

	switch f.Kind {
	case KindEdge:
		if f.GuardID != other.GuardID {
			return f.GuardID < other.GuardID
		}
		return f.CounterBucket < other.CounterBucket
	case KindIndirect:
		if f.Caller != other.Caller {
			return f.Caller < other.Caller
		}
		return f.Callee < other.Callee
	case KindComparison:
		if f.PC != other.PC {
			return f.PC < other.PC
		}
		if f.Arg1 != other.Arg1 {
			return f.Arg1 < other.Arg1
		}
		return f.Arg2 < other.Arg2
	default:
		return false
	}
}
