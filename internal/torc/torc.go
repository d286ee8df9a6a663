/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: torc.go
Description: Table of recent compares. Remembers the operands of recent
trace-cmp instrumentation events so mutators can later mine them as a
dictionary of interesting constants.
*/

package torc

// Slots is the number of ring-indexed entries per table.
const Slots = 32

// Pair is a remembered (arg1, arg2) comparison operand pair.
type Pair[T uint32 | uint64] struct {
	A, B T
}

// Table is a fixed-size, modularly-addressed table of recent compare
// operand pairs. Writes overwrite unconditionally; there is no eviction
// policy beyond the slot = key % Slots addressing.
type Table[T uint32 | uint64] struct {
	slots    [Slots]Pair[T]
	occupied [Slots]bool
}

// New creates an empty table.
func New[T uint32 | uint64]() *Table[T] {
	return &Table[T]{}
}

// Record stores (a, b) at slot = key % Slots, overwriting whatever was
// there before.
func (t *Table[T]) Record(key uint64, a, b T) {
	slot := key % Slots
	t.slots[slot] = Pair[T]{A: a, B: b}
	t.occupied[slot] = true
}

// Get returns the pair at the given slot and whether it has ever been
// written.
func (t *Table[T]) Get(slot int) (Pair[T], bool) {
	return t.slots[slot], t.occupied[slot]
}

// ForEach calls handle for every occupied slot, in ascending slot order.
func (t *Table[T]) ForEach(handle func(slot int, pair Pair[T])) {
	for i := 0; i < Slots; i++ {
		if t.occupied[i] {
			handle(i, t.slots[i])
		}
	}
}
