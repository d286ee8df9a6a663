/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: torc_test.go
Description: Tests for the fixed-size table of recent compares.
*/

package torc_test

import (
	"testing"

	"github.com/kleascm/fuzzcore/internal/torc"
	"github.com/stretchr/testify/assert"
)

func TestRecordAndGet(t *testing.T) {
	tbl := torc.New[uint32]()
	tbl.Record(3, 10, 20)

	pair, ok := tbl.Get(3)
	assert.True(t, ok)
	assert.Equal(t, uint32(10), pair.A)
	assert.Equal(t, uint32(20), pair.B)
}

func TestGetUnoccupiedSlot(t *testing.T) {
	tbl := torc.New[uint64]()
	_, ok := tbl.Get(5)
	assert.False(t, ok)
}

func TestRecordOverwritesSlot(t *testing.T) {
	tbl := torc.New[uint32]()
	tbl.Record(1, 1, 2)
	tbl.Record(1, 3, 4)

	pair, ok := tbl.Get(1)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), pair.A)
	assert.Equal(t, uint32(4), pair.B)
}

func TestRecordAddressesModuloSlots(t *testing.T) {
	tbl := torc.New[uint32]()
	tbl.Record(uint64(torc.Slots), 7, 8)

	pair, ok := tbl.Get(0)
	assert.True(t, ok)
	assert.Equal(t, uint32(7), pair.A)
	assert.Equal(t, uint32(8), pair.B)
}

func TestForEachVisitsOnlyOccupiedSlotsAscending(t *testing.T) {
	tbl := torc.New[uint32]()
	tbl.Record(5, 1, 1)
	tbl.Record(2, 2, 2)

	var slots []int
	tbl.ForEach(func(slot int, pair torc.Pair[uint32]) {
		slots = append(slots, slot)
	})

	assert.Equal(t, []int{2, 5}, slots)
}
