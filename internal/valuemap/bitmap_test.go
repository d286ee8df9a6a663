/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: bitmap_test.go
Description: Invariant tests for the fixed-size value bitmap.
*/

package valuemap_test

import (
	"testing"

	"github.com/kleascm/fuzzcore/internal/valuemap"
	"github.com/stretchr/testify/assert"
)

func TestAddValueReportsFirstSetOnly(t *testing.T) {
	m := valuemap.New()
	assert.True(t, m.AddValue(5))
	assert.False(t, m.AddValue(5))
	assert.True(t, m.AddValue(6))
}

func TestAddValueWrapsModuloSize(t *testing.T) {
	m := valuemap.New()
	assert.True(t, m.AddValue(3))
	assert.False(t, m.AddValue(3+valuemap.SizeBits))
}

func TestAddValueModPrimeUsesPrimeModulus(t *testing.T) {
	m := valuemap.New()
	assert.True(t, m.AddValueModPrime(1))
	assert.False(t, m.AddValueModPrime(1+valuemap.PrimeMod))
}

func TestResetClearsAllBits(t *testing.T) {
	m := valuemap.New()
	for v := uint64(0); v < 100; v++ {
		m.AddValue(v)
	}
	m.Reset()
	for v := uint64(0); v < 100; v++ {
		assert.True(t, m.AddValue(v), "value %d should read as unset after Reset", v)
	}
}

func TestForEachVisitsExactlySetBitsAscending(t *testing.T) {
	m := valuemap.New()
	want := []uint64{0, 1, 64, 65, 1000, valuemap.SizeBits - 1}
	for _, v := range want {
		m.AddValue(v)
	}

	var got []int
	m.ForEach(func(idx int) {
		got = append(got, idx)
	})

	require := assert.New(t)
	require.Len(got, len(want))
	for i, w := range want {
		require.Equal(int(w), got[i])
	}
}

func TestSizeInBits(t *testing.T) {
	m := valuemap.New()
	assert.Equal(t, valuemap.SizeBits, m.SizeInBits())
}
