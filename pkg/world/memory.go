/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: memory.go
Description: MemoryWorld is a slice-backed corpus.World used in tests and
single-process runs that don't need an on-disk corpus.
*/

package world

import (
	"bytes"
	"sync"
)

// MemoryWorld stores accepted units in memory, in insertion order.
type MemoryWorld struct {
	mu    sync.Mutex
	units [][]byte
}

// NewMemoryWorld creates an empty in-memory world.
func NewMemoryWorld() *MemoryWorld {
	return &MemoryWorld{}
}

// AddToOutputCorpus appends unit, unless it is already present.
func (w *MemoryWorld) AddToOutputCorpus(unit []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, u := range w.units {
		if bytes.Equal(u, unit) {
			return nil
		}
	}
	w.units = append(w.units, unit)
	return nil
}

// RemoveFromOutputCorpus removes the first stored unit equal to unit.
func (w *MemoryWorld) RemoveFromOutputCorpus(unit []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, u := range w.units {
		if bytes.Equal(u, unit) {
			w.units = append(w.units[:i], w.units[i+1:]...)
			return nil
		}
	}
	return nil
}

// Units returns a snapshot of every unit currently stored.
func (w *MemoryWorld) Units() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([][]byte, len(w.units))
	copy(out, w.units)
	return out
}
