/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dir.go
Description: DirWorld persists the output corpus as one file per unit
under a configured directory, named by a fresh uuid, following the
teacher's corpus/crash directory convention in engine.initializeCorpus
and engine.saveCrashFile.
*/

package world

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// DirWorld persists units as individual files under Dir. Units are
// content-addressed by a sha256 of their bytes, so AddToOutputCorpus is
// naturally idempotent.
type DirWorld struct {
	Dir string

	mu        sync.Mutex
	pathsByID map[string]string
}

// NewDirWorld creates a DirWorld rooted at dir, creating it if absent.
func NewDirWorld(dir string) (*DirWorld, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("world: failed to create corpus directory: %w", err)
	}
	return &DirWorld{Dir: dir, pathsByID: make(map[string]string)}, nil
}

func contentID(unit []byte) string {
	sum := sha256.Sum256(unit)
	return hex.EncodeToString(sum[:])
}

// AddToOutputCorpus writes unit to a new file under Dir, named by a fresh
// uuid with the unit's content hash as a suffix for easy deduplication.
func (w *DirWorld) AddToOutputCorpus(unit []byte) error {
	id := contentID(unit)

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.pathsByID[id]; exists {
		return nil
	}

	name := fmt.Sprintf("%s-%s", uuid.New().String(), id[:12])
	path := filepath.Join(w.Dir, name)

	if err := os.WriteFile(path, unit, 0644); err != nil {
		return fmt.Errorf("world: failed to write corpus unit: %w", err)
	}

	w.pathsByID[id] = path
	return nil
}

// RemoveFromOutputCorpus deletes the file backing unit, if one exists.
func (w *DirWorld) RemoveFromOutputCorpus(unit []byte) error {
	id := contentID(unit)

	w.mu.Lock()
	path, exists := w.pathsByID[id]
	if exists {
		delete(w.pathsByID, id)
	}
	w.mu.Unlock()

	if !exists {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("world: failed to remove corpus unit: %w", err)
	}
	return nil
}

// LoadSeeds reads every file currently under Dir and returns their
// contents, mirroring the teacher's initializeCorpus seed-loading pass.
func (w *DirWorld) LoadSeeds() ([][]byte, error) {
	files, err := filepath.Glob(filepath.Join(w.Dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("world: failed to glob corpus directory: %w", err)
	}

	var seeds [][]byte
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			continue
		}
		seeds = append(seeds, data)

		w.mu.Lock()
		w.pathsByID[contentID(data)] = f
		w.mu.Unlock()
	}
	return seeds, nil
}
