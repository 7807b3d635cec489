// Package state persists the processed-shop set for checkpoint/resume.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// checkpointDoc is the on-disk schema.
type checkpointDoc struct {
	ProcessedShops []string  `json:"processed_shops"`
	LastUpdated    time.Time `json:"last_updated"`
}

// Store accumulates processed shop names in memory and persists them at a
// bounded cadence plus unconditionally on shutdown. Safe for concurrent use.
type Store struct {
	path       string
	flushEvery int

	mu        sync.Mutex
	processed map[string]struct{}
	sinceSave int

	// saveMu serializes persistence so overlapping cadence-triggered saves
	// cannot interleave a write with another save's rename.
	saveMu sync.Mutex
}

// NewStore builds a store persisting to path after every flushEvery marks.
func NewStore(path string, flushEvery int) *Store {
	if flushEvery <= 0 {
		flushEvery = 1
	}
	return &Store{
		path:       path,
		flushEvery: flushEvery,
		processed:  make(map[string]struct{}),
	}
}

// Load reads the persisted set. A missing checkpoint file is not an error
// and yields an empty set. Resume-disabled runs simply never call Load.
func (s *Store) Load() (int, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("decode checkpoint: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shop := range doc.ProcessedShops {
		s.processed[shop] = struct{}{}
	}
	return len(s.processed), nil
}

// Processed reports whether a shop has already been handled.
func (s *Store) Processed(shop string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.processed[shop]
	return ok
}

// MarkProcessed records a completed shop, persisting every flushEvery marks.
// Periodic persistence failures degrade resume only, so they are logged
// rather than propagated.
func (s *Store) MarkProcessed(shop string) {
	s.mu.Lock()
	s.processed[shop] = struct{}{}
	s.sinceSave++
	flush := s.sinceSave >= s.flushEvery
	if flush {
		s.sinceSave = 0
	}
	s.mu.Unlock()

	if flush {
		if err := s.Save(); err != nil {
			slog.Warn("periodic checkpoint save failed", slog.Any("error", err))
		}
	}
}

// Save persists the current set with an atomic rename overwrite. Saves are
// serialized and stage through a uniquely named temp file, so a reader never
// observes a partially written checkpoint.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	doc := checkpointDoc{
		ProcessedShops: make([]string, 0, len(s.processed)),
		LastUpdated:    time.Now(),
	}
	for shop := range s.processed {
		doc.ProcessedShops = append(doc.ProcessedShops, shop)
	}
	s.mu.Unlock()
	sort.Strings(doc.ProcessedShops)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("stage checkpoint: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Len returns the number of processed shops.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}
