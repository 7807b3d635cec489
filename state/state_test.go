package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "absent.json"), 10)

	n, err := s.Load()
	if err != nil {
		t.Fatalf("missing checkpoint should not be an error: %v", err)
	}
	if n != 0 {
		t.Fatalf("loaded %d shops from a missing file", n)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")

	s := NewStore(path, 100)
	s.MarkProcessed("alpha")
	s.MarkProcessed("beta")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewStore(path, 100)
	n, err := restored.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("loaded %d shops, want 2", n)
	}
	if !restored.Processed("alpha") || !restored.Processed("beta") {
		t.Fatalf("restored set missing shops")
	}
	if restored.Processed("gamma") {
		t.Fatalf("gamma should not be processed")
	}
}

func TestSaveSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")

	s := NewStore(path, 100)
	s.MarkProcessed("alpha")
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := doc["processed_shops"]; !ok {
		t.Fatalf("checkpoint missing processed_shops: %s", data)
	}
	if _, ok := doc["last_updated"]; !ok {
		t.Fatalf("checkpoint missing last_updated: %s", data)
	}
}

func TestPeriodicSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")

	s := NewStore(path, 3)
	s.MarkProcessed("a")
	s.MarkProcessed("b")
	if _, err := os.Stat(path); err == nil {
		t.Fatalf("checkpoint persisted before the cadence")
	}

	s.MarkProcessed("c")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("checkpoint not persisted at the cadence: %v", err)
	}

	restored := NewStore(path, 3)
	if n, err := restored.Load(); err != nil || n != 3 {
		t.Fatalf("restored %d shops (err %v), want 3", n, err)
	}
}

func TestConcurrentMarks(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")
	s := NewStore(path, 50)

	const shops = 500
	var wg sync.WaitGroup
	for i := 0; i < shops; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.MarkProcessed(fmt.Sprintf("shop-%03d", i))
		}(i)
	}
	wg.Wait()

	if s.Len() != shops {
		t.Fatalf("len = %d, want %d (lost updates)", s.Len(), shops)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored := NewStore(path, 50)
	if n, err := restored.Load(); err != nil || n != shops {
		t.Fatalf("restored %d shops (err %v), want %d", n, err, shops)
	}
}

func TestConcurrentSavesKeepCheckpointReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")

	// flushEvery 1 makes every mark trigger a save, so saves overlap freely.
	s := NewStore(path, 1)

	const shops = 50
	var wg sync.WaitGroup
	for i := 0; i < shops; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.MarkProcessed(fmt.Sprintf("shop-%03d", i))
		}(i)
	}
	wg.Wait()
	if err := s.Save(); err != nil {
		t.Fatalf("final save: %v", err)
	}

	restored := NewStore(path, 1)
	if n, err := restored.Load(); err != nil || n != shops {
		t.Fatalf("restored %d shops (err %v), want %d", n, err, shops)
	}

	// No staging files left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("leftover files alongside the checkpoint: %v", names)
	}
}

func TestSaveOverwriteIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "finder_state.json")
	s := NewStore(path, 100)
	s.MarkProcessed("alpha")

	if err := s.Save(); err != nil {
		t.Fatalf("first save: %v", err)
	}
	first, _ := os.ReadFile(path)

	if err := s.Save(); err != nil {
		t.Fatalf("second save: %v", err)
	}
	second, _ := os.ReadFile(path)

	var a, b map[string]any
	if err := json.Unmarshal(first, &a); err != nil {
		t.Fatalf("decode first: %v", err)
	}
	if err := json.Unmarshal(second, &b); err != nil {
		t.Fatalf("decode second: %v", err)
	}
	if fmt.Sprint(a["processed_shops"]) != fmt.Sprint(b["processed_shops"]) {
		t.Fatalf("overwrite changed the processed set")
	}
}
