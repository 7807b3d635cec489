// Package stats tracks harvest counters shared across fetch tasks.
package stats

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Aggregator is a mutex-guarded set of run counters. Each counter is exact;
// a snapshot is internally consistent but may trail concurrently completing
// tasks.
type Aggregator struct {
	mu       sync.Mutex
	checked  int64
	found    int64
	notFound int64
	products int64
	errors   map[string]int
	start    time.Time
}

// Snapshot is a read-only view over the aggregator's counters.
type Snapshot struct {
	Checked       int64
	Found         int64
	NotFound      int64
	ProductsFound int64
	Errors        map[string]int
	Elapsed       time.Duration
}

// New returns an aggregator with the clock started.
func New() *Aggregator {
	return &Aggregator{
		errors: make(map[string]int),
		start:  time.Now(),
	}
}

// AddChecked records completed shops.
func (a *Aggregator) AddChecked(n int64) {
	a.mu.Lock()
	a.checked += n
	a.mu.Unlock()
}

// AddFound records shops that returned a product listing.
func (a *Aggregator) AddFound(n int64) {
	a.mu.Lock()
	a.found += n
	a.mu.Unlock()
}

// AddNotFound records shops that do not exist.
func (a *Aggregator) AddNotFound(n int64) {
	a.mu.Lock()
	a.notFound += n
	a.mu.Unlock()
}

// AddProducts records validated products written to the catalog.
func (a *Aggregator) AddProducts(n int64) {
	a.mu.Lock()
	a.products += n
	a.mu.Unlock()
}

// AddError records one error of the given kind.
func (a *Aggregator) AddError(kind string) {
	a.mu.Lock()
	a.errors[kind]++
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of all counters.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	errs := make(map[string]int, len(a.errors))
	for k, v := range a.errors {
		errs[k] = v
	}
	return Snapshot{
		Checked:       a.checked,
		Found:         a.found,
		NotFound:      a.notFound,
		ProductsFound: a.products,
		Errors:        errs,
		Elapsed:       time.Since(a.start),
	}
}

// Summary renders the end-of-run report.
func (s Snapshot) Summary() string {
	var b strings.Builder
	sep := strings.Repeat("-", 50)

	fmt.Fprintln(&b, sep)
	fmt.Fprintln(&b, "Harvest complete")
	fmt.Fprintf(&b, "  Shops checked:   %d\n", s.Checked)
	fmt.Fprintf(&b, "  Shops found:     %d\n", s.Found)
	fmt.Fprintf(&b, "  Shops absent:    %d\n", s.NotFound)
	fmt.Fprintf(&b, "  Products found:  %d\n", s.ProductsFound)
	fmt.Fprintf(&b, "  Elapsed:         %s\n", s.Elapsed.Round(time.Millisecond))
	if secs := s.Elapsed.Seconds(); secs > 0 {
		fmt.Fprintf(&b, "  Rate:            %.2f shops/s\n", float64(s.Checked)/secs)
	}
	if len(s.Errors) > 0 {
		kinds := make([]string, 0, len(s.Errors))
		for kind := range s.Errors {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		fmt.Fprintln(&b, "  Errors:")
		for _, kind := range kinds {
			fmt.Fprintf(&b, "    %-18s %d\n", kind, s.Errors[kind])
		}
	}
	fmt.Fprint(&b, sep)
	return b.String()
}
