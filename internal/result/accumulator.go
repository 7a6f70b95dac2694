// Package result keeps the per-kind counters reported at the end of a run.
package result

import (
	"go.uber.org/atomic"

	"catalog/importer/internal/domain"
)

type Kind string

const (
	KindCategories          Kind = "categories"
	KindCategoryAssignments Kind = "categoryAssignments"
	KindProducts            Kind = "products"
	KindProductAssignments  Kind = "productAssignments"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{
	KindCategories,
	KindCategoryAssignments,
	KindProducts,
	KindProductAssignments,
}

// Counter tracks one kind of item. All fields only ever grow, and all
// methods are safe for concurrent use.
type Counter struct {
	processed atomic.Int64
	total     atomic.Int64
	errors    atomic.Int64
	skipped   atomic.Int64
}

// Stats is a point-in-time copy of a Counter.
type Stats struct {
	Processed int64
	Total     int64
	Errors    int64
	Skipped   int64
}

// AddTotal announces n more items. Negative values are ignored.
func (c *Counter) AddTotal(n int) {
	if n <= 0 {
		return
	}
	c.total.Add(int64(n))
}

// Settle marks one item as processed, and as failed when err is non-nil.
func (c *Counter) Settle(err error) {
	if err != nil {
		c.errors.Inc()
	}
	c.processed.Inc()
}

// Skip marks one item as processed without attempting it.
func (c *Counter) Skip() {
	c.skipped.Inc()
	c.processed.Inc()
}

func (c *Counter) Snapshot() Stats {
	return Stats{
		Processed: c.processed.Load(),
		Total:     c.total.Load(),
		Errors:    c.errors.Load(),
		Skipped:   c.skipped.Load(),
	}
}

// Accumulator owns the counters of one run.
type Accumulator struct {
	counters map[Kind]*Counter
}

func New() *Accumulator {
	counters := make(map[Kind]*Counter, len(Kinds))
	for _, kind := range Kinds {
		counters[kind] = &Counter{}
	}
	return &Accumulator{counters: counters}
}

// Counter returns the counter for kind. Unknown kinds panic; they are a
// programming error.
func (a *Accumulator) Counter(kind Kind) *Counter {
	c, ok := a.counters[kind]
	if !ok {
		panic("result: unknown kind " + string(kind))
	}
	return c
}

// Entry is one line of a Summary.
type Entry struct {
	Kind Kind
	Stats
}

type Summary []Entry

func (a *Accumulator) Summary() Summary {
	summary := make(Summary, 0, len(Kinds))
	for _, kind := range Kinds {
		summary = append(summary, Entry{Kind: kind, Stats: a.counters[kind].Snapshot()})
	}
	return summary
}

func (a *Accumulator) HasErrors() bool {
	for _, c := range a.counters {
		if c.errors.Load() > 0 {
			return true
		}
	}
	return false
}

// RunStats converts the summary into the ledger representation.
func (s Summary) RunStats() map[string]domain.RunStats {
	out := make(map[string]domain.RunStats, len(s))
	for _, e := range s {
		out[string(e.Kind)] = domain.RunStats{
			Processed: e.Processed,
			Total:     e.Total,
			Errors:    e.Errors,
			Skipped:   e.Skipped,
		}
	}
	return out
}
