// Package fileid generates file identifiers that sort lexically by
// creation time and are unique within a process run.
package fileid

import (
	"fmt"
	"sync/atomic"
	"time"
)

const (
	secondLayout = "20060102_150405"
	microLayout  = "20060102_150405_000000"
)

// Generator produces identifiers derived from wall-clock time plus an
// atomic process counter. The timestamp keeps identifiers ordered by
// creation time; the counter suffix guarantees that two identifiers minted
// within the same timestamp tick never collide.
type Generator struct {
	counter atomic.Uint64
	now     func() time.Time
}

// New creates a generator backed by the system clock.
func New() *Generator {
	return &Generator{now: time.Now}
}

// NewWithClock creates a generator with a custom clock, for tests.
func NewWithClock(now func() time.Time) *Generator {
	return &Generator{now: now}
}

// Next returns an identifier with second-resolution timestamp, for single
// uploads: 20060102_150405_000000042.
func (g *Generator) Next() string {
	return g.stamp(secondLayout)
}

// NextFine returns an identifier with microsecond-resolution timestamp, for
// batch uploads where many identifiers are minted in one second.
func (g *Generator) NextFine() string {
	return g.stamp(microLayout)
}

func (g *Generator) stamp(layout string) string {
	ts := g.now().UTC().Format(layout)
	// Fixed-width counter keeps identifiers from the same timestamp tick in
	// mint order under lexical comparison.
	return fmt.Sprintf("%s_%09d", ts, g.counter.Add(1))
}
