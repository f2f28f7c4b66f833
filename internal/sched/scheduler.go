// Package sched implements the exploration scheduler (spec §8): a
// pluggable discipline for ordering the active-state worklist, and the
// explore(find, avoid) / gen_paths(callback) driver loops built on top
// of it and an interp.Interpreter.
package sched

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/borzacchiello/naazgo/internal/state"
)

// Scheduler orders the pool of runnable states. Implementations are not
// safe for concurrent use; a driver owns one scheduler per exploration.
type Scheduler interface {
	Push(s *state.State)
	Pop() (*state.State, bool)
	Len() int
}

// FIFO explores breadth-first: states are visited in the order their
// parent block produced them.
type FIFO struct{ q []*state.State }

func NewFIFO() *FIFO { return &FIFO{} }

func (f *FIFO) Push(s *state.State) { f.q = append(f.q, s) }
func (f *FIFO) Pop() (*state.State, bool) {
	if len(f.q) == 0 {
		return nil, false
	}
	s := f.q[0]
	f.q = f.q[1:]
	return s, true
}
func (f *FIFO) Len() int { return len(f.q) }

// LIFO explores depth-first: the most recently produced state runs next.
type LIFO struct{ st []*state.State }

func NewLIFO() *LIFO { return &LIFO{} }

func (l *LIFO) Push(s *state.State) { l.st = append(l.st, s) }
func (l *LIFO) Pop() (*state.State, bool) {
	n := len(l.st)
	if n == 0 {
		return nil, false
	}
	s := l.st[n-1]
	l.st = l.st[:n-1]
	return s, true
}
func (l *LIFO) Len() int { return len(l.st) }

// RandLIFO is a depth-first discipline that shuffles the whole stack on
// every push before appending, then always pops from the back — "shuffle
// then push back" / "pop back" per spec §8's "Randomized LIFO" row —
// seeded deterministically so runs are reproducible.
type RandLIFO struct {
	st  []*state.State
	rng *rand.Rand
}

// randLIFOSeed is the spec's fixed seed for reproducible exploration.
const randLIFOSeed = 0x42424242

func NewRandLIFO() *RandLIFO {
	return &RandLIFO{rng: rand.New(rand.NewSource(randLIFOSeed))}
}

func (r *RandLIFO) Push(s *state.State) {
	r.rng.Shuffle(len(r.st), func(i, j int) { r.st[i], r.st[j] = r.st[j], r.st[i] })
	r.st = append(r.st, s)
}
func (r *RandLIFO) Pop() (*state.State, bool) {
	n := len(r.st)
	if n == 0 {
		return nil, false
	}
	s := r.st[n-1]
	r.st = r.st[:n-1]
	return s, true
}
func (r *RandLIFO) Len() int { return len(r.st) }

// contextKey identifies a scheduling context as (pc, call stack), the
// granularity coverage-guided exploration tracks visit counts at.
func contextKey(s *state.State) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%x", s.PC())
	for _, addr := range s.StackTrace() {
		fmt.Fprintf(&sb, ",%x", addr)
	}
	return sb.String()
}
