package sched

import "github.com/borzacchiello/naazgo/internal/state"

// Coverage is the coverage-guided discipline (spec §8): three priority
// queues — states at a never-before-visited pc, states at a
// never-before-visited (pc, call-stack) context, and everything else —
// popped from the highest non-empty queue, LIFO within a queue. This
// spreads exploration across the reachable block graph instead of
// exhausting one deep branch before trying a sibling.
type Coverage struct {
	newAddr    []*state.State
	newContext []*state.State
	other      []*state.State

	seenAddr    map[uint64]bool
	seenContext map[string]bool
}

func NewCoverage() *Coverage {
	return &Coverage{
		seenAddr:    make(map[uint64]bool),
		seenContext: make(map[string]bool),
	}
}

func (c *Coverage) Push(s *state.State) {
	switch {
	case !c.seenAddr[s.PC()]:
		c.newAddr = append(c.newAddr, s)
	case !c.seenContext[contextKey(s)]:
		c.newContext = append(c.newContext, s)
	default:
		c.other = append(c.other, s)
	}
}

func (c *Coverage) Pop() (*state.State, bool) {
	for _, q := range [...]*[]*state.State{&c.newAddr, &c.newContext, &c.other} {
		n := len(*q)
		if n == 0 {
			continue
		}
		s := (*q)[n-1]
		*q = (*q)[:n-1]
		c.seenAddr[s.PC()] = true
		c.seenContext[contextKey(s)] = true
		return s, true
	}
	return nil, false
}

func (c *Coverage) Len() int {
	return len(c.newAddr) + len(c.newContext) + len(c.other)
}
