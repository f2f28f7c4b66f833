package sched

import (
	"github.com/borzacchiello/naazgo/internal/interp"
	"github.com/borzacchiello/naazgo/internal/solver"
	"github.com/borzacchiello/naazgo/internal/state"
)

// Explore drives sched from start until a state satisfies find, in
// which case it is returned; if the pool drains first, found is nil.
// A state satisfying avoid is set aside into the returned avoided list
// instead of being stepped further. Exited states are only checked
// against find — they are never re-executed (spec §8, "explore").
//
// A find match is only ever returned once its path condition has been
// proven SAT (spec §4.8 step 1, and the "driver correctness" testable
// property in §8): UNSAT or UNKNOWN drops the state instead.
func Explore(I *interp.Interpreter, sched Scheduler, start *state.State, find, avoid func(*state.State) bool) (found *state.State, avoided []*state.State, err error) {
	sched.Push(start)
	for {
		s, ok := sched.Pop()
		if !ok {
			return nil, avoided, nil
		}

		if s.Exited {
			if find != nil && find(s) {
				res, satErr := s.Satisfiable()
				if satErr != nil {
					return nil, avoided, satErr
				}
				if res == solver.SAT {
					return s, avoided, nil
				}
			}
			continue
		}
		if find != nil && find(s) {
			res, satErr := s.Satisfiable()
			if satErr != nil {
				return nil, avoided, satErr
			}
			if res == solver.SAT {
				return s, avoided, nil
			}
			continue
		}
		if avoid != nil && avoid(s) {
			avoided = append(avoided, s)
			continue
		}

		succ, stepErr := I.ExecuteBasicBlock(s)
		if stepErr != nil {
			return nil, avoided, stepErr
		}
		for _, a := range succ.Active {
			sched.Push(a)
		}
		for _, e := range succ.Exited {
			sched.Push(e)
		}
	}
}

// GenPaths drives sched from start until the pool drains, invoking
// callback at two kinds of event: once when a state is about to be
// stepped (its return value decides whether to step it: true continues,
// false prunes the branch), and once, terminally, when a state exits —
// but only after its path condition has been proven SAT (spec §8,
// "gen_paths": "every state emitted to exited is checked for
// satisfiability and passed to the callback if SAT"). A state that
// exits is reported at most once and is never pushed back for stepping.
func GenPaths(I *interp.Interpreter, sched Scheduler, start *state.State, callback func(s *state.State) (keepGoing bool)) error {
	sched.Push(start)
	for {
		s, ok := sched.Pop()
		if !ok {
			return nil
		}

		if s.Exited {
			res, err := s.Satisfiable()
			if err != nil {
				return err
			}
			if res == solver.SAT {
				callback(s)
			}
			continue
		}

		keepGoing := callback(s)
		if !keepGoing {
			continue
		}

		succ, err := I.ExecuteBasicBlock(s)
		if err != nil {
			return err
		}
		for _, a := range succ.Active {
			sched.Push(a)
		}
		for _, e := range succ.Exited {
			sched.Push(e)
		}
	}
}
