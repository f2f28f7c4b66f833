package libc

import "github.com/borzacchiello/naazgo/internal/state"

// The glibc TYPE_3 additive-feedback generator this reference port
// reproduces: a 31-word state array advanced by state[fptr]+=state[rptr],
// seeded by the same 16807/2147483647 Lehmer recurrence and warm-up
// discard glibc's __srandom_r/__random_r use (original_source/models/libc/random.cpp).
const (
	randDeg = 31
	randSep = 3
)

// randState is the generator's mutable state: the feedback array plus
// the two rolling cursor indices into it.
type randState struct {
	words      [randDeg]uint32
	fptr, rptr uint32
}

func (st *randState) step() uint32 {
	st.words[st.fptr] += st.words[st.rptr]
	val := st.words[st.fptr]
	st.fptr = (st.fptr + 1) % randDeg
	st.rptr = (st.rptr + 1) % randDeg
	return val >> 1
}

// seedRandState reproduces __srandom_r's initial fill and its
// 10*degree-iteration warm-up discard.
func seedRandState(seed uint32) randState {
	if seed == 0 {
		seed = 1
	}
	var st randState
	st.words[0] = seed
	word := int64(int32(seed))
	for i := 1; i < randDeg; i++ {
		hi := word / 127773
		lo := word % 127773
		word = 16807*lo - 2836*hi
		if word < 0 {
			word += 2147483647
		}
		st.words[i] = uint32(word)
	}
	st.fptr = randSep
	st.rptr = 0
	for i := 0; i < randDeg*10; i++ {
		st.step()
	}
	return st
}

// randStateWords is the on-RAM encoding size: 31 feedback words plus
// the fptr/rptr cursors, each a concrete 32-bit word.
const randStateWords = randDeg + 2

// randStateBase is a fixed reserved address, just below the
// architecture's external-function sentinel range, holding the
// process-wide rand() generator state. State.RAM is cloned with the
// rest of the state, so each forked path keeps an independent stream.
func randStateBase(m base) uint64 {
	return m.Arch.ExtFuncBase() - randStateWords*4
}

func loadRandState(s *state.State, base uint64) (randState, bool) {
	if !s.Read(base, 4).IsConst() {
		return randState{}, false
	}
	var st randState
	for i := 0; i < randDeg; i++ {
		v, err := s.Read(base+uint64(i)*4, 4).AsConst().AsU64()
		if err != nil {
			return randState{}, false
		}
		st.words[i] = uint32(v)
	}
	fv, err := s.Read(base+randDeg*4, 4).AsConst().AsU64()
	if err != nil {
		return randState{}, false
	}
	rv, err := s.Read(base+randDeg*4+4, 4).AsConst().AsU64()
	if err != nil {
		return randState{}, false
	}
	st.fptr = uint32(fv)
	st.rptr = uint32(rv)
	return st, true
}

func storeRandState(s *state.State, base uint64, st randState) {
	for i := 0; i < randDeg; i++ {
		s.Write(base+uint64(i)*4, s.B.ConstU64(uint64(st.words[i]), 32))
	}
	s.Write(base+randDeg*4, s.B.ConstU64(uint64(st.fptr), 32))
	s.Write(base+randDeg*4+4, s.B.ConstU64(uint64(st.rptr), 32))
}

// srand implements libc's srand(unsigned int).
type srand struct{ base }

func (m *srand) Name() string { return "srand" }
func (m *srand) Exec(s *state.State) state.Successors {
	seed := uint32(mustConstU64("libc.srand", m.intParam(s, 0)))
	storeRandState(s, randStateBase(m.base), seedRandState(seed))

	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}

// rand implements libc's rand(void).
type rand struct{ base }

func (m *rand) Name() string { return "rand" }
func (m *rand) Exec(s *state.State) state.Successors {
	addr := randStateBase(m.base)
	st, ok := loadRandState(s, addr)
	if !ok {
		st = seedRandState(1)
	}
	result := st.step()
	storeRandState(s, addr, st)

	m.setReturnInt(s, s.B.ConstU64(uint64(result), 32))
	var succ state.Successors
	m.handleReturn(s, &succ)
	return succ
}
