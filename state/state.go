package state

import (
	"fmt"
	"sync"

	"github.com/kper/funky/ir"
)

type factCacheKey struct {
	Function string
	PC       int
}

type initKey struct {
	Function string
	PC       int
}

// State is the per-analysis, mutable symbol table described in spec.md §4.2:
// for each function, a registry of its Variables, a fact cache keyed by
// (function, pc), and minimum-pc bookkeeping. State owns the monotonic fact
// id counter used purely for rendering; correctness never depends on Id.
//
// State is safe for concurrent use: spec.md §5 allows the naive solver to
// initialise functions in parallel provided State mutations are serialised,
// so every exported method takes the same mutex.
type State struct {
	mu sync.Mutex

	vars      map[string]map[string]*Variable
	nextTrack map[string]int

	facts map[factCacheKey][]Fact
	minPC map[string]int

	initCache map[initKey][]Fact

	nextID uint64
}

// New creates an empty State.
func New() *State {
	return &State{
		vars:      make(map[string]map[string]*Variable),
		nextTrack: make(map[string]int),
		facts:     make(map[factCacheKey][]Fact),
		minPC:     make(map[string]int),
		initCache: make(map[initKey][]Fact),
	}
}

func (s *State) ensureFuncVars(fn string) map[string]*Variable {
	m, ok := s.vars[fn]
	if !ok {
		m = make(map[string]*Variable)
		s.vars[fn] = m
	}
	return m
}

// ensureVarLocked gets or creates the Variable named name in function fn,
// classifying it by naming convention unless isTaut/isGlobal/isMemory are
// forced by the caller (add_global_var, add_memory_var, the implicit taut).
func (s *State) ensureVarLocked(fn, name string, force *Variable) *Variable {
	vars := s.ensureFuncVars(fn)
	if v, ok := vars[name]; ok {
		return v
	}

	var v Variable
	if force != nil {
		v = *force
		v.Name = name
	} else {
		isTaut, isGlobal, isMemory, memOffset := classifyName(name)
		v = Variable{Name: name, IsTaut: isTaut, IsGlobal: isGlobal, IsMemory: isMemory, MemoryOffset: memOffset}
	}
	v.Track = s.nextTrack[fn]
	s.nextTrack[fn]++
	vars[name] = &v
	return &v
}

func (s *State) newFact(fn string, pc, nextPC int, v Variable) Fact {
	s.nextID++
	return Fact{Id: s.nextID, Function: fn, PC: pc, NextPC: nextPC, Var: v}
}

func (s *State) cacheFactLocked(f Fact) Fact {
	key := factCacheKey{Function: f.Function, PC: f.PC}
	existing := s.facts[key]
	for _, e := range existing {
		if e.Key() == f.Key() {
			return e
		}
	}
	s.facts[key] = append(existing, f)
	if min, ok := s.minPC[f.Function]; !ok || f.PC < min {
		s.minPC[f.Function] = f.PC
	}
	return f
}

// InitFunction creates the canonical initial facts at pc for function fn:
// taut first, then one fact per global, then one per parameter, then per
// local — all in the order of fn.Definitions, per spec.md §4.2. It is
// idempotent: repeated calls for the same (function, pc) return the same
// facts.
func (s *State) InitFunction(fn *ir.Function, pc int) []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := initKey{Function: fn.Name, PC: pc}
	if cached, ok := s.initCache[key]; ok {
		return cached
	}

	taut := s.ensureVarLocked(fn.Name, tautName, &Variable{IsTaut: true})
	facts := make([]Fact, 0, len(fn.Definitions)+1)
	facts = append(facts, s.cacheFactLocked(s.newFact(fn.Name, pc, pc, *taut)))

	for _, name := range fn.Definitions {
		v := s.ensureVarLocked(fn.Name, name, nil)
		facts = append(facts, s.cacheFactLocked(s.newFact(fn.Name, pc, pc, *v)))
	}

	s.initCache[key] = facts
	return facts
}

// AddStatement materialises the fact (fn, pc, var) with the natural
// straight-line successor pc+1, and caches it. note is a debug label carried
// only for diagnostics.
func (s *State) AddStatement(fn, note string, pc int, varName string) Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ensureVarLocked(fn, varName, nil)
	f := s.newFact(fn, pc, pc+1, *v)
	f.Note = note
	return s.cacheFactLocked(f)
}

// AddMemoryVar ensures a mem@offset Variable exists in fn and returns it.
// Total: adding the same offset twice yields the same Variable.
func (s *State) AddMemoryVar(fn string, offset int) Variable {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := fmt.Sprintf("mem@%d", offset)
	v := s.ensureVarLocked(fn, name, &Variable{IsMemory: true, MemoryOffset: offset})
	return *v
}

// AddGlobalVar ensures a global Variable named name exists in fn and returns
// it.
func (s *State) AddGlobalVar(fn, name string) Variable {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ensureVarLocked(fn, name, &Variable{IsGlobal: true})
	return *v
}

// GetFactsAt returns every fact cached at (fn, pc), in insertion order.
func (s *State) GetFactsAt(fn string, pc int) []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.facts[factCacheKey{Function: fn, PC: pc}]
	out := make([]Fact, len(facts))
	copy(out, facts)
	return out
}

// GetVar returns the Variable named name in fn, if defined.
func (s *State) GetVar(fn, name string) (Variable, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	vars, ok := s.vars[fn]
	if !ok {
		return Variable{}, false
	}
	v, ok := vars[name]
	if !ok {
		return Variable{}, false
	}
	return *v, true
}

// GetTrack returns the track ordinal of variable name in fn.
func (s *State) GetTrack(fn, name string) (int, bool) {
	v, ok := s.GetVar(fn, name)
	if !ok {
		return 0, false
	}
	return v.Track, true
}

// IsFunctionDefined reports whether fn has any registered variables.
func (s *State) IsFunctionDefined(fn string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.vars[fn]
	return ok
}

// GetMinPC returns the smallest pc ever cached for fn.
func (s *State) GetMinPC(fn string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pc, ok := s.minPC[fn]
	return pc, ok
}

// Len reports the total number of distinct facts cached across every
// function and pc, used to enforce a configurable fact-count ceiling.
func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, fs := range s.facts {
		n += len(fs)
	}
	return n
}

// CacheFact appends fact to its (function, pc) bucket, preserving order, and
// suppressing exact (function, pc, next_pc, variable) duplicates.
func (s *State) CacheFact(f Fact) Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cacheFactLocked(f)
}

// CacheFacts appends every fact in fs, in order.
func (s *State) CacheFacts(fs []Fact) []Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Fact, len(fs))
	for i, f := range fs {
		out[i] = s.cacheFactLocked(f)
	}
	return out
}

// NewFact constructs (without caching) a Fact for variable v at (fn, pc,
// nextPC), assigning it the next fact id. Solver packages use this to build
// facts destined for CacheFact/CacheFacts rather than AddStatement when the
// successor isn't the default pc+1 (e.g. curved jump/branch targets,
// interprocedural call/return sites).
func (s *State) NewFact(fn string, pc, nextPC int, v Variable) Fact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newFact(fn, pc, nextPC, v)
}

// EnsureVar gets or creates an ordinary/global/memory/taut Variable by
// naming convention, without caching any fact. Used by solver code that
// needs a Variable handle before it has a pc to attach a Fact to.
func (s *State) EnsureVar(fn, name string) Variable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.ensureVarLocked(fn, name, nil)
}
