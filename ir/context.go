// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/go-awk/irssa/ast"
	"github.com/go-awk/irssa/builtins"
)

// mainFuncName is the synthetic name given to the Function built from a
// Program's pattern/action rules (see Program.Desugar).
const mainFuncName = "main"

// GlobalContext assigns stable Idents to AWK's implicitly-global
// variables and is shared by every Function lowered from the same
// Program: unlike locals, a global name must resolve to the same Ident
// no matter which function references it.
//
// It also tracks, per name, whether the global is a "local global"
// candidate: one speculatively marked local on first use in main, whose
// mark is permanently cleared the moment any non-main function
// references it (spec.md §3, §9). The mark is keyed to main specifically
// rather than to "whichever function used it first" — a global touched
// only by one non-main user function and never by main is an ordinary
// global, not a local-global candidate.
type GlobalContext struct {
	names map[string]Ident
	next  uint32

	local   map[string]bool // name -> currently marked local (seen only in main so far)
	evicted map[string]bool // name -> a non-main function has referenced it; never remarked
}

func newGlobalContext() *GlobalContext {
	return &GlobalContext{
		names:   map[string]Ident{},
		next:    1, // 0 is the reserved unused sink
		local:   map[string]bool{},
		evicted: map[string]bool{},
	}
}

func (g *GlobalContext) resolve(name string) Ident {
	if id, ok := g.names[name]; ok {
		return id
	}
	id := Ident{Low: g.next, Global: true}
	g.next++
	g.names[name] = id
	return id
}

// observe records that fn referenced the global name. Called once per
// use from getIdentifier, never from parameter/local declaration.
//
// Only a reference from main can ever mark a name local; a reference
// from any other function permanently evicts it, even if main referenced
// it earlier. For this to match "only referenced from main" in the
// whole-program sense, every reference main ever makes must be observed
// before any non-main function's references are (FromProgram lowers main
// first for exactly this reason) — but the evicted set also makes the
// result independent of that ordering, since once evicted a name can
// never be remarked local regardless of what main observes afterward.
func (g *GlobalContext) observe(name, fn string) {
	if fn != mainFuncName {
		delete(g.local, name)
		g.evicted[name] = true
		return
	}
	if !g.evicted[name] {
		g.local[name] = true
	}
}

// LocalGlobals returns, in sorted order, every global name currently
// marked local: referenced from main and never from any other function.
func (g *GlobalContext) LocalGlobals() []string {
	names := maps.Keys(g.local)
	slices.Sort(names)
	return names
}

// localGlobalLows returns the Low value of every name LocalGlobals
// reports, as a set keyed by Low for the SSA builder's per-Ident
// mayRename check (ssaconv.go). Lows, not names, are what PrimStmt
// operands actually carry.
func (g *GlobalContext) localGlobalLows() map[uint32]bool {
	lows := make(map[uint32]bool, len(g.local))
	for name := range g.local {
		lows[g.names[name].Low] = true
	}
	return lows
}

// loopContext is one entry of a Function's break/continue target stack.
type loopContext struct {
	continueTarget NodeID
	breakTarget    NodeID
}

// Function is one lowered user function (or main, for the synthetic
// function built from a Program's pattern/action rules). It owns a CFG
// and the per-function symbol table; global names are resolved through
// the shared GlobalContext instead.
type Function struct {
	Name      string
	NumParams int

	CFG   *CFG
	Entry NodeID
	Exit  NodeID

	// ToplevelHeader is the id of main's synthetic per-record loop
	// header. It is set only on the Function built from
	// Program.Desugar's output; every user-defined function leaves it
	// nil, which is what do_next/do_break_continue-equivalent checks
	// key off of.
	ToplevelHeader *NodeID

	// Params holds the Ident minted for each declared parameter, in
	// declaration order; the SSA builder uses it to seed each
	// parameter's rename stack with its incoming-argument value before
	// walking the dominator tree, since (unlike every other local)
	// parameters have a real initial value that no PSAsgnVar statement
	// ever records.
	Params []Ident

	// Dom is the dominator tree computed for CFG during SSA
	// construction; nil until FromProgram has returned successfully.
	Dom *DomTree

	globals *GlobalContext
	locals  map[string]Ident

	nextLocalLow uint32
	loopCtx      []loopContext
	condIdents   map[int]Ident

	// localGlobals is populated by FromProgram once every function's
	// CFG has been lowered (so the whole-program local/evicted
	// bookkeeping in GlobalContext has settled) and consulted by
	// buildSSA's phi-placement and renaming passes. nil before then.
	localGlobals map[uint32]bool
}

// mayRename reports whether id should participate in phi-insertion and
// renaming: every non-global Ident always does; a global Ident does
// only if it is in f's local-globals set, i.e. referenced from main and
// from no other function (spec.md §4.6, §8 property 6). Globals not
// in the set keep Sub == 0 at every occurrence and receive no phi.
func (f *Function) mayRename(id Ident) bool {
	if !id.Global {
		return true
	}
	return f.localGlobals[id.Low]
}

func newFunction(name string, globals *GlobalContext) *Function {
	return &Function{
		Name:       name,
		CFG:        NewCFG(),
		globals:    globals,
		locals:     map[string]Ident{},
		condIdents: map[int]Ident{},
	}
}

// condIdent returns the local Ident backing the nth pattern condition
// flag (ast.StartCond{N}/EndCond{N}/Cond{N}), minting one on first use.
// Because it's an ordinary local, its value carries correctly across
// iterations of the toplevel per-record loop the same way any other
// loop-carried local does: via the phi the SSA pass places at the
// loop header.
func (f *Function) condIdent(n int) Ident {
	if id, ok := f.condIdents[n]; ok {
		return id
	}
	id := f.freshTemp()
	f.condIdents[n] = id
	return id
}

// declareLocal mints a fresh local Ident bound to name within f, shadowing
// any global of the same name for the rest of f's body. Used for
// parameters and for the per-iteration variable of ForEach.
func (f *Function) declareLocal(name string) Ident {
	f.nextLocalLow++
	id := Ident{Low: f.nextLocalLow, Global: false}
	f.locals[name] = id
	return id
}

// freshTemp mints a local Ident with no source name, for values the
// lowerer introduces itself (short-circuit results, loaded-once builtin
// reads, condition-flag storage).
func (f *Function) freshTemp() Ident {
	f.nextLocalLow++
	return Ident{Low: f.nextLocalLow, Global: false}
}

// getIdentifier resolves a bare source name to the Ident it denotes
// inside f: a declared parameter or local first, falling back to a
// program-wide global.
func (f *Function) getIdentifier(name string) Ident {
	if id, ok := f.locals[name]; ok {
		return id
	}
	id := f.globals.resolve(name)
	f.globals.observe(name, f.Name)
	return id
}

func (f *Function) pushLoop(continueTarget, breakTarget NodeID) {
	f.loopCtx = append(f.loopCtx, loopContext{continueTarget, breakTarget})
}

func (f *Function) popLoop() {
	f.loopCtx = f.loopCtx[:len(f.loopCtx)-1]
}

// inToplevelOnlyFrame reports the degenerate case where the sole active
// loop context is main's own per-record loop: a bare break/continue at
// main's outermost statement level pushes that context, but it must
// still be rejected as "no enclosing loop" rather than accepted as a
// (nonsensical) break out of the per-record loop.
func (f *Function) inToplevelOnlyFrame() bool {
	return len(f.loopCtx) == 1 && f.ToplevelHeader != nil
}

func (f *Function) resolveBreak() (NodeID, error) {
	if len(f.loopCtx) == 0 || f.inToplevelOnlyFrame() {
		return 0, newError(f.Name, ErrBreakOutsideLoop, "break")
	}
	return f.loopCtx[len(f.loopCtx)-1].breakTarget, nil
}

func (f *Function) resolveContinue() (NodeID, error) {
	if len(f.loopCtx) == 0 || f.inToplevelOnlyFrame() {
		return 0, newError(f.Name, ErrBreakOutsideLoop, "continue")
	}
	return f.loopCtx[len(f.loopCtx)-1].continueTarget, nil
}

func (f *Function) requireToplevel(what string) error {
	if f.ToplevelHeader == nil {
		return newError(f.Name, ErrNextOutsideToplevel, what)
	}
	return nil
}

// guardedElse adds the edge from -> to only if from hasn't already been
// sealed. A block is sealed the moment a terminal statement (return,
// next, nextfile, or a break/continue that jumps out of it) is lowered
// into it, which means no further edge — including the synthetic
// fallthrough/join edges do_condition and make_loop install — may be
// attached to it.
func (f *Function) guardedElse(from, to NodeID, t Transition) {
	if f.CFG.Block(from).Sealed {
		return
	}
	f.CFG.AddEdge(from, to, t)
	f.CFG.SealBlock(from)
}

// ProgramContext is the whole-program result of lowering an ast.Program:
// every user function plus the synthetic main built from its rules.
type ProgramContext struct {
	Funcs      []*Function
	MainOffset FuncIx
	funcIx     map[string]FuncIx
	arity      map[string]int
	Globals    *GlobalContext

	// LocalGlobals holds the Low value of every global Ident that, once
	// every function in the program has been lowered, turned out to be
	// referenced from main and from no other function (spec.md §3, §9). Downstream
	// passes may use this to give such a global function-local storage;
	// this package's own SSA builder already treats it as renamable
	// (see Function.mayRename).
	LocalGlobals []uint32
}

// FromProgram lowers p into a ProgramContext. It validates function
// declarations up front (no duplicates, no shadowing a builtin) so that
// every later call to getCallee can assume the name table is complete
// and consistent.
//
// Lowering happens in two passes: every function's CFG is built first
// (populating Globals' local/evicted bookkeeping for the whole program),
// and only then does buildSSA run for each function. Doing phi-insertion
// and renaming before every reference to every global has been observed
// would make the local-global classification consulted by
// Function.mayRename depend on lowering order instead of whole-program
// usage.
//
// Within that first pass, main is lowered before any user function: a
// global only becomes a local-global candidate on a reference from main
// (spec.md §3, §9), so main's references must be recorded before a
// non-main function's reference to the same name can evict it.
func FromProgram(p *ast.Program) (*ProgramContext, error) {
	pc := &ProgramContext{
		funcIx:  map[string]FuncIx{},
		arity:   map[string]int{},
		Globals: newGlobalContext(),
	}

	for _, decl := range p.Funcs {
		if _, ok := builtins.ParseFunction(decl.Name); ok || builtins.IsSprintf(decl.Name) {
			return nil, newError("", ErrBuiltinRedefined, decl.Name)
		}
		if _, ok := pc.funcIx[decl.Name]; ok {
			return nil, newError("", ErrDuplicateFunc, decl.Name)
		}
		pc.funcIx[decl.Name] = FuncIx(len(pc.Funcs))
		pc.arity[decl.Name] = len(decl.Args)
		pc.Funcs = append(pc.Funcs, nil) // reserved slot, filled below
	}

	main, err := lowerFunctionCFG(pc, mainFuncName, nil, p.Desugar())
	if err != nil {
		return nil, err
	}

	for _, decl := range p.Funcs {
		fn, err := lowerFunctionCFG(pc, decl.Name, decl.Args, decl.Body)
		if err != nil {
			return nil, err
		}
		pc.Funcs[pc.funcIx[decl.Name]] = fn
	}

	pc.MainOffset = FuncIx(len(pc.Funcs))
	pc.Funcs = append(pc.Funcs, main)

	lows := pc.Globals.localGlobalLows()
	pc.LocalGlobals = make([]uint32, 0, len(lows))
	for low := range lows {
		pc.LocalGlobals = append(pc.LocalGlobals, low)
	}
	slices.Sort(pc.LocalGlobals)

	for _, fn := range pc.Funcs {
		fn.localGlobals = lows
		buildSSA(fn)
	}

	return pc, nil
}

// getCallee resolves a call target name to its function index and
// declared arity.
func (pc *ProgramContext) getCallee(name string) (FuncIx, int, bool) {
	ix, ok := pc.funcIx[name]
	if !ok {
		return 0, 0, false
	}
	return ix, pc.arity[name], true
}

// Main returns the synthetic function built from the program's
// pattern/action rules.
func (pc *ProgramContext) Main() *Function { return pc.Funcs[len(pc.Funcs)-1] }
