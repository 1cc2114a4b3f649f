// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "golang.org/x/tools/container/intsets"

// identKey identifies a variable across SSA subscripts: two Idents name
// the same variable iff their (Low, Global) pair matches, regardless of
// Sub.
type identKey struct {
	Low    uint32
	Global bool
}

func keyOf(id Ident) identKey { return identKey{Low: id.Low, Global: id.Global} }

// buildSSA computes f's dominator tree, places phi nodes on the
// dominance frontier of every assigned variable, and renames every def
// and use so that each Ident names exactly one value (spec.md §4.6,
// §4.7). FromProgram runs it on each function once every function's CFG
// has been built by lowerFunctionCFG; by the time it returns,
// f.CFG is in SSA form and f.Dom holds the dominator tree that proves
// it (every use is dominated by its unique def).
func buildSSA(f *Function) {
	dt := buildDomTree(f.CFG, f.Entry)
	df := domFrontier(f.CFG, dt)

	insertPhis(f, dt, df)

	r := &renamer{stacks: map[identKey][]Ident{}, counts: map[identKey]uint32{}}
	for _, p := range f.Params {
		r.mint(p)
	}
	renameBlock(f, dt, r, f.Entry)

	f.Dom = dt
}

// insertPhis places one phi-defining PrimStmt per (variable, join
// point) pair required by the standard dominance-frontier criterion
// (Cytron et al. 1991): for each variable, iteratively propagate phi
// placement across the dominance frontier of its (growing) set of
// definition sites until no new block needs one.
func insertPhis(f *Function, dt *DomTree, df map[NodeID][]NodeID) {
	defsites := map[identKey]map[NodeID]bool{}
	base := map[identKey]Ident{}
	for _, b := range f.CFG.Blocks() {
		for _, s := range b.Stmts {
			if s.Kind != PSAsgnVar || !f.mayRename(s.Ident) {
				continue
			}
			k := keyOf(s.Ident)
			if defsites[k] == nil {
				defsites[k] = map[NodeID]bool{}
			}
			defsites[k][b.ID] = true
			base[k] = s.Ident.base()
		}
	}

	for k, sites := range defsites {
		var hasPhi, onWorklist intsets.Sparse
		var worklist []NodeID
		for b := range sites {
			onWorklist.Insert(int(b))
			worklist = append(worklist, b)
		}

		for len(worklist) > 0 {
			x := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			if _, reachable := dt.idom[x]; !reachable && x != dt.entry {
				continue // x is dead code; its defs don't force any phi
			}

			for _, y := range df[x] {
				if hasPhi.Has(int(y)) {
					continue
				}
				hasPhi.Insert(int(y))

				blk := f.CFG.Block(y)
				blk.Phis = append(blk.Phis, PrimStmt{
					Kind:  PSAsgnVar,
					Ident: base[k],
					Rhs:   PrimExpr{Kind: PEPhi, Phi: make([]PhiArg, 0, len(blk.In))},
				})

				if !onWorklist.Has(int(y)) {
					onWorklist.Insert(int(y))
					worklist = append(worklist, y)
				}
			}
		}
	}
}

// renamer tracks, for each variable, the stack of SSA names currently in
// scope (one push per dominator-subtree def, popped on the way back out
// per ssa.go's walk) and the next subscript to mint. Real defs start
// their variable's subscript at 1; a variable whose stack is empty reads
// as subscript 0, the reserved "never assigned on this path" sentinel.
type renamer struct {
	stacks map[identKey][]Ident
	counts map[identKey]uint32
}

func (r *renamer) current(id Ident) Ident {
	k := keyOf(id)
	s := r.stacks[k]
	if len(s) == 0 {
		return Ident{Low: id.Low, Global: id.Global}
	}
	return s[len(s)-1]
}

func (r *renamer) mint(id Ident) Ident {
	k := keyOf(id)
	c, ok := r.counts[k]
	if !ok {
		c = 1
	}
	n := Ident{Low: id.Low, Sub: c, Global: id.Global}
	r.counts[k] = c + 1
	r.stacks[k] = append(r.stacks[k], n)
	return n
}

func (r *renamer) pop(k identKey) {
	s := r.stacks[k]
	r.stacks[k] = s[:len(s)-1]
}

// renameBlock renames block x's phis and statements, patches the
// corresponding operand into every phi at x's CFG successors, then
// recurses over x's dominator-tree children before undoing its own
// pushes — the walk from obj/internal/ssa.go's SSA builder, adapted to
// this package's two-list (Phis, Stmts) block representation.
func renameBlock(f *Function, dt *DomTree, r *renamer, x NodeID) {
	blk := f.CFG.Block(x)
	var pushed []identKey

	for i := range blk.Phis {
		s := &blk.Phis[i]
		pushed = append(pushed, keyOf(s.Ident))
		s.Ident = r.mint(s.Ident)
	}

	for i := range blk.Stmts {
		s := &blk.Stmts[i]
		switch s.Kind {
		case PSAsgnVar:
			s.Rhs.replaceIdents(r.current)
			if f.mayRename(s.Ident) {
				pushed = append(pushed, keyOf(s.Ident))
				s.Ident = r.mint(s.Ident)
			}
		case PSAsgnIndex:
			s.Key.replaceIdent(r.current)
			s.Rhs.replaceIdents(r.current)
			s.Ident = r.current(s.Ident)
		default:
			s.replace(r.current)
		}
	}

	for _, e := range blk.Out {
		succ := f.CFG.Block(e.To)
		for i := range succ.Phis {
			ph := &succ.Phis[i]
			k := keyOf(ph.Ident)
			arg := r.current(Ident{Low: k.Low, Global: k.Global})
			ph.Rhs.Phi = append(ph.Rhs.Phi, PhiArg{Pred: x, Id: arg})
		}
	}

	for _, c := range dt.children[x] {
		renameBlock(f, dt, r, c)
	}

	for _, k := range pushed {
		r.pop(k)
	}
}
