// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"github.com/go-awk/irssa/ast"
	"github.com/go-awk/irssa/builtins"
)

// lowerFunctionCFG builds a single Function's CFG from its body, leaving
// SSA construction (buildSSA) to the caller. params is nil for main. The
// toplevel per-record loop (Function.ToplevelHeader) is installed from
// inside lowerStmt's While case, triggered by the IsToplevel flag
// Program.Desugar sets on main's wrapping loop — not by anything in this
// function.
//
// buildSSA is deliberately not called here: it runs only once every
// function in the program has had its CFG built, so that the
// local-global classification it reads off GlobalContext reflects every
// function's references, not just the ones lowered so far (see
// FromProgram).
func lowerFunctionCFG(pc *ProgramContext, name string, params []string, body ast.Stmt) (*Function, error) {
	f := newFunction(name, pc.Globals)
	f.NumParams = len(params)
	for _, p := range params {
		f.Params = append(f.Params, f.declareLocal(p))
	}

	f.Entry = f.CFG.AddBlock()
	f.Exit = f.CFG.AddBlock()

	cur, err := lowerStmt(f, pc, f.Entry, body)
	if err != nil {
		return nil, err
	}
	f.fallthroughToExit(cur)
	f.finish()
	return f, nil
}

// fallthroughToExit closes off cur with an edge to the function's exit
// block, unless cur was already sealed by a terminal statement (return,
// or a next/nextfile/break/continue that jumped elsewhere).
func (f *Function) fallthroughToExit(cur NodeID) {
	f.guardedElse(cur, f.Exit, Uncond())
}

// finish makes every block in f terminal: any non-exit block that still
// has no out-edge after lowering is given an explicit return and wired
// to Exit, and the exit block itself ends in a Return of the unused
// sink (an explicit return statement emits its own Return in the block
// where it appears). Every block is sealed afterwards.
func (f *Function) finish() {
	for _, b := range f.CFG.Blocks() {
		if b.ID == f.Exit {
			continue
		}
		if len(b.Out) == 0 {
			if len(b.Stmts) == 0 || b.Stmts[len(b.Stmts)-1].Kind != PSReturn {
				b.Stmts = append(b.Stmts, PrimStmt{Kind: PSReturn, Val: unusedVal()})
			}
			f.CFG.AddEdge(b.ID, f.Exit, Uncond())
		}
		f.CFG.SealBlock(b.ID)
	}
	exit := f.CFG.Block(f.Exit)
	exit.Stmts = append(exit.Stmts, PrimStmt{Kind: PSReturn, Val: unusedVal()})
	f.CFG.SealBlock(f.Exit)
}

// emitAssign appends an AsgnVar statement binding rhs to id at the end
// of blk's current statement list.
func (f *Function) emitAssign(blk NodeID, id Ident, rhs PrimExpr) {
	b := f.CFG.Block(blk)
	b.Stmts = append(b.Stmts, PrimStmt{Kind: PSAsgnVar, Ident: id, Rhs: rhs})
}

// emitSetBuiltin appends a SetBuiltin statement writing rhs to the
// builtin variable v at the end of blk's current statement list.
func (f *Function) emitSetBuiltin(blk NodeID, v builtins.Variable, rhs PrimExpr) {
	b := f.CFG.Block(blk)
	b.Stmts = append(b.Stmts, PrimStmt{Kind: PSSetBuiltin, Var: v, Rhs: rhs})
}

// emit mints a fresh temporary, binds rhs to it in blk, and returns a
// reference to it. Used for every subexpression that needs a name of
// its own (builtin calls, index loads, iterator steps, loaded globals).
func (f *Function) emit(blk NodeID, rhs PrimExpr) PrimVal {
	id := f.freshTemp()
	f.emitAssign(blk, id, rhs)
	return VarVal(id)
}

// doCondition lowers an if/then/else: evaluate cond in cur, branch to a
// fresh then-block (and, if present, a fresh else-block; otherwise the
// false edge goes straight to the join block), lower each arm, and wire
// whichever arms fall through into a shared join block. The then-edge is
// always added before the else/fallthrough edge, so a block's
// conditional out-edge is always Out[0].
func doCondition(f *Function, pc *ProgramContext, cur NodeID, condE ast.Expr, thenS, elseS ast.Stmt) (NodeID, error) {
	cur, condVal, err := lowerExpr(f, pc, cur, condE)
	if err != nil {
		return 0, err
	}

	thenBlk := f.CFG.AddBlock()
	joinBlk := f.CFG.AddBlock()
	f.CFG.AddEdge(cur, thenBlk, CondOn(condVal))

	elseBlk := joinBlk
	if elseS != nil {
		elseBlk = f.CFG.AddBlock()
	}
	f.CFG.AddEdge(cur, elseBlk, Uncond())
	f.CFG.SealBlock(cur)

	tEnd, err := lowerStmt(f, pc, thenBlk, thenS)
	if err != nil {
		return 0, err
	}
	f.guardedElse(tEnd, joinBlk, Uncond())

	if elseS != nil {
		eEnd, err := lowerStmt(f, pc, elseBlk, elseS)
		if err != nil {
			return 0, err
		}
		f.guardedElse(eEnd, joinBlk, Uncond())
	}

	return joinBlk, nil
}

// lowerITE lowers the expression-valued ternary `cond ? thenE : elseE`,
// and is also how And/Or are lowered: `x && y` rewrites to
// `x ? y : 0`, `x || y` to `x ? 1 : y`, matching the short-circuit
// evaluation AWK requires (the unevaluated side is never touched).
func lowerITE(f *Function, pc *ProgramContext, cur NodeID, condE, thenE, elseE ast.Expr) (NodeID, PrimVal, error) {
	cur, condVal, err := lowerExpr(f, pc, cur, condE)
	if err != nil {
		return 0, PrimVal{}, err
	}

	thenBlk := f.CFG.AddBlock()
	elseBlk := f.CFG.AddBlock()
	joinBlk := f.CFG.AddBlock()
	f.CFG.AddEdge(cur, thenBlk, CondOn(condVal))
	f.CFG.AddEdge(cur, elseBlk, Uncond())
	f.CFG.SealBlock(cur)

	result := f.freshTemp()

	tEnd, thenVal, err := lowerExpr(f, pc, thenBlk, thenE)
	if err != nil {
		return 0, PrimVal{}, err
	}
	f.emitAssign(tEnd, result, ValExpr(thenVal))
	f.guardedElse(tEnd, joinBlk, Uncond())

	eEnd, elseVal, err := lowerExpr(f, pc, elseBlk, elseE)
	if err != nil {
		return 0, PrimVal{}, err
	}
	f.emitAssign(eEnd, result, ValExpr(elseVal))
	f.guardedElse(eEnd, joinBlk, Uncond())

	return joinBlk, VarVal(result), nil
}

// makeLoop lowers for/while/do-while into header/body(/update)/exit
// blocks. isDo routes the initial edge straight into the body instead of
// the header, skipping the first condition test; isToplevel installs
// Function.ToplevelHeader on the header block, which is only ever true
// for the single synthetic loop Program.Desugar wraps main's rules in.
func makeLoop(f *Function, pc *ProgramContext, cur NodeID, condE ast.Expr, body, update ast.Stmt, isDo, isToplevel bool) (NodeID, error) {
	header := f.CFG.AddBlock()
	bodyBlk := f.CFG.AddBlock()
	exitBlk := f.CFG.AddBlock()

	if isToplevel {
		h := header
		f.ToplevelHeader = &h
	}

	if isDo {
		f.CFG.AddEdge(cur, bodyBlk, Uncond())
	} else {
		f.CFG.AddEdge(cur, header, Uncond())
	}
	f.CFG.SealBlock(cur)

	hEnd, condVal, err := lowerExpr(f, pc, header, condE)
	if err != nil {
		return 0, err
	}
	f.CFG.AddEdge(hEnd, bodyBlk, CondOn(condVal))
	f.CFG.AddEdge(hEnd, exitBlk, Uncond())
	f.CFG.SealBlock(hEnd)

	continueTarget := header
	var updateBlk NodeID
	hasUpdate := update != nil
	if hasUpdate {
		updateBlk = f.CFG.AddBlock()
		continueTarget = updateBlk
	}

	f.pushLoop(continueTarget, exitBlk)
	bEnd, err := lowerStmt(f, pc, bodyBlk, body)
	f.popLoop()
	if err != nil {
		return 0, err
	}

	if hasUpdate {
		f.guardedElse(bEnd, updateBlk, Uncond())
		uEnd, err := lowerStmt(f, pc, updateBlk, update)
		if err != nil {
			return 0, err
		}
		f.guardedElse(uEnd, header, Uncond())
	} else {
		f.guardedElse(bEnd, header, Uncond())
	}

	return exitBlk, nil
}
