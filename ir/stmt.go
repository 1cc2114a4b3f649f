// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"github.com/go-awk/irssa/ast"
	"github.com/go-awk/irssa/builtins"
)

// lowerStmt lowers s into cur's block (and beyond, for anything with
// control flow), returning the block lowering should continue into. The
// returned block may be cur itself (straight-line statements), a fresh
// join/exit block (if/loop/foreach), or cur again in a sealed state (a
// terminal statement): callers that lower a sequence of statements must
// stop as soon as the returned block is sealed, since nothing lowered
// from here on is reachable.
func lowerStmt(f *Function, pc *ProgramContext, cur NodeID, s ast.Stmt) (NodeID, error) {
	if f.CFG.Block(cur).Sealed {
		return 0, newError(f.Name, ErrSealedBlockAppend, "statement after a terminating branch")
	}
	switch s := s.(type) {
	case *ast.Block:
		for _, sub := range s.Stmts {
			var err error
			cur, err = lowerStmt(f, pc, cur, sub)
			if err != nil {
				return 0, err
			}
			if f.CFG.Block(cur).Sealed {
				break
			}
		}
		return cur, nil

	case *ast.ExprStmt:
		// We must assign to the unused sink here, not just compute the
		// expression and drop it: otherwise we could emit code whose
		// side effects are generated but never observed, since nothing
		// else holds a reference to the resulting value.
		cur, v, err := lowerExpr(f, pc, cur, s.X)
		if err != nil {
			return 0, err
		}
		f.emitAssign(cur, unusedIdent, ValExpr(v))
		return cur, nil

	case *ast.Printf:
		return lowerPrintf(f, pc, cur, s)

	case *ast.Print:
		return lowerPrint(f, pc, cur, s)

	case *ast.If:
		return doCondition(f, pc, cur, s.Cond, s.Then, s.Else)

	case *ast.For:
		if s.Init != nil {
			var err error
			cur, err = lowerStmt(f, pc, cur, s.Init)
			if err != nil {
				return 0, err
			}
		}
		return makeLoop(f, pc, cur, loopCond(s.Cond), s.Body, s.Update, false, false)

	case *ast.While:
		return makeLoop(f, pc, cur, loopCond(s.Cond), s.Body, nil, false, s.IsToplevel)

	case *ast.DoWhile:
		return makeLoop(f, pc, cur, loopCond(s.Cond), s.Body, nil, true, false)

	case *ast.ForEach:
		return lowerForEach(f, pc, cur, s)

	case *ast.Break:
		target, err := f.resolveBreak()
		if err != nil {
			return 0, err
		}
		f.CFG.AddEdge(cur, target, Uncond())
		f.CFG.SealBlock(cur)
		return cur, nil

	case *ast.Continue:
		target, err := f.resolveContinue()
		if err != nil {
			return 0, err
		}
		f.CFG.AddEdge(cur, target, Uncond())
		f.CFG.SealBlock(cur)
		return cur, nil

	case *ast.Next:
		if err := f.requireToplevel("next"); err != nil {
			return 0, err
		}
		f.CFG.AddEdge(cur, *f.ToplevelHeader, Uncond())
		f.CFG.SealBlock(cur)
		return cur, nil

	case *ast.NextFile:
		if err := f.requireToplevel("nextfile"); err != nil {
			return 0, err
		}
		f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.NextFile})
		f.CFG.AddEdge(cur, *f.ToplevelHeader, Uncond())
		f.CFG.SealBlock(cur)
		return cur, nil

	case *ast.Return:
		var val PrimVal = unusedVal()
		if s.X != nil {
			var err error
			var xv PrimVal
			cur, xv, err = lowerExpr(f, pc, cur, s.X)
			if err != nil {
				return 0, err
			}
			val = xv
		}
		b := f.CFG.Block(cur)
		b.Stmts = append(b.Stmts, PrimStmt{Kind: PSReturn, Val: val})
		f.CFG.AddEdge(cur, f.Exit, Uncond())
		f.CFG.SealBlock(cur)
		return cur, nil

	case *ast.StartCond:
		f.emitAssign(cur, f.condIdent(s.N), ValExpr(IntVal(1)))
		return cur, nil

	case *ast.EndCond:
		f.emitAssign(cur, f.condIdent(s.N), ValExpr(IntVal(0)))
		return cur, nil
	}
	return 0, newError(f.Name, ErrInvalidAssignTarget, "unrecognized statement")
}

// loopCond returns a literal-true condition for a loop header with no
// explicit condition (`for (;;)`), which always branches into the body.
func loopCond(c ast.Expr) ast.Expr {
	if c == nil {
		return &ast.IntLit{Val: 1}
	}
	return c
}

// lowerPrintf lowers a Printf statement: fmt and every arg are lowered
// left to right, then the optional destination, exactly in source
// order, with no implicit loads.
func lowerPrintf(f *Function, pc *ProgramContext, cur NodeID, s *ast.Printf) (NodeID, error) {
	var fmtVal PrimVal
	var err error
	cur, fmtVal, err = lowerExpr(f, pc, cur, s.Fmt)
	if err != nil {
		return 0, err
	}

	args := make([]PrimVal, len(s.Args))
	for i, a := range s.Args {
		cur, args[i], err = lowerExpr(f, pc, cur, a)
		if err != nil {
			return 0, err
		}
	}

	return finishPrintf(f, pc, cur, s.Dest, s.Append, fmtVal, args)
}

// lowerPrint lowers a desugared Print into an equivalent Printf: ORS
// (and, for prints with any arguments, OFS) is loaded through LoadBuiltin once up
// front, before any argument is evaluated, and the loaded values are
// interleaved into the generated format string and argument list rather
// than being re-read per field.
func lowerPrint(f *Function, pc *ProgramContext, cur NodeID, s *ast.Print) (NodeID, error) {
	orsVal := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: builtins.ORS})

	if len(s.Args) == 0 {
		dollar0 := f.emit(cur, PrimExpr{
			Kind:    PECallBuiltin,
			Builtin: builtins.Unop,
			Args:    []PrimVal{IntVal(int64(ast.Column)), IntVal(0)},
		})
		return finishPrintf(f, pc, cur, s.Dest, s.Append, StrVal("%s%s"), []PrimVal{dollar0, orsVal})
	}

	ofsVal := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: builtins.OFS})

	fmtStr := ""
	args := make([]PrimVal, 0, len(s.Args)*2+1)
	for i, a := range s.Args {
		var v PrimVal
		var err error
		cur, v, err = lowerExpr(f, pc, cur, a)
		if err != nil {
			return 0, err
		}
		if i > 0 {
			fmtStr += "%s"
			args = append(args, ofsVal)
		}
		fmtStr += "%s"
		args = append(args, v)
	}
	fmtStr += "%s"
	args = append(args, orsVal)

	return finishPrintf(f, pc, cur, s.Dest, s.Append, StrVal(fmtStr), args)
}

func finishPrintf(f *Function, pc *ProgramContext, cur NodeID, dest ast.Expr, appendMode bool, fmtVal PrimVal, args []PrimVal) (NodeID, error) {
	var destVal PrimVal
	hasDest := false
	if dest != nil {
		var err error
		cur, destVal, err = lowerExpr(f, pc, cur, dest)
		if err != nil {
			return 0, err
		}
		hasDest = true
	}
	b := f.CFG.Block(cur)
	b.Stmts = append(b.Stmts, PrimStmt{
		Kind: PSPrintf, Fmt: fmtVal, Args: args,
		HasDest: hasDest, Dest: destVal, DestAppend: appendMode,
	})
	return cur, nil
}

// lowerForEach lowers `for (v in arr) body` using the iterator-handle
// trio PEIterBegin/PEHasNext/PENext, dropping the iterator in a dedicated
// exit block once the loop is no longer live (PSIterDrop).
func lowerForEach(f *Function, pc *ProgramContext, cur NodeID, s *ast.ForEach) (NodeID, error) {
	cur, arrVal, err := lowerExpr(f, pc, cur, s.Arr)
	if err != nil {
		return 0, err
	}
	iterVal := f.emit(cur, PrimExpr{Kind: PEIterBegin, Iter: arrVal})
	loopVar := f.declareLocal(s.Var)

	header := f.CFG.AddBlock()
	bodyBlk := f.CFG.AddBlock()
	exitBlk := f.CFG.AddBlock()

	f.CFG.AddEdge(cur, header, Uncond())
	f.CFG.SealBlock(cur)

	hasNextVal := f.emit(header, PrimExpr{Kind: PEHasNext, Iter: iterVal})
	f.CFG.AddEdge(header, bodyBlk, CondOn(hasNextVal))
	f.CFG.AddEdge(header, exitBlk, Uncond())
	f.CFG.SealBlock(header)

	nextVal := f.emit(bodyBlk, PrimExpr{Kind: PENext, Iter: iterVal})
	f.emitAssign(bodyBlk, loopVar, ValExpr(nextVal))

	f.pushLoop(header, exitBlk)
	bEnd, err := lowerStmt(f, pc, bodyBlk, s.Body)
	f.popLoop()
	if err != nil {
		return 0, err
	}
	f.guardedElse(bEnd, header, Uncond())

	exit := f.CFG.Block(exitBlk)
	exit.Stmts = append(exit.Stmts, PrimStmt{Kind: PSIterDrop, Val: iterVal})
	return exitBlk, nil
}
