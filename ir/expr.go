// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"math"

	"github.com/go-awk/irssa/ast"
	"github.com/go-awk/irssa/builtins"
)

// lowerExpr lowers e into cur's block, returning the (possibly advanced,
// for short-circuiting/ternary forms) current block and the value e
// evaluates to.
func lowerExpr(f *Function, pc *ProgramContext, cur NodeID, e ast.Expr) (NodeID, PrimVal, error) {
	switch e := e.(type) {
	case *ast.IntLit:
		return cur, IntVal(e.Val), nil
	case *ast.FloatLit:
		return cur, FloatVal(e.Val), nil
	case *ast.StrLit:
		return cur, StrVal(e.Val), nil
	case *ast.PatLit:
		// A bare pattern used as a value evaluates to whether it
		// matches $0, i.e. an implicit IsMatch against the current
		// record.
		dollar0 := f.emit(cur, PrimExpr{
			Kind: PECallBuiltin, Builtin: builtins.Unop,
			Args: []PrimVal{IntVal(int64(ast.Column)), IntVal(0)},
		})
		v := f.emit(cur, binopExpr(ast.IsMatch, dollar0, StrVal(e.Pattern)))
		return cur, v, nil
	case *ast.Cond:
		return cur, VarVal(f.condIdent(e.N)), nil
	case *ast.Var:
		if bv, ok := builtins.ParseVariable(e.Name); ok {
			v := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: bv})
			return cur, v, nil
		}
		return cur, VarVal(f.getIdentifier(e.Name)), nil

	case *ast.UnopExpr:
		if e.Op == ast.Column {
			cur, idxVal, err := lowerExpr(f, pc, cur, e.X)
			if err != nil {
				return 0, PrimVal{}, err
			}
			v := f.emit(cur, PrimExpr{
				Kind: PECallBuiltin, Builtin: builtins.Unop,
				Args: []PrimVal{IntVal(int64(ast.Column)), idxVal},
			})
			return cur, v, nil
		}
		cur, xv, err := lowerExpr(f, pc, cur, e.X)
		if err != nil {
			return 0, PrimVal{}, err
		}
		v := f.emit(cur, PrimExpr{
			Kind: PECallBuiltin, Builtin: builtins.Unop,
			Args: []PrimVal{IntVal(int64(e.Op)), xv},
		})
		return cur, v, nil

	case *ast.BinopExpr:
		cur, xv, err := lowerExpr(f, pc, cur, e.X)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, yv, err := lowerExpr(f, pc, cur, e.Y)
		if err != nil {
			return 0, PrimVal{}, err
		}
		return cur, f.emit(cur, binopExpr(e.Op, xv, yv)), nil

	case *ast.ITE:
		return lowerITE(f, pc, cur, e.Cond, e.Then, e.Else)
	case *ast.And:
		return lowerITE(f, pc, cur, e.X, e.Y, &ast.IntLit{Val: 0})
	case *ast.Or:
		return lowerITE(f, pc, cur, e.X, &ast.IntLit{Val: 1}, e.Y)

	case *ast.Index:
		return lowerIndexRead(f, pc, cur, e)

	case *ast.Call:
		return lowerCall(f, pc, cur, e)

	case *ast.Assign:
		return doAssign(f, pc, cur, e.Lhs, func(cur NodeID) (NodeID, PrimVal, error) {
			return lowerExpr(f, pc, cur, e.Rhs)
		})

	case *ast.AssignOp:
		return lowerAssignOp(f, pc, cur, e)

	case *ast.IncDec:
		return lowerIncDec(f, pc, cur, e)

	case *ast.ReadStdin:
		// Reading stdin is split into the side-effecting read
		// (ReadLineStdinFused, discarded into the unused sink) and the
		// status check the expression actually evaluates to
		// (ReadErrStdin), matching cfg.rs's two-statement lowering of
		// a bare `getline` with no source or destination.
		f.emitAssign(cur, unusedIdent, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.ReadLineStdinFused})
		v := f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.ReadErrStdin})
		return cur, v, nil

	case *ast.Getline:
		return lowerGetline(f, pc, cur, e)
	}
	return 0, PrimVal{}, newError(f.Name, ErrInvalidAssignTarget, "unrecognized expression")
}

// binopExpr encodes a binary operator and its two operands as a
// CallBuiltin(Binop, ...): Args[0] carries the ast.Binop tag, Args[1:]
// the operands.
func binopExpr(op ast.Binop, x, y PrimVal) PrimExpr {
	return PrimExpr{Kind: PECallBuiltin, Builtin: builtins.Binop, Args: []PrimVal{IntVal(int64(op)), x, y}}
}

func lowerIndexRead(f *Function, pc *ProgramContext, cur NodeID, e *ast.Index) (NodeID, PrimVal, error) {
	mapIdent, err := mapIdentOf(f, e.Arr)
	if err != nil {
		return 0, PrimVal{}, err
	}
	cur, keyVal, err := lowerExpr(f, pc, cur, e.Idx)
	if err != nil {
		return 0, PrimVal{}, err
	}
	v := f.emit(cur, PrimExpr{Kind: PEIndex, Map: VarVal(mapIdent), Key: keyVal})
	return cur, v, nil
}

// mapIdentOf resolves the array-valued operand of an Index/AssignOp/
// IncDec to its backing Ident. Arrays are always named variables in this
// surface (never the result of a subexpression), matching every AWK
// grammar this front end targets.
func mapIdentOf(f *Function, e ast.Expr) (Ident, error) {
	v, ok := e.(*ast.Var)
	if !ok {
		return Ident{}, newError(f.Name, ErrInvalidAssignTarget, "array reference must be a name")
	}
	return f.getIdentifier(v.Name), nil
}

func lowerCall(f *Function, pc *ProgramContext, cur NodeID, e *ast.Call) (NodeID, PrimVal, error) {
	args := make([]PrimVal, len(e.Args))
	var err error
	for i, a := range e.Args {
		cur, args[i], err = lowerExpr(f, pc, cur, a)
		if err != nil {
			return 0, PrimVal{}, err
		}
	}

	if builtins.IsSprintf(e.Name) {
		if len(args) == 0 {
			return 0, PrimVal{}, newError(f.Name, ErrSprintfNoArgs, "sprintf requires a format argument")
		}
		v := f.emit(cur, PrimExpr{Kind: PESprintf, Fmt: args[0], Args: args[1:]})
		return cur, v, nil
	}

	bf, isBuiltin := builtins.ParseFunction(e.Name)
	if pre, ok := e.Builtin.(builtins.Function); ok {
		bf, isBuiltin = pre, true
	}
	if isBuiltin {
		switch bf {
		case builtins.Split:
			if len(e.Args) == 2 {
				ofsVal := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: builtins.OFS})
				args = append(args, ofsVal)
			}
		case builtins.Substr:
			if len(e.Args) == 2 {
				// Indexes are clamped downstream anyway, so a large
				// sentinel end works as "through end of string".
				args = append(args, IntVal(math.MaxInt64))
			}
		case builtins.Sub, builtins.GSub:
			return lowerSubGsub(f, pc, cur, bf, e.Args, args)
		}
		v := f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: bf, Args: args})
		return cur, v, nil
	}

	ix, arity, ok := pc.getCallee(e.Name)
	if !ok {
		return 0, PrimVal{}, newError(f.Name, ErrUnknownCallee, e.Name)
	}
	if arity != len(args) {
		return 0, PrimVal{}, newError(f.Name, ErrArityMismatch, e.Name)
	}
	v := f.emit(cur, PrimExpr{Kind: PECallUDF, UDF: ix, Args: args})
	return cur, v, nil
}

// lowerSubGsub lowers sub/gsub, whose third argument (the substitution
// destination) defaults to $0 when omitted and is otherwise an
// assignable expression rather than a plain value: cfg.rs's
// do_assign/do_assign_index machinery has to run on it after the call,
// not just lowerExpr.
//
// rawArgs is the unlowered AST argument list (needed for its
// addressability); args is rawArgs already lowered left to right by the
// caller's generic loop, which is also exactly "the current value of
// the destination" the two/three-argument forms need.
func lowerSubGsub(f *Function, pc *ProgramContext, cur NodeID, bf builtins.Function, rawArgs []ast.Expr, args []PrimVal) (NodeID, PrimVal, error) {
	var assignee ast.Expr
	switch len(rawArgs) {
	case 3:
		assignee = rawArgs[2]
	case 2:
		assignee = &ast.UnopExpr{Op: ast.Column, X: &ast.IntLit{Val: 0}}
		var dollar0 PrimVal
		var err error
		cur, dollar0, err = lowerExpr(f, pc, cur, assignee)
		if err != nil {
			return 0, PrimVal{}, err
		}
		args = append(args, dollar0)
	default:
		return 0, PrimVal{}, newError(f.Name, ErrArityMismatch, bf.String())
	}

	// Easy case: the destination is already a plain variable, so the
	// builtin can take it directly as its third operand; there is
	// nothing to read beforehand or write back afterward.
	if _, ok := assignee.(*ast.Var); ok {
		v := f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: bf, Args: args})
		return cur, v, nil
	}

	// assignee is `$k` or `m[k]`: stash the destination's current value
	// (already computed into args[2] above) in a fresh local, call the
	// builtin with that local standing in for the destination, bind the
	// call's own result (the substitution count) to a second fresh
	// local, then write the first local back to the real destination.
	// This mirrors cfg.rs's two-temporary dance exactly, including its
	// quirk that the written-back value is the destination's pre-call
	// value: at this IR layer nothing re-derives the post-substitution
	// string, which is left to the backend that actually implements
	// Sub/GSub.
	toSet := f.freshTemp()
	f.emitAssign(cur, toSet, ValExpr(args[2]))
	args[2] = VarVal(toSet)

	res := f.freshTemp()
	f.emitAssign(cur, res, PrimExpr{Kind: PECallBuiltin, Builtin: bf, Args: args})

	var err error
	switch assignee.(type) {
	case *ast.UnopExpr, *ast.Index:
		cur, _, err = doAssign(f, pc, cur, assignee, func(cur NodeID) (NodeID, PrimVal, error) {
			return cur, VarVal(toSet), nil
		})
	default:
		err = newError(f.Name, ErrInvalidAssignTarget, "substitution destination must be assignable")
	}
	if err != nil {
		return 0, PrimVal{}, err
	}
	return cur, VarVal(res), nil
}

// doAssign lowers lhs = mkRhs(), where lhs is a Var, Index, or $-column
// UnopExpr. mkRhs is invoked only after lhs's own addressing subexpression
// (an Index's key, a $-column's index) has been lowered, matching
// cfg.rs's do_assign_index/do_assign: the destination is addressed first,
// and only then is the right-hand side evaluated, so `a[g()] = h()` and
// `$g() = h()` run g() before h(). It returns the rhs value itself, since
// an assignment is an expression in AWK.
func doAssign(f *Function, pc *ProgramContext, cur NodeID, lhs ast.Expr, mkRhs func(NodeID) (NodeID, PrimVal, error)) (NodeID, PrimVal, error) {
	switch lhs := lhs.(type) {
	case *ast.Var:
		if bv, ok := builtins.ParseVariable(lhs.Name); ok {
			cur, rhsVal, err := mkRhs(cur)
			if err != nil {
				return 0, PrimVal{}, err
			}
			f.emitSetBuiltin(cur, bv, ValExpr(rhsVal))
			return cur, rhsVal, nil
		}
		id := f.getIdentifier(lhs.Name)
		cur, rhsVal, err := mkRhs(cur)
		if err != nil {
			return 0, PrimVal{}, err
		}
		f.emitAssign(cur, id, ValExpr(rhsVal))
		return cur, rhsVal, nil

	case *ast.Index:
		mapIdent, err := mapIdentOf(f, lhs.Arr)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, keyVal, err := lowerExpr(f, pc, cur, lhs.Idx)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, rhsVal, err := mkRhs(cur)
		if err != nil {
			return 0, PrimVal{}, err
		}
		b := f.CFG.Block(cur)
		b.Stmts = append(b.Stmts, PrimStmt{Kind: PSAsgnIndex, Ident: mapIdent, Key: keyVal, Rhs: ValExpr(rhsVal)})
		return cur, rhsVal, nil

	case *ast.UnopExpr:
		if lhs.Op != ast.Column {
			break
		}
		cur, idxVal, err := lowerExpr(f, pc, cur, lhs.X)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, rhsVal, err := mkRhs(cur)
		if err != nil {
			return 0, PrimVal{}, err
		}
		f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.Setcol, Args: []PrimVal{idxVal, rhsVal}})
		return cur, rhsVal, nil
	}
	return 0, PrimVal{}, newError(f.Name, ErrInvalidAssignTarget, "assignment target")
}

// lowerAssignOp lowers `lhs op= rhs`: the addressing subexpressions of
// lhs (an Index's key, a $-column's index) are lowered exactly once and
// reused for both the read of the current value and the write of the
// new one.
func lowerAssignOp(f *Function, pc *ProgramContext, cur NodeID, a *ast.AssignOp) (NodeID, PrimVal, error) {
	switch lhs := a.Lhs.(type) {
	case *ast.Var:
		if bv, ok := builtins.ParseVariable(lhs.Name); ok {
			cur, rhsVal, err := lowerExpr(f, pc, cur, a.Rhs)
			if err != nil {
				return 0, PrimVal{}, err
			}
			curVal := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: bv})
			newVal := f.emit(cur, binopExpr(a.Op, curVal, rhsVal))
			f.emitSetBuiltin(cur, bv, ValExpr(newVal))
			return cur, newVal, nil
		}
		id := f.getIdentifier(lhs.Name)
		cur, rhsVal, err := lowerExpr(f, pc, cur, a.Rhs)
		if err != nil {
			return 0, PrimVal{}, err
		}
		newVal := f.emit(cur, binopExpr(a.Op, VarVal(id), rhsVal))
		f.emitAssign(cur, id, ValExpr(newVal))
		return cur, newVal, nil

	case *ast.Index:
		mapIdent, err := mapIdentOf(f, lhs.Arr)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, keyVal, err := lowerExpr(f, pc, cur, lhs.Idx)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, rhsVal, err := lowerExpr(f, pc, cur, a.Rhs)
		if err != nil {
			return 0, PrimVal{}, err
		}
		curVal := f.emit(cur, PrimExpr{Kind: PEIndex, Map: VarVal(mapIdent), Key: keyVal})
		newVal := f.emit(cur, binopExpr(a.Op, curVal, rhsVal))
		b := f.CFG.Block(cur)
		b.Stmts = append(b.Stmts, PrimStmt{Kind: PSAsgnIndex, Ident: mapIdent, Key: keyVal, Rhs: ValExpr(newVal)})
		return cur, newVal, nil

	case *ast.UnopExpr:
		if lhs.Op != ast.Column {
			break
		}
		cur, idxVal, err := lowerExpr(f, pc, cur, lhs.X)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, rhsVal, err := lowerExpr(f, pc, cur, a.Rhs)
		if err != nil {
			return 0, PrimVal{}, err
		}
		curVal := f.emit(cur, PrimExpr{
			Kind: PECallBuiltin, Builtin: builtins.Unop,
			Args: []PrimVal{IntVal(int64(ast.Column)), idxVal},
		})
		newVal := f.emit(cur, binopExpr(a.Op, curVal, rhsVal))
		f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.Setcol, Args: []PrimVal{idxVal, newVal}})
		return cur, newVal, nil
	}
	return 0, PrimVal{}, newError(f.Name, ErrInvalidAssignTarget, "compound assignment target")
}

// lowerIncDec lowers x++/x--/++x/--x as `x = x +/- 1`, returning the
// pre- or post-update value depending on IsPost.
func lowerIncDec(f *Function, pc *ProgramContext, cur NodeID, e *ast.IncDec) (NodeID, PrimVal, error) {
	op := ast.Plus
	if !e.Inc {
		op = ast.Minus
	}
	delta := IntVal(1)

	switch lhs := e.X.(type) {
	case *ast.Var:
		if bv, ok := builtins.ParseVariable(lhs.Name); ok {
			oldVal := f.emit(cur, PrimExpr{Kind: PELoadBuiltin, LoadVar: bv})
			newVal := f.emit(cur, binopExpr(op, oldVal, delta))
			f.emitSetBuiltin(cur, bv, ValExpr(newVal))
			if e.IsPost {
				return cur, oldVal, nil
			}
			return cur, newVal, nil
		}
		id := f.getIdentifier(lhs.Name)
		oldVal := f.emit(cur, ValExpr(VarVal(id)))
		newVal := f.emit(cur, binopExpr(op, oldVal, delta))
		f.emitAssign(cur, id, ValExpr(newVal))
		if e.IsPost {
			return cur, oldVal, nil
		}
		return cur, newVal, nil

	case *ast.Index:
		mapIdent, err := mapIdentOf(f, lhs.Arr)
		if err != nil {
			return 0, PrimVal{}, err
		}
		cur, keyVal, err := lowerExpr(f, pc, cur, lhs.Idx)
		if err != nil {
			return 0, PrimVal{}, err
		}
		oldVal := f.emit(cur, PrimExpr{Kind: PEIndex, Map: VarVal(mapIdent), Key: keyVal})
		newVal := f.emit(cur, binopExpr(op, oldVal, delta))
		b := f.CFG.Block(cur)
		b.Stmts = append(b.Stmts, PrimStmt{Kind: PSAsgnIndex, Ident: mapIdent, Key: keyVal, Rhs: ValExpr(newVal)})
		if e.IsPost {
			return cur, oldVal, nil
		}
		return cur, newVal, nil

	case *ast.UnopExpr:
		if lhs.Op != ast.Column {
			break
		}
		cur, idxVal, err := lowerExpr(f, pc, cur, lhs.X)
		if err != nil {
			return 0, PrimVal{}, err
		}
		oldVal := f.emit(cur, PrimExpr{
			Kind: PECallBuiltin, Builtin: builtins.Unop,
			Args: []PrimVal{IntVal(int64(ast.Column)), idxVal},
		})
		newVal := f.emit(cur, binopExpr(op, oldVal, delta))
		f.emit(cur, PrimExpr{Kind: PECallBuiltin, Builtin: builtins.Setcol, Args: []PrimVal{idxVal, newVal}})
		if e.IsPost {
			return cur, oldVal, nil
		}
		return cur, newVal, nil
	}
	return 0, PrimVal{}, newError(f.Name, ErrInvalidIncTarget, "increment/decrement target")
}

// lowerGetline lowers `(from |)? getline (into)?`. The source expression
// (if any) and the destination's Ident (if any) are passed as the read
// builtin's operands, and the read's own result is discarded into the
// unused sink. The expression evaluates to the getline status (1 on
// success, 0 on end of input, -1 on error), read back through ReadErr
// on the source or, with no source, ReadErrStdin.
func lowerGetline(f *Function, pc *ProgramContext, cur NodeID, g *ast.Getline) (NodeID, PrimVal, error) {
	var args []PrimVal
	fn := builtins.ReadLineStdinFused

	if g.From != nil {
		var fromVal PrimVal
		var err error
		cur, fromVal, err = lowerExpr(f, pc, cur, g.From)
		if err != nil {
			return 0, PrimVal{}, err
		}
		args = append(args, fromVal)
		fn = builtins.Nextline
	}

	if g.Into != nil {
		v, ok := g.Into.(*ast.Var)
		if !ok {
			return 0, PrimVal{}, newError(f.Name, ErrInvalidAssignTarget, "getline destination")
		}
		id := f.getIdentifier(v.Name)
		args = append(args, VarVal(id))
		if g.From == nil {
			fn = builtins.NextlineStdin
		}
	}

	f.emitAssign(cur, unusedIdent, PrimExpr{Kind: PECallBuiltin, Builtin: fn, Args: args})
	errExpr := PrimExpr{Kind: PECallBuiltin, Builtin: builtins.ReadErrStdin}
	if g.From != nil {
		errExpr = PrimExpr{Kind: PECallBuiltin, Builtin: builtins.ReadErr, Args: args[:1]}
	}
	status := f.emit(cur, errExpr)
	return cur, status, nil
}
