// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ir lowers a parsed ast.Program into a per-function control-flow
// graph in SSA form: one ProgramContext per program, one Function per
// user-defined function plus a synthetic main. See SPEC_FULL.md for the
// full design; this file holds the primitive value/expression/statement
// model (spec.md §3).
package ir

import (
	"fmt"

	"github.com/go-awk/irssa/builtins"
)

// Ident names a single SSA value. Low is a dense integer minted once per
// source name (or synthetic temporary); Sub is the SSA subscript (0 until
// renaming runs); Global distinguishes main-scope names from function
// locals. Low == 0 is reserved: it is the "unused sink" that absorbs the
// result of side-effecting expressions whose value nothing wants.
type Ident struct {
	Low    uint32
	Sub    uint32
	Global bool
}

func (id Ident) String() string {
	scope := "l"
	if id.Global {
		scope = "g"
	}
	return fmt.Sprintf("%s%d.%d", scope, id.Low, id.Sub)
}

// unusedIdent is the reserved sink for discarded values.
var unusedIdent = Ident{Low: 0, Sub: 0, Global: true}

// IsUnused reports whether id is the unused sink.
func IsUnused(id Ident) bool { return id.Low == 0 }

// base returns id with its SSA subscript reset to 0; phi placement and
// the debug printer use it to name a variable independent of renaming.
func (id Ident) base() Ident { return Ident{Low: id.Low, Global: id.Global} }

// PrimValKind discriminates the variants of PrimVal, following the
// tagged-struct style of obj/internal/ssa.Value's Op field rather than an
// interface-per-variant encoding: every PrimVal is a leaf, so one small
// struct with an operand-typed field beats the allocation and type-switch
// overhead of four distinct concrete types.
type PrimValKind uint8

const (
	PVVar PrimValKind = iota
	PVInt
	PVFloat
	PVStr
)

// PrimVal is a leaf operand: a variable reference or a literal.
type PrimVal struct {
	Kind  PrimValKind
	Var   Ident
	Int   int64
	Float float64
	Str   string
}

func VarVal(id Ident) PrimVal       { return PrimVal{Kind: PVVar, Var: id} }
func IntVal(v int64) PrimVal        { return PrimVal{Kind: PVInt, Int: v} }
func FloatVal(v float64) PrimVal    { return PrimVal{Kind: PVFloat, Float: v} }
func StrVal(v string) PrimVal       { return PrimVal{Kind: PVStr, Str: v} }
func unusedVal() PrimVal            { return VarVal(unusedIdent) }

func (v PrimVal) String() string {
	switch v.Kind {
	case PVVar:
		return v.Var.String()
	case PVInt:
		return fmt.Sprintf("%d", v.Int)
	case PVFloat:
		return fmt.Sprintf("%g", v.Float)
	case PVStr:
		return fmt.Sprintf("%q", v.Str)
	}
	return "?"
}

// replaceIdent rewrites v's Ident (if it has one) through f. Used only by
// the rename pass (ssaconv.go); it never touches Phi operands, which are
// patched separately when the defining block's successors are visited.
func (v *PrimVal) replaceIdent(f func(Ident) Ident) {
	if v.Kind == PVVar {
		v.Var = f(v.Var)
	}
}

// PhiArg is one (predecessor block, value) pair of a Phi expression.
type PhiArg struct {
	Pred NodeID
	Id   Ident
}

// PrimExprKind discriminates the variants of PrimExpr.
type PrimExprKind uint8

const (
	PEVal PrimExprKind = iota
	PEPhi
	PECallBuiltin
	PESprintf
	PECallUDF
	PEIndex
	PEIterBegin
	PEHasNext
	PENext
	PELoadBuiltin
)

// PrimExpr is a right-hand side: anything that can appear as the value
// computed by an AsgnVar/AsgnIndex/SetBuiltin statement.
type PrimExpr struct {
	Kind PrimExprKind

	Val PrimVal // PEVal

	Phi []PhiArg // PEPhi

	Builtin builtins.Function // PECallBuiltin
	Args    []PrimVal         // PECallBuiltin, PESprintf (as extra args), PECallUDF

	Fmt PrimVal // PESprintf

	UDF FuncIx // PECallUDF: index into ProgramContext.Funcs

	Map PrimVal // PEIndex
	Key PrimVal // PEIndex

	Iter PrimVal // PEIterBegin, PEHasNext, PENext (operand)

	LoadVar builtins.Variable // PELoadBuiltin
}

// FuncIx is a function index, i.e. an index into ProgramContext.Funcs.
type FuncIx = uint32

func ValExpr(v PrimVal) PrimExpr { return PrimExpr{Kind: PEVal, Val: v} }

func (e PrimExpr) String() string {
	switch e.Kind {
	case PEVal:
		return e.Val.String()
	case PEPhi:
		s := "phi("
		for i, a := range e.Phi {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%d:%s", a.Pred, a.Id)
		}
		return s + ")"
	case PECallBuiltin:
		return fmt.Sprintf("%s(%v)", e.Builtin, e.Args)
	case PESprintf:
		return fmt.Sprintf("sprintf(%s, %v)", e.Fmt, e.Args)
	case PECallUDF:
		return fmt.Sprintf("call[%d](%v)", e.UDF, e.Args)
	case PEIndex:
		return fmt.Sprintf("%s[%s]", e.Map, e.Key)
	case PEIterBegin:
		return fmt.Sprintf("iterbegin(%s)", e.Iter)
	case PEHasNext:
		return fmt.Sprintf("hasnext(%s)", e.Iter)
	case PENext:
		return fmt.Sprintf("next(%s)", e.Iter)
	case PELoadBuiltin:
		return fmt.Sprintf("load(%s)", e.LoadVar)
	}
	return "?"
}

// replaceIdents rewrites every operand Ident through f, except that Phi's
// operands are left untouched: phi inputs are tied to predecessor edges
// and are only ever patched by the edge walk in the rename pass, never by
// ordinary use-replacement (spec.md §4.7, §9).
func (e *PrimExpr) replaceIdents(f func(Ident) Ident) {
	switch e.Kind {
	case PEVal:
		e.Val.replaceIdent(f)
	case PEPhi:
		// intentionally untouched
	case PECallBuiltin, PECallUDF:
		for i := range e.Args {
			e.Args[i].replaceIdent(f)
		}
	case PESprintf:
		e.Fmt.replaceIdent(f)
		for i := range e.Args {
			e.Args[i].replaceIdent(f)
		}
	case PEIndex:
		e.Map.replaceIdent(f)
		e.Key.replaceIdent(f)
	case PEIterBegin, PEHasNext, PENext:
		e.Iter.replaceIdent(f)
	case PELoadBuiltin:
		// no operand
	}
}

// PrimStmtKind discriminates the variants of PrimStmt.
type PrimStmtKind uint8

const (
	PSAsgnVar PrimStmtKind = iota
	PSAsgnIndex
	PSSetBuiltin
	PSReturn
	PSIterDrop
	PSPrintf
)

// PrimStmt is a single primitive statement within a BasicBlock.
type PrimStmt struct {
	Kind PrimStmtKind

	// PSAsgnVar, PSAsgnIndex (map ident)
	Ident Ident
	Rhs   PrimExpr

	// PSAsgnIndex
	Key PrimVal

	// PSSetBuiltin
	Var builtins.Variable

	// PSReturn, PSIterDrop
	Val PrimVal

	// PSPrintf
	Fmt        PrimVal
	Args       []PrimVal
	HasDest    bool
	Dest       PrimVal
	DestAppend bool
}

func (s PrimStmt) String() string {
	switch s.Kind {
	case PSAsgnVar:
		return fmt.Sprintf("%s = %s", s.Ident, s.Rhs)
	case PSAsgnIndex:
		return fmt.Sprintf("%s[%s] = %s", s.Ident, s.Key, s.Rhs)
	case PSSetBuiltin:
		return fmt.Sprintf("%s = %s", s.Var, s.Rhs)
	case PSReturn:
		return fmt.Sprintf("return %s", s.Val)
	case PSIterDrop:
		return fmt.Sprintf("iterdrop(%s)", s.Val)
	case PSPrintf:
		if s.HasDest {
			return fmt.Sprintf("printf %s, %v > %s", s.Fmt, s.Args, s.Dest)
		}
		return fmt.Sprintf("printf %s, %v", s.Fmt, s.Args)
	}
	return "?"
}

// replace rewrites every use Ident through f. It never touches the LHS
// of AsgnVar or AsgnIndex's map name: renaming gives the former a fresh
// subscript and resolves the latter to its current definition itself.
func (s *PrimStmt) replace(f func(Ident) Ident) {
	switch s.Kind {
	case PSAsgnVar:
		s.Rhs.replaceIdents(f)
	case PSAsgnIndex:
		s.Key.replaceIdent(f)
		s.Rhs.replaceIdents(f)
	case PSSetBuiltin:
		s.Rhs.replaceIdents(f)
	case PSReturn, PSIterDrop:
		s.Val.replaceIdent(f)
	case PSPrintf:
		s.Fmt.replaceIdent(f)
		for i := range s.Args {
			s.Args[i].replaceIdent(f)
		}
		if s.HasDest {
			s.Dest.replaceIdent(f)
		}
	}
}
