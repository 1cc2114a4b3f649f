// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "golang.org/x/xerrors"

// ErrorKind classifies a lowering failure (spec.md §7). Callers that want
// to react programmatically (rather than just logging Error.Error())
// should switch on Kind rather than matching error strings.
type ErrorKind int

const (
	// ErrDuplicateFunc: two FuncDecls share a name.
	ErrDuplicateFunc ErrorKind = iota
	// ErrBuiltinRedefined: a FuncDecl's name shadows a builtin function.
	ErrBuiltinRedefined
	// ErrUnknownCallee: a Call names a function that was never declared
	// and is not a recognized builtin.
	ErrUnknownCallee
	// ErrArityMismatch: a Call supplies the wrong number of arguments
	// for a user-defined function, or sub/gsub is called with other
	// than two or three arguments.
	ErrArityMismatch
	// ErrBreakOutsideLoop: break/continue appears where no enclosing
	// loop context accepts it (see ErrNextOutsideToplevel for the
	// related next/nextfile restriction).
	ErrBreakOutsideLoop
	// ErrNextOutsideToplevel: next/nextfile appears in a function that
	// has no ToplevelHeader, i.e. anywhere but directly in main's
	// per-record loop.
	ErrNextOutsideToplevel
	// ErrInvalidAssignTarget: an Assign/AssignOp's Lhs, or a sub/gsub
	// destination, is not a Var, Index, or $-column expression.
	ErrInvalidAssignTarget
	// ErrInvalidIncTarget: an IncDec's operand is not a Var, Index, or
	// $-column expression.
	ErrInvalidIncTarget
	// ErrSprintfNoArgs: a sprintf call has no arguments at all, so
	// there is no format string to lower.
	ErrSprintfNoArgs
	// ErrSealedBlockAppend: lowering attempted to append a statement to
	// a block that a terminal statement (return, break, continue,
	// next, nextfile) already sealed. Indicates a bug in this package,
	// not a malformed input program.
	ErrSealedBlockAppend
)

func (k ErrorKind) String() string {
	switch k {
	case ErrDuplicateFunc:
		return "duplicate function"
	case ErrBuiltinRedefined:
		return "builtin redefined"
	case ErrUnknownCallee:
		return "unknown callee"
	case ErrArityMismatch:
		return "arity mismatch"
	case ErrBreakOutsideLoop:
		return "break/continue outside loop"
	case ErrNextOutsideToplevel:
		return "next/nextfile outside toplevel loop"
	case ErrInvalidAssignTarget:
		return "invalid assignment target"
	case ErrInvalidIncTarget:
		return "invalid increment/decrement target"
	case ErrSprintfNoArgs:
		return "sprintf called with no arguments"
	case ErrSealedBlockAppend:
		return "append to sealed block"
	}
	return "unknown error"
}

// Error is the concrete error type FromProgram returns for every
// lowering failure (CFG.DOT's export errors are plain wrapped errors,
// not *Error). Func/Detail are diagnostic context, not part of the
// identity of the error: callers should switch on Kind.
type Error struct {
	Kind   ErrorKind
	Func   string // enclosing function name ("main" for main), "" for declaration checks
	Detail string
}

func (e *Error) Error() string {
	if e.Func == "" {
		return xerrors.Errorf("ir: %s: %s", e.Kind, e.Detail).Error()
	}
	return xerrors.Errorf("ir: in %s: %s: %s", e.Func, e.Kind, e.Detail).Error()
}

func newError(fn string, kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Func: fn, Detail: detail}
}
