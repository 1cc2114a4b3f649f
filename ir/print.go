// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"io"
	"strings"
)

// Fprint writes a debug rendering of f to w: for each block, a label
// line followed by one line per phi, per statement, and for the
// terminator (br for an unconditional
// out-edge, brif for a conditional one followed by its false target).
// It exists for tests and interactive debugging, not as a stable wire
// format.
func (f *Function) Fprint(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "func %s(", f.Name); err != nil {
		return err
	}
	for i, p := range f.Params {
		if i > 0 {
			if _, err := fmt.Fprint(w, ", "); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprint(w, p.base()); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprint(w, ") {\n"); err != nil {
		return err
	}

	for _, b := range f.CFG.Blocks() {
		if _, err := fmt.Fprintf(w, "b%d:\n", b.ID); err != nil {
			return err
		}
		for _, s := range b.Phis {
			if _, err := fmt.Fprintf(w, "\t%s\n", s); err != nil {
				return err
			}
		}
		for _, s := range b.Stmts {
			if _, err := fmt.Fprintf(w, "\t%s\n", s); err != nil {
				return err
			}
		}
		switch len(b.Out) {
		case 0:
			// exit block: no terminator.
		case 1:
			if _, err := fmt.Fprintf(w, "\tbr :%d\n", b.Out[0].To); err != nil {
				return err
			}
		default:
			if _, err := fmt.Fprintf(w, "\tbrif %s, :%d, :%d\n", b.Out[0].Trans.Cond, b.Out[0].To, b.Out[1].To); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprint(w, "}\n")
	return err
}

func (f *Function) String() string {
	var sb strings.Builder
	_ = f.Fprint(&sb)
	return sb.String()
}

// Fprint writes every function in pc, main last, to w. This is the
// whole-program counterpart of Function.Fprint: the stable-enough-for-
// tests debug rendering of a ProgramContext (spec.md §6), not a wire
// format.
func (pc *ProgramContext) Fprint(w io.Writer) error {
	for _, f := range pc.Funcs {
		if err := f.Fprint(w); err != nil {
			return err
		}
	}
	return nil
}

func (pc *ProgramContext) String() string {
	var sb strings.Builder
	_ = pc.Fprint(&sb)
	return sb.String()
}
