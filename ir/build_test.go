// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"testing"

	"github.com/go-awk/irssa/ast"
)

// TestEmptyBody covers spec.md §8 S1: a program with no actions at all
// lowers main to just entry -> exit with a Return of the unused sink.
func TestEmptyBody(t *testing.T) {
	prog := &ast.Program{}
	pc, err := FromProgram(prog)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	main := pc.Main()
	if main.CFG.NumBlocks() != 2 {
		t.Fatalf("main has %d blocks, want 2 (entry, exit)", main.CFG.NumBlocks())
	}
	exit := main.CFG.Block(main.Exit)
	if len(exit.Out) != 0 {
		t.Errorf("exit has %d out-edges, want 0", len(exit.Out))
	}
	if len(exit.Stmts) == 0 || exit.Stmts[len(exit.Stmts)-1].Kind != PSReturn {
		t.Errorf("exit's last statement is not a Return: %v", exit.Stmts)
	}
	if !IsUnused(exit.Stmts[len(exit.Stmts)-1].Val.Var) {
		t.Errorf("exit returns %v, want the unused sink", exit.Stmts[len(exit.Stmts)-1].Val)
	}
}

// TestEdgeOrderConditionalFirst covers spec.md §4.4/§8 property 2: an
// if/else's conditional out-edge always iterates before its
// fallthrough/else out-edge.
func TestEdgeOrderConditionalFirst(t *testing.T) {
	fn := &ast.FuncDecl{Name: "f", Body: &ast.If{
		Cond: &ast.Var{Name: "x"},
		Then: &ast.ExprStmt{X: &ast.IntLit{Val: 1}},
		Else: &ast.ExprStmt{X: &ast.IntLit{Val: 2}},
	}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{fn}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	entry := pc.Funcs[0].CFG.Block(pc.Funcs[0].Entry)
	if len(entry.Out) != 2 {
		t.Fatalf("entry has %d out-edges, want 2", len(entry.Out))
	}
	if !entry.Out[0].Trans.HasCond {
		t.Errorf("entry.Out[0] = %+v, want the conditional branch", entry.Out[0])
	}
	if entry.Out[1].Trans.HasCond {
		t.Errorf("entry.Out[1] = %+v, want the unconditional fallthrough", entry.Out[1])
	}
}

// TestForLoopBackEdge covers spec.md §8 S3: a counted for-loop's header
// (located as the last block carrying a phi) has a back-edge
// predecessor that it dominates.
func TestForLoopBackEdge(t *testing.T) {
	fn := &ast.FuncDecl{Name: "f", Body: &ast.For{
		Init:   &ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "i"}, Rhs: &ast.IntLit{Val: 0}}},
		Cond:   &ast.BinopExpr{Op: ast.Lt, X: &ast.Var{Name: "i"}, Y: &ast.IntLit{Val: 3}},
		Update: &ast.ExprStmt{X: &ast.IncDec{X: &ast.Var{Name: "i"}, Inc: true, IsPost: true}},
		Body:   &ast.ExprStmt{X: &ast.Var{Name: "i"}},
	}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{fn}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	f := pc.Funcs[0]
	var header NodeID = -1
	for _, b := range f.CFG.Blocks() {
		for _, s := range b.Phis {
			_ = s
			header = b.ID
		}
	}
	if header == -1 {
		t.Fatal("no phi placed at the loop header")
	}
	// The header must have at least one predecessor reached via a
	// back-edge, i.e. a predecessor that is itself dominated by the
	// header (a classic natural loop).
	sawBackEdge := false
	for _, in := range f.CFG.Block(header).In {
		if f.Dom.Dominates(header, in.From) && in.From != header {
			sawBackEdge = true
		}
	}
	if !sawBackEdge {
		t.Errorf("loop header %d has no back-edge predecessor it dominates", header)
	}
}

// TestForEachIteratorLifecycle covers spec.md §8 S5: `for (k in a) body`
// lowers to code that contains each of IterBegin, HasNext, Next and
// IterDrop.
func TestForEachIteratorLifecycle(t *testing.T) {
	fn := &ast.FuncDecl{Name: "f", Body: &ast.ForEach{
		Var:  "k",
		Arr:  &ast.Var{Name: "a"},
		Body: &ast.ExprStmt{X: &ast.Var{Name: "k"}},
	}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{fn}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	f := pc.Funcs[0]
	var sawIterBegin, sawHasNext, sawNext, sawIterDrop bool
	for _, b := range f.CFG.Blocks() {
		for _, s := range b.Stmts {
			switch s.Rhs.Kind {
			case PEIterBegin:
				sawIterBegin = true
			case PEHasNext:
				sawHasNext = true
			case PENext:
				sawNext = true
			}
			if s.Kind == PSIterDrop {
				sawIterDrop = true
			}
		}
	}
	if !sawIterBegin || !sawHasNext || !sawNext || !sawIterDrop {
		t.Errorf("missing iterator lifecycle op: begin=%v hasnext=%v next=%v drop=%v",
			sawIterBegin, sawHasNext, sawNext, sawIterDrop)
	}
}

// TestBreakSealsAndJumpsToFooter covers spec.md §8 S5/property 8: break
// inside a ForEach seals its block with a null edge straight to the
// iterator-drop footer, bypassing the header.
func TestBreakSealsAndJumpsToFooter(t *testing.T) {
	fn := &ast.FuncDecl{Name: "f", Body: &ast.ForEach{
		Var: "k",
		Arr: &ast.Var{Name: "a"},
		Body: &ast.If{
			Cond: &ast.BinopExpr{Op: ast.Eq, X: &ast.Var{Name: "k"}, Y: &ast.StrLit{Val: "q"}},
			Then: &ast.Break{},
		},
	}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{fn}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	f := pc.Funcs[0]
	var footer *BasicBlock
	for _, b := range f.CFG.Blocks() {
		for _, s := range b.Stmts {
			if s.Kind == PSIterDrop {
				footer = b
			}
		}
	}
	if footer == nil {
		t.Fatal("no iterator-drop footer block found")
	}

	sawBreakEdge := false
	for _, in := range footer.In {
		// The header also reaches the footer unconditionally, but it has
		// two out-edges; the break block has only this one.
		from := f.CFG.Block(in.From)
		if from.Sealed && !in.Trans.HasCond && len(from.Out) == 1 {
			sawBreakEdge = true
		}
	}
	if !sawBreakEdge {
		t.Error("no sealed predecessor with an unconditional edge into the iterdrop footer")
	}
}

// TestUDFCallAndReturn covers spec.md §8 S4: a one-arg user function
// call lowers to CallUDF with the callee's function index, and the
// callee's exit block ends in a Return.
func TestUDFCallAndReturn(t *testing.T) {
	callee := &ast.FuncDecl{Name: "f", Args: []string{"x"}, Body: &ast.Return{
		X: &ast.BinopExpr{Op: ast.Plus, X: &ast.Var{Name: "x"}, Y: &ast.IntLit{Val: 1}},
	}}
	caller := &ast.FuncDecl{Name: "g", Body: &ast.ExprStmt{X: &ast.Call{
		Name: "f", Args: []ast.Expr{&ast.IntLit{Val: 2}},
	}}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{callee, caller}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	fIx, _, ok := pc.getCallee("f")
	if !ok {
		t.Fatal("f not registered as a callee")
	}

	g := pc.Funcs[1]
	var sawCall bool
	for _, b := range g.CFG.Blocks() {
		for _, s := range b.Stmts {
			if s.Rhs.Kind == PECallUDF {
				sawCall = true
				if s.Rhs.UDF != fIx {
					t.Errorf("CallUDF targets index %d, want %d", s.Rhs.UDF, fIx)
				}
			}
		}
	}
	if !sawCall {
		t.Fatal("no CallUDF statement emitted in g")
	}

	fFn := pc.Funcs[0]
	exit := fFn.CFG.Block(fFn.Exit)
	if len(exit.Stmts) == 0 || exit.Stmts[len(exit.Stmts)-1].Kind != PSReturn {
		t.Fatal("f's exit does not end in a Return")
	}
}

// TestPrintZeroArgsLoadsColumn0 covers spec.md §4.2's Print desugaring:
// a bare `print` (no args) loads $0 and ORS and calls Printf with them.
func TestPrintZeroArgsLoadsColumn0(t *testing.T) {
	fn := &ast.FuncDecl{Name: "f", Body: &ast.Print{}}
	pc, err := FromProgram(&ast.Program{Funcs: []*ast.FuncDecl{fn}})
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	entry := pc.Funcs[0].CFG.Block(pc.Funcs[0].Entry)
	var sawColumn0, sawPrintf bool
	for _, s := range entry.Stmts {
		if s.Rhs.Kind == PECallBuiltin && s.Rhs.Builtin == 0 /* Unop */ && len(s.Rhs.Args) == 2 {
			sawColumn0 = true
		}
		if s.Kind == PSPrintf {
			sawPrintf = true
			if len(s.Args) != 2 {
				t.Errorf("zero-arg print's Printf got %d args, want 2 ($0, ORS)", len(s.Args))
			}
		}
	}
	if !sawColumn0 {
		t.Error("no $0 (Unop Column) load found")
	}
	if !sawPrintf {
		t.Error("no Printf statement emitted")
	}
}
