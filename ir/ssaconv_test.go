// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"testing"

	"github.com/go-awk/irssa/ast"
)

func findPhiBlock(f *Function) *BasicBlock {
	for _, b := range f.CFG.Blocks() {
		if len(b.Phis) > 0 {
			return b
		}
	}
	return nil
}

// TestSSADiamondPhi lowers:
//
//	function f(x) {
//	    if (1) x = 1; else x = 2
//	    return x
//	}
//
// and checks that the join block carries a two-argument phi for x, and
// that the return statement reads that phi's result. x is a parameter so
// that it is a local (a non-parameter name in a user function is a
// global and gets no phi).
func TestSSADiamondPhi(t *testing.T) {
	fn := &ast.FuncDecl{
		Name: "f",
		Args: []string{"x"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.If{
				Cond: &ast.IntLit{Val: 1},
				Then: &ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "x"}, Rhs: &ast.IntLit{Val: 1}}},
				Else: &ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "x"}, Rhs: &ast.IntLit{Val: 2}}},
			},
			&ast.Return{X: &ast.Var{Name: "x"}},
		}},
	}
	prog := &ast.Program{Funcs: []*ast.FuncDecl{fn}}

	pc, err := FromProgram(prog)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	f := pc.Funcs[0]
	blk := findPhiBlock(f)
	if blk == nil {
		t.Fatal("no phi was placed")
	}
	if len(blk.Phis) != 1 {
		t.Fatalf("got %d phis, want 1", len(blk.Phis))
	}
	phi := blk.Phis[0]
	if phi.Rhs.Kind != PEPhi {
		t.Fatalf("phi statement has Rhs.Kind = %v, want PEPhi", phi.Rhs.Kind)
	}
	if len(phi.Rhs.Phi) != 2 {
		t.Fatalf("got %d phi args, want 2", len(phi.Rhs.Phi))
	}

	subs := map[uint32]bool{}
	for _, a := range phi.Rhs.Phi {
		if a.Id.Low != phi.Ident.Low || a.Id.Global != phi.Ident.Global {
			t.Errorf("phi arg %+v has different variable identity than phi.Ident %+v", a.Id, phi.Ident)
		}
		subs[a.Id.Sub] = true
	}
	// The parameter is x.1 at entry; the dominator-tree walk visits the
	// then-block (x.2), then the join (phi x.3), then the else-block
	// (x.4).
	if !subs[2] || !subs[4] {
		t.Errorf("phi args %v, want subscripts {2, 4} present", phi.Rhs.Phi)
	}

	var ret *PrimStmt
	for i := range blk.Stmts {
		if blk.Stmts[i].Kind == PSReturn {
			ret = &blk.Stmts[i]
		}
	}
	if ret == nil {
		t.Fatal("join block has no return statement")
	}
	if ret.Val.Kind != PVVar || ret.Val.Var != phi.Ident {
		t.Errorf("return reads %v, want the phi result %v", ret.Val, phi.Ident)
	}
}

// TestSSALoopPhi lowers:
//
//	function g(i) {
//	    i = 0
//	    while (i < 10) i += 1
//	    return i
//	}
//
// and checks that the loop header carries a two-argument phi for i (one
// argument from the pre-loop block, one from the back edge). i is a
// parameter so that it is a local rather than a global.
func TestSSALoopPhi(t *testing.T) {
	fn := &ast.FuncDecl{
		Name: "g",
		Args: []string{"i"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "i"}, Rhs: &ast.IntLit{Val: 0}}},
			&ast.While{
				Cond: &ast.BinopExpr{Op: ast.Lt, X: &ast.Var{Name: "i"}, Y: &ast.IntLit{Val: 10}},
				Body: &ast.ExprStmt{X: &ast.AssignOp{Lhs: &ast.Var{Name: "i"}, Op: ast.Plus, Rhs: &ast.IntLit{Val: 1}}},
			},
			&ast.Return{X: &ast.Var{Name: "i"}},
		}},
	}
	prog := &ast.Program{Funcs: []*ast.FuncDecl{fn}}

	pc, err := FromProgram(prog)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	f := pc.Funcs[0]
	blk := findPhiBlock(f)
	if blk == nil {
		t.Fatal("no phi was placed")
	}
	if len(blk.Phis) != 1 {
		t.Fatalf("got %d phis, want 1", len(blk.Phis))
	}
	if len(blk.Phis[0].Rhs.Phi) != 2 {
		t.Fatalf("got %d phi args, want 2", len(blk.Phis[0].Rhs.Phi))
	}
}

// TestSSADefUniqueness checks that renaming never assigns the same
// non-global Ident to two different PSAsgnVar/phi definitions within a
// function. Globals that are not local globals, and the unused sink,
// keep Sub 0 at every definition and are skipped; x is a parameter so
// that its three assignments are renamed.
func TestSSADefUniqueness(t *testing.T) {
	fn := &ast.FuncDecl{
		Name: "h",
		Args: []string{"x"},
		Body: &ast.Block{Stmts: []ast.Stmt{
			&ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "x"}, Rhs: &ast.IntLit{Val: 1}}},
			&ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "x"}, Rhs: &ast.IntLit{Val: 2}}},
			&ast.ExprStmt{X: &ast.Assign{Lhs: &ast.Var{Name: "x"}, Rhs: &ast.IntLit{Val: 3}}},
			&ast.Return{X: &ast.Var{Name: "x"}},
		}},
	}
	prog := &ast.Program{Funcs: []*ast.FuncDecl{fn}}

	pc, err := FromProgram(prog)
	if err != nil {
		t.Fatalf("FromProgram: %v", err)
	}

	seen := map[Ident]bool{}
	for _, b := range pc.Funcs[0].CFG.Blocks() {
		for _, s := range b.Phis {
			if seen[s.Ident] {
				t.Errorf("duplicate phi definition of %v", s.Ident)
			}
			seen[s.Ident] = true
		}
		for _, s := range b.Stmts {
			if s.Kind != PSAsgnVar || s.Ident.Global {
				continue
			}
			if seen[s.Ident] {
				t.Errorf("duplicate definition of %v", s.Ident)
			}
			seen[s.Ident] = true
		}
	}
}
