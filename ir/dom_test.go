// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"reflect"
	"testing"
)

// diamondCFG builds:
//
//	0 -br-> 1 -> 3
//	 \-> 2 ----/
//
// a classic if/else join, with block 0 branching on a dummy condition.
func diamondCFG() *CFG {
	c := NewCFG()
	for i := 0; i < 4; i++ {
		c.AddBlock()
	}
	c.AddEdge(0, 1, CondOn(IntVal(1)))
	c.AddEdge(0, 2, Uncond())
	c.AddEdge(1, 3, Uncond())
	c.AddEdge(2, 3, Uncond())
	return c
}

// loopCFG builds a single natural loop:
//
//	0 -> 1 <-br-> 2 -back-> 1
//	      \-> 3 (exit)
func loopCFG() *CFG {
	c := NewCFG()
	for i := 0; i < 4; i++ {
		c.AddBlock()
	}
	c.AddEdge(0, 1, Uncond())
	c.AddEdge(1, 2, CondOn(IntVal(1)))
	c.AddEdge(1, 3, Uncond())
	c.AddEdge(2, 1, Uncond())
	return c
}

func TestBuildDomTreeDiamond(t *testing.T) {
	cfg := diamondCFG()
	dt := buildDomTree(cfg, 0)

	want := map[NodeID]NodeID{1: 0, 2: 0, 3: 0}
	if !reflect.DeepEqual(dt.idom, want) {
		t.Errorf("idom = %v, want %v", dt.idom, want)
	}
}

func TestDomFrontierDiamond(t *testing.T) {
	cfg := diamondCFG()
	dt := buildDomTree(cfg, 0)
	df := domFrontier(cfg, dt)

	want := map[NodeID][]NodeID{0: nil, 1: {3}, 2: {3}, 3: nil}
	for b, want := range want {
		got := df[b]
		if len(got) != len(want) {
			t.Fatalf("df[%d] = %v, want %v", b, got, want)
		}
		for _, w := range want {
			if !containsNode(got, w) {
				t.Errorf("df[%d] = %v, want to contain %d", b, got, w)
			}
		}
	}
}

func TestBuildDomTreeLoop(t *testing.T) {
	cfg := loopCFG()
	dt := buildDomTree(cfg, 0)

	want := map[NodeID]NodeID{1: 0, 2: 1, 3: 1}
	if !reflect.DeepEqual(dt.idom, want) {
		t.Errorf("idom = %v, want %v", dt.idom, want)
	}
}

func TestDomFrontierLoop(t *testing.T) {
	cfg := loopCFG()
	dt := buildDomTree(cfg, 0)
	df := domFrontier(cfg, dt)

	// The loop header is its own dominance frontier entry (reached via
	// the back edge from the body, which it doesn't dominate a path
	// around), and so is the body block that closes the loop.
	if !containsNode(df[1], 1) {
		t.Errorf("df[1] = %v, want to contain the header itself", df[1])
	}
	if !containsNode(df[2], 1) {
		t.Errorf("df[2] = %v, want to contain the header", df[2])
	}
	if len(df[0]) != 0 {
		t.Errorf("df[0] = %v, want empty", df[0])
	}
}

func TestDomTreeDominates(t *testing.T) {
	cfg := loopCFG()
	dt := buildDomTree(cfg, 0)

	cases := []struct {
		a, b NodeID
		want bool
	}{
		{0, 0, true},
		{0, 3, true},
		{1, 3, true},
		{2, 1, false}, // 2 is inside the loop body, doesn't dominate the header
		{3, 1, false},
	}
	for _, c := range cases {
		if got := dt.Dominates(c.a, c.b); got != c.want {
			t.Errorf("Dominates(%d, %d) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}
