// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// DomTree is the dominator tree of a CFG, rooted at the function's entry
// block. Idom/Children only cover blocks reachable from the entry;
// unreachable blocks are simply absent, which is how phi placement and
// renaming skip them without a separate pruning pass.
type DomTree struct {
	entry    NodeID
	idom     map[NodeID]NodeID
	children map[NodeID][]NodeID
	order    []NodeID // reachable blocks in DFS preorder, entry first
}

// IDom returns n's immediate dominator and true, or the zero NodeID and
// false for the entry block (which has none).
func (t *DomTree) IDom(n NodeID) (NodeID, bool) {
	p, ok := t.idom[n]
	return p, ok
}

// Children returns n's children in the dominator tree.
func (t *DomTree) Children(n NodeID) []NodeID { return t.children[n] }

// PreOrder returns every block reachable from the entry, in DFS
// preorder (entry first). Phi placement and renaming (ssaconv.go) do not
// use it: they iterate the CFG's blocks and walk the dominator tree.
func (t *DomTree) PreOrder() []NodeID { return t.order }

// Dominates reports whether a dominates b (reflexively: a dominates
// itself).
func (t *DomTree) Dominates(a, b NodeID) bool {
	for {
		if a == b {
			return true
		}
		p, ok := t.idom[b]
		if !ok {
			return false
		}
		b = p
	}
}

// buildDomTree computes the dominator tree of cfg rooted at entry using
// the simple Lengauer-Tarjan algorithm: a DFS numbering, a reverse-order
// semidominator pass (path-compressing eval/link over the DFS spanning
// tree) that collects each vertex in its semidominator's bucket and
// derives a tentative idom when the bucket is drained, and a final
// forward pass setting idom(w) to idom(idom(w)) wherever the tentative
// idom differs from sdom(w). It does not use the Semi-NCA ancestor walk.
// Blocks unreachable from entry are never visited and so never appear in
// the result.
func buildDomTree(cfg *CFG, entry NodeID) *DomTree {
	order, parentOf, dfsnum := dfsPreorder(cfg, entry)
	n := len(order)

	sdom := make([]int, n)
	label := make([]int, n)
	ancestor := make([]int, n)
	for i := range sdom {
		sdom[i] = i
		label[i] = i
		ancestor[i] = -1
	}

	var compress func(v int)
	compress = func(v int) {
		a := ancestor[v]
		if a != -1 && ancestor[a] != -1 {
			compress(a)
			if sdom[label[a]] < sdom[label[v]] {
				label[v] = label[a]
			}
			ancestor[v] = ancestor[a]
		}
	}
	eval := func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}

	preds := make([][]int, n)
	for i, v := range order {
		for _, e := range cfg.Block(v).In {
			if pn, ok := dfsnum[e.From]; ok {
				preds[i] = append(preds[i], pn)
			}
		}
	}

	idomNum := make([]int, n)
	bucket := make([][]int, n)

	for w := n - 1; w >= 1; w-- {
		for _, v := range preds[w] {
			var u int
			if v < w {
				u = v
			} else {
				u = eval(v)
			}
			if sdom[u] < sdom[w] {
				sdom[w] = sdom[u]
			}
		}
		bucket[sdom[w]] = append(bucket[sdom[w]], w)
		ancestor[w] = parentOf[w]

		pw := parentOf[w]
		for _, v := range bucket[pw] {
			u := eval(v)
			if sdom[u] < sdom[v] {
				idomNum[v] = u
			} else {
				idomNum[v] = pw
			}
		}
		bucket[pw] = nil
	}
	for w := 1; w < n; w++ {
		if idomNum[w] != sdom[w] {
			idomNum[w] = idomNum[idomNum[w]]
		}
	}

	t := &DomTree{
		entry:    entry,
		idom:     make(map[NodeID]NodeID, n-1),
		children: make(map[NodeID][]NodeID, n),
		order:    order,
	}
	for w := 1; w < n; w++ {
		child, parent := order[w], order[idomNum[w]]
		t.idom[child] = parent
		t.children[parent] = append(t.children[parent], child)
	}
	return t
}

// dfsPreorder walks cfg from entry, following each block's out-edges in
// their insertion order, and returns the visited blocks in preorder
// along with each one's DFS-tree parent (as an index into order; the
// entry's parent is -1) and its dfs-number lookup.
func dfsPreorder(cfg *CFG, entry NodeID) (order []NodeID, parent []int, dfsnum map[NodeID]int) {
	dfsnum = map[NodeID]int{}
	var rec func(v NodeID, p int)
	rec = func(v NodeID, p int) {
		if _, seen := dfsnum[v]; seen {
			return
		}
		dfsnum[v] = len(order)
		parent = append(parent, p)
		order = append(order, v)
		me := dfsnum[v]
		for _, e := range cfg.Block(v).Out {
			rec(e.To, me)
		}
	}
	rec(entry, -1)
	return order, parent, dfsnum
}

// domFrontier computes the dominance frontier of every block reachable
// from t's entry, using the Cooper/Harvey/Kennedy algorithm: it only
// depends on the dominator tree, not on how it was built, so it carries
// over unchanged from the iterative dominator algorithm this design is
// adapted from.
func domFrontier(cfg *CFG, t *DomTree) map[NodeID][]NodeID {
	df := make(map[NodeID][]NodeID, len(t.order))
	for _, b := range t.order {
		df[b] = nil
	}

	for _, b := range t.order {
		preds := cfg.Block(b).In
		if len(preds) < 2 {
			continue
		}
		// idomB is the zero NodeID when b is the entry (no idom); that's
		// fine here because the entry block can't have >=2 live
		// predecessors (nothing ever branches back into it), so this
		// loop body never actually runs for b == entry.
		idomB := t.idom[b]

		for _, e := range preds {
			runner := e.From
			if _, reachable := t.idom[runner]; !reachable && runner != t.entry {
				continue // runner is dead code, not part of the reachable CFG
			}
			for runner != idomB {
				if containsNode(df[runner], b) {
					break
				}
				df[runner] = append(df[runner], b)
				if runner == t.entry {
					break
				}
				runner = t.idom[runner]
			}
		}
	}
	return df
}

func containsNode(s []NodeID, n NodeID) bool {
	for _, x := range s {
		if x == n {
			return true
		}
	}
	return false
}
