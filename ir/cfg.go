// Copyright 2018 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"

	"golang.org/x/xerrors"
)

// NodeID indexes a BasicBlock within a CFG. The entry block is always 0.
type NodeID int64

// Transition labels one out-edge of a BasicBlock. A zero-value Transition
// is unconditional (a plain fallthrough or jump); Cond set marks a
// conditional branch taken when Cond evaluates true, leaving the block's
// other out-edge as the implicit false/fallthrough case.
type Transition struct {
	Cond    PrimVal
	HasCond bool
}

// Uncond is the unconditional (fallthrough/jump) transition.
func Uncond() Transition { return Transition{} }

// CondOn is a conditional transition guarded by v.
func CondOn(v PrimVal) Transition { return Transition{Cond: v, HasCond: true} }

func (t Transition) String() string {
	if !t.HasCond {
		return ""
	}
	return "if " + t.Cond.String()
}

// OutEdge is one successor of a BasicBlock, in the order it was added.
// Order is significant: rename (ssaconv.go) and the printer both rely on
// a block's conditional branch appearing before its fallthrough, and on
// loop back-edges appearing in the order make_loop wired them.
type OutEdge struct {
	To   NodeID
	Trans Transition
}

// InEdge is one predecessor of a BasicBlock, recorded in the order the
// corresponding OutEdge was installed on the far side.
type InEdge struct {
	From  NodeID
	Trans Transition
}

// BasicBlock is a straight-line run of PrimStmt with no internal control
// flow. Sealed reports whether the block is closed: no further
// statements or out-edges may be added to it. A block is sealed once its
// out-edges are installed or a terminal statement has been lowered into
// it; the statement lowerer and the guarded-fallthrough check both
// consult it.
type BasicBlock struct {
	ID NodeID

	// Phis are the phi-defining statements the SSA builder places at
	// this block (insert_phis); logically they all execute
	// simultaneously at block entry, before Stmts. Kept separate from
	// Stmts rather than interleaved at index 0 so renaming and printing
	// never have to guess where the phi prefix ends.
	Phis   []PrimStmt
	Stmts  []PrimStmt
	Sealed bool

	Out []OutEdge
	In  []InEdge
}

// CFG is the control-flow graph of a single function: a directed
// multigraph of basic blocks connected by labeled transitions. Blocks are
// append-only and addressed by dense NodeID; edges are tracked twice, as
// ordered slices on the endpoint BasicBlocks (the representation every
// other pass in this package reads) and mirrored into an embedded gonum
// multigraph so the CFG can be handed to gonum-based tooling — currently
// just DOT export — without a bespoke adapter.
type CFG struct {
	blocks []*BasicBlock
	g      *multi.DirectedGraph
	lineID int64
}

// NewCFG returns an empty CFG.
func NewCFG() *CFG {
	return &CFG{g: multi.NewDirectedGraph()}
}

// AddBlock appends a new, unsealed, empty BasicBlock and returns its id.
func (c *CFG) AddBlock() NodeID {
	id := NodeID(len(c.blocks))
	c.blocks = append(c.blocks, &BasicBlock{ID: id})
	c.g.AddNode(blockNode(id))
	return id
}

// NumBlocks returns the number of blocks in c.
func (c *CFG) NumBlocks() int { return len(c.blocks) }

// Block returns the block with the given id. It panics if id is out of
// range, which indicates a bug in the lowerer: ids are only ever minted
// by AddBlock.
func (c *CFG) Block(id NodeID) *BasicBlock { return c.blocks[id] }

// Blocks returns every block in id order.
func (c *CFG) Blocks() []*BasicBlock { return c.blocks }

// SealBlock marks a block as closed to further statements and
// out-edges.
func (c *CFG) SealBlock(id NodeID) { c.blocks[id].Sealed = true }

// AddEdge installs a transition from -> to, appending it to from's Out
// and to's In in a single insertion step so the two orderings always
// agree with each other and with c's mirrored gonum graph.
func (c *CFG) AddEdge(from, to NodeID, t Transition) {
	fb, tb := c.blocks[from], c.blocks[to]
	fb.Out = append(fb.Out, OutEdge{To: to, Trans: t})
	tb.In = append(tb.In, InEdge{From: from, Trans: t})

	c.lineID++
	c.g.SetLine(&cfgLine{
		f:  blockNode(from),
		t:  blockNode(to),
		id: c.lineID,
		tr: t,
	})
}

// HasEdge reports whether any transition from -> to has been added.
func (c *CFG) HasEdge(from, to NodeID) bool {
	for _, e := range c.blocks[from].Out {
		if e.To == to {
			return true
		}
	}
	return false
}

// DOT renders c as a Graphviz "digraph" source, using the embedded gonum
// multigraph and its stock DOT encoder. Block bodies aren't rendered;
// node labels are just block ids, which is enough to eyeball structure
// when debugging a lowering.
func (c *CFG) DOT(name string) (string, error) {
	data, err := dot.Marshal(c.g, name, "", "  ")
	if err != nil {
		return "", xerrors.Errorf("ir: render cfg as dot: %w", err)
	}
	return string(data), nil
}

// blockNode adapts a NodeID to gonum's graph.Node.
type blockNode NodeID

func (n blockNode) ID() int64 { return int64(n) }

// cfgLine adapts a Transition to gonum's graph.Line, so that c.g (a
// multigraph) can carry parallel edges between the same two blocks —
// which happens whenever a block both branches to and falls through to
// the same successor.
type cfgLine struct {
	f, t graph.Node
	id   int64
	tr   Transition
}

func (l *cfgLine) From() graph.Node         { return l.f }
func (l *cfgLine) To() graph.Node           { return l.t }
func (l *cfgLine) ID() int64                { return l.id }
func (l *cfgLine) ReversedLine() graph.Line { return &cfgLine{f: l.t, t: l.f, id: l.id, tr: l.tr} }
