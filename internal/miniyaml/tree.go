package miniyaml

import (
	"fmt"
	"strings"
)

// NodeId is an opaque handle into a Tree's arena. The sentinel root is
// always id 0; handles never dangle for the lifetime of the tree.
type NodeId int

// SentinelId is the synthetic parentless root every tree starts with.
const SentinelId NodeId = 0

const noParent NodeId = -1

type treeEntry struct {
	node     Node
	parent   NodeId
	children []NodeId
}

// Tree is the indentation-derived structure over a file's nodes: a
// contiguous arena plus parent/child handle links. Every real node is
// reachable from the sentinel. Trees are immutable once built.
type Tree struct {
	file  FileId
	arena []treeEntry
}

func newTree(file FileId) *Tree {
	return &Tree{file: file, arena: []treeEntry{{parent: noParent}}}
}

// File returns the file this tree was built from.
func (t *Tree) File() FileId { return t.file }

// Len returns the arena size, the sentinel included.
func (t *Tree) Len() int { return len(t.arena) }

// Contains reports whether id is a live handle into this tree.
func (t *Tree) Contains(id NodeId) bool { return id >= 0 && int(id) < len(t.arena) }

// Node returns the line behind id. The sentinel yields the empty node.
func (t *Tree) Node(id NodeId) (Node, bool) {
	if !t.Contains(id) {
		return Node{}, false
	}
	return t.arena[id].node, true
}

// Parent returns id's parent; ok=false for the sentinel or a bad handle.
func (t *Tree) Parent(id NodeId) (NodeId, bool) {
	if !t.Contains(id) || t.arena[id].parent == noParent {
		return 0, false
	}
	return t.arena[id].parent, true
}

// Children returns id's children in source order. The slice is shared;
// callers must not mutate it.
func (t *Tree) Children(id NodeId) []NodeId {
	if !t.Contains(id) {
		return nil
	}
	return t.arena[id].children
}

// Ids returns every live handle, sentinel first, in insertion order.
func (t *Tree) Ids() []NodeId {
	ids := make([]NodeId, len(t.arena))
	for i := range ids {
		ids[i] = NodeId(i)
	}
	return ids
}

func (t *Tree) insert(n Node, parent NodeId) NodeId {
	id := NodeId(len(t.arena))
	t.arena = append(t.arena, treeEntry{node: n, parent: parent})
	t.arena[parent].children = append(t.arena[parent].children, id)
	return id
}

// indentation measurement

// indentKind distinguishes homogeneous indentation runs.
type indentKind int

const (
	indentNone indentKind = iota
	indentSpaces
	indentTabs
	indentMixed
)

const spacesPerStep = 4

// measureIndent classifies an indentation slice and converts it to a
// logical level: one step per tab, one step per four spaces. remainder
// is the leftover space count when the run is not a multiple of four.
func measureIndent(slice string) (kind indentKind, level, remainder int) {
	if slice == "" {
		return indentNone, 0, 0
	}
	tabs := strings.Count(slice, "\t")
	switch {
	case tabs == 0:
		n := len(slice)
		return indentSpaces, n / spacesPerStep, n % spacesPerStep
	case tabs == len(slice):
		return indentTabs, tabs, 0
	default:
		return indentMixed, 0, 0
	}
}

// stacked is one ancestor-chain entry: a placed node and its level.
type stacked struct {
	id    NodeId
	level int
}

// Arborist reconstructs parent/child nesting from the indentation deltas
// between consecutive nodes. The build is total: every diagnostic is
// non-fatal and every surviving node is placed somewhere in the tree, so
// one malformed line never hides the rest of the file.
type Arborist struct {
	file    FileId
	src     string
	tree    *Tree
	parents []stacked
	diags   []Diagnostic
}

// NewArborist creates a tree builder for file over its source text. The
// text is needed to re-slice indentation characters.
func NewArborist(file FileId, src string) *Arborist {
	return &Arborist{file: file, src: src, tree: newTree(file)}
}

// BuildTree builds the tree for nodes in one call, returning it together
// with the diagnostics raised while building.
func BuildTree(file FileId, nodes []Node, src string) (*Tree, []Diagnostic) {
	a := NewArborist(file, src)
	for _, n := range nodes {
		a.Place(n)
	}
	return a.Tree(), a.TakeDiagnostics()
}

// Tree returns the tree built so far.
func (a *Arborist) Tree() *Tree { return a.tree }

// TakeDiagnostics returns the accumulated diagnostics and clears the batch.
func (a *Arborist) TakeDiagnostics() []Diagnostic {
	d := a.diags
	a.diags = nil
	return d
}

func (a *Arborist) report(sev Severity, code, msg string, span ByteSpan) {
	a.diags = append(a.diags, Diagnostic{Severity: sev, Code: code, Message: msg, Primary: span})
}

func (a *Arborist) nodeSpan(n Node) ByteSpan {
	if sp, ok := n.Span(); ok {
		return sp
	}
	return ByteSpan{File: a.file}
}

// Place routes one node into the tree. Nodes must arrive in source order.
func (a *Arborist) Place(n Node) {
	switch {
	case n.IsWhitespaceOnly():
		// No structural information; keeping it would only complicate
		// the indentation comparison below.
		a.report(SeverityWarning, CodeWhitespaceLine, "line contains only whitespace", a.nodeSpan(n))
		return
	case n.IsEmpty():
		// Blank lines keep the current nesting context alive: they hang
		// off the sentinel without disturbing the ancestor stack.
		a.tree.insert(n, SentinelId)
		return
	case n.Indentation == nil:
		a.placeTopLevel(n)
	default:
		a.placeIndented(n)
	}
}

func (a *Arborist) placeTopLevel(n Node) {
	// A fresh top-level line starts a new tree; whatever chain was open
	// is finished.
	a.parents = a.parents[:0]
	id := a.tree.insert(n, SentinelId)
	if !n.IsCommentOnly() {
		a.parents = append(a.parents, stacked{id: id, level: 0})
	}
}

func (a *Arborist) placeIndented(n Node) {
	slice := n.Indentation.Slice(a.src)
	kind, level, rem := measureIndent(slice)
	span := n.Indentation.Span

	if kind == indentMixed {
		a.report(SeverityError, CodeMixedIndent, "indentation mixes tabs and spaces", span)
		a.tree.insert(n, SentinelId)
		return
	}
	if kind == indentSpaces && rem != 0 {
		a.report(SeverityError, CodeIndentNotMultiple,
			fmt.Sprintf("space indentation of %d characters is not a multiple of %d", len(slice), spacesPerStep), span)
		// Still processed; the level rounds down.
	}

	if len(a.parents) == 0 {
		a.report(SeverityError, CodeNoParent, "indented line has no parent to attach to", span)
		a.tree.insert(n, SentinelId)
		return
	}

	top := a.parents[len(a.parents)-1]
	switch delta := level - top.level; {
	case delta == 0:
		// Sibling: replace the top of the chain.
		a.parents = a.parents[:len(a.parents)-1]
		parent := SentinelId
		if len(a.parents) > 0 {
			parent = a.parents[len(a.parents)-1].id
		}
		id := a.tree.insert(n, parent)
		a.parents = append(a.parents, stacked{id: id, level: level})
	case delta > 0:
		// Child of the current top. Anything deeper than one step is
		// suspicious but non-fatal.
		if delta != 1 {
			a.report(SeverityError, CodeIndentTooDeep,
				fmt.Sprintf("line is indented %d steps beyond its parent; expected 1", delta), span)
		}
		id := a.tree.insert(n, top.id)
		a.parents = append(a.parents, stacked{id: id, level: level})
	default:
		a.placeDedented(n, level, span)
	}
}

// placeDedented handles LessIndented: find the nearest ancestor exactly
// one step shallower and attach under it. When no ancestor matches, the
// node is attached to the sentinel (with an error) rather than dropped,
// and it starts a fresh chain so its own children still have a home.
func (a *Arborist) placeDedented(n Node, level int, span ByteSpan) {
	for i := len(a.parents) - 1; i >= 0; i-- {
		if a.parents[i].level == level-1 {
			a.parents = a.parents[:i+1]
			id := a.tree.insert(n, a.parents[i].id)
			a.parents = append(a.parents, stacked{id: id, level: level})
			return
		}
		// A same-level ancestor makes the new node its sibling.
		if a.parents[i].level == level {
			a.parents = a.parents[:i]
			parent := SentinelId
			if len(a.parents) > 0 {
				parent = a.parents[len(a.parents)-1].id
			}
			id := a.tree.insert(n, parent)
			a.parents = append(a.parents, stacked{id: id, level: level})
			return
		}
	}
	a.report(SeverityError, CodeNoParent, "unable to determine parent due to indentation", span)
	a.parents = a.parents[:0]
	id := a.tree.insert(n, SentinelId)
	a.parents = append(a.parents, stacked{id: id, level: level})
}
