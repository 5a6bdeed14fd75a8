package querydb

import (
	"fmt"
	"strings"

	"github.com/oraide/oraml/internal/miniyaml"
)

// Range is a start/end position pair within one file.
type Range struct {
	Start miniyaml.Position
	End   miniyaml.Position
}

// Symbol is one document-symbol entry: a keyed node, its value as the
// detail, and its keyed children nested beneath it.
type Symbol struct {
	Name     string
	Detail   string
	Range    Range
	Children []Symbol
}

// Definition locates the defining node of a name: the file it lives in
// and the position range of its key.
type Definition struct {
	File  miniyaml.FileId
	Start miniyaml.Position
	End   miniyaml.Position
}

type hoverResult struct {
	text  string
	found bool
}

type defResult struct {
	def   Definition
	found bool
}

////////////////////////////////////////////////////////////////////////////////
// Hover
////////////////////////////////////////////////////////////////////////////////

func runHoverAt(c *qctx, k queryKey) (any, bool) {
	pos := k.arg.(miniyaml.Position)
	bv, ok := c.get(queryKey{name: qPositionToByteIndex, file: k.file, arg: pos})
	if !ok {
		return hoverResult{}, false
	}
	idx := bv.(miniyaml.ByteIndex)

	tokv, ok := c.get(queryKey{name: qTokenSpanningByteIndex, file: k.file, arg: idx})
	if !ok {
		return hoverResult{}, true
	}
	tok := tokv.(miniyaml.Token)
	text, ok := c.fileText(k.file)
	if !ok {
		return hoverResult{}, false
	}

	slice := tok.Slice(text)
	var b strings.Builder
	switch tok.Kind {
	case miniyaml.Whitespace, miniyaml.EndOfLine:
		return hoverResult{}, true
	case miniyaml.Comment:
		fmt.Fprintf(&b, "comment\n\n%s", strings.TrimSpace(strings.TrimPrefix(slice, "#")))
	case miniyaml.True, miniyaml.Yes:
		fmt.Fprintf(&b, "`%s` — boolean literal (truthy)", slice)
	case miniyaml.False, miniyaml.No:
		fmt.Fprintf(&b, "`%s` — boolean literal (falsy)", slice)
	case miniyaml.IntLiteral:
		fmt.Fprintf(&b, "`%s` — integer literal", slice)
	case miniyaml.FloatLiteral:
		fmt.Fprintf(&b, "`%s` — float literal", slice)
	case miniyaml.Caret:
		b.WriteString("`^` — inheritance reference")
	default:
		fmt.Fprintf(&b, "`%s`", slice)
	}

	// Enrich identifiers that form an inheritance reference.
	if tok.Kind == miniyaml.Identifier {
		if prev, ok := tokenBefore(c, k.file, tok); ok && prev.Kind == miniyaml.Caret {
			fmt.Fprintf(&b, " — inherits from `^%s`", slice)
		}
	}

	// Show where in the document the cursor is: the key path from the
	// top level down to the covering node.
	if nv, ok := c.get(queryKey{name: qNodeSpanningByteIndex, file: k.file, arg: idx}); ok {
		if tv, ok := c.get(queryKey{name: qFileTree, file: k.file}); ok {
			tree := tv.(treeOut).tree
			if path := keyPath(tree, nv.(miniyaml.NodeId), text); path != "" {
				fmt.Fprintf(&b, "\n\n%s", path)
			}
		}
	}
	return hoverResult{text: b.String(), found: true}, true
}

// keyPath renders "Ancestor → ... → Node" from the node's key chain.
func keyPath(tree *miniyaml.Tree, id miniyaml.NodeId, text string) string {
	var parts []string
	for id != miniyaml.SentinelId {
		n, ok := tree.Node(id)
		if !ok {
			break
		}
		if key := n.KeyText(text); key != "" {
			parts = append(parts, key)
		}
		parent, ok := tree.Parent(id)
		if !ok {
			break
		}
		id = parent
	}
	if len(parts) == 0 {
		return ""
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, " → ")
}

// tokenBefore finds the token immediately preceding tok in the stream.
func tokenBefore(c *qctx, file miniyaml.FileId, tok miniyaml.Token) (miniyaml.Token, bool) {
	val, ok := c.get(queryKey{name: qFileTokens, file: file})
	if !ok {
		return miniyaml.Token{}, false
	}
	toks := val.(lexOut).toks
	for i, t := range toks {
		if t == tok && i > 0 {
			return toks[i-1], true
		}
	}
	return miniyaml.Token{}, false
}

// tokenAfter finds the token immediately following tok in the stream.
func tokenAfter(c *qctx, file miniyaml.FileId, tok miniyaml.Token) (miniyaml.Token, bool) {
	val, ok := c.get(queryKey{name: qFileTokens, file: file})
	if !ok {
		return miniyaml.Token{}, false
	}
	toks := val.(lexOut).toks
	for i, t := range toks {
		if t == tok && i+1 < len(toks) {
			return toks[i+1], true
		}
	}
	return miniyaml.Token{}, false
}

////////////////////////////////////////////////////////////////////////////////
// Go-to-definition
////////////////////////////////////////////////////////////////////////////////

func runDefinitionAt(c *qctx, k queryKey) (any, bool) {
	pos := k.arg.(miniyaml.Position)
	bv, ok := c.get(queryKey{name: qPositionToByteIndex, file: k.file, arg: pos})
	if !ok {
		return defResult{}, false
	}
	idx := bv.(miniyaml.ByteIndex)

	tokv, ok := c.get(queryKey{name: qTokenSpanningByteIndex, file: k.file, arg: idx})
	if !ok {
		return defResult{}, true
	}
	tok := tokv.(miniyaml.Token)
	text, ok := c.fileText(k.file)
	if !ok {
		return defResult{}, false
	}

	// Resolve the name under the cursor. `^Parent` references resolve
	// to the top-level `^Parent` definition; bare identifiers resolve
	// to a top-level node with the same key.
	var target string
	switch tok.Kind {
	case miniyaml.Caret:
		if next, ok := tokenAfter(c, k.file, tok); ok && next.Kind == miniyaml.Identifier {
			target = "^" + next.Slice(text)
		}
	case miniyaml.Identifier:
		name := tok.Slice(text)
		if prev, ok := tokenBefore(c, k.file, tok); ok && prev.Kind == miniyaml.Caret {
			target = "^" + name
		} else {
			target = name
		}
	}
	if target == "" {
		return defResult{}, true
	}

	// Same file first, then every other tracked file.
	if def, ok := findDefinition(c, k.file, target); ok {
		return defResult{def: def, found: true}, true
	}
	if all, ok := c.readInput(queryKey{name: inAllFileIds}); ok {
		for _, fid := range all.([]miniyaml.FileId) {
			if fid == k.file {
				continue
			}
			if def, ok := findDefinition(c, fid, target); ok {
				return defResult{def: def, found: true}, true
			}
		}
	}
	return defResult{}, true
}

// findDefinition looks up a top-level key in one file and converts its
// key span to positions.
func findDefinition(c *qctx, file miniyaml.FileId, key string) (Definition, bool) {
	nv, ok := c.get(queryKey{name: qTopLevelNodeByKey, file: file, arg: key})
	if !ok {
		return Definition{}, false
	}
	tv, ok := c.get(queryKey{name: qFileTree, file: file})
	if !ok {
		return Definition{}, false
	}
	tree := tv.(treeOut).tree
	n, ok := tree.Node(nv.(miniyaml.NodeId))
	if !ok {
		return Definition{}, false
	}
	span, ok := n.KeySpan()
	if !ok {
		return Definition{}, false
	}
	offs, text, ok := c.lineOffsets(file)
	if !ok {
		return Definition{}, false
	}
	return Definition{
		File:  file,
		Start: positionOf(offs, text, span.Start),
		End:   positionOf(offs, text, span.End),
	}, true
}

////////////////////////////////////////////////////////////////////////////////
// Document symbols
////////////////////////////////////////////////////////////////////////////////

func runSymbolsIn(c *qctx, k queryKey) (any, bool) {
	tv, ok := c.get(queryKey{name: qFileTree, file: k.file})
	if !ok {
		return []Symbol(nil), false
	}
	offs, text, ok := c.lineOffsets(k.file)
	if !ok {
		return []Symbol(nil), false
	}
	tree := tv.(treeOut).tree
	return symbolsUnder(tree, miniyaml.SentinelId, text, offs), true
}

func symbolsUnder(tree *miniyaml.Tree, id miniyaml.NodeId, text string, offs []miniyaml.ByteIndex) []Symbol {
	var out []Symbol
	for _, child := range tree.Children(id) {
		n, _ := tree.Node(child)
		key := n.KeyText(text)
		if key == "" {
			continue
		}
		span, _ := n.Span()
		out = append(out, Symbol{
			Name:   key,
			Detail: n.ValueText(text),
			Range: Range{
				Start: positionOf(offs, text, span.Start),
				End:   positionOf(offs, text, span.End),
			},
			Children: symbolsUnder(tree, child, text, offs),
		})
	}
	return out
}

////////////////////////////////////////////////////////////////////////////////
// Accessors
////////////////////////////////////////////////////////////////////////////////

// HoverAt returns hover text for the position, or ok=false when there
// is nothing to show there (or the file is not tracked).
func (v *View) HoverAt(id miniyaml.FileId, pos miniyaml.Position) (string, bool) {
	cell := v.fresh(queryKey{name: qHoverAt, file: id, arg: pos})
	if !cell.ok {
		return "", false
	}
	res := cell.value.(hoverResult)
	if !res.found || res.text == "" {
		return "", false
	}
	return res.text, true
}

// DefinitionAt resolves the definition of the name under the cursor.
func (v *View) DefinitionAt(id miniyaml.FileId, pos miniyaml.Position) (Definition, bool) {
	cell := v.fresh(queryKey{name: qDefinitionAt, file: id, arg: pos})
	if !cell.ok {
		return Definition{}, false
	}
	res := cell.value.(defResult)
	return res.def, res.found
}

// SymbolsIn returns the document-symbol outline for id.
func (v *View) SymbolsIn(id miniyaml.FileId) ([]Symbol, bool) {
	cell := v.fresh(queryKey{name: qSymbolsIn, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.([]Symbol), true
}

func (db *Database) HoverAt(id miniyaml.FileId, pos miniyaml.Position) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.HoverAt(id, pos)
}

func (db *Database) DefinitionAt(id miniyaml.FileId, pos miniyaml.Position) (Definition, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.DefinitionAt(id, pos)
}

func (db *Database) SymbolsIn(id miniyaml.FileId) ([]Symbol, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.SymbolsIn(id)
}
