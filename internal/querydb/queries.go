package querydb

import (
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/oraide/oraml/internal/miniyaml"
)

// derived query names
const (
	qFileTokens             = "file_tokens"
	qFileNodes              = "file_nodes"
	qFileTree               = "file_tree"
	qFileDiagnostics        = "file_diagnostics"
	qLineStartOffsets       = "line_start_offsets"
	qPositionToByteIndex    = "position_to_byte_index"
	qByteIndexToPosition    = "byte_index_to_position"
	qTokenSpanningByteIndex = "token_spanning_byte_index"
	qNodeSpanningByteIndex  = "node_spanning_byte_index"
	qTopLevelNodeByKey      = "top_level_node_by_key"
	qFileIdByName           = "file_id_by_name"
	qHoverAt                = "hover_at"
	qDefinitionAt           = "definition_at"
	qSymbolsIn              = "symbols_in"
)

type queryFn func(*qctx, queryKey) (any, bool)

// queryFns is populated in init: the run functions evaluate further
// queries through qctx, so a composite literal here would form an
// initialization cycle.
var queryFns map[string]queryFn

func init() {
	queryFns = map[string]queryFn{
		qFileTokens:             runFileTokens,
		qFileNodes:              runFileNodes,
		qFileTree:               runFileTree,
		qFileDiagnostics:        runFileDiagnostics,
		qLineStartOffsets:       runLineStartOffsets,
		qPositionToByteIndex:    runPositionToByteIndex,
		qByteIndexToPosition:    runByteIndexToPosition,
		qTokenSpanningByteIndex: runTokenSpanningByteIndex,
		qNodeSpanningByteIndex:  runNodeSpanningByteIndex,
		qTopLevelNodeByKey:      runTopLevelNodeByKey,
		qFileIdByName:           runFileIdByName,
		qHoverAt:                runHoverAt,
		qDefinitionAt:           runDefinitionAt,
		qSymbolsIn:              runSymbolsIn,
	}
}

// stage results carry the diagnostics drained from each pipeline stage
// so re-reading them never re-runs the stage.

type lexOut struct {
	toks  []miniyaml.Token
	diags []miniyaml.Diagnostic
}

type nodeOut struct {
	nodes []miniyaml.Node
	diags []miniyaml.Diagnostic
}

type treeOut struct {
	tree  *miniyaml.Tree
	diags []miniyaml.Diagnostic
}

func valuesEqual(a, b any) bool { return reflect.DeepEqual(a, b) }

////////////////////////////////////////////////////////////////////////////////
// Pipeline stage queries
////////////////////////////////////////////////////////////////////////////////

func (c *qctx) fileText(id miniyaml.FileId) (string, bool) {
	val, ok := c.readInput(queryKey{name: inFileText, file: id})
	if !ok {
		return "", false
	}
	return val.(string), true
}

func runFileTokens(c *qctx, k queryKey) (any, bool) {
	text, ok := c.fileText(k.file)
	if !ok {
		return lexOut{}, false
	}
	toks, diags := miniyaml.Tokenize(k.file, text)
	return lexOut{toks: toks, diags: diags}, true
}

func runFileNodes(c *qctx, k queryKey) (any, bool) {
	val, ok := c.get(queryKey{name: qFileTokens, file: k.file})
	if !ok {
		return nodeOut{}, false
	}
	nodes, diags := miniyaml.Nodeize(k.file, val.(lexOut).toks)
	return nodeOut{nodes: nodes, diags: diags}, true
}

func runFileTree(c *qctx, k queryKey) (any, bool) {
	val, ok := c.get(queryKey{name: qFileNodes, file: k.file})
	if !ok {
		return treeOut{}, false
	}
	// The text is needed to re-slice indentation characters.
	text, ok := c.fileText(k.file)
	if !ok {
		return treeOut{}, false
	}
	tree, diags := miniyaml.BuildTree(k.file, val.(nodeOut).nodes, text)
	return treeOut{tree: tree, diags: diags}, true
}

func runFileDiagnostics(c *qctx, k queryKey) (any, bool) {
	lv, ok := c.get(queryKey{name: qFileTokens, file: k.file})
	if !ok {
		return []miniyaml.Diagnostic(nil), false
	}
	nv, ok := c.get(queryKey{name: qFileNodes, file: k.file})
	if !ok {
		return []miniyaml.Diagnostic(nil), false
	}
	tv, ok := c.get(queryKey{name: qFileTree, file: k.file})
	if !ok {
		return []miniyaml.Diagnostic(nil), false
	}
	var out []miniyaml.Diagnostic
	out = append(out, lv.(lexOut).diags...)
	out = append(out, nv.(nodeOut).diags...)
	out = append(out, tv.(treeOut).diags...)
	return out, true
}

////////////////////////////////////////////////////////////////////////////////
// Offset tables & position conversion
////////////////////////////////////////////////////////////////////////////////

func runLineStartOffsets(c *qctx, k queryKey) (any, bool) {
	text, ok := c.fileText(k.file)
	if !ok {
		return []miniyaml.ByteIndex(nil), false
	}
	// One entry per line start plus a trailing synthetic offset equal to
	// the text length. '\r' never starts a line, so "\r\n" falls out of
	// the '\n' rule on its own.
	offs := []miniyaml.ByteIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offs = append(offs, miniyaml.ByteIndex(i+1))
		}
	}
	offs = append(offs, miniyaml.ByteIndex(len(text)))
	return offs, true
}

func (c *qctx) lineOffsets(id miniyaml.FileId) ([]miniyaml.ByteIndex, string, bool) {
	ov, ok := c.get(queryKey{name: qLineStartOffsets, file: id})
	if !ok {
		return nil, "", false
	}
	text, ok := c.fileText(id)
	if !ok {
		return nil, "", false
	}
	return ov.([]miniyaml.ByteIndex), text, true
}

func runPositionToByteIndex(c *qctx, k queryKey) (any, bool) {
	pos := k.arg.(miniyaml.Position)
	offs, text, ok := c.lineOffsets(k.file)
	if !ok {
		return miniyaml.ByteIndex(0), false
	}
	starts := offs[:len(offs)-1]
	if pos.Line < 0 || pos.Line >= len(starts) {
		return miniyaml.ByteIndex(0), false
	}
	i := int(starts[pos.Line])
	end := int(offs[pos.Line+1])
	for count := 0; count < pos.Character && i < end; count++ {
		r, sz := utf8.DecodeRuneInString(text[i:])
		if r == '\n' || r == '\r' {
			break
		}
		i += sz
	}
	return miniyaml.ByteIndex(i), true
}

func runByteIndexToPosition(c *qctx, k queryKey) (any, bool) {
	idx := k.arg.(miniyaml.ByteIndex)
	offs, text, ok := c.lineOffsets(k.file)
	if !ok {
		return miniyaml.Position{}, false
	}
	if idx < 0 || int(idx) > len(text) {
		return miniyaml.Position{}, false
	}
	return positionOf(offs, text, idx), true
}

// positionOf converts a byte index to a position against the offset
// table: an exact match on a line start is column 0 of that line;
// otherwise the column counts Unicode scalar values from the previous
// line start (never bytes).
func positionOf(offs []miniyaml.ByteIndex, text string, idx miniyaml.ByteIndex) miniyaml.Position {
	starts := offs[:len(offs)-1]
	line := sort.Search(len(starts), func(i int) bool { return starts[i] > idx }) - 1
	if line < 0 {
		line = 0
	}
	if starts[line] == idx {
		return miniyaml.Position{Line: line, Character: 0}
	}
	col := utf8.RuneCountInString(text[starts[line]:idx])
	return miniyaml.Position{Line: line, Character: col}
}

////////////////////////////////////////////////////////////////////////////////
// Span lookups
////////////////////////////////////////////////////////////////////////////////

func runTokenSpanningByteIndex(c *qctx, k queryKey) (any, bool) {
	idx := k.arg.(miniyaml.ByteIndex)
	val, ok := c.get(queryKey{name: qFileTokens, file: k.file})
	if !ok {
		return miniyaml.Token{}, false
	}
	toks := val.(lexOut).toks
	// Tokens tile the input in span order, so binary search applies.
	i := sort.Search(len(toks), func(i int) bool { return toks[i].Span.End > idx })
	if i < len(toks) && toks[i].Span.Contains(idx) {
		return toks[i], true
	}
	return miniyaml.Token{}, false
}

func runNodeSpanningByteIndex(c *qctx, k queryKey) (any, bool) {
	idx := k.arg.(miniyaml.ByteIndex)
	tv, ok := c.get(queryKey{name: qFileTree, file: k.file})
	if !ok {
		return miniyaml.NodeId(0), false
	}
	tree := tv.(treeOut).tree
	for _, id := range tree.Ids() {
		if id == miniyaml.SentinelId {
			continue
		}
		n, _ := tree.Node(id)
		if sp, ok := n.Span(); ok && sp.Contains(idx) {
			return id, true
		}
	}
	return miniyaml.NodeId(0), false
}

func runTopLevelNodeByKey(c *qctx, k queryKey) (any, bool) {
	key := k.arg.(string)
	tv, ok := c.get(queryKey{name: qFileTree, file: k.file})
	if !ok {
		return miniyaml.NodeId(0), false
	}
	text, ok := c.fileText(k.file)
	if !ok {
		return miniyaml.NodeId(0), false
	}
	tree := tv.(treeOut).tree
	for _, id := range tree.Children(miniyaml.SentinelId) {
		n, _ := tree.Node(id)
		if len(n.KeyTokens) > 0 && n.KeyText(text) == key {
			return id, true
		}
	}
	return miniyaml.NodeId(0), false
}

func runFileIdByName(c *qctx, k queryKey) (any, bool) {
	name := k.arg.(string)
	val, ok := c.readInput(queryKey{name: inAllFileIds})
	if !ok {
		return miniyaml.FileId(0), false
	}
	for _, id := range val.([]miniyaml.FileId) {
		if nv, ok := c.readInput(queryKey{name: inFileName, file: id}); ok && nv.(string) == name {
			return id, true
		}
	}
	return miniyaml.FileId(0), false
}

////////////////////////////////////////////////////////////////////////////////
// Public accessors
////////////////////////////////////////////////////////////////////////////////

// Accessors come in pairs: View methods evaluate without locking (a
// View is single-goroutine), and Database methods take the writer lock
// so casual reads stay safe alongside mutation.

// FileText returns the current text input for id.
func (v *View) FileText(id miniyaml.FileId) (string, bool) {
	val, ok := v.inputValue(queryKey{name: inFileText, file: id})
	if !ok {
		return "", false
	}
	return val.(string), true
}

// FileName returns the name input for id.
func (v *View) FileName(id miniyaml.FileId) (string, bool) {
	val, ok := v.inputValue(queryKey{name: inFileName, file: id})
	if !ok {
		return "", false
	}
	return val.(string), true
}

// AllFileIds returns the live file set in ascending order.
func (v *View) AllFileIds() []miniyaml.FileId { return v.allFileIdsLocked() }

// FileTokens returns the memoized token stream for id.
func (v *View) FileTokens(id miniyaml.FileId) ([]miniyaml.Token, bool) {
	cell := v.fresh(queryKey{name: qFileTokens, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.(lexOut).toks, true
}

// FileNodes returns the memoized logical lines for id.
func (v *View) FileNodes(id miniyaml.FileId) ([]miniyaml.Node, bool) {
	cell := v.fresh(queryKey{name: qFileNodes, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.(nodeOut).nodes, true
}

// FileTree returns the memoized indentation tree for id.
func (v *View) FileTree(id miniyaml.FileId) (*miniyaml.Tree, bool) {
	cell := v.fresh(queryKey{name: qFileTree, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.(treeOut).tree, true
}

// FileDiagnostics returns every diagnostic the pipeline raised for id,
// in stage order (lexer, grouper, tree builder).
func (v *View) FileDiagnostics(id miniyaml.FileId) ([]miniyaml.Diagnostic, bool) {
	cell := v.fresh(queryKey{name: qFileDiagnostics, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.([]miniyaml.Diagnostic), true
}

// LineStartOffsets returns the byte offset of each line start plus one
// trailing synthetic offset equal to the text length.
func (v *View) LineStartOffsets(id miniyaml.FileId) ([]miniyaml.ByteIndex, bool) {
	cell := v.fresh(queryKey{name: qLineStartOffsets, file: id})
	if !cell.ok {
		return nil, false
	}
	return cell.value.([]miniyaml.ByteIndex), true
}

// PositionToByteIndex converts a position to a byte index, clamping the
// character column to the line end.
func (v *View) PositionToByteIndex(id miniyaml.FileId, pos miniyaml.Position) (miniyaml.ByteIndex, bool) {
	cell := v.fresh(queryKey{name: qPositionToByteIndex, file: id, arg: pos})
	if !cell.ok {
		return 0, false
	}
	return cell.value.(miniyaml.ByteIndex), true
}

// ByteIndexToPosition converts a byte index to a position.
func (v *View) ByteIndexToPosition(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.Position, bool) {
	cell := v.fresh(queryKey{name: qByteIndexToPosition, file: id, arg: idx})
	if !cell.ok {
		return miniyaml.Position{}, false
	}
	return cell.value.(miniyaml.Position), true
}

// TokenSpanningByteIndex returns the token whose span covers idx.
func (v *View) TokenSpanningByteIndex(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.Token, bool) {
	cell := v.fresh(queryKey{name: qTokenSpanningByteIndex, file: id, arg: idx})
	if !cell.ok {
		return miniyaml.Token{}, false
	}
	return cell.value.(miniyaml.Token), true
}

// NodeSpanningByteIndex returns the tree node whose line covers idx.
func (v *View) NodeSpanningByteIndex(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.NodeId, bool) {
	cell := v.fresh(queryKey{name: qNodeSpanningByteIndex, file: id, arg: idx})
	if !cell.ok {
		return 0, false
	}
	return cell.value.(miniyaml.NodeId), true
}

// TopLevelNodeByKey returns the first top-level node whose key text is
// exactly key.
func (v *View) TopLevelNodeByKey(id miniyaml.FileId, key string) (miniyaml.NodeId, bool) {
	cell := v.fresh(queryKey{name: qTopLevelNodeByKey, file: id, arg: key})
	if !cell.ok {
		return 0, false
	}
	return cell.value.(miniyaml.NodeId), true
}

// FileIdByName resolves a tracked file by name.
func (v *View) FileIdByName(name string) (miniyaml.FileId, bool) {
	cell := v.fresh(queryKey{name: qFileIdByName, arg: name})
	if !cell.ok {
		return 0, false
	}
	return cell.value.(miniyaml.FileId), true
}

// Database wrappers. Each takes the writer lock for the duration of the
// evaluation; prefer Snapshot views for anything long-running.

func (db *Database) FileText(id miniyaml.FileId) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileText(id)
}

func (db *Database) FileName(id miniyaml.FileId) (string, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileName(id)
}

func (db *Database) AllFileIds() []miniyaml.FileId {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.AllFileIds()
}

func (db *Database) FileTokens(id miniyaml.FileId) ([]miniyaml.Token, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileTokens(id)
}

func (db *Database) FileNodes(id miniyaml.FileId) ([]miniyaml.Node, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileNodes(id)
}

func (db *Database) FileTree(id miniyaml.FileId) (*miniyaml.Tree, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileTree(id)
}

func (db *Database) FileDiagnostics(id miniyaml.FileId) ([]miniyaml.Diagnostic, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileDiagnostics(id)
}

func (db *Database) LineStartOffsets(id miniyaml.FileId) ([]miniyaml.ByteIndex, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.LineStartOffsets(id)
}

func (db *Database) PositionToByteIndex(id miniyaml.FileId, pos miniyaml.Position) (miniyaml.ByteIndex, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.PositionToByteIndex(id, pos)
}

func (db *Database) ByteIndexToPosition(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.Position, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.ByteIndexToPosition(id, idx)
}

func (db *Database) TokenSpanningByteIndex(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.Token, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.TokenSpanningByteIndex(id, idx)
}

func (db *Database) NodeSpanningByteIndex(id miniyaml.FileId, idx miniyaml.ByteIndex) (miniyaml.NodeId, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.NodeSpanningByteIndex(id, idx)
}

func (db *Database) TopLevelNodeByKey(id miniyaml.FileId, key string) (miniyaml.NodeId, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.TopLevelNodeByKey(id, key)
}

func (db *Database) FileIdByName(name string) (miniyaml.FileId, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.view.FileIdByName(name)
}
