package querydb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oraide/oraml/internal/miniyaml"
)

const nestedDoc = "E1:\n\tTooltip:\n\t\tName: Standard Infantry\n"

func TestEveryQueryIsRegistered(t *testing.T) {
	names := []string{
		qFileTokens, qFileNodes, qFileTree, qFileDiagnostics,
		qLineStartOffsets, qPositionToByteIndex, qByteIndexToPosition,
		qTokenSpanningByteIndex, qNodeSpanningByteIndex,
		qTopLevelNodeByKey, qFileIdByName,
		qHoverAt, qDefinitionAt, qSymbolsIn,
	}
	require.Len(t, queryFns, len(names))
	for _, name := range names {
		assert.NotNil(t, queryFns[name], name)
	}
}

func TestAddFileAndInputs(t *testing.T) {
	db := NewDatabase()
	id := db.AddFile("rules/infantry.yaml", "A: 1\n")

	text, ok := db.FileText(id)
	require.True(t, ok)
	assert.Equal(t, "A: 1\n", text)

	name, ok := db.FileName(id)
	require.True(t, ok)
	assert.Equal(t, "rules/infantry.yaml", name)

	assert.Equal(t, []miniyaml.FileId{id}, db.AllFileIds())

	got, ok := db.FileIdByName("rules/infantry.yaml")
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = db.FileIdByName("rules/missing.yaml")
	assert.False(t, ok)
}

func TestAddFileSameNameReusesId(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A: 1\n")
	b := db.AddFile("a.yaml", "A: 2\n")
	assert.Equal(t, a, b)

	text, ok := db.FileText(a)
	require.True(t, ok)
	assert.Equal(t, "A: 2\n", text)
	assert.Len(t, db.AllFileIds(), 1)
}

func TestRemoveFile(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A: 1\n")
	b := db.AddFile("b.yaml", "B: 2\n")

	db.RemoveFile(a)
	_, ok := db.FileText(a)
	assert.False(t, ok)
	_, ok = db.FileTree(a)
	assert.False(t, ok)
	assert.Equal(t, []miniyaml.FileId{b}, db.AllFileIds())

	// Ids are never reused while files are live.
	c := db.AddFile("c.yaml", "C: 3\n")
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, b, c)
}

func TestPipelineQueries(t *testing.T) {
	db := NewDatabase()
	id := db.AddFile("e.yaml", nestedDoc)

	toks, ok := db.FileTokens(id)
	require.True(t, ok)
	require.NotEmpty(t, toks)

	nodes, ok := db.FileNodes(id)
	require.True(t, ok)
	assert.Len(t, nodes, 3)

	tree, ok := db.FileTree(id)
	require.True(t, ok)
	assert.Equal(t, 4, tree.Len())

	diags, ok := db.FileDiagnostics(id)
	require.True(t, ok)
	assert.Empty(t, diags)
}

func TestSpanLookups(t *testing.T) {
	db := NewDatabase()
	id := db.AddFile("e.yaml", nestedDoc)

	tok, ok := db.TokenSpanningByteIndex(id, 24)
	require.True(t, ok)
	assert.Equal(t, "Standard", tok.Slice(nestedDoc))

	nid, ok := db.NodeSpanningByteIndex(id, 24)
	require.True(t, ok)
	tree, _ := db.FileTree(id)
	n, ok := tree.Node(nid)
	require.True(t, ok)
	assert.Equal(t, "Name", n.KeyText(nestedDoc))

	// Past the end of the text there is no covering token.
	_, ok = db.TokenSpanningByteIndex(id, miniyaml.ByteIndex(len(nestedDoc)))
	assert.False(t, ok)
}

func TestTopLevelNodeByKey(t *testing.T) {
	db := NewDatabase()
	src := "^BasicUnit:\nE1:\n\tInherits: ^BasicUnit\n"
	id := db.AddFile("u.yaml", src)

	nid, ok := db.TopLevelNodeByKey(id, "^BasicUnit")
	require.True(t, ok)
	tree, _ := db.FileTree(id)
	n, _ := tree.Node(nid)
	assert.Equal(t, "^BasicUnit", n.KeyText(src))

	// Nested keys are not top-level.
	_, ok = db.TopLevelNodeByKey(id, "Inherits")
	assert.False(t, ok)
}

func TestLineStartOffsets(t *testing.T) {
	db := NewDatabase()
	id := db.AddFile("o.yaml", "ab\ncd\r\nef")

	offs, ok := db.LineStartOffsets(id)
	require.True(t, ok)
	assert.Equal(t, []miniyaml.ByteIndex{0, 3, 7, 9}, offs)
}

func TestPositionConversionRoundTrip(t *testing.T) {
	db := NewDatabase()
	src := "héllo: wörld\n\tName: 日本語\n"
	id := db.AddFile("u.yaml", src)

	offs, ok := db.LineStartOffsets(id)
	require.True(t, ok)
	starts := offs[:len(offs)-1]

	for line := range starts {
		for ch := 0; ch < 12; ch++ {
			pos := miniyaml.Position{Line: line, Character: ch}
			idx, ok := db.PositionToByteIndex(id, pos)
			require.True(t, ok)
			back, ok := db.ByteIndexToPosition(id, idx)
			require.True(t, ok)
			// Characters past the line end clamp, so the round trip
			// holds only for in-bounds positions.
			if back != pos {
				clamped, ok2 := db.PositionToByteIndex(id, back)
				require.True(t, ok2)
				assert.Equal(t, idx, clamped)
				continue
			}
			assert.Equal(t, pos, back)
		}
	}
}

func TestPositionToByteIndexClampsAndBounds(t *testing.T) {
	db := NewDatabase()
	id := db.AddFile("c.yaml", "ab\ncd\n")

	// Character past the line end clamps to just before the newline.
	idx, ok := db.PositionToByteIndex(id, miniyaml.Position{Line: 0, Character: 99})
	require.True(t, ok)
	assert.Equal(t, miniyaml.ByteIndex(2), idx)

	// Out-of-range lines produce no result.
	_, ok = db.PositionToByteIndex(id, miniyaml.Position{Line: 99, Character: 0})
	assert.False(t, ok)
	_, ok = db.PositionToByteIndex(id, miniyaml.Position{Line: -1, Character: 0})
	assert.False(t, ok)
}

func TestByteIndexToPositionCountsScalars(t *testing.T) {
	db := NewDatabase()
	src := "日本語: x\n"
	id := db.AddFile("u.yaml", src)

	// Byte 9 is the ':' after three 3-byte scalars.
	pos, ok := db.ByteIndexToPosition(id, 9)
	require.True(t, ok)
	assert.Equal(t, miniyaml.Position{Line: 0, Character: 3}, pos)
}

func TestMemoizationAcrossFiles(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A: 1\n")
	b := db.AddFile("b.yaml", "B: 2\n")

	treeA1, ok := db.FileTree(a)
	require.True(t, ok)

	// Touching b must not rebuild a's tree.
	db.SetFileText(b, "B: 3\n")
	treeA2, ok := db.FileTree(a)
	require.True(t, ok)
	assert.Same(t, treeA1, treeA2)

	// Touching a does.
	db.SetFileText(a, "A: 9\n")
	treeA3, ok := db.FileTree(a)
	require.True(t, ok)
	assert.NotSame(t, treeA1, treeA3)
}

func TestIdenticalTextIsNoOp(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A: 1\n")

	tree1, _ := db.FileTree(a)
	db.SetFileText(a, "A: 1\n")
	tree2, _ := db.FileTree(a)
	assert.Same(t, tree1, tree2)
}

func TestEarlyCutoffOnEquivalentTokens(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "# x\nKey: value\n")

	nodes1, ok := db.FileNodes(a)
	require.True(t, ok)
	require.NotEmpty(t, nodes1)

	// Same length, same token kinds and spans: the token stream
	// recomputes to an equal value, so grouping is verified, not rerun.
	db.SetFileText(a, "# y\nKey: value\n")
	nodes2, ok := db.FileNodes(a)
	require.True(t, ok)
	assert.Same(t, &nodes1[0], &nodes2[0])
}

func TestSnapshotIsolation(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A: 1\n")

	snap := db.Snapshot()
	db.SetFileText(a, "Changed: yes\n")

	text, ok := snap.FileText(a)
	require.True(t, ok)
	assert.Equal(t, "A: 1\n", text)

	// The snapshot evaluates against its frozen inputs.
	tree, ok := snap.FileTree(a)
	require.True(t, ok)
	n, _ := tree.Node(tree.Children(miniyaml.SentinelId)[0])
	assert.Equal(t, "A", n.KeyText(text))

	// The live database sees the new text.
	live, ok := db.FileText(a)
	require.True(t, ok)
	assert.Equal(t, "Changed: yes\n", live)
}

func TestAbsentFileThenAdded(t *testing.T) {
	db := NewDatabase()

	// Reading a query for an untracked id records the absent input.
	_, ok := db.FileTokens(7)
	assert.False(t, ok)

	// Adding files until that id exists makes the query turn over.
	var id miniyaml.FileId
	for id != 7 {
		id = db.AddFile("f"+string(rune('a'+id))+".yaml", "K: v\n")
	}
	toks, ok := db.FileTokens(7)
	require.True(t, ok)
	assert.NotEmpty(t, toks)
}

func TestDiagnosticsInvalidateWithText(t *testing.T) {
	db := NewDatabase()
	a := db.AddFile("a.yaml", "A:\n   B:\n")

	diags, ok := db.FileDiagnostics(a)
	require.True(t, ok)
	require.NotEmpty(t, diags)
	assert.Equal(t, miniyaml.CodeIndentNotMultiple, diags[0].Code)

	db.SetFileText(a, "A:\n    B:\n")
	diags, ok = db.FileDiagnostics(a)
	require.True(t, ok)
	assert.Empty(t, diags)
}
