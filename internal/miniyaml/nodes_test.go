// nodes_test.go
package miniyaml

import "testing"

func nodesOf(t *testing.T, src string) ([]Node, []Diagnostic) {
	t.Helper()
	tokens, lexDiags := Tokenize(testFile, src)
	if len(lexDiags) != 0 {
		t.Fatalf("unexpected lex diagnostics: %+v", lexDiags)
	}
	return Nodeize(testFile, tokens)
}

func Test_Nodeizer_KeyValueLine(t *testing.T) {
	src := "Name: Standard Infantry\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	if len(nodes) != 1 {
		t.Fatalf("node count = %d, want 1", len(nodes))
	}
	n := nodes[0]
	if got := n.KeyText(src); got != "Name" {
		t.Fatalf("key = %q", got)
	}
	if n.KeyTerminator == nil {
		t.Fatal("missing key terminator")
	}
	if got := n.ValueText(src); got != "Standard Infantry" {
		t.Fatalf("value = %q", got)
	}
}

func Test_Nodeizer_IndentationAndComment(t *testing.T) {
	src := "    Speed: 42 # cells per tick\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	n := nodes[0]
	if n.Indentation == nil || n.Indentation.Slice(src) != "    " {
		t.Fatalf("indentation = %+v", n.Indentation)
	}
	if n.IndentationLevel(src) != 4 {
		t.Fatalf("indentation level = %d", n.IndentationLevel(src))
	}
	if n.Comment == nil || n.Comment.Slice(src) != "# cells per tick" {
		t.Fatalf("comment = %+v", n.Comment)
	}
	if got := n.ValueText(src); got != "42" {
		t.Fatalf("value = %q", got)
	}
}

func Test_Nodeizer_EmptyAndWhitespaceLines(t *testing.T) {
	src := "A:\n\n   \nB:\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	if len(nodes) != 4 {
		t.Fatalf("node count = %d, want 4", len(nodes))
	}
	if !nodes[1].IsEmpty() {
		t.Fatalf("node 1 should be empty: %+v", nodes[1])
	}
	if !nodes[2].IsWhitespaceOnly() {
		t.Fatalf("node 2 should be whitespace-only: %+v", nodes[2])
	}
	if nodes[3].KeyText(src) != "B" {
		t.Fatalf("node 3 key = %q", nodes[3].KeyText(src))
	}
}

func Test_Nodeizer_CommentOnlyLine(t *testing.T) {
	src := "# a heading comment\n"
	nodes, _ := nodesOf(t, src)
	if len(nodes) != 1 || !nodes[0].IsCommentOnly() {
		t.Fatalf("nodes = %+v", nodes)
	}
}

func Test_Nodeizer_ColonInsideValue(t *testing.T) {
	src := "Image: idle:2\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	n := nodes[0]
	if got := n.ValueText(src); got != "idle:2" {
		t.Fatalf("value = %q", got)
	}
}

func Test_Nodeizer_NamespacedKey(t *testing.T) {
	src := "AttackMove@standard:\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	if got := nodes[0].KeyText(src); got != "AttackMove@standard" {
		t.Fatalf("key = %q", got)
	}
}

func Test_Nodeizer_InheritanceKey(t *testing.T) {
	src := "^BasicUnit:\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 0 {
		t.Fatalf("diagnostics: %+v", diags)
	}
	if got := nodes[0].KeyText(src); got != "^BasicUnit" {
		t.Fatalf("key = %q", got)
	}
}

func Test_Nodeizer_DanglingAtReported(t *testing.T) {
	src := "Name@:\n"
	nodes, diags := nodesOf(t, src)
	if len(diags) != 1 || diags[0].Code != CodeExpectedAfterAt {
		t.Fatalf("diagnostics = %+v", diags)
	}
	// The '@' is retained so the line still round-trips.
	if got := nodes[0].KeyText(src); got != "Name@" {
		t.Fatalf("key = %q", got)
	}
}

func Test_Nodeizer_DanglingCaretReported(t *testing.T) {
	_, diags := nodesOf(t, "^:\n")
	if len(diags) != 1 || diags[0].Code != CodeExpectedAfterHat {
		t.Fatalf("diagnostics = %+v", diags)
	}
}

func Test_Nodeizer_BangInKeyReported(t *testing.T) {
	_, diags := nodesOf(t, "Bad!Key: v\n")
	if len(diags) != 1 || diags[0].Code != CodeBangInKey {
		t.Fatalf("diagnostics = %+v", diags)
	}
	// In value position '!' is fine.
	_, diags = nodesOf(t, "Cond: !enabled\n")
	if len(diags) != 0 {
		t.Fatalf("diagnostics = %+v", diags)
	}
}

func Test_Nodeizer_ColonWithoutKeyReported(t *testing.T) {
	nodes, diags := nodesOf(t, ": orphaned\n")
	if len(diags) != 1 || diags[0].Code != CodeMissingKey {
		t.Fatalf("diagnostics = %+v", diags)
	}
	if len(nodes) != 1 || len(nodes[0].KeyTokens) == 0 {
		t.Fatalf("nodes = %+v", nodes)
	}
}

func Test_Nodeizer_FinalLineWithoutNewline(t *testing.T) {
	src := "A: 1\nB: 2"
	nodes, _ := nodesOf(t, src)
	if len(nodes) != 2 {
		t.Fatalf("node count = %d, want 2", len(nodes))
	}
	if nodes[1].KeyText(src) != "B" {
		t.Fatalf("key = %q", nodes[1].KeyText(src))
	}
}
