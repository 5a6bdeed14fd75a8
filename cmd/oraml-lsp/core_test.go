// core_test.go
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oraide/oraml/internal/config"
	"github.com/oraide/oraml/internal/miniyaml"
)

func Test_Framing_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Response{JSONRPC: "2.0", Result: "ok"}
	if err := writeMsg(&buf, want); err != nil {
		t.Fatalf("writeMsg: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Content-Length: ") {
		t.Fatalf("missing framing header: %q", buf.String())
	}

	body, err := readMsg(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("readMsg: %v", err)
	}
	var got Response
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Result != "ok" {
		t.Fatalf("result = %v", got.Result)
	}
}

func Test_Framing_HeaderCaseInsensitive(t *testing.T) {
	raw := "content-length: 2\r\n\r\n{}"
	body, err := readMsg(bufio.NewReader(strings.NewReader(raw)))
	if err != nil {
		t.Fatalf("readMsg: %v", err)
	}
	if string(body) != "{}" {
		t.Fatalf("body = %q", body)
	}
}

func offsetsFor(text string) []miniyaml.ByteIndex {
	offs := []miniyaml.ByteIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			offs = append(offs, miniyaml.ByteIndex(i+1))
		}
	}
	return append(offs, miniyaml.ByteIndex(len(text)))
}

func Test_PosToOffset_UTF16(t *testing.T) {
	// U+1D400 is one scalar, two UTF-16 code units, four bytes.
	text := "\U0001D400x: 1\nnext\n"
	offs := offsetsFor(text)

	// Character 2 (UTF-16) lands after the surrogate pair, on 'x'.
	if got := posToOffset(offs, Position{Line: 0, Character: 2}, text); got != 4 {
		t.Fatalf("offset = %d, want 4", got)
	}
	// Columns clamp at the line end.
	if got := posToOffset(offs, Position{Line: 0, Character: 99}, text); got != 8 {
		t.Fatalf("offset = %d, want 8", got)
	}
	// Second line.
	if got := posToOffset(offs, Position{Line: 1, Character: 1}, text); got != 10 {
		t.Fatalf("offset = %d, want 10", got)
	}
}

func Test_OffsetToPos_UTF16(t *testing.T) {
	text := "\U0001D400x: 1\nnext\n"
	offs := offsetsFor(text)

	if got := offsetToPos(offs, 4, text); got != (Position{Line: 0, Character: 2}) {
		t.Fatalf("pos = %+v", got)
	}
	if got := offsetToPos(offs, 9, text); got != (Position{Line: 1, Character: 0}) {
		t.Fatalf("pos = %+v", got)
	}
	if got := offsetToPos(offs, 10, text); got != (Position{Line: 1, Character: 1}) {
		t.Fatalf("pos = %+v", got)
	}
}

func Test_LspSeverity(t *testing.T) {
	if lspSeverity(miniyaml.SeverityBug) != 1 || lspSeverity(miniyaml.SeverityError) != 1 {
		t.Fatal("bug/error must map to LSP Error")
	}
	if lspSeverity(miniyaml.SeverityWarning) != 2 {
		t.Fatal("warning must map to LSP Warning")
	}
}

// captureOutput redirects the server's stdout sink for one test.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdoutSink
	stdoutSink = &buf
	t.Cleanup(func() { stdoutSink = old })
	return &buf
}

func decodeMessages(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	r := bufio.NewReader(bytes.NewReader(buf.Bytes()))
	var out []map[string]any
	for {
		body, err := readMsg(r)
		if err != nil {
			return out
		}
		var m map[string]any
		if err := json.Unmarshal(body, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		out = append(out, m)
	}
}

func Test_DidOpen_PublishesDiagnostics(t *testing.T) {
	buf := captureOutput(t)
	s := newServer(config.Default())
	defer s.pool.Close()

	params, _ := json.Marshal(DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{
			URI:  "file:///ws/bad.yaml",
			Text: "A:\n   B:\n",
		},
	})
	s.onDidOpen(params)

	msgs := decodeMessages(t, buf)
	if len(msgs) != 1 || msgs[0]["method"] != "textDocument/publishDiagnostics" {
		t.Fatalf("messages = %+v", msgs)
	}
	p := msgs[0]["params"].(map[string]any)
	diags := p["diagnostics"].([]any)
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v", diags)
	}
	d := diags[0].(map[string]any)
	if d["code"] != "E0005" {
		t.Fatalf("code = %v", d["code"])
	}
}

func Test_DidChange_FullReplace(t *testing.T) {
	buf := captureOutput(t)
	s := newServer(config.Default())
	defer s.pool.Close()

	open, _ := json.Marshal(DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: "file:///ws/a.yaml", Text: "A: 1\n"},
	})
	s.onDidOpen(open)

	change, _ := json.Marshal(DidChangeTextDocumentParams{
		TextDocument:   TextDocumentIdentifier{URI: "file:///ws/a.yaml"},
		ContentChanges: []TextDocumentContentChangeEvent{{Text: "B: 2\n"}},
	})
	s.onDidChange(change)

	id, ok := s.fileFor("file:///ws/a.yaml")
	if !ok {
		t.Fatal("document not tracked")
	}
	text, _ := s.db.FileText(id)
	if text != "B: 2\n" {
		t.Fatalf("text = %q", text)
	}
	if msgs := decodeMessages(t, buf); len(msgs) != 2 {
		t.Fatalf("expected two publishes, got %d", len(msgs))
	}
}

func Test_DidChange_Incremental(t *testing.T) {
	captureOutput(t)
	s := newServer(config.Default())
	defer s.pool.Close()

	open, _ := json.Marshal(DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: "file:///ws/a.yaml", Text: "Speed: 5\n"},
	})
	s.onDidOpen(open)

	change, _ := json.Marshal(DidChangeTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///ws/a.yaml"},
		ContentChanges: []TextDocumentContentChangeEvent{{
			Range: &Range{Start: Position{Line: 0, Character: 7}, End: Position{Line: 0, Character: 8}},
			Text:  "42",
		}},
	})
	s.onDidChange(change)

	id, _ := s.fileFor("file:///ws/a.yaml")
	text, _ := s.db.FileText(id)
	if text != "Speed: 42\n" {
		t.Fatalf("text = %q", text)
	}
}

func Test_DidClose_RemovesAndClears(t *testing.T) {
	buf := captureOutput(t)
	s := newServer(config.Default())
	defer s.pool.Close()

	open, _ := json.Marshal(DidOpenTextDocumentParams{
		TextDocument: TextDocumentItem{URI: "file:///ws/a.yaml", Text: "A: 1\n"},
	})
	s.onDidOpen(open)
	id, _ := s.fileFor("file:///ws/a.yaml")

	closeP, _ := json.Marshal(DidCloseTextDocumentParams{
		TextDocument: TextDocumentIdentifier{URI: "file:///ws/a.yaml"},
	})
	s.onDidClose(closeP)

	if _, ok := s.fileFor("file:///ws/a.yaml"); ok {
		t.Fatal("document still tracked after close")
	}
	if _, ok := s.db.FileText(id); ok {
		t.Fatal("file still in database after close")
	}
	msgs := decodeMessages(t, buf)
	last := msgs[len(msgs)-1]["params"].(map[string]any)
	if len(last["diagnostics"].([]any)) != 0 {
		t.Fatalf("close must clear diagnostics: %+v", last)
	}
}
