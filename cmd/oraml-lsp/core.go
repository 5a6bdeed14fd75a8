// cmd/oraml-lsp/core.go
//
// ROLE: Shared infrastructure for the LSP server: stdio framing,
//       UTF-16 position math against the query database, text
//       synchronization, and diagnostics publishing.
//
// What lives here
//   • Transport helpers for framed stdio (Content-Length) plus the
//     send/notify wrappers handlers use.
//   • UTF-16 ↔ byte-offset conversions. The wire speaks UTF-16 code
//     units; the database speaks byte offsets and Unicode scalars, so
//     every position crosses here exactly once in each direction.
//   • Document synchronization (didOpen/didChange/didClose), applied
//     inline on the dispatch goroutine so edits land in arrival order.
//   • Diagnostics plumbing: pipeline diagnostics to LSP ranges,
//     published after every mutation.
//
// What does NOT live here
//   • No LSP feature handlers (hover, definition, symbols).

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/querydb"
	"github.com/oraide/oraml/internal/workspace"
)

////////////////////////////////////////////////////////////////////////////////
// Transport (stdio framing) + send/notify
////////////////////////////////////////////////////////////////////////////////

var stdoutSink io.Writer = os.Stdout

// Feature handlers resolve off the dispatch goroutine, so writes must
// be serialized here.
var writeMu sync.Mutex

func readMsg(r *bufio.Reader) ([]byte, error) {
	var contentLen int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if i := strings.IndexByte(line, ':'); i >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:i]))
			val := strings.TrimSpace(line[i+1:])
			if key == "content-length" {
				_, _ = fmt.Sscanf(val, "%d", &contentLen)
			}
		}
	}
	if contentLen <= 0 {
		return nil, io.EOF
	}
	buf := make([]byte, contentLen)
	_, err := io.ReadFull(r, buf)
	return buf, err
}

func writeMsg(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(body))
	b.Write(body)
	writeMu.Lock()
	defer writeMu.Unlock()
	_, err = w.Write(b.Bytes())
	return err
}

func (s *server) sendResponse(id json.RawMessage, result any, respErr *ResponseError) {
	if respErr == nil && result == nil {
		rawNull := json.RawMessage([]byte("null"))
		_ = writeMsg(stdoutSink, Response{JSONRPC: "2.0", ID: id, Result: rawNull})
		return
	}
	_ = writeMsg(stdoutSink, Response{JSONRPC: "2.0", ID: id, Result: result, Error: respErr})
}

func (s *server) notify(method string, params any) {
	_ = writeMsg(stdoutSink, map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

////////////////////////////////////////////////////////////////////////////////
// UTF-16 ↔ byte-offset math
////////////////////////////////////////////////////////////////////////////////

func toU16(r rune) int {
	if r < 0x10000 {
		return 1
	}
	return 2
}

// posToOffset converts a wire position (UTF-16 columns) to a byte
// offset, clamping at the line end.
func posToOffset(offs []miniyaml.ByteIndex, p Position, text string) miniyaml.ByteIndex {
	starts := offs[:len(offs)-1]
	if p.Line < 0 {
		return 0
	}
	if p.Line >= len(starts) {
		return miniyaml.ByteIndex(len(text))
	}
	i := int(starts[p.Line])
	need := p.Character
	for i < len(text) && need > 0 {
		r, sz := utf8.DecodeRuneInString(text[i:])
		if r == '\n' || r == '\r' {
			break
		}
		need -= toU16(r)
		i += sz
	}
	return miniyaml.ByteIndex(i)
}

// offsetToPos converts a byte offset to a wire position.
func offsetToPos(offs []miniyaml.ByteIndex, off miniyaml.ByteIndex, text string) Position {
	starts := offs[:len(offs)-1]
	line := 0
	for line+1 < len(starts) && starts[line+1] <= off {
		line++
	}
	u16 := 0
	for k := int(starts[line]); k < int(off) && k < len(text); {
		r, sz := utf8.DecodeRuneInString(text[k:])
		if r == '\n' {
			break
		}
		u16 += toU16(r)
		k += sz
	}
	return Position{Line: line, Character: u16}
}

// spanToRange converts a byte span to a wire range within one file.
func spanToRange(offs []miniyaml.ByteIndex, sp miniyaml.ByteSpan, text string) Range {
	return Range{
		Start: offsetToPos(offs, sp.Start, text),
		End:   offsetToPos(offs, sp.End, text),
	}
}

// scalarToOffset converts a database position (Unicode scalar columns)
// to a byte offset via the snapshot's own conversion query.
func scalarToOffset(v *querydb.View, id miniyaml.FileId, pos miniyaml.Position) (miniyaml.ByteIndex, bool) {
	return v.PositionToByteIndex(id, pos)
}

////////////////////////////////////////////////////////////////////////////////
// Document synchronization
////////////////////////////////////////////////////////////////////////////////

func (s *server) onDidOpen(raw json.RawMessage) {
	var p DidOpenTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	uri := p.TextDocument.URI
	name := workspace.NormalizeURI(uri, s.root)
	id := s.trackFile(uri, name, p.TextDocument.Text)
	s.publishDiagnostics(uri, id)
}

func (s *server) onDidChange(raw json.RawMessage) {
	var p DidChangeTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	uri := p.TextDocument.URI
	id, ok := s.fileFor(uri)
	if !ok {
		return
	}

	// Changes in one notification apply sequentially, each against the
	// text produced by the previous one.
	for _, ch := range p.ContentChanges {
		if ch.Range == nil {
			s.db.SetFileText(id, ch.Text)
			continue
		}
		text, ok := s.db.FileText(id)
		if !ok {
			return
		}
		offs, ok := s.db.LineStartOffsets(id)
		if !ok {
			return
		}
		start := posToOffset(offs, ch.Range.Start, text)
		end := posToOffset(offs, ch.Range.End, text)
		if err := s.db.ApplyEdits(id, []querydb.Edit{{Start: start, End: end, NewText: ch.Text}}); err != nil {
			s.logger.Printf("didChange: %v", err)
			return
		}
	}
	s.publishDiagnostics(uri, id)
}

func (s *server) onDidClose(raw json.RawMessage) {
	var p DidCloseTextDocumentParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return
	}
	uri := p.TextDocument.URI
	id, ok := s.fileFor(uri)
	if !ok {
		return
	}
	delete(s.byURI, uri)
	s.db.RemoveFile(id)
	// Clear stale squiggles in the editor.
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: []Diagnostic{}})
}

////////////////////////////////////////////////////////////////////////////////
// Diagnostics
////////////////////////////////////////////////////////////////////////////////

func lspSeverity(sev miniyaml.Severity) int {
	switch sev {
	case miniyaml.SeverityBug, miniyaml.SeverityError:
		return 1
	case miniyaml.SeverityWarning:
		return 2
	case miniyaml.SeverityNote:
		return 3
	default:
		return 4
	}
}

func (s *server) publishDiagnostics(uri string, id miniyaml.FileId) {
	diags, ok := s.db.FileDiagnostics(id)
	if !ok {
		return
	}
	text, _ := s.db.FileText(id)
	offs, _ := s.db.LineStartOffsets(id)

	out := make([]Diagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, Diagnostic{
			Range:    spanToRange(offs, d.Primary, text),
			Severity: lspSeverity(d.Severity),
			Code:     d.Code,
			Source:   "oraml",
			Message:  d.Message,
		})
	}
	s.notify("textDocument/publishDiagnostics", PublishDiagnosticsParams{URI: uri, Diagnostics: out})
}
