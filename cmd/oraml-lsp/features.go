// cmd/oraml-lsp/features.go
//
// ROLE: LSP feature handlers: initialize, hover, definition, document
//       symbols.
//
// Read requests snapshot the database on the dispatch goroutine (cheap,
// point-in-time) and resolve on the worker pool, so a slow query never
// stalls text synchronization. Each handler carries a fallback: when
// the pool refuses a request or a task goes stale in the queue, the
// client gets an empty-but-valid answer instead of an error.

package main

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/pool"
	"github.com/oraide/oraml/internal/querydb"
	"github.com/oraide/oraml/internal/workspace"
)

func (s *server) onInitialize(id json.RawMessage, raw json.RawMessage) {
	var p InitializeParams
	_ = json.Unmarshal(raw, &p)

	if p.RootURI != "" {
		s.root = strings.TrimPrefix(p.RootURI, "file://")
		ids, err := workspace.Scan(s.db, s.root, s.cfg.Workspace.Include)
		if err != nil {
			s.logger.Printf("workspace scan: %v", err)
		}
		for _, fid := range ids {
			if name, ok := s.db.FileName(fid); ok {
				s.byURI[s.uriForName(name)] = fid
			}
		}
		s.logger.Printf("workspace: tracking %d files under %s", len(ids), s.root)
	}

	s.sendResponse(id, InitializeResult{
		Capabilities: ServerCapabilities{
			TextDocumentSync:       TextDocumentSyncOptions{OpenClose: true, Change: 2},
			HoverProvider:          true,
			DefinitionProvider:     true,
			DocumentSymbolProvider: true,
		},
		ServerInfo: map[string]string{"name": "oraml-lsp"},
	}, nil)
}

// uriForName maps a database file name back to a client URI.
func (s *server) uriForName(name string) string {
	if filepath.IsAbs(name) {
		return "file://" + name
	}
	return "file://" + filepath.ToSlash(filepath.Join(s.root, name))
}

// dispatch submits a read to the pool and forwards its result (or the
// fallback) as the response to id.
func (s *server) dispatch(id json.RawMessage, kind pool.Kind, run func() (any, error), fallback func() any) {
	ch, err := s.pool.Submit(kind, run, fallback)
	if err != nil {
		// At capacity or shutting down: answer with the fallback so the
		// client never hangs on the request.
		s.sendResponse(id, fallback(), nil)
		return
	}
	go func() {
		res := <-ch
		if res.Err != nil {
			s.logger.Printf("%s: %v", kind, res.Err)
			s.sendResponse(id, fallback(), nil)
			return
		}
		s.sendResponse(id, res.Value, nil)
	}()
}

////////////////////////////////////////////////////////////////////////////////
// Hover
////////////////////////////////////////////////////////////////////////////////

func (s *server) onHover(id json.RawMessage, raw json.RawMessage) {
	var p TextDocumentPositionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendResponse(id, nil, nil)
		return
	}
	fid, ok := s.fileFor(p.TextDocument.URI)
	if !ok {
		s.sendResponse(id, nil, nil)
		return
	}
	v := s.db.Snapshot()
	pos := p.Position

	s.dispatch(id, pool.KindHover, func() (any, error) {
		scalar, ok := wirePosition(v, fid, pos)
		if !ok {
			return nil, nil
		}
		text, ok := v.HoverAt(fid, scalar)
		if !ok {
			return nil, nil
		}
		return Hover{Contents: MarkupContent{Kind: "markdown", Value: text}}, nil
	}, func() any { return nil })
}

// wirePosition converts a wire position to the database's scalar form
// against one snapshot.
func wirePosition(v *querydb.View, fid miniyaml.FileId, p Position) (miniyaml.Position, bool) {
	text, ok := v.FileText(fid)
	if !ok {
		return miniyaml.Position{}, false
	}
	offs, ok := v.LineStartOffsets(fid)
	if !ok {
		return miniyaml.Position{}, false
	}
	return v.ByteIndexToPosition(fid, posToOffset(offs, p, text))
}

////////////////////////////////////////////////////////////////////////////////
// Go-to-definition
////////////////////////////////////////////////////////////////////////////////

func (s *server) onDefinition(id json.RawMessage, raw json.RawMessage) {
	var p TextDocumentPositionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendResponse(id, nil, nil)
		return
	}
	fid, ok := s.fileFor(p.TextDocument.URI)
	if !ok {
		s.sendResponse(id, nil, nil)
		return
	}
	v := s.db.Snapshot()
	pos := p.Position

	s.dispatch(id, pool.KindDefinition, func() (any, error) {
		scalar, ok := wirePosition(v, fid, pos)
		if !ok {
			return nil, nil
		}
		def, ok := v.DefinitionAt(fid, scalar)
		if !ok {
			return nil, nil
		}
		loc, ok := s.locationOf(v, def)
		if !ok {
			return nil, nil
		}
		return loc, nil
	}, func() any { return nil })
}

// locationOf converts a database definition (scalar positions) to a
// wire location (UTF-16).
func (s *server) locationOf(v *querydb.View, def querydb.Definition) (Location, bool) {
	name, ok := v.FileName(def.File)
	if !ok {
		return Location{}, false
	}
	text, ok := v.FileText(def.File)
	if !ok {
		return Location{}, false
	}
	offs, ok := v.LineStartOffsets(def.File)
	if !ok {
		return Location{}, false
	}
	start, ok := scalarToOffset(v, def.File, def.Start)
	if !ok {
		return Location{}, false
	}
	end, ok := scalarToOffset(v, def.File, def.End)
	if !ok {
		return Location{}, false
	}
	return Location{
		URI: s.uriForName(name),
		Range: Range{
			Start: offsetToPos(offs, start, text),
			End:   offsetToPos(offs, end, text),
		},
	}, true
}

////////////////////////////////////////////////////////////////////////////////
// Document symbols
////////////////////////////////////////////////////////////////////////////////

// symbolKindField = 8 (Field) fits MiniYaml keys better than any other
// LSP symbol kind.
const symbolKindField = 8

func (s *server) onDocumentSymbols(id json.RawMessage, raw json.RawMessage) {
	var p DocumentSymbolParams
	if err := json.Unmarshal(raw, &p); err != nil {
		s.sendResponse(id, []DocumentSymbol{}, nil)
		return
	}
	fid, ok := s.fileFor(p.TextDocument.URI)
	if !ok {
		s.sendResponse(id, []DocumentSymbol{}, nil)
		return
	}
	v := s.db.Snapshot()

	s.dispatch(id, pool.KindSymbols, func() (any, error) {
		syms, ok := v.SymbolsIn(fid)
		if !ok {
			return []DocumentSymbol{}, nil
		}
		return s.wireSymbols(v, fid, syms), nil
	}, func() any { return []DocumentSymbol{} })
}

func (s *server) wireSymbols(v *querydb.View, fid miniyaml.FileId, syms []querydb.Symbol) []DocumentSymbol {
	text, ok := v.FileText(fid)
	if !ok {
		return nil
	}
	offs, ok := v.LineStartOffsets(fid)
	if !ok {
		return nil
	}
	out := make([]DocumentSymbol, 0, len(syms))
	for _, sym := range syms {
		start, ok1 := scalarToOffset(v, fid, sym.Range.Start)
		end, ok2 := scalarToOffset(v, fid, sym.Range.End)
		if !ok1 || !ok2 {
			continue
		}
		r := Range{
			Start: offsetToPos(offs, start, text),
			End:   offsetToPos(offs, end, text),
		}
		out = append(out, DocumentSymbol{
			Name:           sym.Name,
			Detail:         sym.Detail,
			Kind:           symbolKindField,
			Range:          r,
			SelectionRange: r,
			Children:       s.wireSymbols(v, fid, sym.Children),
		})
	}
	return out
}
