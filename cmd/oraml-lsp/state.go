// cmd/oraml-lsp/state.go
//
// ROLE: Server state and lifecycle helpers.
//
// What lives here
//   • The server struct: the query database, the worker pool, the loaded
//     configuration, and the URI → file-id table.
//   • newServer() and the uri/id bookkeeping.
//
// What does NOT live here
//   • No transport/framing, no analysis, no LSP feature handlers.

package main

import (
	"log"
	"os"

	"github.com/oraide/oraml/internal/config"
	"github.com/oraide/oraml/internal/miniyaml"
	"github.com/oraide/oraml/internal/pool"
	"github.com/oraide/oraml/internal/querydb"
)

type server struct {
	cfg    *config.Config
	logger *log.Logger

	db   *querydb.Database
	pool *pool.Pool

	// root is the workspace root path, set by initialize.
	root string
	// byURI maps document URIs to database file ids. Only the main
	// dispatch goroutine touches it.
	byURI map[string]miniyaml.FileId
}

func newServer(cfg *config.Config) *server {
	logger := log.New(os.Stderr, "oraml-lsp: ", log.LstdFlags)
	return &server{
		cfg:    cfg,
		logger: logger,
		db:     querydb.NewDatabase(),
		pool: pool.New(pool.Config{
			Workers:      cfg.Pool.Workers,
			PerKindLimit: cfg.Pool.PerKindLimit,
			TotalLimit:   cfg.Pool.TotalLimit,
			StartTimeout: cfg.Pool.StartTimeout,
		}, logger),
		byURI: make(map[string]miniyaml.FileId),
	}
}

// fileFor resolves a URI to its database id, registering the document
// on first sight (empty text; didOpen supplies the real content).
func (s *server) fileFor(uri string) (miniyaml.FileId, bool) {
	id, ok := s.byURI[uri]
	return id, ok
}

func (s *server) trackFile(uri, name, text string) miniyaml.FileId {
	id := s.db.AddFile(name, text)
	s.byURI[uri] = id
	return id
}
