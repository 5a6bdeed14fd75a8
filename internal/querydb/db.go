// Package querydb is a pull-based, memoized computation graph over
// MiniYaml files. Input facts (file text, file name, the live file set)
// are set explicitly; everything else (tokens, lines, trees, offset
// tables, symbol lookups) is a derived query: a pure function of inputs
// and other queries, computed on first request and cached by argument.
//
// Dependency edges are not declared up front. Each query records which
// inputs and queries it read while evaluating, so setting one input
// lazily invalidates exactly the derived results that transitively read
// it; results for unrelated files stay cached.
package querydb

import (
	"sort"
	"sync"

	"lukechampine.com/blake3"

	"github.com/oraide/oraml/internal/miniyaml"
)

type revision uint64

// queryKey names one cached fact: a query (or input) name, the file it
// is scoped to, and an optional comparable argument (a position, a byte
// index, a key string).
type queryKey struct {
	name string
	file miniyaml.FileId
	arg  any
}

// input slot names
const (
	inFileText   = "file_text"
	inFileName   = "file_name"
	inAllFileIds = "all_file_ids"
)

func isInput(name string) bool {
	return name == inFileText || name == inFileName || name == inAllFileIds
}

// inputCell holds one explicitly-set fact. Cells are immutable once
// stored; mutation replaces the cell. ok=false marks an absent input
// that some query has read (so its later appearance invalidates).
type inputCell struct {
	value     any
	ok        bool
	digest    [32]byte // blake3 of file text, zero for other inputs
	changedAt revision
}

// memoCell holds one derived result plus the dependency edges recorded
// during its evaluation. changedAt is the revision the value last
// actually changed; verifiedAt is the revision it was last known fresh.
type memoCell struct {
	value      any
	ok         bool
	deps       []queryKey
	changedAt  revision
	verifiedAt revision
}

// View is a set of input and memo cells that queries evaluate against.
// A View is not safe for concurrent use; the Database guards its own
// view with a mutex and hands out private copies via Snapshot.
type View struct {
	rev    revision
	inputs map[queryKey]*inputCell
	memos  map[queryKey]*memoCell
}

// Database is the mutable, single-writer query database. All exported
// methods are safe for concurrent use; long-running readers should take
// a Snapshot instead of holding the database lock.
type Database struct {
	mu       sync.Mutex
	nextFile miniyaml.FileId
	view     View
}

// NewDatabase creates an empty database.
func NewDatabase() *Database {
	return &Database{
		nextFile: 1,
		view: View{
			inputs: make(map[queryKey]*inputCell),
			memos:  make(map[queryKey]*memoCell),
		},
	}
}

// Snapshot returns a read-only, point-in-time view. The cell maps are
// shallow-copied under the writer lock: cells themselves are immutable
// and structurally shared, so a snapshot reflects all mutations applied
// before the call and none applied after. Each snapshot memoizes
// further evaluation privately and must be used from one goroutine.
func (db *Database) Snapshot() *View {
	db.mu.Lock()
	defer db.mu.Unlock()
	v := &View{
		rev:    db.view.rev,
		inputs: make(map[queryKey]*inputCell, len(db.view.inputs)),
		memos:  make(map[queryKey]*memoCell, len(db.view.memos)),
	}
	for k, c := range db.view.inputs {
		v.inputs[k] = c
	}
	for k, c := range db.view.memos {
		v.memos[k] = c
	}
	return v
}

////////////////////////////////////////////////////////////////////////////////
// Input mutation
////////////////////////////////////////////////////////////////////////////////

// AddFile starts tracking a file and returns its id. If a file with the
// same name is already tracked, its text is replaced and the existing
// id is returned; ids are never reused while a file is live.
func (db *Database) AddFile(name, text string) miniyaml.FileId {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range db.view.allFileIdsLocked() {
		if n, ok := db.view.inputValue(queryKey{name: inFileName, file: id}); ok && n == name {
			db.setTextLocked(id, text)
			return id
		}
	}

	id := db.nextFile
	db.nextFile++
	db.view.rev++
	db.view.setInput(queryKey{name: inFileName, file: id}, name, [32]byte{})
	db.view.setInput(queryKey{name: inFileText, file: id}, text, blake3.Sum256([]byte(text)))
	ids := append(db.view.allFileIdsLocked(), id)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	db.view.setInput(queryKey{name: inAllFileIds}, ids, [32]byte{})
	return id
}

// SetFileText replaces a file's text. Setting identical text (same
// BLAKE3 digest) is a no-op: no revision is spent and nothing is
// invalidated.
func (db *Database) SetFileText(id miniyaml.FileId, text string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.setTextLocked(id, text)
}

func (db *Database) setTextLocked(id miniyaml.FileId, text string) {
	k := queryKey{name: inFileText, file: id}
	digest := blake3.Sum256([]byte(text))
	if old := db.view.inputs[k]; old != nil && old.ok && old.digest == digest {
		return
	}
	db.view.rev++
	db.view.setInput(k, text, digest)
}

// SetFileName renames a tracked file.
func (db *Database) SetFileName(id miniyaml.FileId, name string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	k := queryKey{name: inFileName, file: id}
	if old := db.view.inputs[k]; old != nil && old.ok && old.value == name {
		return
	}
	db.view.rev++
	db.view.setInput(k, name, [32]byte{})
}

// SetAllFileIds replaces the live file set wholesale. AddFile and
// RemoveFile maintain the set automatically; this slot exists for
// callers that track files themselves.
func (db *Database) SetAllFileIds(ids []miniyaml.FileId) {
	db.mu.Lock()
	defer db.mu.Unlock()
	sorted := append([]miniyaml.FileId(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	db.view.rev++
	db.view.setInput(queryKey{name: inAllFileIds}, sorted, [32]byte{})
}

// RemoveFile stops tracking a file. Its inputs become absent; derived
// results that read them recompute to "no result" on next access.
func (db *Database) RemoveFile(id miniyaml.FileId) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.view.rev++
	db.view.clearInput(queryKey{name: inFileText, file: id})
	db.view.clearInput(queryKey{name: inFileName, file: id})
	ids := db.view.allFileIdsLocked()
	kept := ids[:0]
	for _, fid := range ids {
		if fid != id {
			kept = append(kept, fid)
		}
	}
	db.view.setInput(queryKey{name: inAllFileIds}, kept, [32]byte{})
}

func (v *View) setInput(k queryKey, value any, digest [32]byte) {
	v.inputs[k] = &inputCell{value: value, ok: true, digest: digest, changedAt: v.rev}
}

func (v *View) clearInput(k queryKey) {
	v.inputs[k] = &inputCell{ok: false, changedAt: v.rev}
}

func (v *View) inputValue(k queryKey) (any, bool) {
	c := v.inputs[k]
	if c == nil || !c.ok {
		return nil, false
	}
	return c.value, true
}

func (v *View) allFileIdsLocked() []miniyaml.FileId {
	val, ok := v.inputValue(queryKey{name: inAllFileIds})
	if !ok {
		return nil
	}
	return append([]miniyaml.FileId(nil), val.([]miniyaml.FileId)...)
}

////////////////////////////////////////////////////////////////////////////////
// Evaluation engine
////////////////////////////////////////////////////////////////////////////////

// qctx is passed to query functions; reads through it are recorded as
// dependency edges of the query being evaluated.
type qctx struct {
	v    *View
	deps *[]queryKey
}

func (c *qctx) record(k queryKey) {
	for _, d := range *c.deps {
		if d == k {
			return
		}
	}
	*c.deps = append(*c.deps, k)
}

// readInput reads an input fact, materializing an absent marker when
// the fact was never set (so a later set invalidates this reader).
func (c *qctx) readInput(k queryKey) (any, bool) {
	c.record(k)
	cell := c.v.inputs[k]
	if cell == nil {
		cell = &inputCell{ok: false, changedAt: 0}
		c.v.inputs[k] = cell
	}
	return cell.value, cell.ok
}

// get evaluates (or reuses) another derived query as a dependency.
func (c *qctx) get(k queryKey) (any, bool) {
	c.record(k)
	cell := c.v.fresh(k)
	return cell.value, cell.ok
}

// fresh returns an up-to-date memo cell for k, revalidating or
// recomputing as needed.
func (v *View) fresh(k queryKey) *memoCell {
	cell := v.memos[k]
	if cell != nil && cell.verifiedAt == v.rev {
		return cell
	}

	if cell != nil && !v.anyDepChanged(cell) {
		// Deep verification succeeded: stamp and keep the old value.
		nc := *cell
		nc.verifiedAt = v.rev
		v.memos[k] = &nc
		return &nc
	}

	var deps []queryKey
	ctx := &qctx{v: v, deps: &deps}
	fn := queryFns[k.name]
	value, ok := fn(ctx, k)

	changedAt := v.rev
	if cell != nil && cell.ok == ok && valuesEqual(cell.value, value) {
		// Recomputed to the same answer: downstream queries that only
		// verified against changedAt stay valid (early cutoff).
		changedAt = cell.changedAt
	}
	nc := &memoCell{value: value, ok: ok, deps: deps, changedAt: changedAt, verifiedAt: v.rev}
	v.memos[k] = nc
	return nc
}

func (v *View) anyDepChanged(cell *memoCell) bool {
	for _, dep := range cell.deps {
		if isInput(dep.name) {
			in := v.inputs[dep]
			if in == nil || in.changedAt > cell.verifiedAt {
				return true
			}
			continue
		}
		if v.fresh(dep).changedAt > cell.verifiedAt {
			return true
		}
	}
	return false
}
