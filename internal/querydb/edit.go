package querydb

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oraide/oraml/internal/miniyaml"
)

var (
	// ErrUnknownFile reports an edit against a file the database does
	// not track.
	ErrUnknownFile = errors.New("querydb: unknown file")
	// ErrInvalidEdit reports an edit whose range does not fit the
	// current text (out of bounds, reversed, or mid-character).
	ErrInvalidEdit = errors.New("querydb: invalid edit range")
)

// Edit is one text splice: the bytes in [Start, End) are replaced by
// NewText. Ranges are byte offsets into the file's current text; the
// transport layer converts wire positions with PositionToByteIndex
// before building edits.
type Edit struct {
	Start   miniyaml.ByteIndex
	End     miniyaml.ByteIndex
	NewText string
}

// ApplyEdits splices a batch of non-overlapping edits into a file's
// text atomically: the new text is computed first and installed with a
// single input mutation, so no snapshot can observe a half-applied
// batch. Edits are applied back-to-front so earlier ranges stay valid.
func (db *Database) ApplyEdits(id miniyaml.FileId, edits []Edit) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	val, ok := db.view.inputValue(queryKey{name: inFileText, file: id})
	if !ok {
		return ErrUnknownFile
	}
	text := val.(string)

	sorted := append([]Edit(nil), edits...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	for i, e := range sorted {
		span := miniyaml.ByteSpan{File: id, Start: e.Start, End: e.End}
		if _, ok := span.Slice(text); !ok {
			return fmt.Errorf("%w: [%d, %d) in %d bytes", ErrInvalidEdit, e.Start, e.End, len(text))
		}
		if i > 0 && sorted[i-1].Start < e.End {
			return fmt.Errorf("%w: overlapping ranges", ErrInvalidEdit)
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	// Re-walk front-to-back for the actual splice.
	forward := append([]Edit(nil), sorted...)
	sort.Slice(forward, func(i, j int) bool { return forward[i].Start < forward[j].Start })
	cur := 0
	for _, e := range forward {
		b.WriteString(text[cur:e.Start])
		b.WriteString(e.NewText)
		cur = int(e.End)
	}
	b.WriteString(text[cur:])

	db.setTextLocked(id, b.String())
	return nil
}
