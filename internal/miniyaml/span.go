// Package miniyaml implements the MiniYaml parse pipeline: a tokenizer,
// a line grouper that assembles tokens into logical lines, and a tree
// builder that reconstructs nesting from indentation. All three stages
// are total: malformed input produces diagnostics, never a failed parse.
package miniyaml

import "unicode/utf8"

// FileId is an opaque handle identifying a tracked file. Ids are stable
// for the file's lifetime and never reused while the file is live.
type FileId uint32

// ByteIndex is a byte offset into a file's UTF-8 text.
type ByteIndex int

// ByteSpan is a half-open byte interval [Start, End) scoped to one file.
type ByteSpan struct {
	File  FileId
	Start ByteIndex
	End   ByteIndex
}

// NewByteSpan builds a span; Start must not exceed End.
func NewByteSpan(file FileId, start, end ByteIndex) ByteSpan {
	if start > end {
		start, end = end, start
	}
	return ByteSpan{File: file, Start: start, End: end}
}

// Len returns the span length in bytes.
func (s ByteSpan) Len() int { return int(s.End - s.Start) }

// Contains reports whether the byte index falls inside the half-open span.
func (s ByteSpan) Contains(i ByteIndex) bool { return i >= s.Start && i < s.End }

// Slice extracts the spanned text. It returns ok=false when either bound
// is out of range or does not land on a UTF-8 character boundary; it
// never panics or returns a torn slice.
func (s ByteSpan) Slice(text string) (string, bool) {
	if s.Start < 0 || int(s.End) > len(text) || s.Start > s.End {
		return "", false
	}
	if !boundary(text, int(s.Start)) || !boundary(text, int(s.End)) {
		return "", false
	}
	return text[s.Start:s.End], true
}

func boundary(text string, i int) bool {
	if i == 0 || i == len(text) {
		return true
	}
	return utf8.RuneStart(text[i])
}

// Position is a zero-based (line, character) pair. Character counts
// Unicode scalar values from the line start, not bytes.
type Position struct {
	Line      int
	Character int
}
