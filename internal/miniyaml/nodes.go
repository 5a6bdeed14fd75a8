package miniyaml

import "unicode/utf8"

// Node is one componentized logical source line: optional indentation,
// key tokens, the ':' terminator, value tokens, and a trailing comment.
// A node with none of these is the empty-line sentinel.
//
// Invariant: KeyTerminator is nil whenever KeyTokens is empty.
type Node struct {
	Indentation   *Token
	KeyTokens     []Token
	KeyTerminator *Token
	ValueTokens   []Token
	Comment       *Token
}

// IsEmpty reports whether the node is the empty-line sentinel.
func (n *Node) IsEmpty() bool {
	return n.Indentation == nil && len(n.KeyTokens) == 0 && n.KeyTerminator == nil &&
		len(n.ValueTokens) == 0 && n.Comment == nil
}

// IsWhitespaceOnly reports whether the line holds indentation and
// nothing else.
func (n *Node) IsWhitespaceOnly() bool {
	return n.Indentation != nil && len(n.KeyTokens) == 0 && n.KeyTerminator == nil &&
		len(n.ValueTokens) == 0 && n.Comment == nil
}

// IsCommentOnly reports whether the line carries a comment and no key or
// value. Comment-only lines never become parent candidates.
func (n *Node) IsCommentOnly() bool {
	return n.Comment != nil && len(n.KeyTokens) == 0 && len(n.ValueTokens) == 0
}

// IndentationLevel returns the length of the indentation token in
// characters (Unicode scalars), or 0 when the line is unindented.
func (n *Node) IndentationLevel(src string) int {
	if n.Indentation == nil {
		return 0
	}
	return utf8.RuneCountInString(n.Indentation.Slice(src))
}

// KeySpan covers the first through last key token.
func (n *Node) KeySpan() (ByteSpan, bool) {
	if len(n.KeyTokens) == 0 {
		return ByteSpan{}, false
	}
	first, last := n.KeyTokens[0].Span, n.KeyTokens[len(n.KeyTokens)-1].Span
	return ByteSpan{File: first.File, Start: first.Start, End: last.End}, true
}

// ValueSpan covers the first through last value token.
func (n *Node) ValueSpan() (ByteSpan, bool) {
	if len(n.ValueTokens) == 0 {
		return ByteSpan{}, false
	}
	first, last := n.ValueTokens[0].Span, n.ValueTokens[len(n.ValueTokens)-1].Span
	return ByteSpan{File: first.File, Start: first.Start, End: last.End}, true
}

// Span covers the whole line, from the first present component to the
// last. ok=false for the empty-line sentinel.
func (n *Node) Span() (ByteSpan, bool) {
	var spans []ByteSpan
	if n.Indentation != nil {
		spans = append(spans, n.Indentation.Span)
	}
	if ks, ok := n.KeySpan(); ok {
		spans = append(spans, ks)
	}
	if n.KeyTerminator != nil {
		spans = append(spans, n.KeyTerminator.Span)
	}
	if vs, ok := n.ValueSpan(); ok {
		spans = append(spans, vs)
	}
	if n.Comment != nil {
		spans = append(spans, n.Comment.Span)
	}
	if len(spans) == 0 {
		return ByteSpan{}, false
	}
	out := spans[0]
	for _, sp := range spans[1:] {
		if sp.Start < out.Start {
			out.Start = sp.Start
		}
		if sp.End > out.End {
			out.End = sp.End
		}
	}
	return out, true
}

// KeyText returns the raw key text (between the first and last key
// token), or "" when the node has no key.
func (n *Node) KeyText(src string) string {
	ks, ok := n.KeySpan()
	if !ok {
		return ""
	}
	s, _ := ks.Slice(src)
	return s
}

// ValueText returns the raw value text, or "" when the node has none.
func (n *Node) ValueText(src string) string {
	vs, ok := n.ValueSpan()
	if !ok {
		return ""
	}
	s, _ := vs.Slice(src)
	return s
}

// Nodeizer groups a token stream into logical lines. It walks the
// materialized token vector with index-based lookahead: classifying the
// current token may peek at the next one without consuming it.
type Nodeizer struct {
	file  FileId
	toks  []Token
	pos   int
	diags []Diagnostic
}

// NewNodeizer creates a grouper over toks, attributing diagnostics to file.
func NewNodeizer(file FileId, toks []Token) *Nodeizer {
	return &Nodeizer{file: file, toks: toks}
}

// Nodeize groups toks in one call, returning nodes and the diagnostics
// raised while grouping.
func Nodeize(file FileId, toks []Token) ([]Node, []Diagnostic) {
	nz := NewNodeizer(file, toks)
	nodes := nz.Run()
	return nodes, nz.TakeDiagnostics()
}

// TakeDiagnostics returns the accumulated diagnostics and clears the batch.
func (nz *Nodeizer) TakeDiagnostics() []Diagnostic {
	d := nz.diags
	nz.diags = nil
	return d
}

func (nz *Nodeizer) peek() (Token, bool) {
	if nz.pos >= len(nz.toks) {
		return Token{}, false
	}
	return nz.toks[nz.pos], true
}

func (nz *Nodeizer) report(sev Severity, code, msg string, span ByteSpan) {
	nz.diags = append(nz.diags, Diagnostic{Severity: sev, Code: code, Message: msg, Primary: span})
}

// Run consumes the whole token stream. Every token lands in exactly one
// node; an EndOfLine closes the current node (and is not retained), and
// end-of-input flushes a final partial line if one is pending.
func (nz *Nodeizer) Run() []Node {
	var nodes []Node
	var cur Node
	started := false // any token seen since the last flush, EndOfLine included

	flush := func() {
		nodes = append(nodes, cur)
		cur = Node{}
		started = false
	}

	for nz.pos < len(nz.toks) {
		tok := nz.toks[nz.pos]
		nz.pos++

		if tok.Kind == EndOfLine {
			flush()
			continue
		}
		started = true

		inValue := cur.KeyTerminator != nil
		switch tok.Kind {
		case Whitespace:
			if cur.IsEmpty() {
				t := tok
				cur.Indentation = &t
			}
			// Interior whitespace only separates tokens. Spans are
			// contiguous, so KeyText/ValueText reconstruct it from the
			// first-to-last token slice without storing it.
		case Comment:
			if cur.Comment == nil {
				t := tok
				cur.Comment = &t
			}
		case Colon:
			switch {
			case inValue:
				// Only the first colon terminates the key.
				cur.ValueTokens = append(cur.ValueTokens, tok)
			case len(cur.KeyTokens) > 0:
				t := tok
				cur.KeyTerminator = &t
			default:
				// A terminator with no key to terminate. Retain the
				// colon as key content so the line is not lost.
				nz.report(SeverityError, CodeMissingKey, "key terminator ':' with no key", tok.Span)
				cur.KeyTokens = append(cur.KeyTokens, tok)
			}
		case Bang:
			if !inValue {
				nz.report(SeverityError, CodeBangInKey, "'!' is not valid in key position", tok.Span)
				cur.KeyTokens = append(cur.KeyTokens, tok)
			} else {
				cur.ValueTokens = append(cur.ValueTokens, tok)
			}
		case At:
			// Namespaced-trait syntax, Name@Suffix: the '@' must be
			// followed by an identifier or a numeric literal.
			if next, ok := nz.peek(); !ok ||
				(next.Kind != Identifier && next.Kind != IntLiteral && next.Kind != FloatLiteral) {
				nz.report(SeverityError, CodeExpectedAfterAt, "expected an identifier or number after '@'", tok.Span)
			}
			if inValue {
				cur.ValueTokens = append(cur.ValueTokens, tok)
			} else {
				cur.KeyTokens = append(cur.KeyTokens, tok)
			}
		case Caret:
			// Inheritance syntax, ^ParentName.
			if next, ok := nz.peek(); !ok || next.Kind != Identifier {
				nz.report(SeverityError, CodeExpectedAfterHat, "expected an identifier after '^'", tok.Span)
			}
			if inValue {
				cur.ValueTokens = append(cur.ValueTokens, tok)
			} else {
				cur.KeyTokens = append(cur.KeyTokens, tok)
			}
		default:
			if inValue {
				cur.ValueTokens = append(cur.ValueTokens, tok)
			} else {
				cur.KeyTokens = append(cur.KeyTokens, tok)
			}
		}
	}

	if started || !cur.IsEmpty() {
		flush()
	}
	return nodes
}
