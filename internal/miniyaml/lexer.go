package miniyaml

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token. The enumeration is closed: the
// lexer emits nothing outside this list.
type TokenKind int

const (
	Error      TokenKind = iota // unlexable input, processing continued
	Whitespace                  // run of whitespace, never crossing a line end
	Comment                     // '#' through end of line (terminator excluded)
	True                        // "true", case-insensitive
	Yes                         // "yes", case-insensitive
	False                       // "false", case-insensitive
	No                          // "no", case-insensitive
	Identifier
	IntLiteral
	FloatLiteral
	Symbol
	Tilde      // '~'
	Bang       // '!'
	At         // '@'
	Caret      // '^'
	Colon      // ':'
	LogicalOr  // '||'
	LogicalAnd // '&&'
	EndOfLine  // '\n' or '\r\n'
)

func (k TokenKind) String() string {
	switch k {
	case Error:
		return "Error"
	case Whitespace:
		return "Whitespace"
	case Comment:
		return "Comment"
	case True:
		return "True"
	case Yes:
		return "Yes"
	case False:
		return "False"
	case No:
		return "No"
	case Identifier:
		return "Identifier"
	case IntLiteral:
		return "IntLiteral"
	case FloatLiteral:
		return "FloatLiteral"
	case Symbol:
		return "Symbol"
	case Tilde:
		return "Tilde"
	case Bang:
		return "Bang"
	case At:
		return "At"
	case Caret:
		return "Caret"
	case Colon:
		return "Colon"
	case LogicalOr:
		return "LogicalOr"
	case LogicalAnd:
		return "LogicalAnd"
	case EndOfLine:
		return "EndOfLine"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// IsKeyword reports whether the kind is one of the boolean keywords.
func (k TokenKind) IsKeyword() bool {
	return k == True || k == Yes || k == False || k == No
}

// Token is a classified slice of the source, identified by its span.
// The literal text is re-derivable from the span and the source.
type Token struct {
	Kind TokenKind
	Span ByteSpan
}

// Slice returns the token's text, or "" when the span does not fit src.
func (t Token) Slice(src string) string {
	s, _ := t.Span.Slice(src)
	return s
}

// Lexer scans MiniYaml source into tokens in a single forward pass with
// one character of lookahead. The produced tokens tile the input: spans
// are strictly increasing, contiguous, and cover every byte exactly once.
type Lexer struct {
	file  FileId
	src   string
	start int // byte index where the current token began
	cur   int // byte index of the next unread character
	toks  []Token
	diags []Diagnostic
}

// NewLexer creates a lexer over src, attributing spans to file.
func NewLexer(file FileId, src string) *Lexer {
	return &Lexer{file: file, src: src}
}

// Tokenize scans src in one call, returning the tokens together with the
// diagnostics raised while lexing.
func Tokenize(file FileId, src string) ([]Token, []Diagnostic) {
	l := NewLexer(file, src)
	toks := l.Scan()
	return toks, l.TakeDiagnostics()
}

// TakeDiagnostics returns the accumulated diagnostics and clears the
// batch, so one lexing pass can be drained without re-lexing.
func (l *Lexer) TakeDiagnostics() []Diagnostic {
	d := l.diags
	l.diags = nil
	return d
}

// Scan tokenizes the entire source.
func (l *Lexer) Scan() []Token {
	for !l.isAtEnd() {
		l.scanToken()
	}
	return l.toks
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (rune, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.cur:])
	return r, true
}

func (l *Lexer) advance() (rune, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	r, sz := utf8.DecodeRuneInString(l.src[l.cur:])
	l.cur += sz
	return r, true
}

func (l *Lexer) rewindToStart() { l.cur = l.start }

func (l *Lexer) emit(k TokenKind) Token {
	tok := Token{Kind: k, Span: ByteSpan{File: l.file, Start: ByteIndex(l.start), End: ByteIndex(l.cur)}}
	l.toks = append(l.toks, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) report(sev Severity, code, msg string) {
	l.diags = append(l.diags, Diagnostic{
		Severity: sev,
		Code:     code,
		Message:  msg,
		Primary:  ByteSpan{File: l.file, Start: ByteIndex(l.start), End: ByteIndex(l.cur)},
	})
}

// character classes

func isSymbolRune(r rune) bool {
	switch r {
	case '~', '!', '@', ':', '|', '&', '#', '^':
		return true
	}
	return false
}

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isAsciiDigit(r rune) bool { return r >= '0' && r <= '9' }

func isWordRune(r rune) bool {
	return r == '_' || r == '-' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isLineEnd(r rune) bool { return r == '\n' || r == '\r' }

// scanToken dispatches on the first character. Rule order matters: the
// dedicated single-character kinds win over symbol-run consumption, and
// the '-' rules win over identifier-or-number consumption.
func (l *Lexer) scanToken() {
	l.start = l.cur
	ch, ok := l.advance()
	if !ok {
		return
	}

	switch ch {
	case '~':
		l.emit(Tilde)
		return
	case '!':
		l.emit(Bang)
		return
	case '@':
		l.emit(At)
		return
	case '^':
		l.emit(Caret)
		return
	case ':':
		l.emit(Colon)
		return
	case '\n':
		l.emit(EndOfLine)
		return
	case '\r':
		if next, ok := l.peek(); ok && next == '\n' {
			l.advance()
			l.emit(EndOfLine)
			return
		}
		l.emit(Error)
		l.report(SeverityWarning, CodeInvalidNewline, `invalid newline sequence: bare '\r' not followed by '\n'`)
		return
	case '-':
		// A dash before whitespace is a bullet; a dash before an
		// identifier start removes an inherited property. Either way it
		// is its own Symbol token and does not begin an identifier.
		if next, ok := l.peek(); ok && (unicode.IsSpace(next) || isIdentStart(next)) {
			l.emit(Symbol)
			return
		}
		l.rewindToStart()
		l.scanWord()
		return
	}

	if isSymbolRune(ch) {
		l.rewindToStart()
		l.consumeSymbol()
		return
	}
	if unicode.IsSpace(ch) {
		l.rewindToStart()
		l.consumeWhitespace()
		return
	}
	if isAsciiDigit(ch) || isIdentStart(ch) {
		l.rewindToStart()
		l.scanWord()
		return
	}

	// Anything else (non-ASCII text, stray punctuation) is a generic
	// Symbol; MiniYaml does not classify the full Unicode repertoire.
	l.emit(Symbol)
}

// consumeSymbol consumes a maximal run of symbol-set characters. Given
// the single-character dispatch above, this path only begins with '|',
// '&', or '#'.
func (l *Lexer) consumeSymbol() {
	for {
		r, ok := l.peek()
		if !ok || !isSymbolRune(r) {
			break
		}
		l.advance()
	}
	run := l.src[l.start:l.cur]
	if run == "" {
		// Precondition violated: the dispatcher sent a non-symbol here.
		l.advance()
		l.emit(Error)
		l.report(SeverityBug, CodeEmptySymbolRun, "consumeSymbol invoked on a non-symbol character")
		return
	}
	switch {
	case run == "&&":
		l.emit(LogicalAnd)
	case run == "||":
		l.emit(LogicalOr)
	case run[0] == '#':
		// Comment: extend through the rest of the line, excluding the
		// terminator itself.
		for {
			r, ok := l.peek()
			if !ok || isLineEnd(r) {
				break
			}
			l.advance()
		}
		l.emit(Comment)
	default:
		l.emit(Symbol)
	}
}

// consumeWhitespace consumes whitespace up to (never across) a line end.
func (l *Lexer) consumeWhitespace() {
	for {
		r, ok := l.peek()
		if !ok || isLineEnd(r) || !unicode.IsSpace(r) {
			break
		}
		l.advance()
	}
	l.emit(Whitespace)
}

// scanWord consumes an identifier-or-number run and classifies the slice.
func (l *Lexer) scanWord() {
	for {
		r, ok := l.peek()
		if !ok || !isWordRune(r) {
			break
		}
		l.advance()
	}
	word := l.src[l.start:l.cur]
	l.emit(classifyWord(word))
}

// classifyWord decides what an identifier-or-number run is. Runs that
// look numeric but fail 64-bit parsing degrade to Identifier rather
// than erroring; downstream layers see them as plain text.
func classifyWord(word string) TokenKind {
	switch strings.ToLower(word) {
	case "true":
		return True
	case "false":
		return False
	case "yes":
		return Yes
	case "no":
		return No
	}

	allDashes := true
	numeric := len(word) > 0
	hasDot := false
	for _, r := range word {
		if r != '-' {
			allDashes = false
		}
		switch {
		case r == '.':
			hasDot = true
		case r == '-' || isAsciiDigit(r):
		default:
			numeric = false
		}
	}
	if allDashes && len(word) > 0 {
		return Identifier
	}
	if numeric {
		if hasDot {
			if _, err := strconv.ParseFloat(word, 64); err == nil {
				return FloatLiteral
			}
			return Identifier
		}
		if _, err := strconv.ParseInt(word, 10, 64); err == nil {
			return IntLiteral
		}
		return Identifier
	}
	return Identifier
}
