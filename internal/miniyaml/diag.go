package miniyaml

import (
	"fmt"
	"strings"
)

// Severity orders diagnostics from internal faults down to advice.
type Severity int

const (
	SeverityBug Severity = iota
	SeverityError
	SeverityWarning
	SeverityHelp
	SeverityNote
)

func (s Severity) String() string {
	switch s {
	case SeverityBug:
		return "bug"
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityHelp:
		return "help"
	case SeverityNote:
		return "note"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic codes shared by the pipeline stages.
const (
	CodeInvalidNewline    = "W0004" // bare \r not followed by \n
	CodeEmptySymbolRun    = "B0001" // consumeSymbol entered off a non-symbol
	CodeBangInKey         = "E0001" // '!' before the key terminator
	CodeExpectedAfterAt   = "E0002" // '@' not followed by identifier/number
	CodeExpectedAfterHat  = "E0003" // '^' not followed by identifier
	CodeWhitespaceLine    = "W0005" // whitespace-only line dropped
	CodeMixedIndent       = "E0004" // tabs and spaces in one indentation
	CodeIndentNotMultiple = "E0005" // space indentation not a multiple of 4
	CodeIndentTooDeep     = "E0006" // child indented by more than one step
	CodeNoParent          = "E0007" // dedent with no matching ancestor
	CodeMissingKey        = "E0008" // ':' with no key tokens before it
)

// Label attaches a message to a secondary span of a diagnostic.
type Label struct {
	Span    ByteSpan
	Message string
}

// Diagnostic is one report from a pipeline stage. Stages accumulate
// diagnostics internally; callers drain them with TakeDiagnostics.
type Diagnostic struct {
	Severity Severity
	Code     string
	Message  string
	Primary  ByteSpan
	Labels   []Label
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s]: %s", d.Severity, d.Code, d.Message)
}

// RenderDiagnostic formats a diagnostic as a caret snippet against the
// source text, with up to one line of context on each side:
//
//	error[E0004] at 3:5: indentation mixes tabs and spaces
//
//	   2 | Unit:
//	   3 | 	  Name: x
//	     |     ^
//	   4 | Other:
//
// Line/column are derived from the primary span and clamped so a stale
// or out-of-range span cannot break rendering.
func RenderDiagnostic(d Diagnostic, src string) string {
	line, col := locate(src, d.Primary.Start)
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line > len(lines) {
		line = len(lines)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s] at %d:%d: %s\n\n", d.Severity, d.Code, line, col, d.Message)
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, strings.TrimRight(lines[line-2], "\r"))
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, strings.TrimRight(lines[line-1], "\r"))
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) && strings.TrimSpace(lines[line]) != "" {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, strings.TrimRight(lines[line], "\r"))
	}
	for _, lb := range d.Labels {
		fmt.Fprintf(&b, "     = %s\n", lb.Message)
	}
	return b.String()
}

// locate converts a byte offset to 1-based line and column (in runes).
func locate(src string, at ByteIndex) (line, col int) {
	off := int(at)
	if off < 0 {
		off = 0
	}
	if off > len(src) {
		off = len(src)
	}
	line, col = 1, 1
	for i, r := range src {
		if i >= off {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
