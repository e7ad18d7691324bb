package condition

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrSyntax is matched by every *ParseError via errors.Is.
var ErrSyntax = errors.New("condition: syntax error")

// snippetWidth is how many bytes of the offending input a ParseError keeps.
// The cut moves back to a rune boundary.
const snippetWidth = 16

// ParseError reports where an expression failed to parse.
type ParseError struct {
	Expr    string // The full expression
	Offset  int    // Byte offset of the failure
	Snippet string // Offending substring starting at Offset
	Msg     string
}

func newParseError(expr string, offset int, format string, args ...any) *ParseError {
	if offset > len(expr) {
		offset = len(expr)
	}
	snippet := expr[offset:]
	if len(snippet) > snippetWidth {
		cut := snippetWidth
		for cut > 0 && !utf8.RuneStart(snippet[cut]) {
			cut--
		}
		snippet = snippet[:cut]
	}
	return &ParseError{
		Expr:    expr,
		Offset:  offset,
		Snippet: snippet,
		Msg:     fmt.Sprintf(format, args...),
	}
}

func (e *ParseError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("condition: %s at end of %q", e.Msg, e.Expr)
	}
	return fmt.Sprintf("condition: %s at offset %d near %q", e.Msg, e.Offset, e.Snippet)
}

// Is reports whether target is ErrSyntax.
func (e *ParseError) Is(target error) bool {
	return target == ErrSyntax
}
