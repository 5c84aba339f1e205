// Package scan classifies and tokenizes the physical lines of a DCM file.
//
// Classification is a pure function of the line text: each line is a blank
// line, a comment line (`!`, `.` or `*` prefix) or a keyword line whose first
// whitespace-delimited token is the keyword. Comment lines beginning with
// `*SST`, `*SSTX` or `*SSTY` are vendor metadata; they stay comments here and
// are never handed to the parser as structural directives.
package scan

import (
	"fmt"
	"strings"
)

// LineKind discriminates the three shapes a physical line can take.
type LineKind int

const (
	// LineBlank is a line holding nothing but whitespace.
	LineBlank LineKind = iota
	// LineComment is a line starting with `!`, `.` or `*`.
	LineComment
	// LineKeyword is any other non-empty line; its first token is the keyword.
	LineKeyword
)

// Line is one classified physical line of input.
type Line struct {
	Kind    LineKind
	Keyword string // first token, only for LineKeyword
	Rest    string // trimmed remainder after the keyword
	Text    string // original line text, untrimmed, for verbatim round trips
	Number  int    // 1-based position in the input
}

// Comment returns the comment text with the prefix character and surrounding
// whitespace removed. Only meaningful for LineComment lines.
func (l Line) Comment() string {
	trimmed := strings.TrimSpace(l.Text)
	if trimmed == "" {
		return ""
	}
	return strings.TrimSpace(trimmed[1:])
}

// Classify tags a single physical line. The line number is retained on the
// result so downstream errors can point at the source.
func Classify(text string, number int) Line {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Line{Kind: LineBlank, Text: text, Number: number}
	}

	switch trimmed[0] {
	case '!', '.', '*':
		return Line{Kind: LineComment, Text: text, Number: number}
	}

	keyword, rest, _ := strings.Cut(trimmed, " ")
	// Keywords are never tab-separated in practice, but tolerate it.
	if i := strings.IndexAny(keyword, "\t"); i >= 0 {
		rest = keyword[i:] + " " + rest
		keyword = keyword[:i]
	}
	return Line{
		Kind:    LineKeyword,
		Keyword: keyword,
		Rest:    strings.TrimSpace(rest),
		Text:    text,
		Number:  number,
	}
}

// TokenizationError reports a quoted string literal left unterminated at the
// end of a line.
type TokenizationError struct {
	Line int
}

func (e *TokenizationError) Error() string {
	return fmt.Sprintf("line %d: unterminated string literal", e.Line)
}

// Fields splits a line fragment into whitespace-separated tokens. A
// `"`-delimited run is one token including any embedded whitespace, with the
// enclosing quotes stripped. Quotes may appear mid-line; non-ASCII content is
// passed through untouched.
func Fields(s string, line int) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	inToken := false

	flush := func() {
		if inToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for _, r := range s {
		switch {
		case r == '"':
			if inQuote {
				tokens = append(tokens, cur.String())
				cur.Reset()
				inToken = false
				inQuote = false
			} else {
				flush()
				inQuote = true
				inToken = true
			}
		case inQuote:
			cur.WriteRune(r)
		case r == ' ' || r == '\t':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	if inQuote {
		return nil, &TokenizationError{Line: line}
	}
	flush()
	return tokens, nil
}
