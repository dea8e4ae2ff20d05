// Package cmdline splits operator input into arguments using shell-like quoting.
package cmdline

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnterminatedQuote is wrapped by SyntaxError when a quote is never closed.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// SyntaxError reports where a command line could not be split.
type SyntaxError struct {
	Offset int  // byte offset of the opening quote
	Quote  rune // '"' or '\''
	Err    error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%v: %c opened at offset %d", e.Err, e.Quote, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

type state int

const (
	stateUnquoted state = iota
	stateDouble
	stateSingle
	stateEscape       // after a backslash outside quotes
	stateDoubleEscape // after a backslash inside double quotes
)

// Split tokenizes line:
//   - "..." is literal except that a backslash yields the following character
//   - '...' is fully literal
//   - a backslash outside quotes yields the following character
//   - whitespace separates tokens; adjacent fragments join into one token
//
// Empty or whitespace-only input yields an empty slice. A quote that is never
// closed yields a *SyntaxError and no tokens. Split reads each rune once, so it
// always terminates. Bytes that are not valid UTF-8 are copied through unchanged.
func Split(line string) ([]string, error) {
	args := []string{}
	var (
		cur      strings.Builder
		inToken  bool
		st       = stateUnquoted
		quoteAt  int
		quoteRun rune
	)

	flush := func() {
		if inToken {
			args = append(args, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(line); {
		start := i
		r, size := utf8.DecodeRuneInString(line[i:])
		raw := line[i : i+size]
		i += size

		switch st {
		case stateUnquoted:
			switch {
			case unicode.IsSpace(r):
				flush()
			case r == '"':
				st, quoteAt, quoteRun, inToken = stateDouble, start, r, true
			case r == '\'':
				st, quoteAt, quoteRun, inToken = stateSingle, start, r, true
			case r == '\\':
				st, inToken = stateEscape, true
			default:
				cur.WriteString(raw)
				inToken = true
			}

		case stateEscape:
			cur.WriteString(raw)
			st = stateUnquoted

		case stateDouble:
			switch r {
			case '"':
				st = stateUnquoted
			case '\\':
				st = stateDoubleEscape
			default:
				cur.WriteString(raw)
			}

		case stateDoubleEscape:
			cur.WriteString(raw)
			st = stateDouble

		case stateSingle:
			if r == '\'' {
				st = stateUnquoted
			} else {
				cur.WriteString(raw)
			}
		}
	}

	switch st {
	case stateDouble, stateDoubleEscape, stateSingle:
		return nil, &SyntaxError{Offset: quoteAt, Quote: quoteRun, Err: ErrUnterminatedQuote}
	case stateEscape:
		// Nothing left to escape: keep the backslash.
		cur.WriteByte('\\')
	}
	flush()
	return args, nil
}

// Quote returns s in a form that Split turns back into exactly s.
func Quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsFunc(s, needsQuoting) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Join quotes each argument and joins them with single spaces.
func Join(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = Quote(a)
	}
	return strings.Join(quoted, " ")
}

func needsQuoting(r rune) bool {
	return unicode.IsSpace(r) || r == '"' || r == '\'' || r == '\\'
}
