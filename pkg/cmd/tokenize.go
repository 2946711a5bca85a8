package cmd

import (
	"iter"
	"slices"
	"strings"
	"unicode"
)

// Tokens returns the shell-like tokens of line as a lazy sequence. Every range
// over the result re-scans line, so the sequence can be consumed any number
// of times.
//
// Tokens are separated by whitespace. Text inside matching single or double
// quotes belongs to the current token with the quotes removed, so `a"b c"`
// yields `ab c` and `""` yields an empty token. An unterminated quote runs to
// the end of line. There is no escape character.
func Tokens(line string) iter.Seq[string] {
	return func(yield func(string) bool) {
		var (
			buf     strings.Builder
			inToken bool
			quote   rune
		)
		for _, r := range line {
			switch {
			case quote != 0:
				if r == quote {
					quote = 0
					continue
				}
				buf.WriteRune(r)
			case r == '"' || r == '\'':
				quote = r
				inToken = true
			case unicode.IsSpace(r):
				if !inToken {
					continue
				}
				if !yield(buf.String()) {
					return
				}
				buf.Reset()
				inToken = false
			default:
				buf.WriteRune(r)
				inToken = true
			}
		}
		if inToken {
			yield(buf.String())
		}
	}
}

// Split collects Tokens(line) into a slice.
func Split(line string) []string {
	return slices.Collect(Tokens(line))
}
