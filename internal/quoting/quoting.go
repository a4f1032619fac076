// Package quoting holds the quoting rules shared by every string the agent
// hands to the auto-editor command line, plus the tokenizer that reverses them
// when a command string is executed without a shell.
package quoting

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned by Split when a double quote is never closed.
var ErrUnterminatedQuote = errors.New("unterminated quote in command")

// Quote wraps v in double quotes. An inner double quote is escaped with a
// backslash, and any run of backslashes that ends up before a quote is
// doubled, so `C:\Temp Files\` becomes `"C:\Temp Files\\"`.
func Quote(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	slashes := 0
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '\\':
			slashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, slashes+1))
			slashes = 0
		default:
			slashes = 0
		}
		b.WriteByte(c)
	}
	b.WriteString(strings.Repeat(`\`, slashes))
	b.WriteByte('"')
	return b.String()
}

// HasSpace reports whether v contains any whitespace rune.
func HasSpace(v string) bool {
	return strings.IndexFunc(v, unicode.IsSpace) >= 0
}

// IsQuoted reports whether v is already fully wrapped in double quotes.
func IsQuoted(v string) bool {
	return len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`)
}

// IsPlaceholder reports whether v is a preview placeholder such as <clip> or
// <path>.fcpxml.
func IsPlaceholder(v string) bool {
	return strings.HasPrefix(v, "<") && strings.Contains(v, ">")
}

// MaybeQuote quotes v only when it contains whitespace. Quoted values and
// placeholders pass through untouched.
func MaybeQuote(v string) string {
	if IsQuoted(v) || IsPlaceholder(v) {
		return v
	}
	if HasSpace(v) {
		return Quote(v)
	}
	return v
}

// Split tokenizes a command string produced by this package. Whitespace
// separates tokens and double quotes group. Backslashes are literal unless
// they precede a double quote: then 2n of them stand for n backslashes and a
// grouping quote, and 2n+1 for n backslashes and a literal quote. Windows
// paths survive either way.
func Split(command string) ([]string, error) {
	var (
		tokens  []string
		buf     strings.Builder
		inQuote bool
		started bool
	)

	runes := []rune(command)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\\':
			n := 1
			for i+n < len(runes) && runes[i+n] == '\\' {
				n++
			}
			started = true
			if i+n == len(runes) || runes[i+n] != '"' {
				buf.WriteString(strings.Repeat(`\`, n))
				i += n - 1
				continue
			}
			buf.WriteString(strings.Repeat(`\`, n/2))
			if n%2 == 1 {
				buf.WriteRune('"')
				i += n
			} else {
				i += n - 1
			}
		case r == '"':
			inQuote = !inQuote
			started = true
		case unicode.IsSpace(r) && !inQuote:
			if started {
				tokens = append(tokens, buf.String())
				buf.Reset()
				started = false
			}
		default:
			buf.WriteRune(r)
			started = true
		}
	}

	if inQuote {
		return nil, ErrUnterminatedQuote
	}
	if started {
		tokens = append(tokens, buf.String())
	}
	return tokens, nil
}
