// Package token tokenizes a command template string into an ordered,
// immutable sequence of placeholder and literal tokens, and applies the
// path-derived transforms (BASENAME, DIRNAME, ...) those placeholders name.
package token

import (
	"strconv"
	"strings"

	"github.com/riftwood/parallel/internal/perr"
)

// Kind identifies the category of a Token.
type Kind int

const (
	Literal Kind = iota
	Placeholder
	Basename
	Dirname
	BaseAndExt
	RemoveExtension
	RemoveSuffix
	BaseAndSuffix
	Job
	Slot
	Total
)

// Token is one element of a tokenized Template. Text carries the verbatim
// bytes for Literal, and the suffix pattern for RemoveSuffix/BaseAndSuffix.
type Token struct {
	Kind Kind
	Text string
}

// InputDependent reports whether a token's expansion depends on the
// per-job input text or the job/slot counters rather than being a fixed
// literal — the distinction the Command Builder uses to decide whether to
// auto-append the raw input.
func (t Token) InputDependent() bool {
	switch t.Kind {
	case Placeholder, Basename, Dirname, BaseAndExt, RemoveExtension, RemoveSuffix, BaseAndSuffix, Job, Slot:
		return true
	default:
		return false
	}
}

// LineAt resolves the Nth (1-based) line of the materialized spool, used
// to satisfy INDEXED placeholder references at tokenize time.
type LineAt func(n int) (string, bool)

// Tokenize parses template into a Token sequence. total is the number of
// spooled logical inputs, used both to materialize {##} and to bound-check
// INDEXED references. lineAt resolves INDEXED references against the spool.
func Tokenize(template string, total int, lineAt LineAt) ([]Token, error) {
	if err := checkQuoteBalance(template); err != nil {
		return nil, err
	}

	var tokens []Token
	var lit strings.Builder
	flushLit := func() {
		if lit.Len() > 0 {
			tokens = append(tokens, Token{Kind: Literal, Text: lit.String()})
			lit.Reset()
		}
	}

	runes := []rune(template)
	i := 0
	for i < len(runes) {
		if runes[i] != '{' {
			lit.WriteRune(runes[i])
			i++
			continue
		}
		// Find the matching '}'.
		end := -1
		for j := i + 1; j < len(runes); j++ {
			if runes[j] == '}' {
				end = j
				break
			}
		}
		if end == -1 {
			// Unterminated '{' at end of template: trailing literal, verbatim.
			lit.WriteString(string(runes[i:]))
			i = len(runes)
			break
		}
		spec := string(runes[i+1 : end])
		tok, err := matchToken(spec, total, lineAt)
		if err != nil {
			return nil, err
		}
		if tok.Kind == Literal && tok.Text == "" {
			// Unrecognized spec: emit the braces verbatim.
			lit.WriteString("{" + spec + "}")
		} else {
			flushLit()
			tokens = append(tokens, tok)
		}
		i = end + 1
	}
	flushLit()
	return tokens, nil
}

// matchToken classifies the content of a single {...} placeholder spec.
func matchToken(spec string, total int, lineAt LineAt) (Token, error) {
	switch spec {
	case "":
		return Token{Kind: Placeholder}, nil
	case ".":
		return Token{Kind: RemoveExtension}, nil
	case "/":
		return Token{Kind: Basename}, nil
	case "//":
		return Token{Kind: Dirname}, nil
	case "/.":
		return Token{Kind: BaseAndExt}, nil
	case "#":
		return Token{Kind: Job}, nil
	case "%":
		return Token{Kind: Slot}, nil
	case "##":
		return Token{Kind: Literal, Text: strconv.Itoa(total)}, nil
	}
	if strings.HasPrefix(spec, "/^") {
		return Token{Kind: BaseAndSuffix, Text: spec[2:]}, nil
	}
	if strings.HasPrefix(spec, "^") {
		return Token{Kind: RemoveSuffix, Text: spec[1:]}, nil
	}
	if n, inner, ok := splitIndexed(spec); ok {
		return resolveIndexed(n, inner, total, lineAt)
	}
	// Unrecognized: caller emits the verbatim braces.
	return Token{Kind: Literal, Text: ""}, nil
}

// splitIndexed recognizes "N" or "N<spec>" where N is a decimal integer.
func splitIndexed(spec string) (n int, inner string, ok bool) {
	i := 0
	for i < len(spec) && spec[i] >= '0' && spec[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	digits := spec[:i]
	rest := spec[i:]
	num, err := strconv.Atoi(digits)
	if err != nil {
		return 0, "", false
	}
	if rest == "" {
		return num, "", true
	}
	if strings.HasPrefix(rest, "<") && strings.HasSuffix(rest, ">") {
		return num, rest[1 : len(rest)-1], true
	}
	return 0, "", false
}

// resolveIndexed materializes an INDEXED reference at tokenize time by
// reading the Nth spool line and applying the inner transform (if any).
// A JOB/SLOT/TOTAL inner spec is per-job, not per-input, so the whole
// reference falls back to a verbatim literal instead of failing.
func resolveIndexed(n int, inner string, total int, lineAt LineAt) (Token, error) {
	if inner == "#" || inner == "%" || inner == "##" {
		return Token{Kind: Literal, Text: ""}, nil // caller re-emits verbatim braces
	}
	if n == 0 || n > total {
		return Token{}, perr.New(perr.IndexOutOfBounds, strconv.Itoa(n))
	}
	line, ok := lineAt(n)
	if !ok {
		return Token{}, perr.New(perr.IndexOutOfBounds, strconv.Itoa(n))
	}
	resolved, recognized := applyInnerSpec(inner, line)
	if !recognized {
		return Token{Kind: Literal, Text: ""}, nil
	}
	return Token{Kind: Literal, Text: resolved}, nil
}

// applyInnerSpec applies the named path transform to line for INDEXED
// resolution. ok is false for an unrecognized inner spec.
func applyInnerSpec(inner, line string) (result string, ok bool) {
	switch inner {
	case "":
		return line, true
	case ".":
		return Transform(RemoveExtension, "", line), true
	case "/":
		return Transform(Basename, "", line), true
	case "//":
		return Transform(Dirname, "", line), true
	case "/.":
		return Transform(BaseAndExt, "", line), true
	}
	if strings.HasPrefix(inner, "/^") {
		return Transform(BaseAndSuffix, inner[2:], line), true
	}
	if strings.HasPrefix(inner, "^") {
		return Transform(RemoveSuffix, inner[1:], line), true
	}
	return "", false
}

// checkQuoteBalance fails with UNTERMINATED_QUOTE if the template contains
// an unbalanced single or double quote outside a backslash escape.
func checkQuoteBalance(template string) error {
	var inSingle, inDouble bool
	escaped := false
	for _, r := range template {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			if !inSingle {
				escaped = true
			}
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		}
	}
	if inSingle || inDouble {
		return perr.New(perr.UnterminatedQuote, template)
	}
	return nil
}

// Transform applies a path-derived transform to input. suffix is only
// consulted for RemoveSuffix/BaseAndSuffix.
func Transform(kind Kind, suffix, input string) string {
	switch kind {
	case Placeholder:
		return input
	case Basename:
		return basename(input)
	case Dirname:
		return dirname(input)
	case RemoveExtension:
		return removeExtension(input)
	case BaseAndExt:
		return basename(removeExtension(input))
	case RemoveSuffix:
		return removeSuffix(input, suffix)
	case BaseAndSuffix:
		return basename(removeSuffix(input, suffix))
	default:
		return input
	}
}

func basename(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func dirname(s string) string {
	i := strings.LastIndexByte(s, '/')
	if i < 0 {
		return ""
	}
	return s[:i]
}

func removeExtension(s string) string {
	base := s
	slash := strings.LastIndexByte(s, '/')
	searchFrom := 0
	if slash >= 0 {
		searchFrom = slash + 1
	}
	dot := strings.LastIndexByte(s[searchFrom:], '.')
	if dot < 0 {
		return base
	}
	return s[:searchFrom+dot]
}

func removeSuffix(s, suffix string) string {
	if suffix != "" && strings.HasSuffix(s, suffix) {
		return strings.TrimSuffix(s, suffix)
	}
	return s
}
