// Package builder instantiates a concrete command-line string from a
// tokenized template and the per-job context (input, job number, slot,
// total input count).
package builder

import (
	"strconv"
	"strings"

	"github.com/riftwood/parallel/internal/token"
)

// Build renders tokens against a single job's context. When pipe is true,
// only LITERAL, JOB, and SLOT tokens are expanded — the input is never
// substituted into the command line and is instead handed to the caller
// to write to the child's standard input.
func Build(tokens []token.Token, input string, job, slot, total int, pipe bool) string {
	return render(tokens, input, job, strconv.Itoa(slot), pipe)
}

// BuildWithSlotLiteral renders tokens exactly like Build, but substitutes
// slotLiteral verbatim wherever a SLOT token appears instead of a numeric
// slot. The dry-run renderer uses this to print the literal "{SLOT_ID}"
// placeholder instead of a real worker slot, since dry-run never assigns
// one.
func BuildWithSlotLiteral(tokens []token.Token, input string, job int, slotLiteral string, pipe bool) string {
	return render(tokens, input, job, slotLiteral, pipe)
}

func render(tokens []token.Token, input string, job int, slotText string, pipe bool) string {
	var sb strings.Builder
	hasInputDependent := false

	for _, tok := range tokens {
		switch tok.Kind {
		case token.Literal:
			sb.WriteString(tok.Text)
		case token.Job:
			sb.WriteString(strconv.Itoa(job))
			hasInputDependent = true
		case token.Slot:
			sb.WriteString(slotText)
			hasInputDependent = true
		case token.Placeholder, token.Basename, token.Dirname, token.BaseAndExt,
			token.RemoveExtension, token.RemoveSuffix, token.BaseAndSuffix:
			hasInputDependent = true
			if pipe {
				continue
			}
			sb.WriteString(token.Transform(tok.Kind, tok.Text, input))
		case token.Total:
			// Materialized as a Literal at tokenize time; never produced directly.
		}
	}

	if !pipe && !hasInputDependent {
		sb.WriteByte(' ')
		sb.WriteString(input)
	}
	return sb.String()
}

// HasInputDependentToken reports whether any token in the sequence derives
// its expansion from the per-job input or job/slot counters, as opposed to
// being a fixed literal.
func HasInputDependentToken(tokens []token.Token) bool {
	for _, t := range tokens {
		if t.InputDependent() {
			return true
		}
	}
	return false
}
