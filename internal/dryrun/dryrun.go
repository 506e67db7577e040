// Package dryrun implements the Dry-Run Renderer: an alternate terminal
// stage that, instead of invoking the launcher, prints each fully
// instantiated command line in input order.
package dryrun

import (
	"bufio"
	"io"

	"github.com/riftwood/parallel/internal/builder"
	"github.com/riftwood/parallel/internal/reader"
	"github.com/riftwood/parallel/internal/shellexec"
	"github.com/riftwood/parallel/internal/token"
)

// slotPlaceholder is the literal text substituted for {%} in dry-run
// output, since no worker slot is ever assigned.
const slotPlaceholder = "{SLOT_ID}"

// Render iterates rdr once, building each command with the real
// job_number and the literal slot placeholder, and writes one line per
// job to w. When quote is true, each line is escaped with SHELL_QUOTE.
func Render(w io.Writer, tokens []token.Token, rdr *reader.Reader, pipe, quote bool) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	for {
		input, job, ok, err := rdr.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		command := builder.BuildWithSlotLiteral(tokens, input, job, slotPlaceholder, pipe)
		if quote {
			command = shellexec.Quote(command)
		}
		if _, err := bw.WriteString(command); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
