// Package spool implements the input-materialization pipeline: turning
// CLI-supplied argument lists (literal, file-backed, or from standard
// input) into the cartesian-combined, optionally chunked sequence of
// logical inputs written to the on-disk "unprocessed" spool file.
package spool

import (
	"bufio"
	"io"
	"strings"

	"github.com/riftwood/parallel/internal/perr"
)

// marker identifies one of the four positional list-boundary tokens.
type marker int

const (
	notMarker marker = iota
	newLiteral
	newFile
	appendLiteral
	appendFile
)

func classify(tok string) marker {
	switch tok {
	case ":::":
		return newLiteral
	case "::::":
		return newFile
	case ":::+":
		return appendLiteral
	case "::::+":
		return appendFile
	default:
		return notMarker
	}
}

// FileReader resolves a file path to its filtered lines: blank lines and
// lines beginning with '#' (after trimming leading whitespace) are
// dropped, matching the CLI's file-backed list semantics.
type FileReader func(path string) ([]string, error)

// BuildLists scans the positional arguments that follow a template for
// ":::"/"::::"/":::+"/"::::+" markers and produces the ordered LISTS they
// describe. Append variants are zipped element-wise into the
// immediately preceding list (truncating it to the append list's length)
// rather than starting a new list.
func BuildLists(args []string, readFile FileReader) ([][]string, error) {
	var lists [][]string
	var current []string
	var haveCurrent bool

	flush := func() {
		if haveCurrent {
			lists = append(lists, current)
		}
		current = nil
		haveCurrent = false
	}

	i := 0
	for i < len(args) {
		m := classify(args[i])
		if m == notMarker {
			// Leading bare arguments with no marker: treat as an implicit
			// first literal list.
			if !haveCurrent && len(lists) == 0 {
				haveCurrent = true
			}
			if haveCurrent {
				current = append(current, args[i])
			}
			i++
			continue
		}

		switch m {
		case newLiteral:
			flush()
			haveCurrent = true
			i++
			for i < len(args) && classify(args[i]) == notMarker {
				current = append(current, args[i])
				i++
			}
		case newFile:
			flush()
			i++
			var files []string
			for i < len(args) && classify(args[i]) == notMarker {
				files = append(files, args[i])
				i++
			}
			var items []string
			for _, f := range files {
				lines, err := readFile(f)
				if err != nil {
					return nil, perr.Wrap(perr.SpoolIO, f, err)
				}
				items = append(items, lines...)
			}
			lists = append(lists, items)
		case appendLiteral:
			flush()
			i++
			var items []string
			for i < len(args) && classify(args[i]) == notMarker {
				items = append(items, args[i])
				i++
			}
			mergeAppend(&lists, items)
		case appendFile:
			flush()
			i++
			var files []string
			for i < len(args) && classify(args[i]) == notMarker {
				files = append(files, args[i])
				i++
			}
			var items []string
			for _, f := range files {
				lines, err := readFile(f)
				if err != nil {
					return nil, perr.Wrap(perr.SpoolIO, f, err)
				}
				items = append(items, lines...)
			}
			mergeAppend(&lists, items)
		}
	}
	flush()
	return lists, nil
}

// mergeAppend zips appendItems element-wise into the last list in lists,
// joining each pair with a single space. If the prior list is longer than
// appendItems, it is truncated to appendItems' length.
func mergeAppend(lists *[][]string, appendItems []string) {
	if len(*lists) == 0 {
		*lists = append(*lists, appendItems)
		return
	}
	last := (*lists)[len(*lists)-1]
	n := len(appendItems)
	if n > len(last) {
		n = len(last)
	}
	merged := make([]string, n)
	for i := 0; i < n; i++ {
		merged[i] = last[i] + " " + appendItems[i]
	}
	(*lists)[len(*lists)-1] = merged
}

// ReadFileLines reads the file at path, skipping blank lines and lines
// whose first non-whitespace byte is '#'.
func ReadFileLines(open func(path string) (io.ReadCloser, error)) FileReader {
	return func(path string) ([]string, error) {
		f, err := open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return filterLines(f), nil
	}
}

func filterLines(r io.Reader) []string {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" || trimmed[0] == '#' {
			continue
		}
		out = append(out, line)
	}
	return out
}

// ReadStdinList reads one input item per line from r, with no comment or
// blank-line filtering (that filtering is specified only for file-backed
// lists).
func ReadStdinList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, perr.Wrap(perr.SpoolIO, "stdin", err)
	}
	return out, nil
}

// CartesianProduct combines two or more LISTS into the ordered cartesian
// product, space-joining each tuple. The last list varies fastest.
func CartesianProduct(lists [][]string) []string {
	if len(lists) == 0 {
		return nil
	}
	if len(lists) == 1 {
		return append([]string(nil), lists[0]...)
	}
	combos := []string{""}
	for li, list := range lists {
		var next []string
		for _, prefix := range combos {
			for _, item := range list {
				if li == 0 {
					next = append(next, item)
				} else {
					next = append(next, prefix+" "+item)
				}
			}
		}
		combos = next
	}
	return combos
}

// Chunk groups consecutive inputs into logical inputs of up to maxArgs
// items each, space-joined. maxArgs < 2 is a no-op (one input per line).
func Chunk(inputs []string, maxArgs int) []string {
	if maxArgs < 2 {
		return inputs
	}
	var out []string
	for i := 0; i < len(inputs); i += maxArgs {
		end := i + maxArgs
		if end > len(inputs) {
			end = len(inputs)
		}
		out = append(out, strings.Join(inputs[i:end], " "))
	}
	return out
}
