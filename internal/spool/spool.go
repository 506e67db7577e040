package spool

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/riftwood/parallel/internal/perr"
)

// Filenames of the three files the core manages inside TEMPDIR.
const (
	UnprocessedFile = "unprocessed"
	ProcessedFile   = "processed"
	ErrorsFile      = "errors"
)

// Spool owns the TEMPDIR directory holding the three spool files.
type Spool struct {
	Dir string
}

// New creates (or truncates) the spool directory's three files. The
// directory itself must already exist; New does not create TEMPDIR.
func New(dir string) (*Spool, error) {
	s := &Spool{Dir: dir}
	for _, name := range []string{UnprocessedFile, ProcessedFile, ErrorsFile} {
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, perr.Wrap(perr.SpoolIO, path, err)
		}
		f.Close()
	}
	return s, nil
}

// Path returns the absolute path of one of the three managed files.
func (s *Spool) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// WriteUnprocessed writes one logical input per line to the "unprocessed"
// file and returns the total record count. Fails with NO_ARGUMENTS if
// inputs is empty.
func (s *Spool) WriteUnprocessed(inputs []string) (int, error) {
	if len(inputs) == 0 {
		return 0, perr.New(perr.NoArguments, "")
	}
	path := s.Path(UnprocessedFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, perr.Wrap(perr.SpoolIO, path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, in := range inputs {
		if _, err := w.WriteString(in); err != nil {
			return 0, perr.Wrap(perr.SpoolIO, path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return 0, perr.Wrap(perr.SpoolIO, path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return 0, perr.Wrap(perr.SpoolIO, path, err)
	}
	return len(inputs), nil
}
