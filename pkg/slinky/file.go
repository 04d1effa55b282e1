package slinky

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/rotisserie/eris"
)

// ReadFile returns a Str holding the complete content of filename.
func ReadFile(filename string) (*Str, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", filename)
	}

	s := New(len(data) + 1)
	s.n = copy(s.buf, data)
	return s, nil
}

// WriteFile writes the content of s to filename. The file is created with owner-only permissions.
func (s *Str) WriteFile(filename string) error {
	err := ioutil.WriteFile(filename, s.Bytes(), 0600)
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", filename)
	}
	return nil
}

// Fprint writes the content and a newline to w and clears s.
func (s *Str) Fprint(w io.Writer) error {
	_, err := fmt.Fprintf(w, "%s\n", s.Bytes())
	s.Clear()
	return err
}

// Print is Fprint to stdout.
func (s *Str) Print() error {
	return s.Fprint(os.Stdout)
}

// Dump writes the content together with its length and reservation to w.
func (s *Str) Dump(w io.Writer) {
	fmt.Fprintf(w, "%s\n  len: %d\n  res: %d\n", s.Bytes(), s.n, len(s.buf))
}
