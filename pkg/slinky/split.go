package slinky

import (
	"bytes"
	"strings"
)

// Divide splits the content at every c. A c at the very end yields a trailing empty piece.
func (s *Str) Divide(c byte) []string {
	return strings.Split(s.String(), string([]byte{c}))
}

// DivideCount returns the number of pieces Divide would return.
func (s *Str) DivideCount(c byte) int {
	return bytes.Count(s.Bytes(), []byte{c}) + 1
}

// Segment splits the content at every occurrence of sep. An empty sep yields the whole content as
// the only piece.
func (s *Str) Segment(sep string) []string {
	if sep == "" {
		return []string{s.String()}
	}
	return strings.Split(s.String(), sep)
}

// Tokenizer iterates over the tokens of a Str separated by a delimiter.
//
// The first token is only produced if the delimiter occurs at all. A delimiter at the very end
// does not produce an empty last token.
type Tokenizer struct {
	content string
	delim   string
	pos     int
	started bool
	done    bool
}

// Tokenize returns a Tokenizer over the current content of s. Later changes to s don't affect it.
func (s *Str) Tokenize(delim string) *Tokenizer {
	return &Tokenizer{content: s.String(), delim: delim}
}

// Next returns the next token. ok is false once all tokens have been consumed.
func (t *Tokenizer) Next() (token string, ok bool) {
	if t.done || t.delim == "" {
		return "", false
	}

	if !t.started {
		t.started = true
		idx := strings.Index(t.content, t.delim)
		if idx < 0 {
			t.done = true
			return "", false
		}

		t.pos = idx
		return t.content[:idx], true
	}

	start := t.pos + len(t.delim)
	if start >= len(t.content) {
		t.done = true
		return "", false
	}

	idx := strings.Index(t.content[start:], t.delim)
	if idx < 0 {
		t.done = true
		return t.content[start:], true
	}

	t.pos = start + idx
	return t.content[start:t.pos], true
}

// Position returns the index of the delimiter that ended the last token.
func (t *Tokenizer) Position() int {
	return t.pos
}
