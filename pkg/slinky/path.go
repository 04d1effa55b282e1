package slinky

import "bytes"

// Dir changes s to its directory part. A path without a slash becomes ".".
func (s *Str) Dir() *Str {
	idx := bytes.LastIndexByte(s.Bytes(), '/')
	switch {
	case idx < 0:
		return s.CopyString(".")
	case idx == 0:
		s.n = 1
	default:
		s.n = idx
	}
	return s
}

// Base changes s to its file name part.
func (s *Str) Base() *Str {
	idx := bytes.LastIndexByte(s.Bytes(), '/')
	if idx < 0 {
		return s
	}

	copy(s.buf, s.buf[idx+1:s.n])
	s.n -= idx + 1
	return s
}

// RmExtension cuts s at the first occurrence of ext. It returns false and leaves s untouched if
// ext doesn't occur.
func (s *Str) RmExtension(ext string) bool {
	idx := s.Index(ext)
	if idx < 0 {
		return false
	}

	s.n = idx
	return true
}
