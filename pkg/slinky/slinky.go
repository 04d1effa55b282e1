// Package slinky implements a simple string library built around mutable strings with an explicit
// storage reservation.
//
// A Str tracks its content length and its reservation (storage size) separately. The reservation
// always includes room for one terminator byte and is kept even, so a Str holding "text1" needs at
// least 6 bytes. Operations that append content grow the reservation only when the current one is
// too small; Compact shrinks it back to the minimum.
//
// Positions passed to the editing functions may be negative, in which case they count from the end
// of the string (-1 is the last character). Positive positions past the end saturate to the length.
package slinky

import (
	"bytes"
	"sort"
	"strings"
)

// Version is the library version.
const Version = "0.0.1"

// Header describes the storage state of a Str.
type Header struct {
	Res uint32
	Len uint32
}

// Str is a mutable string with an explicit storage reservation.
type Str struct {
	buf   []byte
	n     int
	local bool
}

// normSize rounds odd sizes up to the next even number.
func normSize(size int) int {
	if size&1 == 1 {
		return size + 1
	}
	return size
}

// New creates an empty Str with the given storage size.
func New(size int) *Str {
	if size < 0 {
		size = 0
	}

	return &Str{buf: make([]byte, normSize(size))}
}

// Use creates an empty Str backed by caller owned memory. The Str is marked local until it has to
// grow beyond mem, at which point it moves to its own storage. An odd trailing byte of mem is
// left unused.
func Use(mem []byte) *Str {
	size := len(mem) &^ 1
	return &Str{buf: mem[:size:size], local: true}
}

// FromString creates a Str holding cs with the minimum reservation.
func FromString(cs string) *Str {
	s := New(len(cs) + 1)
	s.n = copy(s.buf, cs)
	return s
}

// FromStringWithSize creates a Str holding cs. The reservation is size, or larger if cs does not fit.
func FromStringWithSize(cs string, size int) *Str {
	var s *Str
	if size > len(cs)+1 {
		s = New(size)
	} else {
		s = New(len(cs) + 1)
	}

	return s.CopyString(cs)
}

// FromStrings concatenates parts into a new Str. It returns nil if no parts are given.
func FromStrings(parts ...string) *Str {
	if len(parts) == 0 {
		return nil
	}

	size := 0
	for _, p := range parts {
		size += len(p)
	}

	s := New(size + 1)
	for _, p := range parts {
		s.n += copy(s.buf[s.n:], p)
	}
	return s
}

// Len returns the content length.
func (s *Str) Len() int {
	return s.n
}

// Res returns the storage reservation.
func (s *Str) Res() int {
	return len(s.buf)
}

// Header returns the storage descriptor.
func (s *Str) Header() Header {
	return Header{Res: uint32(len(s.buf)), Len: uint32(s.n)}
}

// Local reports whether the Str still uses caller owned memory.
func (s *Str) Local() bool {
	return s.local
}

// SetLocal overrides the local flag.
func (s *Str) SetLocal(local bool) {
	s.local = local
}

// String returns the content as a Go string.
func (s *Str) String() string {
	if s == nil {
		return ""
	}
	return string(s.buf[:s.n])
}

// Bytes returns the content. The slice aliases the storage and is only valid until the next
// operation that may grow the Str.
func (s *Str) Bytes() []byte {
	return s.buf[:s.n]
}

// Raw returns the whole storage, including the unused tail. Use Refresh after writing a zero
// terminated string into it.
func (s *Str) Raw() []byte {
	return s.buf
}

// Refresh recalculates the length from the first zero byte in the storage.
func (s *Str) Refresh() *Str {
	idx := bytes.IndexByte(s.buf, 0)
	if idx < 0 {
		idx = len(s.buf) - 1
		if idx < 0 {
			idx = 0
		}
	}

	s.n = idx
	return s
}

// Reserve makes sure the storage is at least size bytes. A smaller request is a no-op.
func (s *Str) Reserve(size int) *Str {
	if len(s.buf) >= size {
		return s
	}

	nbuf := make([]byte, normSize(size))
	copy(nbuf, s.buf[:s.n])
	s.buf = nbuf
	s.local = false
	return s
}

// Compact shrinks the storage to the minimum (length + 1, rounded to even). Local storage is left
// untouched.
func (s *Str) Compact() *Str {
	size := normSize(s.n + 1)
	if len(s.buf) > size && !s.local {
		nbuf := make([]byte, size)
		copy(nbuf, s.buf[:s.n])
		s.buf = nbuf
	}
	return s
}

// Copy replaces the content with the content of other.
func (s *Str) Copy(other *Str) *Str {
	if other == s {
		return s
	}

	s.Reserve(other.n + 1)
	s.n = copy(s.buf, other.buf[:other.n])
	return s
}

// CopyString replaces the content with cs.
func (s *Str) CopyString(cs string) *Str {
	s.Reserve(len(cs) + 1)
	s.n = copy(s.buf, cs)
	return s
}

// Dup returns a copy of s with the same reservation.
func (s *Str) Dup() *Str {
	d := New(len(s.buf))
	d.n = copy(d.buf, s.buf[:s.n])
	return d
}

// Rep returns a copy of s with the minimum reservation.
func (s *Str) Rep() *Str {
	d := New(s.n + 1)
	d.n = copy(d.buf, s.buf[:s.n])
	return d
}

// Clear sets the length to zero without touching the storage.
func (s *Str) Clear() *Str {
	s.n = 0
	return s
}

// EndChar returns the last character, or zero for an empty Str.
func (s *Str) EndChar() byte {
	if s.n == 0 {
		return 0
	}
	return s.buf[s.n-1]
}

// Compare returns -1, 0 or 1 like strings.Compare.
func (s *Str) Compare(other string) int {
	return bytes.Compare(s.Bytes(), []byte(other))
}

// Same reports whether s and other have identical content.
func (s *Str) Same(other *Str) bool {
	return s.n == other.n && bytes.Equal(s.Bytes(), other.Bytes())
}

// Different is the negation of Same.
func (s *Str) Different(other *Str) bool {
	return !s.Same(other)
}

// Sort sorts a string slice into alphabetical order.
func Sort(sa []string) {
	sort.Strings(sa)
}

func (s *Str) appendBytes(cs []byte) *Str {
	s.Reserve(s.n + len(cs) + 1)
	s.n += copy(s.buf[s.n:], cs)
	return s
}

// Cat appends the content of other. Appending s to itself is allowed.
func (s *Str) Cat(other *Str) *Str {
	if other == s {
		tmp := make([]byte, s.n)
		copy(tmp, s.buf[:s.n])
		return s.appendBytes(tmp)
	}
	return s.appendBytes(other.Bytes())
}

// CatString appends cs.
func (s *Str) CatString(cs string) *Str {
	s.Reserve(s.n + len(cs) + 1)
	s.n += copy(s.buf[s.n:], cs)
	return s
}

// AppendString is an alias of CatString.
func (s *Str) AppendString(cs string) *Str {
	return s.CatString(cs)
}

// AppendChar appends a single character.
func (s *Str) AppendChar(c byte) *Str {
	return s.AppendCharN(c, 1)
}

// AppendCharN appends c cnt times.
func (s *Str) AppendCharN(c byte, cnt int) *Str {
	s.Reserve(s.n + cnt + 1)
	for i := 0; i < cnt; i++ {
		s.buf[s.n+i] = c
	}
	s.n += cnt
	return s
}

// AppendStringN appends cs cnt times.
func (s *Str) AppendStringN(cs string, cnt int) *Str {
	s.Reserve(s.n + cnt*len(cs) + 1)
	for i := 0; i < cnt; i++ {
		s.n += copy(s.buf[s.n:], cs)
	}
	return s
}

// AppendSized appends at most size bytes of cs.
func (s *Str) AppendSized(cs string, size int) *Str {
	if size < len(cs) {
		cs = cs[:size]
	}
	return s.CatString(cs)
}

// AppendStrings appends all parts.
func (s *Str) AppendStrings(parts ...string) *Str {
	size := 0
	for _, p := range parts {
		size += len(p)
	}

	s.Reserve(s.n + size + 1)
	for _, p := range parts {
		s.n += copy(s.buf[s.n:], p)
	}
	return s
}

// normIdx converts a possibly negative position into an index in [0, Len].
func (s *Str) normIdx(idx int) int {
	switch {
	case idx < 0:
		idx += s.n
		if idx < 0 {
			idx = 0
		}
		return idx
	case idx > s.n:
		return s.n
	default:
		return idx
	}
}

// PushChar inserts c at pos.
func (s *Str) PushChar(pos int, c byte) *Str {
	pos = s.normIdx(pos)
	s.Reserve(s.n + 2)
	copy(s.buf[pos+1:s.n+1], s.buf[pos:s.n])
	s.buf[pos] = c
	s.n++
	return s
}

// PopChar removes the character at pos.
func (s *Str) PopChar(pos int) *Str {
	pos = s.normIdx(pos)
	if pos != s.n {
		copy(s.buf[pos:], s.buf[pos+1:s.n])
		s.n--
	}
	return s
}

// Limit truncates the content to pos characters.
func (s *Str) Limit(pos int) *Str {
	s.n = s.normIdx(pos)
	return s
}

// Cut removes cnt characters from the end, or -cnt characters from the start when cnt is negative.
func (s *Str) Cut(cnt int) *Str {
	if cnt >= 0 {
		if cnt > s.n {
			cnt = s.n
		}
		s.n -= cnt
		return s
	}

	cnt = -cnt
	if cnt > s.n {
		cnt = s.n
	}
	copy(s.buf, s.buf[cnt:s.n])
	s.n -= cnt
	return s
}

// Select keeps the slice between positions a and b. The order of a and b does not matter and the
// upper boundary is exclusive.
func (s *Str) Select(a, b int) *Str {
	an := s.normIdx(a)
	bn := s.normIdx(b)
	if bn < an {
		an, bn = bn, an
	}

	copy(s.buf, s.buf[an:bn])
	s.n = bn - an
	return s
}

func (s *Str) insertBytes(pos int, cs []byte) *Str {
	s.Reserve(s.n + len(cs) + 1)
	pos = s.normIdx(pos)

	copy(s.buf[pos+len(cs):], s.buf[pos:s.n])
	copy(s.buf[pos:], cs)
	s.n += len(cs)
	return s
}

// Insert inserts the content of other at pos.
func (s *Str) Insert(pos int, other *Str) *Str {
	cs := make([]byte, other.n)
	copy(cs, other.buf[:other.n])
	return s.insertBytes(pos, cs)
}

// InsertString inserts cs at pos.
func (s *Str) InsertString(pos int, cs string) *Str {
	return s.insertBytes(pos, []byte(cs))
}

// InvertPos converts a positive position into the equivalent negative one and vice versa.
func (s *Str) InvertPos(pos int) int {
	if pos > 0 {
		return -(s.n - pos)
	}
	return s.n + pos
}

// FindCharRight searches c starting at pos towards the end. It returns -1 if c is not found.
func (s *Str) FindCharRight(c byte, pos int) int {
	if pos < 0 || pos >= s.n {
		return -1
	}

	idx := bytes.IndexByte(s.buf[pos:s.n], c)
	if idx < 0 {
		return -1
	}
	return pos + idx
}

// FindCharLeft searches c starting at pos towards the start. It returns -1 if c is not found.
func (s *Str) FindCharLeft(c byte, pos int) int {
	if s.n == 0 || pos < 0 {
		return -1
	}
	if pos >= s.n {
		pos = s.n - 1
	}

	return bytes.LastIndexByte(s.buf[:pos+1], c)
}

// Index returns the position of the first occurrence of needle, or -1. An empty needle is never
// found.
func (s *Str) Index(needle string) int {
	if needle == "" {
		return -1
	}
	return bytes.Index(s.Bytes(), []byte(needle))
}

// Swap replaces every f character with t.
func (s *Str) Swap(f, t byte) *Str {
	for i := 0; i < s.n; i++ {
		if s.buf[i] == f {
			s.buf[i] = t
		}
	}
	return s
}

// Map replaces every occurrence of f with t. An empty f leaves the content unchanged.
func (s *Str) Map(f, t string) *Str {
	if f == "" {
		return s
	}

	cnt := bytes.Count(s.Bytes(), []byte(f))
	if cnt == 0 {
		return s
	}

	mapped := bytes.ReplaceAll(s.Bytes(), []byte(f), []byte(t))
	if len(t) > len(f) {
		s.Reserve(len(mapped) + 1)
	}
	s.n = copy(s.buf, mapped)
	return s
}

// Capitalize upcases the first character.
func (s *Str) Capitalize() *Str {
	if s.n > 0 {
		s.buf[0] = toUpper(s.buf[0])
	}
	return s
}

// ToUpper converts all ASCII letters to upper case.
func (s *Str) ToUpper() *Str {
	for i := 0; i < s.n; i++ {
		s.buf[i] = toUpper(s.buf[i])
	}
	return s
}

// ToLower converts all ASCII letters to lower case.
func (s *Str) ToLower() *Str {
	for i := 0; i < s.n; i++ {
		if c := s.buf[i]; c >= 'A' && c <= 'Z' {
			s.buf[i] = c + 'a' - 'A'
		}
	}
	return s
}

func toUpper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

// Glue joins parts with sep into a new Str with the minimum reservation.
func Glue(parts []string, sep string) *Str {
	joined := strings.Join(parts, sep)
	s := New(len(joined) + 1)
	s.n = copy(s.buf, joined)
	return s
}
