package slinky

import (
	"fmt"
	"strconv"
)

// Format appends the printf style formatted string to s.
func (s *Str) Format(format string, args ...interface{}) *Str {
	out := fmt.Sprintf(format, args...)
	s.Reserve(s.n + len(out) + 1)
	s.n += copy(s.buf[s.n:], out)
	return s
}

// FormatQuick appends a quick-formatted string to s. Quick format is a reduced printf format:
//
//	%s  string
//	%S  *Str
//	%i  int
//	%I  int64
//	%u  uint
//	%U  uint64
//	%c  character (byte or rune)
//	%p  pad with spaces up to the given column of this call's output
//	%%  literal '%'
//
// Any other verb emits the verb character itself. Integer verbs accept any integer type.
func (s *Str) FormatQuick(format string, args ...interface{}) *Str {
	out := make([]byte, 0, len(format))
	next := 0
	arg := func() interface{} {
		if next >= len(args) {
			return nil
		}
		a := args[next]
		next++
		return a
	}

	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out = append(out, c)
			continue
		}

		i++
		if i >= len(format) {
			break
		}

		switch format[i] {
		case 's':
			if v, ok := arg().(string); ok {
				out = append(out, v...)
			}
		case 'S':
			if v, ok := arg().(*Str); ok && v != nil {
				out = append(out, v.Bytes()...)
			}
		case 'i', 'I':
			out = strconv.AppendInt(out, quickInt(arg()), 10)
		case 'u', 'U':
			out = strconv.AppendUint(out, quickUint(arg()), 10)
		case 'c':
			switch v := arg().(type) {
			case byte:
				out = append(out, v)
			case rune:
				out = append(out, string(v)...)
			}
		case 'p':
			col := int(quickInt(arg()))
			for len(out) < col {
				out = append(out, ' ')
			}
		default:
			out = append(out, format[i])
		}
	}

	s.Reserve(s.n + 1 + len(out))
	s.n += copy(s.buf[s.n:], out)
	return s
}

func quickInt(v interface{}) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	}
	return 0
}

func quickUint(v interface{}) uint64 {
	switch v := v.(type) {
	case uint:
		return uint64(v)
	case uint8:
		return uint64(v)
	case uint16:
		return uint64(v)
	case uint32:
		return uint64(v)
	case uint64:
		return v
	case int:
		return uint64(v)
	case int64:
		return uint64(v)
	}
	return 0
}
