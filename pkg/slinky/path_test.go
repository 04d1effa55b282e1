package slinky

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPath(t *testing.T) {
	tcs := []struct {
		path string
		dir  string
		base string
	}{
		{"/foo/bar/dii.txt", "/foo/bar", "dii.txt"},
		{"./foo/bar/dii.txt", "./foo/bar", "dii.txt"},
		{"/foo", "/", "foo"},
		{"./foo", ".", "foo"},
		{"dii.txt", ".", "dii.txt"},
	}

	for _, tc := range tcs {
		s := FromString(tc.path).Dir()
		assert.Equal(t, tc.dir, s.String(), "dir of %s", tc.path)
		assert.Equal(t, len(tc.dir), s.Len())

		s = FromString(tc.path).Base()
		assert.Equal(t, tc.base, s.String(), "base of %s", tc.path)
		assert.Equal(t, len(tc.base), s.Len())
	}

	s := FromString("dii.txt")
	assert.True(t, s.RmExtension(".txt"))
	assert.Equal(t, "dii", s.String())

	s = FromString("dii.txt")
	assert.False(t, s.RmExtension(".dii"))
	assert.Equal(t, "dii.txt", s.String())

	s.ToUpper()
	assert.Equal(t, "DII.TXT", s.String())

	s.ToLower()
	assert.Equal(t, "dii.txt", s.String())

	s.Capitalize()
	assert.Equal(t, "Dii.txt", s.String())
}

func TestFile(t *testing.T) {
	const filetext = "line1\nline2\nline3\nline4\nline5\n"
	filename := filepath.Join(t.TempDir(), "test_file.txt")

	s := FromString(filetext)
	require.NoError(t, s.WriteFile(filename))

	s2, err := ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, filetext, s2.String())
	assert.Equal(t, len(filetext)+2, s2.Res())

	var out bytes.Buffer
	s.Dump(&out)
	assert.Contains(t, out.String(), "  len: 30\n")

	out.Reset()
	require.NoError(t, s.Fprint(&out))
	assert.Equal(t, filetext+"\n", out.String())
	assert.Equal(t, 0, s.Len())

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
