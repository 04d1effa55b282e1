package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMkdir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")

	_, _, err := runCmd(t, "mkdir", nested)
	assert.Error(t, err)

	_, _, err = runCmd(t, "mkdir", "-p", nested)
	require.NoError(t, err)
	assert.DirExists(t, nested)
}

func TestMv(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.txt")
	writeFile(t, src, "a")

	// rename
	renamed := filepath.Join(dir, "b.txt")
	_, _, err := runCmd(t, "mv", src, renamed)
	require.NoError(t, err)
	assert.NoFileExists(t, src)
	assert.FileExists(t, renamed)

	// move into a directory
	target := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(target, 0o755))
	other := filepath.Join(dir, "c.txt")
	writeFile(t, other, "c")

	_, _, err = runCmd(t, "mv", renamed, other, target)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(target, "b.txt"))
	assert.FileExists(t, filepath.Join(target, "c.txt"))

	_, _, err = runCmd(t, "mv", filepath.Join(target, "b.txt"), filepath.Join(target, "c.txt"), filepath.Join(dir, "nope"))
	assert.Error(t, err)

	_, _, err = runCmd(t, "mv", "single")
	assert.Error(t, err)
}

func TestRm(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.o")
	tree := filepath.Join(dir, "tree")
	writeFile(t, file, "x")
	writeFile(t, filepath.Join(tree, "nested", "file.o"), "x")

	_, _, err := runCmd(t, "rm", tree)
	assert.Error(t, err)
	assert.DirExists(t, tree)

	_, _, err = runCmd(t, "rm", "-r", tree, file)
	require.NoError(t, err)
	assert.NoDirExists(t, tree)
	assert.NoFileExists(t, file)

	_, _, err = runCmd(t, "rm", file)
	assert.Error(t, err)

	_, _, err = runCmd(t, "rm", "-f", file)
	assert.NoError(t, err)
}

func TestCp(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tool.sh")
	writeFile(t, src, "#!/bin/sh\n")
	require.NoError(t, os.Chmod(src, 0o755))

	dest := filepath.Join(dir, "copy.sh")
	_, _, err := runCmd(t, "cp", src, dest)
	require.NoError(t, err)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	tree := filepath.Join(dir, "include")
	writeFile(t, filepath.Join(tree, "sub", "widget.h"), "#pragma once\n")
	out := filepath.Join(dir, "out")
	require.NoError(t, os.Mkdir(out, 0o755))

	_, _, err = runCmd(t, "cp", tree, out)
	assert.Error(t, err)

	_, _, err = runCmd(t, "cp", "-r", tree, src, out)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(out, "include", "sub", "widget.h"))
	require.NoError(t, err)
	assert.Equal(t, "#pragma once\n", string(content))
	assert.FileExists(t, filepath.Join(out, "tool.sh"))
}
