package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/slinky"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// listFiles returns all regular files below dir as slash separated relative paths
func listFiles(t *testing.T, dir string) []string {
	t.Helper()

	files := []string{}
	err := filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			files = append(files, filepath.ToSlash(rel))
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	rootCmd := NewRootCmd()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestConsoleWriter(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("SLINKY_DEBUG", "")

	var out bytes.Buffer
	logger := zerolog.New(NewConsoleWriter(&out))

	logger.Info().Str("task", "release").Msg("building")
	logger.Info().Str("task", "release").Bool("command", true).Msg("ceedling release")
	logger.Warn().Msg("careful [not a color]")
	logger.Error().Err(eris.New("boom")).Str("task", "publish").Msg("install failed")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 5)
	assert.Equal(t, "release: building", lines[0])
	assert.Equal(t, "release: $ ceedling release", lines[1])
	assert.Equal(t, "careful [not a color]", lines[2])
	assert.Equal(t, "publish: Error: install failed", lines[3])
	assert.Contains(t, lines[4], "boom")
	assert.NotContains(t, out.String(), "\033[")

	_, err := NewConsoleWriter(&out).Write([]byte("not json"))
	assert.Error(t, err)
}

func TestConsoleWriterColors(t *testing.T) {
	t.Setenv("SLINKY_DEBUG", "1")

	var out bytes.Buffer
	w := NewConsoleWriter(&out)
	w.color.Disable = false

	logger := zerolog.New(w)
	logger.Warn().Str("path", "x").Msg("colored")

	assert.True(t, strings.HasPrefix(out.String(), "\033[33m"), out.String())
	assert.Contains(t, out.String(), "  level: warn")
	assert.Contains(t, out.String(), "  path: x")
}

func setupProject(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	prefix := t.TempDir()

	writeFile(t, filepath.Join(root, "project.yml"), slinky.New(256).FormatQuick(`name: widget
version: 1.2.3
header: include/widget.h
delegate: echo
prefix: %s
`, prefix).String())
	writeFile(t, filepath.Join(root, "include", "widget.h"), "#pragma once\n")
	writeFile(t, filepath.Join(root, "build", "release", "libwidget.so.1.2.3"), "ELF")
	writeFile(t, filepath.Join(root, "tasks.star"), `
greeting = option("greeting", "hello", help = "what to say")

def configure():
    task("greet", desc = "Say something", cmds = ["echo " + greeting])
`)

	return root, prefix
}

func TestTaskCmd(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	root, prefix := setupProject(t)

	stdout, _, err := runCmd(t, "task", "-C", root, "greet", "greeting=hi")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", stdout)

	stdout, _, err = runCmd(t, "task", "-C", filepath.Join(root, "include"), "publish")
	require.NoError(t, err)
	assert.Equal(t, "release\n", stdout)
	assert.Equal(t, []string{"include/widget.h", "lib/libwidget.so.1.2.3"}, listFiles(t, prefix))
	assert.FileExists(t, filepath.Join(root, "build", ".slinky", "installs.db"))

	_, _, err = runCmd(t, "task", "-C", root, "uninstall")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(prefix, "lib", "libwidget.so.1.2.3"))

	_, _, err = runCmd(t, "task", "-C", root, "missing")
	assert.Error(t, err)
}

func TestTaskCmdDefault(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	root, prefix := setupProject(t)

	stdout, stderr, err := runCmd(t, "task", "-n", "-C", root)
	require.NoError(t, err)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "$ echo test:all")
	assert.Contains(t, stderr, "$ echo release")
	assert.NoFileExists(t, filepath.Join(prefix, "lib", "libwidget.so.1.2.3"))

	stdout, _, err = runCmd(t, "task", "-C", root)
	require.NoError(t, err)
	assert.Equal(t, "test:all\nrelease\n", stdout)
	assert.FileExists(t, filepath.Join(prefix, "lib", "libwidget.so.1.2.3"))
}

func TestTaskCmdList(t *testing.T) {
	root, _ := setupProject(t)

	stdout, _, err := runCmd(t, "task", "--list", "-C", root)
	require.NoError(t, err)

	lines := strings.Split(stdout, "\n")
	assert.Equal(t, "Available tasks:", lines[0])
	assert.Contains(t, stdout, " * greet:      Say something\n")
	assert.Contains(t, stdout, " * publish:")
	assert.Contains(t, stdout, "Options:\n * greeting   what to say (default: hello)\n")
}

func TestGraphCmd(t *testing.T) {
	root, _ := setupProject(t)

	stdout, _, err := runCmd(t, "graph", "-C", root, "default")
	require.NoError(t, err)
	assert.Contains(t, stdout, "digraph")
	assert.Contains(t, stdout, `"publish"`)
	assert.NotContains(t, stdout, `"greet"`)

	stdout, _, err = runCmd(t, "graph", "--order", "-C", root, "default")
	require.NoError(t, err)
	assert.Equal(t, "test:all\nrelease\npublish\ndefault\n", stdout)
}

func TestVersionCmd(t *testing.T) {
	stdout, _, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "slinky dev (library "+slinky.Version+")\n", stdout)
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("SLINKY_LOG_LEVEL", "loud")

	_, _, err := runCmd(t, "task", "--list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestGetConfigFallback(t *testing.T) {
	t.Setenv("SLINKY_LOG_JSON", "maybe")

	var out bytes.Buffer
	logger := zerolog.New(&out)
	ctx := buildsys.WithLogger(context.Background(), &logger)

	cfg := getConfig(ctx)
	require.NotNil(t, cfg)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Contains(t, out.String(), `"level":"debug"`)
	assert.Contains(t, out.String(), "failed to load the configuration")
}
