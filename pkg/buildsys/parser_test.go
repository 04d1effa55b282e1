package buildsys

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testScript = `
greeting = option("greeting", "hello", help = "what to print")

def configure():
    setenv("SLINKY_TEST", "1")

    task("build",
        desc = "Compile " + PROJECT["name"],
        inputs = ["src/*.c"],
        outputs = ["build/out"],
        cmds = [
            "echo " + greeting,
            ("CC=gcc", "make", "all"),
        ])

    task("publish",
        deps = ["build"],
        requires = ["//.doxygen"],
        env = {"DEST": "/tmp"},
        cmds = [
            invoke("build"),
            action("parser-test-action", "a", resolve_path("b")),
            task(cmds = ["echo inline"]),
        ])

    if read_yaml("settings.yml", "nested.flag", False):
        task("flagged")

    task("hidden", hidden = True)
`

func writeScript(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "tasks.star")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunScript(t *testing.T) {
	RegisterAction("parser-test-action", func(context.Context, ActionEnv, []string) error { return nil })

	dir := t.TempDir()
	script := writeScript(t, dir, testScript)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yml"), []byte("nested:\n  flag: true\n"), 0o600))

	cfg := ScriptConfig{
		Filename:    script,
		ProjectRoot: dir,
		Options:     map[string]string{"greeting": "hi"},
		Project:     map[string]string{"name": "slinky"},
		Configure:   true,
	}
	tasks, options, err := RunScript(context.Background(), cfg)
	require.NoError(t, err)

	require.Contains(t, options, "greeting")
	assert.Equal(t, "hello", options["greeting"].Default())
	assert.Equal(t, "what to print", options["greeting"].Help)

	require.Contains(t, tasks, "build")
	require.Contains(t, tasks, "publish")
	require.Contains(t, tasks, "flagged")
	assert.NotContains(t, tasks, "hidden")

	build := tasks["build"]
	assert.Equal(t, "Compile slinky", build.Desc)
	assert.Equal(t, dir, build.Base)
	assert.Equal(t, []string{"src/*.c"}, build.Inputs)
	assert.Equal(t, "1", build.Env["SLINKY_TEST"])
	require.Len(t, build.Cmds, 2)
	assert.Equal(t, "echo hi", build.Cmds[0].(TaskCmdScript).Content)
	assert.Equal(t, "CC=gcc make all", build.Cmds[1].(TaskCmdScript).Content)

	publish := tasks["publish"]
	assert.Equal(t, []string{"build"}, publish.Deps)
	assert.Equal(t, []string{"//.doxygen"}, publish.Requires)
	assert.Equal(t, "/tmp", publish.Env["DEST"])
	require.Len(t, publish.Cmds, 3)
	assert.Equal(t, "build", publish.Cmds[0].ToInvoke())

	act := publish.Cmds[1].ToAction()
	require.NotNil(t, act)
	assert.Equal(t, "parser-test-action", act.Name)
	assert.Equal(t, []string{"a", filepath.Join(dir, "b")}, act.Args)

	inline, err := publish.Cmds[2].ToTask()
	require.NoError(t, err)
	require.NotNil(t, inline)
	assert.True(t, inline.Hidden)

	require.NoError(t, Validate(tasks))
}

func TestRunScriptOptionsOnly(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, testScript)

	tasks, options, err := RunScript(context.Background(), ScriptConfig{Filename: script, ProjectRoot: dir})
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Contains(t, options, "greeting")
}

func TestRunScriptErrors(t *testing.T) {
	tcs := []struct {
		name   string
		script string
		errMsg string
	}{
		{"no configure", "x = 1\n", "configure"},
		{"reserved name", "def configure():\n    task(\"configure\")\n", "reserved"},
		{"unknown action", "def configure():\n    task(\"a\", cmds = [action(\"nope\")])\n", "unknown action"},
		{"duplicate", "def configure():\n    task(\"a\")\n    task(\"a\")\n", "twice"},
		{"bad cmd", "def configure():\n    task(\"a\", cmds = [1])\n", "unexpected type"},
		{"option outside init", "def configure():\n    option(\"x\")\n", "init phase"},
		{"error builtin", "error(\"broken\")\n", "broken"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			script := writeScript(t, dir, tc.script)

			_, _, err := RunScript(context.Background(), ScriptConfig{Filename: script, ProjectRoot: dir, Configure: true})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestExecuteBuiltin(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, `
out = execute("echo '{\"a\": [1, 2]}'", format = "json")
failed = execute("exit 1")

def configure():
    task("check", desc = "%d %s" % (len(out["a"]), failed))
`)

	tasks, _, err := RunScript(context.Background(), ScriptConfig{Filename: script, ProjectRoot: dir, Configure: true})
	require.NoError(t, err)
	assert.Equal(t, "2 False", tasks["check"].Desc)
}

func TestEnvBuiltins(t *testing.T) {
	t.Setenv("SLINKY_BUILTIN_TEST", "os")
	t.Setenv("PATH", "/usr/bin")
	sep := string(os.PathListSeparator)

	tcs := []struct {
		name     string
		body     string
		expected func(dir string) string
	}{
		{
			name:     "getenv prefers setenv",
			body:     `setenv("SLINKY_BUILTIN_TEST", "script")` + "\n    result = getenv(\"SLINKY_BUILTIN_TEST\", \"default\")",
			expected: func(string) string { return "script" },
		},
		{
			name:     "getenv reads the environment",
			body:     `result = getenv("SLINKY_BUILTIN_TEST", "default")`,
			expected: func(string) string { return "os" },
		},
		{
			name:     "getenv default",
			body:     `result = getenv("SLINKY_BUILTIN_MISSING", "default")`,
			expected: func(string) string { return "default" },
		},
		{
			name:     "getenv without default",
			body:     `result = getenv("SLINKY_BUILTIN_MISSING")`,
			expected: func(string) string { return "" },
		},
		{
			name: "prepend_path",
			body: `result = prepend_path("tools")`,
			expected: func(dir string) string {
				return filepath.Join(dir, "tools") + sep + "/usr/bin"
			},
		},
		{
			name: "prepend_path twice is visible to getenv",
			body: `prepend_path("tools")` + "\n    prepend_path(\"//bin\")\n    result = getenv(\"PATH\")",
			expected: func(dir string) string {
				return filepath.Join(dir, "bin") + sep + filepath.Join(dir, "tools") + sep + "/usr/bin"
			},
		},
		{
			name:     "setenv returns True",
			body:     `result = str(setenv("SLINKY_BUILTIN_OTHER", "x"))`,
			expected: func(string) string { return "True" },
		},
		{
			name:     "isdir",
			body:     `result = "%s %s %s %s" % (isdir("sub"), isdir("//sub"), isdir("sub/file.txt"), isdir("missing"))`,
			expected: func(string) string { return "True True False False" },
		},
		{
			name:     "isfile",
			body:     `result = "%s %s %s %s" % (isfile("sub"), isfile("sub/file.txt"), isfile("//sub/file.txt"), isfile("missing"))`,
			expected: func(string) string { return "False True True False" },
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "file.txt"), []byte("x"), 0o600))

			script := writeScript(t, dir, "def configure():\n    "+tc.body+"\n    task(\"result\", desc = result)\n")
			tasks, _, err := RunScript(context.Background(), ScriptConfig{Filename: script, ProjectRoot: dir, Configure: true})
			require.NoError(t, err)
			require.Contains(t, tasks, "result")
			assert.Equal(t, tc.expected(dir), tasks["result"].Desc)
		})
	}
}

func TestLogBuiltins(t *testing.T) {
	var out bytes.Buffer
	logger := zerolog.New(&out)
	ctx := WithLogger(context.Background(), &logger)

	dir := t.TempDir()
	script := writeScript(t, dir, `info("loading tasks")

def configure():
    warn("no compiler found")
    task("a")
`)

	tasks, _, err := RunScript(ctx, ScriptConfig{Filename: script, ProjectRoot: dir, Configure: true})
	require.NoError(t, err)
	assert.Contains(t, tasks, "a")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[0], "tasks.star:1:")
	assert.Contains(t, lines[0], "loading tasks")
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], "tasks.star:4:")
	assert.Contains(t, lines[1], "no compiler found")

	tcs := []struct {
		name   string
		script string
		errMsg string
	}{
		{"error in configure", "def configure():\n    error(\"stop here\")\n", "stop here"},
		{"error needs a string", "error(1)\n", "error"},
		{"info needs a message", "info()\n", "info"},
		{"warn takes one argument", "warn(\"a\", \"b\")\n", "warn"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			script := writeScript(t, dir, tc.script)

			_, _, err := RunScript(ctx, ScriptConfig{Filename: script, ProjectRoot: dir, Configure: true})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
