package buildsys

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTask(base, name string, cmds ...TaskCmd) *Task {
	return &Task{
		Short: name,
		Base:  base,
		Env:   map[string]string{},
		Cmds:  append([]TaskCmd{TaskCmdScript{TaskName: name, Content: "echo " + name}}, cmds...),
	}
}

func runForOutput(t *testing.T, base string, tasks TaskList, opts Options, names ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	opts.Stdout = &out
	opts.Stderr = &out

	err := RunTasks(context.Background(), base, names, tasks, opts)
	return out.String(), err
}

func TestRunTaskDependencyOrder(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{
		"a": echoTask(base, "a"),
		"b": echoTask(base, "b"),
		"c": echoTask(base, "c"),
	}
	tasks["a"].Deps = []string{"b", "c"}
	tasks["c"].Deps = []string{"b"}

	out, err := runForOutput(t, base, tasks, Options{}, "a")
	require.NoError(t, err)
	assert.Equal(t, "b\nc\na\n", out)
}

func TestRunTasksRunsEachTaskOnce(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{
		"test":    echoTask(base, "test"),
		"release": echoTask(base, "release"),
		"publish": echoTask(base, "publish", TaskCmdInvoke{Name: "release"}),
		"default": {Short: "default", Base: base, Deps: []string{"test", "release", "publish"}},
	}

	out, err := runForOutput(t, base, tasks, Options{}, "default")
	require.NoError(t, err)
	assert.Equal(t, "test\nrelease\npublish\n", out)

	// publish on its own still triggers the release
	out, err = runForOutput(t, base, tasks, Options{}, "publish")
	require.NoError(t, err)
	assert.Equal(t, "publish\nrelease\n", out)

	// multiple tasks share one invocation
	out, err = runForOutput(t, base, tasks, Options{}, "release", "publish")
	require.NoError(t, err)
	assert.Equal(t, "release\npublish\n", out)
}

func TestRunTaskRecursion(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{
		"a": echoTask(base, "a", TaskCmdInvoke{Name: "b"}),
		"b": echoTask(base, "b", TaskCmdInvoke{Name: "a"}),
	}

	_, err := runForOutput(t, base, tasks, Options{}, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursively")
}

func TestRunTaskUnknown(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{
		"a": echoTask(base, "a", TaskCmdInvoke{Name: "missing"}),
	}

	_, err := runForOutput(t, base, tasks, Options{}, "nope")
	assert.Error(t, err)

	_, err = runForOutput(t, base, tasks, Options{}, "a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestRunTaskFailingCommand(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{
		"a": echoTask(base, "a"),
		"b": echoTask(base, "b"),
	}
	tasks["a"].Cmds = append(tasks["a"].Cmds, TaskCmdScript{Content: "exit 3"})
	tasks["b"].Deps = []string{"a"}

	out, err := runForOutput(t, base, tasks, Options{}, "b")
	require.Error(t, err)
	assert.Equal(t, "a\n", out)
}

func TestRunTaskRequires(t *testing.T) {
	base := t.TempDir()
	task := echoTask(base, "docs")
	task.Requires = []string{".doxygen"}
	tasks := TaskList{"docs": task}

	_, err := runForOutput(t, base, tasks, Options{}, "docs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".doxygen")

	// a dry run doesn't check requirements or execute anything
	out, err := runForOutput(t, base, tasks, Options{DryRun: true}, "docs")
	require.NoError(t, err)
	assert.Empty(t, out)

	require.NoError(t, os.WriteFile(filepath.Join(base, ".doxygen"), []byte("PROJECT_NAME=x\n"), 0o600))
	out, err = runForOutput(t, base, tasks, Options{}, "docs")
	require.NoError(t, err)
	assert.Equal(t, "docs\n", out)
}

func TestRunTaskSkipIfExists(t *testing.T) {
	base := t.TempDir()
	task := echoTask(base, "build")
	task.SkipIfExists = []string{"out.txt"}
	tasks := TaskList{"build": task}

	out, err := runForOutput(t, base, tasks, Options{}, "build")
	require.NoError(t, err)
	assert.Equal(t, "build\n", out)

	require.NoError(t, os.WriteFile(filepath.Join(base, "out.txt"), nil, 0o600))
	out, err = runForOutput(t, base, tasks, Options{}, "build")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = runForOutput(t, base, tasks, Options{Force: true}, "build")
	require.NoError(t, err)
	assert.Equal(t, "build\n", out)
}

func TestRunTaskEnvAndAction(t *testing.T) {
	base := t.TempDir()

	var calls [][]string
	var envs []ActionEnv
	RegisterAction("runner-test-record", func(ctx context.Context, env ActionEnv, args []string) error {
		calls = append(calls, args)
		envs = append(envs, env)
		return nil
	})

	task := &Task{
		Short: "a",
		Base:  base,
		Env:   map[string]string{"GREETING": "hello"},
		Cmds: []TaskCmd{
			TaskCmdScript{Content: "echo $GREETING"},
			TaskCmdAction{Name: "runner-test-record", Args: []string{"one", "two"}},
		},
	}
	tasks := TaskList{"a": task}

	out, err := runForOutput(t, base, tasks, Options{}, "a")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"one", "two"}, calls[0])
	assert.Equal(t, base, envs[0].ProjectRoot)
	assert.Equal(t, filepath.Join(base, "build", ".slinky"), envs[0].StateDir)
	assert.False(t, envs[0].DryRun)

	stateDir := filepath.Join(base, "out", ".state")
	_, err = runForOutput(t, base, tasks, Options{DryRun: true, StateDir: stateDir}, "a")
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.True(t, envs[1].DryRun)
	assert.Equal(t, stateDir, envs[1].StateDir)

	task.Cmds = []TaskCmd{TaskCmdAction{Name: "runner-test-unknown"}}
	_, err = runForOutput(t, base, tasks, Options{}, "a")
	assert.Error(t, err)
}

func TestRunTaskInline(t *testing.T) {
	base := t.TempDir()
	inner := echoTask(base, "auto#inner")
	inner.Hidden = true

	tasks := TaskList{
		"outer": echoTask(base, "outer", TaskCmdTaskRef{Task: inner}),
	}

	out, err := runForOutput(t, base, tasks, Options{}, "outer")
	require.NoError(t, err)
	assert.Equal(t, "outer\nauto#inner\n", out)
}

func TestRunTaskCancelled(t *testing.T) {
	base := t.TempDir()
	tasks := TaskList{"a": echoTask(base, "a")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTask(ctx, base, "a", tasks, Options{Stdout: &bytes.Buffer{}})
	assert.ErrorIs(t, err, context.Canceled)
}
