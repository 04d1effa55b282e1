package buildsys

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineTasks() TaskList {
	return TaskList{
		"test:all": {Short: "test:all"},
		"release":  {Short: "release"},
		"publish":  {Short: "publish", Cmds: []TaskCmd{TaskCmdInvoke{Name: "release"}, TaskCmdAction{Name: "install"}}},
		"doxygen":  {Short: "doxygen"},
		"default":  {Short: "default", Deps: []string{"test:all", "release", "publish"}},
	}
}

func TestOrder(t *testing.T) {
	tasks := pipelineTasks()

	order, err := Order(tasks, "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"test:all", "release", "publish", "default"}, order)

	order, err = Order(tasks, "publish")
	require.NoError(t, err)
	assert.Equal(t, []string{"publish", "release"}, order)

	_, err = Order(tasks, "missing")
	assert.Error(t, err)
}

func TestSorted(t *testing.T) {
	order, err := Sorted(pipelineTasks())
	require.NoError(t, err)
	require.Len(t, order, 5)

	pos := map[string]int{}
	for idx, name := range order {
		pos[name] = idx
	}
	assert.Less(t, pos["release"], pos["publish"])
	assert.Less(t, pos["publish"], pos["default"])
	assert.Less(t, pos["test:all"], pos["default"])
}

func TestValidate(t *testing.T) {
	tasks := pipelineTasks()
	require.NoError(t, Validate(tasks))

	tasks["release"].Deps = []string{"nope"}
	err := Validate(tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown task nope")

	tasks = pipelineTasks()
	tasks["release"].Cmds = []TaskCmd{TaskCmdInvoke{Name: "default"}}
	err = Validate(tasks)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	tasks = pipelineTasks()
	tasks["release"].Deps = []string{"release"}
	assert.Error(t, Validate(tasks))
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, pipelineTasks(), "publish"))

	dot := buf.String()
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, `"release"`)
	assert.NotContains(t, dot, `"doxygen"`)

	buf.Reset()
	require.NoError(t, WriteDOT(&buf, pipelineTasks(), ""))
	assert.Contains(t, buf.String(), `"doxygen"`)

	assert.Error(t, WriteDOT(&buf, pipelineTasks(), "missing"))
}

func TestCache(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tasks.cache")
	options := map[string]string{"greeting": "hi"}
	tasks := pipelineTasks()
	tasks["release"].Cmds = []TaskCmd{TaskCmdScript{Content: "ceedling release"}}

	require.NoError(t, WriteCache(file, options, tasks))
	assert.True(t, CacheValid(file))

	readOptions, readTasks, err := ReadCache(file)
	require.NoError(t, err)
	assert.Equal(t, options, readOptions)
	require.Contains(t, readTasks, "publish")
	assert.Equal(t, "release", readTasks["publish"].Cmds[0].ToInvoke())
	assert.Equal(t, "install", readTasks["publish"].Cmds[1].ToAction().Name)
	assert.Equal(t, "ceedling release", readTasks["release"].Cmds[0].(TaskCmdScript).Content)

	_, _, err = ReadCache(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
