package buildsys

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// TaskCmd is a single step of a task. Each implementation handles exactly one of the kinds below;
// the other accessors return nil.
type TaskCmd interface {
	ToTask() (*Task, error)
	ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error)
	ToInvoke() string
	ToAction() *TaskCmdAction
}

// TaskCmdScript is a shell snippet executed by the built-in shell interpreter
type TaskCmdScript struct {
	TaskName string
	Content  string
	Index    int
}

func (s TaskCmdScript) ToTask() (*Task, error) {
	return nil, nil
}

func (s TaskCmdScript) ToShellStmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	reader := strings.NewReader(s.Content)
	result, err := parser.Parse(reader, fmt.Sprintf("%s:%d", s.TaskName, s.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return result.Stmts, nil
}

func (s TaskCmdScript) ToInvoke() string {
	return ""
}

func (s TaskCmdScript) ToAction() *TaskCmdAction {
	return nil
}

// TaskCmdTaskRef runs an inline (usually anonymous) task
type TaskCmdTaskRef struct {
	Task *Task
}

func (t TaskCmdTaskRef) ToTask() (*Task, error) {
	return t.Task, nil
}

func (t TaskCmdTaskRef) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

func (t TaskCmdTaskRef) ToInvoke() string {
	return ""
}

func (t TaskCmdTaskRef) ToAction() *TaskCmdAction {
	return nil
}

// TaskCmdInvoke runs the named task at this point unless it already ran during this invocation.
type TaskCmdInvoke struct {
	Name string
}

func (i TaskCmdInvoke) ToTask() (*Task, error) {
	return nil, nil
}

func (i TaskCmdInvoke) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

func (i TaskCmdInvoke) ToInvoke() string {
	return i.Name
}

func (i TaskCmdInvoke) ToAction() *TaskCmdAction {
	return nil
}

// TaskCmdAction calls a Go action registered with RegisterAction
type TaskCmdAction struct {
	Name string
	Args []string
}

func (a TaskCmdAction) ToTask() (*Task, error) {
	return nil, nil
}

func (a TaskCmdAction) ToShellStmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

func (a TaskCmdAction) ToInvoke() string {
	return ""
}

func (a TaskCmdAction) ToAction() *TaskCmdAction {
	return &a
}

func (a TaskCmdAction) String() string {
	return strings.TrimSpace(a.Name + " " + strings.Join(a.Args, " "))
}

// Task contains the processed values passed to task() by the task script or generated from the
// project configuration
type Task struct {
	Env          map[string]string
	Short        string
	Desc         string
	Base         string
	Inputs       []string
	Deps         []string
	SkipIfExists []string
	Requires     []string
	Outputs      []string
	Cmds         []TaskCmd
	Hidden       bool
}

// TaskList maps short names to each relevant task
type TaskList map[string]*Task

// Merge adds all tasks from other to the list. Existing tasks with the same name are replaced and
// their names returned.
func (l TaskList) Merge(other TaskList) []string {
	replaced := []string{}
	for name, task := range other {
		if _, ok := l[name]; ok {
			replaced = append(replaced, name)
		}
		l[name] = task
	}
	return replaced
}

type ScriptOption struct {
	DefaultValue starlark.String
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue.GoString()
}

// Implement starlark.Value for *Task

// String returns a string representation of the task
func (t *Task) String() string {
	return fmt.Sprintf("<Task %s: %s>", t.Short, t.Desc)
}

// Type always returns "task" to indicate this type
func (t *Task) Type() string {
	return "task"
}

// Freeze doesn't do anything since tasks are immutable anyway
func (t *Task) Freeze() {}

// Truth always returns true since a task can't be nil or None
func (t *Task) Truth() starlark.Bool {
	return starlark.True
}

// Hash always returns an error since task is not hashable
func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("task is not a hashable type")
}

// starlarkCmd wraps invoke() and action() results so they can be placed in a task's cmds list
type starlarkCmd struct {
	cmd TaskCmd
}

func (c starlarkCmd) String() string {
	if name := c.cmd.ToInvoke(); name != "" {
		return fmt.Sprintf("<invoke %s>", name)
	}
	if action := c.cmd.ToAction(); action != nil {
		return fmt.Sprintf("<action %s>", action)
	}
	return "<cmd>"
}

func (c starlarkCmd) Type() string {
	return "cmd"
}

func (c starlarkCmd) Freeze() {}

func (c starlarkCmd) Truth() starlark.Bool {
	return starlark.True
}

func (c starlarkCmd) Hash() (uint32, error) {
	return 0, eris.New("cmd is not a hashable type")
}

type StarlarkPath string

func (p StarlarkPath) String() string {
	return starlark.String(p).String()
}

func (p StarlarkPath) Type() string {
	return "path"
}

func (p StarlarkPath) Freeze() {}

func (p StarlarkPath) Truth() starlark.Bool {
	return p != ""
}

func (p StarlarkPath) Hash() (uint32, error) {
	return starlark.String(p).Hash()
}

func (p StarlarkPath) CompareSameType(op starsyntax.Token, y_ starlark.Value, depth int) (bool, error) {
	y := y_.(StarlarkPath)

	switch op {
	case starsyntax.EQL:
		return p == y, nil
	case starsyntax.NEQ:
		return p != y, nil
	case starsyntax.LT:
		return p < y, nil
	case starsyntax.LE:
		return p <= y, nil
	case starsyntax.GT:
		return p > y, nil
	case starsyntax.GE:
		return p >= y, nil
	}

	return false, eris.Errorf("unknown operator %v", op)
}

func (p StarlarkPath) Index(i int) starlark.Value {
	return starlark.String(p[i])
}

func (p StarlarkPath) Len() int {
	return len(p)
}

func (p StarlarkPath) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}
