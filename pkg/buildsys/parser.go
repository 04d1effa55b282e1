package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/syntax"
)

// ScriptConfig describes a task script and the values exposed to it
type ScriptConfig struct {
	// Filename is the path of the task script
	Filename    string
	ProjectRoot string
	// Options holds values for the script's option() calls, usually parsed from the command line
	Options map[string]string
	// Project is exposed to the script as the PROJECT dict
	Project map[string]string
	// ToolPath is used by execute() for the portable file helpers, see Options.ToolPath
	ToolPath string
	// Configure calls the script's configure() function and collects the declared tasks
	Configure bool
}

type parserCtx struct {
	ctx          context.Context
	options      map[string]ScriptOption
	optionValues map[string]string
	envOverrides map[string]string
	yamlCache    map[string]interface{}
	filepath     string
	projectRoot  string
	toolPath     string
	tasks        []*Task
	initPhase    bool
}

func getCtx(thread *starlark.Thread) *parserCtx {
	return thread.Local("parserCtx").(*parserCtx)
}

func option(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var defaultValue starlark.String
	var help string

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	ctx := getCtx(thread)
	if !ctx.initPhase {
		return nil, eris.New("can only be called during the init phase (in the global scope)")
	}

	ctx.options[name] = ScriptOption{
		DefaultValue: defaultValue,
		Help:         help,
	}

	if value, ok := ctx.optionValues[name]; ok {
		return starlark.String(value), nil
	}
	return defaultValue, nil
}

// invoke(name) returns a command which runs the named task unless it already ran
func invoke(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string

	err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &name)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return nil, eris.New("invoke: the task name can't be empty")
	}

	return starlarkCmd{cmd: TaskCmdInvoke{Name: name}}, nil
}

// action(name, *args) returns a command which calls a registered Go action
func action(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, eris.Errorf("%s: unexpected keyword arguments", fn.Name())
	}

	if len(args) < 1 {
		return nil, eris.Errorf("%s: missing action name", fn.Name())
	}

	name, ok := args[0].(starlark.String)
	if !ok {
		return nil, eris.Errorf("%s: expected the action name to be a string but got %s", fn.Name(), args[0].Type())
	}

	if _, err := LookupAction(name.GoString()); err != nil {
		return nil, eris.Errorf("%s: unknown action %s, available: %s", fn.Name(), name.GoString(), strings.Join(ActionNames(), ", "))
	}

	cmd := TaskCmdAction{
		Name: name.GoString(),
		Args: make([]string, 0, len(args)-1),
	}

	for idx, arg := range args[1:] {
		switch value := arg.(type) {
		case starlark.String:
			cmd.Args = append(cmd.Args, value.GoString())
		case StarlarkPath:
			cmd.Args = append(cmd.Args, string(value))
		default:
			return nil, eris.Errorf("%s: argument %d is a %s but only strings and paths are supported", fn.Name(), idx+1, arg.Type())
		}
	}

	return starlarkCmd{cmd: cmd}, nil
}

func parseEnvDict(env *starlark.Dict) (map[string]string, error) {
	result := map[string]string{}
	if env == nil {
		return result, nil
	}

	for _, item := range env.Items() {
		key, ok := item[0].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found key type %s in env map but only strings are supported", item[0].Type())
		}

		value, ok := item[1].(starlark.String)
		if !ok {
			return nil, eris.Errorf("found value of type %s for key %s but only strings are supported", item[1].Type(), key.GoString())
		}

		result[key.GoString()] = value.GoString()
	}

	return result, nil
}

func parseTaskCmds(name string, base string, cmds *starlark.List) ([]TaskCmd, error) {
	result := make([]TaskCmd, 0)
	if cmds == nil {
		return result, nil
	}

	strBuffer := strings.Builder{}
	printer := syntax.NewPrinter(syntax.Minify(true))
	parser := syntax.NewParser()

	for idx := 0; idx < cmds.Len(); idx++ {
		var parts starlark.Tuple

		switch value := cmds.Index(idx).(type) {
		case starlark.String:
			result = append(result, TaskCmdScript{TaskName: name, Index: idx, Content: value.GoString()})
			continue
		case *Task:
			result = append(result, TaskCmdTaskRef{Task: value})
			continue
		case starlarkCmd:
			result = append(result, value.cmd)
			continue
		case starlark.Tuple:
			parts = value
		case *starlark.List:
			parts = make(starlark.Tuple, value.Len())
			for p := range parts {
				parts[p] = value.Index(p)
			}
		default:
			return nil, eris.Errorf("unexpected type %s in cmds. Only strings, tuples, lists, tasks, invoke() and action() are valid", value.Type())
		}

		cmd, err := processCmdParts(parts, parser, base)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to process command #%d", idx)
		}

		strBuffer.Reset()
		err = printer.Print(&strBuffer, cmd)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to process command #%d", idx)
		}

		result = append(result, TaskCmdScript{TaskName: name, Index: idx, Content: strBuffer.String()})
	}

	return result, nil
}

func task(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var deps, skipIfExists, requires, inputs, outputs, cmds *starlark.List
	var env *starlark.Dict

	task := new(Task)

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "short??", &task.Short, "hidden?", &task.Hidden,
		"desc?", &task.Desc, "deps?", &deps, "base?", &task.Base, "skip_if_exists?", &skipIfExists,
		"requires?", &requires, "inputs?", &inputs, "outputs?", &outputs, "env?", &env, "cmds?", &cmds)
	if err != nil {
		return nil, err
	}

	if task.Short == "" {
		task.Hidden = true
		task.Short = "auto#" + nanoid.New()
	}

	if task.Short == "configure" {
		return nil, eris.New(`the task name "configure" is reserved, please use a different name`)
	}

	if task.Base == "" {
		task.Base = "."
	}
	task.Base = normalizePath(getCtx(thread), task.Base)

	lists := []struct {
		field  string
		input  *starlark.List
		target *[]string
	}{
		{"deps", deps, &task.Deps},
		{"skip_if_exists", skipIfExists, &task.SkipIfExists},
		{"requires", requires, &task.Requires},
		{"inputs", inputs, &task.Inputs},
		{"outputs", outputs, &task.Outputs},
	}
	for _, item := range lists {
		*item.target, err = starlarkList2stringSlice(item.input, item.field)
		if err != nil {
			return nil, err
		}
	}

	task.Env, err = parseEnvDict(env)
	if err != nil {
		return nil, err
	}

	task.Cmds, err = parseTaskCmds(task.Short, task.Base, cmds)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", fn.Name(), task.Short)
	}

	if len(task.Inputs) > 0 && len(task.Outputs) == 0 {
		warn(thread, "%s: found inputs but no outputs", fn.Name())
	}

	if !task.Hidden {
		ctx := getCtx(thread)
		ctx.tasks = append(ctx.tasks, task)
	}
	return task, nil
}

func scriptError(ctx *parserCtx, err error, what string) error {
	if evalError, ok := err.(*starlark.EvalError); ok {
		return eris.Errorf("failed to %s %s:\n%s", what, simplifyPath(ctx, ctx.filepath), evalError.Backtrace())
	}
	return eris.Wrapf(err, "failed to %s %s", what, simplifyPath(ctx, ctx.filepath))
}

func projectDict(values map[string]string) *starlark.Dict {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dict := starlark.NewDict(len(values))
	for _, k := range keys {
		// SetKey only fails for unhashable keys or frozen dicts
		_ = dict.SetKey(starlark.String(k), starlark.String(values[k]))
	}
	dict.Freeze()
	return dict
}

// RunScript executes a task script and returns the declared options. If cfg.Configure is true, the script's
// configure function is called and the declared tasks are collected and returned.
func RunScript(ctx context.Context, cfg ScriptConfig) (TaskList, map[string]ScriptOption, error) {
	projectRoot, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, nil, err
	}

	filename, err := filepath.Abs(cfg.Filename)
	if err != nil {
		return nil, nil, err
	}

	optionValues := cfg.Options
	if optionValues == nil {
		optionValues = map[string]string{}
	}

	builtins := starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"PROJECT":      projectDict(cfg.Project),
		"info":         starlark.NewBuiltin("info", starInfo),
		"warn":         starlark.NewBuiltin("warn", starWarn),
		"error":        starlark.NewBuiltin("error", starError),
		"resolve_path": starlark.NewBuiltin("resolve_path", resolvePath),
		"option":       starlark.NewBuiltin("option", option),
		"getenv":       starlark.NewBuiltin("getenv", getenv),
		"setenv":       starlark.NewBuiltin("setenv", setenv),
		"prepend_path": starlark.NewBuiltin("prepend_path", prependPathDir),
		"read_yaml":    starlark.NewBuiltin("read_yaml", readYaml),
		"isdir":        starlark.NewBuiltin("isdir", starIsdir),
		"isfile":       starlark.NewBuiltin("isfile", starIsfile),
		"execute":      starlark.NewBuiltin("execute", starExec),
		"task":         starlark.NewBuiltin("task", task),
		"invoke":       starlark.NewBuiltin("invoke", invoke),
		"action":       starlark.NewBuiltin("action", action),
	}

	thread := &starlark.Thread{
		Name: "main",
		Print: func(thread *starlark.Thread, msg string) {
			log(ctx).Info().Str("thread", thread.Name).Msg(msg)
		},
	}
	threadCtx := parserCtx{
		ctx:          ctx,
		filepath:     filename,
		projectRoot:  projectRoot,
		toolPath:     cfg.ToolPath,
		options:      make(map[string]ScriptOption),
		optionValues: optionValues,
		envOverrides: make(map[string]string),
		tasks:        make([]*Task, 0),
		yamlCache:    make(map[string]interface{}),
		initPhase:    true,
	}
	thread.SetLocal("parserCtx", &threadCtx)

	script, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to read file")
	}

	globals, err := starlark.ExecFile(thread, simplifyPath(&threadCtx, filename), script, builtins)
	if err != nil {
		return nil, nil, scriptError(&threadCtx, err, "execute")
	}

	tasks := TaskList{}
	if !cfg.Configure {
		return tasks, threadCtx.options, nil
	}

	configure, ok := globals["configure"]
	if !ok {
		return nil, nil, eris.Errorf("%s did not declare a configure function", simplifyPath(&threadCtx, filename))
	}

	configureFunc, ok := configure.(starlark.Callable)
	if !ok {
		return nil, nil, eris.Errorf("%s did declare a configure value but it's not a function", simplifyPath(&threadCtx, filename))
	}

	threadCtx.initPhase = false
	_, err = starlark.Call(thread, configureFunc, starlark.Tuple{}, nil)
	if err != nil {
		return nil, nil, scriptError(&threadCtx, err, "configure")
	}

	for _, task := range threadCtx.tasks {
		if _, dup := tasks[task.Short]; dup {
			return nil, nil, eris.Errorf("%s declared task %s twice", simplifyPath(&threadCtx, filename), task.Short)
		}
		tasks[task.Short] = task

		for name, value := range threadCtx.envOverrides {
			if _, present := task.Env[name]; !present {
				task.Env[name] = value
			}
		}
	}

	return tasks, threadCtx.options, nil
}
