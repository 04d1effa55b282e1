package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Options controls a task run
type Options struct {
	// DryRun only logs the commands
	DryRun bool
	// Force ignores skip_if_exists and the input/output timestamps
	Force bool
	// ToolPath is the executable providing the portable mv, rm, mkdir and cp helpers. If empty,
	// those commands are looked up in PATH like any other command.
	ToolPath string
	// StateDir is where actions keep per-project state. Defaults to build/.slinky below the
	// project root.
	StateDir string
	Stdout   io.Writer
	Stderr   io.Writer
}

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		runTasks    map[string]bool
		projectRoot string
		opts        Options
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	return ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
}

func getTaskEnv(task *Task) expand.Environ {
	envVars := os.Environ()

	for name, value := range task.Env {
		envVars = append(envVars, fmt.Sprintf("%s=%s", name, value))
	}

	return expand.ListEnviron(envVars...)
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

var toolCommands = map[string]bool{
	"mv":    true,
	"rm":    true,
	"mkdir": true,
	"cp":    true,
}

func makeExecHandler(toolPath string) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 && toolPath != "" && toolCommands[args[0]] {
			// always use our cross-platform implementation for these operations to make sure
			// they behave consistently
			args = append([]string{toolPath}, args...)
		}

		return defaultExecHandler(ctx, args)
	}
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

func resolvePatternLists(ctx context.Context, base string, patterns []string) ([]string, error) {
	result := []string{}
	cfg := expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}

	parser := syntax.NewParser()
	projectRoot := getRuntimeCtx(ctx).projectRoot
	parserCtx := &parserCtx{
		filepath:    filepath.Join(projectRoot, "invalid"),
		projectRoot: projectRoot,
	}

	for _, item := range patterns {
		item = normalizePath(parserCtx, base, item)
		item = filepath.ToSlash(item)

		words := make([]*syntax.Word, 0)
		err := parser.Words(strings.NewReader(item), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to parse pattern %s", item)
		}

		matches, err := expand.Fields(&cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "Failed to resolve pattern %s", item)
		}

		for _, match := range matches {
			// If a pattern didn't match anything, it's returned as a result. Skip those results.
			if !strings.Contains(match, "*") {
				result = append(result, match)
			}
		}
	}
	return result, nil
}

func newRuntimeCtx(ctx context.Context, projectRoot string, opts Options) context.Context {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.StateDir == "" {
		opts.StateDir = filepath.Join(projectRoot, "build", ".slinky")
	}

	rctx := runtimeCtx{
		projectRoot: projectRoot,
		runTasks:    make(map[string]bool),
		opts:        opts,
	}

	return context.WithValue(ctx, runtimeCtxKey{}, &rctx)
}

// RunTask executes the given task and its dependencies
func RunTask(ctx context.Context, projectRoot, task string, tasks TaskList, opts Options) error {
	return RunTasks(ctx, projectRoot, []string{task}, tasks, opts)
}

// RunTasks executes the given tasks in order. All tasks share a single invocation, which means that
// each task runs at most once even if several of the given tasks depend on it.
func RunTasks(ctx context.Context, projectRoot string, names []string, tasks TaskList, opts Options) error {
	ctx = newRuntimeCtx(ctx, projectRoot, opts)

	for _, name := range names {
		taskMeta, found := tasks[name]
		if !found {
			return eris.Errorf("Task %s not found", name)
		}

		err := runTaskInternal(ctx, taskMeta, tasks, opts.Force, true)
		if err != nil {
			return err
		}
	}

	return nil
}

func checkRequirements(ctx context.Context, task *Task) error {
	requirements, err := resolvePatternLists(ctx, task.Base, task.Requires)
	if err != nil {
		return eris.Wrap(err, "failed to resolve requirements")
	}

	if len(requirements) < len(task.Requires) {
		return eris.Errorf("Task %s is missing required files (%s)", task.Short, strings.Join(task.Requires, ", "))
	}

	for _, item := range requirements {
		_, err := os.Stat(item)
		if err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return eris.Errorf("Task %s requires %s which does not exist", task.Short, item)
			}
			return eris.Wrapf(err, "Failed to check %s", item)
		}
	}

	return nil
}

func upToDate(ctx context.Context, task *Task) (bool, error) {
	var newestInput time.Time
	inputList, err := resolvePatternLists(ctx, task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve inputs")
	}

	outputList, err := resolvePatternLists(ctx, task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to resolve output list")
	}

	for _, item := range inputList {
		info, err := os.Stat(item)
		if err != nil {
			return false, eris.Wrapf(err, "Failed to check input %s", item)
		}

		if info.ModTime().Sub(newestInput) > 0 {
			newestInput = info.ModTime()
		}
	}

	if newestInput.IsZero() {
		return false, nil
	}

	var newestOutput time.Time
	oldestOutput := time.Now()

	for _, item := range outputList {
		info, err := os.Stat(item)
		if err != nil && !eris.Is(err, os.ErrNotExist) {
			return false, eris.Wrapf(err, "Failed to check output %s", item)
		}

		if err == nil {
			mt := info.ModTime()
			if mt.Sub(newestOutput) > 0 {
				newestOutput = mt
			}

			if oldestOutput.Sub(mt) > 0 {
				oldestOutput = mt
			}
		}
	}

	if newestOutput.Sub(oldestOutput) > 10*time.Minute {
		log(ctx).Warn().
			Str("task", task.Short).
			Msgf("oldest output is %f minutes older than the newest output", newestOutput.Sub(oldestOutput).Minutes())
	}

	if newestOutput.Sub(newestInput) > 0 {
		log(ctx).Info().
			Str("task", task.Short).
			Msgf("nothing to do (output is %f seconds newer)", newestOutput.Sub(newestInput).Seconds())
		return true, nil
	}

	return false, nil
}

func runTaskInternal(ctx context.Context, task *Task, tasks TaskList, force, canSkip bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rctx := getRuntimeCtx(ctx)
	status, ok := rctx.runTasks[task.Short]
	if ok {
		if status {
			// this task has already been run
			log(ctx).Debug().Msgf("Task %s already run", task.Short)
			return nil
		}

		return eris.Errorf("Task %s was called recursively", task.Short)
	}

	rctx.runTasks[task.Short] = false

	for _, dep := range task.Deps {
		if !rctx.runTasks[dep] {
			depTask, ok := tasks[dep]
			if !ok {
				return eris.Errorf("Task %s not found", dep)
			}

			err := runTaskInternal(ctx, depTask, tasks, false, true)
			if err != nil {
				return eris.Wrapf(err, "Task %s failed due to its dependency %s", task.Short, dep)
			}
		}
	}

	if canSkip && !force {
		skipList, err := resolvePatternLists(ctx, task.Base, task.SkipIfExists)
		if err != nil {
			return eris.Wrapf(err, "failed to resolve skipIfExists list")
		}

		found := 0
		for _, item := range skipList {
			_, err := os.Stat(item)
			if err == nil {
				found++
			} else if !eris.Is(err, os.ErrNotExist) {
				return eris.Wrapf(err, "Failed to check %s", item)
			}
		}

		if found > 0 && found == len(skipList) {
			log(ctx).Info().
				Str("task", task.Short).
				Msg("skipped because all skip files exist")

			rctx.runTasks[task.Short] = true
			return nil
		}
	}

	if !force {
		skip, err := upToDate(ctx, task)
		if err != nil {
			return err
		}

		if skip {
			rctx.runTasks[task.Short] = true
			return nil
		}
	}

	if !rctx.opts.DryRun {
		err := checkRequirements(ctx, task)
		if err != nil {
			return err
		}
	}

	// With the skip and input/output checks done, we can finally start executing
	runner, err := interp.New(
		interp.Dir(task.Base),
		interp.Env(getTaskEnv(task)),
		interp.ExecHandler(makeExecHandler(rctx.opts.ToolPath)),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, rctx.opts.Stdout, rctx.opts.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	parser := syntax.NewParser()
	printer := syntax.NewPrinter(
		syntax.Minify(true),
	)
	strBuffer := strings.Builder{}

	for _, item := range task.Cmds {
		if name := item.ToInvoke(); name != "" {
			err = invokeTask(ctx, task, name, tasks, force)
			if err != nil {
				return err
			}
		} else if action := item.ToAction(); action != nil {
			err = runAction(ctx, task, action)
			if err != nil {
				return err
			}
		} else {
			stmts, err := item.ToShellStmts(parser)
			if err != nil {
				return eris.Wrap(err, "failed to parser shell script")
			}

			if stmts != nil {
				for _, stm := range stmts {
					strBuffer.Reset()
					err = printer.Print(&strBuffer, stm)
					if err != nil {
						return eris.Wrap(err, "failed to print shell statement")
					}

					log(ctx).Info().
						Str("task", task.Short).
						Bool("command", true).
						Msg(strBuffer.String())

					if !rctx.opts.DryRun {
						err = runner.Run(ctx, stm)
						if err != nil {
							return eris.Wrapf(err, "Task %s failed", task.Short)
						}

						if runner.Exited() {
							rctx.runTasks[task.Short] = true
							return nil
						}
					}
				}
			} else {
				subTask, err := item.ToTask()
				if err != nil {
					return eris.Wrap(err, "failed to retrieve task ref")
				}

				if subTask == nil {
					return eris.Errorf("unexpected task command %+v", item)
				}

				err = runTaskInternal(ctx, subTask, tasks, force, true)
				if err != nil {
					return err
				}
			}
		}

		if err = ctx.Err(); err != nil {
			return err
		}
	}

	if task.Short != "" {
		rctx.runTasks[task.Short] = true
	}
	return nil
}

func invokeTask(ctx context.Context, parent *Task, name string, tasks TaskList, force bool) error {
	target, ok := tasks[name]
	if !ok {
		return eris.Errorf("Task %s invoked unknown task %s", parent.Short, name)
	}

	log(ctx).Debug().
		Str("task", parent.Short).
		Msgf("invoking %s", name)

	return runTaskInternal(ctx, target, tasks, force, true)
}

func runAction(ctx context.Context, task *Task, action *TaskCmdAction) error {
	rctx := getRuntimeCtx(ctx)
	fn, err := LookupAction(action.Name)
	if err != nil {
		return eris.Wrapf(err, "Task %s failed", task.Short)
	}

	log(ctx).Info().
		Str("task", task.Short).
		Bool("action", true).
		Msg(action.String())

	env := ActionEnv{
		ProjectRoot: rctx.projectRoot,
		StateDir:    rctx.opts.StateDir,
		Task:        task,
		DryRun:      rctx.opts.DryRun,
	}

	err = fn(ctx, env, action.Args)
	if err != nil {
		return eris.Wrapf(err, "Task %s failed in action %s", task.Short, action.Name)
	}
	return nil
}
