package project

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"

	"github.com/slinkylib/slinky/pkg/buildsys"
)

// Action names used by the builtin tasks. They're implemented in pkg/publish.
const (
	ActionInstall   = "install"
	ActionUninstall = "uninstall"
	ActionPackage   = "package"
)

// DefaultTask runs when no task was requested
const DefaultTask = "default"

func (p *Project) shellTask(name, desc string, cmds ...string) *buildsys.Task {
	task := &buildsys.Task{
		Short: name,
		Desc:  desc,
		Base:  p.Root,
		Env:   map[string]string{},
	}

	for idx, cmd := range cmds {
		task.Cmds = append(task.Cmds, buildsys.TaskCmdScript{TaskName: name, Index: idx, Content: cmd})
	}

	if settings, ok := p.Tasks[name]; ok {
		task.Inputs = settings.Inputs
		task.Outputs = settings.Outputs
		for k, v := range settings.Env {
			task.Env[k] = v
		}
	}

	return task
}

func (p *Project) relPath(path string) string {
	rel, err := filepath.Rel(p.Root, p.Path(path))
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// BuiltinTasks returns the builtin pipeline: test:all, release, publish, doxygen, package, uninstall and
// default which runs test:all, release and publish.
func (p *Project) BuiltinTasks() buildsys.TaskList {
	tasks := buildsys.TaskList{}

	tasks["test:all"] = p.shellTask("test:all", "Run all tests", p.Delegate+" test:all")
	tasks["release"] = p.shellTask("release", "Build "+p.ArtifactName(), p.Delegate+" release")

	publish := p.shellTask("publish", "Install the library and header below "+p.Prefix)
	publish.Cmds = []buildsys.TaskCmd{
		buildsys.TaskCmdInvoke{Name: "release"},
		buildsys.TaskCmdAction{Name: ActionInstall, Args: []string{p.Prefix, p.relPath(p.Artifact()), "lib"}},
		buildsys.TaskCmdAction{Name: ActionInstall, Args: []string{p.Prefix, p.relPath(p.Header), "include"}},
	}
	tasks["publish"] = publish

	docs := p.shellTask("doxygen", "Generate the API documentation", p.Docs.Generator+" "+p.Docs.Config)
	docs.Requires = []string{p.Docs.Config}
	tasks["doxygen"] = docs

	pkg := p.shellTask("package", "Write "+p.ArchiveName())
	pkg.Cmds = []buildsys.TaskCmd{
		buildsys.TaskCmdInvoke{Name: "release"},
		buildsys.TaskCmdAction{Name: ActionPackage, Args: []string{
			p.relPath(filepath.Join(p.ReleaseDir(), p.ArchiveName())),
			p.Name + "-" + p.Version,
			p.relPath(p.Artifact()),
			p.relPath(p.Header),
		}},
	}
	tasks["package"] = pkg

	uninstall := p.shellTask("uninstall", "Remove the files installed by publish")
	uninstall.Cmds = []buildsys.TaskCmd{
		buildsys.TaskCmdAction{Name: ActionUninstall, Args: []string{p.Prefix}},
	}
	tasks["uninstall"] = uninstall

	def := p.shellTask(DefaultTask, "Test, build and publish")
	def.Deps = []string{"test:all", "release", "publish"}
	tasks[DefaultTask] = def

	return tasks
}

// LoadEnv reads the project's env file. A missing file results in an empty map.
func (p *Project) LoadEnv() (map[string]string, error) {
	if p.EnvFile == "" {
		return map[string]string{}, nil
	}

	path := p.Path(p.EnvFile)
	env, err := godotenv.Read(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}
	return env, nil
}

// applyEnv adds env to every task without overriding values the task already sets
func applyEnv(tasks buildsys.TaskList, env map[string]string) {
	for _, task := range tasks {
		if task.Env == nil {
			task.Env = map[string]string{}
		}

		for k, v := range env {
			if _, present := task.Env[k]; !present {
				task.Env[k] = v
			}
		}
	}
}

// LoadOptions controls how the full task list is assembled
type LoadOptions struct {
	// Options are passed to the task script's option() calls
	Options  map[string]string
	ToolPath string
	// CacheFile, if set, stores the tasks declared by the script between runs
	CacheFile string
}

// LoadTasks returns the builtin tasks merged with the tasks declared by the project's task script,
// with the env file applied to all of them. The script's options are returned as well.
func (p *Project) LoadTasks(ctx context.Context, opts LoadOptions) (buildsys.TaskList, map[string]buildsys.ScriptOption, error) {
	tasks := p.BuiltinTasks()
	options := map[string]buildsys.ScriptOption{}

	script := ""
	if p.Script != "" {
		script = p.Path(p.Script)
		if _, err := os.Stat(script); err != nil {
			if !eris.Is(err, os.ErrNotExist) {
				return nil, nil, eris.Wrapf(err, "failed to check %s", script)
			}
			script = ""
		}
	}

	if script != "" {
		scriptTasks, scriptOptions, err := p.loadScriptTasks(ctx, script, opts)
		if err != nil {
			return nil, nil, err
		}
		options = scriptOptions

		replaced := tasks.Merge(scriptTasks)
		sort.Strings(replaced)
		for _, name := range replaced {
			buildsys.Log(ctx).Warn().Msgf("%s replaces the builtin task %s", p.Script, name)
		}
	}

	env, err := p.LoadEnv()
	if err != nil {
		return nil, nil, err
	}
	applyEnv(tasks, env)

	if err = buildsys.Validate(tasks); err != nil {
		return nil, nil, err
	}
	return tasks, options, nil
}

func (p *Project) scriptValues() map[string]string {
	return map[string]string{
		"name":       p.Name,
		"version":    p.Version,
		"header":     p.Header,
		"build_root": p.BuildRoot,
		"delegate":   p.Delegate,
		"prefix":     p.Prefix,
		"artifact":   p.ArtifactName(),
		"soname":     p.Soname(),
	}
}

func sameOptions(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func (p *Project) loadScriptTasks(ctx context.Context, script string, opts LoadOptions) (buildsys.TaskList, map[string]buildsys.ScriptOption, error) {
	cfg := buildsys.ScriptConfig{
		Filename:    script,
		ProjectRoot: p.Root,
		Options:     opts.Options,
		Project:     p.scriptValues(),
		ToolPath:    opts.ToolPath,
	}

	// The options are always needed for --list and validation
	_, options, err := buildsys.RunScript(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if opts.CacheFile != "" && buildsys.CacheValid(opts.CacheFile, script, p.Path(ConfigFile)) {
		cachedOptions, cachedTasks, err := buildsys.ReadCache(opts.CacheFile)
		if err == nil && sameOptions(cachedOptions, opts.Options) {
			buildsys.Log(ctx).Debug().Msgf("using cached tasks from %s", opts.CacheFile)
			return cachedTasks, options, nil
		}
	}

	cfg.Configure = true
	tasks, _, err := buildsys.RunScript(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if opts.CacheFile != "" {
		if err = os.MkdirAll(filepath.Dir(opts.CacheFile), 0o755); err == nil {
			err = buildsys.WriteCache(opts.CacheFile, opts.Options, tasks)
		}
		if err != nil {
			buildsys.Log(ctx).Warn().Err(err).Msg("failed to write the task cache")
		}
	}

	return tasks, options, nil
}

// OptionValues splits CLI arguments into task names and name=value script options
func OptionValues(args []string) ([]string, map[string]string) {
	names := []string{}
	options := map[string]string{}

	for _, arg := range args {
		if idx := strings.Index(arg, "="); idx > 0 {
			options[arg[:idx]] = arg[idx+1:]
		} else {
			names = append(names, arg)
		}
	}

	return names, options
}
