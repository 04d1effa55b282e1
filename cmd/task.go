package cmd

import (
	"context"
	"io"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/project"
	"github.com/slinkylib/slinky/pkg/slinky"
)

type loadedProject struct {
	project  *project.Project
	tasks    buildsys.TaskList
	options  map[string]buildsys.ScriptOption
	toolPath string
}

// loadProject finds the project around dir and loads all of its tasks
func loadProject(ctx context.Context, dir string, optionValues map[string]string) (*loadedProject, error) {
	var err error
	if dir == "" {
		dir, err = os.Getwd()
		if err != nil {
			return nil, eris.Wrap(err, "failed to retrieve the current working directory")
		}
	}

	root, err := project.Find(dir)
	if err != nil {
		return nil, err
	}

	cfg := getConfig(ctx)
	p, err := project.Load(root, cfg.Project.File)
	if err != nil {
		return nil, err
	}

	if cfg.Project.Script != "" {
		p.Script = cfg.Project.Script
	}

	opts := project.LoadOptions{Options: optionValues}
	opts.ToolPath, err = os.Executable()
	if err != nil {
		buildsys.Log(ctx).Warn().Err(err).Msg("failed to locate slinky; mv, rm, mkdir and cp will use the system tools")
		opts.ToolPath = ""
	}

	if cfg.Cache.Enabled {
		opts.CacheFile = p.Path(cfg.Cache.File)
	}

	tasks, options, err := p.LoadTasks(ctx, opts)
	if err != nil {
		return nil, err
	}

	return &loadedProject{project: p, tasks: tasks, options: options, toolPath: opts.ToolPath}, nil
}

func printTaskList(out io.Writer, tasks buildsys.TaskList, options map[string]buildsys.ScriptOption) error {
	names := make([]string, 0, len(tasks))
	width := 0
	for name, task := range tasks {
		if task.Hidden {
			continue
		}

		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)

	buf := slinky.New(128)
	if err := buf.AppendString("Available tasks:").Fprint(out); err != nil {
		return err
	}

	for _, name := range names {
		buf.FormatQuick(" * %s%p%s", name+":", width+6, tasks[name].Desc)
		if err := buf.Fprint(out); err != nil {
			return err
		}
	}

	if len(options) == 0 {
		return nil
	}

	optionNames := make([]string, 0, len(options))
	width = 0
	for name := range options {
		optionNames = append(optionNames, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(optionNames)

	if err := buf.AppendString("\nOptions:").Fprint(out); err != nil {
		return err
	}

	for _, name := range optionNames {
		opt := options[name]
		buf.FormatQuick(" * %s%p%s (default: %s)", name, width+6, opt.Help, opt.Default())
		if err := buf.Fprint(out); err != nil {
			return err
		}
	}

	return nil
}

func newTaskCmd() *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task [tasks...] [option=value...]",
		Short: "Run project tasks",
		Long: `Loads project.yml and tasks.star from the nearest project root and runs the given tasks.
Arguments containing a "=" are passed as options to the task script. Without any task, the
default task runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			dryRun, err := flags.GetBool("dry")
			if err != nil {
				return err
			}

			force, err := flags.GetBool("force")
			if err != nil {
				return err
			}

			list, err := flags.GetBool("list")
			if err != nil {
				return err
			}

			dir, err := flags.GetString("dir")
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			names, optionValues := project.OptionValues(args)
			loaded, err := loadProject(ctx, dir, optionValues)
			if err != nil {
				return err
			}

			if list {
				return printTaskList(cmd.OutOrStdout(), loaded.tasks, loaded.options)
			}

			if len(names) == 0 {
				names = []string{project.DefaultTask}
			}

			return buildsys.RunTasks(ctx, loaded.project.Root, names, loaded.tasks, buildsys.Options{
				DryRun:   dryRun,
				Force:    force,
				ToolPath: loaded.toolPath,
				StateDir: loaded.project.StateDir(),
				Stdout:   cmd.OutOrStdout(),
				Stderr:   cmd.ErrOrStderr(),
			})
		},
	}

	flags := taskCmd.Flags()
	flags.BoolP("dry", "n", false, "dry run; only print the commands, don't execute anything")
	flags.BoolP("force", "f", false, "force build; always execute the passed steps even if they don't have to run")
	flags.BoolP("list", "l", false, "list the available tasks and options")
	flags.StringP("dir", "C", "", "look for the project starting at this directory instead of the working directory")

	return taskCmd
}
