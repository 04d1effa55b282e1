package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/project"
	"github.com/slinkylib/slinky/pkg/watch"
)

func newWatchCmd() *cobra.Command {
	watchCmd := &cobra.Command{
		Use:   "watch [tasks...] [option=value...]",
		Short: "Run tasks again whenever a project file changes",
		Long: `Runs the given tasks (test:all by default) and then watches the project for changes. The
build root and hidden files are ignored. Stop with Ctrl+C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			names, optionValues := project.OptionValues(args)
			if len(names) == 0 {
				names = []string{"test:all"}
			}

			loaded, err := loadProject(ctx, dir, optionValues)
			if err != nil {
				return err
			}

			root := loaded.project.Root
			return watch.Run(ctx, watch.Options{
				Root:   root,
				Ignore: []string{loaded.project.BuildRoot},
				Build: func(ctx context.Context) error {
					// the task script may have changed as well
					current, err := loadProject(ctx, root, optionValues)
					if err != nil {
						return err
					}

					return buildsys.RunTasks(ctx, root, names, current.tasks, buildsys.Options{
						ToolPath: current.toolPath,
						StateDir: current.project.StateDir(),
						Stdout:   cmd.OutOrStdout(),
						Stderr:   cmd.ErrOrStderr(),
					})
				},
			})
		},
	}

	watchCmd.Flags().StringP("dir", "C", "", "look for the project starting at this directory instead of the working directory")
	return watchCmd
}
