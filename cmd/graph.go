package cmd

import (
	"github.com/spf13/cobra"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/slinky"
)

func newGraphCmd() *cobra.Command {
	graphCmd := &cobra.Command{
		Use:   "graph [task]",
		Short: "Print the task dependency graph",
		Long: `Prints the dependencies between the project's tasks in Graphviz DOT format. Pass a task
to only include the tasks it needs. With --order, the tasks are listed in execution order instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cmd.Flags().GetString("dir")
			if err != nil {
				return err
			}

			order, err := cmd.Flags().GetBool("order")
			if err != nil {
				return err
			}

			loaded, err := loadProject(cmd.Context(), dir, nil)
			if err != nil {
				return err
			}

			root := ""
			if len(args) > 0 {
				root = args[0]
			}

			if !order {
				return buildsys.WriteDOT(cmd.OutOrStdout(), loaded.tasks, root)
			}

			var names []string
			if root == "" {
				names, err = buildsys.Sorted(loaded.tasks)
			} else {
				names, err = buildsys.Order(loaded.tasks, root)
			}
			if err != nil {
				return err
			}

			return slinky.Glue(names, "\n").Fprint(cmd.OutOrStdout())
		},
	}

	graphCmd.Flags().Bool("order", false, "print the tasks in the order they would run instead of the graph")
	graphCmd.Flags().StringP("dir", "C", "", "look for the project starting at this directory instead of the working directory")

	return graphCmd
}
