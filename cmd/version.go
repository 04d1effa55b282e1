package cmd

import (
	"github.com/spf13/cobra"

	"github.com/slinkylib/slinky/pkg/slinky"
)

// Version is set through -ldflags "-X github.com/slinkylib/slinky/cmd.Version=..."
var Version = "dev"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the tool and library versions",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{helperAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return slinky.New(64).FormatQuick("slinky %s (library %s)", Version, slinky.Version).Fprint(cmd.OutOrStdout())
		},
	}
}
