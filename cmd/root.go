// Package cmd implements the slinky command line tool
package cmd

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/slinkylib/slinky/pkg/buildsys"
	"github.com/slinkylib/slinky/pkg/config"
	"github.com/slinkylib/slinky/pkg/publish"
)

// helperAnnotation marks commands which are called by the shell runner and don't need the config
const helperAnnotation = "slinky/helper"

type cfgKey struct{}

func getConfig(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(cfgKey{}).(*config.Config); ok {
		return cfg
	}

	// defaults for commands running without the root's pre-run hook
	cfg, loader := config.Loader()
	if err := loader.Load(); err != nil {
		buildsys.Log(ctx).Debug().Err(err).Msg("failed to load the configuration, using the defaults")
	}
	return cfg
}

func newLogger(cmd *cobra.Command, cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Log.JSON {
		logger = zerolog.New(cmd.ErrOrStderr()).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(NewConsoleWriter(cmd.ErrOrStderr()))
	}

	return logger.Level(cfg.LogLevel())
}

// NewRootCmd builds the complete command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "slinky",
		Short: "Build and publish the slinky string library",
		Long: `slinky drives the build of the slinky C library. The builtin tasks delegate compiling and
testing to the configured tool (ceedling by default) while tasks.star can declare additional tasks.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[helperAnnotation] != "" {
				return nil
			}

			cfgFile, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}

			files := []string{}
			if cfgFile != "" {
				files = append(files, cfgFile)
			}

			cfg, err := config.Load(files...)
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			ctx = context.WithValue(ctx, cfgKey{}, cfg)
			cmd.SetContext(buildsys.WithLogger(ctx, &logger))
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "tool configuration file (default slinky.toml)")

	publish.Register()

	rootCmd.AddCommand(newTaskCmd())
	rootCmd.AddCommand(newGraphCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMkdirCmd())
	rootCmd.AddCommand(newCpCmd())

	return rootCmd
}

// Execute runs the command line tool and exits with 1 on failure
func Execute() {
	cmd, err := NewRootCmd().ExecuteContextC(context.Background())
	if err != nil {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		logger := buildsys.Log(ctx)
		if logger.GetLevel() == zerolog.Disabled {
			fallback := zerolog.New(NewConsoleWriter(os.Stderr))
			logger = &fallback
		}
		logger.Error().Err(err).Msg("slinky failed")
		os.Exit(1)
	}
}
