package main

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/raindrop-digest/internal/config"
	"github.com/ryosukesatoh/raindrop-digest/internal/logging"
)

type globalFlags struct {
	configPath string
	dryRun     bool
}

func newRootCmd(stdout io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "raindrop-digest",
		Short: "Summarize new Raindrop bookmarks and mail a digest",
		Long: `raindrop-digest scans the Raindrop "Unsorted" collection for recently
added bookmarks, summarizes each linked page with a language model, mails a
single digest and tags the processed bookmarks so they are not picked up again.

Without a sub-command it performs one batch run and exits.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(flags)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := newApp(cfg, logger, stdout)
			if err != nil {
				return err
			}
			defer a.Close()

			_, err = a.runner.Run(cmd.Context())
			return err
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to an optional YAML config file")
	root.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "print the digest instead of mailing it and skip write-back")

	root.AddCommand(newScheduleCmd(flags, stdout))
	root.AddCommand(newHistoryCmd(stdout))
	return root
}

// setup loads the configuration and builds the logger.
func setup(flags *globalFlags) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(flags.configPath, flags.dryRun)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
