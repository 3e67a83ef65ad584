package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/liamcoop/tablerules/internal/config"
	"github.com/liamcoop/tablerules/internal/logger"
)

// app carries what subcommands share: the filesystem and the loaded config.
type app struct {
	fs  afero.Fs
	cfg *config.Config
}

// newRootCommand creates the root command. fs is where input files are
// read and templates written.
func newRootCommand(fs afero.Fs) *cobra.Command {
	a := &app{fs: fs}

	rootCmd := &cobra.Command{
		Use:           "tablerules",
		Short:         "Map CSV records through spreadsheet decision tables",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configPath, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			cfg, err := config.Load(a.fs, configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg

			opts := cfg.LoggerOptions()
			opts.Output = cmd.ErrOrStderr()
			return logger.Setup(opts)
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(
		newRunCommand(a),
		newValidateCommand(a),
		newTemplateCommand(a),
	)

	return rootCmd
}
