package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/liamcoop/tablerules/container"
)

func newValidateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Compile a decision table and report its rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("rules")
			if err != nil {
				return fmt.Errorf("rules flag error: %w", err)
			}
			if path == "" {
				path = a.cfg.Console.Rules
			}

			data, err := afero.ReadFile(a.fs, path)
			if err != nil {
				return fmt.Errorf("failed to read rules: %w", err)
			}

			c, err := container.NewManager(nil).Compile(path, data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rs := c.RuleSet
			_, _ = fmt.Fprintf(out, "ruleset %s (dialect %s, sequential %t)\n", rs.Name, rs.Dialect, rs.Sequential)
			for _, t := range rs.Tables {
				_, _ = fmt.Fprintf(out, "  table %s: %d rules\n", t.Name, len(t.Rules))
			}
			_, _ = fmt.Fprintf(out, "checksum %s\n", c.Checksum)
			return nil
		},
	}

	cmd.Flags().String("rules", "", "Decision table to validate")
	return cmd
}
