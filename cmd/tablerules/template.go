package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liamcoop/tablerules/decisiontable"
)

func newTemplateCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write a sample decision table workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := cmd.Flags().GetString("out")
			if err != nil {
				return fmt.Errorf("out flag error: %w", err)
			}
			if ext := strings.ToLower(filepath.Ext(out)); ext != ".xlsx" {
				return fmt.Errorf("%s: template must be written as .xlsx", out)
			}

			f, err := a.fs.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", out, err)
			}
			if err := decisiontable.WriteXLSX(f, decisiontable.SampleSheets()); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to close %s: %w", out, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringP("out", "o", "taxes-rules.xlsx", "Output workbook")
	return cmd
}
