package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/history"
	"github.com/liamcoop/tablerules/records"
	"github.com/liamcoop/tablerules/transform"
)

func newRunCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Transform a CSV file with a decision table",
		Long: `Reads every record of the CSV file, runs the decision table once per
record and prints each input next to the output its rules produced.
Without flags the bundled examples are used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.cfg.Console
			flags := cmd.Flags()
			for name, dst := range map[string]*string{
				"csv":    &opts.CSV,
				"rules":  &opts.Rules,
				"format": &opts.Format,
				"comma":  &opts.Comma,
			} {
				if flags.Changed(name) {
					v, err := flags.GetString(name)
					if err != nil {
						return err
					}
					*dst = v
				}
			}

			comma, err := opts.CommaRune()
			if err != nil {
				return err
			}

			inputs, _, err := records.ReadCSVFile(a.fs, opts.CSV, records.WithComma(comma))
			if err != nil {
				return err
			}
			rules, err := afero.ReadFile(a.fs, opts.Rules)
			if err != nil {
				return fmt.Errorf("failed to read rules: %w", err)
			}

			store, err := a.openHistory()
			if err != nil {
				return err
			}
			defer store.Close()

			svc := transform.NewService(container.NewManager(nil), store)
			res, err := svc.Run(cmd.Context(), transform.Request{
				Resource: opts.Rules,
				Rules:    rules,
				Source:   filepath.Base(opts.CSV),
				Records:  inputs,
			})
			if err != nil {
				return err
			}

			return transform.WriteReport(cmd.OutOrStdout(), res, opts.Format)
		},
	}

	cmd.Flags().String("csv", "", "CSV input file (default from config: examples/example.csv)")
	cmd.Flags().String("rules", "", "Decision table: .xlsx, .xls or .csv (default from config: examples/taxes-rules.csv)")
	cmd.Flags().StringP("format", "f", "", "Output format: text, table or json")
	cmd.Flags().String("comma", "", "CSV input separator")

	return cmd
}

// openHistory opens the bbolt run history when a path is configured.
func (a *app) openHistory() (history.Store, error) {
	if a.cfg.Server.HistoryPath == "" {
		return history.NoopStore{}, nil
	}
	return history.OpenBoltStore(a.cfg.Server.HistoryPath)
}
