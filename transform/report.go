package transform

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/liamcoop/tablerules/records"
)

// Output formats of WriteReport.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

const banner = "==================== Rules mapping is: ===================="

// WriteReport renders res in format.
func WriteReport(w io.Writer, res *Result, format string) error {
	switch strings.ToLower(format) {
	case FormatText, "":
		return writeText(w, res)
	case FormatTable:
		return writeTables(w, res)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	default:
		return fmt.Errorf("unknown format %q (use text, table or json)", format)
	}
}

func writeText(w io.Writer, res *Result) error {
	if _, err := fmt.Fprintf(w, "\n\n%s\n", banner); err != nil {
		return err
	}
	for i, in := range res.Inputs {
		if i >= len(res.Outputs) {
			break
		}
		if _, err := fmt.Fprintf(w, "For %s\nResult is %s\n", records.Format(in), records.Format(res.Outputs[i])); err != nil {
			return err
		}
	}
	return nil
}

func writeTables(w io.Writer, res *Result) error {
	if _, err := fmt.Fprintln(w, "Input"); err != nil {
		return err
	}
	if err := writeTable(w, res.InputTable()); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "\nOutput"); err != nil {
		return err
	}
	return writeTable(w, res.OutputTable())
}

func writeTable(w io.Writer, t records.Table) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
