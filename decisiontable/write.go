package decisiontable

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes sheets as an xlsx workbook.
func WriteXLSX(w io.Writer, sheets []Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("no sheets to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.Name); err != nil {
				return fmt.Errorf("failed to name sheet %s: %w", sh.Name, err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("failed to add sheet %s: %w", sh.Name, err)
		}

		for r, row := range sh.Rows {
			if len(row) == 0 {
				continue
			}
			cells := make([]any, len(row))
			for j, v := range row {
				cells[j] = v
			}
			axis, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.Name, axis, &cells); err != nil {
				return fmt.Errorf("failed to write %s!%s: %w", sh.Name, axis, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SampleSheets returns the tax decision table used by the template command
// and examples/taxes-rules.csv.
func SampleSheets() []Sheet {
	return []Sheet{{
		Name: "taxes",
		Rows: [][]string{
			{"RuleSet", "taxes"},
			{"Dialect", "cel"},
			{"Sequential", "false"},
			{},
			{"RuleTable TaxRates"},
			{"NAME", "ACTIVATION-GROUP", "PRIORITY", "CONDITION", "CONDITION", "ACTION", "ACTION"},
			{"", "", "", `input.country == "$param"`, "double(input.income) >= double($param)", "taxRate = $param", "tax = double(input.income) * $param"},
			{"Rule", "Group", "Priority", "Country", "Min income", "Rate", "Tax"},
			{"de-top", "rate", "30", "DE", "60000", "0.42", "0.42"},
			{"de-base", "rate", "20", "DE", "", "0.19", "0.19"},
			{"fr-base", "rate", "20", "FR", "", "0.3", "0.3"},
			{"fallback", "rate", "0", "", "", "0.25", "0.25"},
			{},
			{"RuleTable Bands"},
			{"NAME", "PRIORITY", "ACTIVATION-GROUP", "CONDITION", "ACTION"},
			{"", "", "", "double(input.income) >= double($param)", "band"},
			{"Rule", "Priority", "Group", "Min income", "Band"},
			{"high", "3", "band", "60000", "high"},
			{"middle", "2", "band", "20000", "middle"},
			{"low", "1", "band", "", "low"},
		},
	}}
}
