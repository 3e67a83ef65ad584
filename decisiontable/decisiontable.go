// Package decisiontable compiles spreadsheet decision tables into rules.
//
// A workbook holds keyword rows and rule tables:
//
//	RuleSet     taxes
//	Dialect     cel
//	Sequential  false
//
//	RuleTable TaxRates
//	NAME    PRIORITY  CONDITION                    ACTION
//	                  input.country == "$param"    taxRate = $param
//	Rule    Priority  Country                      Rate
//	de      10        DE                           0.19
//
// The row after RuleTable declares column kinds, the next one holds
// templates and the next one human labels. Data rows follow until a blank
// row. $param in a template is replaced by the cell text, $1..$n by the
// comma-separated parts of the cell. Empty cells skip their condition or
// action.
package decisiontable

import (
	"errors"
	"fmt"

	"github.com/liamcoop/tablerules/rules"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrNoRuleTables is returned when a workbook holds no RuleTable.
	ErrNoRuleTables = errors.New("no RuleTable found")

	// ErrUnsupportedFormat is returned for resources that are not
	// .xlsx, .xlsm, .xls or .csv.
	ErrUnsupportedFormat = errors.New("unsupported decision table format")
)

// Sheet is a named grid of cell texts.
type Sheet struct {
	Name string
	Rows [][]string
}

// ColumnKind is the role of a rule table column.
type ColumnKind string

const (
	KindCondition       ColumnKind = "CONDITION"
	KindAction          ColumnKind = "ACTION"
	KindName            ColumnKind = "NAME"
	KindDescription     ColumnKind = "DESCRIPTION"
	KindPriority        ColumnKind = "PRIORITY"
	KindActivationGroup ColumnKind = "ACTIVATION-GROUP"
)

// Column is one column of a rule table.
type Column struct {
	Kind     ColumnKind `json:"kind"`
	Template string     `json:"template,omitempty"`
	Label    string     `json:"label,omitempty"`
}

// Table is one compiled RuleTable.
type Table struct {
	Name    string        `json:"name"`
	Sheet   string        `json:"sheet"`
	Columns []Column      `json:"columns"`
	Rules   []*rules.Rule `json:"-"`
}

// RuleSet is a compiled workbook.
type RuleSet struct {
	Name       string   `json:"name"`
	Resource   string   `json:"resource"`
	Dialect    string   `json:"dialect"`
	Sequential bool     `json:"sequential"`
	Tables     []*Table `json:"tables"`
}

// Rules returns the rules of all tables in workbook order.
func (rs *RuleSet) Rules() []*rules.Rule {
	var out []*rules.Rule
	for _, t := range rs.Tables {
		out = append(out, t.Rules...)
	}
	return out
}

// CellError locates a decision table error.
type CellError struct {
	Sheet string
	Cell  string
	Err   error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("%s!%s: %v", e.Sheet, e.Cell, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// cellError takes zero-based coordinates.
func cellError(sheet string, row, col int, err error) error {
	name, nerr := excelize.CoordinatesToCellName(col+1, row+1)
	if nerr != nil {
		name = fmt.Sprintf("R%dC%d", row+1, col+1)
	}
	return &CellError{Sheet: sheet, Cell: name, Err: err}
}
