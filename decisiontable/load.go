package decisiontable

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
)

// Load reads resource's sheets according to its extension and compiles them.
func Load(resource string, data []byte) (*RuleSet, error) {
	sheets, err := ReadSheets(resource, data)
	if err != nil {
		return nil, err
	}
	return Compile(resource, sheets)
}

// LoadFile reads path from fs and compiles it.
func LoadFile(fs afero.Fs, path string) (*RuleSet, []byte, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	rs, err := Load(path, data)
	if err != nil {
		return nil, nil, err
	}
	return rs, data, nil
}

// ReadSheets decodes the cell grids of a workbook.
func ReadSheets(resource string, data []byte) ([]Sheet, error) {
	switch ext := strings.ToLower(filepath.Ext(resource)); ext {
	case ".xlsx", ".xlsm":
		return readXLSX(data)
	case ".xls":
		return readXLS(data)
	case ".csv":
		return readCSV(resource, data)
	default:
		return nil, fmt.Errorf("%s: %w", resource, ErrUnsupportedFormat)
	}
}

func readXLSX(data []byte) ([]Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var sheets []Sheet
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		sheets = append(sheets, Sheet{Name: name, Rows: rows})
	}
	return sheets, nil
}

func readXLS(data []byte) ([]Sheet, error) {
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	var sheets []Sheet
	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}

		rows := make([][]string, int(ws.MaxRow)+1)
		for r := 0; r <= int(ws.MaxRow); r++ {
			row := ws.Row(r)
			if row == nil {
				continue
			}
			cells := make([]string, 0, row.LastCol()+1)
			for c := 0; c <= row.LastCol(); c++ {
				cells = append(cells, row.Col(c))
			}
			rows[r] = cells
		}
		sheets = append(sheets, Sheet{Name: ws.Name, Rows: rows})
	}
	return sheets, nil
}

// readCSV reads a single-sheet decision table. The separator is ';' when
// the first line contains one, ',' otherwise.
func readCSV(resource string, data []byte) ([]Sheet, error) {
	comma := ','
	if line, err := bufio.NewReader(bytes.NewReader(data)).ReadString('\n'); err == nil || line != "" {
		if strings.Contains(line, ";") {
			comma = ';'
		}
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	// encoding/csv drops blank lines; rows are placed by line number so
	// cell references match the file.
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv decision table: %w", err)
		}
		line, _ := r.FieldPos(0)
		for len(rows) < line-1 {
			rows = append(rows, nil)
		}
		rows = append(rows, rec)
	}

	base := filepath.Base(resource)
	return []Sheet{{Name: strings.TrimSuffix(base, filepath.Ext(base)), Rows: rows}}, nil
}
