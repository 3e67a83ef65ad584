package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
)

// DefaultComma is the field separator of input files.
const DefaultComma = ';'

// ErrNoHeader is returned when the input has no header line.
var ErrNoHeader = errors.New("csv input has no header line")

type readOptions struct {
	comma rune
}

// Option configures CSV reading.
type Option func(*readOptions)

// WithComma overrides the field separator.
func WithComma(r rune) Option {
	return func(o *readOptions) {
		o.comma = r
	}
}

// ReadCSV reads a delimited file whose first line is the header and returns
// one record per following line, keyed by header names. Values are kept as
// strings. Rows shorter than the header omit the missing keys; longer rows
// are an error.
func ReadCSV(r io.Reader, opts ...Option) ([]Record, []string, error) {
	o := readOptions{comma: DefaultComma}
	for _, opt := range opts {
		opt(&o)
	}

	cr := csv.NewReader(r)
	cr.Comma = o.comma
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, ErrNoHeader
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var out []Record
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		if len(fields) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, nil, fmt.Errorf("line %d: %d fields, header has %d", line, len(fields), len(header))
		}

		rec := make(Record, len(fields))
		for i, v := range fields {
			rec[header[i]] = v
		}
		out = append(out, rec)
	}

	return out, header, nil
}

// ReadCSVFile opens path on fs and reads it with ReadCSV.
func ReadCSVFile(fs afero.Fs, path string, opts ...Option) ([]Record, []string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	recs, header, err := ReadCSV(f, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, header, nil
}
