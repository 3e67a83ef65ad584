// Package transform maps input records to output records with a ruleset.
package transform

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/liamcoop/tablerules/container"
	"github.com/liamcoop/tablerules/records"
	"github.com/liamcoop/tablerules/rules"
)

// Result pairs every input record with the output its rules produced.
type Result struct {
	RunID         uuid.UUID        `json:"run_id"`
	RuleSet       string           `json:"ruleset"`
	Inputs        []records.Record `json:"inputs"`
	Outputs       []records.Record `json:"outputs"`
	InputColumns  []string         `json:"input_columns"`
	OutputColumns []string         `json:"output_columns"`
	Fired         [][]string       `json:"fired"`
}

// InputTable renders the inputs with sorted input columns.
func (r *Result) InputTable() records.Table {
	return records.NewTableWithColumns(r.InputColumns, r.Inputs)
}

// OutputTable renders the outputs with the union of their keys.
func (r *Result) OutputTable() records.Table {
	return records.NewTableWithColumns(r.OutputColumns, r.Outputs)
}

// FiredCount returns the number of rules fired across all records.
func (r *Result) FiredCount() int {
	n := 0
	for _, f := range r.Fired {
		n += len(f)
	}
	return n
}

// Execute runs c once per input, each time in a fresh stateless session.
// Records are processed in order; the first failing record stops the run
// and the partial result is returned with the error.
func Execute(ctx context.Context, c *container.Container, inputs []records.Record) (*Result, error) {
	res := &Result{
		RuleSet:      c.Name,
		Inputs:       inputs,
		Outputs:      make([]records.Record, 0, len(inputs)),
		InputColumns: records.Columns(inputs),
		Fired:        make([][]string, 0, len(inputs)),
	}

	for i, in := range inputs {
		session, err := c.NewStatelessSession()
		if err != nil {
			return res, fmt.Errorf("failed to open session: %w", err)
		}

		out := rules.Output{}
		exec, err := session.Execute(ctx, rules.Input(in), out)
		if err != nil {
			res.OutputColumns = records.Columns(res.Outputs)
			return res, fmt.Errorf("record %d: %w", i+1, err)
		}

		res.Outputs = append(res.Outputs, records.Record(out))
		res.Fired = append(res.Fired, exec.Fired)
	}

	res.OutputColumns = records.Columns(res.Outputs)
	return res, nil
}
