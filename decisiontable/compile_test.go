package decisiontable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/tablerules/rules"
)

func TestCompileSample(t *testing.T) {
	rs, err := Compile("taxes.xlsx", SampleSheets())
	require.NoError(t, err)

	assert.Equal(t, "taxes", rs.Name)
	assert.Equal(t, "cel", rs.Dialect)
	assert.False(t, rs.Sequential)
	require.Len(t, rs.Tables, 2)
	assert.Equal(t, "TaxRates", rs.Tables[0].Name)
	assert.Equal(t, "Bands", rs.Tables[1].Name)

	all := rs.Rules()
	require.Len(t, all, 7)

	top := all[0]
	assert.Equal(t, "TaxRates:9", top.ID)
	assert.Equal(t, "de-top", top.Name)
	assert.Equal(t, 30, top.Salience)
	assert.Equal(t, "rate", top.ActivationGroup)
	assert.Equal(t, `(input.country == "DE") && (double(input.income) >= double(60000))`, top.Condition)
	assert.Equal(t, []rules.Action{
		{Field: "taxRate", Expression: "0.42"},
		{Field: "tax", Expression: "double(input.income) * 0.42"},
	}, top.Actions)

	fallback := all[3]
	assert.Equal(t, "fallback", fallback.Name)
	assert.Empty(t, fallback.Condition)

	low := all[6]
	assert.Equal(t, []rules.Action{{Field: "band", Value: "low"}}, low.Actions)
	assert.Equal(t, 7, low.Order)
}

func TestCompileDefaults(t *testing.T) {
	sheets := []Sheet{{
		Name: "Sheet1",
		Rows: [][]string{
			{"RuleTable", "Greet"},
			{"CONDITION", "ACTION"},
			{"input.lang == \"$param\"", "greeting"},
			{"Lang", "Greeting"},
			{"en", "hello"},
		},
	}}

	rs, err := Compile("/tmp/greetings.csv", sheets)
	require.NoError(t, err)
	assert.Equal(t, "greetings", rs.Name)
	assert.Equal(t, "cel", rs.Dialect)

	r := rs.Rules()[0]
	assert.Equal(t, "Greet:5", r.ID)
	assert.Equal(t, "Greet_5", r.Name)
	assert.True(t, r.Active)
}

func TestCompileIndexedParams(t *testing.T) {
	sheets := []Sheet{{
		Name: "s",
		Rows: [][]string{
			{"RuleTable Range"},
			{"CONDITION", "ACTION"},
			{"double(input.x) >= $1 && double(input.x) < $2", "bucket"},
			{"Range", "Bucket"},
			{"0, 10", "small"},
		},
	}}

	rs, err := Compile("r.xlsx", sheets)
	require.NoError(t, err)
	assert.Equal(t, "double(input.x) >= 0 && double(input.x) < 10", rs.Rules()[0].Condition)
}

func TestCompileKeywords(t *testing.T) {
	sheets := []Sheet{{
		Name: "s",
		Rows: [][]string{
			{"RuleSet", "custom"},
			{"Notes", "ignored"},
			{"Dialect", "EXPR"},
			{"Sequential", "true"},
			{"RuleTable T"},
			{"ACTION"},
			{"x = $param"},
			{"X"},
			{"1"},
		},
	}}

	rs, err := Compile("k.xlsx", sheets)
	require.NoError(t, err)
	assert.Equal(t, "custom", rs.Name)
	assert.Equal(t, "expr", rs.Dialect)
	assert.True(t, rs.Sequential)
}

func TestCompileStopsAtKeywordRow(t *testing.T) {
	sheets := []Sheet{{
		Name: "s",
		Rows: [][]string{
			{"RuleTable A"},
			{"ACTION"},
			{"a"},
			{"A"},
			{"1"},
			{"RuleTable B"},
			{"ACTION"},
			{"b"},
			{"B"},
			{"2"},
		},
	}}

	rs, err := Compile("s.xlsx", sheets)
	require.NoError(t, err)
	require.Len(t, rs.Tables, 2)
	assert.Len(t, rs.Tables[0].Rules, 1)
	assert.Len(t, rs.Tables[1].Rules, 1)
}

func TestCompileKeywordLikeNamesAreData(t *testing.T) {
	sheets := []Sheet{{
		Name: "s",
		Rows: [][]string{
			{"RuleTable Duties"},
			{"NAME", "ACTION"},
			{"", "duty"},
			{"Name", "Duty"},
			{"export", "none"},
			{"Import duty", "full"},
			{"Notes", "reduced"},
			{"transit", "none"},
		},
	}}

	rs, err := Compile("d.xlsx", sheets)
	require.NoError(t, err)
	require.Len(t, rs.Rules(), 4)
	assert.Equal(t, "Import duty", rs.Rules()[1].Name)
	assert.Equal(t, "Duties:7", rs.Rules()[2].ID)
	assert.Equal(t, "transit", rs.Rules()[3].Name)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
		cell string
	}{
		{
			name: "unknown kind",
			rows: [][]string{{"RuleTable T"}, {"CONDITION", "WHATEVER"}, {"a", "b"}, {"A", "B"}},
			cell: "B2",
		},
		{
			name: "missing template",
			rows: [][]string{{"RuleTable T"}, {"CONDITION"}, {""}, {"A"}},
			cell: "A3",
		},
		{
			name: "bad priority",
			rows: [][]string{{"RuleTable T"}, {"PRIORITY", "ACTION"}, {"", "x"}, {"P", "X"}, {"high", "1"}},
			cell: "A5",
		},
		{
			name: "missing indexed value",
			rows: [][]string{{"RuleTable T"}, {"CONDITION"}, {"$1 < $2"}, {"R"}, {"1"}},
			cell: "A5",
		},
		{
			name: "bad dialect",
			rows: [][]string{{"Dialect", "java"}},
			cell: "A1",
		},
		{
			name: "bad sequential",
			rows: [][]string{{"Sequential", "maybe"}},
			cell: "A1",
		},
		{
			name: "truncated table",
			rows: [][]string{{"RuleTable T"}, {"ACTION"}},
			cell: "A1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile("bad.xlsx", []Sheet{{Name: "S", Rows: tt.rows}})
			require.Error(t, err)

			var ce *CellError
			require.True(t, errors.As(err, &ce), "expected CellError, got %v", err)
			assert.Equal(t, "S", ce.Sheet)
			assert.Equal(t, tt.cell, ce.Cell)
		})
	}
}

func TestCompileNoTables(t *testing.T) {
	_, err := Compile("empty.xlsx", []Sheet{{Name: "S", Rows: [][]string{{"RuleSet", "x"}}}})
	assert.ErrorIs(t, err, ErrNoRuleTables)
}

func TestExpand(t *testing.T) {
	got, err := expand(`input.a == "$param"`, "x")
	require.NoError(t, err)
	assert.Equal(t, `input.a == "x"`, got)

	got, err = expand("input.ok", "yes")
	require.NoError(t, err)
	assert.Equal(t, "input.ok", got)

	_, err = expand("$1 + $3", "1, 2")
	assert.Error(t, err)
}

func TestSplitAssignment(t *testing.T) {
	tests := []struct {
		tpl, field, expr string
	}{
		{"rate = $param", "rate", "$param"},
		{"band", "band", ""},
		{"ok = input.a == input.b", "ok", "input.a == input.b"},
		{"ok = input.a >= 1", "ok", "input.a >= 1"},
		{"input.a != 1", "input.a != 1", ""},
	}

	for _, tt := range tests {
		field, expr := splitAssignment(tt.tpl)
		assert.Equal(t, tt.field, field, tt.tpl)
		assert.Equal(t, tt.expr, expr, tt.tpl)
	}
}
