package decisiontable

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXLSXRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, SampleSheets()))

	sheets, err := ReadSheets("taxes.xlsx", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "taxes", sheets[0].Name)

	fromXLSX, err := Load("taxes.xlsx", buf.Bytes())
	require.NoError(t, err)
	direct, err := Compile("taxes.xlsx", SampleSheets())
	require.NoError(t, err)

	assert.Equal(t, direct.Rules(), fromXLSX.Rules())
}

func TestLoadExampleCSV(t *testing.T) {
	rs, data, err := LoadFile(afero.NewOsFs(), "../examples/taxes-rules.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Equal(t, "taxes", rs.Name)
	assert.Equal(t, "taxes-rules", rs.Tables[0].Sheet)

	direct, err := Compile("taxes.xlsx", SampleSheets())
	require.NoError(t, err)
	assert.Equal(t, direct.Rules(), rs.Rules())
}

func TestReadCSVSeparator(t *testing.T) {
	data := []byte("RuleTable T\nACTION,ACTION\n\"a = 1\",b\nA,B\n1,2\n")
	sheets, err := ReadSheets("t.csv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTION", "ACTION"}, sheets[0].Rows[1])

	data = []byte("RuleTable T;\nACTION;ACTION\n")
	sheets, err = ReadSheets("t.csv", data)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACTION", "ACTION"}, sheets[0].Rows[1])
}

func TestReadCSVKeepsBlankLines(t *testing.T) {
	sheets, err := ReadSheets("t.csv", []byte("a;b\n\nc;d\n"))
	require.NoError(t, err)
	require.Len(t, sheets[0].Rows, 3)
	assert.Empty(t, sheets[0].Rows[1])
	assert.Equal(t, []string{"c", "d"}, sheets[0].Rows[2])
}

func TestLoadUnsupported(t *testing.T) {
	_, err := Load("rules.drl", []byte("rule"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadFileMissing(t *testing.T) {
	_, _, err := LoadFile(afero.NewMemMapFs(), "missing.xlsx")
	assert.Error(t, err)
}

func TestWriteXLSXNoSheets(t *testing.T) {
	assert.Error(t, WriteXLSX(&bytes.Buffer{}, nil))
}
