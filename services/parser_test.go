package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	in := "\ufeffName,Price, Notes \nAcme,\"$1,000\",hello\nBeta,5\n"
	table, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Price", " Notes "}, table.Headers)
	require.Equal(t, 2, table.Len())

	first := table.Row(0)
	assert.Equal(t, []string{"Acme", "$1,000", "hello"}, first.Values)
	assert.Equal(t, 2, first.RowNumber())
	assert.Equal(t, 2, first.Line)

	short := table.Row(1)
	assert.Equal(t, []string{"Beta", "5", ""}, short.Values, "short records are padded")
	assert.Equal(t, 3, short.RowNumber())
}

func TestParseQuotedNewline(t *testing.T) {
	in := "name,description\nAcme,\"line one\nline two\"\nBeta,x\n"
	table, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Equal(t, 2, table.Len())

	assert.Equal(t, "line one\nline two", table.Row(0).Values[1])
	assert.Equal(t, 4, table.Row(1).Line)
	assert.Equal(t, 3, table.Row(1).RowNumber(), "row numbers count data rows, not lines")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantLine int
		wantMsg  string
	}{
		{"empty", "", 0, "file is empty"},
		{"too many fields", "a,b\n1,2\n1,2,3\n", 3, "3 fields"},
		{"bare quote", "a,b\n1,\"oops\n", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.in))
			var pe *ParseError
			require.True(t, errors.As(err, &pe), "want *ParseError, got %v", err)
			assert.Equal(t, tt.wantLine, pe.Line)
			assert.Contains(t, pe.Msg, tt.wantMsg)
		})
	}
}

func TestParseHeaderOnly(t *testing.T) {
	table, err := Parse(strings.NewReader("name,price\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.Sample(5))
}

func TestTableSampleAndRows(t *testing.T) {
	table, err := Parse(strings.NewReader("n\na\nb\nc\n"))
	require.NoError(t, err)

	assert.Len(t, table.Sample(2), 2)
	assert.Len(t, table.Sample(10), 3)

	var seen []string
	for row := range table.Rows() {
		seen = append(seen, row.Values[0])
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, seen)

	assert.Equal(t, [][]string{{"n"}, {"a"}, {"b"}, {"c"}}, table.Records())
}
