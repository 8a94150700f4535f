package dataset

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

var salesRows = []string{
	"region;date;revenue;units;note",
	"North;2024-01-05;1.000,5;10;first",
	"South;2024-01-06;900,25;n/a;",
	"North;2024-01-07;1.100,0;12;third",
}

func TestParseCSVLocaleNumbers(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(strings.Join(salesRows, "\n")), Options{Delimiter: ';'})
	require.NoError(t, err)
	require.Equal(t, 3, ds.Rows())
	assert.Equal(t, []string{"region", "date", "revenue", "units", "note"}, ds.Names())

	rev, ok := ds.Column("revenue")
	require.True(t, ok)
	assert.Equal(t, KindNumeric, rev.Kind)
	assert.Equal(t, []any{1000.5, 900.25, 1100.0}, rev.Values)

	units, _ := ds.Column("units")
	assert.Equal(t, KindNumeric, units.Kind)
	assert.Nil(t, units.Values[1])

	date, _ := ds.Column("date")
	assert.Equal(t, KindText, date.Kind, "dates stay text unless ParseDates is set")

	note, _ := ds.Column("note")
	assert.Equal(t, KindText, note.Kind)
	assert.Nil(t, note.Values[1])
}

func TestParseCSVParseDates(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(strings.Join(salesRows, "\n")), Options{Delimiter: ';', ParseDates: true})
	require.NoError(t, err)
	date, _ := ds.Column("date")
	assert.Equal(t, KindTemporal, date.Kind)
	assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), date.Values[1])
}

func TestParseCSVMaxRowsAndShortRecords(t *testing.T) {
	in := "a,b\n1,2\n3\n5,6\n"
	ds, err := ParseCSV(strings.NewReader(in), Options{MaxRows: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Rows())
	b, _ := ds.Column("b")
	assert.Nil(t, b.Values[1])
}

func TestParseCSVEmptyInput(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(""), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Rows())
	assert.Equal(t, 0, ds.Width())
}

func TestReadWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sales.tsv")
	require.NoError(t, os.WriteFile(path, []byte("city\tscore\nOslo\t1.5\nLima\t\n"), 0o644))

	ds, err := ReadCSV(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "sales.tsv", ds.Name)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ds))
	assert.Equal(t, "city,score\nOslo,1.5\nLima,\n", buf.String())
}

func TestReadCSVMissingFileKeepsCause(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "missing.csv"), DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Contains(t, err.Error(), "open csv")
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		dec  rune
		thou rune
		want float64
		ok   bool
	}{
		{"1,234", 0, 0, 1234, true},
		{"0,5", 0, 0, 0.5, true},
		{"1.234,56", 0, 0, 1234.56, true},
		{"1,234.56", 0, 0, 1234.56, true},
		{"12 500", 0, 0, 12500, true},
		{"3,5", ',', '.', 3.5, true},
		{"-7", 0, 0, -7, true},
		{"2024-01-05", 0, 0, 0, false},
		{"abc", 0, 0, 0, false},
		{"", 0, 0, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseNumber(tc.in, tc.dec, tc.thou)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "2.5", FormatCell(2.5))
	assert.Equal(t, "True", FormatCell(true))
	assert.Equal(t, "2024-03-01", FormatCell(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-03-01 10:30:00", FormatCell(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)))
}
