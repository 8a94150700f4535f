package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// Options controls how delimited text becomes a Dataset.
type Options struct {
	// Delimiter for CSV. If 0, picks '\t' for .tsv paths and ',' otherwise.
	Delimiter rune
	// MaxRows limits rows loaded; 0 means unlimited.
	MaxRows int
	// Numeric parsing locale. If DecimalSeparator is 0, auto-detect per value.
	DecimalSeparator   rune
	ThousandsSeparator rune
	// ParseDates converts columns whose every value parses as a date to temporal.
	// Off by default: date strings stay text until a snippet converts them.
	ParseDates bool
}

// DefaultOptions returns reasonable defaults for loading datasets.
func DefaultOptions() Options {
	return Options{MaxRows: 1_000_000}
}

// nullTokens are read as missing cells.
var nullTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "nan": true, "null": true, "none": true, "nat": true, "#n/a": true,
}

// ReadCSV loads a CSV/TSV file.
func ReadCSV(path string, opt Options) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open csv")
	}
	defer f.Close()
	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(path)
	}
	ds, err := ParseCSV(f, opt)
	if err != nil {
		return nil, err
	}
	ds.Name = filepath.Base(path)
	return ds, nil
}

// ParseCSV reads a header row followed by records.
func ParseCSV(r io.Reader, opt Options) (*Dataset, error) {
	delim := opt.Delimiter
	if delim == 0 {
		delim = ','
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comma = delim

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return New(""), nil
		}
		return nil, errors.Wrap(err, "read header")
	}
	ncol := len(header)
	raw := make([][]string, ncol)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	rows := 0
	for rows < maxRows {
		rec, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrapf(err, "read row %d", rows+1)
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			raw[j] = append(raw[j], v)
		}
		rows++
	}

	ds := New("")
	for j := 0; j < ncol; j++ {
		name := strings.TrimSpace(header[j])
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", j)
		}
		ds.Columns = append(ds.Columns, buildColumn(name, raw[j], opt))
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// buildColumn decides the kind by whether every present cell parses: a single
// stray token keeps the whole column as text, like a spreadsheet export would.
func buildColumn(name string, cells []string, opt Options) *Column {
	vals := make([]any, len(cells))
	present := 0
	numOK, dtOK := true, opt.ParseDates
	nums := make([]float64, len(cells))
	times := make([]time.Time, len(cells))
	for i, s := range cells {
		if nullTokens[strings.ToLower(s)] {
			continue
		}
		present++
		if numOK {
			if f, ok := ParseNumber(s, opt.DecimalSeparator, opt.ThousandsSeparator); ok {
				nums[i] = f
			} else {
				numOK = false
			}
		}
		if dtOK {
			if t, ok := ParseTime(s); ok {
				times[i] = t
			} else {
				dtOK = false
			}
		}
	}
	kind := KindText
	switch {
	case present == 0:
		kind = KindNumeric
	case numOK:
		kind = KindNumeric
	case dtOK:
		kind = KindTemporal
	}
	for i, s := range cells {
		if nullTokens[strings.ToLower(s)] {
			continue
		}
		switch kind {
		case KindNumeric:
			vals[i] = Normalize(nums[i])
		case KindTemporal:
			vals[i] = times[i]
		default:
			vals[i] = s
		}
	}
	return &Column{Name: name, Kind: kind, Values: vals}
}

// WriteCSV writes the dataset with a header row.
func WriteCSV(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Names()); err != nil {
		return errors.Wrap(err, "write header")
	}
	rec := make([]string, ds.Width())
	for i := 0; i < ds.Rows(); i++ {
		for j, c := range ds.Columns {
			rec[j] = FormatCell(c.Values[i])
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrapf(err, "write row %d", i+1)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatCell renders a cell the way WriteCSV stores it.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

var timeLayouts = []string{
	time.RFC3339, "2006-01-02", "2006/01/02", "02/01/2006", "01/02/2006",
	"2006-01-02 15:04", "2006-01-02 15:04:05", "2006-01-02T15:04:05", "1/2/2006 15:04", "1/2/2006 15:04:05",
	"1/2/2006", "20060102", "Jan 2, 2006", "2 Jan 2006", "2006-01",
}

// ParseTime tries the supported date layouts in order.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range timeLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseNumber parses a locale-formatted number. A zero dec auto-detects the
// decimal separator from the last ',' or '.' in the value.
func ParseNumber(s string, dec, thou rune) (float64, bool) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), "\u00A0", " ")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if dec == 0 {
		cpos := strings.LastIndex(raw, ",")
		dpos := strings.LastIndex(raw, ".")
		switch {
		case cpos >= 0 && dpos >= 0:
			if cpos > dpos {
				dec, thou = ',', '.'
			} else {
				dec, thou = '.', ','
			}
		case cpos >= 0:
			// "1,234" reads as thousands, "0,5" as a decimal comma
			if len(raw)-cpos-1 == 3 && cpos > 0 {
				dec, thou = '.', ','
			} else {
				dec = ','
			}
		default:
			dec = '.'
		}
	}
	if thou == 0 {
		for _, sep := range []rune{',', '.', ' '} {
			if sep != dec {
				raw = strings.ReplaceAll(raw, string(sep), "")
			}
		}
	} else if thou != dec {
		raw = strings.ReplaceAll(raw, string(thou), "")
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
