package dataset

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/errors"
)

// Load reads a dataset from path, picking the reader by extension: .xlsx
// workbooks use their first sheet, everything else is delimited text.
func Load(path string, opt Options) (*Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path, "", opt)
	}
	return ReadCSV(path, opt)
}

// ReadXLSX loads one sheet of a .xlsx workbook. The first row is the header.
// An empty sheet name selects the first sheet.
func ReadXLSX(path, sheet string, opt Options) (*Dataset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read xlsx")
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, errors.Wrap(err, "open xlsx")
	}
	target, err := sheetPath(zr, sheet)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", filepath.Base(path))
	}
	data := readZipFile(zr, target)
	if data == nil {
		return nil, errors.Newf("%s: sheet part %s missing", filepath.Base(path), target)
	}
	rr := newSheetRowReader(data, parseSharedStrings(readZipFile(zr, "xl/sharedStrings.xml")))

	header, ok := rr.Next()
	if !ok {
		ds := New(filepath.Base(path))
		return ds, nil
	}
	ncol := len(header)
	raw := make([][]string, ncol)
	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	for rows := 0; rows < maxRows; rows++ {
		rec, ok := rr.Next()
		if !ok {
			break
		}
		for j := 0; j < ncol; j++ {
			v := ""
			if j < len(rec) {
				v = strings.TrimSpace(rec[j])
			}
			raw[j] = append(raw[j], v)
		}
	}

	ds := New(filepath.Base(path))
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

type wbSheet struct {
	name string
	id   int
	rid  string
}

// sheetPath resolves a sheet name to its part inside the archive.
func sheetPath(zr *zip.Reader, name string) (string, error) {
	sheets := parseWorkbook(readZipFile(zr, "xl/workbook.xml"))
	rels := parseRelationships(readZipFile(zr, "xl/_rels/workbook.xml.rels"))
	if name == "" {
		if len(sheets) > 0 {
			if rel, ok := rels[sheets[0].rid]; ok {
				return normalizeRelPath(rel), nil
			}
		}
		return "xl/worksheets/sheet1.xml", nil
	}
	names := make([]string, 0, len(sheets))
	for _, s := range sheets {
		if strings.EqualFold(s.name, name) {
			if rel, ok := rels[s.rid]; ok {
				return normalizeRelPath(rel), nil
			}
			return fmt.Sprintf("xl/worksheets/sheet%d.xml", s.id), nil
		}
		names = append(names, s.name)
	}
	return "", errors.Newf("sheet %q not found (available: %s)", name, strings.Join(names, ", "))
}

func parseWorkbook(data []byte) []wbSheet {
	var sheets []wbSheet
	if len(data) == 0 {
		return sheets
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return sheets
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "sheet" {
			continue
		}
		var s wbSheet
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				s.name = a.Value
			case "sheetId":
				s.id = atoiSafe(a.Value)
			case "id":
				s.rid = a.Value
			}
		}
		sheets = append(sheets, s)
	}
}

// parseRelationships maps relationship ids to their targets.
func parseRelationships(data []byte) map[string]string {
	out := map[string]string{}
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Relationship" {
			continue
		}
		var id, target string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "Id":
				id = a.Value
			case "Target":
				target = a.Value
			}
		}
		if id != "" && target != "" {
			out[id] = target
		}
	}
}

func readZipFile(zr *zip.Reader, name string) []byte {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return b
	}
	return nil
}

func parseSharedStrings(data []byte) []string {
	var out []string
	if len(data) == 0 {
		return out
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	var buf strings.Builder
	inT := false
	for {
		tok, err := dec.Token()
		if err != nil {
			return out
		}
		switch se := tok.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "si":
				buf.Reset()
			case "t":
				inT = true
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "t":
				inT = false
			case "si":
				out = append(out, buf.String())
			}
		case xml.CharData:
			if inT {
				buf.Write(se)
			}
		}
	}
}

// sheetRowReader streams rows of a worksheet part as strings. Cells left out
// of the sheet come back empty.
type sheetRowReader struct {
	dec    *xml.Decoder
	shared []string
}

func newSheetRowReader(data []byte, shared []string) *sheetRowReader {
	return &sheetRowReader{dec: xml.NewDecoder(bytes.NewReader(data)), shared: shared}
}

func (r *sheetRowReader) Next() ([]string, bool) {
	var row []string
	inRow := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				inRow = true
				row = row[:0]
			}
			if !inRow || se.Name.Local != "c" {
				continue
			}
			var ref, typ string
			for _, a := range se.Attr {
				switch a.Name.Local {
				case "r":
					ref = a.Value
				case "t":
					typ = a.Value
				}
			}
			col := len(row)
			if ref != "" {
				col = colIndexFromRef(ref)
			}
			for len(row) <= col {
				row = append(row, "")
			}
			row[col] = r.cellValue(typ)
		case xml.EndElement:
			if se.Name.Local == "row" {
				return row, true
			}
		}
	}
}

// cellValue reads the <v> or inline <t> text of the current cell.
func (r *sheetRowReader) cellValue(typ string) string {
	var val strings.Builder
	inText := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return val.String()
		}
		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "v" || se.Name.Local == "t" {
				inText = true
			}
		case xml.CharData:
			if inText {
				val.Write(se)
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "v", "t":
				inText = false
			case "c":
				if typ == "s" {
					idx := atoiSafe(val.String())
					if idx >= 0 && idx < len(r.shared) {
						return r.shared[idx]
					}
					return ""
				}
				if typ == "b" {
					if val.String() == "1" {
						return "true"
					}
					return "false"
				}
				return val.String()
			}
		}
	}
}

// colIndexFromRef turns a cell reference like "C12" into a 0-based column.
func colIndexFromRef(ref string) int {
	idx := 0
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		switch {
		case c >= 'A' && c <= 'Z':
			idx = idx*26 + int(c-'A'+1)
		case c >= 'a' && c <= 'z':
			idx = idx*26 + int(c-'a'+1)
		default:
			return idx - 1
		}
	}
	return idx - 1
}

func atoiSafe(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// normalizeRelPath converts a relationship target to an archive path. Targets
// may be absolute ("/xl/worksheets/sheet1.xml") or relative to xl/.
func normalizeRelPath(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if strings.HasPrefix(rel, "xl/") {
		return rel
	}
	return "xl/" + rel
}
