package dataset

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	workbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Notes" sheetId="1" r:id="rId1"/><sheet name="Sales" sheetId="2" r:id="rId2"/></sheets>
</workbook>`
	relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="worksheet" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Type="worksheet" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`
	sharedXML = `<?xml version="1.0" encoding="UTF-8"?>
<sst><si><t>region</t></si><si><t>revenue</t></si><si><t>North</t></si><si><t>South</t></si><si><t>note</t></si></sst>`
	notesXML = `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>4</v></c></row>
<row r="2"><c r="A2" t="inlineStr"><is><t>hello</t></is></c></row>
</sheetData></worksheet>`
	salesXML = `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="B1" t="s"><v>1</v></c></row>
<row r="2"><c r="A2" t="s"><v>2</v></c><c r="B2"><v>100.5</v></c></row>
<row r="3"><c r="A3" t="s"><v>3</v></c></row>
<row r="4"><c r="B4"><v>300</v></c></row>
</sheetData></worksheet>`
)

func writeWorkbook(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.xlsx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range map[string]string{
		"xl/workbook.xml":            workbookXML,
		"xl/_rels/workbook.xml.rels": relsXML,
		"xl/sharedStrings.xml":       sharedXML,
		"xl/worksheets/sheet1.xml":   notesXML,
		"xl/worksheets/sheet2.xml":   salesXML,
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestReadXLSXNamedSheet(t *testing.T) {
	ds, err := ReadXLSX(writeWorkbook(t), "sales", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "sales.xlsx", ds.Name)
	assert.Equal(t, []string{"region", "revenue"}, ds.Names())
	assert.Equal(t, 3, ds.Rows())

	rev, _ := ds.Column("revenue")
	assert.Equal(t, KindNumeric, rev.Kind)
	assert.Equal(t, []any{100.5, nil, 300.0}, rev.Values)
	region, _ := ds.Column("region")
	assert.Equal(t, []any{"North", "South", nil}, region.Values)
}

func TestReadXLSXFirstSheetAndLoad(t *testing.T) {
	path := writeWorkbook(t)
	ds, err := Load(path, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"note"}, ds.Names())
	col, _ := ds.Column("note")
	assert.Equal(t, []any{"hello"}, col.Values)
}

func TestReadXLSXUnknownSheet(t *testing.T) {
	_, err := ReadXLSX(writeWorkbook(t), "Budget", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Notes, Sales")
}

func TestXLSXHelpers(t *testing.T) {
	for in, want := range map[string]string{
		"/xl/worksheets/sheet1.xml": "xl/worksheets/sheet1.xml",
		"worksheets/sheet1.xml":     "xl/worksheets/sheet1.xml",
		"styles.xml":                "xl/styles.xml",
	} {
		assert.Equal(t, want, normalizeRelPath(in), in)
	}
	assert.Equal(t, 0, colIndexFromRef("A1"))
	assert.Equal(t, 2, colIndexFromRef("C12"))
	assert.Equal(t, 27, colIndexFromRef("AB3"))
}
