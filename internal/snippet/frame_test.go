package snippet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

func salesFrame() *Frame {
	ds := dataset.New("sales.csv")
	ds.Columns = []*dataset.Column{
		dataset.NewColumn("region", []any{"b", "a", "b"}),
		dataset.NewColumn("sales", []any{1.0, 2.0, 3.0}),
		dataset.NewColumn("date", []any{"2024-01-15", "2024-02-20", "2025-03-01"}),
	}
	return NewFrame(ds)
}

func runFrame(t *testing.T, src string) *Interp {
	t.Helper()
	return run(t, src, map[string]Value{"df": salesFrame(), "pd": Pandas(), "np": Numpy()})
}

func seriesOf(t *testing.T, v Value) *Series {
	t.Helper()
	s, ok := v.(*Series)
	require.True(t, ok, "want *Series, got %T", v)
	return s
}

func TestGroupBySumResetIndex(t *testing.T) {
	in := runFrame(t, "g = df.groupby('region')['sales'].sum()\nout = g.reset_index()")

	g := seriesOf(t, lookup(t, in, "g"))
	assert.Equal(t, "sales", g.Name)
	assert.Equal(t, []Value{2.0, 4.0}, g.Values)
	assert.Equal(t, []Value{"a", "b"}, g.labels())

	out, ok := lookup(t, in, "out").(*Frame)
	require.True(t, ok)
	ds := out.ToDataset()
	assert.Equal(t, []string{"region", "sales"}, ds.Names())
	assert.Equal(t, 2, ds.Rows())
}

func TestGroupByNamedAgg(t *testing.T) {
	in := runFrame(t, "out = df.groupby('region', as_index=False).agg(total=('sales', 'sum'), n=('sales', 'count'))")
	ds := lookup(t, in, "out").(*Frame).ToDataset()
	assert.Equal(t, []string{"region", "total", "n"}, ds.Names())
	total, _ := ds.Column("total")
	assert.Equal(t, []any{2.0, 4.0}, total.Values)
}

func TestSeriesTruthIsAmbiguous(t *testing.T) {
	err := New(map[string]Value{"df": salesFrame()}, nil).ExecSource("if df['sales']:\n    x = 1")
	require.Error(t, err)
	f := err.(*Fault)
	assert.Equal(t, "ValueError", f.Kind)
	assert.Contains(t, f.Message, "The truth value of a Series is ambiguous")
}

func TestLocMaskAssignCreatesColumn(t *testing.T) {
	in := runFrame(t, "df.loc[df['sales'] > 1, 'flag'] = 'hi'")
	df := lookup(t, in, "df").(*Frame)
	c, ok := df.Data.Column("flag")
	require.True(t, ok)
	assert.Equal(t, []any{nil, "hi", "hi"}, c.Values)
}

func TestDatetimeAccessor(t *testing.T) {
	err := New(map[string]Value{"df": salesFrame()}, nil).ExecSource("y = df['date'].dt.year")
	require.Error(t, err)
	f := err.(*Fault)
	assert.Equal(t, "AttributeError", f.Kind)
	assert.Equal(t, "Can only use .dt accessor with datetimelike values", f.Message)

	in := runFrame(t, "df['date'] = pd.to_datetime(df['date'])\ny = df['date'].dt.year\nm = df['date'].dt.to_period('M')")
	assert.Equal(t, []Value{2024.0, 2024.0, 2025.0}, seriesOf(t, lookup(t, in, "y")).Values)
	assert.Equal(t, []Value{"2024-01", "2024-02", "2025-03"}, seriesOf(t, lookup(t, in, "m")).Values)
}

func TestToDatetimeCoerce(t *testing.T) {
	in := run(t, "s = pd.to_datetime(pd.Series(['2024-01-01', 'soon']), errors='coerce')", map[string]Value{"pd": Pandas()})
	s := seriesOf(t, lookup(t, in, "s"))
	assert.NotNil(t, s.Values[0])
	assert.Nil(t, s.Values[1])
}

func TestValueCounts(t *testing.T) {
	in := runFrame(t, "vc = df['region'].value_counts()")
	vc := seriesOf(t, lookup(t, in, "vc"))
	assert.Equal(t, "count", vc.Name)
	assert.Equal(t, []Value{2.0, 1.0}, vc.Values)
	assert.Equal(t, []Value{"b", "a"}, vc.labels())
	assert.Equal(t, []string{"region"}, vc.Index.Names)
}

func TestQuery(t *testing.T) {
	in := runFrame(t, `q = df.query('sales >= 2 and region == "b"')`)
	q := lookup(t, in, "q").(*Frame)
	assert.Equal(t, 1, q.Len())
	c, _ := q.Data.Column("sales")
	assert.Equal(t, []any{3.0}, c.Values)
}

func TestFrameFaults(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind string
		msg  string
	}{
		{"length mismatch", "df['bad'] = [1, 2]", "ValueError", "Length of values (2) does not match length of index (3)"},
		{"missing column", "x = df['nope']", "KeyError", "'nope'"},
		{"unknown attribute", "x = df.nope", "AttributeError", "'DataFrame' object has no attribute 'nope'"},
		{"unexpected keyword", "x = df['sales'].round(digits=2)", "TypeError", "round() got an unexpected keyword argument 'digits'"},
		{"text mean", "x = df['region'].mean()", "TypeError", "Could not convert string 'b' to numeric"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := New(map[string]Value{"df": salesFrame()}, nil).ExecSource(tc.src)
			require.Error(t, err)
			f := err.(*Fault)
			assert.Equal(t, tc.kind, f.Kind)
			assert.Equal(t, tc.msg, f.Message)
		})
	}
}

func TestFrameReductionsAndSelection(t *testing.T) {
	in := runFrame(t, strings.Join([]string{
		"m = df.mean(numeric_only=True)",
		"labels = np.where(df['sales'] > 1, 'high', 'low')",
		"upper = df['region'].str.upper()",
		"top = df.sort_values('sales', ascending=False).head(2)",
		"first = df.iloc[0]['sales']",
	}, "\n"))
	m := seriesOf(t, lookup(t, in, "m"))
	assert.Equal(t, []Value{2.0}, m.Values)
	assert.Equal(t, []Value{"sales"}, m.labels())

	assert.Equal(t, []Value{"low", "high", "high"}, seriesOf(t, lookup(t, in, "labels")).Values)
	assert.Equal(t, []Value{"B", "A", "B"}, seriesOf(t, lookup(t, in, "upper")).Values)

	top := lookup(t, in, "top").(*Frame).ToDataset()
	sales, _ := top.Column("sales")
	assert.Equal(t, []any{3.0, 2.0}, sales.Values)
	assert.Equal(t, []string{"region", "sales", "date"}, top.Names())

	assert.Equal(t, 1.0, lookup(t, in, "first"))
}

func TestColumnCopyWritesBackInplace(t *testing.T) {
	df := salesFrame()
	df.Data.Columns[1].Values[0] = nil
	in := run(t, "df['sales'].fillna(0, inplace=True)", map[string]Value{"df": df})
	c, _ := lookup(t, in, "df").(*Frame).Data.Column("sales")
	assert.Equal(t, []any{0.0, 2.0, 3.0}, c.Values)
}
