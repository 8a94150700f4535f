package dataset

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Dataset {
	ds := New("sample")
	ds.Columns = []*Column{
		NewColumn("city", []any{"Oslo", "Lima", nil}),
		NewColumn("rate", []any{0.5, math.NaN(), 2}),
	}
	return ds
}

func TestNewColumnNormalizes(t *testing.T) {
	c := NewColumn("n", []any{1, int64(2), math.NaN(), float32(1.5)})
	assert.Equal(t, KindNumeric, c.Kind)
	assert.Equal(t, []any{1.0, 2.0, nil, 1.5}, c.Values)
	assert.Equal(t, 1, c.Missing())
	assert.Equal(t, []float64{1, 2, 1.5}, c.Floats())
}

func TestInferKind(t *testing.T) {
	assert.Equal(t, KindNumeric, InferKind([]any{nil, nil}))
	assert.Equal(t, KindText, InferKind([]any{1.0, "x"}))
	assert.Equal(t, KindBool, InferKind([]any{true, nil, false}))
	assert.Equal(t, KindTemporal, InferKind([]any{time.Now()}))
}

func TestCopyIsDeep(t *testing.T) {
	ds := sample()
	cp := ds.Copy()
	cp.Columns[0].Values[0] = "Paris"
	require.NoError(t, cp.SetColumn(NewColumn("extra", []any{1, 2, 3})))

	assert.Equal(t, "Oslo", ds.Columns[0].Values[0])
	assert.Equal(t, 2, ds.Width())
	assert.Equal(t, 3, cp.Width())
}

func TestSetColumnLengthMismatch(t *testing.T) {
	ds := sample()
	err := ds.SetColumn(NewColumn("bad", []any{1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length of values (1) does not match length of index (3)")
}

func TestSetColumnReplaces(t *testing.T) {
	ds := sample()
	require.NoError(t, ds.SetColumn(NewColumn("rate", []any{1, 1, 1})))
	assert.Equal(t, 2, ds.Width())
	c, _ := ds.Column("rate")
	assert.Equal(t, []any{1.0, 1.0, 1.0}, c.Values)
}

func TestTakeAndDrop(t *testing.T) {
	ds := sample()
	sub := ds.Take([]int{2, 0})
	assert.Equal(t, []any{nil, "Oslo"}, sub.Columns[0].Values)
	assert.True(t, ds.Drop("city"))
	assert.False(t, ds.Drop("city"))
	assert.Equal(t, []string{"rate"}, ds.Names())
}

func TestValidate(t *testing.T) {
	ds := sample()
	ds.Columns = append(ds.Columns, &Column{Name: "city", Kind: KindText, Values: []any{"a", "b", "c"}})
	assert.Error(t, ds.Validate())
}

func TestCoerceDateLike(t *testing.T) {
	ds := New("d")
	ds.Columns = []*Column{
		NewColumn("when", []any{"2024-01-01", "2024-02-01", "not a date", nil}),
		NewColumn("label", []any{"a", "b", "c", "d"}),
		NewColumn("n", []any{1, 2, 3, 4}),
	}
	converted := CoerceDateLike(ds)
	assert.Equal(t, []string{"when"}, converted)

	when, _ := ds.Column("when")
	assert.Equal(t, KindTemporal, when.Kind)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), when.Values[1])
	assert.Nil(t, when.Values[2])
}

func TestLooksTemporalThreshold(t *testing.T) {
	mostlyText := NewColumn("x", []any{"2024-01-01", "x", "y", "z"})
	assert.False(t, LooksTemporal(mostlyText))
	compact := NewColumn("y", []any{"20240101", "20240102"})
	assert.True(t, LooksTemporal(compact))
}

func TestStats(t *testing.T) {
	vals := []float64{4, 1, 3, 2}
	s := Sorted(vals)
	assert.Equal(t, []float64{1, 2, 3, 4}, s)
	assert.Equal(t, []float64{4, 1, 3, 2}, vals)
	assert.InDelta(t, 2.5, Quantile(s, 0.5), 1e-12)
	assert.InDelta(t, 1.75, Quantile(s, 0.25), 1e-12)
	assert.InDelta(t, 2.5, Mean(vals), 1e-12)
	assert.InDelta(t, 1.2909944, Std(vals), 1e-6)
	assert.True(t, math.IsNaN(Mean(nil)))

	q1, q3, lo, hi := IQRBounds(vals, 3)
	assert.InDelta(t, 1.75, q1, 1e-12)
	assert.InDelta(t, 3.25, q3, 1e-12)
	assert.InDelta(t, -2.75, lo, 1e-12)
	assert.InDelta(t, 7.75, hi, 1e-12)
}
