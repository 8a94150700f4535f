package quality

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

func table(cols ...*dataset.Column) *dataset.Dataset {
	ds := dataset.New("t")
	ds.Columns = cols
	return ds
}

func tail() *dataset.Column {
	return dataset.NewColumn("a", []any{1.0, 2.0, 3.0, 4.0, 5.0, 6.0, 7.0, 8.0, 9.0, 1000.0})
}

func TestScore(t *testing.T) {
	noBonus := DefaultWeights()
	noBonus.FillBonus = 0

	tests := []struct {
		name string
		ds   *dataset.Dataset
		w    Weights
		want int
	}{
		{
			name: "clean data is clamped at 100",
			ds: table(
				dataset.NewColumn("a", []any{1.0, 2.0, 3.0, 4.0}),
				dataset.NewColumn("b", []any{"x", "y", "z", "w"}),
			),
			w:    DefaultWeights(),
			want: 100,
		},
		{
			name: "missing deduction is capped",
			ds: table(
				dataset.NewColumn("a", []any{1.0, nil, 3.0, 4.0}),
				dataset.NewColumn("b", []any{"x", "y", nil, nil}),
			),
			w:    DefaultWeights(),
			want: 70,
		},
		{
			name: "duplicates",
			ds: table(
				dataset.NewColumn("a", []any{1.0, 1.0, 2.0, 3.0}),
				dataset.NewColumn("b", []any{"x", "x", "y", "z"}),
			),
			w:    DefaultWeights(),
			want: 85,
		},
		{
			name: "numeric text",
			ds:   table(dataset.NewColumn("code", []any{"1", "2", " 3", "4.5"})),
			w:    noBonus,
			want: 96,
		},
		{
			name: "heavy tail",
			ds:   table(tail()),
			w:    noBonus,
			want: 97,
		},
		{
			name: "empty dataset",
			ds:   dataset.New("empty"),
			w:    DefaultWeights(),
			want: 100,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Score(tc.ds, tc.w))
		})
	}
}

func TestExplain(t *testing.T) {
	b := Explain(table(
		tail(),
		dataset.NewColumn("code", []any{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}),
	), DefaultWeights())
	assert.Equal(t, 1, b.OutlierColumns)
	assert.Equal(t, 1, b.TypeIssues)
	assert.Zero(t, b.MissingPct)
	assert.True(t, b.Bonus)
}

func TestScoreMonotoneInMissingness(t *testing.T) {
	prev := 101
	for k := 0; k <= 20; k++ {
		a := make([]any, 20)
		b := make([]any, 20)
		for i := range a {
			a[i] = float64(i + 1)
			b[i] = fmt.Sprintf("r%d", i)
		}
		for i := 0; i < k; i++ {
			a[i] = nil
		}
		ds := table(&dataset.Column{Name: "a", Kind: dataset.KindNumeric, Values: a}, dataset.NewColumn("b", b))
		s := Score(ds, DefaultWeights())
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, prev, "k=%d", k)
		prev = s
	}
}

func TestScoreMonotoneInDuplication(t *testing.T) {
	prev := 101
	for k := 0; k <= 10; k++ {
		a := make([]any, 20)
		b := make([]any, 20)
		for i := range a {
			a[i] = float64(i + 1)
			b[i] = fmt.Sprintf("r%d", i)
		}
		for i := 0; i < k; i++ {
			a[i], b[i] = 1.0, "r0"
		}
		s := Score(table(dataset.NewColumn("a", a), dataset.NewColumn("b", b)), DefaultWeights())
		assert.LessOrEqual(t, s, prev, "k=%d", k)
		prev = s
	}
}

func TestScoreMonotoneInOutliers(t *testing.T) {
	w := DefaultWeights()
	scores := make([]int, w.OutlierColumns+1)
	for k := 0; k <= w.OutlierColumns; k++ {
		cols := make([]*dataset.Column, w.OutlierColumns)
		for j := range cols {
			vals := make([]any, 10)
			for i := range vals {
				vals[i] = float64(i + 1)
			}
			if j < k {
				vals[9] = 1000.0
			}
			cols[j] = dataset.NewColumn(fmt.Sprintf("c%d", j), vals)
		}
		ds := table(cols...)
		require.Equal(t, k, Explain(ds, w).OutlierColumns, "k=%d", k)
		scores[k] = Score(ds, w)
	}
	for k := 1; k < len(scores); k++ {
		assert.LessOrEqual(t, scores[k], scores[k-1], "k=%d", k)
		assert.GreaterOrEqual(t, scores[k], 0, "k=%d", k)
	}
	// 5 columns already reach the 15 point cap.
	assert.Equal(t, scores[5], scores[w.OutlierColumns])
	assert.Less(t, scores[5], scores[0])
}

func TestDuplicateRows(t *testing.T) {
	ds := table(
		dataset.NewColumn("a", []any{1.0, nil, 1.0, nil}),
		dataset.NewColumn("b", []any{"x", "", "x", ""}),
	)
	assert.Equal(t, []int{2, 3}, DuplicateRows(ds))
	assert.Equal(t, 0.5, DuplicateFraction(ds))
}

func TestValidate(t *testing.T) {
	ds := table(
		tail(),
		dataset.NewColumn("note", []any{"a", nil, nil, nil, "b", "c", "d", "e", "f", "g"}),
	)
	ds.Columns = append(ds.Columns, dataset.NewColumn("dup", make([]any, 10)))
	ds.Columns[2].Kind = dataset.KindText

	issues := Validate(ds)
	require.Len(t, issues, 2)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, []string{"note", "dup"}, issues[0].Columns)
	assert.Equal(t, "High missing values (>20%) in: note, dup", issues[0].Message)
	assert.Equal(t, SeverityInfo, issues[1].Severity)
	assert.Equal(t, "1 potential outliers in 'a' (10.0%)", issues[1].Message)
}

func TestValidateDuplicates(t *testing.T) {
	ds := table(dataset.NewColumn("a", []any{1.0, 1.0, 2.0, 3.0}))
	issues := Validate(ds)
	require.Len(t, issues, 1)
	assert.Equal(t, "Duplicates", issues[0].Type)
	assert.Equal(t, "1 duplicate rows found (25.0%)", issues[0].Message)
}

func TestThousands(t *testing.T) {
	assert.Equal(t, "7", thousands(7))
	assert.Equal(t, "1,000", thousands(1000))
	assert.Equal(t, "1,234,567", thousands(1234567))
}
