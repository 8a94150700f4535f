// Package quality scores a dataset's statistical shape and lists the
// problems worth telling an operator about.
package quality

import (
	"math"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Weights are the point deductions of Score. Each term is capped on its own.
type Weights struct {
	// MissingPerPct is deducted per percent of missing cells.
	MissingPerPct float64 `mapstructure:"missing_per_pct" yaml:"missing_per_pct" json:"missing_per_pct"`
	MissingCap    float64 `mapstructure:"missing_cap" yaml:"missing_cap" json:"missing_cap"`
	// DuplicatePerPct is deducted per percent of exactly duplicated rows.
	DuplicatePerPct float64 `mapstructure:"duplicate_per_pct" yaml:"duplicate_per_pct" json:"duplicate_per_pct"`
	DuplicateCap    float64 `mapstructure:"duplicate_cap" yaml:"duplicate_cap" json:"duplicate_cap"`
	// TypePerColumn is deducted per text column that parses as numbers.
	TypePerColumn float64 `mapstructure:"type_per_column" yaml:"type_per_column" json:"type_per_column"`
	TypeCap       float64 `mapstructure:"type_cap" yaml:"type_cap" json:"type_cap"`
	TypeSample    int     `mapstructure:"type_sample" yaml:"type_sample" json:"type_sample"`
	// OutlierPerColumn is deducted per numeric column with a heavy tail.
	OutlierPerColumn float64 `mapstructure:"outlier_per_column" yaml:"outlier_per_column" json:"outlier_per_column"`
	OutlierCap       float64 `mapstructure:"outlier_cap" yaml:"outlier_cap" json:"outlier_cap"`
	OutlierIQR       float64 `mapstructure:"outlier_iqr" yaml:"outlier_iqr" json:"outlier_iqr"`
	OutlierPct       float64 `mapstructure:"outlier_pct" yaml:"outlier_pct" json:"outlier_pct"`
	OutlierColumns   int     `mapstructure:"outlier_columns" yaml:"outlier_columns" json:"outlier_columns"`
	// FillBonus is added back when the fill rate exceeds FillBonusAbove percent.
	FillBonus      float64 `mapstructure:"fill_bonus" yaml:"fill_bonus" json:"fill_bonus"`
	FillBonusAbove float64 `mapstructure:"fill_bonus_above" yaml:"fill_bonus_above" json:"fill_bonus_above"`
}

// DefaultWeights returns the standard deductions.
func DefaultWeights() Weights {
	return Weights{
		MissingPerPct:    2,
		MissingCap:       30,
		DuplicatePerPct:  5,
		DuplicateCap:     20,
		TypePerColumn:    4,
		TypeCap:          20,
		TypeSample:       50,
		OutlierPerColumn: 3,
		OutlierCap:       15,
		OutlierIQR:       3,
		OutlierPct:       5,
		OutlierColumns:   8,
		FillBonus:        5,
		FillBonusAbove:   95,
	}
}

// Breakdown itemises one Score computation.
type Breakdown struct {
	Score          int     `json:"score"`
	MissingPct     float64 `json:"missing_pct"`
	DuplicatePct   float64 `json:"duplicate_pct"`
	TypeIssues     int     `json:"type_issues"`
	OutlierColumns int     `json:"outlier_columns"`
	Bonus          bool    `json:"fill_bonus"`
}

// Score returns the 0-100 quality score of ds.
func Score(ds *dataset.Dataset, w Weights) int {
	return Explain(ds, w).Score
}

// Explain computes Score and reports each term.
func Explain(ds *dataset.Dataset, w Weights) Breakdown {
	b := Breakdown{
		MissingPct:     MissingFraction(ds) * 100,
		DuplicatePct:   DuplicateFraction(ds) * 100,
		TypeIssues:     len(NumericText(ds, w.TypeSample)),
		OutlierColumns: len(heavyTails(ds, w.OutlierColumns, w.OutlierIQR, w.OutlierPct)),
	}
	score := 100.0
	score -= math.Min(w.MissingCap, b.MissingPct*w.MissingPerPct)
	score -= math.Min(w.DuplicateCap, b.DuplicatePct*w.DuplicatePerPct)
	score -= math.Min(w.TypeCap, float64(b.TypeIssues)*w.TypePerColumn)
	score -= math.Min(w.OutlierCap, float64(b.OutlierColumns)*w.OutlierPerColumn)
	if 100-b.MissingPct > w.FillBonusAbove {
		score += w.FillBonus
		b.Bonus = true
	}
	b.Score = int(math.Max(0, math.Min(100, math.RoundToEven(score))))
	return b
}

// MissingFraction is the mean over columns of each column's missing fraction.
func MissingFraction(ds *dataset.Dataset) float64 {
	rows := ds.Rows()
	if rows == 0 || ds.Width() == 0 {
		return 0
	}
	var sum float64
	for _, c := range ds.Columns {
		sum += float64(c.Missing()) / float64(rows)
	}
	return sum / float64(ds.Width())
}

// DuplicateFraction is the share of rows that repeat an earlier row exactly.
func DuplicateFraction(ds *dataset.Dataset) float64 {
	rows := ds.Rows()
	if rows == 0 {
		return 0
	}
	return float64(len(DuplicateRows(ds))) / float64(rows)
}

// DuplicateRows returns the indexes of rows equal to an earlier row.
func DuplicateRows(ds *dataset.Dataset) []int {
	seen := make(map[string]bool, ds.Rows())
	var dups []int
	for i := 0; i < ds.Rows(); i++ {
		key := rowKey(ds.Row(i))
		if seen[key] {
			dups = append(dups, i)
			continue
		}
		seen[key] = true
	}
	return dups
}

func rowKey(row []any) string {
	var sb strings.Builder
	for _, v := range row {
		if v == nil {
			sb.WriteString("\x00")
		} else {
			sb.WriteString(dataset.FormatCell(v))
		}
		sb.WriteByte('\x1f')
	}
	return sb.String()
}

// NumericText returns the text columns whose leading non-missing sample
// parses entirely as numbers.
func NumericText(ds *dataset.Dataset, sample int) []string {
	var out []string
	for _, c := range ds.Columns {
		if c.Kind != dataset.KindText {
			continue
		}
		n, ok := 0, true
		for _, v := range c.Values {
			if v == nil {
				continue
			}
			if _, err := strconv.ParseFloat(strings.TrimSpace(dataset.FormatCell(v)), 64); err != nil {
				ok = false
				break
			}
			n++
			if sample > 0 && n == sample {
				break
			}
		}
		if ok {
			out = append(out, c.Name)
		}
	}
	return out
}

func numericColumns(ds *dataset.Dataset, limit int) []*dataset.Column {
	var out []*dataset.Column
	for _, c := range ds.Columns {
		if c.Kind != dataset.KindNumeric {
			continue
		}
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, c)
	}
	return out
}

// outsideFences counts the cells of c beyond k IQRs from the quartiles. A
// column without spread has no outliers.
func outsideFences(c *dataset.Column, k float64) int {
	vals := c.Floats()
	if len(vals) == 0 {
		return 0
	}
	q1, q3, lo, hi := dataset.IQRBounds(vals, k)
	if q3-q1 <= 0 {
		return 0
	}
	n := 0
	for _, v := range vals {
		if v < lo || v > hi {
			n++
		}
	}
	return n
}

func heavyTails(ds *dataset.Dataset, limit int, k, pct float64) []string {
	rows := ds.Rows()
	if rows == 0 {
		return nil
	}
	var out []string
	for _, c := range numericColumns(ds, limit) {
		if float64(outsideFences(c, k))/float64(rows)*100 > pct {
			out = append(out, c.Name)
		}
	}
	return out
}
