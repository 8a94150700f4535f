package quality

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
)

// Severity levels of an Issue.
const (
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Issue is one validation finding.
type Issue struct {
	Severity string   `json:"severity"`
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Columns  []string `json:"columns,omitempty"`
}

const (
	missingWarnPct   = 20
	validateIQR      = 1.5
	validateOutliers = 0.05
	validateColumns  = 5
)

// Validate lists heavy missingness, duplicate rows and outlier-prone
// numeric columns.
func Validate(ds *dataset.Dataset) []Issue {
	rows := ds.Rows()
	if rows == 0 {
		return nil
	}
	var issues []Issue

	var high []string
	for _, c := range ds.Columns {
		if float64(c.Missing())/float64(rows)*100 > missingWarnPct {
			high = append(high, c.Name)
		}
	}
	if len(high) > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Type:     "Missing Values",
			Message:  fmt.Sprintf("High missing values (>%d%%) in: %s", missingWarnPct, strings.Join(high, ", ")),
			Columns:  high,
		})
	}

	if dups := len(DuplicateRows(ds)); dups > 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Type:     "Duplicates",
			Message:  fmt.Sprintf("%s duplicate rows found (%.1f%%)", thousands(dups), float64(dups)/float64(rows)*100),
		})
	}

	for _, c := range numericColumns(ds, validateColumns) {
		vals := c.Floats()
		if len(vals) == 0 {
			continue
		}
		_, _, lo, hi := dataset.IQRBounds(vals, validateIQR)
		n := 0
		for _, v := range vals {
			if v < lo || v > hi {
				n++
			}
		}
		if float64(n) > float64(rows)*validateOutliers {
			issues = append(issues, Issue{
				Severity: SeverityInfo,
				Type:     "Outliers",
				Message:  fmt.Sprintf("%d potential outliers in '%s' (%.1f%%)", n, c.Name, float64(n)/float64(rows)*100),
				Columns:  []string{c.Name},
			})
		}
	}
	return issues
}

func thousands(n int) string {
	s := fmt.Sprint(n)
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			sb.WriteByte(',')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
