package dataset

import (
	"regexp"
	"time"
)

var dateLike = regexp.MustCompile(`^\d{4}[-/]\d{2}[-/]\d{2}|^\d{2}[-/]\d{2}[-/]\d{4}|^\d{8}$|^\d{4}-\d{2}-\d{2}T`)

const (
	dateSampleSize  = 50
	dateLikeMinRate = 0.6
)

// LooksTemporal reports whether a text column's leading sample mostly reads as dates.
func LooksTemporal(c *Column) bool {
	if c.Kind != KindText {
		return false
	}
	var sampled, hits int
	for _, v := range c.Values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		sampled++
		if dateLike.MatchString(s) {
			hits++
		}
		if sampled == dateSampleSize {
			break
		}
	}
	return sampled > 0 && float64(hits) >= float64(sampled)*dateLikeMinRate
}

// ToTemporal converts a column best-effort: unparsable cells become missing.
func ToTemporal(c *Column) *Column {
	out := &Column{Name: c.Name, Kind: KindTemporal, Values: make([]any, len(c.Values))}
	for i, v := range c.Values {
		switch x := v.(type) {
		case time.Time:
			out.Values[i] = x
		case string:
			if t, ok := ParseTime(x); ok {
				out.Values[i] = t
			}
		}
	}
	return out
}

// CoerceDateLike converts every date-looking text column in place and
// returns the names it converted.
func CoerceDateLike(d *Dataset) []string {
	var converted []string
	for i, c := range d.Columns {
		if LooksTemporal(c) {
			d.Columns[i] = ToTemporal(c)
			converted = append(converted, c.Name)
		}
	}
	return converted
}
