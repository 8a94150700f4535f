package monitor

import (
	"math"
	"sort"
)

// Severity of an anomaly.
const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Report status.
const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Thresholds are the absolute percent changes at which an indicator is
// flagged, plus the trend window.
type Thresholds struct {
	High   float64 `mapstructure:"high" yaml:"high" json:"high"`
	Medium float64 `mapstructure:"medium" yaml:"medium" json:"medium"`
	Low    float64 `mapstructure:"low" yaml:"low" json:"low"`
	// TrendWindow is the number of newest snapshots a trend spans.
	TrendWindow int `mapstructure:"trend_window" yaml:"trend_window" json:"trend_window"`
	// StablePct is the largest percent move still called stable.
	StablePct float64 `mapstructure:"stable_pct" yaml:"stable_pct" json:"stable_pct"`
}

// DefaultThresholds returns the standard policy.
func DefaultThresholds() Thresholds {
	return Thresholds{High: 50, Medium: 20, Low: 10, TrendWindow: 3, StablePct: 1}
}

func (t Thresholds) window() int {
	if t.TrendWindow <= 0 {
		return DefaultThresholds().TrendWindow
	}
	return t.TrendWindow
}

// Severity grades an absolute percent change; "" means not flagged.
func (t Thresholds) Severity(changePct float64) string {
	a := math.Abs(changePct)
	switch {
	case a >= t.High:
		return SeverityHigh
	case a >= t.Medium:
		return SeverityMedium
	case a >= t.Low:
		return SeverityLow
	}
	return ""
}

// Anomaly is an indicator that moved past a threshold.
type Anomaly struct {
	Indicator string  `json:"indicator"`
	Current   float64 `json:"current"`
	Previous  float64 `json:"previous"`
	ChangePct float64 `json:"change_pct"`
	Severity  string  `json:"severity"`
}

// Trend summarises an indicator over the newest snapshots and the current value.
type Trend struct {
	Indicator string     `json:"indicator"`
	Direction string     `json:"direction"`
	Values    []*float64 `json:"values"`
}

// Report is the result of comparing current indicator values with history.
type Report struct {
	Status string `json:"status"`
	// Baseline is the label of the snapshot compared against.
	Baseline string    `json:"baseline,omitempty"`
	Entries  []Anomaly `json:"anomalies"`
	Trends   []Trend   `json:"trends"`
}

// ChangePct returns (cur-prev)/|prev|*100 rounded to two decimals. It
// reports false when prev is zero.
func ChangePct(prev, cur float64) (float64, bool) {
	if prev == 0 {
		return 0, false
	}
	return math.Round((cur-prev)/math.Abs(prev)*100*100) / 100, true
}

// Analyze compares current with the newest snapshot of history. Indicators
// missing on either side are skipped.
func Analyze(history []Snapshot, current map[string]*float64, t Thresholds) Report {
	r := Report{Status: StatusHealthy, Entries: []Anomaly{}, Trends: []Trend{}}
	names := make([]string, 0, len(current))
	for k := range current {
		names = append(names, k)
	}
	sort.Strings(names)
	if len(history) == 0 {
		return r
	}
	latest := history[len(history)-1]
	r.Baseline = latest.Label

	for _, name := range names {
		cur, prev := current[name], latest.Indicators[name]
		if cur == nil || prev == nil {
			continue
		}
		pct, ok := ChangePct(*prev, *cur)
		if !ok {
			continue
		}
		sev := t.Severity(pct)
		if sev == "" {
			continue
		}
		r.Entries = append(r.Entries, Anomaly{Indicator: name, Current: *cur, Previous: *prev, ChangePct: pct, Severity: sev})
		switch {
		case sev == SeverityHigh:
			r.Status = StatusCritical
		case r.Status != StatusCritical:
			r.Status = StatusWarning
		}
	}

	window := history
	if n := t.window(); len(window) > n {
		window = window[len(window)-n:]
	}
	for _, name := range names {
		var vals []*float64
		for _, s := range window {
			vals = append(vals, s.Indicators[name])
		}
		vals = append(vals, current[name])
		r.Trends = append(r.Trends, Trend{Indicator: name, Direction: direction(vals, t.StablePct), Values: vals})
	}
	return r
}

// direction compares the first and last known values.
func direction(vals []*float64, stablePct float64) string {
	var first, last *float64
	for _, v := range vals {
		if v == nil {
			continue
		}
		if first == nil {
			first = v
		}
		last = v
	}
	if first == nil || first == last {
		return TrendStable
	}
	if pct, ok := ChangePct(*first, *last); ok {
		switch {
		case pct > stablePct:
			return TrendUp
		case pct < -stablePct:
			return TrendDown
		}
		return TrendStable
	}
	switch {
	case *last > *first:
		return TrendUp
	case *last < *first:
		return TrendDown
	}
	return TrendStable
}
