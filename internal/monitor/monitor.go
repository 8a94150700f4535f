package monitor

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
)

// Monitor evaluates indicators and owns the history they are recorded in.
type Monitor struct {
	history *History
	engine  *repair.Engine
	weights quality.Weights
	store   Store
	now     func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithEngine sets the engine indicators are evaluated with.
func WithEngine(e *repair.Engine) Option { return func(m *Monitor) { m.engine = e } }

// WithWeights sets the quality score weights.
func WithWeights(w quality.Weights) Option { return func(m *Monitor) { m.weights = w } }

// WithStore persists every new snapshot to s.
func WithStore(s Store) Option { return func(m *Monitor) { m.store = s } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Monitor) { m.now = now } }

// New returns a monitor recording into h.
func New(h *History, opts ...Option) *Monitor {
	if h == nil {
		h = NewHistory(0)
	}
	m := &Monitor{
		history: h,
		engine:  repair.New(),
		weights: quality.DefaultWeights(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// History returns the history the monitor appends to.
func (m *Monitor) History() *History { return m.history }

// Evaluate runs every indicator against ds. Values are rounded to four
// decimals; an indicator that fails or yields a non-number records nil.
func (m *Monitor) Evaluate(ds *dataset.Dataset, inds []Indicator) map[string]*float64 {
	values := make(map[string]*float64, len(inds))
	for _, ind := range inds {
		out := m.engine.Run(ind.Code, ds)
		v, ok := numeric(out.Value)
		if !out.OK() || !ok {
			fault := "result is not a number"
			if out.Err != nil {
				fault = out.Err.Raw
			}
			logger.Logger.Warnw("indicator failed", logger.FieldIndicator, ind.Label, logger.FieldFault, fault)
			values[ind.Label] = nil
			continue
		}
		r := math.Round(v*1e4) / 1e4
		values[ind.Label] = &r
	}
	return values
}

func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, !math.IsNaN(x) && !math.IsInf(x, 0)
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Snapshot evaluates inds, scores ds and appends the result to the history.
// An empty label defaults to "Snapshot N". The returned error only reports a
// failure to persist; the snapshot is in the history either way.
func (m *Monitor) Snapshot(ctx context.Context, ds *dataset.Dataset, inds []Indicator, label string) (Snapshot, error) {
	s := Snapshot{
		ID:         uuid.NewString(),
		Timestamp:  m.now().UTC(),
		Label:      label,
		Rows:       ds.Rows(),
		Columns:    ds.Width(),
		Quality:    quality.Score(ds, m.weights),
		Indicators: m.Evaluate(ds, inds),
	}
	s = m.history.record(s)
	logger.Logger.Infow("snapshot recorded",
		logger.FieldLabel, s.Label,
		logger.FieldScore, s.Quality,
		logger.FieldRows, s.Rows,
		logger.FieldCount, len(inds))
	if m.store != nil {
		if err := m.store.Append(ctx, s); err != nil {
			return s, errors.Wrap(err, "persist snapshot")
		}
	}
	return s, nil
}

// Check evaluates inds against ds and compares them with the newest
// snapshots without recording anything.
func (m *Monitor) Check(ds *dataset.Dataset, inds []Indicator, t Thresholds) Report {
	return Analyze(m.history.Last(t.window()), m.Evaluate(ds, inds), t)
}
