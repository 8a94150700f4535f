package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/errors"
	"github.com/KaramelBytes/dashloom-cli/internal/extract"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/monitor"
	"github.com/KaramelBytes/dashloom-cli/internal/quality"
	"github.com/KaramelBytes/dashloom-cli/internal/repair"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

// maxBody caps request bodies; datasets arrive inline.
const maxBody = 32 << 20

// Handler serves the API over one engine and one monitor. Both are safe for
// concurrent use.
type Handler struct {
	engine     *repair.Engine
	monitor    *monitor.Monitor
	weights    quality.Weights
	thresholds monitor.Thresholds
	csv        dataset.Options
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithWeights sets the quality weights used by /score and /clean.
func WithWeights(w quality.Weights) HandlerOption { return func(h *Handler) { h.weights = w } }

// WithThresholds sets the anomaly thresholds used by /analyze.
func WithThresholds(t monitor.Thresholds) HandlerOption {
	return func(h *Handler) { h.thresholds = t }
}

// WithCSVOptions sets how posted CSV text is parsed.
func WithCSVOptions(o dataset.Options) HandlerOption { return func(h *Handler) { h.csv = o } }

// NewHandler returns a Handler with default weights, thresholds and CSV
// options, overridden by opts.
func NewHandler(engine *repair.Engine, mon *monitor.Monitor, opts ...HandlerOption) *Handler {
	h := &Handler{
		engine:     engine,
		monitor:    mon,
		weights:    quality.DefaultWeights(),
		thresholds: monitor.DefaultThresholds(),
		csv:        dataset.DefaultOptions(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

type errorResponse struct {
	Error string `json:"error"`
	Hint  string `json:"hint,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Logger.Warnw("encode response", logger.FieldError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsInvalidRequestError(err):
		status = http.StatusBadRequest
	case errors.Is(err, errors.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, extract.ErrNoPlan):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Hint: errors.FlattenHints(err)})
}

func decode(r *http.Request, w http.ResponseWriter, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequestError("invalid JSON body: %v", err)
	}
	return nil
}

// datasetRequest is embedded by every request that carries a dataset.
type datasetRequest struct {
	Name string `json:"name,omitempty"`
	CSV  string `json:"csv"`
}

func (h *Handler) load(req datasetRequest) (*dataset.Dataset, error) {
	if strings.TrimSpace(req.CSV) == "" {
		return nil, errors.NewInvalidRequestError("csv is required")
	}
	ds, err := dataset.ParseCSV(strings.NewReader(req.CSV), h.csv)
	if err != nil {
		return nil, errors.Wrap(errors.Wrap(errors.ErrInvalidRequest, err.Error()), "parse csv")
	}
	ds.Name = req.Name
	return ds, nil
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "snapshots": h.monitor.History().Len()})
}

type extractRequest struct {
	Text string `json:"text"`
	// Kind optionally decodes the plan: dashboard, cleaning or indicators.
	Kind string `json:"kind,omitempty"`
}

type extractResponse struct {
	Plan       extract.Plan           `json:"plan"`
	Dashboard  *extract.Dashboard     `json:"dashboard,omitempty"`
	Cleaning   *extract.CleaningPlan  `json:"cleaning,omitempty"`
	Indicators *extract.IndicatorPlan `json:"indicators,omitempty"`
}

func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var req extractRequest
	if err := decode(r, w, &req); err != nil {
		writeErr(w, err)
		return
	}
	plan, err := extract.Parse(req.Text)
	if err != nil {
		writeErr(w, err)
		return
	}
	resp := extractResponse{Plan: plan}
	switch req.Kind {
	case "":
	case "dashboard":
		resp.Dashboard, err = extract.DecodeDashboard(plan)
	case "cleaning":
		resp.Cleaning, err = extract.DecodeCleaning(plan)
	case "indicators":
		resp.Indicators, err = extract.DecodeIndicators(plan)
	default:
		err = errors.NewInvalidRequestError("unknown plan kind %q", req.Kind)
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type runRequest struct {
	datasetRequest
	Code      string             `json:"code,omitempty"`
	Dashboard *extract.Dashboard `json:"dashboard,omitempty"`
}

// Run evaluates one snippet, or every snippet of a dashboard plan. Snippet
// faults are part of a 200 response; only malformed requests fail.
func (h *Handler) Run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := decode(r, w, &req); err != nil {
		writeErr(w, err)
		return
	}
	ds, err := h.load(req.datasetRequest)
	if err != nil {
		writeErr(w, err)
		return
	}
	switch {
	case req.Dashboard != nil:
		writeJSON(w, http.StatusOK, h.engine.RunDashboard(req.Dashboard, ds))
	case strings.TrimSpace(req.Code) != "":
		writeJSON(w, http.StatusOK, h.engine.Run(req.Code, ds))
	default:
		writeErr(w, errors.NewInvalidRequestError("code or dashboard is required"))
	}
}

type cleanRequest struct {
	datasetRequest
	Code string `json:"code"`
}

type cleanResponse struct {
	Outcome     sandbox.Outcome `json:"outcome"`
	CSV         string          `json:"csv,omitempty"`
	ScoreBefore int             `json:"score_before"`
	ScoreAfter  int             `json:"score_after,omitempty"`
}

func (h *Handler) Clean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if err := decode(r, w, &req); err != nil {
		writeErr(w, err)
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		writeErr(w, errors.NewInvalidRequestError("code is required"))
		return
	}
	ds, err := h.load(req.datasetRequest)
	if err != nil {
		writeErr(w, err)
		return
	}
	out := h.engine.Clean(req.Code, ds)
	resp := cleanResponse{ScoreBefore: quality.Score(ds, h.weights)}
	if cleaned, ok := out.Value.(*dataset.Dataset); ok {
		var buf bytes.Buffer
		if err := dataset.WriteCSV(&buf, cleaned); err != nil {
			writeErr(w, err)
			return
		}
		resp.CSV = buf.String()
		resp.ScoreAfter = quality.Score(cleaned, h.weights)
		out.Value = nil
	}
	resp.Outcome = out
	writeJSON(w, http.StatusOK, resp)
}

type scoreResponse struct {
	quality.Breakdown
	Issues []quality.Issue `json:"issues"`
}

func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	var req datasetRequest
	if err := decode(r, w, &req); err != nil {
		writeErr(w, err)
		return
	}
	ds, err := h.load(req)
	if err != nil {
		writeErr(w, err)
		return
	}
	issues := quality.Validate(ds)
	if issues == nil {
		issues = []quality.Issue{}
	}
	writeJSON(w, http.StatusOK, scoreResponse{Breakdown: quality.Explain(ds, h.weights), Issues: issues})
}

type monitorRequest struct {
	datasetRequest
	Label string `json:"label,omitempty"`
	// Indicators default to one mean per numeric column.
	Indicators []monitor.Indicator `json:"indicators,omitempty"`
}

func (h *Handler) monitorInput(w http.ResponseWriter, r *http.Request) (*dataset.Dataset, monitorRequest, bool) {
	var req monitorRequest
	if err := decode(r, w, &req); err != nil {
		writeErr(w, err)
		return nil, req, false
	}
	ds, err := h.load(req.datasetRequest)
	if err != nil {
		writeErr(w, err)
		return nil, req, false
	}
	if len(req.Indicators) == 0 {
		req.Indicators = monitor.PresetIndicators(ds)
	}
	return ds, req, true
}

func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	ds, req, ok := h.monitorInput(w, r)
	if !ok {
		return
	}
	s, err := h.monitor.Snapshot(r.Context(), ds, req.Indicators, req.Label)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// ListSnapshots returns the history oldest first; ?limit=n keeps the newest n.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	list := h.monitor.History().List()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeErr(w, errors.NewInvalidRequestError("limit must be a non-negative integer"))
			return
		}
		list = h.monitor.History().Last(n)
	}
	if list == nil {
		list = []monitor.Snapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": list})
}

// Analyze compares the posted dataset with the history without recording it.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	ds, req, ok := h.monitorInput(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Check(ds, req.Indicators, h.thresholds))
}
