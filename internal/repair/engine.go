// Package repair runs snippets through the sandbox and, when they fail in a
// recognised way, rewrites them once and tries again.
package repair

import (
	"github.com/KaramelBytes/dashloom-cli/internal/dataset"
	"github.com/KaramelBytes/dashloom-cli/internal/logger"
	"github.com/KaramelBytes/dashloom-cli/internal/sandbox"
)

// CleanResultNames are accepted, in order, when a cleaning snippet leaves
// result empty.
var CleanResultNames = []string{"df_clean", "df_cleaned", "cleaned_df", "df_final"}

// KindNoResult marks a cleaning run that produced no replacement dataset.
const KindNoResult = "NoResultError"

const noResultMessage = "No result dataframe found."

// Engine applies an ordered rule catalogue around sandbox runs.
type Engine struct {
	ctx   *sandbox.Context
	clean *sandbox.Context
	rules []Rule
}

// Option configures an Engine.
type Option func(*Engine)

// WithRules replaces the rule catalogue.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

// WithSandbox sets the evaluation contexts for regular and cleaning runs.
func WithSandbox(regular, clean *sandbox.Context) Option {
	return func(e *Engine) {
		if regular != nil {
			e.ctx = regular
		}
		if clean != nil {
			e.clean = clean
		}
	}
}

// New returns an engine with the default catalogue.
func New(opts ...Option) *Engine {
	e := &Engine{
		ctx:   sandbox.New(),
		clean: sandbox.New(sandbox.WithResultSlots(append([]string{"result"}, CleanResultNames...)...)),
		rules: DefaultRules(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rules returns the catalogue in evaluation order.
func (e *Engine) Rules() []Rule { return append([]Rule(nil), e.rules...) }

// Run evaluates src with at most one post-failure rewrite, so a call costs at
// most two evaluations.
func (e *Engine) Run(src string, ds *dataset.Dataset) sandbox.Outcome {
	return e.run(e.ctx, src, ds, nil)
}

func (e *Engine) run(ctx *sandbox.Context, src string, ds *dataset.Dataset, applied []string) sandbox.Outcome {
	original := src
	for _, r := range e.rules {
		if r.Stage != Preflight || !r.Trigger(nil, src) {
			continue
		}
		if rewritten, ok := r.Rewrite(nil, src); ok {
			logger.Logger.Infow("repair rule applied", logger.FieldRule, r.Name, logger.FieldStage, r.Stage.String())
			src = rewritten
			applied = append(applied, r.Name)
		}
	}

	out := ctx.Run(src, ds)
	if out.OK() {
		return withRecord(out, applied, original)
	}
	for _, r := range e.rules {
		if r.Stage != OnFailure || !r.Trigger(out.Err, src) {
			continue
		}
		rewritten, ok := r.Rewrite(out.Err, src)
		if !ok || rewritten == src {
			continue
		}
		logger.Logger.Infow("repair rule applied",
			logger.FieldRule, r.Name,
			logger.FieldStage, r.Stage.String(),
			logger.FieldFault, out.Err.Raw,
			logger.FieldAttempt, 2)
		retry := ctx.Run(rewritten, ds)
		retry.Attempts = 2
		if !retry.OK() {
			logger.Logger.Warnw("repair exhausted", logger.FieldRule, r.Name, logger.FieldFault, retry.Err.Raw)
		}
		return withRecord(retry, append(applied, r.Name), original)
	}
	return withRecord(out, applied, original)
}

func withRecord(out sandbox.Outcome, applied []string, original string) sandbox.Outcome {
	if len(applied) > 0 {
		out.Repair = &sandbox.RepairRecord{Rules: applied, Original: original}
	}
	return out
}

// Clean runs a cleaning snippet, which must produce a replacement dataset.
// Date-like text columns are converted before the run, and the datetime and
// truthiness rewrites are applied up front because a failed first attempt is
// expensive to recover from here.
func (e *Engine) Clean(src string, ds *dataset.Dataset) sandbox.Outcome {
	work := ds.Copy()
	if work == nil {
		work = dataset.New("")
	}
	if cols := dataset.CoerceDateLike(work); len(cols) > 0 {
		logger.Logger.Debugw("coerced date-like columns", logger.FieldMode, "clean", logger.FieldCount, len(cols))
	}

	original := src
	var applied []string
	if rewritten, ok := InjectDatetime(src); ok {
		src = rewritten
		applied = append(applied, RuleDatetimeAccessor)
	}
	if rewritten, ok := RewriteTruthiness(src, 0, frameNamed); ok {
		src = rewritten
		applied = append(applied, RuleFrameTruthiness)
	}

	out := e.run(e.clean, src, work, applied)
	if out.Repair != nil {
		out.Repair.Original = original
	}
	if out.OK() {
		if _, ok := out.Value.(*dataset.Dataset); !ok {
			out.Value = nil
			out.Err = &sandbox.ErrorDescriptor{Kind: KindNoResult, Message: noResultMessage, Raw: noResultMessage}
		}
	}
	return out
}
