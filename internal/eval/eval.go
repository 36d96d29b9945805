// Package eval implements C9, the evaluator core: it owns the session
// (a single page.Controller), builds the root EvalContext, dispatches the
// pre-actions, top-level step list, and pagination driver, and assembles
// the final diagnostics-plus-data Result.
package eval

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/drwebengine/drwe/internal/browseraction"
	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/evalerr"
	"github.com/drwebengine/drwe/internal/follow"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/paginate"
	"github.com/drwebengine/drwe/internal/processor"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
)

// Diagnostic is a soft (non-fatal) failure recorded while evaluating.
type Diagnostic struct {
	Kind    evalerr.ErrorKind
	Path    []int
	Message string
}

// Options configures one evaluation run (§5, §7).
type Options struct {
	Strict          bool
	WallClockBudget time.Duration
	NavTimeoutMs    int
	// OnCaptcha is checked after every navigation; if it reports a CAPTCHA
	// is blocking the page, or returns an error, evaluation aborts with a
	// FatalError. Additive feature,
	// grounded on original_source/engine/web_engine/engine.py's
	// check_for_captcha (§4 supplemented features in SPEC_FULL.md).
	OnCaptcha func(page.Controller) (bool, error)
	Logger    *zap.SugaredLogger
}

// Result is the outcome of one evaluation run.
type Result struct {
	Data        any
	Diagnostics []Diagnostic
	Cancelled   bool
}

// Evaluator holds the frozen processor registry used across evaluation
// runs. A fresh Registry should be built per Evaluator, since Freeze fixes
// the processor set permanently.
type Evaluator struct {
	Registry *registry.Registry
	Options  Options

	dispatcher *processor.Dispatcher
	frozen     bool
	result     *Result
}

// New builds an Evaluator with the standard C6 processors registered
// (extract, conditional, follow, script) at their spec-mandated priorities,
// ready for the caller to add plugin-step processors before the first
// Evaluate call freezes the registry.
func New(opts Options) *Evaluator {
	reg := registry.New()
	e := &Evaluator{Registry: reg, Options: opts}
	dispatcher := &processor.Dispatcher{Registry: reg, NavTimeoutMs: opts.NavTimeoutMs}
	dispatcher.OnDiag = func(ec evalctx.Context, err error) {
		e.recordDiag(ec, err)
	}
	dispatcher.OnCaptcha = opts.OnCaptcha
	reg.Register(&processor.ExtractProcessor{Dispatcher: dispatcher})
	reg.Register(&processor.ConditionalProcessor{Dispatcher: dispatcher})
	reg.Register(&processor.FollowProcessor{Dispatcher: dispatcher})
	reg.Register(&processor.ScriptProcessor{})
	e.dispatcher = dispatcher
	return e
}

// RegisterProcessor adds a plugin-step processor before the registry is
// frozen on first Evaluate call (§6.5).
func (e *Evaluator) RegisterProcessor(p registry.Processor) {
	e.Registry.Register(p)
}

// Evaluate runs q against controller: pre-actions, then the top-level step
// list (wrapped by pagination when q.Pagination is set), freezing the
// registry on first use.
func (e *Evaluator) Evaluate(ctx context.Context, controller page.Controller, q *query.Query) (*Result, error) {
	if !e.frozen {
		e.Registry.Freeze()
		e.frozen = true
	}

	if e.Options.WallClockBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Options.WallClockBudget)
		defer cancel()
	}

	navTimeout := time.Duration(e.Options.NavTimeoutMs) * time.Millisecond
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}

	if err := controller.Open(ctx, q.StartURL, navTimeout); err != nil {
		return nil, evalerr.FromPageError(nil, err)
	}
	if err := e.checkCaptcha(controller); err != nil {
		return nil, err
	}

	e.result = &Result{}

	if len(q.PreActions) > 0 {
		if err := browseraction.Run(ctx, controller, q.PreActions); err != nil {
			if e.Options.Strict {
				return nil, evalerr.FromPageError(nil, err)
			}
			e.result.Diagnostics = append(e.result.Diagnostics, e.diagFromErr(nil, evalerr.FromPageError(nil, err)))
		}
	}

	root := evalctx.Context{
		Controller: controller,
		Depth:      0,
		Visited:    follow.NewVisitedSet(),
		StartURL:   q.StartURL,
		Strict:     e.Options.Strict,
		Logger:     e.Options.Logger,
		Path:       nil,
	}

	run := func(ctx context.Context, ec evalctx.Context) (any, error) {
		return e.dispatcher.RunSteps(ctx, ec, q.Steps)
	}

	var data any
	var err error
	if q.Pagination != nil {
		items, perr := paginate.Run(ctx, controller, root, q.Pagination, run, paginate.Options{
			NavTimeoutMs: e.Options.NavTimeoutMs,
			Diag:         func(e2 error) { e.result.Diagnostics = append(e.result.Diagnostics, e.diagFromErr(nil, e2)) },
			Fatal:        func(e2 error) bool { return e.Options.Strict || evalerr.IsFatal(e2) },
			CaptchaCheck: e.checkCaptcha,
		})
		data, err = items, perr
	} else {
		data, err = run(ctx, root)
	}

	if err != nil {
		if evalerr.IsFatal(err) {
			e.result.Cancelled = true
			return e.result, err
		}
		if e.Options.Strict {
			return e.result, err
		}
		e.result.Diagnostics = append(e.result.Diagnostics, e.diagFromErr(nil, err))
	}
	e.result.Data = data
	return e.result, nil
}

func (e *Evaluator) checkCaptcha(controller page.Controller) error {
	if e.Options.OnCaptcha == nil {
		return nil
	}
	blocked, err := e.Options.OnCaptcha(controller)
	if err != nil {
		return evalerr.NewStepError(evalerr.ErrFatal, nil, "captcha hook failed", err)
	}
	if blocked {
		return evalerr.NewStepError(evalerr.ErrFatal, nil, "captcha detected", nil)
	}
	return nil
}

func (e *Evaluator) recordDiag(ec evalctx.Context, err error) {
	if e.result == nil {
		e.result = &Result{}
	}
	e.result.Diagnostics = append(e.result.Diagnostics, e.diagFromErr(ec.Path, err))
	if e.Options.Logger != nil {
		e.Options.Logger.Warnw("step diagnostic", "path", ec.Path, "error", err)
	}
}

func (e *Evaluator) diagFromErr(path []int, err error) Diagnostic {
	if se, ok := err.(*evalerr.StepError); ok {
		return Diagnostic{Kind: se.Kind, Path: se.Path, Message: se.Error()}
	}
	return Diagnostic{Kind: evalerr.ErrScript, Path: path, Message: err.Error()}
}
