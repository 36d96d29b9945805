package processor

import (
	"context"
	"time"

	"github.com/drwebengine/drwe/internal/browseraction"
	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/evalerr"
	"github.com/drwebengine/drwe/internal/follow"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/pagevalue"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/recordtree"
	"github.com/drwebengine/drwe/internal/registry"
)

// Dispatcher runs a step list against a Registry and assembles the result
// tree (§3.8). It is the StepRunner that internal/follow calls back into
// when recursing, and the entry point internal/eval calls for the
// top-level step list.
type Dispatcher struct {
	Registry  *registry.Registry
	OnDiag    func(ec evalctx.Context, err error)
	NavTimeoutMs int
	// OnCaptcha is checked after every follow-hop navigation, mirroring
	// internal/eval's start-page check (§4 CAPTCHA hook, supplemented
	// feature). Set by internal/eval.New from Options.OnCaptcha.
	OnCaptcha func(page.Controller) (bool, error)
}

func (d *Dispatcher) diag(ec evalctx.Context, err error) {
	if d.OnDiag != nil {
		d.OnDiag(ec, err)
	}
}

func (d *Dispatcher) checkCaptcha(controller page.Controller) error {
	if d.OnCaptcha == nil {
		return nil
	}
	blocked, err := d.OnCaptcha(controller)
	if err != nil {
		return evalerr.NewStepError(evalerr.ErrFatal, nil, "captcha hook failed", err)
	}
	if blocked {
		return evalerr.NewStepError(evalerr.ErrFatal, nil, "captcha detected", nil)
	}
	return nil
}

// RunActions runs a bare action list, wrapping errors with NavigationError
// classification delegated to evalerr.FromPageError by the caller.
func (d *Dispatcher) RunActions(ctx context.Context, controller page.Controller, actions []query.Action) error {
	return browseraction.Run(ctx, controller, actions)
}

// RunSteps dispatches each step in order through the registry, and
// assembles the resulting list/mapping/hybrid tree (§3.8). It is the single
// entry point used both at the top level (internal/eval) and recursively
// for a follow sub-tree's step list (via the follow.StepRunner adapter
// below).
func (d *Dispatcher) RunSteps(ctx context.Context, ec evalctx.Context, steps []query.Step) (any, error) {
	var contributions []recordtree.Contribution
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, evalerr.NewStepError(evalerr.ErrCancelled, ec.Path, "context cancelled", err)
		}
		stepPath := append(append([]int{}, ec.Path...), i)
		stepCtx := ec.WithPath(stepPath)

		if err := step.Validate(); err != nil {
			serr := evalerr.NewStepError(evalerr.ErrSchema, stepPath, "invalid step", err)
			if ec.Strict {
				return nil, serr
			}
			d.diag(stepCtx, serr)
			continue
		}

		proc := d.Registry.Find(step)
		if proc == nil {
			serr := evalerr.NewStepError(evalerr.ErrNoProcessor, stepPath, "no processor registered for step kind "+string(step.Kind), nil)
			if ec.Strict {
				return nil, serr
			}
			d.diag(stepCtx, serr)
			continue
		}

		regContribs, err := proc.Execute(ctx, stepCtx, step)
		if err != nil {
			if ec.Strict || evalerr.IsFatal(err) {
				return nil, err
			}
			d.diag(stepCtx, err)
			continue
		}
		for _, c := range regContribs {
			contributions = append(contributions, recordtree.Contribution{Named: c.Named, Name: c.Name, Items: c.Items})
		}
	}
	return recordtree.Build(contributions), nil
}

// RunFollow runs a follow sub-query (standalone or inline) via
// internal/follow.Navigate, adapting d.RunSteps to follow.StepRunner.
func (d *Dispatcher) RunFollow(ctx context.Context, ec evalctx.Context, spec query.FollowSpec, anchor pagevalue.Node) ([]any, error) {
	runner := func(ctx context.Context, controller page.Controller, steps []query.Step, visited follow.VisitedSet, depth int) (any, error) {
		childCtx := ec
		childCtx.Controller = controller
		childCtx.Depth = depth
		childCtx.Visited = visited
		return d.RunSteps(ctx, childCtx, steps)
	}
	opts := follow.Options{
		Fatal:        func(err error) bool { return ec.Strict || evalerr.IsFatal(err) },
		Diag:         func(err error) { d.diag(ec, err) },
		CaptchaCheck: d.checkCaptcha,
	}
	if d.NavTimeoutMs > 0 {
		opts.NavTimeout = msToDuration(d.NavTimeoutMs)
	}
	return follow.Navigate(ctx, ec.Controller, spec, ec.StartURL, ec.Visited, ec.Depth, anchor, runner, opts)
}

func msToDuration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
