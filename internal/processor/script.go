package processor

import (
	"context"
	"time"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/evalerr"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
)

const defaultScriptTimeoutMs = 10000

// ScriptProcessor runs driver-side script code and contributes its scalar
// result unnamed, unless the step's WaitFor predicate times out first.
type ScriptProcessor struct{}

func (p *ScriptProcessor) CanHandle(step query.Step) bool { return step.Kind == query.StepScript }
func (p *ScriptProcessor) Priority() int                  { return 100 }

func (p *ScriptProcessor) Execute(ctx context.Context, ec evalctx.Context, step query.Step) ([]registry.Contribution, error) {
	ss := step.Script
	timeout := ss.TimeoutMs
	if timeout <= 0 {
		timeout = defaultScriptTimeoutMs
	}
	if ss.WaitFor != "" {
		if err := ec.Controller.Wait(ctx, page.WaitSpec{
			Until: page.WaitText, Text: ss.WaitFor, TimeoutMs: timeout,
		}); err != nil {
			return nil, evalerr.FromPageError(ec.Path, err)
		}
	}
	scalar, err := ec.Controller.RunScript(ctx, ss.Code, time.Duration(timeout)*time.Millisecond)
	if err != nil {
		return nil, evalerr.FromPageError(ec.Path, err)
	}
	var value any = scalar.AsString()
	if ss.ReturnJSON {
		value = scalar.Str
	}
	return []registry.Contribution{{Items: []any{value}}}, nil
}
