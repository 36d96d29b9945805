package processor

import (
	"context"

	"github.com/drwebengine/drwe/internal/condition"
	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
	"github.com/drwebengine/drwe/internal/selector"
)

// ConditionalProcessor implements C6's conditional-step algorithm (§4.4):
// evaluate Condition, run Then or Else, and splice the branch's
// contributions directly into the enclosing step list (no wrapping). This
// closes a gap in the original engine, whose ConditionalProcessor never
// recurses into a FollowStep inside a branch — here a branch is just
// another step list run through the same Dispatcher, so any step kind is
// valid inside either branch.
type ConditionalProcessor struct {
	Dispatcher *Dispatcher
}

func (p *ConditionalProcessor) CanHandle(step query.Step) bool {
	return step.Kind == query.StepConditional
}
func (p *ConditionalProcessor) Priority() int { return 100 }

func (p *ConditionalProcessor) Execute(ctx context.Context, ec evalctx.Context, step query.Step) ([]registry.Contribution, error) {
	cs := step.Conditional
	sel := selector.New(ec.Controller)
	ok, err := condition.Evaluate(sel, cs.Condition)
	if err != nil {
		return nil, classifySelectorErr(ec.Path, err)
	}
	branch := cs.Else
	if ok {
		branch = cs.Then
	}
	if len(branch) == 0 {
		return nil, nil
	}
	result, err := p.Dispatcher.RunSteps(ctx, ec, branch)
	if err != nil {
		return nil, err
	}
	return splitResult(result), nil
}

// splitResult converts an already-built recordtree result back into
// Contribution form so it can be spliced into the parent's own
// recordtree.Build call without double-wrapping (§3.8: a conditional
// contributes the concatenation of its branch's results, not a wrapper
// around them).
func splitResult(result any) []registry.Contribution {
	switch v := result.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		return []registry.Contribution{{Items: v}}
	case map[string]any:
		contribs := make([]registry.Contribution, 0, len(v))
		for name, val := range v {
			if items, ok := val.([]any); ok {
				contribs = append(contribs, registry.Contribution{Named: true, Name: name, Items: items})
			} else {
				contribs = append(contribs, registry.Contribution{Named: true, Name: name, Items: []any{val}})
			}
		}
		return contribs
	default:
		return []registry.Contribution{{Items: []any{v}}}
	}
}
