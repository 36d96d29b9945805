package processor

import (
	"context"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
)

// FollowProcessor implements C6's standalone follow-step algorithm (§4.7).
// It runs at a higher priority (lower number) than the default, matching
// original_source/engine/web_engine/processors.py's FollowStepProcessor
// priority of 30.
type FollowProcessor struct {
	Dispatcher *Dispatcher
}

func (p *FollowProcessor) CanHandle(step query.Step) bool { return step.Kind == query.StepFollow }
func (p *FollowProcessor) Priority() int                  { return 30 }

func (p *FollowProcessor) Execute(ctx context.Context, ec evalctx.Context, step query.Step) ([]registry.Contribution, error) {
	results, err := p.Dispatcher.RunFollow(ctx, ec, step.Follow.Spec, nil)
	if err != nil {
		return nil, err
	}
	return []registry.Contribution{{Items: results}}, nil
}
