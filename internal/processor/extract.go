// Package processor implements C6: concrete step processors dispatched
// through internal/registry, and the Dispatcher that runs a step list and
// assembles its §3.8 result tree.
package processor

import (
	"context"
	"errors"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/evalerr"
	"github.com/drwebengine/drwe/internal/extract"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
	"github.com/drwebengine/drwe/internal/selector"
)

// ExtractProcessor implements C6's extract-step algorithm (§4.6): run the
// step's actions (if any) once, then for each anchor matched by XPath,
// extract the field map and optionally recurse into an inline follow.
type ExtractProcessor struct {
	Dispatcher *Dispatcher
}

func (p *ExtractProcessor) CanHandle(step query.Step) bool { return step.Kind == query.StepExtract }
func (p *ExtractProcessor) Priority() int                  { return 100 }

func (p *ExtractProcessor) Execute(ctx context.Context, ec evalctx.Context, step query.Step) ([]registry.Contribution, error) {
	es := step.Extract
	sel := selector.New(ec.Controller)

	if len(es.Actions) > 0 {
		if err := p.Dispatcher.RunActions(ctx, ec.Controller, es.Actions); err != nil {
			return nil, evalerr.FromPageError(ec.Path, err)
		}
	}

	anchors, err := sel.Nodes(es.XPath, nil)
	if err != nil {
		return nil, classifySelectorErr(ec.Path, err)
	}

	baseURL, _ := ec.Controller.CurrentURL()

	items := make([]any, 0, len(anchors))
	for _, anchor := range anchors {
		record, diags := extract.Fields(sel, anchor, es.Fields, baseURL, es.Strict)
		for _, d := range diags {
			p.Dispatcher.diag(ec, evalerr.NewStepError(evalerr.ErrExpressionSyntax, ec.Path, "field "+d.Field, d.Err))
			if ec.Strict {
				return nil, evalerr.NewStepError(evalerr.ErrExpressionSyntax, ec.Path, "field "+d.Field, d.Err)
			}
		}
		if es.Follow != nil {
			child, err := p.Dispatcher.RunFollow(ctx, ec, *es.Follow, anchor)
			if err != nil {
				return nil, err
			}
			key := es.Follow.Name
			if key == "" {
				key = "follow"
			}
			record[key] = child
		}
		items = append(items, record)
	}

	if es.Name != "" {
		return []registry.Contribution{{Named: true, Name: es.Name, Items: items}}, nil
	}
	return []registry.Contribution{{Items: items}}, nil
}

func classifySelectorErr(path []int, err error) error {
	var se *selector.SyntaxError
	if errors.As(err, &se) {
		return evalerr.NewStepError(evalerr.ErrExpressionSyntax, path, se.Expr, se.Err)
	}
	return evalerr.FromPageError(path, err)
}
