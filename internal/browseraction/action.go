// Package browseraction implements C3, the action pipeline: click, scroll,
// fill, hover, wait, and script, executed in order with per-action timeouts.
package browseraction

import (
	"context"
	"time"

	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
)

const defaultTimeoutMs = 10000

// Run executes actions in order against controller, stopping at the first
// failure. Each handler corresponds directly to a case in
// original_source/engine/web_engine/actions.py, adapted to call through
// page.Controller instead of a raw Playwright page.
func Run(ctx context.Context, controller page.Controller, actions []query.Action) error {
	for _, a := range actions {
		if err := runOne(ctx, controller, a); err != nil {
			return err
		}
	}
	return nil
}

func runOne(ctx context.Context, controller page.Controller, a query.Action) error {
	timeout := a.TimeoutMs
	if timeout <= 0 {
		timeout = defaultTimeoutMs
	}
	switch a.Kind {
	case query.ActionClick:
		return controller.Interact(ctx, page.InteractParams{
			Kind: page.InteractClick, Expr: string(a.Locator.Expr()), TimeoutMs: timeout,
		})
	case query.ActionHover:
		return controller.Interact(ctx, page.InteractParams{
			Kind: page.InteractHover, Expr: string(a.Locator.Expr()), TimeoutMs: timeout,
		})
	case query.ActionFill:
		return controller.Interact(ctx, page.InteractParams{
			Kind: page.InteractFill, Expr: string(a.Locator.Expr()), Value: a.Value, TimeoutMs: timeout,
		})
	case query.ActionScroll:
		return controller.Interact(ctx, page.InteractParams{
			Kind: page.InteractScroll, Expr: string(a.Locator.Expr()), Direction: a.Direction,
			Pixels: a.Pixels, TimeoutMs: timeout,
		})
	case query.ActionWait:
		return controller.Wait(ctx, page.WaitSpec{
			Until: page.WaitUntil(a.Until), Expr: string(a.Locator.Expr()), Text: a.Text, TimeoutMs: timeout,
		})
	case query.ActionScript:
		_, err := controller.RunScript(ctx, a.Code, time.Duration(timeout)*time.Millisecond)
		return err
	}
	return nil
}
