// Package paginate implements C8, the top-level-only pagination driver:
// re-run the top-level step list once per page, following a "next page"
// link until it disappears or MaxPages is reached. Grounded on
// original_source/engine/web_engine/engine.py's execute_query loop.
package paginate

import (
	"context"
	"time"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/follow"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/recordtree"
	"github.com/drwebengine/drwe/internal/selector"
)

// Runner runs the top-level step list against whatever page is currently
// open and returns its result tree, supplied by internal/processor.
type Runner func(ctx context.Context, ec evalctx.Context) (any, error)

// Options bounds the driver's own navigation.
type Options struct {
	NavTimeoutMs int
	Diag         func(err error)
	Fatal        func(err error) bool
	// CaptchaCheck runs after opening each page beyond the first (the first
	// page is already checked by internal/eval before Run is called),
	// mirroring the follow engine's per-hop check.
	CaptchaCheck func(controller page.Controller) error
}

// Run executes the first page via run, then repeatedly follows
// pg.LinkExpr and reruns run, until the link disappears or the page count
// reaches pg.MaxPages. The original's off-by-one (`page_count >= limit-1`
// before following the *next* link) means MaxPages=1 yields exactly one
// page and never follows a next-page link at all.
func Run(ctx context.Context, controller page.Controller, ec evalctx.Context, pg *query.Pagination, run Runner, opts Options) ([]any, error) {
	var all []any
	first, err := run(ctx, ec)
	if err != nil {
		return nil, err
	}
	all = recordtree.Flatten(all, first)
	if pg == nil {
		return all, nil
	}
	maxPages := pg.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}
	pageCount := 1
	for pageCount < maxPages {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		sel := selector.New(controller)
		nodes, err := sel.Nodes(pg.LinkExpr, nil)
		if err != nil || len(nodes) == 0 {
			break
		}
		href, err := sel.Scalar(query.Expression("string(@href)"), nodes[0])
		if err != nil || href.Str == "" {
			break
		}
		base, _ := controller.CurrentURL()
		next, err := follow.ResolveHref(base, href.Str)
		if err != nil {
			break
		}
		if err := controller.Open(ctx, next, navTimeout(opts.NavTimeoutMs)); err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return all, err
			}
			if opts.Diag != nil {
				opts.Diag(err)
			}
			break
		}
		if opts.CaptchaCheck != nil {
			if err := opts.CaptchaCheck(controller); err != nil {
				if opts.Fatal != nil && opts.Fatal(err) {
					return all, err
				}
				if opts.Diag != nil {
					opts.Diag(err)
				}
				break
			}
		}
		pageResult, err := run(ctx, ec)
		if err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return all, err
			}
			if opts.Diag != nil {
				opts.Diag(err)
			}
			break
		}
		all = recordtree.Flatten(all, pageResult)
		pageCount++
	}
	return all, nil
}

func navTimeout(ms int) time.Duration {
	if ms <= 0 {
		ms = 30000
	}
	return time.Duration(ms) * time.Millisecond
}
