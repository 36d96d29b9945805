// Package follow implements C7, the Kleene-star recursive link-following
// navigator: depth-bounded, cycle-detected, branch-scoped recursion over a
// page.Controller.
package follow

import (
	"context"
	"strings"
	"time"

	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/pagevalue"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/recordtree"
	"github.com/drwebengine/drwe/internal/selector"
)

// StepRunner runs a sub-query's step list against whatever page is
// currently open on controller and returns its assembled result tree
// (§3.8). It is supplied by internal/processor so that C7 does not need to
// import the step dispatch machinery.
type StepRunner func(ctx context.Context, controller page.Controller, steps []query.Step, visited VisitedSet, depth int) (any, error)

// Options controls how Navigate reacts to a failure partway through.
type Options struct {
	// Fatal reports whether err should abort the whole navigation rather
	// than simply skipping the link that produced it.
	Fatal func(err error) bool
	// Diag records a soft (non-fatal) failure for diagnostics.
	Diag func(err error)
	// NavTimeout bounds each Open call.
	NavTimeout time.Duration
	// CaptchaCheck runs after every successful Open, mirroring the
	// top-level start-page check in internal/eval; a non-nil error aborts
	// the branch the same way a Fatal error does.
	CaptchaCheck func(controller page.Controller) error
}

// Navigate implements the recursive descent described in §3.4 and C7 (Kleene
// star over follow hops): extract links matching spec.LinkExpr from the
// current page, filter by depth/cycle/external-site rules, and for each
// surviving link, open it, run spec.Steps via run, and recurse Navigate
// again with the *same* spec one depth deeper to keep following from that
// page — mirroring original_source/engine/web_engine/follow_processor.py's
// _navigate_recursive calling itself with current_depth+1 rather than
// stopping after one hop. Each page's own step-list result and its
// recursive descendants' results are flattened into one list in visit
// order.
func Navigate(
	ctx context.Context,
	controller page.Controller,
	spec query.FollowSpec,
	startHost string,
	visited VisitedSet,
	depth int,
	anchor pagevalue.Node,
	run StepRunner,
	opts Options,
) ([]any, error) {
	maxDepth := spec.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if depth >= maxDepth {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	baseURL, err := controller.CurrentURL()
	if err != nil {
		return nil, err
	}
	links, err := extractLinks(controller, spec.LinkExpr, baseURL, anchor)
	if err != nil {
		return nil, err
	}

	var results []any
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		canonical := Canonical(link)
		if spec.DetectCycles && visited.Has(canonical) {
			continue
		}
		if !spec.FollowExternal && !SameSite(startHost, link) {
			continue
		}
		nextVisited := visited
		if spec.DetectCycles {
			nextVisited = visited.With(canonical)
		}

		navCtx := ctx
		if opts.NavTimeout > 0 {
			var cancel context.CancelFunc
			navCtx, cancel = context.WithTimeout(ctx, opts.NavTimeout)
			defer cancel()
		}
		if err := controller.Open(navCtx, link, opts.NavTimeout); err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return results, err
			}
			if opts.Diag != nil {
				opts.Diag(err)
			}
			continue
		}
		if opts.CaptchaCheck != nil {
			if err := opts.CaptchaCheck(controller); err != nil {
				return results, err
			}
		}

		pageResult, err := run(ctx, controller, spec.Steps, nextVisited, depth+1)
		if err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return results, err
			}
			if opts.Diag != nil {
				opts.Diag(err)
			}
			continue
		}
		if spec.TagSource {
			pageResult = tagSource(pageResult, link)
		}
		results = recordtree.Flatten(results, pageResult)

		childResults, err := Navigate(ctx, controller, spec, startHost, nextVisited, depth+1, nil, run, opts)
		if err != nil {
			if opts.Fatal != nil && opts.Fatal(err) {
				return results, err
			}
			if opts.Diag != nil {
				opts.Diag(err)
			}
			continue
		}
		results = append(results, childResults...)
	}
	return results, nil
}

// extractLinks evaluates linkExpr for anchor nodes and resolves each one's
// href against base. A trailing "/@href" step is dropped first, so both
// "//a" and "//a/@href" select the link elements whose href is read.
func extractLinks(controller page.Controller, linkExpr query.Expression, base string, anchor pagevalue.Node) ([]string, error) {
	sel := selector.New(controller)
	linkExpr = query.Expression(strings.TrimSuffix(string(linkExpr), "/@href"))
	nodes, err := sel.Nodes(linkExpr, anchor)
	if err != nil {
		return nil, err
	}
	links := make([]string, 0, len(nodes))
	for _, n := range nodes {
		href, err := sel.Scalar(query.Expression("string(@href)"), n)
		if err != nil {
			continue
		}
		if href.Str == "" {
			continue
		}
		resolved, err := ResolveHref(base, href.Str)
		if err != nil {
			continue
		}
		links = append(links, resolved)
	}
	return links, nil
}

// tagSource attaches a "_source" key carrying url onto v when v is a map,
// or onto every map element when v is a list (best-effort; controlled by
// FollowSpec.TagSource, default off).
func tagSource(v any, url string) any {
	switch t := v.(type) {
	case map[string]any:
		t["_source"] = url
		return t
	case []any:
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				m["_source"] = url
			}
		}
		return t
	default:
		return v
	}
}
