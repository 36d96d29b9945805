// Package selector implements C1, the XPath/selector runtime: it validates
// expression syntax once (cached), decides whether an expression runs
// relative to an anchor or against the document root, and delegates actual
// evaluation to whichever internal/page.Controller backs the session.
package selector

import (
	"fmt"
	"strings"
	"sync"

	"github.com/antchfx/xpath"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/pagevalue"
	"github.com/drwebengine/drwe/internal/query"
)

// SyntaxError wraps a malformed expression, mapped by callers onto
// evalerr.ErrExpressionSyntax.
type SyntaxError struct {
	Expr string
	Err  error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed expression %q: %v", e.Expr, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

// Runtime is a thin, driver-agnostic facade over a page.Controller.
type Runtime struct {
	controller page.Controller

	mu    sync.Mutex
	cache map[string]struct{} // expressions already validated this run
}

func New(controller page.Controller) *Runtime {
	return &Runtime{controller: controller, cache: make(map[string]struct{})}
}

// validate checks expr's syntax once and caches the result, using
// antchfx/xpath's real parser so malformed expressions fail fast with
// ExpressionSyntaxError before ever reaching the driver. CSS locators (the
// "css=" form from query.Locator.Expr) are passed to the driver unchecked.
func (r *Runtime) validate(expr query.Expression) error {
	s := string(expr)
	if strings.HasPrefix(s, "css=") {
		return nil
	}
	r.mu.Lock()
	_, seen := r.cache[s]
	r.mu.Unlock()
	if seen {
		return nil
	}
	if _, err := xpath.Compile(s); err != nil {
		return &SyntaxError{Expr: s, Err: err}
	}
	r.mu.Lock()
	r.cache[s] = struct{}{}
	r.mu.Unlock()
	return nil
}

// effectiveAnchor applies the relative/absolute routing rule: an absolute
// expression always evaluates against the document root, regardless of the
// anchor the caller passed in (§4.1).
func effectiveAnchor(expr query.Expression, anchor pagevalue.Node) pagevalue.Node {
	if expr.IsRelative() {
		return anchor
	}
	return nil
}

// Nodes evaluates expr as a node-set expression.
func (r *Runtime) Nodes(expr query.Expression, anchor pagevalue.Node) (pagevalue.NodeList, error) {
	if err := r.validate(expr); err != nil {
		return nil, err
	}
	return r.controller.Query(string(expr), effectiveAnchor(expr, anchor))
}

// Scalar evaluates expr as an XPath function expression.
func (r *Runtime) Scalar(expr query.Expression, anchor pagevalue.Node) (pagevalue.Scalar, error) {
	if err := r.validate(expr); err != nil {
		return pagevalue.Scalar{}, err
	}
	return r.controller.QueryScalar(string(expr), effectiveAnchor(expr, anchor))
}

// Stringify returns a node's XPath string value (descendant text for an
// element, the value itself for an attribute node), per DESIGN.md's
// node-to-string decision.
func (r *Runtime) Stringify(node pagevalue.Node) (string, error) {
	sc, err := r.controller.QueryScalar("string(.)", node)
	if err != nil {
		return "", err
	}
	return sc.AsString(), nil
}

// Exists reports whether expr matches at least one node relative to anchor,
// never erroring on a locator that matches nothing (§4.4).
func (r *Runtime) Exists(expr query.Expression, anchor pagevalue.Node) (bool, error) {
	nodes, err := r.Nodes(expr, anchor)
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

// Count returns the number of nodes expr matches relative to anchor.
func (r *Runtime) Count(expr query.Expression, anchor pagevalue.Node) (int, error) {
	nodes, err := r.Nodes(expr, anchor)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}
