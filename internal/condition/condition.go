// Package condition implements C4, the condition evaluator: exists,
// not_exists, contains, count_eq, count_min, count_max. It never waits, and
// a locator that matches nothing evaluates to false/zero rather than an
// error (§4.4), grounded on
// original_source/engine/web_engine/conditionals.py's evaluation order.
package condition

import (
	"strings"

	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/selector"
)

// Evaluate reports whether cond holds against the current page.
func Evaluate(sel *selector.Runtime, cond query.Condition) (bool, error) {
	switch cond.Kind {
	case query.CondExists:
		return checkExists(sel, cond)
	case query.CondNotExists:
		ok, err := checkExists(sel, cond)
		return !ok, err
	case query.CondContains:
		return checkContains(sel, cond)
	case query.CondCountEq:
		n, err := checkCount(sel, cond)
		return n == cond.Count, err
	case query.CondCountMin:
		n, err := checkCount(sel, cond)
		return n >= cond.Count, err
	case query.CondCountMax:
		n, err := checkCount(sel, cond)
		return n <= cond.Count, err
	}
	return false, nil
}

func checkExists(sel *selector.Runtime, cond query.Condition) (bool, error) {
	if cond.Locator.IsZero() {
		return false, nil
	}
	return sel.Exists(cond.Locator.Expr(), nil)
}

func checkCount(sel *selector.Runtime, cond query.Condition) (int, error) {
	if cond.Locator.IsZero() {
		return 0, nil
	}
	return sel.Count(cond.Locator.Expr(), nil)
}

// checkContains falls back to the whole page's text when no locator is
// given, matching the original's ConditionEvaluator._check_contains.
func checkContains(sel *selector.Runtime, cond query.Condition) (bool, error) {
	expr := cond.Locator.Expr()
	if expr == "" {
		sc, err := sel.Scalar(query.Expression("string(/*)"), nil)
		if err != nil {
			return false, err
		}
		return strings.Contains(sc.AsString(), cond.Text), nil
	}
	nodes, err := sel.Nodes(expr, nil)
	if err != nil {
		return false, err
	}
	for _, n := range nodes {
		text, err := sel.Stringify(n)
		if err != nil {
			return false, err
		}
		if strings.Contains(text, cond.Text) {
			return true, nil
		}
	}
	return false, nil
}
