// Package extract implements C2, the field extractor: for each field
// expression, 0 matched nodes yields "", 1 yields a string, more than 1
// yields a list of strings (§4.2), plus the original engine's
// attribute/function shorthand suffixes.
package extract

import (
	"net/url"
	"strings"

	"github.com/drwebengine/drwe/internal/pagevalue"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/selector"
)

// Diagnostic records a single field's extraction failure without aborting
// the whole record, per the soft-fail-by-default policy (§7).
type Diagnostic struct {
	Field string
	Err   error
}

// Fields extracts every field, relative to anchor; fields are visited in
// map iteration order, so diagnostics have no fixed order. strict controls
// what a zero-match field yields: "" by default, or null when the step
// declares strict (§4.2 — "not a default"). A per-field ExpressionSyntaxError
// never aborts the record; it's recorded as a diagnostic and the field is
// omitted, per §4.2's failure policy.
func Fields(sel *selector.Runtime, anchor pagevalue.Node, fields map[string]query.Expression, baseURL string, strict bool) (map[string]any, []Diagnostic) {
	out := make(map[string]any, len(fields))
	var diags []Diagnostic
	for name, expr := range fields {
		value, matched, err := field(sel, anchor, expr, baseURL)
		if err != nil {
			diags = append(diags, Diagnostic{Field: name, Err: err})
			continue
		}
		if !matched && strict {
			out[name] = nil
			continue
		}
		out[name] = value
	}
	return out, diags
}

// Field evaluates a single field expression against anchor, applying the
// original engine's /text(), /@href, /@src, /@alt, /normalize-space()
// suffix shorthand (original_source/engine/web_engine/extractor.py) before
// falling back to the generic node-count rule. A zero-match expression
// yields "" always; callers that need the strict null-vs-empty distinction
// use Fields instead.
func Field(sel *selector.Runtime, anchor pagevalue.Node, expr query.Expression, baseURL string) (any, error) {
	v, _, err := field(sel, anchor, expr, baseURL)
	return v, err
}

func field(sel *selector.Runtime, anchor pagevalue.Node, expr query.Expression, baseURL string) (any, bool, error) {
	cleaned, method := parseSuffix(expr)
	nodes, err := sel.Nodes(cleaned, anchor)
	if err != nil {
		return nil, false, err
	}
	if len(nodes) == 0 {
		return "", false, nil
	}
	switch method {
	case methodHref:
		v, err := stringifyAttr(sel, nodes[0], "href")
		if err != nil {
			return nil, false, err
		}
		return resolveIfRelative(v.(string), baseURL), true, nil
	case methodSrc, methodAlt:
		attr := attrName(method)
		v, err := stringifyAttr(sel, nodes[0], attr)
		return v, true, err
	case methodNormalizeSpace:
		text, err := sel.Stringify(nodes[0])
		if err != nil {
			return nil, false, err
		}
		return strings.Join(strings.Fields(text), " "), true, nil
	case methodText, methodNone:
		v, err := stringifyAll(sel, nodes)
		return v, true, err
	}
	v, err := stringifyAll(sel, nodes)
	return v, true, err
}

func stringifyAttr(sel *selector.Runtime, node pagevalue.Node, attr string) (any, error) {
	sc, err := sel.Scalar(query.Expression("string(@"+attr+")"), node)
	if err != nil {
		return nil, err
	}
	return sc.AsString(), nil
}

func stringifyAll(sel *selector.Runtime, nodes pagevalue.NodeList) (any, error) {
	if len(nodes) == 1 {
		return sel.Stringify(nodes[0])
	}
	out := make([]any, len(nodes))
	for i, n := range nodes {
		s, err := sel.Stringify(n)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

type suffixMethod int

const (
	methodNone suffixMethod = iota
	methodText
	methodHref
	methodSrc
	methodAlt
	methodNormalizeSpace
)

func parseSuffix(expr query.Expression) (query.Expression, suffixMethod) {
	s := string(expr)
	switch {
	case strings.HasSuffix(s, "/text()"):
		return query.Expression(strings.TrimSuffix(s, "/text()")), methodText
	case strings.HasSuffix(s, "/@href"):
		return query.Expression(strings.TrimSuffix(s, "/@href")), methodHref
	case strings.HasSuffix(s, "/@src"):
		return query.Expression(strings.TrimSuffix(s, "/@src")), methodSrc
	case strings.HasSuffix(s, "/@alt"):
		return query.Expression(strings.TrimSuffix(s, "/@alt")), methodAlt
	case strings.HasSuffix(s, "/normalize-space()"):
		return query.Expression(strings.TrimSuffix(s, "/normalize-space()")), methodNormalizeSpace
	default:
		return expr, methodNone
	}
}

// resolveIfRelative joins href against baseURL when href has no host of its
// own, matching original_source/engine/web_engine/extractor.py's urljoin
// fallback for relative href values.
func resolveIfRelative(href, baseURL string) string {
	if href == "" || baseURL == "" {
		return href
	}
	u, err := url.Parse(href)
	if err != nil || u.Host != "" {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(u).String()
}

func attrName(m suffixMethod) string {
	switch m {
	case methodHref:
		return "href"
	case methodSrc:
		return "src"
	case methodAlt:
		return "alt"
	}
	return ""
}
