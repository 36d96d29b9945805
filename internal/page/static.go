package page

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"github.com/drwebengine/drwe/internal/pagevalue"
	"golang.org/x/net/html"
)

// StaticController is a Controller backed by a fixed set of HTML documents
// held in memory and evaluated with antchfx/htmlquery, the same library the
// pack uses for non-browser XPath extraction. It performs no real waiting
// or scripting; it exists so the core evaluator's test suite runs without a
// browser, deterministically, per spec.md's §6.1 intent that the core
// depend only on the Controller interface.
type StaticController struct {
	Pages map[string]string // url -> raw HTML

	current string
	doc     *html.Node

	// Calls records every Interact/Wait/RunScript invocation in order, so
	// action-pipeline tests can assert on sequencing without a real driver.
	Calls []string
}

func NewStatic(pages map[string]string) *StaticController {
	return &StaticController{Pages: pages}
}

func (c *StaticController) Open(ctx context.Context, rawURL string, timeout time.Duration) error {
	body, ok := c.Pages[rawURL]
	if !ok {
		return NewError(ErrNavigation, "Open", fmt.Errorf("no such page: %s", rawURL))
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return NewError(ErrNavigation, "Open", err)
	}
	c.current = rawURL
	c.doc = doc
	return nil
}

func (c *StaticController) CurrentURL() (string, error) {
	if c.current == "" {
		return "", NewError(ErrNavigation, "CurrentURL", fmt.Errorf("no page open"))
	}
	return c.current, nil
}

func (c *StaticController) root(ctxNode pagevalue.Node) (*html.Node, error) {
	if ctxNode == nil {
		if c.doc == nil {
			return nil, NewError(ErrNavigation, "Query", fmt.Errorf("no page open"))
		}
		return c.doc, nil
	}
	n, ok := ctxNode.(*html.Node)
	if !ok {
		return nil, NewError(ErrScript, "Query", fmt.Errorf("foreign node handle"))
	}
	return n, nil
}

func (c *StaticController) Query(expr string, ctxNode pagevalue.Node) (pagevalue.NodeList, error) {
	expr = stripCSSFallback(expr)
	root, err := c.root(ctxNode)
	if err != nil {
		return nil, err
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, NewError(ErrExpressionSyntax, "Query", err)
	}
	out := make(pagevalue.NodeList, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out, nil
}

func (c *StaticController) QueryScalar(expr string, ctxNode pagevalue.Node) (pagevalue.Scalar, error) {
	expr = stripCSSFallback(expr)
	root, err := c.root(ctxNode)
	if err != nil {
		return pagevalue.Scalar{}, err
	}
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return pagevalue.Scalar{}, NewError(ErrExpressionSyntax, "QueryScalar", err)
	}
	nav := htmlquery.CreateXPathNavigator(root)
	result := compiled.Evaluate(nav)
	switch v := result.(type) {
	case float64:
		return pagevalue.Number(v), nil
	case bool:
		return pagevalue.Boolean(v), nil
	case string:
		return pagevalue.String(v), nil
	case *xpath.NodeIterator:
		if v.MoveNext() {
			return pagevalue.String(v.Current().Value()), nil
		}
		return pagevalue.String(""), nil
	default:
		return pagevalue.String(fmt.Sprint(v)), nil
	}
}

func (c *StaticController) Interact(ctx context.Context, p InteractParams) error {
	c.Calls = append(c.Calls, fmt.Sprintf("interact:%s:%s", p.Kind, p.Expr))
	if p.Kind == InteractScroll && p.Expr == "" {
		return nil
	}
	nodes, err := c.Query(p.Expr, nil)
	if err != nil {
		return err
	}
	if len(nodes) == 0 {
		return NewError(ErrTargetNotFound, "Interact", fmt.Errorf("no match for %s", p.Expr))
	}
	return nil
}

func (c *StaticController) Wait(ctx context.Context, spec WaitSpec) error {
	c.Calls = append(c.Calls, fmt.Sprintf("wait:%s", spec.Until))
	switch spec.Until {
	case WaitElement:
		nodes, err := c.Query(spec.Expr, nil)
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			return NewError(ErrActionTimeout, "Wait", fmt.Errorf("element never appeared: %s", spec.Expr))
		}
	case WaitNoElement:
		nodes, err := c.Query(spec.Expr, nil)
		if err != nil {
			return err
		}
		if len(nodes) != 0 {
			return NewError(ErrActionTimeout, "Wait", fmt.Errorf("element never disappeared: %s", spec.Expr))
		}
	case WaitText:
		if c.doc == nil || !strings.Contains(htmlquery.InnerText(c.doc), spec.Text) {
			return NewError(ErrActionTimeout, "Wait", fmt.Errorf("text never appeared: %s", spec.Text))
		}
	case WaitNetworkIdle, WaitTimeout:
		// Nothing to wait for against a static document.
	}
	return nil
}

func (c *StaticController) RunScript(ctx context.Context, code string, timeout time.Duration) (pagevalue.Scalar, error) {
	c.Calls = append(c.Calls, "script:"+code)
	return pagevalue.String(code), nil
}

func (c *StaticController) Close() error { return nil }

// stripCSSFallback converts the "css=" form used by Locator.Expr into a
// best-effort XPath equivalent for the subset the evaluator needs
// (#id, .class, bare tag) since the static driver has no CSS engine of its
// own; "xpath=" is stripped to the bare expression.
func stripCSSFallback(expr string) string {
	switch {
	case strings.HasPrefix(expr, "xpath="):
		return strings.TrimPrefix(expr, "xpath=")
	case strings.HasPrefix(expr, "css="):
		sel := strings.TrimPrefix(expr, "css=")
		return cssToXPath(sel)
	default:
		return expr
	}
}

func cssToXPath(sel string) string {
	sel = strings.TrimSpace(sel)
	switch {
	case strings.HasPrefix(sel, "#"):
		return fmt.Sprintf("//*[@id=%q]", sel[1:])
	case strings.HasPrefix(sel, "."):
		return fmt.Sprintf("//*[contains(concat(' ', normalize-space(@class), ' '), %q)]", " "+sel[1:]+" ")
	default:
		return "//" + sel
	}
}

// ResolveURL joins a possibly-relative href against the page currently open
// on c. internal/follow resolves links with its own ResolveHref instead.
func (c *StaticController) ResolveURL(href string) (string, error) {
	base, err := url.Parse(c.current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
