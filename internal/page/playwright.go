package page

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/drwebengine/drwe/internal/pagevalue"
	"github.com/playwright-community/playwright-go"
)

// StartOptions configures a real browser session, mirroring the teacher's
// browser.StartOptions shape.
type StartOptions struct {
	Browser         string // chromium, firefox, webkit
	Channel         string
	Headless        bool
	StorageStatePath string
}

// PlaywrightController is a Controller backed by a real browser via
// playwright-go, adapted from the teacher's internal/browser/playwright.go.
type PlaywrightController struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
}

func StartPlaywright(opts StartOptions) (*PlaywrightController, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, NewError(ErrNavigation, "Start", err)
	}
	bt := browserType(pw, opts.Browser)
	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Channel != "" {
		launchOpts.Channel = playwright.String(opts.Channel)
	}
	browser, err := bt.Launch(launchOpts)
	if err != nil {
		_ = pw.Stop()
		return nil, NewError(ErrNavigation, "Launch", err)
	}
	ctxOpts := playwright.BrowserNewContextOptions{}
	if opts.StorageStatePath != "" {
		ctxOpts.StorageStatePath = playwright.String(opts.StorageStatePath)
	}
	bctx, err := browser.NewContext(ctxOpts)
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, NewError(ErrNavigation, "NewContext", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, NewError(ErrNavigation, "NewPage", err)
	}
	return &PlaywrightController{pw: pw, browser: browser, context: bctx, page: pg}, nil
}

func browserType(pw *playwright.Playwright, name string) playwright.BrowserType {
	switch name {
	case "firefox":
		return pw.Firefox
	case "webkit":
		return pw.WebKit
	default:
		return pw.Chromium
	}
}

func (c *PlaywrightController) Open(ctx context.Context, rawURL string, timeout time.Duration) error {
	_, err := c.page.Goto(rawURL, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return NewError(ErrNavigation, "Open", err)
	}
	return nil
}

func (c *PlaywrightController) CurrentURL() (string, error) {
	return c.page.URL(), nil
}

func (c *PlaywrightController) Query(expr string, ctxNode pagevalue.Node) (pagevalue.NodeList, error) {
	root, err := c.resolveRoot(ctxNode)
	if err != nil {
		return nil, err
	}
	handles, err := root.QuerySelectorAll(canonicalSelector(expr))
	if err != nil {
		return nil, NewError(ErrExpressionSyntax, "Query", err)
	}
	out := make(pagevalue.NodeList, len(handles))
	for i, h := range handles {
		out[i] = h
	}
	return out, nil
}

func (c *PlaywrightController) QueryScalar(expr string, ctxNode pagevalue.Node) (pagevalue.Scalar, error) {
	var arg playwright.ElementHandle
	if ctxNode != nil {
		h, ok := ctxNode.(playwright.ElementHandle)
		if !ok {
			return pagevalue.Scalar{}, NewError(ErrScript, "QueryScalar", fmt.Errorf("foreign node handle"))
		}
		arg = h
	}
	script := `(args) => {
		const [expr, node] = args;
		const root = node || document;
		const doc = root.ownerDocument || document;
		const result = doc.evaluate(expr, root, null, XPathResult.ANY_TYPE, null);
		switch (result.resultType) {
			case XPathResult.NUMBER_TYPE: return { t: "number", v: result.numberValue };
			case XPathResult.BOOLEAN_TYPE: return { t: "boolean", v: result.booleanValue };
			case XPathResult.STRING_TYPE: return { t: "string", v: result.stringValue };
			default: {
				const n = result.iterateNext();
				return { t: "string", v: n ? (n.textContent || n.value || "") : "" };
			}
		}
	}`
	raw, err := c.page.Evaluate(script, []any{expr, arg})
	if err != nil {
		return pagevalue.Scalar{}, NewError(ErrScript, "QueryScalar", err)
	}
	return decodeScalar(raw)
}

func decodeScalar(raw any) (pagevalue.Scalar, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return pagevalue.String(fmt.Sprint(raw)), nil
	}
	switch m["t"] {
	case "number":
		n, _ := m["v"].(float64)
		return pagevalue.Number(n), nil
	case "boolean":
		b, _ := m["v"].(bool)
		return pagevalue.Boolean(b), nil
	default:
		s, _ := m["v"].(string)
		return pagevalue.String(s), nil
	}
}

func (c *PlaywrightController) resolveRoot(ctxNode pagevalue.Node) (rootQuerier, error) {
	if ctxNode == nil {
		return c.page, nil
	}
	h, ok := ctxNode.(playwright.ElementHandle)
	if !ok {
		return nil, NewError(ErrScript, "Query", fmt.Errorf("foreign node handle"))
	}
	return h, nil
}

// rootQuerier is the subset of playwright.Page/ElementHandle this driver
// needs, so Query can operate against either without a type switch.
type rootQuerier interface {
	QuerySelectorAll(selector string) ([]playwright.ElementHandle, error)
}

// canonicalSelector turns a core expression ("xpath=..." or "css=...",
// defaulting to xpath) into the selector-engine-prefixed form Playwright
// expects.
func canonicalSelector(expr string) string {
	switch {
	case strings.HasPrefix(expr, "xpath="), strings.HasPrefix(expr, "css="):
		return expr
	default:
		return "xpath=" + expr
	}
}

func (c *PlaywrightController) Interact(ctx context.Context, p InteractParams) error {
	timeout := playwright.Float(float64(p.TimeoutMs))
	switch p.Kind {
	case InteractClick:
		if err := c.clickWithFallback(p.Expr, timeout); err != nil {
			return err
		}
	case InteractHover:
		if err := c.page.Locator(canonicalSelector(p.Expr)).Hover(playwright.LocatorHoverOptions{Timeout: timeout}); err != nil {
			return classifyActionErr(err)
		}
	case InteractFill:
		if err := c.page.Locator(canonicalSelector(p.Expr)).Fill(p.Value, playwright.LocatorFillOptions{Timeout: timeout}); err != nil {
			return classifyActionErr(err)
		}
	case InteractScroll:
		if err := c.scroll(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *PlaywrightController) clickWithFallback(expr string, timeout *float64) error {
	err := c.page.Locator(canonicalSelector(expr)).Click(playwright.LocatorClickOptions{Timeout: timeout})
	if err == nil {
		return nil
	}
	return classifyActionErr(err)
}

func classifyActionErr(err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "Timeout") {
		return NewError(ErrActionTimeout, "Interact", err)
	}
	return NewError(ErrTargetNotInteractable, "Interact", err)
}

func (c *PlaywrightController) scroll(p InteractParams) error {
	if p.Expr != "" {
		_, err := c.page.Evaluate(`(sel) => {
			const el = document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
			if (el) el.scrollIntoView({ block: "center" });
		}`, strings.TrimPrefix(strings.TrimPrefix(p.Expr, "xpath="), "css="))
		if err != nil {
			return NewError(ErrScript, "Interact", err)
		}
		return nil
	}
	dx, dy := scrollDelta(p.Direction, p.Pixels)
	_, err := c.page.Evaluate(`([dx, dy]) => window.scrollBy(dx, dy)`, []int{dx, dy})
	if err != nil {
		return NewError(ErrScript, "Interact", err)
	}
	return nil
}

func scrollDelta(direction string, pixels int) (int, int) {
	if pixels == 0 {
		pixels = 400
	}
	switch direction {
	case "up":
		return 0, -pixels
	case "left":
		return -pixels, 0
	case "right":
		return pixels, 0
	default:
		return 0, pixels
	}
}

func (c *PlaywrightController) Wait(ctx context.Context, spec WaitSpec) error {
	timeout := playwright.Float(float64(spec.TimeoutMs))
	switch spec.Until {
	case WaitElement:
		_, err := c.page.WaitForSelector(canonicalSelector(spec.Expr), playwright.PageWaitForSelectorOptions{
			Timeout: timeout, State: playwright.WaitForSelectorStateVisible,
		})
		if err != nil {
			return NewError(ErrActionTimeout, "Wait", err)
		}
	case WaitNoElement:
		_, err := c.page.WaitForSelector(canonicalSelector(spec.Expr), playwright.PageWaitForSelectorOptions{
			Timeout: timeout, State: playwright.WaitForSelectorStateDetached,
		})
		if err != nil {
			return NewError(ErrActionTimeout, "Wait", err)
		}
	case WaitText:
		arg, _ := json.Marshal(spec.Text)
		_, err := c.page.WaitForFunction(fmt.Sprintf(`() => document.body && document.body.innerText.includes(%s)`, string(arg)),
			playwright.PageWaitForFunctionOptions{Timeout: timeout})
		if err != nil {
			return NewError(ErrActionTimeout, "Wait", err)
		}
	case WaitNetworkIdle:
		if err := c.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateNetworkidle,
		}); err != nil {
			return NewError(ErrActionTimeout, "Wait", err)
		}
	case WaitTimeout:
		c.page.WaitForTimeout(float64(spec.TimeoutMs))
	}
	return nil
}

func (c *PlaywrightController) RunScript(ctx context.Context, code string, timeout time.Duration) (pagevalue.Scalar, error) {
	raw, err := c.page.Evaluate(code)
	if err != nil {
		return pagevalue.Scalar{}, NewError(ErrScript, "RunScript", err)
	}
	switch v := raw.(type) {
	case float64:
		return pagevalue.Number(v), nil
	case bool:
		return pagevalue.Boolean(v), nil
	case string:
		return pagevalue.String(v), nil
	case nil:
		return pagevalue.String(""), nil
	default:
		b, _ := json.Marshal(v)
		return pagevalue.String(string(b)), nil
	}
}

func (c *PlaywrightController) Close() error {
	if c.context != nil {
		_ = c.context.Close()
	}
	if c.browser != nil {
		_ = c.browser.Close()
	}
	if c.pw != nil {
		return c.pw.Stop()
	}
	return nil
}

// StorageState persists the current context's cookies/localStorage to path,
// mirroring the teacher's Session.StorageState.
func (c *PlaywrightController) StorageState(path string) error {
	_, err := c.context.StorageState(path)
	return err
}
