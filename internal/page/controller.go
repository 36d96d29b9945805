// Package page defines the capability interface the core evaluator depends
// on (§6.1), plus two implementations: a real Playwright-backed driver and
// a static-HTML test driver built on antchfx/htmlquery. The evaluator never
// imports a concrete driver directly.
package page

import (
	"context"
	"time"

	"github.com/drwebengine/drwe/internal/pagevalue"
)

// InteractKind tags the interaction Interact performs, mirroring
// query.ActionKind for the subset of actions that touch the page directly.
type InteractKind string

const (
	InteractClick InteractKind = "click"
	InteractHover InteractKind = "hover"
	InteractFill  InteractKind = "fill"
	InteractScroll InteractKind = "scroll"
)

// InteractParams is the payload for a single Interact call.
type InteractParams struct {
	Kind      InteractKind
	Expr      string // bare XPath, "xpath=..." or "css=..."
	Value     string // fill text
	Direction string // scroll: up/down/left/right
	Pixels    int    // scroll by pixels, Expr empty
	TimeoutMs int
}

// WaitUntil tags the predicate Wait blocks on.
type WaitUntil string

const (
	WaitElement     WaitUntil = "element"
	WaitNoElement   WaitUntil = "no_element"
	WaitText        WaitUntil = "text"
	WaitNetworkIdle WaitUntil = "network_idle"
	WaitTimeout     WaitUntil = "timeout"
)

// WaitSpec is the payload for a single Wait call.
type WaitSpec struct {
	Until     WaitUntil
	Expr      string
	Text      string
	TimeoutMs int
}

// Controller is the capability-level interface the core evaluator depends
// on (§6.1). A concrete implementation owns exactly one browser session (or
// one static document, for tests) and one "current page" at a time; the
// evaluator is responsible for sequencing navigation.
type Controller interface {
	// Open navigates the current page to url, waiting up to timeout for the
	// load to settle. Returns NavigationError on failure.
	Open(ctx context.Context, url string, timeout time.Duration) error

	// CurrentURL returns the URL of the current page, used to resolve
	// relative links and to detect cross-host navigation for follow steps.
	CurrentURL() (string, error)

	// Query evaluates expr (an XPath node-set expression) against ctxNode,
	// or against the document root when ctxNode is nil or expr is absolute.
	Query(expr string, ctxNode pagevalue.Node) (pagevalue.NodeList, error)

	// QueryScalar evaluates expr as an XPath function expression
	// (count(...), boolean(...), string(.), normalize-space(...), ...)
	// against ctxNode and returns its scalar result.
	QueryScalar(expr string, ctxNode pagevalue.Node) (pagevalue.Scalar, error)

	// Interact performs a single browser action. Returns TargetNotFound,
	// TargetNotInteractable or ActionTimeout on failure, depending on the
	// driver and the kind.
	Interact(ctx context.Context, p InteractParams) error

	// Wait blocks until spec's predicate holds or its timeout elapses.
	Wait(ctx context.Context, spec WaitSpec) error

	// RunScript executes driver-side script code and returns its scalar
	// result (empty Scalar if the script has no return value).
	RunScript(ctx context.Context, code string, timeout time.Duration) (pagevalue.Scalar, error)

	// Close releases the underlying browser/session resources. Safe to call
	// more than once.
	Close() error
}
