package query

// ActionKind tags which browser interaction an Action performs (§3.5).
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionScroll ActionKind = "scroll"
	ActionFill   ActionKind = "fill"
	ActionHover  ActionKind = "hover"
	ActionWait   ActionKind = "wait"
	ActionScript ActionKind = "script"
)

// WaitUntil tags the predicate a wait action blocks on (§3.5).
type WaitUntil string

const (
	WaitElement     WaitUntil = "element"
	WaitNoElement   WaitUntil = "no_element"
	WaitText        WaitUntil = "text"
	WaitNetworkIdle WaitUntil = "network_idle"
	WaitTimeout     WaitUntil = "timeout"
)

// Locator is an XPath expression and/or a CSS selector string. Both forms
// are interchangeable per §3.5's "Locator" invariant; XPath wins when both
// are set since it is the engine's native addressing scheme.
type Locator struct {
	XPath    Expression
	Selector string
}

// Expr returns the locator's XPath form, translating a CSS selector into
// the driver-native "css=" prefix understood by internal/page drivers when
// no XPath form was given.
func (l Locator) Expr() Expression {
	if l.XPath != "" {
		return l.XPath
	}
	if l.Selector != "" {
		return Expression("css=" + l.Selector)
	}
	return ""
}

func (l Locator) IsZero() bool { return l.XPath == "" && l.Selector == "" }

// Action is one step in the browser-interaction pipeline (§3.5, C3).
type Action struct {
	Kind      ActionKind
	Locator   Locator
	Direction string // scroll: up/down/left/right
	Pixels    int    // scroll by pixel amount, locator omitted
	Value     string // fill
	Until     WaitUntil
	Text      string // wait: text to look for
	TimeoutMs int
	Code      string // script
	WaitFor   string // script: poll predicate
}
