package query

// ConditionKind tags which predicate a Condition evaluates (§4.4).
type ConditionKind string

const (
	CondExists    ConditionKind = "exists"
	CondNotExists ConditionKind = "not_exists"
	CondContains  ConditionKind = "contains"
	CondCountEq   ConditionKind = "count_eq"
	CondCountMin  ConditionKind = "count_min"
	CondCountMax  ConditionKind = "count_max"
)

// Condition gates a ConditionalStep's branch selection. It never blocks —
// a missing locator evaluates to false (exists), true (not_exists) or zero
// (count_*), never an error; contains without a locator searches the whole
// page's text (§4.4).
type Condition struct {
	Kind    ConditionKind
	Locator Locator
	Text    string
	Count   int
}
