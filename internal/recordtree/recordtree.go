// Package recordtree assembles the list/mapping/hybrid output shape
// described in spec.md §3.8/§6.3.
package recordtree

// Contribution is what one step contributes to the result its parent step
// list is building.
type Contribution struct {
	Named bool
	Name  string
	Items []any
}

// Unnamed is shorthand for a Contribution carrying no name.
func Unnamed(items ...any) Contribution {
	return Contribution{Items: items}
}

// NamedContribution is shorthand for a Contribution attached under name.
func NamedContribution(name string, items ...any) Contribution {
	return Contribution{Named: true, Name: name, Items: items}
}

// itemsKey is the reserved map key unnamed contributions land under when a
// step list produces a hybrid result (DESIGN.md open-question decision 4).
const itemsKey = "items"

// Build assembles a parent-level result from a step list's ordered
// contributions:
//   - all unnamed  -> a flat list
//   - all named    -> a map from name to that name's concatenated items
//   - a mix        -> a map, with unnamed items concatenated under "items"
func Build(contributions []Contribution) any {
	named := map[string]any{}
	var anon []any
	for _, c := range contributions {
		if c.Named {
			appendNamed(named, c.Name, c.Items)
		} else {
			anon = append(anon, c.Items...)
		}
	}
	switch {
	case len(named) == 0:
		if anon == nil {
			return []any{}
		}
		return anon
	case len(anon) == 0:
		return named
	default:
		named[itemsKey] = anon
		return named
	}
}

func appendNamed(named map[string]any, name string, items []any) {
	existing, ok := named[name]
	if !ok {
		named[name] = append([]any{}, items...)
		return
	}
	lst, ok := existing.([]any)
	if !ok {
		lst = []any{existing}
	}
	named[name] = append(lst, items...)
}

// Flatten appends v's elements into dst, spreading one level of list
// nesting: if v is a []any its elements are appended individually,
// otherwise v itself is appended as a single element. This is the rule the
// follow engine (C7) uses to collect each followed page's result into one
// flat list (grounded on the original's `results.extend(page_results)`).
func Flatten(dst []any, v any) []any {
	if lst, ok := v.([]any); ok {
		return append(dst, lst...)
	}
	return append(dst, v)
}
