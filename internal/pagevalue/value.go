// Package pagevalue holds the small value types that flow between
// internal/page drivers and internal/selector: opaque node handles and the
// scalar result of an XPath function evaluation.
package pagevalue

import "strconv"

// Node is an opaque handle to a matched DOM node, owned by whichever
// internal/page.Controller produced it. Core packages never inspect a Node;
// they only pass it back into the same Controller.
type Node any

// NodeList is the result of evaluating an XPath expression that yields a
// node-set.
type NodeList []Node

// Kind tags which field of Scalar is populated.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBoolean
)

// Scalar is the result of evaluating an XPath function expression
// (count(), boolean(), string(), normalize-space(), ...).
type Scalar struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
}

func String(s string) Scalar  { return Scalar{Kind: KindString, Str: s} }
func Number(n float64) Scalar { return Scalar{Kind: KindNumber, Num: n} }
func Boolean(b bool) Scalar   { return Scalar{Kind: KindBoolean, Bool: b} }

// AsString renders the scalar as a string regardless of its kind, the way a
// field extractor needs to when assembling a record.
func (s Scalar) AsString() string {
	switch s.Kind {
	case KindString:
		return s.Str
	case KindNumber:
		return formatNumber(s.Num)
	case KindBoolean:
		if s.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}
