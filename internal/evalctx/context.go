// Package evalctx holds the branch-scoped evaluation context (§3.7)
// threaded through step dispatch: the open page, recursion depth, the
// immutable visited-set, and the diagnostic sink. It is a separate, small
// package (rather than living in internal/eval) so that internal/registry
// and internal/processor can depend on its type without creating an import
// cycle back through internal/eval.
package evalctx

import (
	"go.uber.org/zap"

	"github.com/drwebengine/drwe/internal/follow"
	"github.com/drwebengine/drwe/internal/page"
)

// Context is extended immutably down follow branches: Child returns a copy
// with Depth/Visited advanced, never mutating the parent.
type Context struct {
	Controller page.Controller
	Depth      int
	Visited    follow.VisitedSet
	StartURL   string
	Strict     bool
	Logger     *zap.SugaredLogger
	Path       []int
}

// Child returns a branch-scoped copy for one level of follow recursion.
func (c Context) Child(visited follow.VisitedSet, path []int) Context {
	next := c
	next.Depth = c.Depth + 1
	next.Visited = visited
	next.Path = path
	return next
}

// WithPath returns a copy of c with Path replaced, for sibling steps at the
// same depth (no recursion, just a different diagnostic path).
func (c Context) WithPath(path []int) Context {
	next := c
	next.Path = path
	return next
}
