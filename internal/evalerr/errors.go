// Package evalerr holds the §7 error taxonomy shared by internal/processor
// and internal/eval. It is kept
// separate from internal/eval (the top-level orchestrator) so that the
// lower packages can report classified errors without importing the
// package that imports them.
package evalerr

import (
	"errors"
	"fmt"

	"github.com/drwebengine/drwe/internal/page"
)

// ErrorKind is the error taxonomy from §7.
type ErrorKind string

const (
	ErrUnknownKey             ErrorKind = "UnknownKey"
	ErrSchema                 ErrorKind = "SchemaError"
	ErrExpressionSyntax       ErrorKind = "ExpressionSyntaxError"
	ErrTargetNotFound         ErrorKind = "TargetNotFound"
	ErrTargetNotInteractable  ErrorKind = "TargetNotInteractable"
	ErrActionTimeout          ErrorKind = "ActionTimeout"
	ErrNavigation             ErrorKind = "NavigationError"
	ErrScript                 ErrorKind = "ScriptError"
	ErrNoProcessor            ErrorKind = "NoProcessor"
	ErrCancelled              ErrorKind = "Cancelled"
	ErrFatal                  ErrorKind = "FatalError"
)

// StepError is the error type internal/eval and internal/processor return
// for a classified failure; internal/follow and internal/paginate pass on
// the errors they receive unchanged. Path identifies the step by its index
// chain from the query root, for diagnostics.
type StepError struct {
	Kind    ErrorKind
	Path    []int
	Message string
	Err     error
}

func (e *StepError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %v: %s: %v", e.Kind, e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %v: %s", e.Kind, e.Path, e.Message)
}

func (e *StepError) Unwrap() error { return e.Err }

func NewStepError(kind ErrorKind, path []int, message string, err error) *StepError {
	return &StepError{Kind: kind, Path: path, Message: message, Err: err}
}

// IsFatal reports whether err should abort the whole evaluation regardless
// of the strict flag (Cancelled and FatalError always are; everything else
// is soft-fail unless strict is set by the caller).
func IsFatal(err error) bool {
	var se *StepError
	if errors.As(err, &se) {
		return se.Kind == ErrFatal || se.Kind == ErrCancelled
	}
	return false
}

// FromPageError maps a page.Error onto the matching StepError kind, so the
// core never needs to import a concrete driver's error type.
func FromPageError(path []int, err error) *StepError {
	var pe *page.Error
	if errors.As(err, &pe) {
		return NewStepError(ErrorKind(pe.Kind), path, pe.Op, pe.Err)
	}
	return NewStepError(ErrScript, path, "driver error", err)
}
