package page

import (
	"context"
	"fmt"
	"time"

	"github.com/drwebengine/drwe/internal/pagevalue"
)

// RecordingController wraps another Controller and records every call made
// through it, in order, the way the teacher's FakePage recorded Clicks and
// Fills as plain string slices. Unlike StaticController.Calls, which holds
// only Interact/Wait/RunScript calls, it also records Open, Query,
// QueryScalar and Close. No test in this module uses it.
type RecordingController struct {
	Inner Controller
	Calls []string
}

func NewRecording(inner Controller) *RecordingController {
	return &RecordingController{Inner: inner}
}

func (r *RecordingController) record(call string) {
	r.Calls = append(r.Calls, call)
}

func (r *RecordingController) Open(ctx context.Context, url string, timeout time.Duration) error {
	r.record(fmt.Sprintf("open:%s", url))
	return r.Inner.Open(ctx, url, timeout)
}

func (r *RecordingController) CurrentURL() (string, error) {
	return r.Inner.CurrentURL()
}

func (r *RecordingController) Query(expr string, ctxNode pagevalue.Node) (pagevalue.NodeList, error) {
	r.record(fmt.Sprintf("query:%s", expr))
	return r.Inner.Query(expr, ctxNode)
}

func (r *RecordingController) QueryScalar(expr string, ctxNode pagevalue.Node) (pagevalue.Scalar, error) {
	r.record(fmt.Sprintf("query_scalar:%s", expr))
	return r.Inner.QueryScalar(expr, ctxNode)
}

func (r *RecordingController) Interact(ctx context.Context, p InteractParams) error {
	r.record(fmt.Sprintf("interact:%s:%s", p.Kind, p.Expr))
	return r.Inner.Interact(ctx, p)
}

func (r *RecordingController) Wait(ctx context.Context, spec WaitSpec) error {
	r.record(fmt.Sprintf("wait:%s", spec.Until))
	return r.Inner.Wait(ctx, spec)
}

func (r *RecordingController) RunScript(ctx context.Context, code string, timeout time.Duration) (pagevalue.Scalar, error) {
	r.record("script:" + code)
	return r.Inner.RunScript(ctx, code, timeout)
}

func (r *RecordingController) Close() error {
	r.record("close")
	return r.Inner.Close()
}
