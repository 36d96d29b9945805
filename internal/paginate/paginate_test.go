package paginate

import (
	"context"
	"reflect"
	"testing"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
)

func pages() map[string]string {
	return map[string]string{
		"https://a.test/p1": `<html><body><a class="next" href="/p2">next</a></body></html>`,
		"https://a.test/p2": `<html><body><a class="next" href="/p3">next</a></body></html>`,
		"https://a.test/p3": `<html><body>no more pages</body></html>`,
	}
}

func countingRunner(calls *int) Runner {
	return func(ctx context.Context, ec evalctx.Context) (any, error) {
		*calls++
		u, _ := ec.Controller.CurrentURL()
		return []any{u}, nil
	}
}

func TestRunMaxPagesOneNeverFollowsNextLink(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/p1", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	calls := 0
	results, err := Run(context.Background(), ctrl, evalctx.Context{Controller: ctrl}, &query.Pagination{
		LinkExpr: "//a[@class='next']",
		MaxPages: 1,
	}, countingRunner(&calls), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one page run for MaxPages=1, got %d", calls)
	}
	want := []any{"https://a.test/p1"}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("got %v, want %v", results, want)
	}
}

func TestRunFollowsUntilMaxPages(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/p1", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	calls := 0
	results, err := Run(context.Background(), ctrl, evalctx.Context{Controller: ctrl}, &query.Pagination{
		LinkExpr: "//a[@class='next']",
		MaxPages: 3,
	}, countingRunner(&calls), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 page runs, got %d", calls)
	}
	want := []any{"https://a.test/p1", "https://a.test/p2", "https://a.test/p3"}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("got %v, want %v", results, want)
	}
}

func TestRunStopsWhenNextLinkDisappears(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/p1", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	calls := 0
	results, err := Run(context.Background(), ctrl, evalctx.Context{Controller: ctrl}, &query.Pagination{
		LinkExpr: "//a[@class='next']",
		MaxPages: 10,
	}, countingRunner(&calls), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected pagination to stop once the next-link disappears at p3, got %d calls", calls)
	}
	_ = results
}

func TestRunWithoutPaginationRunsOncePlain(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/p1", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	calls := 0
	results, err := Run(context.Background(), ctrl, evalctx.Context{Controller: ctrl}, nil, countingRunner(&calls), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call with pg=nil, got %d", calls)
	}
	want := []any{"https://a.test/p1"}
	if !reflect.DeepEqual(results, want) {
		t.Errorf("got %v, want %v", results, want)
	}
}
