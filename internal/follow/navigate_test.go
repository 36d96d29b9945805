package follow

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
)

func pages() map[string]string {
	return map[string]string{
		"https://a.test/": `<html><body>
			<a href="/p1">one</a>
			<a href="/p2">two</a>
			<a href="https://other.test/x">external</a>
		</body></html>`,
		"https://a.test/p1": `<html><body>visited p1</body></html>`,
		"https://a.test/p2": `<html><body>visited p2</body></html>`,
	}
}

func recordingRunner(seen *[]string) StepRunner {
	return func(ctx context.Context, controller page.Controller, steps []query.Step, visited VisitedSet, depth int) (any, error) {
		u, err := controller.CurrentURL()
		if err != nil {
			return nil, err
		}
		*seen = append(*seen, u)
		return []any{u}, nil
	}
}

func TestNavigateFiltersExternalLinksByDefault(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	results, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr: "//a/@href",
		MaxDepth: 3,
	}, "https://a.test/", NewVisitedSet(), 1, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	want := []string{"https://a.test/p1", "https://a.test/p2"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("got %v, want %v (external link must be filtered by default)", seen, want)
	}
	wantResults := []any{"https://a.test/p1", "https://a.test/p2"}
	if !reflect.DeepEqual(results, wantResults) {
		t.Errorf("results got %v, want %v", results, wantResults)
	}
}

func TestNavigateAllowsExternalWhenEnabled(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	_, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr:       "//a[@href='https://other.test/x']/@href",
		MaxDepth:       3,
		FollowExternal: true,
	}, "https://a.test/", NewVisitedSet(), 1, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if len(seen) != 0 {
		// the static controller has no page registered for other.test, so
		// Open fails and the link is skipped as a soft diagnostic, not a panic.
	}
}

func TestNavigateDepthBoundSkipsBeyondMaxDepth(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	results, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr: "//a/@href",
		MaxDepth: 3,
	}, "https://a.test/", NewVisitedSet(), 4, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if results != nil || len(seen) != 0 {
		t.Errorf("expected no navigation beyond max depth, got results=%v seen=%v", results, seen)
	}
}

func TestNavigateDetectsCycles(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	visited := NewVisitedSet().With("https://a.test/p1")
	results, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr:     "//a/@href",
		MaxDepth:     3,
		DetectCycles: true,
	}, "https://a.test/", visited, 1, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	want := []string{"https://a.test/p2"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected p1 skipped as already-visited, got %v", seen)
	}
	_ = results
}

func chainPages() map[string]string {
	return map[string]string{
		"https://a.test/a": `<html><body><a href="/b">next</a></body></html>`,
		"https://a.test/b": `<html><body><a href="/c">next</a></body></html>`,
		"https://a.test/c": `<html><body>the end</body></html>`,
	}
}

func TestNavigateRecursesThroughMultipleHops(t *testing.T) {
	ctrl := page.NewStatic(chainPages())
	if err := ctrl.Open(context.Background(), "https://a.test/a", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	results, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr: "//a/@href",
		MaxDepth: 3,
	}, "https://a.test/a", NewVisitedSet(), 0, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	want := []string{"https://a.test/b", "https://a.test/c"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected the chain to be followed all the way to C, got %v", seen)
	}
	wantResults := []any{"https://a.test/b", "https://a.test/c"}
	if !reflect.DeepEqual(results, wantResults) {
		t.Errorf("results got %v, want %v", results, wantResults)
	}
}

func TestNavigateMaxDepthOneStopsAtFirstHop(t *testing.T) {
	ctrl := page.NewStatic(chainPages())
	if err := ctrl.Open(context.Background(), "https://a.test/a", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	var seen []string
	results, err := Navigate(context.Background(), ctrl, query.FollowSpec{
		LinkExpr: "//a/@href",
		MaxDepth: 1,
	}, "https://a.test/a", NewVisitedSet(), 0, nil, recordingRunner(&seen), Options{})
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	want := []string{"https://a.test/b"}
	if !reflect.DeepEqual(seen, want) {
		t.Errorf("expected max_depth=1 to reach only B, not grandchildren, got %v", seen)
	}
	wantResults := []any{"https://a.test/b"}
	if !reflect.DeepEqual(results, wantResults) {
		t.Errorf("results got %v, want %v", results, wantResults)
	}
}

func TestVisitedSetWithDoesNotMutateReceiver(t *testing.T) {
	base := NewVisitedSet().With("https://a.test/")
	extended := base.With("https://a.test/p1")
	if base.Has("https://a.test/p1") {
		t.Error("With must not mutate the receiver (branch-scoped visited sets)")
	}
	if !extended.Has("https://a.test/") || !extended.Has("https://a.test/p1") {
		t.Error("extended set must contain both the original and new entry")
	}
}

func TestNavigateRespectsTimeoutCancellation(t *testing.T) {
	ctrl := page.NewStatic(pages())
	if err := ctrl.Open(context.Background(), "https://a.test/", 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	var seen []string
	_, err := Navigate(ctx, ctrl, query.FollowSpec{LinkExpr: "//a/@href", MaxDepth: 3}, "https://a.test/", NewVisitedSet(), 1, nil, recordingRunner(&seen), Options{})
	if err == nil {
		t.Fatal("expected context deadline error")
	}
}
