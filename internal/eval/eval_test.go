package eval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drwebengine/drwe/internal/evalerr"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
)

const listingDoc = `<html><body>
<ul>
  <li class="item"><a href="/p1">First</a></li>
  <li class="item"><a href="/p2">Second</a></li>
</ul>
</body></html>`

func simpleQuery(startURL string) *query.Query {
	return &query.Query{
		StartURL: startURL,
		Steps: []query.Step{{
			Kind: query.StepExtract,
			Extract: &query.ExtractStep{
				XPath: "//li[@class='item']",
				Name:  "items",
				Fields: map[string]query.Expression{
					"text": "./a/text()",
				},
			},
		}},
	}
}

func TestEvaluateSimpleExtract(t *testing.T) {
	ctrl := page.NewStatic(map[string]string{"https://a.test/": listingDoc})
	ev := New(Options{})
	result, err := ev.Evaluate(context.Background(), ctrl, simpleQuery("https://a.test/"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	m, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected a map result, got %#v", result.Data)
	}
	items, ok := m["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items, got %#v", m["items"])
	}
	if len(result.Diagnostics) != 0 {
		t.Errorf("expected no diagnostics, got %v", result.Diagnostics)
	}
}

func TestEvaluateSoftFailContainsBadStepAndContinues(t *testing.T) {
	ctrl := page.NewStatic(map[string]string{"https://a.test/": listingDoc})
	ev := New(Options{})
	q := &query.Query{
		StartURL: "https://a.test/",
		Steps: []query.Step{
			{Kind: query.StepPlugin, Plugin: &query.PluginStep{Kind: "nl_select"}},
			{
				Kind: query.StepExtract,
				Extract: &query.ExtractStep{
					XPath:  "//li[@class='item']",
					Name:   "items",
					Fields: map[string]query.Expression{"text": "./a/text()"},
				},
			},
		},
	}
	result, err := ev.Evaluate(context.Background(), ctrl, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("expected one diagnostic for the unhandled plugin step, got %v", result.Diagnostics)
	}
	m, ok := result.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected the extract step to still run and contribute, got %#v", result.Data)
	}
	if items, ok := m["items"].([]any); !ok || len(items) != 2 {
		t.Errorf("expected the surviving extract step's 2 items, got %#v", m["items"])
	}
}

func TestEvaluateStrictModePropagatesFirstError(t *testing.T) {
	ctrl := page.NewStatic(map[string]string{"https://a.test/": listingDoc})
	ev := New(Options{Strict: true})
	q := &query.Query{
		StartURL: "https://a.test/",
		Steps: []query.Step{
			{Kind: query.StepPlugin, Plugin: &query.PluginStep{Kind: "nl_select"}},
		},
	}
	_, err := ev.Evaluate(context.Background(), ctrl, q)
	if err == nil {
		t.Fatal("expected strict mode to propagate the unhandled-step error")
	}
}

func TestEvaluateCaptchaHookAbortsEvaluation(t *testing.T) {
	ctrl := page.NewStatic(map[string]string{"https://a.test/": listingDoc})
	ev := New(Options{
		OnCaptcha: func(c page.Controller) (bool, error) { return true, nil },
	})
	result, err := ev.Evaluate(context.Background(), ctrl, simpleQuery("https://a.test/"))
	if err == nil {
		t.Fatal("expected a CAPTCHA hook to abort evaluation with a fatal error")
	}
	if result != nil {
		t.Errorf("expected no result on a pre-step CAPTCHA abort, got %#v", result)
	}
}

func TestEvaluateWallClockBudgetCancelsLongRun(t *testing.T) {
	docs := map[string]string{
		"https://a.test/p1": `<html><body><a class="next" href="/p2">next</a></body></html>`,
		"https://a.test/p2": `<html><body><a class="next" href="/p3">next</a></body></html>`,
		"https://a.test/p3": `<html><body>done</body></html>`,
	}
	ctrl := page.NewStatic(docs)
	ev := New(Options{WallClockBudget: time.Nanosecond})
	q := &query.Query{
		StartURL:   "https://a.test/p1",
		Steps:      []query.Step{{Kind: query.StepScript, Script: &query.ScriptStep{Code: "1"}}},
		Pagination: &query.Pagination{LinkExpr: "//a[@class='next']", MaxPages: 3},
	}
	time.Sleep(time.Millisecond)
	result, err := ev.Evaluate(context.Background(), ctrl, q)
	if err == nil {
		t.Fatal("expected a wall-clock budget of ~0 to produce a cancellation error")
	}
	if result == nil || !result.Cancelled {
		t.Errorf("expected result.Cancelled to be set, got %#v", result)
	}
}

func TestEvaluateCaptchaHookFiresOnFollowHop(t *testing.T) {
	docs := map[string]string{
		"https://a.test/":   listingDoc,
		"https://a.test/p1": `<html><body><h1>One</h1></body></html>`,
		"https://a.test/p2": `<html><body><h1>Two</h1></body></html>`,
	}
	ctrl := page.NewStatic(docs)
	seenURLs := []string{}
	ev := New(Options{
		OnCaptcha: func(c page.Controller) (bool, error) {
			u, _ := c.CurrentURL()
			seenURLs = append(seenURLs, u)
			return u == "https://a.test/p2", nil
		},
	})
	q := &query.Query{
		StartURL: "https://a.test/",
		Steps: []query.Step{{
			Kind: query.StepFollow,
			Follow: &query.FollowStep{Spec: query.FollowSpec{
				LinkExpr: "//a/@href",
				MaxDepth: 2,
			}},
		}},
	}
	_, err := ev.Evaluate(context.Background(), ctrl, q)
	if err == nil {
		t.Fatal("expected the CAPTCHA hook to abort once it reports a block on p2")
	}
	if len(seenURLs) < 2 || seenURLs[0] != "https://a.test/" {
		t.Errorf("expected the hook to run on the start page first, got %v", seenURLs)
	}
	found := false
	for _, u := range seenURLs {
		if u == "https://a.test/p2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the hook to also run on the follow hop to p2, got %v", seenURLs)
	}
}

func TestEvaluatePaginationAccumulatesAcrossPages(t *testing.T) {
	docs := map[string]string{
		"https://a.test/p1": `<html><body><h1>One</h1><a class="next" href="/p2">next</a></body></html>`,
		"https://a.test/p2": `<html><body><h1>Two</h1></body></html>`,
	}
	ctrl := page.NewStatic(docs)
	ev := New(Options{})
	q := &query.Query{
		StartURL: "https://a.test/p1",
		Steps: []query.Step{{
			Kind: query.StepExtract,
			Extract: &query.ExtractStep{
				XPath:  "//h1",
				Name:   "title",
				Fields: map[string]query.Expression{"text": "./text()"},
			},
		}},
		Pagination: &query.Pagination{LinkExpr: "//a[@class='next']", MaxPages: 2},
	}
	result, err := ev.Evaluate(context.Background(), ctrl, q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	items, ok := result.Data.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected one accumulated result per page, got %#v", result.Data)
	}
}

func TestEvaluateOpenFailureIsNavigationError(t *testing.T) {
	ctrl := page.NewStatic(map[string]string{})
	ev := New(Options{})
	_, err := ev.Evaluate(context.Background(), ctrl, simpleQuery("https://a.test/"))
	if err == nil {
		t.Fatal("expected an error opening a page the static controller has no fixture for")
	}
	var se *evalerr.StepError
	if !errors.As(err, &se) {
		t.Fatalf("expected a classified *evalerr.StepError, got %T: %v", err, err)
	}
	if se.Kind != evalerr.ErrNavigation {
		t.Errorf("got kind %v, want %v", se.Kind, evalerr.ErrNavigation)
	}
}
