package processor

import (
	"context"
	"reflect"
	"testing"

	"github.com/drwebengine/drwe/internal/evalctx"
	"github.com/drwebengine/drwe/internal/follow"
	"github.com/drwebengine/drwe/internal/page"
	"github.com/drwebengine/drwe/internal/query"
	"github.com/drwebengine/drwe/internal/registry"
)

func newDispatcher() *Dispatcher {
	reg := registry.New()
	d := &Dispatcher{Registry: reg}
	reg.Register(&ExtractProcessor{Dispatcher: d})
	reg.Register(&ConditionalProcessor{Dispatcher: d})
	reg.Register(&FollowProcessor{Dispatcher: d})
	reg.Register(&ScriptProcessor{})
	reg.Freeze()
	return d
}

const listDoc = `<html><body>
<ul>
  <li class="item"><a href="/p1">First</a></li>
  <li class="item"><a href="/p2">Second</a></li>
</ul>
</body></html>`

func newCtx(t *testing.T, pages map[string]string, start string) (evalctx.Context, *page.StaticController) {
	t.Helper()
	ctrl := page.NewStatic(pages)
	if err := ctrl.Open(context.Background(), start, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return evalctx.Context{Controller: ctrl, StartURL: start, Visited: follow.NewVisitedSet()}, ctrl
}

func TestRunStepsExtractProducesNamedRecords(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	steps := []query.Step{{
		Kind: query.StepExtract,
		Extract: &query.ExtractStep{
			XPath: "//li[@class='item']",
			Name:  "items",
			Fields: map[string]query.Expression{
				"text": "./a/text()",
				"href": "./a/@href",
			},
		},
	}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a map result, got %#v", result)
	}
	items, ok := m["items"].([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 items under 'items', got %#v", m["items"])
	}
	first, ok := items[0].(map[string]any)
	if !ok || first["text"] != "First" || first["href"] != "https://a.test/p1" {
		t.Errorf("unexpected first record: %#v", first)
	}
}

func TestRunStepsConditionalSplicesBranchDirectly(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	steps := []query.Step{{
		Kind: query.StepConditional,
		Conditional: &query.ConditionalStep{
			Condition: query.Condition{Kind: query.CondExists, Locator: query.Locator{XPath: "//li[@class='item']"}},
			Then: []query.Step{{
				Kind: query.StepExtract,
				Extract: &query.ExtractStep{
					XPath:  "//li[@class='item']",
					Name:   "matched",
					Fields: map[string]query.Expression{"text": "./a/text()"},
				},
			}},
		},
	}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected a map result (the branch's own shape, not a wrapper), got %#v", result)
	}
	if _, ok := m["matched"]; !ok {
		t.Errorf("expected the branch's 'matched' key spliced directly into the parent result, got %#v", m)
	}
}

func TestRunStepsConditionalFalseRunsElse(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	steps := []query.Step{{
		Kind: query.StepConditional,
		Conditional: &query.ConditionalStep{
			Condition: query.Condition{Kind: query.CondExists, Locator: query.Locator{XPath: "//li[@class='nope']"}},
			Then: []query.Step{{
				Kind:    query.StepExtract,
				Extract: &query.ExtractStep{XPath: "//li", Name: "then_branch"},
			}},
			Else: []query.Step{{
				Kind:    query.StepExtract,
				Extract: &query.ExtractStep{XPath: "//li", Name: "else_branch"},
			}},
		},
	}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result, got %#v", result)
	}
	if _, ok := m["else_branch"]; !ok {
		t.Errorf("expected else branch to run, got %#v", m)
	}
	if _, ok := m["then_branch"]; ok {
		t.Errorf("then branch must not run when condition is false, got %#v", m)
	}
}

func TestRunStepsNoProcessorSoftFailsByDefault(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	steps := []query.Step{{Kind: query.StepPlugin, Plugin: &query.PluginStep{Kind: "nl_select"}}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("expected no error in non-strict mode, got %v", err)
	}
	want := []any{}
	if !reflect.DeepEqual(result, want) {
		t.Errorf("got %#v, want empty list", result)
	}
}

func TestRunStepsNoProcessorFailsFastInStrictMode(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	ec.Strict = true
	steps := []query.Step{{Kind: query.StepPlugin, Plugin: &query.PluginStep{Kind: "nl_select"}}}
	if _, err := d.RunSteps(context.Background(), ec, steps); err == nil {
		t.Fatal("expected error in strict mode for an unhandled step kind")
	}
}

func TestFollowProcessorNavigatesAndCollects(t *testing.T) {
	d := newDispatcher()
	docs := map[string]string{
		"https://a.test/":   listDoc,
		"https://a.test/p1": `<html><body><h1>Page One</h1></body></html>`,
		"https://a.test/p2": `<html><body><h1>Page Two</h1></body></html>`,
	}
	ec, _ := newCtx(t, docs, "https://a.test/")
	steps := []query.Step{{
		Kind: query.StepFollow,
		Follow: &query.FollowStep{Spec: query.FollowSpec{
			LinkExpr: "//a/@href",
			MaxDepth: 2,
			Steps: []query.Step{{
				Kind: query.StepExtract,
				Extract: &query.ExtractStep{
					XPath:  "//h1",
					Name:   "title",
					Fields: map[string]query.Expression{"text": "./text()"},
				},
			}},
		}},
	}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	items, ok := result.([]any)
	if !ok || len(items) != 2 {
		t.Fatalf("expected 2 followed-page results, got %#v", result)
	}
}

func TestScriptProcessorReturnsScalarContribution(t *testing.T) {
	d := newDispatcher()
	ec, _ := newCtx(t, map[string]string{"https://a.test/": listDoc}, "https://a.test/")
	steps := []query.Step{{
		Kind:   query.StepScript,
		Script: &query.ScriptStep{Code: "document.title"},
	}}
	result, err := d.RunSteps(context.Background(), ec, steps)
	if err != nil {
		t.Fatalf("RunSteps: %v", err)
	}
	items, ok := result.([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one scalar contribution, got %#v", result)
	}
	if items[0] != "document.title" {
		t.Errorf("got %#v", items[0])
	}
}
