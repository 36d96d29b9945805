package queryfmt

import (
	"fmt"

	"github.com/drwebengine/drwe/internal/query"
)

func buildQuery(tree map[string]any) (*query.Query, error) {
	if err := checkKeys(tree, "$", "start_url", "pre_actions", "steps", "pagination"); err != nil {
		return nil, err
	}
	startURL, _ := tree["start_url"].(string)
	if startURL == "" {
		return nil, &SchemaError{Message: "start_url is required"}
	}
	q := &query.Query{StartURL: startURL}

	if raw, ok := tree["pre_actions"]; ok {
		actions, err := buildActions(raw, "$.pre_actions")
		if err != nil {
			return nil, err
		}
		q.PreActions = actions
	}

	rawSteps, ok := tree["steps"]
	if !ok {
		return nil, &SchemaError{Message: "steps is required"}
	}
	steps, err := buildSteps(rawSteps, "$.steps")
	if err != nil {
		return nil, err
	}
	q.Steps = steps

	if raw, ok := tree["pagination"]; ok {
		pg, err := buildPagination(raw, "$.pagination")
		if err != nil {
			return nil, err
		}
		q.Pagination = pg
	}
	return q, nil
}

func checkKeys(m map[string]any, path string, allowed ...string) error {
	set := make(map[string]bool, len(allowed))
	for _, k := range allowed {
		set[k] = true
	}
	for k := range m {
		if !set[k] {
			return &UnknownKeyError{Key: k, Path: path}
		}
	}
	return nil
}

func asList(v any, path string) ([]any, error) {
	lst, ok := v.([]any)
	if !ok {
		return nil, &SchemaError{Message: fmt.Sprintf("%s must be a list", path)}
	}
	return lst, nil
}

func asMap(v any, path string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &SchemaError{Message: fmt.Sprintf("%s must be an object", path)}
	}
	return m, nil
}

func asString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func asInt(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func asBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func buildSteps(raw any, path string) ([]query.Step, error) {
	lst, err := asList(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]query.Step, 0, len(lst))
	for i, item := range lst {
		m, err := asMap(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		step, err := buildStep(m, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

func buildStep(m map[string]any, path string) (query.Step, error) {
	kind, _ := m["type"].(string)
	switch query.StepKind(kind) {
	case query.StepExtract:
		return buildExtractStep(m, path)
	case query.StepConditional:
		return buildConditionalStep(m, path)
	case query.StepFollow:
		return buildFollowStep(m, path)
	case query.StepScript:
		return buildScriptStep(m, path)
	case "":
		return query.Step{}, &SchemaError{Message: fmt.Sprintf("%s missing type", path)}
	default:
		attrs := make(map[string]any, len(m))
		for k, v := range m {
			if k != "type" {
				attrs[k] = v
			}
		}
		return query.Step{Kind: query.StepPlugin, Plugin: &query.PluginStep{Kind: query.StepKind(kind), Attrs: attrs}}, nil
	}
}

func buildExtractStep(m map[string]any, path string) (query.Step, error) {
	if err := checkKeys(m, path, "type", "xpath", "name", "fields", "follow", "actions", "strict"); err != nil {
		return query.Step{}, err
	}
	fieldsRaw, err := asMap(orEmpty(m["fields"]), path+".fields")
	if err != nil {
		return query.Step{}, err
	}
	fields := make(map[string]query.Expression, len(fieldsRaw))
	for k, v := range fieldsRaw {
		s, _ := v.(string)
		fields[k] = query.Expression(s)
	}
	es := &query.ExtractStep{
		XPath:  query.Expression(asString(m, "xpath")),
		Name:   asString(m, "name"),
		Fields: fields,
		Strict: asBool(m, "strict"),
	}
	if raw, ok := m["actions"]; ok {
		actions, err := buildActions(raw, path+".actions")
		if err != nil {
			return query.Step{}, err
		}
		es.Actions = actions
	}
	if raw, ok := m["follow"]; ok {
		fm, err := asMap(raw, path+".follow")
		if err != nil {
			return query.Step{}, err
		}
		spec, err := buildFollowSpec(fm, path+".follow")
		if err != nil {
			return query.Step{}, err
		}
		es.Follow = spec
	}
	return query.Step{Kind: query.StepExtract, Extract: es}, nil
}

func orEmpty(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return v
}

func buildConditionalStep(m map[string]any, path string) (query.Step, error) {
	if err := checkKeys(m, path, "type", "condition", "then", "else"); err != nil {
		return query.Step{}, err
	}
	condRaw, err := asMap(m["condition"], path+".condition")
	if err != nil {
		return query.Step{}, err
	}
	cond, err := buildCondition(condRaw, path+".condition")
	if err != nil {
		return query.Step{}, err
	}
	cs := &query.ConditionalStep{Condition: cond}
	if raw, ok := m["then"]; ok {
		steps, err := buildSteps(raw, path+".then")
		if err != nil {
			return query.Step{}, err
		}
		cs.Then = steps
	}
	if raw, ok := m["else"]; ok {
		steps, err := buildSteps(raw, path+".else")
		if err != nil {
			return query.Step{}, err
		}
		cs.Else = steps
	}
	return query.Step{Kind: query.StepConditional, Conditional: cs}, nil
}

func buildFollowStep(m map[string]any, path string) (query.Step, error) {
	if err := checkKeys(m, path, "type", "link_expr", "steps", "max_depth", "detect_cycles", "follow_external", "name", "tag_source"); err != nil {
		return query.Step{}, err
	}
	spec, err := buildFollowSpec(m, path)
	if err != nil {
		return query.Step{}, err
	}
	return query.Step{Kind: query.StepFollow, Follow: &query.FollowStep{Spec: *spec}}, nil
}

func buildFollowSpec(m map[string]any, path string) (*query.FollowSpec, error) {
	spec := &query.FollowSpec{
		LinkExpr:       query.Expression(asString(m, "link_expr")),
		MaxDepth:       asInt(m, "max_depth"),
		DetectCycles:   true,
		FollowExternal: asBool(m, "follow_external"),
		Name:           asString(m, "name"),
		TagSource:      asBool(m, "tag_source"),
	}
	if v, ok := m["detect_cycles"]; ok {
		if b, ok := v.(bool); ok {
			spec.DetectCycles = b
		}
	}
	if spec.MaxDepth <= 0 {
		spec.MaxDepth = 3
	}
	if raw, ok := m["steps"]; ok {
		steps, err := buildSteps(raw, path+".steps")
		if err != nil {
			return nil, err
		}
		spec.Steps = steps
	}
	return spec, nil
}

func buildScriptStep(m map[string]any, path string) (query.Step, error) {
	if err := checkKeys(m, path, "type", "script", "wait_for", "timeout_ms", "return_json"); err != nil {
		return query.Step{}, err
	}
	ss := &query.ScriptStep{
		Code:       asString(m, "script"),
		WaitFor:    asString(m, "wait_for"),
		TimeoutMs:  asInt(m, "timeout_ms"),
		ReturnJSON: asBool(m, "return_json"),
	}
	return query.Step{Kind: query.StepScript, Script: ss}, nil
}

func buildLocator(m map[string]any) query.Locator {
	return query.Locator{
		XPath:    query.Expression(asString(m, "xpath")),
		Selector: asString(m, "selector"),
	}
}

func buildCondition(m map[string]any, path string) (query.Condition, error) {
	if err := checkKeys(m, path, "type", "xpath", "selector", "text", "count"); err != nil {
		return query.Condition{}, err
	}
	kind, _ := m["type"].(string)
	return query.Condition{
		Kind:    query.ConditionKind(kind),
		Locator: buildLocator(m),
		Text:    asString(m, "text"),
		Count:   asInt(m, "count"),
	}, nil
}

func buildActions(raw any, path string) ([]query.Action, error) {
	lst, err := asList(raw, path)
	if err != nil {
		return nil, err
	}
	out := make([]query.Action, 0, len(lst))
	for i, item := range lst {
		m, err := asMap(item, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		a, err := buildAction(m, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func buildAction(m map[string]any, path string) (query.Action, error) {
	if err := checkKeys(m, path, "type", "xpath", "selector", "direction", "pixels", "value", "until", "text", "timeout_ms", "code", "wait_for"); err != nil {
		return query.Action{}, err
	}
	kind, _ := m["type"].(string)
	return query.Action{
		Kind:      query.ActionKind(kind),
		Locator:   buildLocator(m),
		Direction: asString(m, "direction"),
		Pixels:    asInt(m, "pixels"),
		Value:     asString(m, "value"),
		Until:     query.WaitUntil(asString(m, "until")),
		Text:      asString(m, "text"),
		TimeoutMs: asInt(m, "timeout_ms"),
		Code:      asString(m, "code"),
		WaitFor:   asString(m, "wait_for"),
	}, nil
}

func buildPagination(raw any, path string) (*query.Pagination, error) {
	m, err := asMap(raw, path)
	if err != nil {
		return nil, err
	}
	if err := checkKeys(m, path, "link_expr", "max_pages"); err != nil {
		return nil, err
	}
	maxPages := asInt(m, "max_pages")
	if maxPages <= 0 {
		maxPages = 1
	}
	return &query.Pagination{
		LinkExpr: query.Expression(asString(m, "link_expr")),
		MaxPages: maxPages,
	}, nil
}
