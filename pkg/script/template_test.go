package script

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/env"
)

func bindings(status int, body string, e call.Environment) (map[string]any, *call.ExecutionContext) {
	resp := &call.Response{StatusCode: status, ContentType: "application/json", Body: []byte(body),
		Headers: []call.Header{{Name: "X-Req", Value: "r1"}}}
	ec := &call.ExecutionContext{Environment: e, Response: resp, Values: map[string]any{}}
	return ec.Bindings(), ec
}

func TestTemplate_PassesAndSetsValues(t *testing.T) {
	e := env.New()
	b, ec := bindings(200, `{"id":42,"name":"Ana"}`, e)
	script := `{{ if ne (status) 200 }}{{ fail "bad status" }}{{ end }}{{ set "userId" (get "id") }}{{ set "req" (header "X-Req") }}`
	if err := New().Evaluate(context.Background(), script, b); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v, ok := e.Lookup("userId"); !ok || v != "42" {
		t.Fatalf("env userId = %q %v", v, ok)
	}
	if ec.Values["req"] != "r1" {
		t.Fatalf("context values = %v", ec.Values)
	}
}

func TestTemplate_FailIsAssertion(t *testing.T) {
	b, _ := bindings(500, `{}`, env.New())
	err := New().Evaluate(context.Background(), `{{ if ne .apiResponse.StatusCode 200 }}{{ failf "status %d" .apiResponse.StatusCode }}{{ end }}`, b)
	if !errors.Is(err, call.ErrAssertion) || err.Error() != "status 500" {
		t.Fatalf("expected assertion failure, got %v", err)
	}
	err = New().Evaluate(context.Background(), `{{ assert true "fine" }}{{ assert false "nope" }}`, b)
	if !errors.Is(err, call.ErrAssertion) {
		t.Fatalf("assert should fail: %v", err)
	}
}

func TestTemplate_ParseErrorIsNotAssertion(t *testing.T) {
	b, _ := bindings(200, `{}`, env.New())
	err := New().Evaluate(context.Background(), `{{ if }}`, b)
	if err == nil || errors.Is(err, call.ErrAssertion) {
		t.Fatalf("expected plain parse error, got %v", err)
	}
}

func TestTemplate_CustomFuncsAndCanceledContext(t *testing.T) {
	b, _ := bindings(200, `{}`, env.New())
	tpl := &Template{Funcs: map[string]any{"boom": func() (string, error) { return "", errors.New("boom") }}}
	if err := tpl.Evaluate(context.Background(), `{{ boom }}`, b); err == nil || errors.Is(err, call.ErrAssertion) {
		t.Fatalf("expected plain error, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := New().Evaluate(ctx, `ok`, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

func TestTemplate_AsCallHook(t *testing.T) {
	var _ call.ScriptEvaluator = New()
}

func TestValidator_RejectsUnsafeScripts(t *testing.T) {
	for _, s := range []string{
		`{{ exec "rm" }}`,
		`{{ template "other" . }}`,
		`{{ define "x" }}y{{ end }}`,
		`token=${SECRET}`,
		`$(whoami)`,
		`{{ get "../etc" }}`,
	} {
		if err := Check(s); err == nil {
			t.Errorf("Check(%q) = nil", s)
		}
	}
	deep := strings.Repeat("{{ if true }}", 12) + strings.Repeat("{{ end }}", 12)
	if err := Check(deep); !errors.Is(err, ErrExcessiveDepth) {
		t.Fatalf("deep script: %v", err)
	}
	if err := Check(`{{ if ne (status) 200 }}{{ fail "x" }}{{ end }}{{ set "id" (get "id") }}`); err != nil {
		t.Fatalf("valid script rejected: %v", err)
	}
	tpl := &Template{Funcs: map[string]any{"upper": strings.ToUpper}}
	if err := tpl.Check(`{{ upper "a" }}`); err != nil {
		t.Fatalf("custom func rejected: %v", err)
	}
	b, _ := bindings(200, `{}`, env.New())
	if err := New().Evaluate(context.Background(), `{{ template "x" }}`, b); !errors.Is(err, ErrForbidden) {
		t.Fatalf("evaluate should screen scripts: %v", err)
	}
}
