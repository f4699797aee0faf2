// Package script evaluates post-call scripts written as text/template
// documents. The execution bindings are the template data:
//
//	{{ if ne .apiResponse.StatusCode 200 }}{{ fail "unexpected status" }}{{ end }}
//	{{ set "userId" (get "id") }}
package script

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/util"
	"github.com/loykin/apiverify/pkg/call"
)

// Setter is implemented by environments that accept values from scripts.
type Setter interface {
	Set(key, val string) error
}

// Template is a call.ScriptEvaluator backed by text/template.
type Template struct {
	// Funcs are added to the built-in functions and may override them.
	Funcs template.FuncMap
	// Validator screens scripts before parsing; nil uses NewValidator.
	Validator *Validator
}

func New() *Template { return &Template{} }

// Evaluate renders script with bindings as data. A fail/failf/assert call
// yields an assertion-class error; parse or execution problems are returned
// as plain errors.
func (t *Template) Evaluate(ctx context.Context, script string, bindings map[string]any) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := t.Check(script); err != nil {
		return err
	}
	var failure error
	funcs := t.builtins(bindings, &failure)
	for k, v := range t.Funcs {
		funcs[k] = v
	}

	tpl, err := template.New("post-call").Funcs(funcs).Option("missingkey=zero").Parse(script)
	if err != nil {
		return fmt.Errorf("script: parse: %w", err)
	}
	var out strings.Builder
	if err := tpl.Execute(&out, bindings); err != nil {
		if failure != nil {
			return failure
		}
		return fmt.Errorf("script: %w", err)
	}
	if s := strings.TrimSpace(out.String()); s != "" {
		common.GetLogger().WithComponent("script").Debug("post-call script output", "output", s)
	}
	return nil
}

// Check validates script without executing it.
func (t *Template) Check(script string) error {
	v := t.Validator
	if v == nil {
		v = NewValidator()
	}
	return v.Check(script, t.Funcs)
}

func (t *Template) builtins(bindings map[string]any, failure *error) template.FuncMap {
	fail := func(err error) (string, error) {
		*failure = err
		return "", err
	}
	resp, _ := bindings[call.BindingAPIResponse].(*call.Response)
	ec, _ := bindings[call.BindingContext].(*call.ExecutionContext)
	envr := bindings[call.BindingEnvironment]

	return template.FuncMap{
		"fail": func(args ...any) (string, error) {
			return fail(call.Failf("%s", strings.TrimSpace(fmt.Sprintln(args...))))
		},
		"failf": func(format string, args ...any) (string, error) {
			return fail(call.Failf(format, args...))
		},
		"assert": func(cond bool, msg string) (string, error) {
			if cond {
				return "", nil
			}
			return fail(call.Failf("%s", msg))
		},
		"json": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"get": func(path string) any {
			if resp == nil {
				return nil
			}
			res, ok := util.LookupJSON(resp.Body, path)
			if !ok {
				return nil
			}
			return res.Value()
		},
		"header": func(name string) string {
			if resp == nil {
				return ""
			}
			return resp.Header(name)
		},
		"status": func() int {
			if resp == nil {
				return 0
			}
			return resp.StatusCode
		},
		"set": func(key string, v any) (string, error) {
			s := util.ValueString(v)
			if ec != nil {
				ec.Values[key] = v
			}
			if st, ok := envr.(Setter); ok {
				if err := st.Set(key, s); err != nil {
					return "", err
				}
			}
			return "", nil
		},
	}
}
