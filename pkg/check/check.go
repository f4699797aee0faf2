// Package check provides reusable assertions for call.Bind stages.
//
// Every failure is assertion-class, so a call rejected by a check ends as
// Failed rather than Errored.
package check

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/loykin/apiverify/internal/util"
	"github.com/loykin/apiverify/pkg/call"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/assert"
)

// Status passes when the status code is one of codes. No codes means any
// 2xx status.
func Status[T any](codes ...int) call.Assertions[T] {
	return func(status int, _ *call.ModelResponse[T], _ T) error {
		if len(codes) == 0 {
			if status < 200 || status > 299 {
				return call.Failf("status %d is not successful", status)
			}
			return nil
		}
		if !slices.Contains(codes, status) {
			return call.Failf("status %d not in allowed set %v", status, codes)
		}
		return nil
	}
}

// JSONPath compares the value at path in the response body with want. Paths
// may be gjson paths or simple JSONPath expressions. Numbers compare by value
// and scalars also match on their string form ("42" matches 42).
func JSONPath[T any](path string, want any) call.Assertions[T] {
	return func(_ int, resp *call.ModelResponse[T], _ T) error {
		res, ok := util.LookupJSON(resp.Response().Body, path)
		if !ok {
			return call.Failf("json path %q not found", path)
		}
		got := res.Value()
		if assert.ObjectsAreEqualValues(want, got) || util.ValueString(want) == util.ValueString(got) {
			return nil
		}
		return call.Failf("json path %q: expected %v, got %v", path, util.ValueString(want), util.ValueString(got))
	}
}

// JSONPathExists passes when path resolves in the response body.
func JSONPathExists[T any](path string) call.Assertions[T] {
	return func(_ int, resp *call.ModelResponse[T], _ T) error {
		if _, ok := util.LookupJSON(resp.Response().Body, path); !ok {
			return call.Failf("json path %q not found", path)
		}
		return nil
	}
}

// Header compares the first value of the named header with want. An empty
// want only requires the header to be present.
func Header[T any](name, want string) call.Assertions[T] {
	return func(_ int, resp *call.ModelResponse[T], _ T) error {
		vals := resp.Response().Values(name)
		if len(vals) == 0 {
			return call.Failf("header %q missing", name)
		}
		if want != "" && !slices.Contains(vals, want) {
			return call.Failf("header %q: expected %q, got %q", name, want, strings.Join(vals, ", "))
		}
		return nil
	}
}

// Schema compiles a JSON schema document and returns an assertion validating
// the response body against it.
func Schema[T any](schema string) (call.Assertions[T], error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return func(_ int, resp *call.ModelResponse[T], _ T) error {
		var doc any
		if err := json.Unmarshal(resp.Response().Body, &doc); err != nil {
			return call.Failf("schema: response is not JSON: %v", err)
		}
		if err := compiled.Validate(doc); err != nil {
			var ve *jsonschema.ValidationError
			if errors.As(err, &ve) {
				return call.Failf("schema: %s", strings.Join(validationMessages(ve), "; "))
			}
			return call.AsAssertion(err)
		}
		return nil
	}, nil
}

// MustSchema is like Schema but panics when the schema does not compile.
func MustSchema[T any](schema string) call.Assertions[T] {
	a, err := Schema[T](schema)
	if err != nil {
		panic(err)
	}
	return a
}

func validationMessages(err *jsonschema.ValidationError) []string {
	var out []string
	if err.Message != "" && len(err.Causes) == 0 {
		loc := err.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		out = append(out, loc+": "+err.Message)
	}
	for _, c := range err.Causes {
		out = append(out, validationMessages(c)...)
	}
	return out
}

// All runs every assertion and reports all assertion failures together. A
// non-assertion error stops the run and is returned as is.
func All[T any](as ...call.Assertions[T]) call.Assertions[T] {
	return func(status int, resp *call.ModelResponse[T], model T) error {
		var failures []error
		for _, a := range as {
			if a == nil {
				continue
			}
			err := a(status, resp, model)
			if err == nil {
				continue
			}
			if !errors.Is(err, call.ErrAssertion) {
				return err
			}
			failures = append(failures, err)
		}
		if len(failures) == 0 {
			return nil
		}
		return call.AsAssertion(errors.Join(failures...))
	}
}

// collector satisfies assert.TestingT and records failure messages.
type collector struct {
	msgs []string
}

func (c *collector) Errorf(format string, args ...any) {
	c.msgs = append(c.msgs, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Expect lets testify assert functions drive an assertion:
//
//	check.Expect(func(a *assert.Assertions, status int, _ *call.ModelResponse[User], u User) {
//		a.Equal(200, status)
//		a.Equal("Ana", u.Name)
//	})
func Expect[T any](fn func(a *assert.Assertions, status int, resp *call.ModelResponse[T], model T)) call.Assertions[T] {
	return func(status int, resp *call.ModelResponse[T], model T) error {
		c := &collector{}
		fn(assert.New(c), status, resp, model)
		if len(c.msgs) == 0 {
			return nil
		}
		return call.Failf("%s", strings.Join(c.msgs, "\n"))
	}
}
