package call

import (
	"context"

	"github.com/loykin/apiverify/pkg/transport"
)

// Environment resolves placeholders in request text.
type Environment interface {
	Process(text string) string
}

// StrictEnvironment is implemented by environments that can report a
// placeholder they failed to resolve. It is used for the request body.
type StrictEnvironment interface {
	ProcessStrict(text string) (string, error)
}

// AuthSource is implemented by environments carrying named auth values.
type AuthSource interface {
	AuthValue(name string) (string, bool)
}

type identityEnvironment struct{}

func (identityEnvironment) Process(text string) string { return text }

// ScriptEvaluator runs the post-call script with the execution bindings.
type ScriptEvaluator interface {
	Evaluate(ctx context.Context, script string, bindings map[string]any) error
}

// ScriptEvaluatorFunc adapts a function to ScriptEvaluator.
type ScriptEvaluatorFunc func(ctx context.Context, script string, bindings map[string]any) error

func (f ScriptEvaluatorFunc) Evaluate(ctx context.Context, script string, bindings map[string]any) error {
	return f(ctx, script, bindings)
}

// Script binding names.
const (
	BindingContext      = "context"
	BindingAPICall      = "apiCall"
	BindingAPIRequest   = "apiRequest"
	BindingHTTPRequest  = "httpRequest"
	BindingAPIResponse  = "apiResponse"
	BindingHTTPResponse = "httpResponse"
	BindingModel        = "model"
	BindingEnvironment  = "environment"
)

// CallDescription is the configured call as seen by hooks.
type CallDescription struct {
	Message        string
	Request        Request
	PostCallScript string
	Response       *Response // set once the response is available
}

// ExecutionContext holds the state of one execution. A fresh context is
// created for every Call.
type ExecutionContext struct {
	CallID            string
	Environment       Environment
	Call              *CallDescription
	Request           Request
	TransportRequest  transport.RequestHandle
	TransportResponse *transport.RawResponse
	Response          *Response
	Model             any
	Values            map[string]any
}

func newExecutionContext(callID string, c *core) *ExecutionContext {
	return &ExecutionContext{
		CallID:      callID,
		Environment: c.env,
		Call: &CallDescription{
			Message:        c.message,
			Request:        c.request,
			PostCallScript: c.script,
		},
		Request: c.request,
		Values:  map[string]any{},
	}
}

// Bindings returns the variables exposed to the post-call script.
func (c *ExecutionContext) Bindings() map[string]any {
	return map[string]any{
		BindingContext:      c,
		BindingAPICall:      c.Call,
		BindingAPIRequest:   c.Request,
		BindingHTTPRequest:  c.TransportRequest,
		BindingAPIResponse:  c.Response,
		BindingHTTPResponse: c.TransportResponse,
		BindingModel:        c.Model,
		BindingEnvironment:  c.Environment,
	}
}
