package call

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/constants"
	"github.com/loykin/apiverify/pkg/transport"
)

// engine drives one execution of the pipeline. It is shared by all stage views
// of a builder bound to T, and is not safe for concurrent Call.
type engine[T any] struct {
	core       *core
	hint       DecodingHint
	assertions Assertions[T]
	callback   Callback[T]

	execCtx       *ExecutionContext
	model         T
	modelResponse *ModelResponse[T]
	outcome       Outcome
	err           error
}

func (e *engine[T]) run(ctx context.Context) *PostExecution[T] {
	e.call(ctx)
	return &PostExecution[T]{eng: e}
}

func (e *engine[T]) reset() {
	var zero T
	e.execCtx = nil
	e.model = zero
	e.modelResponse = nil
	e.outcome = OutcomePending
	e.err = nil
}

func (e *engine[T]) call(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	e.reset()

	pub := e.core.publisher
	callID := uuid.NewString()
	desc := e.core.description()
	logger := e.core.log().WithComponent("engine").WithCall(callID, desc)
	start := time.Now()

	defer func() {
		method, url := e.requestLine()
		pub.Finished(FinishedEvent{
			CallID:      callID,
			Description: desc,
			Time:        time.Now(),
			Method:      method,
			URL:         url,
			Response:    e.view(),
			Outcome:     e.outcome,
			Err:         e.err,
			Duration:    time.Since(start),
		})
	}()

	started := false
	notifyStarted := func() {
		if started {
			return
		}
		started = true
		pub.Started(StartedEvent{CallID: callID, Description: desc, Time: time.Now()})
	}

	err := e.execute(ctx, callID, logger, notifyStarted)
	if !started {
		notifyStarted()
	}

	e.err = err
	e.outcome = Classify(err)
	switch e.outcome {
	case OutcomePassed:
		logger.Debug("call passed", "duration", time.Since(start))
	case OutcomeFailed:
		logger.Warn("call failed", "error", err)
		pub.Failed(FailedEvent{CallID: callID, Description: desc, Time: time.Now(), Response: e.view(), Err: err})
	default:
		logger.Warn("call errored", "error", err)
		pub.Errored(ErroredEvent{CallID: callID, Description: desc, Time: time.Now(), Response: e.view(), Err: err})
	}
}

func (e *engine[T]) requestLine() (string, string) {
	if e.execCtx != nil && e.execCtx.TransportRequest != nil {
		return e.execCtx.TransportRequest.Method(), e.execCtx.TransportRequest.URL()
	}
	return string(e.core.request.Method()), e.core.request.URL()
}

// view returns the model response as an interface, keeping nil untyped.
func (e *engine[T]) view() ResponseView {
	if e.modelResponse == nil {
		return nil
	}
	return e.modelResponse
}

func (e *engine[T]) execute(ctx context.Context, callID string, logger *common.Logger, started func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()

	ec := newExecutionContext(callID, e.core)
	e.execCtx = ec

	handle, err := e.prepare(ctx, ec, logger)
	if err != nil {
		return err
	}

	started()

	raw, err := handle.Execute()
	if err != nil {
		return &TransportError{Method: handle.Method(), URL: handle.URL(), Err: err}
	}
	ec.TransportResponse = raw

	resp := newResponse(raw)
	ec.Response = resp
	ec.Call.Response = resp
	logger.Debug("response received", "status_code", resp.StatusCode, "content_type", resp.ContentType, "response_size", len(resp.Body))

	var model T
	if !e.hint.IsZero() {
		v, err := e.core.decoders.Decode(resp, e.hint)
		if err != nil {
			return err
		}
		model = asModel[T](v, e.hint)
	}
	ec.Model = model
	e.model = model
	e.modelResponse = NewModelResponse(resp, model)

	if e.assertions != nil && !e.core.suppressAssertions {
		if err := e.assertions(resp.StatusCode, e.modelResponse, model); err != nil {
			return err
		}
	}
	if e.callback != nil {
		if err := e.callback(resp.StatusCode, e.modelResponse, model); err != nil {
			return err
		}
	}
	return e.runScript(ctx, ec)
}

// asModel converts an accepted decoder value to T. Assignable values of a
// different named type go through reflect.
func asModel[T any](v any, hint DecodingHint) T {
	if m, ok := v.(T); ok {
		return m
	}
	return reflect.ValueOf(v).Convert(hint.Type).Interface().(T)
}

// prepare resolves placeholders and assembles the transport request.
func (e *engine[T]) prepare(ctx context.Context, ec *ExecutionContext, logger *common.Logger) (transport.RequestHandle, error) {
	req := e.core.request
	env := e.core.env

	url := env.Process(req.URL())
	handle, err := e.core.transport.Dispatch(ctx, string(req.Method()), url)
	if err != nil {
		return nil, &TransportError{Method: string(req.Method()), URL: url, Err: err}
	}
	ec.TransportRequest = handle

	hasAuthorization := false
	for _, h := range req.Headers() {
		if strings.EqualFold(h.Name, constants.HeaderAuthorization) {
			hasAuthorization = true
		}
		handle.Header(h.Name, env.Process(h.Value))
	}
	if name := req.AuthName(); name != "" && !hasAuthorization {
		src, ok := env.(AuthSource)
		if !ok {
			logger.Warn("environment has no auth values", "auth_name", name)
		} else if v, ok := src.AuthValue(name); ok && v != "" {
			handle.Header(constants.HeaderAuthorization, v)
		} else {
			logger.Warn("auth value not found", "auth_name", name)
		}
	}
	for _, q := range req.Queries() {
		handle.QueryParam(q.Name, env.Process(q.Value))
	}
	if body, ok := req.Body(); ok && req.Method().AllowsBody() {
		rendered, err := processBody(env, body)
		if err != nil {
			return nil, err
		}
		handle.Body(rendered)
	}

	logger.WithRequest(handle.Method(), handle.URL()).Debug("dispatching request",
		"headers", len(req.Headers()), "queries", len(req.Queries()))
	return handle, nil
}

func processBody(env Environment, body string) (string, error) {
	if strict, ok := env.(StrictEnvironment); ok {
		return strict.ProcessStrict(body)
	}
	return env.Process(body), nil
}

func (e *engine[T]) runScript(ctx context.Context, ec *ExecutionContext) error {
	if e.core.evaluator == nil || strings.TrimSpace(e.core.script) == "" {
		return nil
	}
	return e.core.evaluator.Evaluate(ctx, e.core.script, ec.Bindings())
}
