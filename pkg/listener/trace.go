package listener

import (
	"context"
	"sync"

	"github.com/loykin/apiverify/pkg/call"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/loykin/apiverify/pkg/listener"

// Trace opens one span per execution, from CallStarted to CallFinished.
type Trace struct {
	parent context.Context
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTrace creates spans as children of ctx. A nil provider uses the global one.
func NewTrace(ctx context.Context, tp trace.TracerProvider) *Trace {
	if ctx == nil {
		ctx = context.Background()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Trace{parent: ctx, tracer: tp.Tracer(tracerName), spans: map[string]trace.Span{}}
}

func (t *Trace) CallStarted(e call.StartedEvent) {
	_, span := t.tracer.Start(t.parent, e.Description,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(e.Time),
		trace.WithAttributes(attribute.String("apiverify.call_id", e.CallID)))
	t.mu.Lock()
	t.spans[e.CallID] = span
	t.mu.Unlock()
}

func (t *Trace) span(id string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans[id]
}

func (t *Trace) CallFailed(e call.FailedEvent) {
	if s := t.span(e.CallID); s != nil {
		s.AddEvent("assertion failed", trace.WithAttributes(attribute.String("error", e.Err.Error())))
	}
}

func (t *Trace) CallErrored(e call.ErroredEvent) {
	if s := t.span(e.CallID); s != nil {
		s.RecordError(e.Err)
	}
}

func (t *Trace) CallFinished(e call.FinishedEvent) {
	t.mu.Lock()
	s := t.spans[e.CallID]
	delete(t.spans, e.CallID)
	t.mu.Unlock()
	if s == nil {
		return
	}
	s.SetAttributes(
		attribute.String("http.request.method", e.Method),
		attribute.String("url.full", e.URL),
		attribute.String("apiverify.outcome", e.Outcome.String()),
	)
	if status := statusOf(e.Response); status > 0 {
		s.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if e.Outcome == call.OutcomePassed {
		s.SetStatus(codes.Ok, "")
	} else if e.Err != nil {
		s.SetStatus(codes.Error, e.Err.Error())
	}
	s.End(trace.WithTimestamp(e.Time))
}
