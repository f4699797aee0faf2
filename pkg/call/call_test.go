package call_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/decode"
	"github.com/loykin/apiverify/pkg/env"
	"github.com/loykin/apiverify/pkg/transport"
)

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// eventLog records listener notifications as short tags.
type eventLog struct {
	kinds    []string
	failed   []call.FailedEvent
	errored  []call.ErroredEvent
	finished []call.FinishedEvent
	started  []call.StartedEvent
}

func (l *eventLog) CallStarted(e call.StartedEvent) {
	l.kinds = append(l.kinds, "started")
	l.started = append(l.started, e)
}
func (l *eventLog) CallFailed(e call.FailedEvent) {
	l.kinds = append(l.kinds, "failed")
	l.failed = append(l.failed, e)
}
func (l *eventLog) CallErrored(e call.ErroredEvent) {
	l.kinds = append(l.kinds, "errored")
	l.errored = append(l.errored, e)
}
func (l *eventLog) CallFinished(e call.FinishedEvent) {
	l.kinds = append(l.kinds, "finished")
	l.finished = append(l.finished, e)
}

func (l *eventLog) sequence() string { return strings.Join(l.kinds, ",") }

func jsonServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTransport() transport.Transport {
	return transport.New(transport.Options{Timeout: 5 * time.Second})
}

func TestCall_GetUserPasses(t *testing.T) {
	srv := jsonServer(t, `{"id":42,"name":"Ana"}`)
	log := &eventLog{}

	b := call.New("fetch user", call.Get(srv.URL+"/users/42"),
		call.WithTransport(newTransport()), call.WithDecoders(decode.Default()...))
	b.RegisterListener(log)

	post := call.Bind[User](b).
		WithAssertions(func(status int, resp *call.ModelResponse[User], model User) error {
			if model.ID != 42 {
				return call.Failf("expected id 42, got %d", model.ID)
			}
			return nil
		}).
		Call(context.Background())

	if got := log.sequence(); got != "started,finished" {
		t.Fatalf("events = %s", got)
	}
	if post.Outcome() != call.OutcomePassed || post.Err() != nil {
		t.Fatalf("outcome = %s err = %v", post.Outcome(), post.Err())
	}
	if post.Model() != (User{ID: 42, Name: "Ana"}) {
		t.Fatalf("model = %+v", post.Model())
	}
	fin := log.finished[0]
	if fin.Response == nil || fin.Response.StatusCode() != 200 {
		t.Fatalf("finished must carry the model response, got %v", fin.Response)
	}
	if fin.Response.ModelValue().(User).Name != "Ana" {
		t.Fatalf("finished model = %v", fin.Response.ModelValue())
	}
	if fin.Outcome != call.OutcomePassed {
		t.Fatalf("finished outcome = %s", fin.Outcome)
	}
	want := "GET " + srv.URL + "/users/42 - fetch user"
	if log.started[0].Description != want || fin.Description != want {
		t.Fatalf("description = %q", log.started[0].Description)
	}
	if log.started[0].CallID == "" || log.started[0].CallID != fin.CallID {
		t.Fatalf("call ids must match across one execution")
	}
}

func TestCall_TypeMismatchFailsNamingModel(t *testing.T) {
	srv := jsonServer(t, `{"id":"oops","name":"Ana"}`)
	log := &eventLog{}

	post := call.Bind[User](call.New("fetch user", call.Get(srv.URL+"/users/42"),
		call.WithTransport(newTransport()), call.WithDecoders(decode.Default()...), call.WithListeners(log))).
		Call(context.Background())

	if got := log.sequence(); got != "started,failed,finished" {
		t.Fatalf("events = %s", got)
	}
	f := log.failed[0]
	if f.Response != nil {
		t.Fatalf("no model response expected on decode failure")
	}
	if !strings.Contains(f.Err.Error(), "User") {
		t.Fatalf("failure should name the model type: %v", f.Err)
	}
	var de *call.DecodeError
	if !errors.As(post.Err(), &de) || post.Outcome() != call.OutcomeFailed {
		t.Fatalf("expected DecodeError, got %v (%s)", post.Err(), post.Outcome())
	}
	if post.Response() != nil {
		t.Fatalf("response should be nil")
	}
}

func TestCall_NoMatchingDecoderFails(t *testing.T) {
	srv := jsonServer(t, `{}`)
	log := &eventLog{}
	absent := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) { return nil, false, nil })

	call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(absent), call.WithListeners(log))).Call(context.Background())

	if got := log.sequence(); got != "started,failed,finished" {
		t.Fatalf("events = %s", got)
	}
	if log.finished[0].Response != nil {
		t.Fatalf("finished should carry no model response")
	}
}

func TestCall_TransportErrorSkipsAssertions(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var ran atomic.Int32
	hook := call.ScriptEvaluatorFunc(func(context.Context, string, map[string]any) error {
		ran.Add(1)
		return nil
	})
	log := &eventLog{}
	post := call.Bind[User](call.New("down", call.Get(url), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithListeners(log),
		call.WithEvaluator(hook), call.WithPostCallScript("anything"))).
		WithAssertions(func(int, *call.ModelResponse[User], User) error { ran.Add(1); return nil }).
		ThenDo(func(int, *call.ModelResponse[User], User) error { ran.Add(1); return nil }).
		Call(context.Background())

	if got := log.sequence(); got != "started,errored,finished" {
		t.Fatalf("events = %s", got)
	}
	if ran.Load() != 0 {
		t.Fatalf("assertions, callback or hook ran %d times", ran.Load())
	}
	var te *call.TransportError
	if !errors.As(post.Err(), &te) || te.Method != http.MethodGet {
		t.Fatalf("expected TransportError, got %v", post.Err())
	}
	if post.Outcome() != call.OutcomeErrored || log.finished[0].Outcome != call.OutcomeErrored {
		t.Fatalf("outcome = %s", post.Outcome())
	}
}

func TestCall_UnboundSkipsDecoding(t *testing.T) {
	srv := jsonServer(t, `not json at all`)
	explode := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) {
		panic("decoder must not run without a model type")
	})
	log := &eventLog{}
	post := call.New("raw", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(explode), call.WithListeners(log)).Call(context.Background())

	if got := log.sequence(); got != "started,finished" {
		t.Fatalf("events = %s, err = %v", got, post.Err())
	}
	if post.Model() != nil {
		t.Fatalf("model = %v", post.Model())
	}
	if post.Response().Response().Text() != "not json at all" {
		t.Fatalf("raw response not kept")
	}
}

func TestCall_DecoderChainIsFirstMatch(t *testing.T) {
	srv := jsonServer(t, `{}`)
	var d3 atomic.Bool
	d1 := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) { return nil, false, nil })
	d2 := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) {
		return User{ID: 7, Name: "V"}, true, nil
	})
	d3fn := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) {
		d3.Store(true)
		return nil, false, errors.New("must not be invoked")
	})

	b := call.New("", call.Get(srv.URL), call.WithTransport(newTransport()))
	b.RegisterDecoder(d1).RegisterDecoder(d2).RegisterDecoder(d3fn)
	post := call.Bind[User](b).Call(context.Background())

	if post.Model() != (User{ID: 7, Name: "V"}) || post.Err() != nil {
		t.Fatalf("model = %+v err = %v", post.Model(), post.Err())
	}
	if d3.Load() {
		t.Fatalf("third decoder was invoked")
	}
}

func TestCall_DecoderErrorsAreSkipped(t *testing.T) {
	srv := jsonServer(t, `{}`)
	broken := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) {
		return nil, false, errors.New("boom")
	})
	ok := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) { return User{ID: 1}, true, nil })

	post := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(broken, ok))).Call(context.Background())
	if post.Outcome() != call.OutcomePassed || post.Model().ID != 1 {
		t.Fatalf("outcome = %s model = %+v", post.Outcome(), post.Model())
	}
}

func TestCall_WrongTypeFromDecoderFails(t *testing.T) {
	srv := jsonServer(t, `{}`)
	wrong := call.DecoderFunc(func(*call.Response, call.DecodingHint) (any, bool, error) { return "text", true, nil })

	post := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(wrong))).Call(context.Background())
	var de *call.DecodeError
	if !errors.As(post.Err(), &de) || de.Got == nil || de.Got.Kind().String() != "string" {
		t.Fatalf("expected DecodeError with Got=string, got %v", post.Err())
	}
	if post.Outcome() != call.OutcomeFailed {
		t.Fatalf("outcome = %s", post.Outcome())
	}
}

func TestCall_RerunReplacesResults(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":%d}`, n.Add(1))
	}))
	defer srv.Close()
	log := &eventLog{}

	post := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithListeners(log))).Call(context.Background())
	first := post.Response()
	firstCtx := post.Context()
	if post.Model().ID != 1 {
		t.Fatalf("first model = %+v", post.Model())
	}

	again := post.Call(context.Background())
	if got := log.sequence(); got != "started,finished,started,finished" {
		t.Fatalf("events = %s", got)
	}
	if again.Model().ID != 2 || post.Model().ID != 2 {
		t.Fatalf("second run did not replace the model: %+v", post.Model())
	}
	if again.Response() == first || again.Context() == firstCtx {
		t.Fatalf("model response and context must be replaced")
	}
	if log.started[0].CallID == log.started[1].CallID {
		t.Fatalf("each execution needs its own call id")
	}
}

func TestCall_RerunAfterPassClearsResultsOnDecodeFailure(t *testing.T) {
	var n atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if n.Add(1) == 1 {
			_, _ = io.WriteString(w, `{"id":7,"name":"Ana"}`)
			return
		}
		_, _ = io.WriteString(w, `{"id":"oops"}`)
	}))
	defer srv.Close()
	log := &eventLog{}

	post := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithListeners(log))).Call(context.Background())
	if !post.Passed() || post.Model().ID != 7 || post.Response() == nil {
		t.Fatalf("first run: outcome=%v model=%+v", post.Outcome(), post.Model())
	}

	post.Call(context.Background())
	if got := log.sequence(); got != "started,finished,started,failed,finished" {
		t.Fatalf("events = %s", got)
	}
	if post.Outcome() != call.OutcomeFailed {
		t.Fatalf("second outcome = %v", post.Outcome())
	}
	if post.Model() != (User{}) {
		t.Fatalf("model should be reset, got %+v", post.Model())
	}
	if post.Response() != nil {
		t.Fatalf("model response should be nil after a decode failure")
	}
	var decErr *call.DecodeError
	if !errors.As(post.Err(), &decErr) {
		t.Fatalf("expected decode error, got %v", post.Err())
	}
	if log.finished[1].Response != nil {
		t.Fatalf("finished event should carry no response")
	}
}

func TestCall_SuppressedAssertionsStillRunCallbackAndHook(t *testing.T) {
	srv := jsonServer(t, `{"id":3}`)
	var asserted, called, hooked atomic.Bool
	hook := call.ScriptEvaluatorFunc(func(_ context.Context, script string, b map[string]any) error {
		hooked.Store(script == "check")
		return nil
	})

	b := call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithEvaluator(hook), call.WithPostCallScript("check"))
	b.SetSuppressAssertions(true)
	post := call.Bind[User](b).
		WithAssertions(func(int, *call.ModelResponse[User], User) error { asserted.Store(true); return call.Failf("nope") }).
		ThenDo(func(status int, _ *call.ModelResponse[User], m User) error {
			called.Store(status == 200 && m.ID == 3)
			return nil
		}).
		Call(context.Background())

	if asserted.Load() {
		t.Fatalf("assertions ran while suppressed")
	}
	if !called.Load() || !hooked.Load() {
		t.Fatalf("callback=%v hook=%v", called.Load(), hooked.Load())
	}
	if !post.Passed() {
		t.Fatalf("outcome = %s err = %v", post.Outcome(), post.Err())
	}
}

func TestCall_CallbackErrorClassification(t *testing.T) {
	srv := jsonServer(t, `{"id":1}`)
	cases := []struct {
		name string
		cb   call.Callback[User]
		want call.Outcome
	}{
		{"assertion error", func(int, *call.ModelResponse[User], User) error { return call.Failf("bad") }, call.OutcomeFailed},
		{"wrapped assertion", func(int, *call.ModelResponse[User], User) error {
			return fmt.Errorf("step: %w", call.AsAssertion(errors.New("x")))
		}, call.OutcomeFailed},
		{"plain error", func(int, *call.ModelResponse[User], User) error { return errors.New("db down") }, call.OutcomeErrored},
		{"panic", func(int, *call.ModelResponse[User], User) error { panic("bug") }, call.OutcomeErrored},
		{"panic with failure", func(int, *call.ModelResponse[User], User) error { panic(call.Failf("bad")) }, call.OutcomeFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			log := &eventLog{}
			post := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
				call.WithDecoders(decode.Default()...), call.WithListeners(log))).
				ThenDo(tc.cb).Call(context.Background())
			if post.Outcome() != tc.want {
				t.Fatalf("outcome = %s, want %s (err %v)", post.Outcome(), tc.want, post.Err())
			}
			if n := len(log.kinds); n != 3 || log.kinds[n-1] != "finished" {
				t.Fatalf("events = %s", log.sequence())
			}
			if post.Response() == nil {
				t.Fatalf("model response computed before callback must be kept")
			}
		})
	}
}

func TestCall_ScriptBindingsAndFailure(t *testing.T) {
	srv := jsonServer(t, `{"id":5}`)
	var bindings map[string]any
	hook := call.ScriptEvaluatorFunc(func(_ context.Context, _ string, b map[string]any) error {
		bindings = b
		return call.Failf("script rejected")
	})
	e := env.New()
	post := call.Bind[User](call.New("s", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithEnvironment(e),
		call.WithEvaluator(hook), call.WithPostCallScript("x"))).Call(context.Background())

	if post.Outcome() != call.OutcomeFailed {
		t.Fatalf("outcome = %s", post.Outcome())
	}
	for _, k := range []string{"context", "apiCall", "apiRequest", "httpRequest", "apiResponse", "httpResponse", "model", "environment"} {
		if _, ok := bindings[k]; !ok {
			t.Fatalf("missing binding %q", k)
		}
	}
	if bindings["model"].(User).ID != 5 || bindings["environment"] != call.Environment(e) {
		t.Fatalf("unexpected bindings %v", bindings)
	}
	desc := bindings["apiCall"].(*call.CallDescription)
	if desc.Response == nil || desc.Response.StatusCode != 200 || desc.PostCallScript != "x" {
		t.Fatalf("call description = %+v", desc)
	}
}

func TestCall_ResolvesPlaceholdersAndAuth(t *testing.T) {
	var got *http.Request
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	e := env.New()
	_ = e.Set("base", srv.URL)
	_ = e.Set("id", "42")
	_ = e.Set("name", "Ana")
	e.SetAuth("api", env.Str("Bearer t0k"))

	req := call.Put("{{.env.base}}/users/{{.env.id}}", `{"name":"{{.env.name}}"}`).
		WithHeader("X-Trace", "{{.env.id}}").
		WithQuery("q", "{{.env.name}}").
		WithAuth("api")
	post := call.New("update", req, call.WithTransport(newTransport()), call.WithEnvironment(e)).Call(context.Background())

	if !post.Passed() {
		t.Fatalf("outcome = %s err = %v", post.Outcome(), post.Err())
	}
	if got.URL.Path != "/users/42" || got.URL.Query().Get("q") != "Ana" || got.Header.Get("X-Trace") != "42" {
		t.Fatalf("placeholders not resolved: %s %v", got.URL, got.Header)
	}
	if got.Header.Get("Authorization") != "Bearer t0k" {
		t.Fatalf("auth not injected: %q", got.Header.Get("Authorization"))
	}
	if body != `{"name":"Ana"}` {
		t.Fatalf("body = %q", body)
	}
}

func TestCall_GetDoesNotSendBody(t *testing.T) {
	var n int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		n = len(b)
	}))
	defer srv.Close()
	call.New("", call.Get(srv.URL).WithBody(`{"ignored":true}`), call.WithTransport(newTransport())).Call(context.Background())
	if n != 0 {
		t.Fatalf("GET sent %d body bytes", n)
	}
}

func TestCall_UnresolvedBodyPlaceholderErrors(t *testing.T) {
	srv := jsonServer(t, `{}`)
	log := &eventLog{}
	post := call.New("", call.Post(srv.URL, `{"x":"{{.env.missing}}"}`), call.WithTransport(newTransport()),
		call.WithEnvironment(env.New()), call.WithListeners(log)).Call(context.Background())
	if got := log.sequence(); got != "started,errored,finished" {
		t.Fatalf("events = %s", got)
	}
	if post.Outcome() != call.OutcomeErrored {
		t.Fatalf("outcome = %s", post.Outcome())
	}
}

func TestCall_UnknownHostErrors(t *testing.T) {
	log := &eventLog{}
	post := call.New("", call.Get("http://{{.env.missing}}/x"), call.WithListeners(log),
		call.WithTransport(newTransport())).Call(context.Background())
	if got := log.sequence(); got != "started,errored,finished" {
		t.Fatalf("events = %s", got)
	}
	if post.Err() == nil || post.Context() == nil || post.Response() != nil {
		t.Fatalf("expected error and context, got %v", post.Err())
	}
}

func TestCall_LateListenerSeesOnlyReruns(t *testing.T) {
	srv := jsonServer(t, `{"id":1}`)
	post := call.New("", call.Get(srv.URL), call.WithTransport(newTransport())).Call(context.Background())
	late := &eventLog{}
	post.RegisterListener(late)
	if len(late.kinds) != 0 {
		t.Fatalf("late listener got a replay: %s", late.sequence())
	}
	post.Call(context.Background())
	if got := late.sequence(); got != "started,finished" {
		t.Fatalf("late listener events = %s", got)
	}
}

func TestCall_StartedListenerPanicIsErrored(t *testing.T) {
	srv := jsonServer(t, `{"id":1}`)
	log := &eventLog{}
	bad := call.ListenerFuncs{OnStarted: func(call.StartedEvent) { panic("listener bug") }}
	post := call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithListeners(bad, log)).Call(context.Background())

	var pe *call.PanicError
	if !errors.As(post.Err(), &pe) || post.Outcome() != call.OutcomeErrored {
		t.Fatalf("expected panic error, got %v", post.Err())
	}
	if got := log.sequence(); got != "errored,finished" {
		t.Fatalf("events after panicking first listener = %s", got)
	}
}

func TestCall_FailedListenerPanicPropagatesAfterFinished(t *testing.T) {
	srv := jsonServer(t, `{"id":1}`)
	finished := false
	l := call.ListenerFuncs{
		OnFailed:   func(call.FailedEvent) { panic("listener bug") },
		OnFinished: func(call.FinishedEvent) { finished = true },
	}
	b := call.Bind[User](call.New("", call.Get(srv.URL), call.WithTransport(newTransport()),
		call.WithDecoders(decode.Default()...), call.WithListeners(l))).
		WithAssertions(func(int, *call.ModelResponse[User], User) error { return call.Failf("no") })

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected listener panic to propagate")
		}
		if !finished {
			t.Fatalf("finished must be published before the panic escapes")
		}
	}()
	b.Call(context.Background())
}

func TestBuilder_InvalidArguments(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		t.Helper()
		defer func() {
			r := recover()
			err, ok := r.(error)
			if !ok || !errors.Is(err, call.ErrInvalidArgument) {
				t.Fatalf("%s: expected invalid argument panic, got %v", name, r)
			}
		}()
		fn()
	}
	b := call.New("", call.Get("http://x"))
	bound := call.Bind[User](b)

	mustPanic("nil assertions", func() { bound.WithAssertions(nil) })
	mustPanic("nil callback", func() { bound.ThenDo(nil) })
	mustPanic("nil listener", func() { b.RegisterListener(nil) })
	mustPanic("nil decoder", func() { b.RegisterDecoder(nil) })
	mustPanic("nil transport", func() { call.New("", call.Get("http://x"), call.WithTransport(nil)) })
	mustPanic("rebind", func() { call.Bind[string](b) })
	mustPanic("nil builder", func() { call.Bind[User](nil) })
	mustPanic("unsupported method", func() { call.New("", call.NewRequest("TRACE", "http://x")) })
	mustPanic("empty url", func() { call.New("", call.Get("  ")) })
	mustPanic("blank header name", func() { call.New("", call.Get("http://x").WithHeader(" ", "v")) })
}

func TestBuilder_Description(t *testing.T) {
	if d := call.New("", call.Delete("http://x/1")).Description(); d != "DELETE http://x/1" {
		t.Fatalf("description = %q", d)
	}
	if d := call.New("remove", call.Delete("http://x/1")).Description(); d != "DELETE http://x/1 - remove" {
		t.Fatalf("description = %q", d)
	}
}
