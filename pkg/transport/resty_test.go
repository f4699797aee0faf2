package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

func TestResty_DispatchAndExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got := r.Header.Values("X-Tag"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("expected duplicate headers in order, got %v", got)
		}
		if got := r.URL.Query()["q"]; len(got) != 2 {
			t.Errorf("expected two q params, got %v", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != `{"name":"ana"}` {
			t.Errorf("unexpected body %q", b)
		}
		w.Header().Add("Set-Thing", "1")
		w.Header().Add("Set-Thing", "2")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1}`))
	}))
	defer srv.Close()

	tr := New(Options{Timeout: 5 * time.Second})
	h, err := tr.Dispatch(context.Background(), "post", srv.URL+"/users")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if h.Method() != http.MethodPost || h.URL() != srv.URL+"/users" {
		t.Fatalf("handle = %s %s", h.Method(), h.URL())
	}
	h.Header("X-Tag", "a")
	h.Header("X-Tag", "b")
	h.QueryParam("q", "1")
	h.QueryParam("q", "2")
	h.Body(`{"name":"ana"}`)

	raw, err := h.Execute()
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if raw.StatusCode != http.StatusCreated || string(raw.Body) != `{"id":1}` {
		t.Fatalf("unexpected response %d %q", raw.StatusCode, raw.Body)
	}
	if len(raw.Header.Values("Set-Thing")) != 2 {
		t.Fatalf("expected multi-value header, got %v", raw.Header)
	}
}

func TestResty_UnsupportedMethod(t *testing.T) {
	_, err := New(Options{}).Dispatch(context.Background(), "TRACE", "http://localhost")
	if !errors.Is(err, ErrUnsupportedMethod) {
		t.Fatalf("expected ErrUnsupportedMethod, got %v", err)
	}
}

func TestResty_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h, err := New(Options{Timeout: time.Second}).Dispatch(context.Background(), http.MethodGet, url)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if _, err := h.Execute(); err == nil {
		t.Fatalf("expected network error against closed server")
	}
}

func TestResty_RecordAndReplayCassette(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"name":"Ana"}`))
	}))
	cassette := filepath.Join(t.TempDir(), "users")

	rec, err := recorder.NewAsMode(cassette, recorder.ModeRecording, nil)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	h, _ := New(Options{RoundTripper: rec}).Dispatch(context.Background(), http.MethodGet, srv.URL+"/users/42")
	if _, err := h.Execute(); err != nil {
		t.Fatalf("record execute: %v", err)
	}
	if err := rec.Stop(); err != nil {
		t.Fatalf("stop recorder: %v", err)
	}
	srv.Close()

	replay, err := recorder.NewAsMode(cassette, recorder.ModeReplaying, nil)
	if err != nil {
		t.Fatalf("replay recorder: %v", err)
	}
	defer func() { _ = replay.Stop() }()

	h, _ = New(Options{RoundTripper: replay}).Dispatch(context.Background(), http.MethodGet, srv.URL+"/users/42")
	raw, err := h.Execute()
	if err != nil {
		t.Fatalf("replay execute: %v", err)
	}
	if raw.StatusCode != 200 || string(raw.Body) != `{"id":42,"name":"Ana"}` {
		t.Fatalf("unexpected replay %d %q", raw.StatusCode, raw.Body)
	}
	if raw.ContentType() != "application/json" {
		t.Fatalf("content type not replayed: %q", raw.ContentType())
	}
}
