// Package transport issues HTTP requests on behalf of the execution engine.
//
// The engine only depends on the Transport and RequestHandle interfaces; the
// resty implementation returned by New is the default.
package transport

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrUnsupportedMethod is returned by Dispatch for verbs outside the supported set.
var ErrUnsupportedMethod = errors.New("transport: unsupported method")

// Transport creates request handles for a method and a fully resolved URL.
type Transport interface {
	Dispatch(ctx context.Context, method, url string) (RequestHandle, error)
}

// RequestHandle is an in-flight request being assembled. Execute may be called once.
type RequestHandle interface {
	Method() string
	URL() string
	Header(name, value string)
	QueryParam(name, value string)
	Body(text string)
	Execute() (*RawResponse, error)
}

// RawResponse is the status/headers/body triple produced by a transport.
type RawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r *RawResponse) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}
