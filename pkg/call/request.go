package call

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Method is an HTTP verb supported by the pipeline.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodPatch   Method = http.MethodPatch
	MethodHead    Method = http.MethodHead
	MethodOptions Method = http.MethodOptions
)

// ParseMethod normalizes s and rejects verbs outside the supported set.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("unsupported method %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the supported verbs.
func (m Method) Valid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch, MethodHead, MethodOptions:
		return true
	}
	return false
}

// AllowsBody reports whether a body is transmitted for m.
func (m Method) AllowsBody() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOptions:
		return true
	}
	return false
}

// Header represents a single header key-value pair.
type Header struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Query represents a single query parameter key-value pair.
type Query struct {
	Name  string `yaml:"name" json:"name"`
	Value string `yaml:"value" json:"value"`
}

// Request is an immutable description of one HTTP call. Values may contain
// environment placeholders; they are resolved by the engine right before
// transmission. The With* methods return modified copies.
type Request struct {
	method   Method
	url      string
	headers  []Header
	queries  []Query
	body     string
	hasBody  bool
	authName string
}

// NewRequest describes a call of method against url.
func NewRequest(method Method, url string) Request {
	return Request{method: method, url: url}
}

func Get(url string) Request     { return NewRequest(MethodGet, url) }
func Delete(url string) Request  { return NewRequest(MethodDelete, url) }
func Head(url string) Request    { return NewRequest(MethodHead, url) }
func Options(url string) Request { return NewRequest(MethodOptions, url) }

func Post(url, body string) Request  { return NewRequest(MethodPost, url).WithBody(body) }
func Put(url, body string) Request   { return NewRequest(MethodPut, url).WithBody(body) }
func Patch(url, body string) Request { return NewRequest(MethodPatch, url).WithBody(body) }

// WithHeader appends a header; duplicates are kept in order.
func (r Request) WithHeader(name, value string) Request {
	hs := make([]Header, len(r.headers), len(r.headers)+1)
	copy(hs, r.headers)
	r.headers = append(hs, Header{Name: name, Value: value})
	return r
}

// WithQuery appends a query parameter; duplicates are kept in order.
func (r Request) WithQuery(name, value string) Request {
	qs := make([]Query, len(r.queries), len(r.queries)+1)
	copy(qs, r.queries)
	r.queries = append(qs, Query{Name: name, Value: value})
	return r
}

// WithBody sets the payload.
func (r Request) WithBody(body string) Request {
	r.body = body
	r.hasBody = true
	return r
}

// WithAuth names an auth value of the environment injected as Authorization
// unless the request already carries that header.
func (r Request) WithAuth(name string) Request {
	r.authName = strings.TrimSpace(name)
	return r
}

func (r Request) Method() Method   { return r.method }
func (r Request) URL() string      { return r.url }
func (r Request) AuthName() string { return r.authName }

// Body returns the payload and whether one was set.
func (r Request) Body() (string, bool) { return r.body, r.hasBody }

// Headers returns a copy of the headers in insertion order.
func (r Request) Headers() []Header {
	return append([]Header(nil), r.headers...)
}

// Queries returns a copy of the query parameters in insertion order.
func (r Request) Queries() []Query {
	return append([]Query(nil), r.queries...)
}

// Name identifies the request in descriptions, e.g. "GET https://api/users".
func (r Request) Name() string {
	return string(r.method) + " " + r.url
}

// Validate checks the request can be dispatched.
func (r Request) Validate() error {
	var errs []error
	if !r.method.Valid() {
		errs = append(errs, fmt.Errorf("unsupported method %q", string(r.method)))
	}
	if strings.TrimSpace(r.url) == "" {
		errs = append(errs, errors.New("url is required"))
	}
	for i, h := range r.headers {
		if strings.TrimSpace(h.Name) == "" {
			errs = append(errs, fmt.Errorf("header[%d]: name is required", i))
		}
	}
	for i, q := range r.queries {
		if strings.TrimSpace(q.Name) == "" {
			errs = append(errs, fmt.Errorf("query[%d]: name is required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid request: %w", errors.Join(errs...))
	}
	return nil
}
