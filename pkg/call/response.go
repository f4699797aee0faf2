package call

import (
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/loykin/apiverify/pkg/transport"
)

// Response is the canonical view of a transport response. It is produced once
// per executed call and must be treated as read-only.
type Response struct {
	StatusCode  int
	Headers     []Header // one pair per value, grouped by canonical name
	Body        []byte
	ContentType string
}

func newResponse(raw *transport.RawResponse) *Response {
	resp := &Response{StatusCode: raw.StatusCode, Body: raw.Body, ContentType: raw.ContentType()}
	names := make([]string, 0, len(raw.Header))
	for name := range raw.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range raw.Header[name] {
			resp.Headers = append(resp.Headers, Header{Name: http.CanonicalHeaderKey(name), Value: v})
		}
	}
	return resp
}

// Header returns the first value of the named header (case-insensitive).
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// Values returns every value of the named header in order.
func (r *Response) Values(name string) []string {
	var out []string
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			out = append(out, h.Value)
		}
	}
	return out
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// ResponseView is the untyped view of a ModelResponse carried by events.
type ResponseView interface {
	Response() *Response
	StatusCode() int
	ModelValue() any
}

// ModelResponse pairs a Response with the model decoded from it.
type ModelResponse[T any] struct {
	response *Response
	model    T
}

// NewModelResponse pairs resp and model.
func NewModelResponse[T any](resp *Response, model T) *ModelResponse[T] {
	return &ModelResponse[T]{response: resp, model: model}
}

func (m *ModelResponse[T]) Response() *Response { return m.response }
func (m *ModelResponse[T]) Model() T            { return m.model }
func (m *ModelResponse[T]) ModelValue() any     { return m.model }

func (m *ModelResponse[T]) StatusCode() int {
	if m.response == nil {
		return 0
	}
	return m.response.StatusCode
}

// DecodingHint names the model type a response should be decoded into. The
// zero hint means no decoding was requested.
type DecodingHint struct {
	Type reflect.Type
}

// HintFor returns the hint for T.
func HintFor[T any]() DecodingHint {
	return DecodingHint{Type: reflect.TypeOf((*T)(nil)).Elem()}
}

// IsZero reports whether no model type was requested.
func (h DecodingHint) IsZero() bool { return h.Type == nil }

// NewTarget allocates a pointer to a zero value of the hinted type, ready to be
// passed to an unmarshaller.
func (h DecodingHint) NewTarget() reflect.Value {
	return reflect.New(h.Type)
}

// Accepts reports whether v is a usable, non-nil model of the hinted type.
func (h DecodingHint) Accepts(v any) bool {
	if h.Type == nil || isNil(v) {
		return false
	}
	return reflect.TypeOf(v).AssignableTo(h.Type)
}

func (h DecodingHint) String() string {
	if h.Type == nil {
		return "<none>"
	}
	return h.Type.String()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func (r *Response) String() string {
	return fmt.Sprintf("%d %s (%d bytes)", r.StatusCode, r.ContentType, len(r.Body))
}
