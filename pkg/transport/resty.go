package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/httpc"
)

// Options configures the resty transport.
type Options struct {
	TLSConfig    *tls.Config
	Insecure     bool
	Timeout      time.Duration
	RoundTripper http.RoundTripper
}

// Resty is a Transport backed by a single shared resty client. It is safe for
// concurrent use by independent calls.
type Resty struct {
	client *resty.Client
}

// New builds a Resty transport.
func New(opts Options) *Resty {
	h := httpc.Httpc{
		TlsConfig:    opts.TLSConfig,
		Insecure:     opts.Insecure,
		Timeout:      opts.Timeout,
		RoundTripper: opts.RoundTripper,
	}
	return &Resty{client: h.New()}
}

// Dispatch validates the verb and returns a handle bound to ctx.
func (t *Resty) Dispatch(ctx context.Context, method, url string) (RequestHandle, error) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if !supported(m) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &restyHandle{req: t.client.R().SetContext(ctx), method: m, url: url}, nil
}

func supported(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

type restyHandle struct {
	req    *resty.Request
	method string
	url    string
}

func (h *restyHandle) Method() string { return h.method }
func (h *restyHandle) URL() string    { return h.url }

func (h *restyHandle) Header(name, value string) {
	h.req.Header.Add(name, value)
}

func (h *restyHandle) QueryParam(name, value string) {
	h.req.QueryParam.Add(name, value)
}

func (h *restyHandle) Body(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if isJSON(text) && h.req.Header.Get("Content-Type") == "" {
		h.req.SetHeader("Content-Type", "application/json")
		h.req.SetBody([]byte(text))
		return
	}
	h.req.SetBody(text)
}

func (h *restyHandle) Execute() (*RawResponse, error) {
	logger := common.GetLogger().WithComponent("transport").WithRequest(h.method, h.url)
	resp, err := execByMethod(h.req, h.method, h.url)
	if err != nil {
		logger.Debug("transport call failed", "error", err)
		return nil, err
	}
	raw := &RawResponse{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		Duration:   resp.Time(),
	}
	logger.Debug("transport call completed", "status_code", raw.StatusCode, "response_size", len(raw.Body), "duration", raw.Duration)
	return raw, nil
}

func execByMethod(req *resty.Request, method, url string) (*resty.Response, error) {
	switch method {
	case http.MethodGet:
		return req.Get(url)
	case http.MethodPost:
		return req.Post(url)
	case http.MethodPut:
		return req.Put(url)
	case http.MethodPatch:
		return req.Patch(url)
	case http.MethodDelete:
		return req.Delete(url)
	case http.MethodHead:
		return req.Head(url)
	case http.MethodOptions:
		return req.Options(url)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

func isJSON(s string) bool {
	t := strings.TrimSpace(s)
	if (strings.HasPrefix(t, "{") && strings.HasSuffix(t, "}")) || (strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")) {
		return json.Valid([]byte(t))
	}
	return false
}
