package httpc

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Httpc holds the client settings shared by every call a transport issues.
type Httpc struct {
	TlsConfig *tls.Config
	// Insecure skips certificate verification (self-signed test environments).
	Insecure bool
	Timeout  time.Duration
	// RoundTripper replaces the underlying transport (recorders, fakes). TLS
	// settings are ignored when it is set.
	RoundTripper http.RoundTripper
}

// New returns a resty.Client configured according to the receiver's settings.
// Defaults: MinVersion TLS1.2 when a TLS config is given without one.
func (h *Httpc) New() *resty.Client {
	c := resty.New()
	if h.Timeout > 0 {
		c.SetTimeout(h.Timeout)
	}
	if h.RoundTripper != nil {
		c.SetTransport(h.RoundTripper)
		return c
	}
	cfg := h.TlsConfig
	if cfg == nil && !h.Insecure {
		return c
	}
	if cfg == nil {
		cfg = &tls.Config{}
	} else {
		cfg = cfg.Clone()
	}
	if cfg.MinVersion == 0 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if h.Insecure {
		cfg.InsecureSkipVerify = true // #nosec G402 -- opt-in for test environments
	}
	c.SetTLSClientConfig(cfg)
	return c
}

// ParseTLSVersion maps "1.0".."1.3" (optionally prefixed with "tls") to a tls constant.
// Empty input returns 0.
func ParseTLSVersion(s string) (uint16, error) {
	v := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "tls")
	v = strings.TrimPrefix(v, "v")
	switch v {
	case "":
		return 0, nil
	case "1.0", "10":
		return tls.VersionTLS10, nil
	case "1.1", "11":
		return tls.VersionTLS11, nil
	case "1.2", "12":
		return tls.VersionTLS12, nil
	case "1.3", "13":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS version: %q", s)
	}
}
