package oauth2

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/apiverify/internal/httpc"
	golangoauth2 "golang.org/x/oauth2"
)

// Config selects a grant and carries its settings.
type Config struct {
	GrantType   string                 `mapstructure:"grant_type"`
	GrantConfig map[string]interface{} `mapstructure:"grant_config"`
}

// Grant acquires a token for one OAuth2 grant type.
type Grant interface {
	Acquire(ctx context.Context) (string, error)
}

// GetGrant decodes GrantConfig for GrantType.
func (c Config) GetGrant() (Grant, error) {
	gt := strings.ToLower(strings.TrimSpace(c.GrantType))
	if gt == "" {
		return nil, errors.New("oauth2: grant_type is required")
	}
	if c.GrantConfig == nil {
		return nil, errors.New("oauth2: grant_config is required")
	}
	switch gt {
	case "password":
		var pc PasswordConfig
		if err := mapstructure.Decode(c.GrantConfig, &pc); err != nil {
			return nil, err
		}
		return pc, nil
	case "client_credentials", "client-credentials":
		var cc ClientCredentialsConfig
		if err := mapstructure.Decode(c.GrantConfig, &cc); err != nil {
			return nil, err
		}
		return cc, nil
	default:
		return nil, errors.New("oauth2: unsupported grant_type: " + gt)
	}
}

var tlsConfig *tls.Config

// SetTLSConfig makes token requests honor the same TLS settings as calls.
func SetTLSConfig(cfg *tls.Config) { tlsConfig = cfg }

// withClient injects an HTTP client built by httpc when TLS settings exist.
func withClient(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if tlsConfig == nil {
		return ctx
	}
	h := &httpc.Httpc{TlsConfig: tlsConfig}
	return context.WithValue(ctx, golangoauth2.HTTPClient, &http.Client{Transport: h.New().GetClient().Transport})
}

// headerValue builds the Authorization value; an empty token type means Bearer.
func headerValue(tok *golangoauth2.Token) (string, error) {
	if tok == nil || !tok.Valid() || strings.TrimSpace(tok.AccessToken) == "" {
		return "", errors.New("oauth2: received invalid token")
	}
	typ := strings.TrimSpace(tok.TokenType)
	if typ == "" || strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + tok.AccessToken, nil
}
