package oauth2

import (
	"context"
	"errors"
	"strings"

	golangoauth2 "golang.org/x/oauth2"
)

// PasswordConfig holds configuration for the Resource Owner Password Credentials grant.
type PasswordConfig struct {
	ClientID  string   `mapstructure:"client_id"`
	ClientSec string   `mapstructure:"client_secret"`
	AuthURL   string   `mapstructure:"auth_url"`
	TokenURL  string   `mapstructure:"token_url"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Scopes    []string `mapstructure:"scopes"`
}

func (c PasswordConfig) Acquire(ctx context.Context) (string, error) {
	clientID := strings.TrimSpace(c.ClientID)
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	tokenURL := strings.TrimSpace(c.TokenURL)
	if tokenURL == "" {
		return "", errors.New("oauth2: token_url is required for password grant")
	}
	if clientID == "" || username == "" || password == "" {
		return "", errors.New("oauth2: client_id, username and password are required for password grant")
	}
	ocfg := &golangoauth2.Config{
		ClientID:     clientID,
		ClientSecret: strings.TrimSpace(c.ClientSec),
		Endpoint: golangoauth2.Endpoint{
			AuthURL:   strings.TrimSpace(c.AuthURL),
			TokenURL:  tokenURL,
			AuthStyle: golangoauth2.AuthStyleInParams,
		},
		Scopes: c.Scopes,
	}
	tok, err := ocfg.PasswordCredentialsToken(withClient(ctx), username, password)
	if err != nil {
		return "", err
	}
	return headerValue(tok)
}
