package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const defaultTTLSeconds = 300

// Config describes a locally issued HS256 token, for APIs that trust a shared secret.
type Config struct {
	Secret string `mapstructure:"secret"`
	// TTLSeconds controls expiration when ExpiresAt is not set.
	TTLSeconds int64 `mapstructure:"ttl_seconds"`

	Subject   string   `mapstructure:"sub"`
	Issuer    string   `mapstructure:"iss"`
	Audience  []string `mapstructure:"aud"`
	NotBefore int64    `mapstructure:"nbf"`
	ExpiresAt int64    `mapstructure:"exp"`
	ID        string   `mapstructure:"jti"`

	Custom map[string]interface{} `mapstructure:"custom"`
}

// Issue creates the signed token string.
func (c Config) Issue(now time.Time) (string, error) {
	if c.Secret == "" {
		return "", errors.New("jwt: secret required")
	}
	exp := c.ExpiresAt
	if exp == 0 {
		ttl := c.TTLSeconds
		if ttl <= 0 {
			ttl = defaultTTLSeconds
		}
		exp = now.Unix() + ttl
	}
	claims := jwt.MapClaims{}
	for k, v := range c.Custom {
		claims[k] = v
	}
	if c.Subject != "" {
		claims["sub"] = c.Subject
	}
	if c.Issuer != "" {
		claims["iss"] = c.Issuer
	}
	if len(c.Audience) > 0 {
		claims["aud"] = c.Audience
	}
	if c.NotBefore > 0 {
		claims["nbf"] = c.NotBefore
	}
	if c.ID != "" {
		claims["jti"] = c.ID
	}
	claims["iat"] = now.Unix()
	claims["exp"] = exp

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.Secret))
}

// Acquire returns "Bearer <token>".
func (c Config) Acquire() (string, error) {
	tok, err := c.Issue(time.Now())
	if err != nil {
		return "", err
	}
	return "Bearer " + tok, nil
}
