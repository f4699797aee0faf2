package basic

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Config holds configuration for Basic authentication.
type Config struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Acquire returns the Authorization value "Basic <base64(user:pass)>".
func (c Config) Acquire() (string, error) {
	u := strings.TrimSpace(c.Username)
	p := strings.TrimSpace(c.Password)
	if u == "" || p == "" {
		return "", errors.New("basic: username and password are required")
	}
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(u+":"+p)), nil
}
