package postgresql

import (
	"net/url"
	"strconv"

	"github.com/loykin/apiverify/internal/constants"
	"github.com/loykin/apiverify/internal/util"
)

type Config struct {
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ToMap yields the explicit DSN, or a postgres:// URL built from the
// components when a host is set. Credentials are URL-escaped.
func (p *Config) ToMap() map[string]interface{} {
	dsn, hasDSN := util.TrimEmptyCheck(p.DSN)
	if host, ok := util.TrimEmptyCheck(p.Host); !hasDSN && ok {
		dsn = p.url(host).String()
	}
	return map[string]interface{}{"dsn": dsn}
}

func (p *Config) url(host string) *url.URL {
	port := p.Port
	if port == 0 {
		port = constants.DefaultPostgresPort
	}
	u := &url.URL{
		Scheme:   "postgres",
		Host:     host + ":" + strconv.Itoa(port),
		Path:     "/" + util.TrimWithDefault(p.DBName, ""),
		RawQuery: url.Values{"sslmode": {util.TrimWithDefault(p.SSLMode, constants.DefaultPostgresSSLMode)}}.Encode(),
	}
	if user, ok := util.TrimEmptyCheck(p.User); ok {
		u.User = url.UserPassword(user, p.Password)
	}
	return u
}
