package sqlite

import (
	"time"

	"github.com/loykin/apiverify/internal/constants"
)

const (
	defaultBusyTimeout = constants.DefaultSQLiteBusyTimeout
	foreignKeysParam   = "_fk=1"
)

// Config locates the history database file. BusyTimeout bounds how long a
// writer waits on a locked database; zero means five seconds.
type Config struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

func (c *Config) ToMap() map[string]interface{} {
	timeout := c.BusyTimeout
	if timeout <= 0 {
		timeout = defaultBusyTimeout
	}
	return map[string]interface{}{
		"path":            c.Path,
		"busy_timeout_ms": timeout.Milliseconds(),
	}
}
