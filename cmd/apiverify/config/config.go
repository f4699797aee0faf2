package config

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/loykin/apiverify/internal/auth"
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/constants"
	"github.com/loykin/apiverify/internal/httpc"
	"github.com/loykin/apiverify/internal/store"
	"github.com/loykin/apiverify/internal/store/postgresql"
	"github.com/loykin/apiverify/internal/util"
	"github.com/loykin/apiverify/pkg/env"
	"github.com/loykin/apiverify/pkg/transport"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type EnvConfig struct {
	Name         string `mapstructure:"name"`
	Value        string `mapstructure:"value"`
	ValueFromEnv string `mapstructure:"valueFromEnv"`
}

type LoggingConfig struct {
	Level         string `mapstructure:"level"`          // error, warn, info, debug
	Format        string `mapstructure:"format"`         // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive"` // defaults to enabled
}

type StoreConfig struct {
	Disabled         bool               `mapstructure:"disabled"`
	SaveResponseBody bool               `mapstructure:"save_response_body"`
	Type             string             `mapstructure:"type"`
	TablePrefix      string             `mapstructure:"table_prefix"`
	SQLite           store.SqliteConfig `mapstructure:"sqlite"`
	Postgres         postgresql.Config  `mapstructure:"postgres"`
}

type ClientConfig struct {
	Insecure      bool          `mapstructure:"insecure"`
	MinTLSVersion string        `mapstructure:"min_tls_version"`
	MaxTLSVersion string        `mapstructure:"max_tls_version"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type TraceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Pretty  bool   `mapstructure:"pretty"`
	Output  string `mapstructure:"output"` // file path; empty means stderr
}

// ConfigDoc is the CLI configuration document.
type ConfigDoc struct {
	Env      []EnvConfig   `mapstructure:"env"`
	EnvFiles []string      `mapstructure:"env_files"`
	Auth     []auth.Auth   `mapstructure:"auth"`
	Store    StoreConfig   `mapstructure:"store"`
	Client   ClientConfig  `mapstructure:"client"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Trace    TraceConfig   `mapstructure:"trace"`
	FailFast bool          `mapstructure:"fail_fast"`
}

// Load reads path with viper. An empty path yields the defaults.
func Load(path string) (*ConfigDoc, error) {
	v := viper.New()
	v.SetDefault("store.type", store.DriverSqlite)
	v.SetDefault("store.sqlite.path", constants.DefaultDBFileName)
	v.SetDefault("store.sqlite.busy_timeout", constants.DefaultSQLiteBusyTimeout)
	v.SetDefault("client.timeout", constants.DefaultRequestTimeout)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	var doc ConfigDoc
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&doc, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &doc, nil
}

// OSEnvPrefix selects process variables copied into the global environment,
// with the prefix stripped.
const OSEnvPrefix = "APIVERIFY_ENV_"

// GetEnv builds the sealed base environment. Later layers win: env files,
// explicit entries, then OSEnvPrefix variables. Auth providers are installed
// last. Callers Clone it to get a writable environment.
func (c *ConfigDoc) GetEnv(ctx context.Context) (*env.Env, error) {
	base := env.New()
	if len(c.EnvFiles) > 0 {
		vals, err := godotenv.Read(c.EnvFiles...)
		if err != nil {
			return nil, fmt.Errorf("read env files: %w", err)
		}
		for k, v := range vals {
			_ = base.SetString("global", k, v)
		}
	}
	logger := common.GetLogger().WithComponent("config")
	for _, kv := range c.Env {
		if kv.Name == "" {
			continue
		}
		val := kv.Value
		if envVar, ok := util.TrimEmptyCheck(kv.ValueFromEnv); val == "" && ok {
			val = os.Getenv(envVar)
			if val == "" {
				logger.Warn("env variable requested but empty or not set", "name", kv.Name, "env_var", kv.ValueFromEnv)
			}
		}
		_ = base.SetString("global", kv.Name, val)
	}
	base.LoadOSEnv(OSEnvPrefix)
	if err := auth.InstallAll(ctx, base, c.Auth); err != nil {
		return nil, err
	}
	base.Seal()
	return base, nil
}

// TLSConfig returns nil when no TLS option is set.
func (c *ClientConfig) TLSConfig() (*tls.Config, error) {
	minV, err := httpc.ParseTLSVersion(c.MinTLSVersion)
	if err != nil {
		return nil, err
	}
	maxV, err := httpc.ParseTLSVersion(c.MaxTLSVersion)
	if err != nil {
		return nil, err
	}
	if minV == 0 && maxV == 0 {
		return nil, nil
	}
	return &tls.Config{MinVersion: minV, MaxVersion: maxV}, nil // #nosec G402 -- versions come from user config
}

// Transport builds the call transport from the client settings.
func (c *ConfigDoc) Transport() (*transport.Resty, error) {
	cfg, err := c.Client.TLSConfig()
	if err != nil {
		return nil, err
	}
	return transport.New(transport.Options{TLSConfig: cfg, Insecure: c.Client.Insecure, Timeout: c.Client.Timeout}), nil
}

// OpenStore opens the history store, or returns nil when disabled.
func (c *ConfigDoc) OpenStore() (*store.Store, error) {
	if c.Store.Disabled {
		return nil, nil
	}
	cfg := store.Config{Driver: c.Store.Type, TablePrefix: c.Store.TablePrefix}
	switch util.TrimAndLower(c.Store.Type) {
	case store.DriverPostgresql, "postgres", "pg":
		pg := c.Store.Postgres
		cfg.DriverConfig = &pg
	default:
		sq := c.Store.SQLite
		cfg.DriverConfig = &sq
	}
	return store.Open(cfg)
}

// SetupLogging configures the global logger and masking.
func (c *ConfigDoc) SetupLogging(w io.Writer) error {
	level, ok := common.ParseLogLevel(util.TrimAndLower(c.Logging.Level))
	if !ok {
		return fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
	var logger *common.Logger
	switch format := util.TrimAndLower(c.Logging.Format); format {
	case "json":
		logger = common.NewJSONLoggerTo(w, level)
	case "color", "colour":
		logger = common.NewColorLoggerTo(w, level)
	case "text", "":
		logger = common.NewLoggerTo(w, level)
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}
	masking := true
	if c.Logging.MaskSensitive != nil {
		masking = *c.Logging.MaskSensitive
	}
	common.EnableMasking(masking)
	common.SetDefaultLogger(logger)
	logger.Debug("logging configured", "level", level.String(), "mask_sensitive", masking)
	return nil
}

// SetupTracing returns a stdout span exporter provider, or nil when tracing
// is disabled. The returned function flushes and closes it.
func (c *ConfigDoc) SetupTracing(w io.Writer) (*sdktrace.TracerProvider, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !c.Trace.Enabled {
		return nil, noop, nil
	}
	closeOut := func() error { return nil }
	if c.Trace.Output != "" {
		f, err := os.Create(c.Trace.Output)
		if err != nil {
			return nil, noop, fmt.Errorf("open trace output: %w", err)
		}
		w, closeOut = f, f.Close
	}
	opts := []stdouttrace.Option{stdouttrace.WithWriter(w)}
	if c.Trace.Pretty {
		opts = append(opts, stdouttrace.WithPrettyPrint())
	}
	exp, err := stdouttrace.New(opts...)
	if err != nil {
		_ = closeOut()
		return nil, noop, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	return tp, func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if cerr := closeOut(); err == nil {
			err = cerr
		}
		return err
	}, nil
}
