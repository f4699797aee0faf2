// Package apiverify is the library entry point: a Factory that starts calls
// with shared defaults, plus re-exports of the logging, auth and history
// helpers used by the CLI.
package apiverify

import (
	"context"

	"github.com/loykin/apiverify/internal/auth"
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/store"
	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/decode"
	"github.com/loykin/apiverify/pkg/env"
	"github.com/loykin/apiverify/pkg/script"
	"github.com/loykin/apiverify/pkg/transport"
)

// Env is the layered placeholder environment.
type Env = env.Env

func NewEnv() *Env { return env.New() }

// Factory holds the collaborators shared by the calls it starts.
type Factory struct {
	Transport transport.Transport
	Env       *env.Env
	Decoders  []call.Decoder
	Listeners []call.Listener
	Evaluator call.ScriptEvaluator
	Logger    *common.Logger
}

// NewFactory returns a Factory with the default decoder chain, a fresh
// environment and the template script evaluator. A nil Transport falls back
// to the shared default client.
func NewFactory() *Factory {
	return &Factory{
		Env:       env.New(),
		Decoders:  decode.Default(),
		Evaluator: script.New(),
	}
}

// New starts a call. opts are applied after the factory defaults.
func (f *Factory) New(message string, req call.Request, opts ...call.Option) *call.Builder {
	base := []call.Option{
		call.WithDecoders(f.Decoders...),
		call.WithListeners(f.Listeners...),
		call.WithEvaluator(f.Evaluator),
	}
	if f.Transport != nil {
		base = append(base, call.WithTransport(f.Transport))
	}
	if f.Env != nil {
		base = append(base, call.WithEnvironment(f.Env))
	}
	if f.Logger != nil {
		base = append(base, call.WithLogger(f.Logger))
	}
	return call.New(message, req, append(base, opts...)...)
}

// AddListener registers l for every call started afterwards.
func (f *Factory) AddListener(l call.Listener) *Factory {
	f.Listeners = append(f.Listeners, l)
	return f
}

// Logging

type Logger = common.Logger
type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

func NewLogger(level LogLevel) *Logger      { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger  { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }
func SetDefaultLogger(l *Logger)            { common.SetDefaultLogger(l) }
func GetLogger() *Logger                    { return common.GetLogger() }

// EnableMasking toggles masking of sensitive values in logs and history.
func EnableMasking(enabled bool) { common.EnableMasking(enabled) }

func MaskSensitiveData(s string) string { return common.MaskSensitiveData(s) }

// Auth

type AuthMethod = auth.Method
type AuthFactory = auth.Factory
type Auth = auth.Auth

// RegisterAuthProvider adds a custom provider type.
func RegisterAuthProvider(typ string, f AuthFactory) { auth.Register(typ, f) }

// InstallAuth makes the providers available to requests by name through e.
func InstallAuth(ctx context.Context, e *Env, auths ...Auth) error {
	return auth.InstallAll(ctx, e, auths)
}

// History store

type (
	Store       = store.Store
	StoreConfig = store.Config
	Run         = store.Run
	RunFilter   = store.Filter
)

const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
)

// OpenStore connects to the history store and ensures its schema.
func OpenStore(cfg StoreConfig) (*Store, error) { return store.Open(cfg) }
