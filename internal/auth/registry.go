package auth

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/apiverify/internal/auth/basic"
	"github.com/loykin/apiverify/internal/auth/jwt"
	"github.com/loykin/apiverify/internal/auth/oauth2"
)

// Method acquires the value injected as the Authorization header
// (e.g. "Basic ..." or "Bearer ...").
type Method interface {
	Acquire(ctx context.Context) (value string, err error)
}

// MethodFunc adapts a function to Method.
type MethodFunc func(ctx context.Context) (string, error)

func (f MethodFunc) Acquire(ctx context.Context) (string, error) { return f(ctx) }

// Factory builds a Method from a loosely-typed config map.
type Factory func(spec map[string]interface{}) (Method, error)

var (
	mu        sync.RWMutex
	providers = map[string]Factory{}
)

func normalizeKey(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register adds or replaces the provider factory for typ.
func Register(typ string, f Factory) {
	key := normalizeKey(typ)
	if key == "" || f == nil {
		return
	}
	mu.Lock()
	providers[key] = f
	mu.Unlock()
}

// Types lists the registered provider types, sorted.
func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(providers))
	for k := range providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Supported reports whether a factory is registered for typ.
func Supported(typ string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := providers[normalizeKey(typ)]
	return ok
}

// Build resolves the factory for typ and builds a Method.
func Build(typ string, spec map[string]interface{}) (Method, error) {
	mu.RLock()
	f, ok := providers[normalizeKey(typ)]
	mu.RUnlock()
	if !ok {
		return nil, errors.New("auth: unsupported provider type: " + typ)
	}
	return f(spec)
}

func decode[C any](spec map[string]interface{}) (C, error) {
	var c C
	err := mapstructure.Decode(spec, &c)
	return c, err
}

func init() {
	Register("basic", func(spec map[string]interface{}) (Method, error) {
		c, err := decode[basic.Config](spec)
		if err != nil {
			return nil, err
		}
		return MethodFunc(func(context.Context) (string, error) { return c.Acquire() }), nil
	})
	Register("oauth2", func(spec map[string]interface{}) (Method, error) {
		c, err := decode[oauth2.Config](spec)
		if err != nil {
			return nil, err
		}
		return c.GetGrant()
	})
	Register("jwt", func(spec map[string]interface{}) (Method, error) {
		c, err := decode[jwt.Config](spec)
		if err != nil {
			return nil, err
		}
		return MethodFunc(func(context.Context) (string, error) { return c.Acquire() }), nil
	})
}
