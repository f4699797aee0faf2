package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/util"
	"github.com/loykin/apiverify/pkg/env"
)

// Auth is one named provider entry of the config document.
type Auth struct {
	Type   string                 `mapstructure:"type" yaml:"type"`
	Name   string                 `mapstructure:"name" yaml:"name"`
	Config map[string]interface{} `mapstructure:"config" yaml:"config"`
}

// Acquire renders templates in the provider config with e and acquires a value.
func (a *Auth) Acquire(ctx context.Context, e *env.Env) (string, error) {
	if a == nil {
		return "", nil
	}
	pt := strings.TrimSpace(a.Type)
	if pt == "" {
		return "", fmt.Errorf("auth: missing type")
	}
	if a.Config == nil {
		return "", fmt.Errorf("auth %s: config not provided", a.Name)
	}
	spec := a.Config
	if e != nil {
		if rendered, ok := util.RenderAnyTemplate(a.Config, e).(map[string]interface{}); ok {
			spec = rendered
		}
	}
	m, err := Build(pt, spec)
	if err != nil {
		return "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := m.Acquire(ctx)
	if err != nil {
		return "", fmt.Errorf("auth %s (%s): %w", a.Name, pt, err)
	}
	return v, nil
}

// Install registers a lazy value under a.Name in e, so the provider is only
// contacted when a call references the name.
func (a *Auth) Install(ctx context.Context, e *env.Env) error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return fmt.Errorf("auth: missing name")
	}
	if !Supported(a.Type) {
		return fmt.Errorf("auth %s: unsupported provider type: %s", name, a.Type)
	}
	logger := common.GetLogger().WithComponent("auth")
	e.SetAuth(name, e.MakeLazy(func(le *env.Env) (string, error) {
		v, err := a.Acquire(ctx, le)
		if err != nil {
			logger.Error("auth acquisition failed", "auth_name", name, "type", a.Type, "error", err)
			return "", err
		}
		logger.Debug("auth acquired", "auth_name", name, "type", a.Type)
		return v, nil
	}))
	return nil
}

// InstallAll installs every entry; names must be unique.
func InstallAll(ctx context.Context, e *env.Env, auths []Auth) error {
	seen := map[string]bool{}
	for i := range auths {
		key := strings.ToLower(strings.TrimSpace(auths[i].Name))
		if seen[key] {
			return fmt.Errorf("auth: duplicate name %q", auths[i].Name)
		}
		seen[key] = true
		if err := auths[i].Install(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
