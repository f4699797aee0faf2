package env

import (
	"fmt"
	"sync"
)

// VarLazy is a value resolved on first use and cached afterwards. Auth
// providers are installed this way so a token is only acquired when a call
// references it. A failed resolution is not cached: the next use tries again.
type VarLazy struct {
	mu       sync.Mutex
	done     bool
	res      string
	env      *Env
	resolver func(*Env) (string, error)
}

// Value resolves the value if it is not cached yet.
func (l *VarLazy) Value() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done || l.resolver == nil {
		return l.res, nil
	}
	v, err := l.resolver(l.env)
	if err != nil {
		return "", err
	}
	l.res, l.done = v, true
	return v, nil
}

// String renders the value in templates; errors render as empty.
func (l *VarLazy) String() string {
	v, _ := l.Value()
	return v
}

// Reset drops the cached value so the next use resolves again.
func (l *VarLazy) Reset() {
	l.mu.Lock()
	l.done, l.res = false, ""
	l.mu.Unlock()
}

var _ fmt.Stringer = (*VarLazy)(nil)

// MakeLazy constructs a VarLazy bound to e.
func (e *Env) MakeLazy(resolver func(*Env) (string, error)) *VarLazy {
	return &VarLazy{env: e, resolver: resolver}
}
