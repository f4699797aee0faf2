package env

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"
)

type Str string

func (s Str) String() string { return string(s) }

func FromStringMap(m map[string]string) Map {
	if m == nil {
		return nil
	}
	out := Map{}
	for k, v := range m {
		out[k] = Str(v)
	}
	return out
}

type Val interface {
	String() string
}

// Map is a value map where each value is a plain Str or a lazy value
// (VarLazy) resolved on first use.
type Map map[string]Val

// Env supports layered variables:
//   - Auth: values produced by auth providers, exposed as {{.auth.<name>}}
//   - Global: values from config, .env files and the suite header
//   - Local: values of the current call, including values extracted from
//     earlier responses
//
// Lookup and rendering give precedence to Local over Global. Env implements the
// variable processor consulted by the execution engine.
type Env struct {
	mu     sync.RWMutex
	Auth   Map `yaml:"-" json:"-" mapstructure:"-"`
	Global Map `yaml:"-" json:"-" mapstructure:"-"`
	Local  Map `yaml:"-" json:"env" mapstructure:"env"`
	sealed bool
}

// New returns a pointer to Env with all internal maps initialized.
func New() *Env {
	return &Env{Auth: Map{}, Global: Map{}, Local: Map{}}
}

// Seal makes Set and SetString fail. Clones of a sealed Env are writable.
func (e *Env) Seal() {
	if e != nil {
		e.mu.Lock()
		e.sealed = true
		e.mu.Unlock()
	}
}

// Clone performs a copy of the Env maps. Lazy values are copied by reference so
// an auth token is acquired at most once across clones.
func (e *Env) Clone() *Env {
	out := New()
	if e == nil {
		return out
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for k, v := range e.Auth {
		out.Auth[k] = v
	}
	for k, v := range e.Global {
		out.Global[k] = v
	}
	for k, v := range e.Local {
		out.Local[k] = v
	}
	return out
}

// SetString sets a string into the chosen map ("auth", "global" or "local").
func (e *Env) SetString(mapName, key, val string) error {
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return fmt.Errorf("env: sealed (immutable)")
	}
	var m *Map
	switch normalizeMapName(mapName) {
	case "auth":
		m = &e.Auth
	case "local":
		m = &e.Local
	default:
		m = &e.Global
	}
	if *m == nil {
		*m = Map{}
	}
	(*m)[key] = Str(val)
	return nil
}

// Set stores a Local value. It is used by post-call scripts and env_from
// extraction to hand values to later calls.
func (e *Env) Set(key, val string) error {
	return e.SetString("local", key, val)
}

// SetAuth installs an auth value, typically a lazy one built by MakeLazy.
func (e *Env) SetAuth(name string, v Val) {
	if e == nil || v == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Auth == nil {
		e.Auth = Map{}
	}
	e.Auth[name] = v
}

func normalizeMapName(n string) string {
	switch strings.ToLower(strings.TrimSpace(n)) {
	case "auth":
		return "auth"
	case "local":
		return "local"
	default:
		return "global"
	}
}

// UnmarshalYAML allows decoding a plain mapping under the `env` key directly into Local.
func (e *Env) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	var m map[string]string
	if err := value.Decode(&m); err != nil {
		return err
	}
	e.Local = FromStringMap(m)
	return nil
}

// LoadOSEnv copies process environment variables with the given prefix into
// Global, stripping the prefix. An empty prefix copies nothing.
func (e *Env) LoadOSEnv(prefix string) {
	if e == nil || prefix == "" {
		return
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		_ = e.SetString("global", strings.TrimPrefix(k, prefix), v)
	}
}

func (e *Env) merged() map[string]string {
	m := map[string]string{}
	if e == nil {
		return m
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for k, v := range e.Global {
		if v != nil {
			m[k] = v.String()
		}
	}
	for k, v := range e.Local {
		if v != nil {
			m[k] = v.String()
		}
	}
	return m
}

// LocalValues returns a string snapshot of the Local layer.
func (e *Env) LocalValues() map[string]string {
	out := map[string]string{}
	if e == nil {
		return out
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for k, v := range e.Local {
		if v != nil {
			out[k] = v.String()
		}
	}
	return out
}

// dataForTemplate exposes {{.env.<key>}} (Local over Global) and
// {{.auth.<name>}}. Auth values are passed as Stringers so lazy providers only
// run when a template actually references them.
func (e *Env) dataForTemplate() map[string]interface{} {
	am := map[string]interface{}{}
	if e != nil {
		e.mu.RLock()
		for k, v := range e.Auth {
			am[k] = v
		}
		e.mu.RUnlock()
	}
	return map[string]interface{}{
		"env":  e.merged(),
		"auth": am,
	}
}

// Lookup searches Local first, then Global.
func (e *Env) Lookup(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if v, ok := e.Local[key]; ok && v != nil {
		return v.String(), true
	}
	if v, ok := e.Global[key]; ok && v != nil {
		return v.String(), true
	}
	return "", false
}

// AuthValue returns the value installed under an auth name, resolving lazy
// providers. Names are matched case-insensitively.
func (e *Env) AuthValue(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	e.mu.RLock()
	var found Val
	for k, v := range e.Auth {
		if strings.EqualFold(k, strings.TrimSpace(name)) {
			found = v
			break
		}
	}
	e.mu.RUnlock()
	if found == nil {
		return "", false
	}
	if l, ok := found.(*VarLazy); ok {
		v, err := l.Value()
		return v, err == nil && v != ""
	}
	s := found.String()
	return s, s != ""
}

// RenderGoTemplate renders strings like {{.env.username}} with text/template.
// Parse errors and missing keys keep the original string unchanged.
func (e *Env) RenderGoTemplate(s string) string {
	out, err := e.RenderGoTemplateErr(s)
	if err != nil {
		return s
	}
	return out
}

// RenderGoTemplateErr behaves like RenderGoTemplate but returns an error when
// the template cannot be parsed or executed (including missing keys).
func (e *Env) RenderGoTemplateErr(s string) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	t, err := template.New("gotmpl").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, e.dataForTemplate()); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Process resolves placeholders leniently; used for URLs, headers and queries.
func (e *Env) Process(s string) string { return e.RenderGoTemplate(s) }

// ProcessStrict resolves placeholders and reports missing keys; used for bodies
// where a silent fallback would send a broken payload.
func (e *Env) ProcessStrict(s string) (string, error) {
	out, err := e.RenderGoTemplateErr(s)
	if err != nil {
		return "", fmt.Errorf("env: render template: %w", err)
	}
	return out, nil
}
