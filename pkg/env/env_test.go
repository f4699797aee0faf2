package env

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestEnv_LookupPrefersLocal(t *testing.T) {
	e := &Env{
		Global: FromStringMap(map[string]string{"FOO": "global", "ONLY": "g"}),
		Local:  FromStringMap(map[string]string{"FOO": "local"}),
	}
	if v, ok := e.Lookup("FOO"); !ok || v != "local" {
		t.Fatalf("expected FOO=local, got ok=%v v=%q", ok, v)
	}
	if v, ok := e.Lookup("ONLY"); !ok || v != "g" {
		t.Fatalf("expected ONLY=g, got ok=%v v=%q", ok, v)
	}
	if _, ok := e.Lookup("MISSING"); ok {
		t.Fatalf("expected missing key to return ok=false")
	}
}

func TestEnv_Process(t *testing.T) {
	e := &Env{Global: FromStringMap(map[string]string{"base": "https://api.example", "id": "42"})}
	if got := e.Process("{{.env.base}}/users/{{.env.id}}"); got != "https://api.example/users/42" {
		t.Fatalf("unexpected render: %q", got)
	}
	if got := e.Process("hello {{.env.missing}}"); got != "hello {{.env.missing}}" {
		t.Fatalf("expected unchanged input on missing key, got %q", got)
	}
	if got := e.Process("no placeholders"); got != "no placeholders" {
		t.Fatalf("plain text changed: %q", got)
	}
}

func TestEnv_ProcessStrictReportsMissingKey(t *testing.T) {
	e := New()
	_ = e.SetString("global", "name", "ana")
	out, err := e.ProcessStrict(`{"name":"{{.env.name}}"}`)
	if err != nil || out != `{"name":"ana"}` {
		t.Fatalf("ProcessStrict = %q, %v", out, err)
	}
	if _, err := e.ProcessStrict(`{"x":"{{.env.nope}}"}`); err == nil {
		t.Fatalf("expected error for missing key")
	}
}

func TestEnv_TextTemplateDoesNotEscapeJSON(t *testing.T) {
	e := New()
	_ = e.Set("payload", `"quoted"&<b>`)
	if got := e.Process("{{.env.payload}}"); got != `"quoted"&<b>` {
		t.Fatalf("value escaped: %q", got)
	}
}

func TestEnv_SealBlocksSet(t *testing.T) {
	e := New()
	e.Seal()
	if err := e.Set("a", "b"); err == nil {
		t.Fatalf("expected sealed error")
	}
	c := e.Clone()
	if err := c.Set("a", "b"); err != nil {
		t.Fatalf("clone should be writable: %v", err)
	}
}

func TestEnv_CloneIsIndependent(t *testing.T) {
	e := New()
	_ = e.Set("k", "v1")
	c := e.Clone()
	_ = c.Set("k", "v2")
	if v, _ := e.Lookup("k"); v != "v1" {
		t.Fatalf("clone mutated source: %q", v)
	}
}

func TestEnv_LazyAuthResolvesOnce(t *testing.T) {
	e := New()
	calls := 0
	e.SetAuth("api", e.MakeLazy(func(*Env) (string, error) {
		calls++
		return "Bearer t0k", nil
	}))

	if got := e.Process("{{.auth.api}}"); got != "Bearer t0k" {
		t.Fatalf("auth render = %q", got)
	}
	if v, ok := e.AuthValue("API"); !ok || v != "Bearer t0k" {
		t.Fatalf("AuthValue = %q,%v", v, ok)
	}
	if calls != 1 {
		t.Fatalf("resolver called %d times, want 1", calls)
	}
}

func TestEnv_LazyAuthError(t *testing.T) {
	e := New()
	l := e.MakeLazy(func(*Env) (string, error) { return "", errors.New("denied") })
	e.SetAuth("api", l)
	if _, ok := e.AuthValue("api"); ok {
		t.Fatalf("failed provider must not yield a value")
	}
	if _, err := l.Value(); err == nil || !strings.Contains(err.Error(), "denied") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestEnv_LazyRetriesAfterErrorAndResets(t *testing.T) {
	e := New()
	calls := 0
	l := e.MakeLazy(func(*Env) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("unavailable")
		}
		return fmt.Sprintf("tok-%d", calls), nil
	})
	if _, err := l.Value(); err == nil {
		t.Fatalf("first resolution should fail")
	}
	if v, err := l.Value(); err != nil || v != "tok-2" {
		t.Fatalf("retry = %q, %v", v, err)
	}
	if l.String() != "tok-2" || calls != 2 {
		t.Fatalf("value should be cached, calls=%d", calls)
	}
	l.Reset()
	if l.String() != "tok-3" {
		t.Fatalf("reset should resolve again")
	}
}

func TestEnv_UnmarshalYAML(t *testing.T) {
	var doc struct {
		Env Env `yaml:"env"`
	}
	if err := yaml.Unmarshal([]byte("env:\n  user: bob\n"), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := doc.Env.Lookup("user"); !ok || v != "bob" {
		t.Fatalf("expected user=bob, got %q", v)
	}
}

func TestEnv_LoadOSEnv(t *testing.T) {
	t.Setenv("APIVERIFY_TEST_BASE", "http://localhost")
	e := New()
	e.LoadOSEnv("APIVERIFY_TEST_")
	if v, ok := e.Lookup("BASE"); !ok || v != "http://localhost" {
		t.Fatalf("expected BASE from OS env, got %q,%v", v, ok)
	}
}

func TestEnv_LocalValues(t *testing.T) {
	e := New()
	_ = e.SetString("global", "g", "1")
	_ = e.Set("id", "42")
	got := e.LocalValues()
	if len(got) != 1 || got["id"] != "42" {
		t.Fatalf("LocalValues = %v", got)
	}
}
