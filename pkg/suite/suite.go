// Package suite loads YAML call suites and runs them through the call pipeline.
package suite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/check"
	"github.com/loykin/apiverify/pkg/decode"
	"github.com/loykin/apiverify/pkg/script"
	"gopkg.in/yaml.v3"
)

// Suite is an ordered list of calls sharing an environment.
type Suite struct {
	Name    string            `yaml:"name"`
	BaseURL string            `yaml:"base_url"`
	Env     map[string]string `yaml:"env"`
	Calls   []Call            `yaml:"calls"`

	// Path is the file the suite was loaded from, if any.
	Path string `yaml:"-"`
}

// Call is one request with its expectations.
type Call struct {
	Name    string      `yaml:"name"`
	Request RequestSpec `yaml:"request"`
	// Decode names the decoder (text, json, yaml, map, path:<expr>). Empty
	// keeps the body as text.
	Decode             string            `yaml:"decode"`
	Expect             Expect            `yaml:"expect"`
	EnvFrom            map[string]string `yaml:"env_from"`
	Script             string            `yaml:"script"`
	SuppressAssertions bool              `yaml:"suppress_assertions"`
}

type RequestSpec struct {
	Method  string        `yaml:"method"`
	URL     string        `yaml:"url"`
	Headers []call.Header `yaml:"headers"`
	Queries []call.Query  `yaml:"queries"`
	// Body is sent as-is when it is a string; mappings and lists are sent as JSON.
	Body any    `yaml:"body"`
	Auth string `yaml:"auth"`
}

// Expect lists the checks applied to the response.
type Expect struct {
	Status     []int             `yaml:"status"`
	JSON       map[string]any    `yaml:"json"`
	Exists     []string          `yaml:"exists"`
	Headers    map[string]string `yaml:"headers"`
	Schema     string            `yaml:"schema"`
	SchemaFile string            `yaml:"schema_file"`
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read suite: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	if err := s.resolveSchemaFiles(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a suite document without validating it.
func Parse(data []byte) (*Suite, error) {
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	return &s, nil
}

func (s *Suite) resolveSchemaFiles(dir string) error {
	for i := range s.Calls {
		ex := &s.Calls[i].Expect
		if ex.SchemaFile == "" || ex.Schema != "" {
			continue
		}
		p := ex.SchemaFile
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("call %q: read schema: %w", s.Calls[i].Name, err)
		}
		ex.Schema = string(b)
	}
	return nil
}

// Validate reports every problem found in the suite.
func (s *Suite) Validate() error {
	var errs []error
	if len(s.Calls) == 0 {
		errs = append(errs, errors.New("suite has no calls"))
	}
	seen := map[string]bool{}
	for i, c := range s.Calls {
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		} else if seen[c.Name] {
			errs = append(errs, fmt.Errorf("call %q: duplicate name", c.Name))
		}
		seen[c.Name] = true
		if _, err := c.request(s.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", label, err))
		}
		if c.Decode != "" {
			if _, err := decode.ByName(c.Decode); err != nil {
				errs = append(errs, fmt.Errorf("call %s: %w", label, err))
			}
		}
		if c.Expect.Schema != "" {
			if _, err := check.Schema[any](c.Expect.Schema); err != nil {
				errs = append(errs, fmt.Errorf("call %s: %w", label, err))
			}
		}
		if err := script.Check(c.Script); err != nil {
			errs = append(errs, fmt.Errorf("call %s: %w", label, err))
		}
	}
	return errors.Join(errs...)
}

// request builds the call request; relative URLs are joined to baseURL.
func (c Call) request(baseURL string) (call.Request, error) {
	method := c.Request.Method
	if strings.TrimSpace(method) == "" {
		method = string(call.MethodGet)
	}
	m, err := call.ParseMethod(method)
	if err != nil {
		return call.Request{}, err
	}
	url := c.Request.URL
	if baseURL != "" && strings.HasPrefix(url, "/") {
		url = strings.TrimRight(baseURL, "/") + url
	}
	req := call.NewRequest(m, url)
	for _, h := range c.Request.Headers {
		req = req.WithHeader(h.Name, h.Value)
	}
	for _, q := range c.Request.Queries {
		req = req.WithQuery(q.Name, q.Value)
	}
	if c.Request.Body != nil {
		body, err := bodyText(c.Request.Body)
		if err != nil {
			return call.Request{}, err
		}
		req = req.WithBody(body)
	}
	if c.Request.Auth != "" {
		req = req.WithAuth(c.Request.Auth)
	}
	return req, req.Validate()
}

func bodyText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(b), nil
}
