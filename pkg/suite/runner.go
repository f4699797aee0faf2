package suite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/util"
	"github.com/loykin/apiverify/pkg/call"
	"github.com/loykin/apiverify/pkg/check"
	"github.com/loykin/apiverify/pkg/decode"
	"github.com/loykin/apiverify/pkg/env"
	"github.com/loykin/apiverify/pkg/transport"
)

// headerPrefix marks an env_from source read from a response header.
const headerPrefix = "header:"

// Result is the outcome of one suite call.
type Result struct {
	Name        string
	Description string
	Outcome     call.Outcome
	StatusCode  int
	Err         error
	Duration    time.Duration
}

// Summary collects the results of one suite run.
type Summary struct {
	RunID   string
	Suite   string
	Results []Result
	Passed  int
	Failed  int
	Errored int
	Skipped int
}

// OK reports whether every call passed.
func (s *Summary) OK() bool { return s.Failed == 0 && s.Errored == 0 }

func (s *Summary) add(r Result) {
	s.Results = append(s.Results, r)
	switch r.Outcome {
	case call.OutcomePassed:
		s.Passed++
	case call.OutcomeFailed:
		s.Failed++
	default:
		s.Errored++
	}
}

// Runner executes suites sequentially. Values extracted by env_from and
// post-call scripts land in Env and are visible to later calls.
type Runner struct {
	Transport transport.Transport
	Env       *env.Env
	Listeners []call.Listener
	Evaluator call.ScriptEvaluator
	Logger    *common.Logger
	// FailFast stops the suite at the first call that did not pass.
	FailFast bool
}

// NewRunID returns a fresh suite run identifier.
func NewRunID() string { return uuid.NewString() }

func (r *Runner) log() *common.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return common.GetLogger()
}

// Run executes s. An empty runID is replaced by a new one.
func (r *Runner) Run(ctx context.Context, s *Suite, runID string) (*Summary, error) {
	if s == nil {
		return nil, errors.New("suite is nil")
	}
	if runID == "" {
		runID = NewRunID()
	}
	if r.Env == nil {
		r.Env = env.New()
	}
	for k, v := range s.Env {
		if err := r.Env.SetString("global", k, v); err != nil {
			return nil, fmt.Errorf("suite env %q: %w", k, err)
		}
	}
	logger := r.log().WithComponent("suite").WithRun(runID)
	logger.Info("suite started", "suite", s.Name, "calls", len(s.Calls))

	sum := &Summary{RunID: runID, Suite: s.Name}
	for i, c := range s.Calls {
		if err := ctx.Err(); err != nil {
			sum.Skipped += len(s.Calls) - i
			return sum, err
		}
		res, err := r.runCall(ctx, s, c)
		if err != nil {
			return sum, err
		}
		sum.add(res)
		if r.FailFast && res.Outcome != call.OutcomePassed {
			sum.Skipped = len(s.Calls) - i - 1
			logger.Warn("stopping suite after failure", "call", c.Name, "skipped", sum.Skipped)
			break
		}
	}
	logger.Info("suite finished", "suite", s.Name, "passed", sum.Passed, "failed", sum.Failed, "errored", sum.Errored)
	return sum, nil
}

func (r *Runner) runCall(ctx context.Context, s *Suite, c Call) (Result, error) {
	req, err := c.request(s.BaseURL)
	if err != nil {
		return Result{}, fmt.Errorf("call %q: %w", c.Name, err)
	}
	opts := []call.Option{
		call.WithEnvironment(r.Env),
		call.WithListeners(r.Listeners...),
		call.WithEvaluator(r.Evaluator),
		call.WithPostCallScript(c.Script),
		call.WithLogger(r.log()),
	}
	if r.Transport != nil {
		opts = append(opts, call.WithTransport(r.Transport))
	}
	b := call.New(c.Name, req, opts...).SetSuppressAssertions(c.SuppressAssertions)

	if c.Decode == "" {
		b.RegisterDecoder(decode.Text{})
		return execute[string](ctx, b, c, r.Env)
	}
	d, err := decode.ByName(c.Decode)
	if err != nil {
		return Result{}, fmt.Errorf("call %q: %w", c.Name, err)
	}
	b.RegisterDecoder(d)
	return execute[any](ctx, b, c, r.Env)
}

func execute[T any](ctx context.Context, b *call.Builder, c Call, e *env.Env) (Result, error) {
	assertions, err := expectations[T](c.Expect)
	if err != nil {
		return Result{}, fmt.Errorf("call %q: %w", c.Name, err)
	}
	start := time.Now()
	post := call.Bind[T](b).
		WithAssertions(assertions).
		ThenDo(extract[T](c.EnvFrom, e)).
		Call(ctx)

	res := Result{Name: c.Name, Description: b.Description(), Outcome: post.Outcome(), Err: post.Err(), Duration: time.Since(start)}
	if resp := post.Response(); resp != nil {
		res.StatusCode = resp.StatusCode()
	}
	return res, nil
}

func expectations[T any](ex Expect) (call.Assertions[T], error) {
	as := []call.Assertions[T]{check.Status[T](ex.Status...)}
	for path, want := range ex.JSON {
		as = append(as, check.JSONPath[T](path, want))
	}
	for _, path := range ex.Exists {
		as = append(as, check.JSONPathExists[T](path))
	}
	for name, want := range ex.Headers {
		as = append(as, check.Header[T](name, want))
	}
	if ex.Schema != "" {
		sch, err := check.Schema[T](ex.Schema)
		if err != nil {
			return nil, err
		}
		as = append(as, sch)
	}
	return check.All(as...), nil
}

// extract copies env_from values into e. A missing source fails the call.
func extract[T any](from map[string]string, e *env.Env) call.Callback[T] {
	return func(_ int, resp *call.ModelResponse[T], _ T) error {
		for key, src := range from {
			var val string
			if name, ok := strings.CutPrefix(src, headerPrefix); ok {
				val = resp.Response().Header(strings.TrimSpace(name))
				if val == "" {
					return call.Failf("env_from %q: header %q missing", key, name)
				}
			} else {
				res, ok := util.LookupJSON(resp.Response().Body, src)
				if !ok {
					return call.Failf("env_from %q: json path %q not found", key, src)
				}
				val = util.ValueString(res.Value())
			}
			if err := e.Set(key, val); err != nil {
				return err
			}
		}
		return nil
	}
}
