package call

import (
	"context"
	"sync"

	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/constants"
	"github.com/loykin/apiverify/pkg/transport"
)

// Assertions inspect a decoded response. Return an assertion-class error
// (Failf, AsAssertion) to fail the call; any other error marks it errored.
type Assertions[T any] func(status int, resp *ModelResponse[T], model T) error

// Callback runs after assertions passed. Its errors are classified like
// assertion errors.
type Callback[T any] func(status int, resp *ModelResponse[T], model T) error

// Option configures a Builder.
type Option func(*core)

func WithTransport(t transport.Transport) Option {
	return func(c *core) {
		if t == nil || isNil(t) {
			invalidArgument("transport", "must not be nil")
		}
		c.transport = t
	}
}

func WithEnvironment(env Environment) Option {
	return func(c *core) {
		if env == nil || isNil(env) {
			invalidArgument("environment", "must not be nil")
		}
		c.env = env
	}
}

func WithDecoders(ds ...Decoder) Option {
	return func(c *core) {
		for _, d := range ds {
			c.decoders.Register(d)
		}
	}
}

func WithListeners(ls ...Listener) Option {
	return func(c *core) {
		for _, l := range ls {
			c.publisher.Register(l)
		}
	}
}

// WithEvaluator sets the post-call script evaluator. nil disables scripts.
func WithEvaluator(ev ScriptEvaluator) Option {
	return func(c *core) { c.evaluator = ev }
}

func WithPostCallScript(script string) Option {
	return func(c *core) { c.script = script }
}

func WithLogger(l *common.Logger) Option {
	return func(c *core) { c.logger = l }
}

var defaultTransport = sync.OnceValue(func() transport.Transport {
	return transport.New(transport.Options{Timeout: constants.DefaultRequestTimeout})
})

// core is the configuration shared by every stage view of one builder.
type core struct {
	message            string
	request            Request
	publisher          *Publisher
	decoders           *Decoders
	transport          transport.Transport
	env                Environment
	evaluator          ScriptEvaluator
	script             string
	suppressAssertions bool
	bound              bool
	logger             *common.Logger
}

func (c *core) log() *common.Logger {
	if c.logger != nil {
		return c.logger
	}
	return common.GetLogger()
}

// description is "<request name> - <message>", or the request name alone.
func (c *core) description() string {
	name := c.request.Name()
	if c.message == "" {
		return name
	}
	return name + " - " + c.message
}

// Builder is the initial stage of a call. Narrow it to a model type with Bind,
// or Call it directly to run without decoding.
type Builder struct {
	core *core
	eng  *engine[any]
}

// New starts a call described by message and req. An invalid req panics
// with an *InvalidArgumentError.
func New(message string, req Request, opts ...Option) *Builder {
	if err := req.Validate(); err != nil {
		invalidArgument("request", err.Error())
	}
	c := &core{
		message:   message,
		request:   req,
		publisher: &Publisher{},
		decoders:  &Decoders{},
		env:       identityEnvironment{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.transport == nil {
		c.transport = defaultTransport()
	}
	return &Builder{core: c, eng: &engine[any]{core: c}}
}

// RegisterListener appends l to the listeners notified by every execution.
func (b *Builder) RegisterListener(l Listener) *Builder {
	b.core.publisher.Register(l)
	return b
}

// RegisterDecoder appends d to the decoder chain.
func (b *Builder) RegisterDecoder(d Decoder) *Builder {
	b.core.decoders.Register(d)
	return b
}

// SetSuppressAssertions skips assertions while still running callbacks.
func (b *Builder) SetSuppressAssertions(suppress bool) *Builder {
	b.core.suppressAssertions = suppress
	return b
}

// Description returns the text reported to listeners.
func (b *Builder) Description() string { return b.core.description() }

// Call executes the request without decoding a model.
func (b *Builder) Call(ctx context.Context) *PostExecution[any] {
	return b.eng.run(ctx)
}

// Bind narrows b to responses decoded as T. Listeners, decoders and options
// are kept. A builder can be bound once.
func Bind[T any](b *Builder) *Bound[T] {
	if b == nil {
		invalidArgument("builder", "must not be nil")
	}
	if b.core.bound {
		invalidArgument("model type", "builder is already bound")
	}
	b.core.bound = true
	return &Bound[T]{eng: &engine[T]{core: b.core, hint: HintFor[T]()}}
}

// Bound is a call with a model type.
type Bound[T any] struct{ eng *engine[T] }

func (s *Bound[T]) WithAssertions(a Assertions[T]) *Asserted[T] {
	if a == nil {
		invalidArgument("assertions", "must not be nil")
	}
	s.eng.assertions = a
	return &Asserted[T]{eng: s.eng}
}

func (s *Bound[T]) ThenDo(cb Callback[T]) *Executable[T] {
	return (&Asserted[T]{eng: s.eng}).ThenDo(cb)
}

func (s *Bound[T]) Call(ctx context.Context) *PostExecution[T] {
	return s.eng.run(ctx)
}

// Asserted is a bound call with assertions.
type Asserted[T any] struct{ eng *engine[T] }

func (s *Asserted[T]) ThenDo(cb Callback[T]) *Executable[T] {
	if cb == nil {
		invalidArgument("callback", "must not be nil")
	}
	s.eng.callback = cb
	return &Executable[T]{eng: s.eng}
}

func (s *Asserted[T]) Call(ctx context.Context) *PostExecution[T] {
	return s.eng.run(ctx)
}

// Executable is a fully configured call.
type Executable[T any] struct{ eng *engine[T] }

func (s *Executable[T]) Call(ctx context.Context) *PostExecution[T] {
	return s.eng.run(ctx)
}

// PostExecution exposes the results of the latest execution. Calling it again
// re-runs the whole pipeline and replaces every result.
type PostExecution[T any] struct{ eng *engine[T] }

// Model returns the decoded model, or the zero value if none was decoded.
func (p *PostExecution[T]) Model() T { return p.eng.model }

// Response returns the model response, or nil if none was computed.
func (p *PostExecution[T]) Response() *ModelResponse[T] { return p.eng.modelResponse }

func (p *PostExecution[T]) Context() *ExecutionContext { return p.eng.execCtx }
func (p *PostExecution[T]) Outcome() Outcome           { return p.eng.outcome }
func (p *PostExecution[T]) Err() error                 { return p.eng.err }
func (p *PostExecution[T]) Passed() bool               { return p.eng.outcome == OutcomePassed }

// RegisterListener adds l for subsequent executions. It is not notified about
// the execution that already finished.
func (p *PostExecution[T]) RegisterListener(l Listener) *PostExecution[T] {
	p.eng.core.publisher.Register(l)
	return p
}

func (p *PostExecution[T]) Call(ctx context.Context) *PostExecution[T] {
	return p.eng.run(ctx)
}
