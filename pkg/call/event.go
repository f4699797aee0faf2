package call

import "time"

type StartedEvent struct {
	CallID      string
	Description string
	Time        time.Time
}

type FailedEvent struct {
	CallID      string
	Description string
	Time        time.Time
	Response    ResponseView // nil when no model response was computed
	Err         error
}

type ErroredEvent struct {
	CallID      string
	Description string
	Time        time.Time
	Response    ResponseView
	Err         error
}

type FinishedEvent struct {
	CallID      string
	Description string
	Time        time.Time
	// Method and URL are the resolved request line, or the configured one
	// when the call failed before dispatch.
	Method   string
	URL      string
	Response ResponseView
	Outcome  Outcome
	Err      error
	Duration time.Duration
}

// Listener observes the lifecycle of executions. Every execution produces
// CallStarted, then at most one of CallFailed or CallErrored, then CallFinished.
type Listener interface {
	CallStarted(StartedEvent)
	CallFailed(FailedEvent)
	CallErrored(ErroredEvent)
	CallFinished(FinishedEvent)
}

// ListenerFuncs is a Listener built from optional functions.
type ListenerFuncs struct {
	OnStarted  func(StartedEvent)
	OnFailed   func(FailedEvent)
	OnErrored  func(ErroredEvent)
	OnFinished func(FinishedEvent)
}

func (l ListenerFuncs) CallStarted(e StartedEvent) {
	if l.OnStarted != nil {
		l.OnStarted(e)
	}
}

func (l ListenerFuncs) CallFailed(e FailedEvent) {
	if l.OnFailed != nil {
		l.OnFailed(e)
	}
}

func (l ListenerFuncs) CallErrored(e ErroredEvent) {
	if l.OnErrored != nil {
		l.OnErrored(e)
	}
}

func (l ListenerFuncs) CallFinished(e FinishedEvent) {
	if l.OnFinished != nil {
		l.OnFinished(e)
	}
}

// Publisher fans events out to listeners synchronously, in registration
// order. Registration is not safe for concurrent use.
type Publisher struct {
	listeners []Listener
}

// Register appends l. The same listener may be registered more than once.
func (p *Publisher) Register(l Listener) {
	if l == nil || isNil(l) {
		invalidArgument("listener", "must not be nil")
	}
	p.listeners = append(p.listeners, l)
}

func (p *Publisher) Listeners() []Listener {
	return append([]Listener(nil), p.listeners...)
}

func (p *Publisher) Started(e StartedEvent) {
	for _, l := range p.listeners {
		l.CallStarted(e)
	}
}

func (p *Publisher) Failed(e FailedEvent) {
	for _, l := range p.listeners {
		l.CallFailed(e)
	}
}

func (p *Publisher) Errored(e ErroredEvent) {
	for _, l := range p.listeners {
		l.CallErrored(e)
	}
}

func (p *Publisher) Finished(e FinishedEvent) {
	for _, l := range p.listeners {
		l.CallFinished(e)
	}
}
