package listener

import (
	"sync"

	"github.com/loykin/apiverify/pkg/call"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindStarted  Kind = "started"
	KindFailed   Kind = "failed"
	KindErrored  Kind = "errored"
	KindFinished Kind = "finished"
)

// Event is a flattened lifecycle event kept by Recorder.
type Event struct {
	Kind        Kind
	CallID      string
	Description string
	StatusCode  int
	Outcome     call.Outcome
	Err         error
}

// Recorder keeps every event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) CallStarted(e call.StartedEvent) {
	r.add(Event{Kind: KindStarted, CallID: e.CallID, Description: e.Description})
}

func (r *Recorder) CallFailed(e call.FailedEvent) {
	r.add(Event{Kind: KindFailed, CallID: e.CallID, Description: e.Description, StatusCode: statusOf(e.Response), Outcome: call.OutcomeFailed, Err: e.Err})
}

func (r *Recorder) CallErrored(e call.ErroredEvent) {
	r.add(Event{Kind: KindErrored, CallID: e.CallID, Description: e.Description, StatusCode: statusOf(e.Response), Outcome: call.OutcomeErrored, Err: e.Err})
}

func (r *Recorder) CallFinished(e call.FinishedEvent) {
	r.add(Event{Kind: KindFinished, CallID: e.CallID, Description: e.Description, StatusCode: statusOf(e.Response), Outcome: e.Outcome, Err: e.Err})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds in arrival order.
func (r *Recorder) Kinds() []Kind {
	evs := r.Events()
	out := make([]Kind, len(evs))
	for i, e := range evs {
		out[i] = e.Kind
	}
	return out
}

// Finished returns only the finished events.
func (r *Recorder) Finished() []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Kind == KindFinished {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
