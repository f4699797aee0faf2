package listener

import (
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/internal/store"
	"github.com/loykin/apiverify/pkg/call"
)

// RunRecorder persists finished calls. *store.Store implements it.
type RunRecorder interface {
	RecordRun(run store.Run) (int64, error)
}

// History stores every finished call. Storage errors are logged, never
// propagated into the call.
type History struct {
	Store RunRecorder
	RunID string
	// SaveBody keeps the response body with the run.
	SaveBody bool
	// Env returns the values to snapshot with each run, e.g. the extracted
	// env_from values. Nil records none.
	Env func() map[string]string
}

func NewHistory(s RunRecorder, runID string) *History {
	return &History{Store: s, RunID: runID}
}

func (h *History) CallStarted(call.StartedEvent) {}
func (h *History) CallFailed(call.FailedEvent)   {}
func (h *History) CallErrored(call.ErroredEvent) {}

func (h *History) CallFinished(e call.FinishedEvent) {
	run := store.Run{
		RunID:       h.RunID,
		CallID:      e.CallID,
		Description: e.Description,
		Method:      e.Method,
		URL:         e.URL,
		StatusCode:  statusOf(e.Response),
		Outcome:     e.Outcome.String(),
		DurationMS:  e.Duration.Milliseconds(),
	}
	if e.Err != nil {
		run.Error = common.MaskSensitiveData(e.Err.Error())
	}
	if h.SaveBody && e.Response != nil && e.Response.Response() != nil {
		body := e.Response.Response().Text()
		run.Body = &body
	}
	if h.Env != nil {
		run.Env = h.Env()
	}
	if _, err := h.Store.RecordRun(run); err != nil {
		common.GetLogger().WithComponent("history").WithCall(e.CallID, e.Description).
			Error("failed to record call run", "error", err)
	}
}
