// Package listener provides call.Listener implementations for logging,
// console reporting, history persistence and tracing.
package listener

import (
	"github.com/loykin/apiverify/internal/common"
	"github.com/loykin/apiverify/pkg/call"
)

// Log writes lifecycle events to a structured logger. Error texts pass
// through the global masker.
type Log struct {
	Logger *common.Logger
}

func NewLog(l *common.Logger) *Log { return &Log{Logger: l} }

func (l *Log) log() *common.Logger {
	if l.Logger != nil {
		return l.Logger.WithComponent("listener")
	}
	return common.GetLogger().WithComponent("listener")
}

func (l *Log) CallStarted(e call.StartedEvent) {
	l.log().WithCall(e.CallID, e.Description).Info("call started")
}

func (l *Log) CallFailed(e call.FailedEvent) {
	l.log().WithCall(e.CallID, e.Description).Warn("call failed",
		"status_code", statusOf(e.Response), "error", common.MaskSensitiveData(e.Err.Error()))
}

func (l *Log) CallErrored(e call.ErroredEvent) {
	l.log().WithCall(e.CallID, e.Description).Error("call errored",
		"error", common.MaskSensitiveData(e.Err.Error()))
}

func (l *Log) CallFinished(e call.FinishedEvent) {
	l.log().WithCall(e.CallID, e.Description).WithRequest(e.Method, e.URL).Info("call finished",
		"outcome", e.Outcome.String(), "status_code", statusOf(e.Response), "duration", e.Duration)
}

func statusOf(v call.ResponseView) int {
	if v == nil {
		return 0
	}
	return v.StatusCode()
}
