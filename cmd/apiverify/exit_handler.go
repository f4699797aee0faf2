package main

import (
	"errors"
	"os"

	"github.com/loykin/apiverify/internal/common"
)

// errCallsFailed signals a completed run in which some call did not pass.
var errCallsFailed = errors.New("one or more calls failed")

// ExitHandler provides a testable way to handle program termination
type ExitHandler interface {
	Exit(code int)
	LogFatalError(err error, msg string, keyvals ...any)
}

type DefaultExitHandler struct{}

func (h *DefaultExitHandler) Exit(code int) { os.Exit(code) }

// LogFatalError logs err and exits with status 1. Failed calls were already
// reported, so they only set the status.
func (h *DefaultExitHandler) LogFatalError(err error, msg string, keyvals ...any) {
	if !errors.Is(err, errCallsFailed) {
		all := append([]any{"error", err}, keyvals...)
		common.GetLogger().WithComponent("main").Error(msg, all...)
	}
	h.Exit(1)
}

var exitHandler ExitHandler = &DefaultExitHandler{}
