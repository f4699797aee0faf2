package call

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
)

var (
	// ErrAssertion marks assertion-class failures. A call whose pipeline error
	// matches it with errors.Is ends as Failed; any other error ends as Errored.
	ErrAssertion = errors.New("assertion failed")

	// ErrInvalidArgument is matched by every *InvalidArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
)

// AssertionError is returned by assertions and callbacks that reject a response.
type AssertionError struct {
	Message string
	Cause   error
}

func (e *AssertionError) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" {
		return ErrAssertion.Error()
	}
	return e.Message
}

func (e *AssertionError) Is(target error) bool { return target == ErrAssertion }
func (e *AssertionError) Unwrap() error        { return e.Cause }

// Failf returns an assertion-class error with a formatted message.
func Failf(format string, args ...any) error {
	return &AssertionError{Message: fmt.Sprintf(format, args...)}
}

// AsAssertion marks err as assertion-class. nil stays nil.
func AsAssertion(err error) error {
	if err == nil || errors.Is(err, ErrAssertion) {
		return err
	}
	return &AssertionError{Cause: err}
}

// DecodeError reports that no decoder produced a model of the expected type.
type DecodeError struct {
	Expected reflect.Type
	Got      reflect.Type // set when a decoder produced a value of the wrong type
	Cause    error        // last decoder error, if any
}

func (e *DecodeError) Error() string {
	msg := "could not decode response into model of type " + typeName(e.Expected)
	if e.Got != nil {
		msg += ": decoder produced " + typeName(e.Got)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *DecodeError) Is(target error) bool { return target == ErrAssertion }
func (e *DecodeError) Unwrap() error        { return e.Cause }

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// TransportError wraps a connectivity or dispatch failure.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// InvalidArgumentError is the panic value for configuration mistakes such as a
// nil callback or binding a builder twice.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("call: invalid argument %s: %s", e.Arg, e.Reason)
}

func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func invalidArgument(arg, reason string) {
	panic(&InvalidArgumentError{Arg: arg, Reason: reason})
}

// PanicError carries a value recovered from a panicking pipeline step.
type PanicError struct {
	Value any
	Stack []byte
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: debug.Stack()}
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// Unwrap exposes an error panic value, so panic(call.Failf(...)) still counts
// as an assertion failure.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Outcome is the terminal classification of one execution.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePassed
	OutcomeFailed
	OutcomeErrored
)

func (o Outcome) String() string {
	switch o {
	case OutcomePassed:
		return "passed"
	case OutcomeFailed:
		return "failed"
	case OutcomeErrored:
		return "errored"
	default:
		return "pending"
	}
}

// Classify maps a pipeline error to its outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePassed
	case errors.Is(err, ErrAssertion):
		return OutcomeFailed
	default:
		return OutcomeErrored
	}
}
