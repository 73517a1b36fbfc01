package conduit

import (
	"errors"

	"go.uber.org/zap"
)

// Negative status codes returned to the orchestrator.
const (
	// CodeRecord marks a failure confined to one record. The session
	// can continue.
	CodeRecord = -1
	// CodeAbort marks a failure that ends the session.
	CodeAbort = -2
)

// ErrNotStarted is returned by callbacks invoked before PreSync succeeded.
var ErrNotStarted = errors.New("conduit: session not started")

// SyncError is a failed callback with the status code the orchestrator
// acts on.
type SyncError struct {
	Code int
	Msg  string
	Err  error
}

func (e *SyncError) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Code returns the status code carried by err: 0 for nil, the SyncError
// code when there is one, and CodeAbort otherwise.
func Code(err error) int {
	if err == nil {
		return 0
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeAbort
}

func recordError(msg string, err error) error {
	return &SyncError{Code: CodeRecord, Msg: msg, Err: err}
}

func abortError(msg string, err error) error {
	return &SyncError{Code: CodeAbort, Msg: msg, Err: err}
}

// Reporter shows a failure to the user driving the sync.
type Reporter interface {
	ReportError(msg string)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(msg string)

func (f ReporterFunc) ReportError(msg string) { f(msg) }

// LogReporter reports failures on a logger.
func LogReporter(logger *zap.Logger) Reporter {
	return ReporterFunc(func(msg string) {
		logger.Error("sync error", zap.String("message", msg))
	})
}
