package csound

import (
	"errors"
	"fmt"
)

// Native return codes (csound.h CSOUND_STATUS).
const (
	Success        = 0
	Error          = -1
	Initialization = -2
	Performance    = -3
	Memory         = -4
	Signal         = -5
)

// ExitJmpSuccess is returned when compilation or performance was aborted
// without an error (e.g. --help).
const ExitJmpSuccess = 256

var (
	ErrLibraryNotLoaded = errors.New("csound: library not loaded")
	ErrAlreadyLoaded    = errors.New("csound: library already loaded with a different configuration")
	ErrSymbolNotFound   = errors.New("csound: symbol not found in library")
	ErrCreate           = errors.New("csound: failed to create instance")
	ErrClosed           = errors.New("csound: instance is closed")
	ErrThreadRunning    = errors.New("csound: performance thread still attached")
	ErrThreadAttached   = errors.New("csound: instance already has a performance thread")
	ErrThreadStopped    = errors.New("csound: performance thread stopped")
	ErrQueueClosed      = errors.New("csound: task queue shut down")
	ErrQueueAttached    = errors.New("csound: task queue already attached")
	ErrQueueInUse       = errors.New("csound: task queue attached to another thread")
	ErrCallbackSet      = errors.New("csound: process callback already set")
	ErrTimeout          = errors.New("csound: timed out waiting for render thread")
	ErrEmptyCode        = errors.New("csound: empty code")
	ErrNilTask          = errors.New("csound: nil task")
	ErrInvalidEvent     = errors.New("csound: invalid event kind")
	ErrChannelNotFound  = errors.New("csound: channel not found")
	ErrTableNotFound    = errors.New("csound: table not found")
	ErrBufferTooSmall   = errors.New("csound: buffer smaller than ksmps")
	ErrNotRecording     = errors.New("csound: not recording")
	ErrEvalFailed       = errors.New("csound: code evaluation failed")
)

// EngineError is a non-success status returned by the native engine.
type EngineError struct {
	Op   string
	Code int
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("csound: %s: %s (%d)", e.Op, statusText(e.Code), e.Code)
}

// IsEngineError reports whether err carries a native engine status.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// TaskPanicError wraps a panic recovered while running a task.
type TaskPanicError struct {
	TaskID string
	Value  any
}

func (e *TaskPanicError) Error() string {
	return fmt.Sprintf("csound: task %s panicked: %v", e.TaskID, e.Value)
}

// codeToError converts a native status to a Go error.
func codeToError(op string, code int32) error {
	if code == Success {
		return nil
	}
	return &EngineError{Op: op, Code: int(code)}
}

func statusText(code int) string {
	switch code {
	case Success:
		return "success"
	case Error:
		return "unspecified failure"
	case Initialization:
		return "initialization failed"
	case Performance:
		return "performance failed"
	case Memory:
		return "out of memory"
	case Signal:
		return "terminated by signal"
	case ExitJmpSuccess:
		return "aborted without error"
	default:
		return "unknown status"
	}
}
