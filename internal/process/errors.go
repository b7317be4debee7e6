package process

import "fmt"

// ProcessingError is a structural failure that aborts the current
// ProcessText call: missing configuration dependencies, missing actor or
// command records, nil input, or broken persistence. It is distinct from
// expected, user-visible outcomes (denials, compile failures, unknown
// routing destinations), which never surface as errors.
//
// The transport event loop is expected to catch and log it, then continue
// serving subsequent events; nothing in this package terminates the host
// process.
type ProcessingError struct {
	Stage string
	Err   error
}

func (e *ProcessingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("processing error at %s", e.Stage)
	}
	return fmt.Sprintf("processing error at %s: %v", e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

func procErr(stage string, err error) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: err}
}

func procErrf(stage, format string, args ...any) *ProcessingError {
	return &ProcessingError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
