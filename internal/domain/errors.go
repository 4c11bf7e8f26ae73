package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable category of an execution failure.
type ErrorKind string

const (
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindUpstreamFetch       ErrorKind = "upstream_fetch_failed"
	KindInvalidEncoding     ErrorKind = "invalid_encoding"
	KindInvalidJSON         ErrorKind = "invalid_json"
	KindMissingCodeField    ErrorKind = "missing_code_field"
	KindProgramNotFound     ErrorKind = "program_not_found"
	KindProgramExists       ErrorKind = "program_exists"
	KindLaunch              ErrorKind = "launch_failed"
	KindExecution           ErrorKind = "execution_failed"
	KindExecutionTimeout    ErrorKind = "execution_timeout"
	KindOutputDecode        ErrorKind = "output_decode_failed"
	KindOutputLimitExceeded ErrorKind = "output_limit_exceeded"
)

// Sentinels for errors.Is checks. Every *Error matches the sentinel of its kind.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrUpstreamFetch       = errors.New("content store fetch failed")
	ErrInvalidEncoding     = errors.New("blob is not valid utf-8")
	ErrInvalidJSON         = errors.New("blob is not valid json")
	ErrMissingCodeField    = errors.New("json blob missing code field")
	ErrProgramNotFound     = errors.New("program not found")
	ErrProgramExists       = errors.New("program already registered")
	ErrLaunch              = errors.New("interpreter launch failed")
	ErrExecution           = errors.New("program execution failed")
	ErrExecutionTimeout    = errors.New("program execution timed out")
	ErrOutputDecode        = errors.New("program output is not valid json")
	ErrOutputLimitExceeded = errors.New("program output limit exceeded")
)

var sentinels = map[ErrorKind]error{
	KindInvalidRequest:      ErrInvalidRequest,
	KindUpstreamFetch:       ErrUpstreamFetch,
	KindInvalidEncoding:     ErrInvalidEncoding,
	KindInvalidJSON:         ErrInvalidJSON,
	KindMissingCodeField:    ErrMissingCodeField,
	KindProgramNotFound:     ErrProgramNotFound,
	KindProgramExists:       ErrProgramExists,
	KindLaunch:              ErrLaunch,
	KindExecution:           ErrExecution,
	KindExecutionTimeout:    ErrExecutionTimeout,
	KindOutputDecode:        ErrOutputDecode,
	KindOutputLimitExceeded: ErrOutputLimitExceeded,
}

// Error is a terminal, request-scoped failure with a kind and a human message.
type Error struct {
	Kind    ErrorKind
	Message string
	// Engine names the interpreter family involved, when there was one.
	Engine Family
	// Cause is the harness diagnostic kind for execution failures, such as
	// "entry_point_undefined" or "user_exception".
	Cause string
	// Diagnostics holds captured interpreter stderr, possibly truncated.
	Diagnostics string
	Err         error
}

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		if s, ok := sentinels[e.Kind]; ok {
			msg = s.Error()
		} else {
			msg = string(e.Kind)
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel registered for the error's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// WithEngine returns a copy of e tagged with the interpreter family.
func (e *Error) WithEngine(engine Family) *Error {
	cp := *e
	cp.Engine = engine
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
