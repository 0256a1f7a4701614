package types

import (
	"errors"
	"fmt"
)

// ErrorCode classifies engine errors into the three failure taxa.
type ErrorCode string

const (
	// ErrStaticCheck marks a bad graph configuration detected at compile
	// time. It aborts loading of the offending graph only.
	ErrStaticCheck ErrorCode = "STATIC_CHECK"
	// ErrFlowRuntime marks a failure during graph execution (unknown
	// condition type, missing switch target, ...). It fails the current
	// turn; the session survives.
	ErrFlowRuntime ErrorCode = "FLOW_RUNTIME"
	// ErrCollaborator marks a failed call to an external collaborator
	// (NLU, knowledge base, RPC target). Never retried by the engine.
	ErrCollaborator ErrorCode = "COLLABORATOR"
)

// Error is a structured engine error with code, node context, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Node      string    `json:"node,omitempty"`
	Field     string    `json:"field,omitempty"`
	RobotCode string    `json:"robot_code,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Node != "" {
		msg += fmt.Sprintf(" (node %s)", e.Node)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewStaticCheckError reports an invalid node or connection configuration.
func NewStaticCheckError(field, reason, node string) *Error {
	return &Error{Code: ErrStaticCheck, Message: reason, Field: field, Node: node}
}

// NewFlowError reports a runtime-flow failure for the current turn.
func NewFlowError(robotCode, node, reason string) *Error {
	return &Error{Code: ErrFlowRuntime, Message: reason, Node: node, RobotCode: robotCode}
}

// NewCollaboratorError wraps a failed external collaborator call.
func NewCollaboratorError(service string, cause error) *Error {
	return &Error{Code: ErrCollaborator, Message: service + " call failed", Cause: cause}
}

// CodeOf extracts the error code, looking through fmt.Errorf wrapping.
// Foreign errors yield "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsStaticCheck reports whether err is a compile-time configuration error.
func IsStaticCheck(err error) bool { return CodeOf(err) == ErrStaticCheck }

// IsFlowRuntime reports whether err is a runtime-flow error.
func IsFlowRuntime(err error) bool { return CodeOf(err) == ErrFlowRuntime }
