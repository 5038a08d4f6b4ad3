// Package legionerr defines the core's error taxonomy. Every error the
// runtime returns across a component boundary is one of these types, so
// callers can branch on kind with errors.As instead of parsing strings.
package legionerr

import (
	"errors"
	"fmt"
)

// Kind discriminates the error taxonomy from spec §7.
type Kind string

const (
	KindParticipant Kind = "participant_error"
	KindDepth       Kind = "depth_exceeded"
	KindIteration   Kind = "iteration_exceeded"
	KindTool        Kind = "tool_error"
	KindAuth        Kind = "auth_error"
	KindProvider    Kind = "provider_error"
	KindSuspension  Kind = "suspension_error"
	KindCancelled   Kind = "cancelled_error"
)

// Error is the concrete error type for every Kind above. It carries enough
// structured context to log without string-parsing and to recover the
// original cause via errors.Unwrap.
type Error struct {
	Kind    Kind
	Message string

	// Context fields, populated as relevant to Kind.
	ParticipantID  string
	ToolName       string
	ToolCallID     string
	RequestID      string
	ConversationID string
	Chain          []string

	Cause error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target shares this error's Kind, so callers can write
// errors.Is(err, legionerr.New(legionerr.KindDepth, "")).
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New builds an Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given Kind around a cause.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ParticipantError reports an unknown id, a retired target, or a self-send
// attempt.
func ParticipantError(id, message string) *Error {
	return &Error{Kind: KindParticipant, ParticipantID: id, Message: message}
}

// DepthExceeded reports that the communication chain reached max_depth.
func DepthExceeded(chain []string, maxDepth int) *Error {
	return &Error{
		Kind:    KindDepth,
		Chain:   chain,
		Message: fmt.Sprintf("communication chain depth %d exceeds max_depth %d", len(chain), maxDepth),
	}
}

// IterationExceeded reports that the Agent Runtime hit max_iterations.
func IterationExceeded(conversationID string, maxIterations int) *Error {
	return &Error{
		Kind:           KindIteration,
		ConversationID: conversationID,
		Message:        fmt.Sprintf("exceeded max_iterations (%d)", maxIterations),
	}
}

// ToolErr reports an unknown tool, a failed execute, or a schema
// validation failure.
func ToolErr(toolName, toolCallID string, cause error) *Error {
	return &Error{Kind: KindTool, ToolName: toolName, ToolCallID: toolCallID, Cause: cause}
}

// AuthErr reports a policy denial or an unresolvable approver.
func AuthErr(participantID, toolName, reason string) *Error {
	return &Error{Kind: KindAuth, ParticipantID: participantID, ToolName: toolName, Message: reason}
}

// ProviderErr reports a transport, rate-limit, or malformed-completion
// failure from a Provider Adapter.
func ProviderErr(cause error) *Error {
	return &Error{Kind: KindProvider, Cause: cause}
}

// SuspensionErr reports a closed approval channel or an unknown request id.
func SuspensionErr(requestID, message string) *Error {
	return &Error{Kind: KindSuspension, RequestID: requestID, Message: message}
}

// CancelledErr reports cooperative cancellation of a dispatch.
func CancelledErr(conversationID string) *Error {
	return &Error{Kind: KindCancelled, ConversationID: conversationID, Message: "dispatch cancelled"}
}

// Is reports whether err is a legionerr.Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Recoverable reports whether err should be materialized as a tool-result
// so the agent can continue, per spec §7's propagation policy: ToolError
// and AuthError are recovered locally; everything else aborts the dispatch.
func Recoverable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindTool || e.Kind == KindAuth
}
