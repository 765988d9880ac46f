package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrInvalidQuery indicates that the user's query could not be accepted.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrProviderUnavailable indicates that the retrieval provider failed.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrNoArticles indicates that synthesis was requested with no articles.
	// This is a caller contract violation, not a runtime condition.
	ErrNoArticles = errors.New("no articles")

	// ErrInvalidRecipient indicates a syntactically invalid destination address.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrDeliveryFailed indicates that the transport reported a send failure.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrSessionNotFound indicates that no session exists for the given ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionTerminal indicates an operation on a completed or abandoned session.
	ErrSessionTerminal = errors.New("session is terminal")

	// ErrRateLimited indicates that an external call was rate limited.
	ErrRateLimited = errors.New("rate limited")

	// ErrInternalError indicates an internal error that abandons the session.
	ErrInternalError = errors.New("internal error")
)

// InvalidQueryReason classifies why a query was rejected.
type InvalidQueryReason string

const (
	ReasonEmpty     InvalidQueryReason = "empty"
	ReasonOffTopic  InvalidQueryReason = "off-topic"
	ReasonAmbiguous InvalidQueryReason = "ambiguous"
)

// InvalidQueryError provides details about a rejected query.
type InvalidQueryError struct {
	Reason InvalidQueryReason
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidQueryError) Unwrap() error {
	return ErrInvalidQuery
}

// InvalidRecipientError provides details about a rejected destination address.
type InvalidRecipientError struct {
	Address string
}

// Error implements the error interface.
func (e *InvalidRecipientError) Error() string {
	return fmt.Sprintf("invalid recipient address: %q", e.Address)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidRecipientError) Unwrap() error {
	return ErrInvalidRecipient
}

// ExternalAPIError provides details about an external API error.
type ExternalAPIError struct {
	Source     string
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// InvalidTransitionError reports a disallowed session state transition.
type InvalidTransitionError struct {
	From SessionState
	To   SessionState
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *InvalidTransitionError) Unwrap() error {
	return ErrInternalError
}

// NewInvalidQueryError creates a new InvalidQueryError.
func NewInvalidQueryError(reason InvalidQueryReason) *InvalidQueryError {
	return &InvalidQueryError{Reason: reason}
}

// NewInvalidRecipientError creates a new InvalidRecipientError.
func NewInvalidRecipientError(address string) *InvalidRecipientError {
	return &InvalidRecipientError{Address: address}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source string, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewInvalidTransitionError creates a new InvalidTransitionError.
func NewInvalidTransitionError(from, to SessionState) *InvalidTransitionError {
	return &InvalidTransitionError{From: from, To: to}
}
