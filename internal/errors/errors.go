// Package errors defines the typed error surface of the realtime core.
// Every rejection a client can observe carries a stable numeric code.
package errors

import (
	"fmt"
)

type Fields map[string]interface{}

type APIError interface {
	error
	Code() int
	Message() string
	SetDetail(format string, args ...interface{}) APIError
	SetFields(f Fields) APIError
	GetFields() Fields
}

type apiError struct {
	code    int
	message string
	detail  string
	fields  Fields
}

func (e *apiError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("%s (%s)", e.message, e.detail)
	}

	return e.message
}

func (e *apiError) Code() int {
	return e.code
}

func (e *apiError) Message() string {
	return e.message
}

func (e *apiError) SetDetail(format string, args ...interface{}) APIError {
	e.detail = fmt.Sprintf(format, args...)

	return e
}

func (e *apiError) SetFields(f Fields) APIError {
	e.fields = f

	return e
}

func (e *apiError) GetFields() Fields {
	return e.fields
}

func define(code int, message string) func() APIError {
	return func() APIError {
		return &apiError{code: code, message: message}
	}
}

var (
	// Authentication: the connection is closed, no event is emitted.
	ErrUnauthorized = define(70401, "Unauthorized")

	// Validation: the action is dropped, an error event goes back to the
	// originating connection only.
	ErrInvalidPayload      = define(70420, "Invalid Payload")
	ErrPayloadTooLarge     = define(70421, "Payload Too Large")
	ErrMissingFields       = define(70422, "Missing Required Fields")
	ErrRateLimited         = define(70429, "Rate Limited")
	ErrUnknownConversation = define(70440, "Unknown Conversation")
	ErrUnknownCallSession  = define(70441, "Unknown Call Session")

	// State conflicts: a duplicate or stale event hit a session that is no
	// longer in the expected status. No mutation occurred.
	ErrStateConflict = define(70409, "State Conflict")

	ErrNoItems             = define(70404, "No Items Found")
	ErrInternalServerError = define(70500, "Internal Server Error")
)

// From wraps an arbitrary error as an APIError, passing APIErrors through.
func From(err error) APIError {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(APIError); ok {
		return apiErr
	}

	return ErrInternalServerError().SetDetail("%s", err.Error())
}
