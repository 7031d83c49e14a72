package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusTransport is the status code given to failures that never produced
// an HTTP response (DNS, refused connection, timeout).
const StatusTransport = 599

var (
	// ErrUnresolvedPlaceholder is returned when a path template still holds a
	// {name} placeholder after substitution.
	ErrUnresolvedPlaceholder = errors.New("unresolved path placeholder")

	// ErrBinaryTarget is returned when a binary response is requested for a
	// hook whose data type is not []byte.
	ErrBinaryTarget = errors.New("binary response requires []byte data")
)

// APIError is the normalized error shape handed to callers.
// StatusCode is always set.
type APIError struct {
	StatusCode  int    `json:"statusCode"`
	Time        string `json:"time,omitempty"`
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`

	cause error
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Message, e.Description)
}

func (e *APIError) Unwrap() error { return e.cause }

// FieldErrors decodes the field->message map carried by a reshaped 422.
func (e *APIError) FieldErrors() (map[string]string, bool) {
	if e == nil || e.StatusCode != http.StatusUnprocessableEntity {
		return nil, false
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(e.Description), &m); err != nil || len(m) == 0 {
		return nil, false
	}
	return m, true
}

// NoContent is the sentinel emitted for 204 responses and successful deletes.
func NoContent() *APIError {
	return &APIError{
		StatusCode:  http.StatusNoContent,
		Message:     "No Content",
		Description: "Deleted successfully",
	}
}

func unauthorized(desc string) *APIError {
	return &APIError{StatusCode: http.StatusUnauthorized, Message: "Unauthorized", Description: desc}
}

func transportFailure(err error) *APIError {
	return &APIError{
		StatusCode:  StatusTransport,
		Message:     "Network Error",
		Description: err.Error(),
		cause:       err,
	}
}

func invalidRequest(err error) *APIError {
	return &APIError{
		StatusCode:  http.StatusBadRequest,
		Message:     "Invalid Request",
		Description: err.Error(),
		cause:       err,
	}
}

// ResponseError is returned by transports that reject a response they did
// receive. NormalizeError treats it exactly like the response itself.
type ResponseError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("response %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("response %d", e.StatusCode)
}

func (e *ResponseError) Unwrap() error { return e.Err }

// Kind classifies a normalized error for callers that branch on outcome.
type Kind int

const (
	KindGeneric Kind = iota
	KindTransport
	KindAuth
	KindValidation
	KindNoContent
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuth:
		return "auth"
	case KindValidation:
		return "validation"
	case KindNoContent:
		return "no_content"
	default:
		return "generic"
	}
}

// Classify maps err onto a Kind. Errors that are not *APIError are generic.
func Classify(err error) Kind {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return KindGeneric
	}
	switch apiErr.StatusCode {
	case StatusTransport:
		return KindTransport
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	case http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusNoContent:
		return KindNoContent
	default:
		return KindGeneric
	}
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNoContent reports whether err is the 204 sentinel.
func IsNoContent(err error) bool {
	return Classify(err) == KindNoContent
}
