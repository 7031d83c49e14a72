package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
)

// fieldErrorRe matches repeated "object.field: message" groups separated by
// commas. Messages cannot contain commas.
var fieldErrorRe = regexp.MustCompile(`(\w+)\.(\w+): (.*?)(,|$)`)

// Operational 422s carry one of these words and are not per-field errors.
var operationalMarkers = []string{"JSON", "CSV", "Refresh Token", "file"}

const maxRawDescription = 512

// Normalize classifies a completed exchange. Exactly one of payload or the
// error is meaningful: a nil error means success (payload may be empty).
func Normalize(method string, status int, body []byte) ([]byte, *APIError) {
	if status >= 200 && status < 300 {
		if status == http.StatusNoContent || method == http.MethodDelete {
			return nil, NoContent()
		}
		if len(body) == 0 {
			return nil, nil
		}
		return body, nil
	}

	switch status {
	case http.StatusUnauthorized:
		return nil, &APIError{StatusCode: status, Message: "Unauthorized"}
	case http.StatusForbidden:
		return nil, &APIError{StatusCode: status, Message: "Forbidden"}
	}

	apiErr := decodeServerError(status, body)
	if status == http.StatusUnprocessableEntity {
		reshapeFieldErrors(apiErr)
	}
	return nil, apiErr
}

// NormalizeError converts a client-side failure into an *APIError. A
// *ResponseError anywhere in the chain is normalized as the response it carries.
func NormalizeError(method string, err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var respErr *ResponseError
	if errors.As(err, &respErr) {
		if _, normalized := Normalize(method, respErr.StatusCode, respErr.Body); normalized != nil {
			normalized.cause = err
			return normalized
		}
		// A transport rejecting a 2xx response is still a failure.
		return transportFailure(err)
	}

	return transportFailure(err)
}

// ParseFieldErrors scans a validation description into a field->message map.
// The key is the field part of "object.field".
func ParseFieldErrors(description string) (map[string]string, bool) {
	matches := fieldErrorRe.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return nil, false
	}
	out := make(map[string]string, len(matches))
	for _, m := range matches {
		out[m[2]] = m[3]
	}
	return out, true
}

func decodeServerError(status int, body []byte) *APIError {
	var e APIError
	if err := json.Unmarshal(body, &e); err != nil || (e.StatusCode == 0 && e.Message == "" && e.Description == "") {
		return &APIError{
			StatusCode:  status,
			Message:     http.StatusText(status),
			Description: truncate(strings.TrimSpace(string(body)), maxRawDescription),
		}
	}
	if e.StatusCode == 0 {
		e.StatusCode = status
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return &e
}

func reshapeFieldErrors(e *APIError) {
	for _, marker := range operationalMarkers {
		if strings.Contains(e.Description, marker) {
			return
		}
	}

	fields, ok := ParseFieldErrors(e.Description)
	if !ok {
		return
	}
	encoded, err := json.Marshal(fields)
	if err != nil {
		return
	}
	e.Description = string(encoded)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
