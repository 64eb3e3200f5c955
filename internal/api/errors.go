package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes mirrored from the server's error responses.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeNotFound     = "not_found"
	ErrCodeBadRequest   = "bad_request"
	ErrCodeServer       = "server_error"
)

// Error is a non-2xx API response with the server's error code attached.
type Error struct {
	Code    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("api error %s (status %d)", e.Code, e.Status)
}

// IsUnauthorized reports whether err is an API error with the
// unauthorized code, meaning the stored token is missing or expired.
func IsUnauthorized(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == ErrCodeUnauthorized
}

func apiError(resp *http.Response) error {
	e := &Error{Status: resp.StatusCode}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		e.Message = body.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		e.Code = ErrCodeUnauthorized
	case http.StatusNotFound:
		e.Code = ErrCodeNotFound
	case http.StatusBadRequest:
		e.Code = ErrCodeBadRequest
	default:
		e.Code = ErrCodeServer
	}
	return e
}
