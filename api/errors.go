package api

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks failures where no response was received: dial
	// errors, timeouts, cancelled contexts.
	ErrTransport = errors.New("bitvavo: transport failure")
	// ErrAuthentication marks missing, invalid or insufficient credentials.
	ErrAuthentication = errors.New("bitvavo: authentication failed")
	ErrRateLimited    = errors.New("bitvavo: rate limited")
	// ErrDecode marks a successful response whose body could not be parsed.
	ErrDecode = errors.New("bitvavo: unexpected response")

	ErrMissingCredentials = fmt.Errorf("%w: api key and secret are required", ErrAuthentication)
)

const (
	codeRateLimitBan = 105
	codeAuthFirst    = 300
	codeAuthLast     = 317
)

// APIError is an error status returned by Bitvavo. Code and Message come from
// the {"errorCode": ..., "error": ...} body; Code is 0 when the body was not
// in that shape.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       int    `json:"errorCode"`
	Message    string `json:"error"`
	Action     string `json:"action,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("bitvavo: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bitvavo: %d: %s", e.Code, e.Message)
}

// Is lets callers classify remote errors with errors.Is(err, ErrAuthentication)
// and errors.Is(err, ErrRateLimited).
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAuthentication:
		return e.StatusCode == http.StatusUnauthorized ||
			e.StatusCode == http.StatusForbidden ||
			(e.Code >= codeAuthFirst && e.Code <= codeAuthLast)
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests || e.Code == codeRateLimitBan
	}
	return false
}
