package broker

import (
	"errors"
	"fmt"
)

// ErrRateLimited is returned for HTTP 429. It is a soft condition: there is
// simply no data this cycle.
var ErrRateLimited = errors.New("rate limited")

// StatusError is a non-2xx response other than 429.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d, body: %.200s", e.Path, e.StatusCode, e.Body)
}

// SchemaError means the body matched none of the accepted shapes. Err is the
// failure of the last shape tried; Body is the raw payload.
type SchemaError struct {
	Body string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unrecognized response shape: %v", e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// BusinessError is an application-level failure carried in a 200 response.
type BusinessError struct {
	Code    string
	Message string
	Body    string
}

func (e *BusinessError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
	case e.Code != "":
		return "remote error " + e.Code
	default:
		return "remote error: " + e.Message
	}
}

// IsSoft reports whether err is an expected condition that must not be
// treated as a failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
