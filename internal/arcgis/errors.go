package arcgis

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/censusgeo/internal/resilience"
)

// TransportError indicates a network-level failure (connect, timeout, reset)
// talking to the feature service. Transport errors are retried by the
// request-level retry policy before being surfaced.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("arcgis: transport error for %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is an error reported by the feature service itself, either as
// a non-200 HTTP status or as an error envelope inside a 200 response.
type ServiceError struct {
	Code    int
	Message string
	Details []string
}

func (e *ServiceError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("arcgis: service error %d: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("arcgis: service error %d: %s", e.Code, e.Message)
}

// Transient reports whether the service error matches a known transient
// condition worth retrying with a smaller page size. ArcGIS servers report
// query-timeout style failures as code 500.
func (e *ServiceError) Transient() bool {
	return e.Code == 500 || resilience.IsTransientHTTPStatus(e.Code)
}

// DecodeError indicates a malformed or undecodable response body. Decode
// errors are fatal immediately and never retried.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("arcgis: undecodable response from %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsRetriableTransport classifies errors for the request-level retry policy:
// only transport failures are retried in place. Service errors, transient or
// not, are left for the paged fetch's shrink-and-retry ladder.
func IsRetriableTransport(err error) bool {
	var se *ServiceError
	if eris.As(err, &se) {
		return false
	}
	var de *DecodeError
	if eris.As(err, &de) {
		return false
	}
	var te *TransportError
	if eris.As(err, &te) {
		return true
	}
	return resilience.IsTransient(err)
}

// IsTransient classifies errors for the circuit breaker: transport errors
// and transient service errors count as failures, decode errors never do.
func IsTransient(err error) bool {
	var de *DecodeError
	if eris.As(err, &de) {
		return false
	}
	var se *ServiceError
	if eris.As(err, &se) {
		return se.Transient()
	}
	var te *TransportError
	if eris.As(err, &te) {
		return true
	}
	return resilience.IsTransient(err)
}
