package shopclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Error kind labels recorded in statistics.
const (
	KindNotFound  = "not_found"
	KindNetwork   = "transient_network"
	KindServer    = "transient_server"
	KindMalformed = "malformed_response"
	KindOther     = "other"
)

// ErrNotFound indicates the shop does not exist (HTTP 404). Terminal.
type ErrNotFound struct {
	Shop string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("not_found: shop %q does not exist", e.Shop)
}

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrServer indicates an HTTP error response. Retryable for 5xx and 429.
type ErrServer struct {
	Status int
	Err    error
}

func (e ErrServer) Error() string {
	return fmt.Sprintf("http %d: %v", e.Status, e.Err)
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// ErrMalformed indicates an unparseable response payload. Terminal per shop,
// not a circuit fault.
type ErrMalformed struct {
	Err error
}

func (e ErrMalformed) Error() string {
	return fmt.Errorf("malformed response: %w", e.Err).Error()
}

func (e ErrMalformed) Unwrap() error {
	return e.Err
}

// Classify converts a transport error and observed status code into the
// taxonomy above.
func Classify(shop string, err error, statusCode int) error {
	switch {
	case statusCode == http.StatusNotFound:
		return ErrNotFound{Shop: shop}
	case statusCode != 0 && (statusCode < 200 || statusCode >= 300):
		wrapped := err
		if wrapped == nil {
			wrapped = errors.New(http.StatusText(statusCode))
		}
		return ErrServer{Status: statusCode, Err: wrapped}
	}

	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	return err
}

// Retryable reports whether a classified error is worth another attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return false
	}
	var malformed ErrMalformed
	if errors.As(err, &malformed) {
		return false
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return true
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return true
	}
	var server ErrServer
	if errors.As(err, &server) {
		return server.Status >= 500 || server.Status == http.StatusTooManyRequests
	}
	return false
}

// CircuitFault reports whether an error should count against the circuit
// breaker. Shop absence and data issues are not faults of the remote system.
func CircuitFault(err error) bool {
	if err == nil {
		return false
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return false
	}
	var malformed ErrMalformed
	if errors.As(err, &malformed) {
		return false
	}
	return true
}

// Kind returns the statistics label for a classified error.
func Kind(err error) string {
	if err == nil {
		return KindOther
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return KindNotFound
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return KindNetwork
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return KindNetwork
	}
	var malformed ErrMalformed
	if errors.As(err, &malformed) {
		return KindMalformed
	}
	var server ErrServer
	if errors.As(err, &server) {
		if server.Status >= 500 || server.Status == http.StatusTooManyRequests {
			return KindServer
		}
		return fmt.Sprintf("http_%d", server.Status)
	}
	return KindOther
}
