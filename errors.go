// errors.go: error taxonomy for the Consul HTTP API client
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGLIra library
// SPDX-License-Identifier: MPL-2.0

package consul

import (
	"errors"
	"fmt"
)

// Stable error codes used with github.com/agilira/go-errors.
//
// Every failure surfaced by this library carries exactly one of these
// codes, or is a *APIError for non-2xx responses. Callers can branch on
// the code without parsing message text.
const (
	// ErrCodeInvalidConfig indicates malformed configuration input
	// (bad address, bad timeout, bad auth spec, invalid key path).
	// Surfaced at construction or before a request is sent.
	ErrCodeInvalidConfig = "CONSUL_INVALID_CONFIG"

	// ErrCodeTransport indicates a connection-level failure (refused,
	// reset, timeout). Never retried internally outside Watch.
	ErrCodeTransport = "CONSUL_TRANSPORT_ERROR"

	// ErrCodeDecode indicates a response body that does not match the
	// expected JSON schema.
	ErrCodeDecode = "CONSUL_DECODE_ERROR"

	// ErrCodeClientClosed indicates an operation was attempted after
	// Close.
	ErrCodeClientClosed = "CONSUL_CLIENT_CLOSED"

	// ErrCodeResourceLimit indicates a client-side resource limit was
	// exceeded (concurrent requests, active watches, response size).
	ErrCodeResourceLimit = "CONSUL_RESOURCE_LIMIT_EXCEEDED"
)

// APIError is returned when the Consul agent answers with a non-2xx
// status. It carries the exact status code received and the response
// body, so callers can distinguish ACL denials (403) from rate limits
// (429) or server faults (5xx).
type APIError struct {
	// StatusCode is the HTTP status code returned by the agent.
	StatusCode int

	// Body is the raw response body, usually a short plain-text reason.
	Body string

	// Method and Path identify the request that failed.
	Method string
	Path   string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("consul: %s %s: unexpected status %d: %s",
		e.Method, e.Path, e.StatusCode, e.Body)
}

// AsAPIError unwraps err into a *APIError if the failure was a non-2xx
// response from the agent.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsServerError reports whether err is an APIError with a 5xx status.
func IsServerError(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.StatusCode >= 500
}
