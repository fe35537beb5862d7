// Package errors provides the error taxonomy of the catalog client.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrFormBusy        = errors.New("form submission already in progress")
)

// ValidationError is a local field check failure. It blocks the network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TransportError means the remote catalog service could not be reached or answered
// without a usable message: network failures, timeouts, an open circuit or an unparseable error body.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("catalog service responded with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("catalog service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ServiceError is a non-2xx response that carried a server message.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("catalog service rejected the request (status %d): %s", e.StatusCode, e.Message)
}

// UserMessage turns err into the text shown next to a form.
// Validation and service messages are shown verbatim, anything else falls back.
func UserMessage(err error, fallback string) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		return serviceErr.Message
	}
	return fallback
}
