package designmynight

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRequestFailed     = errors.New("provider request failed")
	ErrBookingValidation = errors.New("booking validation failed")
	ErrBookingRejected   = errors.New("booking rejected")
	ErrMalformedResponse = errors.New("malformed provider response")
)

// RequestFailedError is returned once every attempt of a provider call failed.
type RequestFailedError struct {
	Method   string
	Path     string
	Attempts int
	// StatusCode is the last HTTP status seen, 0 for transport failures.
	StatusCode int
	Err        error
}

func (e *RequestFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed after %d attempt(s): http %d", e.Method, e.Path, e.Attempts, e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed after %d attempt(s): %v", e.Method, e.Path, e.Attempts, e.Err)
}

func (e *RequestFailedError) Unwrap() error { return e.Err }

func (e *RequestFailedError) Is(target error) bool { return target == ErrRequestFailed }

// BookingValidationError lists the required booking fields that were absent.
type BookingValidationError struct {
	Missing []string
}

func (e *BookingValidationError) Error() string {
	return "missing required booking details: " + strings.Join(e.Missing, ", ")
}

func (e *BookingValidationError) Is(target error) bool { return target == ErrBookingValidation }

// BookingRejectedError carries the provider's refusal status.
type BookingRejectedError struct {
	Status string
}

func (e *BookingRejectedError) Error() string {
	return fmt.Sprintf("booking rejected by provider: %s", e.Status)
}

func (e *BookingRejectedError) Is(target error) bool { return target == ErrBookingRejected }

// HTTPStatusError is the per-attempt failure for a non-2xx response.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http %d", e.StatusCode)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}
