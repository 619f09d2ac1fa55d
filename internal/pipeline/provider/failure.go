package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Class buckets provider errors by how the gateway should react. Transient
// failures are eligible for one retry; permanent failures are not.
type Class string

const (
	ClassTransient Class = "transient"
	ClassPermanent Class = "permanent"
)

// Failure is the typed error every provider call surfaces. It identifies the
// provider and capability so stage executors and logs can attribute the fault.
type Failure struct {
	Class    Class
	Provider string
	Kind     string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("provider %s (%s): %s failure: %v", f.Provider, f.Kind, f.Class, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Transient wraps err as a retryable failure.
func Transient(providerName, kind string, err error) *Failure {
	return &Failure{Class: ClassTransient, Provider: providerName, Kind: kind, Err: err}
}

// Permanent wraps err as a non-retryable failure.
func Permanent(providerName, kind string, err error) *Failure {
	return &Failure{Class: ClassPermanent, Provider: providerName, Kind: kind, Err: err}
}

// FromStatus classifies an HTTP status: timeouts, rate limits and server
// errors are transient, everything else permanent.
func FromStatus(providerName, kind string, status int, err error) *Failure {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return Transient(providerName, kind, err)
	default:
		return Permanent(providerName, kind, err)
	}
}

// asFailure normalizes any provider error into a Failure. Deadline and
// network timeout errors classify as transient per the retry policy.
func asFailure(providerName, kind string, err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient(providerName, kind, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Transient(providerName, kind, err)
	}
	return Permanent(providerName, kind, err)
}
