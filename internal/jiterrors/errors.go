/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package jiterrors defines the error taxonomy for the JIT access broker.
// Every error the core returns carries a Kind so callers (HTTP handlers,
// CLI commands, audit sinks) can classify failures without parsing
// message text.
package jiterrors

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// Kind classifies a broker error.
type Kind string

const (
	// AccessDenied means the caller is not authorized for the operation.
	AccessDenied Kind = "access_denied"
	// InvalidJustification means the justification text failed policy.
	InvalidJustification Kind = "invalid_justification"
	// MalformedRequest means the request violated a structural constraint
	// (duration out of range, reviewer count out of range, malformed id).
	MalformedRequest Kind = "malformed_request"
	// NotAuthenticated means upstream credentials failed.
	NotAuthenticated Kind = "not_authenticated"
	// ResourceNotFound means a queried project/role/policy doesn't exist.
	ResourceNotFound Kind = "resource_not_found"
	// TokenVerification means signature, issuer, audience, or expiry failed.
	TokenVerification Kind = "token_verification"
	// Transient means a network/timeout/5xx failure from a collaborator.
	Transient Kind = "transient"
	// Aggregate wraps multiple child errors, e.g. partial fan-out failure.
	Aggregate Kind = "aggregate"
	// RateLimited means the caller exceeded a concurrency or hourly quota.
	RateLimited Kind = "rate_limited"
)

// Error is a Kind-tagged broker error.
type Error struct {
	Kind    Kind
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is reports whether target is an *Error with the same Kind, so callers can
// write `errors.Is(err, jiterrors.New(AccessDenied, ""))` or, more commonly,
// `jiterrors.HasKind(err, AccessDenied)`.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Kind == e.Kind
	}
	return false
}

// New creates a new Error of the given Kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a new Error of the given Kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Wrapped: cause}
}

// HasKind reports whether err (or any error in its chain) is a *Error of kind.
func HasKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or "" if err is not a tagged *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NewAggregate builds an Aggregate error from one or more child errors,
// preserving every child verbatim in the message per the fan-out failure
// policy: partial failure is fatal, every attempted operation still runs,
// and nothing is rolled back.
func NewAggregate(childErrors []error) error {
	var combined error
	for _, e := range childErrors {
		if e != nil {
			combined = multierr.Append(combined, e)
		}
	}
	if combined == nil {
		return nil
	}
	return &Error{Kind: Aggregate, Message: "one or more operations failed", Wrapped: combined}
}
