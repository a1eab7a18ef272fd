// Copyright (c) Microsoft Corporation. All rights reserved.
// Licensed under the MIT License.

package adal

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes surfaced on ServiceError and friends. These mirror the codes
// the directory service itself uses where one exists.
const (
	errCodeUnknown              = "unknown_error"
	errCodeInvalidArgument      = "invalid_argument"
	errCodeAuthenticationFailed = "authentication_failed"
	errCodeInteractionRequired  = "interaction_required"
	errCodeFailedToRefresh      = "failed_to_refresh_token"
	errCodeServiceUnavailable   = "service_unavailable"
	errCodeLoginRequired        = "login_required"
)

// ErrMultipleTokensMatched indicates an ambiguous cache: more than one entry
// matched a single-resource query. The cache never guesses between them.
var ErrMultipleTokensMatched = errors.New("multiple matching tokens detected")

// ErrSilentAcquisitionFailed indicates that no usable token could be produced
// without user interaction. Callers should fall back to an interactive flow.
var ErrSilentAcquisitionFailed = errors.New("failed to acquire token silently")

// ErrUserInteractionRequired indicates the authorization endpoint demanded a
// fresh sign-in (login_required) during what was expected to be a silent
// authorization round trip.
var ErrUserInteractionRequired = errors.New("user interaction required")

// ErrDeviceAuthNotSupported is returned when the service issues a PKeyAuth
// device challenge and no DeviceAuthResponder is configured.
var ErrDeviceAuthNotSupported = errors.New("device auth challenge handling not implemented")

// ArgumentError indicates a malformed argument supplied by the calling
// program. It is never retried.
type ArgumentError struct {
	Name    string
	Message string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", errCodeInvalidArgument, e.Message)
}

func newArgumentError(name string, format string, args ...any) error {
	return &ArgumentError{Name: name, Message: fmt.Sprintf(format, args...)}
}

// AuthorityValidationError indicates the authority could not be validated
// against the instance discovery metadata. Fatal unless authority validation
// was disabled by the caller.
type AuthorityValidationError struct {
	// NotInValidList is true when the discovery service recognizably rejected
	// the authority, false when the validation request itself failed.
	NotInValidList bool

	innerErr error
}

func (e *AuthorityValidationError) Error() string {
	if e.NotInValidList {
		return "authority is not in the list of valid authorities"
	}

	return fmt.Sprintf("authority validation failed: %v", e.innerErr)
}

func (e *AuthorityValidationError) Unwrap() error {
	return e.innerErr
}

// ServiceError carries an OAuth error payload returned by the service.
//
// See https://www.rfc-editor.org/rfc/rfc6749#section-5.2
type ServiceError struct {
	Code        string
	Description string
	// ServiceErrorCodes is the service's numeric error_codes list, when one
	// was returned, each formatted as a string.
	ServiceErrorCodes []string

	innerErr error
}

func (e *ServiceError) Error() string {
	msg := fmt.Sprintf("service returned error %s", e.Code)
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if len(e.ServiceErrorCodes) > 0 {
		msg += fmt.Sprintf(" (codes: %s)", strings.Join(e.ServiceErrorCodes, ","))
	}

	return msg
}

func (e *ServiceError) Unwrap() error {
	return e.innerErr
}

// ClaimsChallengeError is a service error carrying a claims blob. The caller
// is expected to restart acquisition attaching Claims to the request rather
// than treating this as terminal.
type ClaimsChallengeError struct {
	ServiceError
	Claims string
}

// TransportError indicates the request never produced a usable response:
// a connection failure, a timeout, or a 5xx that survived the retry.
type TransportError struct {
	// Status is the last HTTP status observed, or zero when no response was
	// received at all.
	Status int

	innerErr error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport failure: http status %d", e.Status)
	}

	return fmt.Sprintf("transport failure: %v", e.innerErr)
}

func (e *TransportError) Unwrap() error {
	return e.innerErr
}

// UserMismatchError indicates the token returned by the service belongs to a
// different user than the one the caller pinned. Both identifiers are carried
// for diagnostics; the token is never silently substituted.
type UserMismatchError struct {
	Requested string
	Returned  string
}

func (e *UserMismatchError) Error() string {
	return fmt.Sprintf("user mismatch: requested token for '%s' but the returned token belongs to '%s'",
		e.Requested, e.Returned)
}
