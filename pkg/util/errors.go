// Package util provides logging helpers, address parsing, and the error
// taxonomy shared by every stage of a run.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Fatal ones (input, address) abort a run before any
// device is contacted; the rest are scoped to a single device.
var (
	ErrInputMissing     = errors.New("required input missing")
	ErrInvalidAddress   = errors.New("invalid device address")
	ErrAuthentication   = errors.New("authentication failed")
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransport        = errors.New("transport failure")
	ErrCommandRejected  = errors.New("command rejected by device")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrValidationFailed = errors.New("validation failed")
)

// InputMissingError names a required input file that could not be found.
type InputMissingError struct {
	Path string
}

func (e *InputMissingError) Error() string {
	return fmt.Sprintf("%s file not found", e.Path)
}

func (e *InputMissingError) Unwrap() error {
	return ErrInputMissing
}

// NewInputMissingError creates an input-missing error
func NewInputMissingError(path string) *InputMissingError {
	return &InputMissingError{Path: path}
}

// InvalidAddressError reports the first inventory address that failed
// validation and the rule it broke.
type InvalidAddressError struct {
	Address string
	Reason  string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("%s is not a valid IP address: %s", e.Address, e.Reason)
}

func (e *InvalidAddressError) Unwrap() error {
	return ErrInvalidAddress
}

// NewInvalidAddressError creates an invalid-address error
func NewInvalidAddressError(address, reason string) *InvalidAddressError {
	return &InvalidAddressError{Address: address, Reason: reason}
}

// ConnectKind classifies why a device session could not be used.
type ConnectKind string

const (
	ConnectAuth      ConnectKind = "auth"
	ConnectTimeout   ConnectKind = "timeout"
	ConnectTransport ConnectKind = "transport"
)

// ConnectError wraps a session open or transport failure for one device.
type ConnectError struct {
	Address string
	Kind    ConnectKind
	Err     error
}

func (e *ConnectError) Error() string {
	switch e.Kind {
	case ConnectAuth:
		return fmt.Sprintf("%s: authentication failed: %v", e.Address, e.Err)
	case ConnectTimeout:
		return fmt.Sprintf("%s: ssh timeout: %v", e.Address, e.Err)
	default:
		return fmt.Sprintf("%s: transport error: %v", e.Address, e.Err)
	}
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ConnectError) Unwrap() []error {
	var kind error
	switch e.Kind {
	case ConnectAuth:
		kind = ErrAuthentication
	case ConnectTimeout:
		kind = ErrTransportTimeout
	default:
		kind = ErrTransport
	}
	if e.Err == nil {
		return []error{kind}
	}
	return []error{kind, e.Err}
}

// NewConnectError creates a connect error
func NewConnectError(address string, kind ConnectKind, err error) *ConnectError {
	return &ConnectError{Address: address, Kind: kind, Err: err}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
