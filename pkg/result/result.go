// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package result defines the categorical outcomes shared by every otsbridge
// component. Operations return plain Go errors wrapping one of the sentinel
// errors below; Code maps any error back to its category.
package result

import "errors"

// Sentinel errors
var (
	// ErrInvalidArgument indicates malformed input (empty table, out-of-range type).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState indicates an operation attempted before initialization.
	ErrInvalidState = errors.New("invalid state")
	// ErrNotFound indicates an unknown command, an unknown tracked entity,
	// or a frame whose identifier, tag or length does not match.
	ErrNotFound = errors.New("not found")
	// ErrResourceExhausted indicates a fixed-capacity table is full.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrFailure is the catch-all for collaborator failures.
	ErrFailure = errors.New("failure")
)

// Result is the categorical outcome of an operation
type Result int

// Result values
const (
	Ok Result = iota
	InvalidArgument
	InvalidState
	NotFound
	ResourceExhausted
	Failure
)

// String returns the result name
func (r Result) String() string {
	switch r {
	case Ok:
		return "OK"
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case InvalidState:
		return "INVALID_STATE"
	case NotFound:
		return "NOT_FOUND"
	case ResourceExhausted:
		return "RESOURCE_EXHAUSTED"
	case Failure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Code maps an error to its Result. nil is Ok, anything unrecognised is Failure.
func Code(err error) Result {
	switch {
	case err == nil:
		return Ok
	case errors.Is(err, ErrInvalidArgument):
		return InvalidArgument
	case errors.Is(err, ErrInvalidState):
		return InvalidState
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrResourceExhausted):
		return ResourceExhausted
	default:
		return Failure
	}
}
