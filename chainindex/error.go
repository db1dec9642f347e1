// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2020 The Neutron developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chainindex

import (
	"fmt"
)

// AssertError identifies an error that indicates an internal code consistency
// issue and should be treated as a critical and unrecoverable error.
type AssertError string

// Error returns the assertion error as a human-readable string and satisfies
// the error interface.
func (e AssertError) Error() string {
	return "assertion failed: " + string(e)
}

// errDeserialize signifies that a problem was encountered when deserializing
// data.
type errDeserialize string

// Error implements the error interface.
func (e errDeserialize) Error() string {
	return string(e)
}

// isDeserializeErr returns whether or not the passed error is an
// errDeserialize error.
func isDeserializeErr(err error) bool {
	_, ok := err.(errDeserialize)
	return ok
}

// deserializeError creates an errDeserialize given a format string and
// arguments.
func deserializeError(format string, args ...interface{}) errDeserialize {
	return errDeserialize(fmt.Sprintf(format, args...))
}

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrDbOpen indicates the underlying store could not be opened or
	// created.  Errors of this kind are fatal at startup.
	ErrDbOpen ErrorCode = iota

	// ErrDbClosed indicates an operation was attempted against a handle
	// whose store has already been closed.
	ErrDbClosed

	// ErrReadOnly indicates a mutation was attempted through a handle
	// opened in read-only mode.
	ErrReadOnly

	// ErrBatchActive indicates a batch was started while another batch on
	// the same handle was still pending.
	ErrBatchActive

	// ErrNoBatch indicates a commit or abort was requested with no batch
	// pending.
	ErrNoBatch

	// ErrCorruption indicates stored data failed to deserialize or an
	// internal consistency check on stored data failed.
	ErrCorruption

	// ErrMissingEntry indicates a required singleton entry was absent
	// from a non-empty store.
	ErrMissingEntry

	// ErrInterrupted indicates a long-running operation observed a
	// shutdown request and stopped early.
	ErrInterrupted
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDbOpen:       "ErrDbOpen",
	ErrDbClosed:     "ErrDbClosed",
	ErrReadOnly:     "ErrReadOnly",
	ErrBatchActive:  "ErrBatchActive",
	ErrNoBatch:      "ErrNoBatch",
	ErrCorruption:   "ErrCorruption",
	ErrMissingEntry: "ErrMissingEntry",
	ErrInterrupted:  "ErrInterrupted",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError identifies a chain-index store failure.  The caller can use type
// assertions on the ErrorCode to distinguish fatal failures from recoverable
// ones.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error, optional
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e StoreError) Unwrap() error {
	return e.Err
}

// storeError creates a StoreError given a set of arguments.
func storeError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether err is a StoreError with the given code.
func IsErrorCode(err error, c ErrorCode) bool {
	serr, ok := err.(StoreError)
	return ok && serr.ErrorCode == c
}
