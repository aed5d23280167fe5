// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package device

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Device implementations and by swapchain
// operations that drive them. These wrap cleanly with errors.Is and
// carry no payload of their own.
var (
	// ErrIncompatibleContext is returned when a producer-only operation
	// is called with a context that is not the producer for the chain it
	// targets.
	ErrIncompatibleContext = errors.New("device: incompatible context")

	// ErrFailed reports a violated precondition: a back buffer taken
	// twice or replaced without a prior take, a duplicate chain ID, a
	// chain exchanging with itself, a missing optional Device
	// capability, or (through ValidationError) a rejected value.
	ErrFailed = errors.New("device: operation failed")

	// ErrContextNotCurrent is returned by operations that require the
	// calling context to currently have a surface bound when the Device
	// reports nothing bound.
	ErrContextNotCurrent = errors.New("device: context has no surface bound")
)

// ValidationError reports that a caller-supplied value was rejected
// before any Device call was attempted.
type ValidationError struct {
	// Field names the rejected parameter, e.g. "size".
	Field string

	// Value is the rejected value, kept for diagnostics.
	Value any

	// Reason describes why the value was rejected.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("device: invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

// Unwrap marks every ValidationError as a kind of ErrFailed, so callers
// can match the broad class with errors.Is and the specifics with
// errors.As.
func (e *ValidationError) Unwrap() error { return ErrFailed }
