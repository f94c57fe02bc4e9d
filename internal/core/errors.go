package core

import "errors"

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrTerminalStatus is returned when changing an order that is Delivered or Cancelled.
	ErrTerminalStatus = errors.New("order is in a terminal status")
	// ErrReadyIsDerived is returned when a caller tries to set Ready directly.
	ErrReadyIsDerived = errors.New("status Ready is assigned by allocation only")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("validation failed")
)
