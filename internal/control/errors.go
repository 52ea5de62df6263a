package control

import "errors"

var (
	// ErrUnknownDevice is returned when a command names a device that
	// is not in the configured set.
	ErrUnknownDevice = errors.New("control: unknown device")

	// ErrInvalidAction is returned when a command action is neither
	// ON nor OFF.
	ErrInvalidAction = errors.New("control: invalid action")

	// ErrInvalidState is returned when a state filter value cannot be
	// normalised to ON or OFF.
	ErrInvalidState = errors.New("control: invalid state")
)
