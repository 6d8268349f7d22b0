package hass

import "errors"

// Domain errors for the Home Assistant bridge package.
var (
	// ErrUnknownDevice is returned when a command names a MAC the
	// coordinator does not track.
	ErrUnknownDevice = errors.New("hass: unknown device")

	// ErrUnknownSwitch is returned when a command names a switch key the
	// device's group does not expose.
	ErrUnknownSwitch = errors.New("hass: unknown switch")

	// ErrInvalidPayload is returned when a command payload is neither the
	// configured ON nor OFF payload.
	ErrInvalidPayload = errors.New("hass: invalid command payload")
)
