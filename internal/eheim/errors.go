package eheim

import (
	"errors"
	"fmt"
)

// Domain errors for the hub client package.
//
// Every error returned by Client wraps one of these sentinels, so callers
// can classify failures with errors.Is():
//
//	if errors.Is(err, eheim.ErrAuth) {
//	    // credentials rejected by the hub
//	}
var (
	// ErrConnection is returned when the hub cannot be reached or answers
	// with an unexpected status (dial failure, reset, or any non-2xx
	// other than the auth and not-found cases below).
	ErrConnection = errors.New("eheim: connection failed")

	// ErrTimeout is returned when a request exceeds the client's total
	// request budget. It wraps ErrConnection, so a timeout also matches
	// connection-failure checks.
	ErrTimeout = fmt.Errorf("%w: request timed out", ErrConnection)

	// ErrAuth is returned when the hub rejects the Basic auth
	// credentials (HTTP 401 or 403).
	ErrAuth = errors.New("eheim: authentication failed")

	// ErrNotFound is returned when the hub answers HTTP 404, typically
	// for an endpoint the firmware does not expose.
	ErrNotFound = errors.New("eheim: not found")

	// ErrPayload is returned when a response body labelled as JSON cannot
	// be decoded, or decodes to something other than the expected shape.
	ErrPayload = errors.New("eheim: invalid payload")

	// ErrUnknownVersion is returned by GetDeviceData when a device's
	// firmware version has no entry in the status endpoint table. This is
	// a configuration gap, not a transport failure: no request is sent.
	ErrUnknownVersion = errors.New("eheim: unknown device version")

	// ErrNoDevices is returned by ValidateConnection when the hub's
	// device list is empty.
	ErrNoDevices = errors.New("eheim: no devices found on host")
)
