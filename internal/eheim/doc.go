// Package eheim provides the REST client and device model for an EHEIM
// Digital aquarium hub.
//
// An EHEIM Digital installation has one master device (the hub) that joins
// the LAN and fronts every other device: filter pumps, pH controllers,
// heaters. The hub exposes a small unauthenticated-looking HTTP API at
// http://{host}/api/... that actually requires Basic auth with the
// firmware's fixed local account.
//
// # Request flow
//
//	devicelist (hub)          → {"clientIPList": ["10.0.0.5", ...]}
//	userdata   (each address) → device metadata → Device
//	{version}/state (hub)     → status Document, routed by ?to={mac}
//	{family}/active (hub)     → POST {"to": mac, "active": 0|1}
//
// Status reads and commands are always routed through the hub; only the
// userdata fetch during discovery talks to the listed addresses directly.
//
// # Firmware quirks
//
// The hub labels JSON responses as "text/json". The client decodes that
// label and "application/json" identically — without the special case no
// status payload would ever parse.
//
// # Errors
//
// All failures map onto the sentinel taxonomy in errors.go and are
// classified with errors.Is. A timed-out request matches both ErrTimeout
// and ErrConnection. Unknown firmware versions fail locally with
// ErrUnknownVersion before any network I/O.
package eheim
