package mqtt

import (
	"fmt"
	"strings"
)

// Default topic roots. Both are overridable via config (mqtt.base_topic and
// mqtt.discovery_prefix) to coexist with other integrations on a shared broker.
const (
	// DefaultBaseTopic is the root of all bridge state and command topics.
	DefaultBaseTopic = "eheim_digital"

	// DefaultDiscoveryPrefix is the Home Assistant discovery prefix.
	// Must match the `discovery_prefix` configured in Home Assistant's
	// MQTT integration (almost always the stock "homeassistant").
	DefaultDiscoveryPrefix = "homeassistant"
)

// Availability and state payloads, per Home Assistant MQTT conventions.
// Availability topics carry bare strings, not JSON.
const (
	// PayloadOnline marks the bridge or an entity as available.
	PayloadOnline = "online"

	// PayloadOffline marks the bridge or an entity as unavailable.
	// Also used as the LWT payload for crash detection.
	PayloadOffline = "offline"

	// PayloadOn is the switch state/command payload for "on".
	PayloadOn = "ON"

	// PayloadOff is the switch state/command payload for "off".
	PayloadOff = "OFF"
)

// Topics builds MQTT topic strings for the bridge.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Device-level topics follow the scheme:
//
//	{base}/{mac_slug}/...
//
// where mac_slug is the device MAC with separators replaced by underscores
// (MQTT topics cannot contain ':'). Discovery configs go under the Home
// Assistant discovery prefix:
//
//	{discovery_prefix}/switch/{unique_id}/config
//
// Example:
//
//	topics := mqtt.NewTopics("eheim_digital", "homeassistant")
//	stateTopic := topics.SwitchState("aa_bb_cc_dd_ee_ff", "filter_is_active")
//	// Returns: "eheim_digital/aa_bb_cc_dd_ee_ff/filter_is_active/state"
type Topics struct {
	base      string
	discovery string
}

// NewTopics creates a topic builder rooted at the given base topic and
// discovery prefix. Empty arguments fall back to the defaults.
func NewTopics(base, discovery string) Topics {
	if base == "" {
		base = DefaultBaseTopic
	}
	if discovery == "" {
		discovery = DefaultDiscoveryPrefix
	}
	return Topics{base: base, discovery: discovery}
}

// Base returns the configured base topic.
func (t Topics) Base() string {
	if t.base == "" {
		return DefaultBaseTopic
	}
	return t.base
}

// DiscoveryPrefix returns the configured Home Assistant discovery prefix.
func (t Topics) DiscoveryPrefix() string {
	if t.discovery == "" {
		return DefaultDiscoveryPrefix
	}
	return t.discovery
}

// =============================================================================
// Bridge Topics
// =============================================================================

// BridgeAvailability returns the bridge-wide availability topic.
// The LWT publishes "offline" here on unexpected disconnect; the bridge
// publishes "online" (retained) once connected.
//
// Example: eheim_digital/bridge/state
func (t Topics) BridgeAvailability() string {
	return fmt.Sprintf("%s/bridge/state", t.Base())
}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceState returns the topic carrying a device's full status document.
//
// Example: eheim_digital/aa_bb_cc_dd_ee_ff/state
func (t Topics) DeviceState(macSlug string) string {
	return fmt.Sprintf("%s/%s/state", t.Base(), macSlug)
}

// SwitchState returns the state topic for a single switch entity.
//
// Example: eheim_digital/aa_bb_cc_dd_ee_ff/filter_is_active/state
func (t Topics) SwitchState(macSlug, key string) string {
	return fmt.Sprintf("%s/%s/%s/state", t.Base(), macSlug, key)
}

// SwitchAvailability returns the availability topic for a single switch entity.
//
// Example: eheim_digital/aa_bb_cc_dd_ee_ff/filter_is_active/availability
func (t Topics) SwitchAvailability(macSlug, key string) string {
	return fmt.Sprintf("%s/%s/%s/availability", t.Base(), macSlug, key)
}

// SwitchCommand returns the command topic Home Assistant publishes ON/OFF to.
//
// Example: eheim_digital/aa_bb_cc_dd_ee_ff/filter_is_active/set
func (t Topics) SwitchCommand(macSlug, key string) string {
	return fmt.Sprintf("%s/%s/%s/set", t.Base(), macSlug, key)
}

// =============================================================================
// Discovery Topics
// =============================================================================

// SwitchConfig returns the Home Assistant discovery topic for a switch entity.
// Discovery payloads are published retained so Home Assistant picks them up
// after a restart.
//
// Example: homeassistant/switch/professionel5e_aa_bb_cc_dd_ee_ff_filter_is_active/config
func (t Topics) SwitchConfig(uniqueID string) string {
	return fmt.Sprintf("%s/switch/%s/config", t.DiscoveryPrefix(), uniqueID)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllSwitchCommands returns a pattern matching every switch command topic.
//
// Pattern: eheim_digital/+/+/set
func (t Topics) AllSwitchCommands() string {
	return fmt.Sprintf("%s/+/+/set", t.Base())
}

// ParseSwitchCommand extracts the MAC slug and switch key from a command
// topic. Returns ok=false for topics that do not match the command scheme
// (wrong base, wrong depth, or wrong suffix).
func (t Topics) ParseSwitchCommand(topic string) (macSlug, key string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.Base()+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[2] != "set" {
		return "", "", false
	}
	if parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
