// Package hass exposes EHEIM Digital devices to Home Assistant via MQTT
// discovery.
//
// The bridge sits between the polling coordinator and the MQTT broker:
//
//	coordinator ──events──▶ Bridge ──publish──▶ MQTT ──▶ Home Assistant
//	     ▲                    │
//	     └── optimistic patch ┘◀──ON/OFF commands──
//
// # Entities
//
// Switch entities are declared as data in switches.go: each device group
// maps to a list of SwitchDescriptions, and each description names the
// status document key whose truthiness is the switch state plus the hub
// call that changes it. Devices whose group has no table entry (heaters,
// unrecognised versions) are still polled and published as documents but
// contribute no switches.
//
// # Availability
//
// Three layers keep Home Assistant honest about staleness:
//   - the MQTT client's LWT marks the whole bridge offline on crash
//   - a failed poll cycle marks every entity offline until the next good one
//   - a failed hub command marks just that entity offline
//
// Discovery payloads combine the bridge topic and the per-entity topic with
// availability mode "all".
//
// # Commands
//
// Home Assistant publishes ON/OFF to {base}/{mac_slug}/{key}/set. The bridge
// optimistically patches the coordinator snapshot (publishing the new state
// immediately) and then pushes the change to the hub; the next poll cycle
// replaces optimism with device truth.
package hass
