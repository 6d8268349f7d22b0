package hass

import (
	"context"

	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
)

// SwitchDescription declares one switch entity as data. The bridge never
// special-cases individual switches: reading state is the truthiness of
// StateKey in the device's status document, and turning it on or off goes
// through SetState. Adding a switch is adding a table row.
type SwitchDescription struct {
	// Key is the stable entity suffix, used in topics and unique IDs
	// (e.g. "filter_is_active").
	Key string

	// Name is the Home Assistant display name.
	Name string

	// StateKey is the status document key whose truthiness is the
	// switch state. An absent key reads as off.
	StateKey string

	// Icon is the Material Design icon shown in Home Assistant.
	Icon string

	// SetState pushes the desired state to the device via the hub.
	SetState func(ctx context.Context, hub HubClient, device eheim.Device, active bool) error
}

// switchDescriptions is the full switch catalogue, keyed by entity suffix.
var switchDescriptions = map[string]SwitchDescription{
	"filter_is_active": {
		Key:      "filter_is_active",
		Name:     "Filter",
		StateKey: "filterActive",
		Icon:     "mdi:air-filter",
		SetState: func(ctx context.Context, hub HubClient, device eheim.Device, active bool) error {
			return hub.SetFilterState(ctx, device, active)
		},
	},
	"ph_control_is_active": {
		Key:      "ph_control_is_active",
		Name:     "pH control",
		StateKey: "active",
		Icon:     "mdi:ph",
		SetState: func(ctx context.Context, hub HubClient, device eheim.Device, active bool) error {
			return hub.SetPHControlState(ctx, device, active)
		},
	},
}

// switchGroups maps a device group to the switch keys its devices expose.
// Groups without an entry (heaters, unknown versions) yield no switches.
var switchGroups = map[string][]string{
	eheim.GroupFilter:    {"filter_is_active"},
	eheim.GroupPHControl: {"ph_control_is_active"},
}

// SwitchesFor returns the switch descriptions for a device group, in table
// order. The result is nil for groups without switches.
func SwitchesFor(group string) []SwitchDescription {
	keys := switchGroups[group]
	if len(keys) == 0 {
		return nil
	}

	out := make([]SwitchDescription, 0, len(keys))
	for _, key := range keys {
		if desc, ok := switchDescriptions[key]; ok {
			out = append(out, desc)
		}
	}
	return out
}

// DescriptionFor resolves a switch key against a device's group. It returns
// false when the key is unknown or the group does not expose it, so a
// command for "filter_is_active" on a pH controller is rejected rather
// than routed to the wrong endpoint.
func DescriptionFor(group, key string) (SwitchDescription, bool) {
	for _, k := range switchGroups[group] {
		if k != key {
			continue
		}
		desc, ok := switchDescriptions[key]
		return desc, ok
	}
	return SwitchDescription{}, false
}

// Truthy reports whether a status document value reads as "on".
// JSON decoding yields nil, bool, float64, string, []any and maps; device
// firmware reports switch state as 0/1 numbers. Absent keys arrive as nil.
func Truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0
	case int:
		return x != 0
	case int64:
		return x != 0
	case string:
		return x != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	case eheim.Document:
		return len(x) > 0
	default:
		return true
	}
}
