package hass

import (
	"strings"

	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/mqtt"
)

// manufacturer shown in the Home Assistant device registry.
const manufacturer = "EHEIM"

// switchConfig is the Home Assistant MQTT discovery payload for one switch
// entity. Field set follows the MQTT switch schema; omitted fields fall back
// to Home Assistant defaults.
type switchConfig struct {
	Name         string `json:"name"`
	UniqueID     string `json:"unique_id"`
	ObjectID     string `json:"object_id,omitempty"`
	Icon         string `json:"icon,omitempty"`
	StateTopic   string `json:"state_topic"`
	CommandTopic string `json:"command_topic"`
	PayloadOn    string `json:"payload_on"`
	PayloadOff   string `json:"payload_off"`
	QoS          int    `json:"qos,omitempty"`

	// Availability lists the bridge-wide topic and the per-entity topic;
	// mode "all" means both must read "online" for the entity to be
	// available.
	Availability     []availability `json:"availability,omitempty"`
	AvailabilityMode string         `json:"availability_mode,omitempty"`

	Device discoveryDevice  `json:"device"`
	Origin *discoveryOrigin `json:"origin,omitempty"`
}

// availability is one entry in a discovery payload's availability list.
type availability struct {
	Topic string `json:"topic"`
}

// discoveryDevice groups entities under one device in the Home Assistant
// registry. Identity is keyed by MAC only — addresses are DHCP-assigned
// and must not leak into identifiers.
type discoveryDevice struct {
	Identifiers   []string    `json:"identifiers"`
	Connections   [][2]string `json:"connections,omitempty"`
	Name          string      `json:"name"`
	Manufacturer  string      `json:"manufacturer"`
	Model         string      `json:"model,omitempty"`
	SWVersion     string      `json:"sw_version,omitempty"`
	SuggestedArea string      `json:"suggested_area,omitempty"`
}

// discoveryOrigin identifies the publishing bridge in discovery payloads.
type discoveryOrigin struct {
	Name      string `json:"name"`
	SWVersion string `json:"sw_version,omitempty"`
}

// UniqueID builds the registry-stable identifier for one device switch:
// lowercased model, MAC slug, and switch key joined with underscores
// (e.g. "professionel5e_aa_bb_cc_dd_ee_ff_filter_is_active"). IP changes
// do not move the entity because identity never includes the address.
func UniqueID(device eheim.Device, key string) string {
	return modelSlug(device) + "_" + device.MACSlug() + "_" + key
}

// modelSlug normalises the device model for identifier use. Falls back to
// the protocol version string, then a fixed prefix, for devices whose
// userdata omits the model.
func modelSlug(device eheim.Device) string {
	s := device.Model
	if s == "" {
		s = device.Version
	}
	if s == "" {
		return "eheim"
	}

	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// buildSwitchConfig assembles the discovery payload for one device switch.
// The caller marshals and publishes it retained to topics.SwitchConfig.
func buildSwitchConfig(topics mqtt.Topics, device eheim.Device, desc SwitchDescription, qos int, bridgeVersion string) switchConfig {
	slug := device.MACSlug()

	cfg := switchConfig{
		Name:         desc.Name,
		UniqueID:     UniqueID(device, desc.Key),
		ObjectID:     slug + "_" + desc.Key,
		Icon:         desc.Icon,
		StateTopic:   topics.SwitchState(slug, desc.Key),
		CommandTopic: topics.SwitchCommand(slug, desc.Key),
		PayloadOn:    mqtt.PayloadOn,
		PayloadOff:   mqtt.PayloadOff,
		QoS:          qos,
		Availability: []availability{
			{Topic: topics.BridgeAvailability()},
			{Topic: topics.SwitchAvailability(slug, desc.Key)},
		},
		AvailabilityMode: "all",
		Device: discoveryDevice{
			Identifiers:   []string{device.MAC},
			Connections:   [][2]string{{"mac", device.MAC}},
			Name:          device.Label(),
			Manufacturer:  manufacturer,
			Model:         device.Model,
			SWVersion:     device.Version,
			SuggestedArea: device.AqName,
		},
	}

	if bridgeVersion != "" {
		cfg.Origin = &discoveryOrigin{
			Name:      "eheim-digital-bridge",
			SWVersion: bridgeVersion,
		}
	}

	return cfg
}
