package eheim

import "strings"

// Device is an immutable description of one EHEIM Digital device, parsed
// from the hub's userdata document.
//
// MAC is the only stable identity: device addresses are DHCP-assigned and
// may change between runs, so anything that needs to recognise a device
// across restarts must key on MAC, never on IP.
type Device struct {
	Title   string `json:"title"`
	MAC     string `json:"mac"`
	IP      string `json:"ip"`
	Name    string `json:"name"`
	AqName  string `json:"aquarium_name"`
	Mode    string `json:"mode"`
	Version string `json:"version"`
	Model   string `json:"model"`

	// Group is the capability classification derived from Version
	// ("filter", "ph_control", ...). Empty when the version is unknown,
	// in which case no switch entities apply.
	Group string `json:"device_group"`
}

// ParseDevice builds a Device from a userdata document and the address it
// was fetched from. Parsing is purely mechanical: known keys are extracted,
// missing or mis-typed fields default to "", and nothing is validated —
// whether a device is usable is decided later by the version table.
func ParseDevice(doc Document, ip string) Device {
	version := stringField(doc, "version")

	return Device{
		Title:   stringField(doc, "title"),
		MAC:     stringField(doc, "mac"),
		IP:      ip,
		Name:    stringField(doc, "name"),
		AqName:  stringField(doc, "aqName"),
		Mode:    stringField(doc, "mode"),
		Version: version,
		Model:   stringField(doc, "model"),
		Group:   GroupForVersion(version),
	}
}

// stringField extracts a string value by key, defaulting to "" when the
// key is absent or holds a non-string.
func stringField(doc Document, key string) string {
	v, ok := doc[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}

// Label returns a human-readable name for the device: the first non-empty
// of Name, Title, Model, MAC.
func (d Device) Label() string {
	for _, s := range []string{d.Name, d.Title, d.Model} {
		if s != "" {
			return s
		}
	}
	return d.MAC
}

// MACSlug returns the device MAC in identifier-safe form; see MACSlug.
func (d Device) MACSlug() string {
	return MACSlug(d.MAC)
}

// MACSlug normalises a MAC address into the lowercase underscore form used
// in topics and entity identifiers ("AA:BB:CC:DD:EE:FF" → "aa_bb_cc_dd_ee_ff").
// Colon, dash and dot separated forms are accepted, as is a bare 12-digit
// hex string. Anything else is lowercased with separators replaced and
// otherwise left alone.
func MACSlug(mac string) string {
	s := strings.ToLower(strings.TrimSpace(mac))
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, ".", "_")

	// Bare hex form: split into octet pairs.
	if len(s) == 12 && !strings.Contains(s, "_") {
		var b strings.Builder
		for i := 0; i < len(s); i += 2 {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteString(s[i : i+2])
		}
		return b.String()
	}

	return s
}
