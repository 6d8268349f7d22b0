package eheim

// Hub REST endpoints shared by every device family.
const (
	endpointDeviceList = "devicelist"
	endpointUserData   = "userdata"
)

// Command endpoints, one per writable capability.
const (
	endpointFilterActive    = "professionel5e/active"
	endpointPHControlActive = "phcontrol/active"
)

// Device group classifications. The group decides which capabilities
// (and therefore which switch entities) a device exposes.
const (
	GroupFilter    = "filter"
	GroupPHControl = "ph_control"
	GroupHeater    = "heater"
)

// statusEndpoints maps a device's firmware version tag to the endpoint that
// serves its status document. Each family speaks its own status dialect, so
// the endpoint must match the firmware exactly; versions missing from this
// table cannot be polled (ErrUnknownVersion).
var statusEndpoints = map[string]string{
	"professionel5e": "professionel5e/state",
	"phcontrol":      "phcontrol/state",
	"heater":         "heater/state",
}

// deviceGroups classifies firmware version tags into capability groups.
// A version absent from this table yields an empty group, which simply
// means no switches apply to the device.
var deviceGroups = map[string]string{
	"professionel5e": GroupFilter,
	"phcontrol":      GroupPHControl,
	"heater":         GroupHeater,
}

// StatusEndpoint returns the status endpoint for a firmware version tag.
// The second return value reports whether the version is known.
func StatusEndpoint(version string) (string, bool) {
	endpoint, ok := statusEndpoints[version]
	return endpoint, ok
}

// GroupForVersion returns the capability group for a firmware version tag,
// or "" when the version is not classified.
func GroupForVersion(version string) string {
	return deviceGroups[version]
}
