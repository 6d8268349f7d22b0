package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/madxdev/home-assistant-eheim-digital/internal/bridges/hass"
	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
)

// handleListDevices returns every device parsed from the hub.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.coord.Devices()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// handleGetDevice returns a single device with its latest status document.
// The MAC path parameter accepts both raw ("AA:BB:…") and slug ("aa_bb_…")
// forms.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")

	device, ok := s.coord.DeviceByMAC(mac)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	response := map[string]any{
		"device":   device,
		"switches": switchKeys(device),
	}
	if doc, polled := s.coord.DeviceData(device.MAC); polled {
		response["state"] = doc
	}

	writeJSON(w, http.StatusOK, response)
}

// handleGetDeviceState returns just the latest status document for a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")

	device, ok := s.coord.DeviceByMAC(mac)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	doc, polled := s.coord.DeviceData(device.MAC)
	if !polled {
		writeNotFound(w, "no state recorded for device yet")
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// commandRequest is the request body for POST /devices/{mac}/commands.
type commandRequest struct {
	// Switch names the switch to drive ("filter_is_active", …).
	Switch string `json:"switch"`

	// Active is the desired state. A pointer so a missing field is
	// distinguishable from an explicit false.
	Active *bool `json:"active"`
}

// handleDeviceCommand drives one switch on a device. Commands route through
// the same descriptor table as MQTT commands, including the optimistic
// snapshot patch, so both entry points behave identically.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	mac := chi.URLParam(r, "mac")

	device, ok := s.coord.DeviceByMAC(mac)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Switch == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "switch is required")
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "active is required")
		return
	}

	desc, ok := hass.DescriptionFor(device.Group, req.Switch)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeUnknownSwitch,
			"device has no switch "+req.Switch)
		return
	}

	active := *req.Active

	// Optimistic patch before the hub round trip, same as the MQTT path.
	// The patched event republishes entity state; the next poll corrects
	// the snapshot if the command did not stick.
	value := float64(0)
	if active {
		value = 1
	}
	s.coord.SetStateKey(device.MAC, desc.StateKey, value)

	if err := desc.SetState(r.Context(), s.hub, device, active); err != nil {
		s.logger.Error("command failed",
			"mac", device.MAC,
			"switch", desc.Key,
			"error", err,
		)
		writeHubUnreachable(w, err.Error())
		return
	}

	s.logger.Info("command executed",
		"mac", device.MAC,
		"switch", desc.Key,
		"active", active,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"mac":    device.MAC,
		"switch": desc.Key,
		"active": active,
	})
}

// switchKeys lists the switch keys a device's group exposes.
func switchKeys(device eheim.Device) []string {
	descs := hass.SwitchesFor(device.Group)
	keys := make([]string, 0, len(descs))
	for _, desc := range descs {
		keys = append(keys, desc.Key)
	}
	return keys
}
