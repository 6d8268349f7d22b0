package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// statusMeasurement is the measurement every device status point lands in.
const statusMeasurement = "device_status"

// WriteDeviceStatus records one device's status document as a single point.
//
// The point is tagged with the device identity (mac always, model and
// device_group when known) and carries the document's numeric values as
// fields. Status schemas differ per device dialect and firmware release, so
// fields are extracted generically rather than from a fixed list; see
// StatusFields for the extraction rules. Documents with no numeric values
// produce no point.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Example:
//
//	client.WriteDeviceStatus("AA:BB:CC:DD:EE:01", "professionel 5e", "filter",
//	    map[string]any{"filterActive": 1.0, "freq": 1300.0})
func (c *Client) WriteDeviceStatus(mac, model, group string, status map[string]any) {
	if !c.IsConnected() {
		return
	}

	fields := StatusFields(status)
	if len(fields) == 0 {
		return
	}

	tags := map[string]string{"mac": mac}
	if model != "" {
		tags["model"] = model
	}
	if group != "" {
		tags["device_group"] = group
	}

	point := write.NewPoint(statusMeasurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// StatusFields extracts the numeric values from a status document.
//
// Floats and integers are taken as-is (as float64); booleans become 0/1 so a
// key that alternates between boolean and numeric forms across firmware
// dialects keeps a single field type. Strings, nulls, and nested structures
// are skipped — tags and identity live elsewhere, and non-scalar values have
// no time-series shape.
func StatusFields(status map[string]any) map[string]any {
	fields := make(map[string]any, len(status))
	for key, value := range status {
		switch v := value.(type) {
		case float64:
			fields[key] = v
		case float32:
			fields[key] = float64(v)
		case int:
			fields[key] = float64(v)
		case int64:
			fields[key] = float64(v)
		case bool:
			if v {
				fields[key] = float64(1)
			} else {
				fields[key] = float64(0)
			}
		}
	}
	return fields
}
