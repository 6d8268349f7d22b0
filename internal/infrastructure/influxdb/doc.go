// Package influxdb records device status history as time-series data.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes, and health monitoring.
//
// # Purpose
//
// After every successful poll cycle the entrypoint writes one point per
// device: measurement "device_status", tagged by MAC, model, and device
// group, with the numeric values of the device's status document as fields.
// That gives filter frequency, pH readings, temperatures, and on/off flags a
// queryable history without any local persistence in the bridge itself.
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "home",
//	    Bucket:  "aquarium",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteDeviceStatus(device.MAC, device.Model, string(device.Group), doc)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors surface through the
// SetOnError callback. Connection and health check errors are returned
// directly. Telemetry is optional: Connect returns ErrDisabled when turned
// off in config and callers run without it.
package influxdb
