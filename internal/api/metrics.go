package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string             `json:"timestamp"`
	Version       string             `json:"version"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	Runtime       RuntimeMetrics     `json:"runtime"`
	WebSocket     WSMetrics          `json:"websocket"`
	MQTT          MQTTMetrics        `json:"mqtt"`
	Bridge        *BridgeMetrics     `json:"bridge,omitempty"`
	Coordinator   CoordinatorMetrics `json:"coordinator"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// BridgeMetrics contains Home Assistant bridge statistics.
type BridgeMetrics struct {
	Connected        bool   `json:"connected"`
	Devices          int    `json:"devices"`
	Switches         int    `json:"switches"`
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
}

// CoordinatorMetrics contains poll loop statistics.
type CoordinatorMetrics struct {
	Cycles          uint64 `json:"cycles"`
	Failures        uint64 `json:"failures"`
	LastAttempt     string `json:"last_attempt,omitempty"`
	LastSuccess     string `json:"last_success,omitempty"`
	LastDurationMS  int64  `json:"last_duration_ms"`
	IntervalSeconds int    `json:"interval_seconds"`
	Devices         int    `json:"devices"`
	Fresh           bool   `json:"fresh"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	// Collect runtime stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.coord.Stats()

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.wsHub.ClientCount(),
		},
		Coordinator: CoordinatorMetrics{
			Cycles:          stats.Cycles,
			Failures:        stats.Failures,
			LastDurationMS:  stats.LastDuration.Milliseconds(),
			IntervalSeconds: int(s.coord.Interval() / time.Second),
			Devices:         len(s.coord.Devices()),
			Fresh:           s.coord.LastUpdateSuccess(),
		},
	}
	if !stats.LastAttempt.IsZero() {
		metrics.Coordinator.LastAttempt = stats.LastAttempt.UTC().Format(time.RFC3339)
	}
	if !stats.LastSuccess.IsZero() {
		metrics.Coordinator.LastSuccess = stats.LastSuccess.UTC().Format(time.RFC3339)
	}

	// MQTT metrics (if available)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	// Bridge metrics (if available)
	if s.bridge != nil {
		bridgeStats := s.bridge.GetMetrics()
		metrics.Bridge = &BridgeMetrics{
			Connected:        bridgeStats.Connected,
			Devices:          bridgeStats.Devices,
			Switches:         bridgeStats.Switches,
			CommandsReceived: bridgeStats.CommandsReceived,
			CommandsFailed:   bridgeStats.CommandsFailed,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
