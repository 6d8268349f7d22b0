// Package api implements the local HTTP REST API and WebSocket server.
//
// This package provides:
//   - REST endpoints for device listings, status snapshots, and switch commands
//   - WebSocket hub for real-time coordinator event broadcasts
//   - Optional JWT authentication with ticket-based WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body size limit)
//   - TLS support for deployments beyond the trusted LAN
//
// # Architecture
//
// The API server sits beside the Home Assistant MQTT bridge as a second
// consumer of the coordinator: reads serve from the coordinator's snapshot,
// commands route through the same switch descriptor table as MQTT commands,
// and coordinator events are broadcast to WebSocket clients. The server never
// talks to a device directly except through the hub client.
//
// # Security
//
// Authentication is disabled by default — the bridge targets trusted LAN
// deployments. When security.auth.enabled is set, POST /auth/login exchanges
// the configured credentials for an HS256 JWT and every other route requires
// it. WebSocket connections then use single-use tickets to keep tokens out of
// URLs.
//
// # Graceful Degradation
//
// The server runs without MQTT or the Home Assistant bridge — those only feed
// the health and metrics endpoints. Reads always work while the coordinator
// is up; commands fail with a gateway error when the hub is unreachable.
package api
