package api

import (
	"net/http"
	"time"
)

// handleSnapshot returns the whole status snapshot keyed by MAC, plus the
// poll loop's view of its freshness.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.coord.Snapshot()
	stats := s.coord.Stats()

	response := map[string]any{
		"snapshot": snapshot,
		"count":    len(snapshot),
		"fresh":    s.coord.LastUpdateSuccess(),
	}
	if !stats.LastSuccess.IsZero() {
		response["last_success"] = stats.LastSuccess.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

// handleRefresh runs one poll cycle immediately and reports its outcome.
// The request blocks until the cycle finishes; a failed cycle maps to 502
// because the hub, not this server, is the failing party.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.coord.Refresh(r.Context()); err != nil {
		writeHubUnreachable(w, err.Error())
		return
	}

	stats := s.coord.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed":   true,
		"devices":     len(s.coord.Devices()),
		"cycles":      stats.Cycles,
		"duration_ms": stats.LastDuration.Milliseconds(),
	})
}
