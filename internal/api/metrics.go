package api

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"
)

const healthCheckTimeout = 5 * time.Second

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string            `json:"status"`
	Version     string            `json:"version"`
	Connections int               `json:"connections"`
	Checks      map[string]string `json:"checks,omitempty"`
}

// SystemStatus is the body of GET /status.
type SystemStatus struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Connections   int              `json:"connections"`
	Upstream      string           `json:"upstream"`
	Sources       []SourceStatus   `json:"sources"`
	Plugins       []string         `json:"plugins"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// SourceStatus describes one configured source.
type SourceStatus struct {
	ID        string `json:"id"`
	Connected *bool  `json:"connected,omitempty"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleHealth runs every registered health check. Any failure makes the
// response 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Version:     s.version,
		Connections: s.hub.ConnectionCount(),
		Checks:      make(map[string]string, len(s.checks)),
	}
	status := http.StatusOK
	for name, c := range s.checks {
		if err := c.HealthCheck(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	writeJSON(w, status, resp)
}

// handleStatus reports runtime and hub statistics.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Connections: s.hub.ConnectionCount(),
		Upstream:    "disabled",
		Sources:     []SourceStatus{},
		Plugins:     []string{},
	}

	if s.upstream != nil && s.cfg.Upstream.URL != "" {
		status.Upstream = s.upstream.State().String()
	}

	for _, src := range s.hub.Sources() {
		st := SourceStatus{ID: src.ID()}
		if c, ok := src.(interface{ IsConnected() bool }); ok {
			connected := c.IsConnected()
			st.Connected = &connected
		}
		status.Sources = append(status.Sources, st)
	}
	for _, p := range s.hub.Plugins() {
		status.Plugins = append(status.Plugins, p.ID())
	}
	sort.Strings(status.Plugins)

	if s.db != nil {
		dbStats := s.db.Stats()
		status.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, status)
}
