package api

import (
	"net/http"
)

// The certificate and stream listeners each serve a single WebSocket
// endpoint at the root path.

func (s *Server) buildAuthRouter() http.Handler {
	r := s.newRouter("local_auth")
	r.Get("/", s.handleCertificate)
	return r
}

func (s *Server) buildStreamRouter() http.Handler {
	r := s.newRouter("local_stream")
	r.Get("/", s.handleStream)
	return r
}

// buildOpsRouter serves health, status and Prometheus metrics.
func (s *Server) buildOpsRouter() http.Handler {
	r := s.newRouter("ops")
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", s.hub.Metrics().Handler())
	return r
}
