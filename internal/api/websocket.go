package api

import (
	"net/http"

	"github.com/nerrad567/hemma-hub/internal/transport"
)

// handleStream upgrades a client connection and attaches it to the hub for
// its lifetime. Frames are read in order and queued for the router.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("stream upgrade failed", "error", err)
		return
	}

	conn := transport.NewWSConn(ws, s.connCfg, s.logger)
	s.logger.Debug("stream client connected", "conn", conn.ID(), "remote", conn.RemoteAddr())

	err = s.hub.Attach(r.Context(), conn)
	s.logger.Debug("stream client disconnected", "conn", conn.ID(), "error", err)
}
