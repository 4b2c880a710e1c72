package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/hemma-hub/internal/infrastructure/logging"
	"github.com/nerrad567/hemma-hub/internal/wire"
)

const (
	// maxCertificateRequest bounds the public key message.
	maxCertificateRequest = 1024

	certificateTimeout = 10 * time.Second
)

// handleCertificate signs the public key a client sends and replies with
// the signature and the hub's public key. The key is not validated.
func (s *Server) handleCertificate(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("certificate upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxCertificateRequest)
	//nolint:errcheck // A failed deadline surfaces on the read
	conn.SetReadDeadline(time.Now().Add(certificateTimeout))
	_, key, err := conn.ReadMessage()
	if err != nil {
		s.logger.Debug("certificate request not received", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := s.hub.Identity()
	reply, err := wire.Marshal(wire.Certificate{
		Signature: id.IssueCertificate(key),
		Key:       id.PublicKey()[:],
	})
	if err != nil {
		s.logger.Error("encoding certificate failed", "error", err)
		return
	}

	deadline := time.Now().Add(certificateTimeout)
	//nolint:errcheck // A failed deadline surfaces on the write
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.BinaryMessage, reply); err != nil {
		s.logger.Debug("sending certificate failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.hub.Metrics().CertificatesIssued.Inc()
	s.logger.Info("certificate issued", "remote", r.RemoteAddr, "key", logging.Fingerprint(key))

	//nolint:errcheck // The peer may already be gone
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
