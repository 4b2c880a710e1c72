// Package api runs the hub's network listeners.
//
// There are three, each with its own chi router:
//   - local_auth: the certificate endpoint. A client sends its raw public
//     key over a WebSocket and receives {signature, key} in CBOR.
//   - local_stream: the encrypted stream endpoint. Every WebSocket becomes a
//     transport connection attached to the hub.
//   - ops: plain HTTP /health, /status and Prometheus /metrics, bound to
//     loopback by default.
//
// The certificate and stream listeners use TLS when tls.enabled is set.
//
// # Security
//
// The certificate endpoint signs any key it is given. Whoever can reach it
// can pair, so it should only be exposed on a trusted network.
package api
