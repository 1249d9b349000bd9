// Package cluster implements the shard topology and connection fabric:
// endpoints, nodes, shards, a live topology, a hash-based shard router, a
// connection pool with a reconnect state machine, and a command multiplexer
// that rewrites commands to route to the correct shard.
package cluster

import (
	"strconv"
	"strings"
)

// Endpoint identifies one addressable node: host/port, an optional unix
// socket path, and an optional auth secret. Endpoints own their strings and
// are cloned on duplication (Go value semantics give us this for free).
type Endpoint struct {
	Host       string
	Port       int
	UnixSocket string
	Auth       string
}

// Clone returns a deep copy of the endpoint.
func (e Endpoint) Clone() Endpoint {
	return Endpoint{Host: e.Host, Port: e.Port, UnixSocket: e.UnixSocket, Auth: e.Auth}
}

// Equal reports whether two endpoints share the same host and port — the
// identity the connection pool uses to decide whether Add is a no-op.
func (e Endpoint) Equal(o Endpoint) bool {
	return strings.EqualFold(e.Host, o.Host) && e.Port == o.Port
}

// Addr renders "host:port" for logging and dialing, or the unix socket path
// instead when one is set.
func (e Endpoint) Addr() string {
	if e.UnixSocket != "" {
		return e.UnixSocket
	}
	return e.Host + ":" + strconv.Itoa(e.Port)
}
