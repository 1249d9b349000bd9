package cluster

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shardmesh/searchcore/pkg/grpc"
	apperrors "github.com/shardmesh/searchcore/pkg/errors"
	"github.com/shardmesh/searchcore/pkg/resilience"
)

// ConnState enumerates a connection's position in the reconnect state
// machine.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateReauthenticating
	StateConnected
	StateFreeing
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReauthenticating:
		return "reauthenticating"
	case StateConnected:
		return "connected"
	case StateFreeing:
		return "freeing"
	default:
		return "unknown"
	}
}

// TlsProvider abstracts obtaining TLS material from the host platform's
// configuration rather than from a per-connection argument. A nil provider
// means TLS is never applied.
type TlsProvider interface {
	// Enabled reports whether the given endpoint should be upgraded to
	// TLS before any frame is sent.
	Enabled(e Endpoint) bool
	// Config returns the client TLS configuration to dial e with. Only
	// called when Enabled(e) is true.
	Config(e Endpoint) *tls.Config
}

// StaticTlsProvider is a TlsProvider whose answer does not vary per
// endpoint: TLS is either applied to every pooled connection or to none of
// them, matching the coordinator's single process-wide Cluster.TLSEnabled
// flag.
type StaticTlsProvider struct {
	enabled            bool
	insecureSkipVerify bool
}

// NewStaticTlsProvider builds a TlsProvider from the coordinator's TLS
// config flags.
func NewStaticTlsProvider(enabled, insecureSkipVerify bool) *StaticTlsProvider {
	return &StaticTlsProvider{enabled: enabled, insecureSkipVerify: insecureSkipVerify}
}

func (p *StaticTlsProvider) Enabled(e Endpoint) bool { return p.enabled }

func (p *StaticTlsProvider) Config(e Endpoint) *tls.Config {
	return &tls.Config{ServerName: e.Host, InsecureSkipVerify: p.insecureSkipVerify}
}

const (
	reconnectTimeout = 1 * time.Second
	reauthTimeout    = 2 * time.Second
)

// Conn is one logical full-duplex pipe to a node, driven by the reconnect
// state machine above. Protocol version negotiation (lazy HELLO) is tracked
// via negotiatedVersion.
type Conn struct {
	nodeID   string
	endpoint Endpoint
	auth     string
	tls      TlsProvider

	mu                sync.Mutex
	state             ConnState
	client            *grpc.Client
	breaker           *resilience.CircuitBreaker
	negotiatedVersion int
	timer             *time.Timer
	logger            *slog.Logger
}

// NewConn constructs a connection in the Disconnected state; it does not
// dial until Start is called.
func NewConn(nodeID string, ep Endpoint, auth string, tls TlsProvider) *Conn {
	return &Conn{
		nodeID:   nodeID,
		endpoint: ep,
		auth:     auth,
		tls:      tls,
		state:    StateDisconnected,
		breaker:  resilience.NewCircuitBreaker("conn:"+nodeID, resilience.CircuitBreakerConfig{}),
		logger:   slog.Default().With("component", "cluster-conn", "node_id", nodeID),
	}
}

// State returns the connection's current state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start transitions Disconnected -> Connecting and begins dialing. It is
// idempotent for connections not currently Disconnected.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	c.mu.Unlock()
	go c.connect()
}

func (c *Conn) connect() {
	var client *grpc.Client
	var err error
	if c.tls != nil && c.tls.Enabled(c.endpoint) {
		client, err = grpc.DialTLS(c.endpoint.Addr(), c.tls.Config(c.endpoint))
	} else {
		client, err = grpc.Dial(c.endpoint.Addr())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("connect failed, arming reconnect timer", "error", err)
		c.armReconnect()
		return
	}
	c.client = client
	if c.auth == "" {
		c.state = StateConnected
		c.logger.Info("connected")
		return
	}
	// Auth flow: send AUTH, transition on the reply.
	var reply map[string]any
	if err := client.Call("AUTH", map[string]string{"password": c.auth}, &reply); err != nil {
		c.state = StateReauthenticating
		c.armReauth()
		return
	}
	c.state = StateConnected
	c.logger.Info("connected and authenticated")
}

// armReconnect must be called with mu held; arms the reconnect timer and
// returns to Connecting once it fires.
func (c *Conn) armReconnect() {
	c.client = nil
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(reconnectTimeout, func() {
		c.mu.Lock()
		c.state = StateConnecting
		c.mu.Unlock()
		go c.connect()
	})
}

// armReauth must be called with mu held; arms the reauth timer.
func (c *Conn) armReauth() {
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(reauthTimeout, func() {
		c.mu.Lock()
		c.state = StateConnecting
		c.mu.Unlock()
		go c.connect()
	})
}

// Disconnect notifies the connection that its transport dropped, arming a
// reconnect from any state.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateFreeing {
		return
	}
	c.state = StateConnecting
	c.armReconnect()
}

// Stop transitions to Freeing, detaching and releasing the underlying
// transport. Once Freeing, the connection never reconnects.
func (c *Conn) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFreeing
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// Send dispatches cmd over this connection, negotiating protocol version
// lazily: if requiredVersion differs from the cached negotiatedVersion, a
// HELLO frame is sent first.
func (c *Conn) Send(cmd *Command, requiredVersion int) (map[string]any, error) {
	c.mu.Lock()
	if c.state != StateConnected || c.client == nil {
		c.mu.Unlock()
		return nil, apperrors.NewQueryError(apperrors.KindTransportClosed, "connection to %s not connected", c.nodeID)
	}
	client := c.client
	if requiredVersion != 0 && requiredVersion != c.negotiatedVersion {
		var helloReply map[string]any
		if err := client.Call("HELLO", map[string]int{"version": requiredVersion}, &helloReply); err != nil {
			c.mu.Unlock()
			c.Disconnect()
			return nil, apperrors.NewQueryError(apperrors.KindTransportClosed, "HELLO negotiation failed: %v", err)
		}
		c.negotiatedVersion = requiredVersion
	}
	c.mu.Unlock()

	var reply map[string]any
	err := c.breaker.Execute(func() error {
		return client.Call(cmd.Args[0], cmd.Args[1:], &reply)
	})
	if err != nil {
		c.Disconnect()
		return nil, fmt.Errorf("sending command to %s: %w", c.nodeID, err)
	}
	return reply, nil
}
