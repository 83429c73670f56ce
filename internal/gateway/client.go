// Package gateway provides the trading-gateway client: the external
// collaborator that accepts venue connections and market orders. The real
// order-routing protocol is out of scope; the TCP client performs a bounded
// connection probe and a paper submission.
package gateway

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/rxtech-lab/centrix/internal/logger"
	"github.com/rxtech-lab/centrix/internal/types"
)

// DefaultConnectTimeout bounds a gateway connection attempt. No retry is
// performed on failure.
const DefaultConnectTimeout = 5 * time.Second

// Client is the contract the order lifecycle depends on.
type Client interface {
	// Connect attempts to reach the gateway within timeout. Failure never
	// panics or leaves an open resource; it returns false.
	Connect(timeout time.Duration) bool
	// Disconnect releases the connection. Idempotent, safe to call even if
	// never connected.
	Disconnect()
	// IsConnected returns the cached connection status, not a live probe.
	IsConnected() bool
	// SubmitMarketOrder submits a market order over the open connection.
	// Returns success and, on failure, a descriptive message.
	SubmitMarketOrder(symbol string, side types.Side, quantity float64) (bool, string)
}

// TCPClient is the paper-trading gateway client. It verifies reachability of
// the gateway socket and acknowledges submissions over the open connection.
type TCPClient struct {
	settings  Settings
	log       *logger.Logger
	conn      net.Conn
	connected bool
}

var _ Client = (*TCPClient)(nil)

// NewTCPClient creates a TCPClient with connection parameters but no active
// connection.
func NewTCPClient(settings Settings, log *logger.Logger) *TCPClient {
	return &TCPClient{
		settings:  settings,
		log:       log,
		conn:      nil,
		connected: false,
	}
}

// Settings returns the resolved connection parameters.
func (c *TCPClient) Settings() Settings {
	return c.settings
}

// Connect dials the gateway with the given timeout.
func (c *TCPClient) Connect(timeout time.Duration) bool {
	address := net.JoinHostPort(c.settings.Host, fmt.Sprintf("%d", c.settings.Port))

	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		c.log.Warn("gateway connection failed",
			zap.String("address", address),
			zap.Int("client_id", c.settings.ClientID),
			zap.Error(err))
		c.conn = nil
		c.connected = false

		return false
	}

	c.conn = conn
	c.connected = true

	return true
}

// Disconnect closes the gateway connection if open.
func (c *TCPClient) Disconnect() {
	if c.conn != nil {
		_ = c.conn.Close()
	}

	c.conn = nil
	c.connected = false
}

// IsConnected returns the cached connection status.
func (c *TCPClient) IsConnected() bool {
	return c.connected
}

// SubmitMarketOrder acknowledges a market order on the open connection.
func (c *TCPClient) SubmitMarketOrder(symbol string, side types.Side, quantity float64) (bool, string) {
	if !c.connected {
		return false, "gateway not connected"
	}

	c.log.Info("market order submitted to gateway",
		zap.String("symbol", symbol),
		zap.String("side", string(side)),
		zap.Float64("quantity", quantity),
		zap.Int("client_id", c.settings.ClientID))

	return true, ""
}
