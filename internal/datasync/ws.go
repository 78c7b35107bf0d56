// Package datasync is the snapshot producer: it subscribes to new-block
// notifications, batch-reads pool reserves pinned at each block, and
// delivers atomic MarketSnapshot values to the engine through an ordered,
// bounded channel.
package datasync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Whisker17/swap-path/internal/observability"
)

// BlockHeader is the subset of a chain head notification the producer
// needs.
type BlockHeader struct {
	Number    uint64
	Hash      string
	Timestamp uint64 // chain timestamp, seconds
}

// HeadClientConfig configures WebSocket client behavior.
type HeadClientConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is the maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
}

// DefaultHeadClientConfig returns default WebSocket configuration.
func DefaultHeadClientConfig() HeadClientConfig {
	return HeadClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// HeadClient subscribes to eth newHeads over WebSocket and forwards block
// headers. It reconnects with exponential backoff and resubscribes; the
// engine tolerates the resulting gaps.
type HeadClient struct {
	endpoint string
	config   HeadClientConfig
	logger   *log.Logger
	metrics  *observability.Metrics
}

// NewHeadClient creates a head subscription client.
func NewHeadClient(endpoint string, config *HeadClientConfig, logger *log.Logger, metrics *observability.Metrics) *HeadClient {
	cfg := DefaultHeadClientConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}
	return &HeadClient{endpoint: endpoint, config: cfg, logger: logger, metrics: metrics}
}

// Run streams headers into out until the context is cancelled. Connection
// failures are retried indefinitely; the error return is the context's.
func (c *HeadClient) Run(ctx context.Context, out chan<- BlockHeader) error {
	delay := c.config.ReconnectDelay

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		err := c.streamOnce(ctx, out)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Printf("datasync: head subscription lost: %v, reconnecting in %s", err, delay)
		if c.metrics != nil {
			c.metrics.WSReconnects.Inc()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.config.MaxReconnectDelay {
			delay = c.config.MaxReconnectDelay
		}
	}
}

// streamOnce dials, subscribes, and forwards headers until the connection
// breaks.
func (c *HeadClient) streamOnce(ctx context.Context, out chan<- BlockHeader) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.WriteTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.endpoint, err)
	}
	defer conn.Close()

	// Close the connection when the context is cancelled so the blocked
	// read returns.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	sub := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribe newHeads: %w", err)
	}

	c.logger.Printf("datasync: subscribed to newHeads at %s", c.endpoint)

	for {
		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		header, ok, err := parseHeadMessage(data)
		if err != nil {
			c.logger.Printf("datasync: bad head notification: %v", err)
			continue
		}
		if !ok {
			continue // subscription confirmation or unrelated message
		}

		select {
		case out <- header:
		case <-ctx.Done():
			return nil
		}
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Params *struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type headPayload struct {
	Number    string `json:"number"`
	Hash      string `json:"hash"`
	Timestamp string `json:"timestamp"`
}

// parseHeadMessage extracts a BlockHeader from an eth_subscription
// notification. ok is false for non-notification messages.
func parseHeadMessage(data []byte) (BlockHeader, bool, error) {
	var msg rpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return BlockHeader{}, false, fmt.Errorf("unmarshal rpc message: %w", err)
	}
	if msg.Error != nil {
		return BlockHeader{}, false, fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)
	}
	if msg.Method != "eth_subscription" || msg.Params == nil {
		return BlockHeader{}, false, nil
	}

	var payload headPayload
	if err := json.Unmarshal(msg.Params.Result, &payload); err != nil {
		return BlockHeader{}, false, fmt.Errorf("unmarshal head payload: %w", err)
	}

	number, err := parseHexUint(payload.Number)
	if err != nil {
		return BlockHeader{}, false, fmt.Errorf("parse block number %q: %w", payload.Number, err)
	}
	timestamp, err := parseHexUint(payload.Timestamp)
	if err != nil {
		return BlockHeader{}, false, fmt.Errorf("parse timestamp %q: %w", payload.Timestamp, err)
	}

	return BlockHeader{Number: number, Hash: payload.Hash, Timestamp: timestamp}, true, nil
}

func parseHexUint(s string) (uint64, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return 0, fmt.Errorf("empty hex number")
	}
	return strconv.ParseUint(s, 16, 64)
}
