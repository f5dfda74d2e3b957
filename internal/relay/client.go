// ABOUTME: Outbound WebSocket client that keeps this gateway reachable through a remote broker.
// ABOUTME: Registers on connect, heartbeats, relays chat turns, and reconnects indefinitely.

package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/portico-dev/portico/internal/engine"
	"github.com/portico-dev/portico/internal/pairing"
	"github.com/portico-dev/portico/internal/session"
)

// Status reports relay link transitions to the owner.
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusPaired       Status = "paired"
)

// Config carries everything the relay client needs. All fields except
// OnStatus are required.
type Config struct {
	URL               string
	DeviceID          string
	Authority         *pairing.Authority
	Engine            engine.Engine
	WorkDir           string
	HeartbeatInterval time.Duration
	ReconnectDelay    time.Duration
	Logger            *slog.Logger
	OnStatus          func(Status)
}

// Client maintains one persistent connection to the broker. A dropped
// connection schedules exactly one reconnect attempt; attempts repeat at a
// fixed delay until the broker is reachable again or the client is closed.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu             sync.Mutex
	conn           *websocket.Conn
	connDone       chan struct{}
	reconnectTimer *time.Timer
	closed         bool

	// writeMu serializes frame writes; heartbeats and per-turn goroutines
	// share the connection.
	writeMu sync.Mutex

	turns sync.WaitGroup
}

// New creates a relay client. Call Start to begin connecting.
func New(cfg Config) *Client {
	return &Client{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "relay"),
	}
}

// Start makes the first connection attempt. A failed dial is not an error;
// it schedules a retry just like a mid-session disconnect would.
func (c *Client) Start(ctx context.Context) {
	if err := c.connect(ctx); err != nil {
		c.logger.Warn("initial broker connection failed", "url", c.cfg.URL, "error", err)
		c.scheduleReconnect(ctx)
	}
}

// Close tears the client down: pending reconnects are cancelled first so a
// concurrent disconnect cannot resurrect the link, then the connection is
// closed and in-flight relayed turns are awaited.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	c.turns.Wait()
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
		return nil
	}
	c.conn = conn
	c.connDone = done
	c.mu.Unlock()

	register := Message{
		Type:     TypeRegister,
		DeviceID: c.cfg.DeviceID,
		PairCode: c.cfg.Authority.Secret(),
	}
	if err := c.send(conn, register); err != nil {
		_ = conn.Close(websocket.StatusInternalError, "register failed")
		return fmt.Errorf("send register: %w", err)
	}

	c.logger.Info("connected to broker", "url", c.cfg.URL, "device_id", c.cfg.DeviceID)
	c.notify(StatusConnected)

	go c.heartbeatLoop(ctx, conn, done)
	go c.readLoop(ctx, conn, done)
	return nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleDisconnect(ctx, conn, err)
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("dropping malformed broker frame", "error", err)
			continue
		}

		switch msg.Type {
		case TypePong:
			// Heartbeat acknowledged.
		case TypePing:
			if err := c.send(conn, Message{Type: TypePong}); err != nil {
				c.logger.Debug("failed to answer broker ping", "error", err)
			}
		case TypePairSuccess:
			c.logger.Info("broker confirmed pairing", "device_id", c.cfg.DeviceID)
			c.notify(StatusPaired)
		case TypeChat:
			c.turns.Add(1)
			go func(m Message) {
				defer c.turns.Done()
				c.handleChat(ctx, conn, m)
			}(msg)
		default:
			c.logger.Warn("dropping unknown broker frame", "type", msg.Type)
		}
	}
}

func (c *Client) heartbeatLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(conn, Message{Type: TypePing}); err != nil {
				c.logger.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// handleChat runs one relayed chat turn and streams its envelopes back as
// response frames keyed by the broker's request id.
func (c *Client) handleChat(ctx context.Context, conn *websocket.Conn, msg Message) {
	if msg.RequestID == "" {
		c.logger.Warn("dropping chat frame without request id")
		return
	}

	c.logger.Info("relaying chat turn", "request_id", msg.RequestID, "session_id", msg.SessionID)

	turn := engine.TurnRequest{
		Message:    msg.Message,
		SessionID:  msg.SessionID,
		WorkingDir: c.cfg.WorkDir,
	}

	session.RunTurn(ctx, c.cfg.Engine, turn, func(env engine.Envelope) {
		var out Message
		switch env.Kind {
		case engine.KindDone:
			out = Message{Type: TypeChatDone, RequestID: msg.RequestID, SessionID: env.SessionID}
		case engine.KindError:
			out = Message{Type: TypeChatError, RequestID: msg.RequestID, Error: env.Message}
		default:
			data, err := json.Marshal(env)
			if err != nil {
				c.logger.Error("failed to marshal relay envelope", "error", err)
				return
			}
			out = Message{Type: TypeChatResponse, RequestID: msg.RequestID, Data: data}
		}
		if err := c.send(conn, out); err != nil {
			c.logger.Debug("relay write failed", "request_id", msg.RequestID, "error", err)
		}
	})
}

func (c *Client) send(conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(context.Background(), websocket.MessageText, data)
}

// handleDisconnect runs when the read loop exits. Stale connections (already
// replaced or intentionally closed) are ignored.
func (c *Client) handleDisconnect(ctx context.Context, conn *websocket.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()

	if !current || closed {
		return
	}

	if websocket.CloseStatus(err) != -1 {
		c.logger.Warn("broker closed connection", "status", websocket.CloseStatus(err))
	} else {
		c.logger.Warn("broker connection lost", "error", err)
	}
	c.notify(StatusDisconnected)
	c.scheduleReconnect(ctx)
}

// scheduleReconnect arms a single retry timer. The nil check under the lock
// guarantees at most one pending attempt no matter how many goroutines
// observe the same failure.
func (c *Client) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.reconnectTimer != nil {
		return
	}

	c.logger.Info("scheduling broker reconnect", "delay", c.cfg.ReconnectDelay)
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		closed := c.closed
		c.mu.Unlock()

		if closed || ctx.Err() != nil {
			return
		}
		if err := c.connect(ctx); err != nil {
			c.logger.Warn("broker reconnect failed", "error", err)
			c.scheduleReconnect(ctx)
		}
	})
}

func (c *Client) notify(status Status) {
	if c.cfg.OnStatus != nil {
		c.cfg.OnStatus(status)
	}
}
