package gateway

import (
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/hub"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/protocol"
)

const (
	maxMessageSize = 64 * 1024
)

// Limits bounds how fast one client may issue commands.
type Limits struct {
	CommandsPerSecond float64
	Burst             int
}

type ClientAdapter struct {
	id      string
	conn    net.Conn
	hub     *hub.Hub
	send    chan []byte
	notify  chan struct{}
	limiter *rate.Limiter
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger, limits Limits) *ClientAdapter {
	limit, burst := rate.Inf, limits.Burst
	if limits.CommandsPerSecond > 0 {
		limit = rate.Limit(limits.CommandsPerSecond)
		burst = max(burst, 1)
	}
	id := uuid.NewString()

	return &ClientAdapter{
		id:         id,
		conn:       conn,
		hub:        h,
		send:       make(chan []byte, 256),
		notify:     make(chan struct{}, 1),
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger.With(zap.String("client", id), zap.String("remote", conn.RemoteAddr().String())),
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Start registers the session with the hub and starts the pumps.
func (c *ClientAdapter) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.id }

// Close only closes the channel; writePump closes the conn.
func (c *ClientAdapter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *ClientAdapter) SendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("JSON Marshal Error", zap.Error(err))
		return
	}
	c.SendBytes(b)
}

func (c *ClientAdapter) SendBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		c.logger.Warn("Dropping message, send buffer full")
	}
}

// Notify queues one update signal. A signal that is already pending absorbs this one.
func (c *ClientAdapter) Notify() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			break
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			break
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			break
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			break
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPong:
			c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
			continue
		case ws.OpText:
		default:
			continue
		}

		var req protocol.WSRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, Message: "Invalid JSON"})
			continue
		}

		if !c.limiter.Allow() {
			c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: req.ID, Status: "error", Message: "Rate limit exceeded"})
			continue
		}

		c.hub.HandleCommand(c, req)
	}
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-c.notify:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerText(c.conn, protocol.UpdateNotify); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
