package hub

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/protocol"
	"github.com/shubham-shewale/stock-rtd/cmd/rtdserver/internal/rtd"
)

type ClientInterface interface {
	ID() string
	SendJSON(v interface{})
	// Notify queues an update signal; pending signals coalesce.
	Notify()
	Close()
}

// ServerFactory builds the rtd server backing one client session.
type ServerFactory func() *rtd.Server

// Hub owns one rtd.Server per connected client and routes client commands to it.
type Hub struct {
	sessions  map[ClientInterface]*rtd.Server
	newServer ServerFactory
	logger    *zap.Logger
	mu        sync.RWMutex
}

func NewHub(newServer ServerFactory, logger *zap.Logger) *Hub {
	return &Hub{
		sessions:  make(map[ClientInterface]*rtd.Server),
		newServer: newServer,
		logger:    logger,
	}
}

// Register starts a server for the client with the client as its listener.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[client]; ok {
		return
	}

	srv := h.newServer()
	if srv.Start(rtd.NotifierFunc(client.Notify)) != 1 {
		h.logger.Error("Failed to start rtd server", zap.String("client", client.ID()))
		return
	}
	h.sessions[client] = srv
	h.logger.Info("Session opened", zap.String("client", client.ID()), zap.Int("sessions", len(h.sessions)))
}

func (h *Hub) session(client ClientInterface) (*rtd.Server, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	srv, ok := h.sessions[client]
	return srv, ok
}

func (h *Hub) HandleCommand(client ClientInterface, req protocol.WSRequest) {
	srv, ok := h.session(client)
	if !ok {
		h.sendError(client, req.ID, "No active session")
		return
	}

	switch req.Action {
	case protocol.ActionSubscribe:
		h.handleSubscribe(srv, client, req)
	case protocol.ActionUnsubscribe:
		srv.Unsubscribe(req.Payload.TopicID)
		h.sendAck(client, req.ID, fmt.Sprintf("Unsubscribed topic %d", req.Payload.TopicID))
	case protocol.ActionRefresh:
		h.handleRefresh(srv, client, req)
	case protocol.ActionHeartbeat:
		alive := srv.Heartbeat()
		client.SendJSON(protocol.WSResponse{Type: protocol.TypeHeartbeat, ID: req.ID, Alive: &alive})
	default:
		h.sendError(client, req.ID, "Unknown action: "+req.Action)
	}
}

func (h *Hub) handleSubscribe(srv *rtd.Server, client ClientInterface, req protocol.WSRequest) {
	topicID := req.Payload.TopicID
	value := srv.Subscribe(topicID, req.Payload.Fields)

	h.logger.Debug("Topic subscribed",
		zap.String("client", client.ID()),
		zap.Int("topic_id", topicID),
		zap.Strings("fields", req.Payload.Fields))

	client.SendJSON(protocol.WSResponse{
		Type:    protocol.TypeValue,
		ID:      req.ID,
		Status:  "success",
		TopicID: &topicID,
		Data:    value,
	})
}

func (h *Hub) handleRefresh(srv *rtd.Server, client ClientInterface, req protocol.WSRequest) {
	snap := srv.Snapshot()
	count := snap.Len()

	resp := protocol.WSResponse{Type: protocol.TypeSnapshot, ID: req.ID, TopicCount: &count}
	if !snap.Empty() {
		resp.Data = snap.Table()
	}
	client.SendJSON(resp)
}

// Unregister stops the client's server and closes the client.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	srv, ok := h.sessions[client]
	delete(h.sessions, client)
	remaining := len(h.sessions)
	h.mu.Unlock()

	if ok {
		srv.Stop()
		h.logger.Info("Session closed", zap.String("client", client.ID()), zap.Int("sessions", remaining))
	}
	client.Close()
}

// Shutdown stops every session.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[ClientInterface]*rtd.Server)
	h.mu.Unlock()

	for client, srv := range sessions {
		srv.Stop()
		client.Close()
	}
}

// Sessions returns the number of connected clients.
func (h *Hub) Sessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

func (h *Hub) sendAck(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeAck, ID: id, Status: "success", Message: msg})
}

func (h *Hub) sendError(c ClientInterface, id, msg string) {
	c.SendJSON(protocol.WSResponse{Type: protocol.TypeError, ID: id, Status: "error", Message: msg})
}
