// Package ws streams scan events to browser clients over WebSocket.
// Each network is a topic; subscribers get log lines, topology
// snapshots, and status transitions as they happen. Slow subscribers
// are lossy: the scan worker is never blocked by a stuck socket.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// sendBuffer is the per-subscriber backlog; messages beyond it are
// dropped.
const sendBuffer = 256

// writeTimeout bounds one frame write to a client.
const writeTimeout = 5 * time.Second

// Event types carried on the stream.
const (
	TypeLog      = "log"
	TypeTopology = "topology"
	TypeStatus   = "status"
)

// Message is one frame on the event stream.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscriber struct {
	send    chan []byte
	dropped int
}

// Hub fans scan events out to WebSocket subscribers grouped by
// network.
type Hub struct {
	logger *zap.Logger

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

// Broadcast sends msg to every subscriber of the network. Marshalling
// happens once; subscribers whose buffers are full miss the message.
func (h *Hub) Broadcast(networkID string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("ws marshal failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[networkID] {
		select {
		case sub.send <- payload:
		default:
			sub.dropped++
		}
	}
}

// SubscriberCount returns the number of connected clients for a
// network.
func (h *Hub) SubscriberCount(networkID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[networkID])
}

// Serve upgrades the request and pumps the network's event stream to
// the client until either side closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, networkID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("ws accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := &subscriber{send: make(chan []byte, sendBuffer)}
	h.register(networkID, sub)
	defer h.unregister(networkID, sub)

	// CloseRead discards inbound frames and cancels the context when
	// the client goes away.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sub.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(wctx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) register(networkID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[networkID] == nil {
		h.subs[networkID] = make(map[*subscriber]struct{})
	}
	h.subs[networkID][sub] = struct{}{}
	h.logger.Debug("ws subscriber joined",
		zap.String("network", networkID),
		zap.Int("total", len(h.subs[networkID])),
	)
}

func (h *Hub) unregister(networkID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[networkID], sub)
	if len(h.subs[networkID]) == 0 {
		delete(h.subs, networkID)
	}
	if sub.dropped > 0 {
		h.logger.Debug("ws subscriber left with drops",
			zap.String("network", networkID),
			zap.Int("dropped", sub.dropped),
		)
	}
}
