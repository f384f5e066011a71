package infrastructure

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// Hub fans display messages out to every attached client. The latest catalog and
// order messages are kept so a display that connects mid-order sees the current screen.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*Client]struct{}
	lastCatalog []byte
	lastOrder   []byte
	now         func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		now:     time.Now,
	}
}

func (h *Hub) ShowCatalog(views []domain.MachineView, note string) {
	h.Broadcast(domain.BuildCatalogMessage(views, note, h.now()))
}

func (h *Hub) ShowOrder(orderID uuid.UUID, state domain.OrderState) {
	h.Broadcast(domain.BuildOrderMessage(orderID, state, h.now()))
}

func (h *Hub) ShowError(err error) {
	if err == nil {
		return
	}
	h.Broadcast(domain.BuildErrorMessage(err.Error(), h.now()))
}

// Broadcast sends msg to all clients. Clients whose buffer is full are detached.
func (h *Hub) Broadcast(msg *domain.Message) {
	if msg == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("broadcast marshal error", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	switch {
	case msg.Topic == domain.TopicCatalogSnapshot:
		h.lastCatalog = data
	case msg.Entity == domain.OrderEntity:
		if domain.IsTerminal(domain.NormalizeStateKind(msg.Action)) {
			h.lastOrder = nil
		} else {
			h.lastOrder = data
		}
	}
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if !c.enqueue(data) {
			slog.Warn("ws send buffer full", slog.String("displayId", c.displayID))
			go h.detachClient(c)
		}
	}
}

// AttachClient registers c and replays the current screen to it. The replay is queued
// under the hub lock so no broadcast can land ahead of it.
func (h *Hub) AttachClient(c *Client) {
	connected, err := json.Marshal(&domain.Message{
		Topic:     domain.TopicSystemConnected,
		Entity:    domain.SystemEntity,
		Action:    domain.ActionConnected,
		Metadata:  map[string]string{"displayId": c.displayID},
		Timestamp: h.now().UTC(),
	})
	if err != nil {
		slog.Error("websocket marshal error", slog.Any("error", err))
		return
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	ok := c.enqueue(connected)
	replayed := 0
	for _, data := range [][]byte{h.lastCatalog, h.lastOrder} {
		if data == nil || !ok {
			continue
		}
		ok = c.enqueue(data)
		replayed++
	}
	h.mu.Unlock()

	if !ok {
		slog.Warn("ws send buffer full on attach", slog.String("displayId", c.displayID))
		go h.detachClient(c)
		return
	}
	slog.Info("ws client attached", slog.String("displayId", c.displayID), slog.Int("replayed", replayed))
}

func (h *Hub) detachClient(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	if ok {
		slog.Info("ws client detached", slog.String("displayId", c.displayID))
	}
}

// ClientCount reports the number of attached displays.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func sanitizeDisplayID(raw string) string {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		return trimmed
	}
	return "anonymous"
}

var _ port.Display = (*Hub)(nil)
