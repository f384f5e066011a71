package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is the envelope pushed to the presentation layer.
type Message struct {
	Topic      string            `json:"topic"`
	Entity     string            `json:"entity"`
	Action     string            `json:"action"`
	ResourceID string            `json:"resourceId,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Data       any               `json:"data,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

const (
	SystemEntity  = "system"
	CatalogEntity = "catalog"
	OrderEntity   = "order"

	ActionConnected = "connected"
	ActionPong      = "pong"
	ActionError     = "error"
	ActionSnapshot  = "snapshot"

	TopicSystemConnected = SystemEntity + "." + ActionConnected
	TopicSystemPong      = SystemEntity + "." + ActionPong
	TopicSystemError     = SystemEntity + "." + ActionError
	TopicCatalogSnapshot = CatalogEntity + "." + ActionSnapshot
)

// OrderTopic returns the topic for the given order state kind.
func OrderTopic(kind StateKind) string {
	return buildTopic(OrderEntity, string(kind))
}

func buildTopic(entity, action string) string {
	cleanEntity := strings.TrimSpace(entity)
	cleanAction := strings.TrimSpace(action)
	if cleanEntity == "" || cleanAction == "" {
		return ""
	}
	return cleanEntity + "." + cleanAction
}

// CatalogPayload is the data of a catalog message.
type CatalogPayload struct {
	Machines []MachineView `json:"machines"`
	Message  string        `json:"message,omitempty"`
}

// OrderPayload is the data of an order message.
type OrderPayload struct {
	State       StateKind `json:"state"`
	Message     string    `json:"message,omitempty"`
	Refresh     bool      `json:"refresh,omitempty"`
	Cancellable bool      `json:"cancellable"`
}

// BuildCatalogMessage composes the menu message shown on the item grid.
func BuildCatalogMessage(views []MachineView, note string, at time.Time) *Message {
	visible := 0
	for _, view := range views {
		if view.Visible {
			visible++
		}
	}
	return &Message{
		Topic:     TopicCatalogSnapshot,
		Entity:    CatalogEntity,
		Action:    ActionSnapshot,
		Metadata:  map[string]string{"visibleMachines": strconv.Itoa(visible)},
		Data:      CatalogPayload{Machines: views, Message: note},
		Timestamp: at.UTC(),
	}
}

// BuildOrderMessage composes the order panel message for one state transition.
func BuildOrderMessage(orderID uuid.UUID, state OrderState, at time.Time) *Message {
	kind := state.Kind()
	payload := OrderPayload{State: kind, Message: StateMessage(state)}
	switch s := state.(type) {
	case PleaseScan:
		payload.Cancellable = true
	case Finished:
		payload.Refresh = s.Refresh
	}
	return &Message{
		Topic:      OrderTopic(kind),
		Entity:     OrderEntity,
		Action:     string(kind),
		ResourceID: orderID.String(),
		Data:       payload,
		Timestamp:  at.UTC(),
	}
}

// BuildErrorMessage composes a system error message for the presentation layer.
func BuildErrorMessage(reason string, at time.Time) *Message {
	return &Message{
		Topic:     TopicSystemError,
		Entity:    SystemEntity,
		Action:    ActionError,
		Data:      map[string]string{"error": strings.TrimSpace(reason)},
		Timestamp: at.UTC(),
	}
}
