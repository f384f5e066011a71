package infrastructure

import (
	"context"
	"strings"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// HandlerRegistry routes broker messages to the handler registered for their topic.
type HandlerRegistry struct {
	handlers map[string]port.TopicHandler
}

func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]port.TopicHandler)}
}

func (r *HandlerRegistry) Register(h port.TopicHandler) {
	if topic := strings.TrimSpace(h.Topic()); topic != "" {
		r.handlers[topic] = h
	}
}

// Topics lists the registered topics.
func (r *HandlerRegistry) Topics() []string {
	topics := make([]string, 0, len(r.handlers))
	for topic := range r.handlers {
		topics = append(topics, topic)
	}
	return topics
}

// Dispatch looks up the source topic first and the envelope topic second.
func (r *HandlerRegistry) Dispatch(ctx context.Context, source string, msg *domain.Message) error {
	if handler, ok := r.handlers[source]; ok {
		return handler.Handle(ctx, msg)
	}
	if msg != nil {
		if handler, ok := r.handlers[msg.Topic]; ok {
			return handler.Handle(ctx, msg)
		}
	}
	return nil
}
