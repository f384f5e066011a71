package handler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/usecase"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// RefreshTriggerHandler turns inventory events on a broker topic into an early catalog fetch.
type RefreshTriggerHandler struct {
	topic     string
	refresher usecase.RefreshRequester
}

func NewRefreshTriggerHandler(topic string, refresher usecase.RefreshRequester) *RefreshTriggerHandler {
	return &RefreshTriggerHandler{
		topic:     strings.TrimSpace(topic),
		refresher: refresher,
	}
}

func (h *RefreshTriggerHandler) Topic() string { return h.topic }

func (h *RefreshTriggerHandler) Handle(_ context.Context, msg *domain.Message) error {
	if msg != nil {
		slog.Info("catalog refresh triggered",
			slog.String("topic", h.topic),
			slog.String("entity", msg.Entity),
			slog.String("action", msg.Action),
		)
	}
	h.refresher.RequestRefresh()
	return nil
}

var _ port.TopicHandler = (*RefreshTriggerHandler)(nil)
