package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

const defaultIntentBuffer = 16

// OrderStarter spawns one order workflow.
type OrderStarter interface {
	Start(ctx context.Context, intent domain.OrderIntent) uuid.UUID
}

// RefreshRequester asks for an early catalog fetch.
type RefreshRequester interface {
	RequestRefresh()
}

// KioskSession is the single consumer of catalog updates, order events and user intents.
// All of its state is owned by the Run goroutine.
type KioskSession struct {
	filter    domain.MenuFilter
	starter   OrderStarter
	refresher RefreshRequester
	display   port.Display
	catalog   <-chan domain.CatalogSnapshot
	events    <-chan domain.OrderEvent
	intents   chan domain.Intent

	views  []domain.MachineView
	note   string
	active uuid.UUID
	cancel domain.CancelHandle
	// pendingCancel holds a cancel that arrived before the order reported its handle.
	pendingCancel bool
}

func NewKioskSession(
	filter domain.MenuFilter,
	starter OrderStarter,
	refresher RefreshRequester,
	display port.Display,
	catalog <-chan domain.CatalogSnapshot,
	events <-chan domain.OrderEvent,
) *KioskSession {
	return &KioskSession{
		filter:    filter,
		starter:   starter,
		refresher: refresher,
		display:   display,
		catalog:   catalog,
		events:    events,
		intents:   make(chan domain.Intent, defaultIntentBuffer),
		views:     filter.BuildMenu(domain.CatalogSnapshot{}),
	}
}

// Submit queues a user intent. It reports false when the queue is full.
func (s *KioskSession) Submit(intent domain.Intent) bool {
	if intent == nil {
		return false
	}
	select {
	case s.intents <- intent:
		return true
	default:
		slog.Warn("dropping intent, queue full")
		return false
	}
}

// Run consumes until ctx is cancelled.
func (s *KioskSession) Run(ctx context.Context) error {
	s.display.ShowCatalog(s.views, s.note)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snapshot := <-s.catalog:
			s.applyCatalog(snapshot)
		case event := <-s.events:
			s.applyEvent(event)
		case intent := <-s.intents:
			s.applyIntent(ctx, intent)
		}
	}
}

func (s *KioskSession) applyCatalog(snapshot domain.CatalogSnapshot) {
	s.views = s.filter.BuildMenu(snapshot)
	s.note = snapshot.Message
	s.display.ShowCatalog(s.views, s.note)
}

func (s *KioskSession) applyIntent(ctx context.Context, intent domain.Intent) {
	switch in := intent.(type) {
	case domain.OrderRequest:
		if s.active != uuid.Nil {
			slog.Info("order rejected, another order is live", slog.String("activeOrderId", s.active.String()))
			s.display.ShowError(port.ErrOrderInProgress)
			return
		}
		view, ok := domain.FindSlot(s.views, in.MachineID, in.Slot)
		if !ok {
			slog.Info("order rejected, slot not on menu", slog.Int64("machineId", in.MachineID), slog.Int64("slot", in.Slot))
			s.display.ShowError(port.ErrItemUnavailable)
			return
		}
		s.active = s.starter.Start(ctx, domain.IntentFromSlot(view))
		s.cancel = domain.CancelHandle{}
		s.pendingCancel = false
	case domain.CancelRequest:
		if s.active == uuid.Nil {
			return
		}
		if !s.cancel.Valid() {
			s.pendingCancel = true
			slog.Info("cancel deferred until order is scanning", slog.String("orderId", s.active.String()))
			return
		}
		if s.cancel.Cancel() {
			slog.Info("cancel requested", slog.String("orderId", s.active.String()))
		}
	default:
		slog.Warn("unknown intent", slog.Any("intent", intent))
	}
}

func (s *KioskSession) applyEvent(event domain.OrderEvent) {
	if event.State == nil {
		return
	}
	if s.active == uuid.Nil || event.OrderID != s.active {
		slog.Warn("dropping event for stale order",
			slog.String("orderId", event.OrderID.String()),
			slog.String("state", string(event.State.Kind())),
		)
		return
	}

	s.display.ShowOrder(event.OrderID, event.State)
	if scan, ok := event.State.(domain.PleaseScan); ok {
		s.cancel = scan.Cancel
		if s.pendingCancel {
			s.pendingCancel = false
			if s.cancel.Cancel() {
				slog.Info("deferred cancel requested", slog.String("orderId", s.active.String()))
			}
		}
	}

	finished, ok := event.State.(domain.Finished)
	if !ok {
		return
	}
	s.active = uuid.Nil
	s.cancel = domain.CancelHandle{}
	s.pendingCancel = false
	if finished.Refresh {
		s.refresher.RequestRefresh()
	}
	s.display.ShowCatalog(s.views, s.note)
}
