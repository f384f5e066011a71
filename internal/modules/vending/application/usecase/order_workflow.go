package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

const (
	defaultScanPeriod     = 250 * time.Millisecond
	defaultHoldDuration   = 5 * time.Second
	outcomePublishTimeout = 3 * time.Second
)

// OrderWorkflow runs one scan, authenticate, vend and report cycle per order.
type OrderWorkflow struct {
	sessions   port.ScanSessionFactory
	dispenser  port.Dispenser
	publisher  port.OutcomePublisher
	events     chan<- domain.OrderEvent
	scanPeriod time.Duration
	hold       time.Duration
	now        func() time.Time
}

type OrderWorkflowOption func(*OrderWorkflow)

// WithScanPeriod sets how long the scan loop waits on cancellation between polls.
func WithScanPeriod(d time.Duration) OrderWorkflowOption {
	return func(w *OrderWorkflow) {
		if d > 0 {
			w.scanPeriod = d
		}
	}
}

// WithHoldDuration sets how long the final message stays up before the order finishes.
func WithHoldDuration(d time.Duration) OrderWorkflowOption {
	return func(w *OrderWorkflow) {
		if d >= 0 {
			w.hold = d
		}
	}
}

// WithOutcomePublisher forwards every dispense attempt to p.
func WithOutcomePublisher(p port.OutcomePublisher) OrderWorkflowOption {
	return func(w *OrderWorkflow) {
		w.publisher = p
	}
}

func NewOrderWorkflow(sessions port.ScanSessionFactory, dispenser port.Dispenser, events chan<- domain.OrderEvent, opts ...OrderWorkflowOption) *OrderWorkflow {
	w := &OrderWorkflow{
		sessions:   sessions,
		dispenser:  dispenser,
		events:     events,
		scanPeriod: defaultScanPeriod,
		hold:       defaultHoldDuration,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start spawns the workflow for intent and returns its order id.
func (w *OrderWorkflow) Start(ctx context.Context, intent domain.OrderIntent) uuid.UUID {
	orderID := uuid.New()
	go w.Run(ctx, orderID, intent)
	return orderID
}

// Run drives a single order to completion. Exactly one Finished state is emitted
// and it is always the last one.
func (w *OrderWorkflow) Run(ctx context.Context, orderID uuid.UUID, intent domain.OrderIntent) {
	logger := slog.With(
		slog.String("orderId", orderID.String()),
		slog.String("machine", intent.MachineName),
		slog.Int64("slot", intent.Slot),
	)
	emit := func(state domain.OrderState) {
		select {
		case w.events <- domain.OrderEvent{OrderID: orderID, State: state}:
		case <-ctx.Done():
		}
	}

	cancel, cancelled := domain.NewCancelSignal()
	emit(domain.PleaseScan{Cancel: cancel})
	logger.Info("order started", slog.String("item", intent.ItemName))

	session, err := w.sessions.Open(ctx)
	if err != nil {
		logger.Error("scan session unavailable", slog.Any("error", err))
		emit(domain.Failed{Message: fmt.Sprintf("Couldn't start the tag reader: %v", err)})
		w.wait(ctx, w.hold)
		emit(domain.Finished{Refresh: false})
		return
	}

	identity, ok := w.awaitIdentity(ctx, session, cancelled, logger)
	if !ok {
		closeSession(session, logger)
		logger.Info("order cancelled before vend")
		emit(domain.Finished{Refresh: false})
		return
	}

	emit(domain.Vending{Message: intent.VendingMessage()})
	logger.Info("dropping item", slog.String("uid", identity.UID))

	dropErr := w.dispenser.Drop(ctx, intent, identity)
	outcome := w.buildOutcome(orderID, intent, identity, dropErr)
	if dropErr != nil {
		if errors.Is(dropErr, port.ErrTransport) {
			logger.Error("drop transport failure", slog.Any("error", dropErr))
		} else {
			logger.Warn("drop rejected", slog.Any("error", dropErr))
		}
		emit(domain.Failed{Message: failureMessage(dropErr)})
	} else {
		emit(domain.Dropped{Message: intent.DroppedMessage()})
	}

	// The hold runs while the outcome is published and cannot be cut short by cancel.
	holdUntil := time.NewTimer(w.hold)
	w.publishOutcome(ctx, outcome, logger)
	closeSession(session, logger)
	select {
	case <-holdUntil.C:
	case <-ctx.Done():
		holdUntil.Stop()
	}

	logger.Info("returning to menu after drop")
	emit(domain.Finished{Refresh: true})
}

// awaitIdentity polls the reader until an association resolves or the order is cancelled.
func (w *OrderWorkflow) awaitIdentity(ctx context.Context, session port.ScanSession, cancelled <-chan struct{}, logger *slog.Logger) (domain.Identity, bool) {
	for {
		if assoc, ok := session.PollForUser(ctx); ok {
			identity, err := session.FetchUser(ctx, assoc)
			if err == nil && identity.UID != "" {
				// Cancellation is honoured up to the moment the drop is sent.
				select {
				case <-cancelled:
					return domain.Identity{}, false
				default:
				}
				return identity, true
			}
			logger.Warn("couldn't fetch user for association", slog.String("association", string(assoc)), slog.Any("error", err))
			select {
			case <-cancelled:
				return domain.Identity{}, false
			case <-ctx.Done():
				return domain.Identity{}, false
			default:
			}
			continue
		}

		timer := time.NewTimer(w.scanPeriod)
		select {
		case <-cancelled:
			timer.Stop()
			return domain.Identity{}, false
		case <-ctx.Done():
			timer.Stop()
			return domain.Identity{}, false
		case <-timer.C:
		}
	}
}

func (w *OrderWorkflow) buildOutcome(orderID uuid.UUID, intent domain.OrderIntent, identity domain.Identity, dropErr error) domain.VendOutcome {
	outcome := domain.VendOutcome{
		EventType:   domain.EventVendDropped,
		OccurredAt:  w.now().UTC(),
		OrderID:     orderID.String(),
		MachineID:   intent.MachineID,
		MachineName: intent.MachineName,
		Slot:        intent.Slot,
		ItemName:    intent.ItemName,
		ItemCost:    intent.ItemCost,
		UID:         identity.UID,
		Succeeded:   dropErr == nil,
	}
	if dropErr != nil {
		outcome.EventType = domain.EventVendFailed
		outcome.Detail = dropErr.Error()
		var statusErr *port.StatusError
		if errors.As(dropErr, &statusErr) {
			outcome.Status = statusErr.Code
		}
	}
	return outcome
}

func (w *OrderWorkflow) publishOutcome(ctx context.Context, outcome domain.VendOutcome, logger *slog.Logger) {
	if w.publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, outcomePublishTimeout)
	defer cancel()
	if err := w.publisher.PublishOutcome(pubCtx, outcome); err != nil {
		logger.Warn("vend outcome publish failed", slog.String("event", outcome.EventType), slog.Any("error", err))
	}
}

func (w *OrderWorkflow) wait(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func failureMessage(err error) string {
	var statusErr *port.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("Error: Got a %s response from the server. Try again later", port.StatusText(statusErr.Code))
	}
	return fmt.Sprintf("Failed to drop: %v", err)
}

func closeSession(session port.ScanSession, logger *slog.Logger) {
	if err := session.Close(); err != nil {
		logger.Warn("scan session close failed", slog.Any("error", err))
	}
}
