package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Association is an opaque token for one tag presentation. It is not an identity.
type Association string

// Identity is the member resolved from an association.
type Identity struct {
	UID string
}

// OrderIntent captures what is being ordered at selection time.
// It is passed by value so later stages never consult the menu again.
type OrderIntent struct {
	MachineID   int64
	MachineName string
	Slot        int64
	ItemName    string
	ItemCost    int64
}

// IntentFromSlot builds the intent for a selected menu entry.
func IntentFromSlot(view SlotView) OrderIntent {
	return OrderIntent{
		MachineID:   view.MachineID,
		MachineName: view.MachineName,
		Slot:        view.Slot,
		ItemName:    view.ItemName,
		ItemCost:    view.ItemCost,
	}
}

// VendingMessage is shown while the dispense request is in flight.
func (o OrderIntent) VendingMessage() string {
	return fmt.Sprintf("Dropping %s...", o.ItemName)
}

// DroppedMessage is shown after a successful dispense.
func (o OrderIntent) DroppedMessage() string {
	return fmt.Sprintf("Dropped %s for %d credits. Enjoy!", o.ItemName, o.ItemCost)
}

// StateKind names an order state on the wire and in logs.
type StateKind string

const (
	StatePleaseScan StateKind = "please_scan"
	StateVending    StateKind = "vending"
	StateDropped    StateKind = "dropped"
	StateFailed     StateKind = "failed"
	StateFinished   StateKind = "finished"
)

// IsTerminal reports whether no further state can follow.
func IsTerminal(kind StateKind) bool {
	return kind == StateFinished
}

// NormalizeStateKind returns the canonical kind for the input, or "" when unknown.
func NormalizeStateKind(raw string) StateKind {
	switch StateKind(strings.ToLower(strings.TrimSpace(raw))) {
	case StatePleaseScan:
		return StatePleaseScan
	case StateVending:
		return StateVending
	case StateDropped:
		return StateDropped
	case StateFailed:
		return StateFailed
	case StateFinished:
		return StateFinished
	default:
		return ""
	}
}

// OrderState is the closed set of states an order reports to the consumer.
type OrderState interface {
	Kind() StateKind
	isOrderState()
}

// PleaseScan is always the first state of an order and carries its cancel handle.
type PleaseScan struct {
	Cancel CancelHandle
}

type Vending struct {
	Message string
}

type Dropped struct {
	Message string
}

type Failed struct {
	Message string
}

// Finished ends an order. Refresh asks the menu poller for an early catalog fetch.
type Finished struct {
	Refresh bool
}

func (PleaseScan) Kind() StateKind { return StatePleaseScan }
func (Vending) Kind() StateKind    { return StateVending }
func (Dropped) Kind() StateKind    { return StateDropped }
func (Failed) Kind() StateKind     { return StateFailed }
func (Finished) Kind() StateKind   { return StateFinished }

func (PleaseScan) isOrderState() {}
func (Vending) isOrderState()    {}
func (Dropped) isOrderState()    {}
func (Failed) isOrderState()     {}
func (Finished) isOrderState()   {}

// StateMessage returns the user-facing text of a state, if any.
func StateMessage(state OrderState) string {
	switch s := state.(type) {
	case PleaseScan:
		return "Please scan your tag!"
	case Vending:
		return s.Message
	case Dropped:
		return s.Message
	case Failed:
		return s.Message
	default:
		return ""
	}
}

// OrderEvent attributes a state transition to the order that emitted it.
type OrderEvent struct {
	OrderID uuid.UUID
	State   OrderState
}

// CancelHandle lets the consumer ask a single order to stop scanning.
type CancelHandle struct {
	ch chan<- struct{}
}

// NewCancelSignal creates the per-order cancellation channel.
func NewCancelSignal() (CancelHandle, <-chan struct{}) {
	ch := make(chan struct{}, 1)
	return CancelHandle{ch: ch}, ch
}

// Valid reports whether the handle is bound to an order.
func (h CancelHandle) Valid() bool {
	return h.ch != nil
}

// Cancel requests cancellation. It never blocks and repeated calls coalesce.
func (h CancelHandle) Cancel() bool {
	if h.ch == nil {
		return false
	}
	select {
	case h.ch <- struct{}{}:
		return true
	default:
		return false
	}
}
