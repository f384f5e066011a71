package port

import (
	"errors"

	"github.com/google/uuid"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

var (
	// ErrOrderInProgress rejects a new order while another one is live.
	ErrOrderInProgress = errors.New("an order is already in progress")
	// ErrItemUnavailable rejects an order for a slot missing from the current menu.
	ErrItemUnavailable = errors.New("item is no longer available")
)

// Display is the presentation layer as seen by the kiosk session.
type Display interface {
	ShowCatalog(views []domain.MachineView, note string)
	ShowOrder(orderID uuid.UUID, state domain.OrderState)
	ShowError(err error)
}
