package port

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

var (
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.New("drink api transport failure")
	// ErrUnexpectedStatus indicates the backend answered with a non-success status.
	ErrUnexpectedStatus = errors.New("drink api unexpected status")
)

// StatusError carries the status code of a rejected drink API call.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnexpectedStatus, StatusText(e.Code))
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// StatusText renders a status as "500 Internal Server Error".
func StatusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("%d %s", code, text)
	}
	return fmt.Sprintf("%d", code)
}

// CatalogFetcher retrieves the current machine listing.
type CatalogFetcher interface {
	FetchCatalog(ctx context.Context) (*domain.CatalogSnapshot, error)
}

// Dispenser issues a dispense request for one order.
type Dispenser interface {
	Drop(ctx context.Context, intent domain.OrderIntent, identity domain.Identity) error
}

// DrinkClient is the outbound surface of the drink backend.
type DrinkClient interface {
	CatalogFetcher
	Dispenser
}
