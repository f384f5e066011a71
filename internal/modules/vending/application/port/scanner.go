package port

import (
	"context"
	"errors"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

var (
	// ErrReaderUnavailable is returned when the tag reader cannot be opened.
	ErrReaderUnavailable = errors.New("tag reader unavailable")
	// ErrReaderBusy is returned when another order already holds the reader.
	ErrReaderBusy = errors.New("tag reader busy")
	// ErrIdentityNotFound is returned when an association does not resolve to a member.
	ErrIdentityNotFound = errors.New("identity not found")
)

// ScanSession is an exclusively held tag reader bound to an identity backend.
type ScanSession interface {
	// PollForUser checks once for a presented tag. A false result means no tag, not an error.
	PollForUser(ctx context.Context) (domain.Association, bool)
	// FetchUser resolves an association. Failures are expected and retryable.
	FetchUser(ctx context.Context, association domain.Association) (domain.Identity, error)
	// Close checks the reader back in.
	Close() error
}

// ScanSessionFactory acquires a scan session for one order.
type ScanSessionFactory interface {
	Open(ctx context.Context) (ScanSession, error)
}
