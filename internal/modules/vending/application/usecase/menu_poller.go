package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

const defaultPollInterval = time.Minute

// MenuPoller keeps the catalog fresh in the background.
type MenuPoller struct {
	fetcher  port.CatalogFetcher
	out      chan<- domain.CatalogSnapshot
	refresh  chan struct{}
	interval time.Duration
}

type MenuPollerOption func(*MenuPoller)

// WithPollInterval overrides how long the poller waits between fetches.
func WithPollInterval(d time.Duration) MenuPollerOption {
	return func(p *MenuPoller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func NewMenuPoller(fetcher port.CatalogFetcher, out chan<- domain.CatalogSnapshot, opts ...MenuPollerOption) *MenuPoller {
	p := &MenuPoller{
		fetcher:  fetcher,
		out:      out,
		refresh:  make(chan struct{}, 1),
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RequestRefresh cuts the current wait short. It never blocks; pending requests coalesce.
func (p *MenuPoller) RequestRefresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Run fetches the catalog until ctx is cancelled. Failed cycles are skipped, not retried.
func (p *MenuPoller) Run(ctx context.Context) error {
	for {
		p.cycle(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.refresh:
			timer.Stop()
			slog.Info("expediting catalog fetch")
		case <-timer.C:
		}
	}
}

func (p *MenuPoller) cycle(ctx context.Context) {
	slog.Debug("catalog fetch start")
	snapshot, err := p.fetcher.FetchCatalog(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		var statusErr *port.StatusError
		switch {
		case errors.As(err, &statusErr):
			slog.Warn("catalog fetch rejected", slog.Int("status", statusErr.Code), slog.String("body", statusErr.Body))
		case errors.Is(err, port.ErrTransport):
			slog.Warn("catalog fetch transport failure", slog.Any("error", err))
		default:
			slog.Warn("catalog fetch failed", slog.Any("error", err))
		}
		return
	}
	if snapshot == nil {
		return
	}

	select {
	case p.out <- *snapshot:
		slog.Info("catalog updated", slog.Int("machines", len(snapshot.Machines)))
	case <-ctx.Done():
	}
}
