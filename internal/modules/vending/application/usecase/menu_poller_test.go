package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

func receiveSnapshot(t *testing.T, out <-chan domain.CatalogSnapshot) domain.CatalogSnapshot {
	t.Helper()
	select {
	case snapshot := <-out:
		return snapshot
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for catalog")
		return domain.CatalogSnapshot{}
	}
}

func TestMenuPoller_RefreshCutsWaitShort(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{results: []fetchResult{
		{snapshot: &domain.CatalogSnapshot{Message: "first"}},
		{snapshot: &domain.CatalogSnapshot{Message: "second"}},
	}}
	out := make(chan domain.CatalogSnapshot)
	poller := NewMenuPoller(fetcher, out, WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	if got := receiveSnapshot(t, out); got.Message != "first" {
		t.Fatalf("unexpected first snapshot: %q", got.Message)
	}
	poller.RequestRefresh()
	if got := receiveSnapshot(t, out); got.Message != "second" {
		t.Fatalf("unexpected second snapshot: %q", got.Message)
	}
}

func TestMenuPoller_FailedCycleIsSkipped(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{results: []fetchResult{
		{err: &port.StatusError{Code: 503}},
		{snapshot: &domain.CatalogSnapshot{Message: "recovered"}},
	}}
	out := make(chan domain.CatalogSnapshot)
	poller := NewMenuPoller(fetcher, out, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	if got := receiveSnapshot(t, out); got.Message != "recovered" {
		t.Fatalf("expected failed cycle to emit nothing, got %q", got.Message)
	}
}

func TestMenuPoller_RequestRefreshNeverBlocks(t *testing.T) {
	t.Parallel()

	poller := NewMenuPoller(&fakeFetcher{}, make(chan domain.CatalogSnapshot))
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			poller.RequestRefresh()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RequestRefresh blocked")
	}
	if len(poller.refresh) != 1 {
		t.Fatalf("expected coalesced refresh, got %d pending", len(poller.refresh))
	}
}

func TestMenuPoller_StopsOnCancel(t *testing.T) {
	t.Parallel()

	poller := NewMenuPoller(&fakeFetcher{}, make(chan domain.CatalogSnapshot))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- poller.Run(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
