package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

type fakeSession struct {
	mu          sync.Mutex
	association domain.Association
	identity    domain.Identity
	fetchErrs   int
	fetchGate   chan struct{}
	polls       int
	fetches     int
	closes      int
}

func (s *fakeSession) PollForUser(context.Context) (domain.Association, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if s.association == "" {
		return "", false
	}
	return s.association, true
}

func (s *fakeSession) FetchUser(_ context.Context, _ domain.Association) (domain.Identity, error) {
	if s.fetchGate != nil {
		<-s.fetchGate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErrs > 0 {
		s.fetchErrs--
		return domain.Identity{}, port.ErrIdentityNotFound
	}
	return s.identity, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) counts() (polls, fetches, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls, s.fetches, s.closes
}

type fakeSessionFactory struct {
	session *fakeSession
	err     error
}

func (f *fakeSessionFactory) Open(context.Context) (port.ScanSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeDispenser struct {
	mu    sync.Mutex
	err   error
	calls []domain.Identity
}

func (d *fakeDispenser) Drop(_ context.Context, _ domain.OrderIntent, identity domain.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, identity)
	return d.err
}

func (d *fakeDispenser) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

type fakePublisher struct {
	mu       sync.Mutex
	outcomes []domain.VendOutcome
	err      error
}

func (p *fakePublisher) PublishOutcome(_ context.Context, outcome domain.VendOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, outcome)
	return p.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int
}

type fetchResult struct {
	snapshot *domain.CatalogSnapshot
	err      error
}

func (f *fakeFetcher) FetchCatalog(context.Context) (*domain.CatalogSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.results) == 0 {
		return &domain.CatalogSnapshot{}, nil
	}
	next := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return next.snapshot, next.err
}

var errBoom = errors.New("boom")

// collectUntilFinished reads events until a Finished state arrives.
func collectUntilFinished(t *testing.T, events <-chan domain.OrderEvent) []domain.OrderEvent {
	t.Helper()
	var out []domain.OrderEvent
	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-events:
			out = append(out, event)
			if event.State.Kind() == domain.StateFinished {
				return out
			}
		case <-deadline:
			t.Fatalf("timed out waiting for finished, got %v", kinds(out))
			return nil
		}
	}
}

// assertNoMoreEvents fails if anything is emitted within a short grace period.
func assertNoMoreEvents(t *testing.T, events <-chan domain.OrderEvent) {
	t.Helper()
	select {
	case event := <-events:
		t.Fatalf("unexpected event after finished: %s", event.State.Kind())
	case <-time.After(50 * time.Millisecond):
	}
}

func receiveEvent(t *testing.T, events <-chan domain.OrderEvent) domain.OrderEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return domain.OrderEvent{}
	}
}

func kinds(events []domain.OrderEvent) []domain.StateKind {
	out := make([]domain.StateKind, 0, len(events))
	for _, e := range events {
		out = append(out, e.State.Kind())
	}
	return out
}

func sameKinds(got []domain.OrderEvent, want ...domain.StateKind) bool {
	k := kinds(got)
	if len(k) != len(want) {
		return false
	}
	for i := range k {
		if k[i] != want[i] {
			return false
		}
	}
	return true
}

type displayCall struct {
	kind    string
	views   []domain.MachineView
	orderID uuid.UUID
	state   domain.OrderState
	err     error
}

type fakeDisplay struct {
	mu    sync.Mutex
	calls []displayCall
}

func (d *fakeDisplay) ShowCatalog(views []domain.MachineView, _ string) {
	d.record(displayCall{kind: "catalog", views: views})
}

func (d *fakeDisplay) ShowOrder(orderID uuid.UUID, state domain.OrderState) {
	d.record(displayCall{kind: "order", orderID: orderID, state: state})
}

func (d *fakeDisplay) ShowError(err error) {
	d.record(displayCall{kind: "error", err: err})
}

func (d *fakeDisplay) record(c displayCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *fakeDisplay) snapshot() []displayCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]displayCall, len(d.calls))
	copy(out, d.calls)
	return out
}

type fakeStarter struct {
	mu      sync.Mutex
	ids     []uuid.UUID
	intents []domain.OrderIntent
}

func (s *fakeStarter) Start(_ context.Context, intent domain.OrderIntent) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New()
	s.ids = append(s.ids, id)
	s.intents = append(s.intents, intent)
	return id
}

type fakeRefresher struct {
	mu    sync.Mutex
	count int
}

func (r *fakeRefresher) RequestRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
}

func (r *fakeRefresher) requests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
