package infrastructure

import (
	"context"
	"sync"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// MemberResolver resolves associations against the identity backend.
type MemberResolver interface {
	FetchUser(ctx context.Context, association domain.Association) (domain.Identity, error)
}

// GatekeeperSessionFactory opens a tag reader and binds it to the gatekeeper realm.
type GatekeeperSessionFactory struct {
	device  string
	members MemberResolver
	open    func(string) (TagReader, error)
}

func NewGatekeeperSessionFactory(device string, members MemberResolver) *GatekeeperSessionFactory {
	return &GatekeeperSessionFactory{device: device, members: members, open: OpenTagReader}
}

func (f *GatekeeperSessionFactory) Open(_ context.Context) (port.ScanSession, error) {
	reader, err := f.open(f.device)
	if err != nil {
		return nil, err
	}
	return &gatekeeperSession{reader: reader, members: f.members}, nil
}

type gatekeeperSession struct {
	reader  TagReader
	members MemberResolver
}

func (s *gatekeeperSession) PollForUser(_ context.Context) (domain.Association, bool) {
	return s.reader.Poll()
}

func (s *gatekeeperSession) FetchUser(ctx context.Context, association domain.Association) (domain.Identity, error) {
	return s.members.FetchUser(ctx, association)
}

func (s *gatekeeperSession) Close() error {
	return s.reader.Close()
}

// ExclusiveSessions allows at most one live scan session at a time.
// A second concurrent Open is rejected with port.ErrReaderBusy.
type ExclusiveSessions struct {
	factory port.ScanSessionFactory
	slot    chan struct{}
}

func NewExclusiveSessions(factory port.ScanSessionFactory) *ExclusiveSessions {
	return &ExclusiveSessions{factory: factory, slot: make(chan struct{}, 1)}
}

func (e *ExclusiveSessions) Open(ctx context.Context) (port.ScanSession, error) {
	select {
	case e.slot <- struct{}{}:
	default:
		return nil, port.ErrReaderBusy
	}
	session, err := e.factory.Open(ctx)
	if err != nil {
		<-e.slot
		return nil, err
	}
	return &leasedSession{ScanSession: session, release: func() { <-e.slot }}, nil
}

type leasedSession struct {
	port.ScanSession
	release func()
	once    sync.Once
	err     error
}

func (l *leasedSession) Close() error {
	l.once.Do(func() {
		l.err = l.ScanSession.Close()
		l.release()
	})
	return l.err
}

var (
	_ port.ScanSessionFactory = (*GatekeeperSessionFactory)(nil)
	_ port.ScanSessionFactory = (*ExclusiveSessions)(nil)
	_ MemberResolver          = (*GatekeeperHTTPClient)(nil)
)
