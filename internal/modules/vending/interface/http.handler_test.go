package transport

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/infrastructure"
	"github.com/ComputerScienceHouse/mineral/internal/shared/auth"
)

type chanSink struct {
	mu      sync.Mutex
	intents chan domain.Intent
}

func (s *chanSink) Submit(intent domain.Intent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case s.intents <- intent:
		return true
	default:
		return false
	}
}

func newTestServer(t *testing.T, validator auth.TokenValidator) (*httptest.Server, *infrastructure.Hub, *chanSink) {
	t.Helper()
	e := echo.New()
	hub := infrastructure.NewHub()
	sink := &chanSink{intents: make(chan domain.Intent, 4)}
	RegisterRoutes(e, hub, validator, sink)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub, sink
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestHealthHandler(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebsocketHandler_RejectsBadTokens(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t, auth.NewJWTValidator("display-secret"))

	cases := []struct {
		name string
		path string
		want int
	}{
		{name: "missing", path: "/ws/kiosk", want: http.StatusBadRequest},
		{name: "invalid", path: "/ws/kiosk/not-a-token", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tc.path), nil)
			if err == nil {
				t.Fatal("expected handshake failure")
			}
			if resp == nil || resp.StatusCode != tc.want {
				t.Fatalf("expected status %d, got %+v", tc.want, resp)
			}
		})
	}
}

func TestWebsocketHandler_OrderRoundTrip(t *testing.T) {
	t.Parallel()

	srv, hub, sink := newTestServer(t, auth.NewJWTValidator("display-secret"))
	hub.ShowCatalog([]domain.MachineView{{MachineID: 1, Name: "bigdrink", Visible: true}}, "")

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		DisplayID:        "lobby",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "kiosk-1"},
	}).SignedString([]byte("display-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/kiosk?token="+token), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	for _, want := range []string{domain.TopicSystemConnected, domain.TopicCatalogSnapshot} {
		var msg domain.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Topic != want {
			t.Fatalf("expected %s, got %s", want, msg.Topic)
		}
	}

	if err := conn.WriteJSON(map[string]any{"action": "order", "payload": map[string]int{"machineId": 1, "slot": 3}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case intent := <-sink.intents:
		if intent != (domain.OrderRequest{MachineID: 1, Slot: 3}) {
			t.Fatalf("unexpected intent: %#v", intent)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for intent")
	}
}
