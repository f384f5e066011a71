package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

const catalogBody = `{
  "machines": [
    {
      "display_name": "Big Drink",
      "id": 1,
      "is_online": true,
      "name": "bigdrink",
      "slots": [
        {"active": true, "count": null, "empty": false, "item": {"id": 5, "name": "Coke", "price": 75}, "machine": 1, "number": 1},
        {"active": true, "count": 0, "empty": false, "item": {"id": 6, "name": "Sprite", "price": 50}, "machine": 1, "number": 2}
      ]
    }
  ],
  "message": "Successfully retrieved machine contents for all machines"
}`

func TestDrinkHTTPClient_FetchCatalog(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/drinks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Auth-Token"); got != "s3cret" {
			t.Errorf("unexpected auth token %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(catalogBody))
	}))
	defer srv.Close()

	client := NewDrinkHTTPClient(srv.URL+"/", "s3cret", time.Second, nil)
	snapshot, err := client.FetchCatalog(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snapshot.Machines) != 1 || len(snapshot.Machines[0].Slots) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
	slots := snapshot.Machines[0].Slots
	if slots[0].Count != nil || !slots[0].Dispensable() {
		t.Fatalf("expected untracked count to be dispensable: %+v", slots[0])
	}
	if slots[1].Count == nil || *slots[1].Count != 0 || slots[1].Dispensable() {
		t.Fatalf("expected zero count to be hidden: %+v", slots[1])
	}
	if snapshot.Message == "" {
		t.Fatal("expected message to be decoded")
	}
}

func TestDrinkHTTPClient_FetchCatalogErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewDrinkHTTPClient(srv.URL, "bad", time.Second, nil).FetchCatalog(context.Background())
	var statusErr *port.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status error, got %v", err)
	}
	if !errors.Is(err, port.ErrUnexpectedStatus) {
		t.Fatalf("expected ErrUnexpectedStatus, got %v", err)
	}

	unreachable := NewDrinkHTTPClient("http://127.0.0.1:1", "s3cret", 200*time.Millisecond, nil)
	if _, err := unreachable.FetchCatalog(context.Background()); !errors.Is(err, port.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestDrinkHTTPClient_FetchCatalogDecodeError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	_, err := NewDrinkHTTPClient(srv.URL, "s3cret", time.Second, nil).FetchCatalog(context.Background())
	if err == nil || errors.Is(err, port.ErrTransport) || errors.Is(err, port.ErrUnexpectedStatus) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestDrinkHTTPClient_Drop(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/drinks/drop" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-Auth-Token"); got != "s3cret" {
			t.Errorf("unexpected auth token %q", got)
		}
		var info map[string]string
		if err := json.Unmarshal([]byte(r.Header.Get("X-User-Info")), &info); err != nil {
			t.Errorf("user info is not json: %v", err)
		}
		if info["preferred_username"] != "alice" {
			t.Errorf("unexpected user info %v", info)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["machine"] != "bigdrink" || body["slot"] != float64(3) {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewDrinkHTTPClient(srv.URL, "s3cret", time.Second, nil)
	intent := domain.OrderIntent{MachineID: 1, MachineName: "bigdrink", Slot: 3, ItemName: "Coke", ItemCost: 75}
	if err := client.Drop(context.Background(), intent, domain.Identity{UID: "alice"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDrinkHTTPClient_DropFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"insufficient credits"}`, http.StatusPaymentRequired)
	}))
	defer srv.Close()

	intent := domain.OrderIntent{MachineName: "bigdrink", Slot: 3}
	err := NewDrinkHTTPClient(srv.URL, "s3cret", time.Second, nil).Drop(context.Background(), intent, domain.Identity{UID: "alice"})
	var statusErr *port.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected status error, got %v", err)
	}
	if statusErr.Code != http.StatusPaymentRequired || statusErr.Body == "" {
		t.Fatalf("unexpected status error: %+v", statusErr)
	}

	unreachable := NewDrinkHTTPClient("http://127.0.0.1:1", "s3cret", 200*time.Millisecond, nil)
	err = unreachable.Drop(context.Background(), intent, domain.Identity{UID: "alice"})
	if !errors.Is(err, port.ErrTransport) || errors.Is(err, port.ErrUnexpectedStatus) {
		t.Fatalf("expected transport error only, got %v", err)
	}
}

func TestStatusText(t *testing.T) {
	if got := port.StatusText(500); got != "500 Internal Server Error" {
		t.Fatalf("unexpected status text: %s", got)
	}
	if got := port.StatusText(599); got != "599" {
		t.Fatalf("unexpected status text: %s", got)
	}
}
