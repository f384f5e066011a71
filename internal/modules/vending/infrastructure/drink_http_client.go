package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

const (
	headerAuthToken = "X-Auth-Token"
	headerUserInfo  = "X-User-Info"

	drinksPath = "/drinks"
	dropPath   = "/drinks/drop"
)

// DrinkHTTPClient implements port.DrinkClient against the drink REST API.
type DrinkHTTPClient struct {
	rest   *RESTClient
	secret string
}

type dropRequest struct {
	Machine string `json:"machine"`
	Slot    int64  `json:"slot"`
}

type userInfo struct {
	PreferredUsername string `json:"preferred_username"`
}

func NewDrinkHTTPClient(baseURL, secret string, timeout time.Duration, client *http.Client) *DrinkHTTPClient {
	return &DrinkHTTPClient{rest: NewRESTClient(baseURL, timeout, client), secret: secret}
}

// FetchCatalog retrieves the full machine listing.
func (c *DrinkHTTPClient) FetchCatalog(ctx context.Context) (*domain.CatalogSnapshot, error) {
	req, err := c.rest.NewRequest(ctx, http.MethodGet, drinksPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAuthToken, c.secret)

	slog.Debug("catalog request", slog.String("url", req.URL.String()))
	res, err := c.rest.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch catalog: %w", port.ErrTransport, err)
	}
	defer res.Body.Close()
	slog.Debug("catalog response", slog.Int("status", res.StatusCode))

	if res.StatusCode != http.StatusOK {
		return nil, &port.StatusError{Code: res.StatusCode, Body: readErrorBody(res.Body)}
	}

	var snapshot domain.CatalogSnapshot
	if err := json.NewDecoder(res.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return &snapshot, nil
}

// Drop asks the backend to dispense the intent's slot on behalf of identity.
func (c *DrinkHTTPClient) Drop(ctx context.Context, intent domain.OrderIntent, identity domain.Identity) error {
	body, err := json.Marshal(dropRequest{Machine: intent.MachineName, Slot: intent.Slot})
	if err != nil {
		return fmt.Errorf("encode drop request: %w", err)
	}
	info, err := json.Marshal(userInfo{PreferredUsername: identity.UID})
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}

	req, err := c.rest.NewRequest(ctx, http.MethodPost, dropPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(headerAuthToken, c.secret)
	req.Header.Set(headerUserInfo, string(info))

	slog.Info("drop request", slog.String("machine", intent.MachineName), slog.Int64("slot", intent.Slot), slog.String("uid", identity.UID))
	res, err := c.rest.Do(req)
	if err != nil {
		return fmt.Errorf("%w: drop slot %d from %s: %w", port.ErrTransport, intent.Slot, intent.MachineName, err)
	}
	defer res.Body.Close()
	slog.Info("drop response", slog.String("machine", intent.MachineName), slog.Int64("slot", intent.Slot), slog.Int("status", res.StatusCode))

	if res.StatusCode != http.StatusOK {
		return &port.StatusError{Code: res.StatusCode, Body: readErrorBody(res.Body)}
	}
	return nil
}

var _ port.DrinkClient = (*DrinkHTTPClient)(nil)
