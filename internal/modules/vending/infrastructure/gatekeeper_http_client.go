package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/application/port"
	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/domain"
)

// GatekeeperHTTPClient resolves tag associations to members of a realm.
type GatekeeperHTTPClient struct {
	rest  *RESTClient
	token string
	realm string
}

type gatekeeperUserResponse struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
}

func NewGatekeeperHTTPClient(baseURL, token, realm string, timeout time.Duration, client *http.Client) *GatekeeperHTTPClient {
	return &GatekeeperHTTPClient{
		rest:  NewRESTClient(baseURL, timeout, client),
		token: strings.TrimSpace(token),
		realm: strings.TrimSpace(realm),
	}
}

// FetchUser looks up the member behind one tag presentation.
func (c *GatekeeperHTTPClient) FetchUser(ctx context.Context, association domain.Association) (domain.Identity, error) {
	assoc := strings.TrimSpace(string(association))
	if assoc == "" {
		return domain.Identity{}, port.ErrIdentityNotFound
	}
	path := "/realms/" + url.PathEscape(c.realm) + "/associations/" + url.PathEscape(assoc)

	req, err := c.rest.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.Identity{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.rest.Do(req)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: fetch user: %w", port.ErrTransport, err)
	}
	defer res.Body.Close()
	slog.Debug("gatekeeper response", slog.Int("status", res.StatusCode), slog.String("realm", c.realm))

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.Identity{}, port.ErrIdentityNotFound
	default:
		return domain.Identity{}, &port.StatusError{Code: res.StatusCode, Body: readErrorBody(res.Body)}
	}

	var payload gatekeeperUserResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return domain.Identity{}, fmt.Errorf("decode user: %w", err)
	}
	uid := strings.TrimSpace(payload.User.UID)
	if uid == "" {
		return domain.Identity{}, fmt.Errorf("%w: response missing uid", port.ErrIdentityNotFound)
	}
	return domain.Identity{UID: uid}, nil
}
