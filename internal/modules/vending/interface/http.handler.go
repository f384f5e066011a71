package transport

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/ComputerScienceHouse/mineral/internal/modules/vending/infrastructure"
	"github.com/ComputerScienceHouse/mineral/internal/shared/auth"
	"github.com/ComputerScienceHouse/mineral/internal/shared/httputil"
)

const clientBuffer = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var authErrors = httputil.NewErrorMapper().
	WithMapping(auth.ErrMissingToken, http.StatusBadRequest, "missing token").
	WithMapping(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token").
	WithDefault(http.StatusUnauthorized, "invalid token")

// RegisterRoutes mounts the display endpoints on e.
func RegisterRoutes(e *echo.Echo, hub *infrastructure.Hub, validator auth.TokenValidator, sink infrastructure.IntentSink) {
	ws := NewWebsocketHandler(hub, validator, sink)
	e.GET("/healthz", NewHealthHandler(hub))
	e.GET("/ws/kiosk", ws)
	e.GET("/ws/kiosk/:token", ws)
}

func NewHealthHandler(hub *infrastructure.Hub) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":   "ok",
			"displays": hub.ClientCount(),
		})
	}
}

// NewWebsocketHandler attaches a display to the hub after validating its token.
func NewWebsocketHandler(hub *infrastructure.Hub, validator auth.TokenValidator, sink infrastructure.IntentSink) echo.HandlerFunc {
	if validator == nil {
		validator = auth.AllowAll{}
	}
	commands := infrastructure.NewCommandProcessor(sink)

	return func(c echo.Context) error {
		token := auth.ExtractToken(c.Request(), c.Param("token"), "token")
		logger := c.Logger()
		requestID := c.Response().Header().Get(echo.HeaderXRequestID)
		peerIP := c.RealIP()

		claims, err := validator.Validate(token)
		if err != nil {
			httpErr := authErrors.HTTPError(err)
			slog.Warn("ws handler rejected", slog.Int("status", httpErr.Code), slog.Int("tokenLen", len(strings.TrimSpace(token))), slog.Any("error", err))
			logger.Warnf("ws rejected ip=%s reqID=%s: %v", peerIP, requestID, err)
			return httpErr
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			slog.Error("ws handler upgrade failed", slog.String("displayId", claims.DisplayID), slog.Any("error", err))
			return err
		}

		client := infrastructure.NewClient(hub, conn, claims.DisplayID, clientBuffer, commands)
		hub.AttachClient(client)

		go client.WritePump()
		go client.ReadPump()

		logger.Infof("ws connected display=%s ip=%s reqID=%s", claims.DisplayID, peerIP, requestID)
		return nil
	}
}
