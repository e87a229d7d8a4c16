package handler

import (
	"crypto/subtle"

	"research-assistant-be/internal/pkg/logger"
	internalWS "research-assistant-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// StreamHandler exposes the websocket mirror of session streams: passive
// watchers (dashboards, a second tab) see the same events the SSE client
// receives, without holding the turn open.
type StreamHandler struct {
	hub    *internalWS.Hub
	apiKey string
	logger logger.ILogger
}

func NewStreamHandler(hub *internalWS.Hub, apiKey string, log logger.ILogger) *StreamHandler {
	return &StreamHandler{
		hub:    hub,
		apiKey: apiKey,
		logger: log,
	}
}

// ServeWs upgrades the connection and registers it as a watcher of one
// session's event stream.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	sessionKey := c.Params("id")
	if sessionKey == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing session id"})
	}

	if h.apiKey != "" {
		// Browsers cannot set headers on websocket handshakes, so the key
		// also rides a query param.
		token := c.Query("token")
		if token == "" {
			authHeader := c.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.apiKey)) != 1 {
			h.logger.Warn("StreamHandler", "Rejected WS handshake", map[string]interface{}{"session_key": sessionKey})
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
		}
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("StreamHandler", "Watcher connected", map[string]interface{}{"session_key": sessionKey})
			internalWS.ServeWs(h.hub, conn, sessionKey)
			h.logger.Info("StreamHandler", "Watcher disconnected", map[string]interface{}{"session_key": sessionKey})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// RegisterRoutes registers the websocket watch route.
func (h *StreamHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws/session/:id", h.ServeWs)
}
