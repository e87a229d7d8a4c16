package controller

import (
	"bufio"
	"context"
	"errors"
	"time"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/bus"
	"research-assistant-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	Stream(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
	bus         *bus.SessionBus
	apiKey      string
	keepalive   time.Duration
}

func NewChatController(chatService service.IChatService, sessionBus *bus.SessionBus, apiKey string, keepaliveSeconds int) IChatController {
	if keepaliveSeconds < 1 {
		keepaliveSeconds = 5
	}
	return &chatController{
		chatService: chatService,
		bus:         sessionBus,
		apiKey:      apiKey,
		keepalive:   time.Duration(keepaliveSeconds) * time.Second,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Use(serverutils.ApiKeyMiddleware(c.apiKey))
	h.Post("session", c.CreateSession)
	h.Delete("session/:id", c.ClearSession)
	h.Get("session/:id/history", c.GetHistory)
	h.Post("stream", c.Stream)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	var req dto.CreateSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.chatService.CreateSession(ctx.Context(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session ready", res))
}

func (c *chatController) ClearSession(ctx *fiber.Ctx) error {
	sessionKey := ctx.Params("id")
	if sessionKey == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Session id is required"))
	}

	res, err := c.chatService.ClearSession(ctx.Context(), sessionKey)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Session cleared", res))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	sessionKey := ctx.Params("id")
	if sessionKey == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Session id is required"))
	}

	res, err := c.chatService.GetChatHistory(ctx.Context(), sessionKey)
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat history", res))
}

// Stream runs one turn and streams its events as SSE frames. The
// subscription is in place before the turn starts, so no event can be
// missed; a write failure marks the session stream closed so the
// orchestrator's remaining publishes become no-ops.
func (c *chatController) Stream(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	sessionKey := req.SessionId

	c.bus.OpenTurn(sessionKey)
	streamCtx, cancel := context.WithCancel(context.Background())
	events, err := c.bus.Subscribe(streamCtx, sessionKey)
	if err != nil {
		cancel()
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	// The turn outlives this handler's fiber context; it runs against the
	// background context and reports only through the bus. A busy session
	// is rejected here, before any frame is written, so the running
	// turn's stream is never touched.
	if err := c.chatService.RunTurn(context.Background(), sessionKey, req.Query); err != nil {
		cancel()
		if errors.Is(err, service.ErrTurnInProgress) {
			return ctx.Status(fiber.StatusConflict).JSON(serverutils.ErrorResponse(409, err.Error()))
		}
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}

	ctx.Set(fiber.HeaderContentType, "text/event-stream")
	ctx.Set(fiber.HeaderCacheControl, "no-cache")
	ctx.Set(fiber.HeaderConnection, "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	keepalive := c.keepalive
	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		enc := stream.NewEncoder(w)

		write := func(event bus.Event) bool {
			if err := enc.Encode(event); err != nil {
				c.bus.MarkClosed(sessionKey)
				return false
			}
			if err := w.Flush(); err != nil {
				c.bus.MarkClosed(sessionKey)
				return false
			}
			return true
		}

		ticker := time.NewTicker(keepalive)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if !write(event) {
					return
				}
				if event.Terminal() {
					return
				}
				ticker.Reset(keepalive)
			case <-ticker.C:
				if !write(bus.Status("Still working...")) {
					return
				}
			}
		}
	}))

	return nil
}
