package controller

import (
	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPaperController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	ListByDate(ctx *fiber.Ctx) error
}

type paperController struct {
	paperService service.IPaperService
	apiKey       string
}

func NewPaperController(paperService service.IPaperService, apiKey string) IPaperController {
	return &paperController{
		paperService: paperService,
		apiKey:       apiKey,
	}
}

func (c *paperController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/papers/v1")
	h.Use(serverutils.ApiKeyMiddleware(c.apiKey))
	h.Post("ingest", c.Ingest)
	h.Get(":date", c.ListByDate)
}

func (c *paperController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestPapersRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	count, err := c.paperService.Ingest(ctx.Context(), req.Date)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Papers ingested", dto.IngestPapersResponse{
		Date:  req.Date,
		Count: count,
	}))
}

func (c *paperController) ListByDate(ctx *fiber.Ctx) error {
	date := ctx.Params("date")

	papers, err := c.paperService.ListByDate(ctx.Context(), date)
	if err != nil {
		return err
	}

	res := dto.ListPapersResponse{
		Date:   date,
		Papers: make([]dto.PaperResponse, len(papers)),
	}
	for i, p := range papers {
		res.Papers[i] = dto.PaperResponse{
			Id:          p.PaperKey,
			Title:       p.Title,
			Summary:     p.Summary,
			Authors:     p.Authors,
			PublishedAt: p.PublishedAt,
			Upvotes:     p.Upvotes,
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Papers", res))
}
