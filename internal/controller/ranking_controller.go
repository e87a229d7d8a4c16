package controller

import (
	"errors"

	"research-assistant-be/internal/dto"
	"research-assistant-be/internal/pkg/serverutils"
	"research-assistant-be/internal/service"
	"research-assistant-be/pkg/ranking"

	"github.com/gofiber/fiber/v2"
)

type IRankingController interface {
	RegisterRoutes(r fiber.Router)
	GetIndex(ctx *fiber.Ctx) error
	GetDetails(ctx *fiber.Ctx) error
	GetRankedDates(ctx *fiber.Ctx) error
}

type rankingController struct {
	rankingService service.IRankingService
	apiKey         string
}

func NewRankingController(rankingService service.IRankingService, apiKey string) IRankingController {
	return &rankingController{
		rankingService: rankingService,
		apiKey:         apiKey,
	}
}

func (c *rankingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/papers/v1/rankings")
	h.Use(serverutils.ApiKeyMiddleware(c.apiKey))
	h.Get("", c.GetRankedDates)
	h.Get(":date", c.GetIndex)
	h.Post(":date/details", c.GetDetails)
}

func (c *rankingController) GetRankedDates(ctx *fiber.Ctx) error {
	dates := c.rankingService.RankedDates(ctx.Context())
	return ctx.JSON(serverutils.SuccessResponse("Ranked dates", dto.RankedDatesResponse{Dates: dates}))
}

func (c *rankingController) GetIndex(ctx *fiber.Ctx) error {
	date := ctx.Params("date")

	index, err := c.rankingService.Index(ctx.Context(), date)
	if err != nil {
		if errors.Is(err, ranking.ErrNotRanked) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		return err
	}

	res := dto.GetRankingIndexResponse{
		Date:    date,
		Entries: make([]dto.RankingIndexEntry, len(index)),
	}
	for i, e := range index {
		res.Entries[i] = dto.RankingIndexEntry{
			Id:     e.PaperID,
			Title:  e.Title,
			Score:  e.Score,
			Reason: e.Reason,
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Ranking index", res))
}

func (c *rankingController) GetDetails(ctx *fiber.Ctx) error {
	date := ctx.Params("date")

	var req dto.GetRankingDetailsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	details, err := c.rankingService.Details(ctx.Context(), date, req.Ids)
	if err != nil {
		if errors.Is(err, ranking.ErrNotRanked) {
			return ctx.Status(fiber.StatusNotFound).JSON(serverutils.ErrorResponse(404, err.Error()))
		}
		if errors.Is(err, ranking.ErrUnknownItem) {
			return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
		}
		return err
	}

	res := dto.GetRankingDetailsResponse{
		Date:    date,
		Entries: make([]dto.RankingDetailEntry, len(details)),
	}
	for i, e := range details {
		res.Entries[i] = dto.RankingDetailEntry{
			Id:      e.PaperID,
			Title:   e.Title,
			Score:   e.Score,
			Reason:  e.Reason,
			Excerpt: e.Excerpt,
		}
	}
	return ctx.JSON(serverutils.SuccessResponse("Ranking details", res))
}
