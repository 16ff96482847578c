package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/repository"
)

const maxAssignmentFilterLen = 255

type BatchService interface {
	List(ctx context.Context, params repository.ListParams) ([]domain.Batch, error)
	GetByID(ctx context.Context, id uint) (*domain.Batch, error)
	CreateMany(ctx context.Context, batches []domain.Batch) ([]domain.Batch, error)
	Update(ctx context.Context, id uint, patch domain.BatchPatch) (*domain.Batch, error)
}

type BatchHandler struct {
	service BatchService
}

func NewBatchHandler(service BatchService) (*BatchHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("batch service is required")
	}
	return &BatchHandler{service: service}, nil
}

func RegisterBatchRoutes(router fiber.Router, service BatchService) error {
	h, err := NewBatchHandler(service)
	if err != nil {
		return err
	}

	batches := router.Group("/batches")
	batches.Get("/", h.ListBatches)
	batches.Post("/", h.CreateBatches)
	batches.Get("/:id", h.GetBatch)
	batches.Patch("/:id", h.UpdateBatch)

	return nil
}

// createBatchRequest is one row of a shift plan upload. The field vocabulary
// is the external contract of the planning system and must not drift.
type createBatchRequest struct {
	Status          bool        `json:"СтатусЗакрытия"`
	Assignment      string      `json:"ПредставлениеЗаданияНаСмену"`
	Line            string      `json:"Линия"`
	Shift           string      `json:"Смена"`
	Squad           string      `json:"Бригада"`
	Number          int         `json:"НомерПартии"`
	Date            domain.Date `json:"ДатаПартии"`
	Nomenclature    string      `json:"Номенклатура"`
	CodeKN          string      `json:"КодЕКН"`
	IdentificatorRC string      `json:"ИдентификаторРЦ"`
	StartTime       time.Time   `json:"ДатаВремяНачалаСмены"`
	EndTime         time.Time   `json:"ДатаВремяОкончанияСмены"`
}

// updateBatchRequest carries a partial update in internal field names. Nil
// means "field omitted"; closed_at is not accepted, it follows the status
// transition.
type updateBatchRequest struct {
	Status          *bool        `json:"status"`
	Assignment      *string      `json:"assignment"`
	Line            *string      `json:"line"`
	Shift           *string      `json:"shift"`
	Squad           *string      `json:"squad"`
	Number          *int         `json:"number"`
	Date            *domain.Date `json:"date"`
	Nomenclature    *string      `json:"nomenclature"`
	CodeKN          *string      `json:"codekn"`
	IdentificatorRC *string      `json:"identificator_rc"`
	StartTime       *time.Time   `json:"start_time"`
	EndTime         *time.Time   `json:"end_time"`
}

func (h *BatchHandler) ListBatches(c *fiber.Ctx) error {
	params, err := parseBatchListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	batches, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponses(batches))
}

func (h *BatchHandler) GetBatch(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	batch, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(batch))
}

func (h *BatchHandler) CreateBatches(c *fiber.Ctx) error {
	var req []createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	batches := make([]domain.Batch, 0, len(req))
	for _, item := range req {
		batches = append(batches, domain.Batch{
			Status:          item.Status,
			Assignment:      item.Assignment,
			Line:            item.Line,
			Shift:           item.Shift,
			Squad:           item.Squad,
			Number:          item.Number,
			Date:            item.Date,
			Nomenclature:    item.Nomenclature,
			CodeKN:          item.CodeKN,
			IdentificatorRC: item.IdentificatorRC,
			StartTime:       item.StartTime,
			EndTime:         item.EndTime,
		})
	}

	created, err := h.service.CreateMany(c.Context(), batches)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toBatchResponses(created))
}

func (h *BatchHandler) UpdateBatch(c *fiber.Ctx) error {
	id, err := parseIDParam(c)
	if err != nil {
		return toHTTPError(err)
	}

	var req updateBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	patch := domain.BatchPatch{
		Status:          req.Status,
		Assignment:      req.Assignment,
		Line:            req.Line,
		Shift:           req.Shift,
		Squad:           req.Squad,
		Number:          req.Number,
		Date:            req.Date,
		Nomenclature:    req.Nomenclature,
		CodeKN:          req.CodeKN,
		IdentificatorRC: req.IdentificatorRC,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
	}

	updated, err := h.service.Update(c.Context(), id, patch)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toBatchResponse(updated))
}

func parseBatchListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Limit: repository.DefaultListLimit,
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > repository.MaxListLimit {
			return repository.ListParams{}, fmt.Errorf("%w: limit must be an integer between 1 and %d", domain.ErrValidation, repository.MaxListLimit)
		}
		params.Limit = limit
	}

	if raw := strings.TrimSpace(c.Query("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return repository.ListParams{}, fmt.Errorf("%w: offset must be an integer >= 0", domain.ErrValidation)
		}
		params.Offset = offset
	}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := strconv.ParseBool(raw)
		if err != nil {
			return repository.ListParams{}, fmt.Errorf("%w: status must be a boolean", domain.ErrValidation)
		}
		params.Status = &status
	}

	if raw := c.Query("line"); raw != "" {
		line := raw
		params.Line = &line
	}
	if raw := c.Query("shift"); raw != "" {
		shift := raw
		params.Shift = &shift
	}

	if raw := c.Query("assignment"); raw != "" {
		if len(raw) > maxAssignmentFilterLen {
			return repository.ListParams{}, fmt.Errorf("%w: assignment filter exceeds %d characters", domain.ErrValidation, maxAssignmentFilterLen)
		}
		assignment := raw
		params.Assignment = &assignment
	}

	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		date, err := domain.ParseDate(raw)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Date = &date
	}

	if raw := strings.TrimSpace(c.Query("number")); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil || number <= 0 {
			return repository.ListParams{}, fmt.Errorf("%w: number must be a positive integer", domain.ErrValidation)
		}
		params.Number = &number
	}

	return params, nil
}

func parseIDParam(c *fiber.Ctx) (uint, error) {
	raw := strings.TrimSpace(c.Params("id"))
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: id must be a positive integer", domain.ErrValidation)
	}
	return uint(id), nil
}
