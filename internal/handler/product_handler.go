package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/ratelimit"
)

type ProductService interface {
	CreateMany(ctx context.Context, products []domain.Product) ([]domain.Product, error)
	Aggregate(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error)
}

type ProductHandler struct {
	service ProductService
}

func NewProductHandler(service ProductService) (*ProductHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("product service is required")
	}
	return &ProductHandler{service: service}, nil
}

// RegisterProductRoutes wires the product upload and aggregation scan
// endpoints. The limiter caps scan throughput; pass nil to disable.
func RegisterProductRoutes(router fiber.Router, service ProductService, limiter ratelimit.RateLimiter) error {
	h, err := NewProductHandler(service)
	if err != nil {
		return err
	}

	products := router.Group("/products")
	products.Post("/", h.CreateProducts)
	products.Patch("/", scanRateLimit(limiter), h.AggregateProduct)

	return nil
}

// createProductRequest is one row of a product list upload; the field
// vocabulary is the external contract of the labeling system.
type createProductRequest struct {
	Code        string      `json:"УникальныйКодПродукта"`
	BatchNumber int         `json:"НомерПартии"`
	Date        domain.Date `json:"ДатаПартии"`
}

// aggregationRequest is a physical scan: the code read from the item and the
// id of the batch the operator is working.
type aggregationRequest struct {
	ID   uint   `json:"id"`
	Code string `json:"code"`
}

func (h *ProductHandler) CreateProducts(c *fiber.Ctx) error {
	var req []createProductRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	products := make([]domain.Product, 0, len(req))
	for _, item := range req {
		products = append(products, domain.Product{
			Code:        item.Code,
			BatchNumber: item.BatchNumber,
			Date:        item.Date,
		})
	}

	created, err := h.service.CreateMany(c.Context(), products)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toProductResponses(created))
}

func (h *ProductHandler) AggregateProduct(c *fiber.Ctx) error {
	var req aggregationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	product, err := h.service.Aggregate(c.Context(), req.Code, req.ID)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product))
}

func scanRateLimit(limiter ratelimit.RateLimiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if limiter == nil {
			return c.Next()
		}

		allowed, err := limiter.Allow(c.Context(), "aggregate")
		if err != nil {
			// A limiter outage must not stop the line.
			return c.Next()
		}
		if !allowed {
			return fiber.NewError(fiber.StatusTooManyRequests, "scan rate limit exceeded")
		}
		return c.Next()
	}
}
