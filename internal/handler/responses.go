package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/aggregation-engine/internal/domain"
)

type batchResponse struct {
	ID              uint              `json:"id"`
	Status          bool              `json:"status"`
	Assignment      string            `json:"assignment"`
	Line            string            `json:"line"`
	Shift           string            `json:"shift"`
	Squad           string            `json:"squad"`
	Number          int               `json:"number"`
	Date            domain.Date       `json:"date"`
	Nomenclature    string            `json:"nomenclature"`
	CodeKN          string            `json:"codekn"`
	IdentificatorRC string            `json:"identificator_rc"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	ClosedAt        *time.Time        `json:"closed_at"`
	Products        []productResponse `json:"products"`
}

type productResponse struct {
	ID           uint        `json:"id"`
	Code         string      `json:"code"`
	BatchNumber  int         `json:"batch_number"`
	Date         domain.Date `json:"date"`
	IsAggregated bool        `json:"is_aggregated"`
	AggregatedAt *time.Time  `json:"aggregated_at"`
	BatchID      uint        `json:"batch_id"`
}

func toBatchResponse(b *domain.Batch) batchResponse {
	if b == nil {
		return batchResponse{}
	}

	return batchResponse{
		ID:              b.ID,
		Status:          b.Status,
		Assignment:      b.Assignment,
		Line:            b.Line,
		Shift:           b.Shift,
		Squad:           b.Squad,
		Number:          b.Number,
		Date:            b.Date,
		Nomenclature:    b.Nomenclature,
		CodeKN:          b.CodeKN,
		IdentificatorRC: b.IdentificatorRC,
		StartTime:       b.StartTime,
		EndTime:         b.EndTime,
		ClosedAt:        b.ClosedAt,
		Products:        toProductResponses(b.Products),
	}
}

func toBatchResponses(batches []domain.Batch) []batchResponse {
	responses := make([]batchResponse, 0, len(batches))
	for i := range batches {
		responses = append(responses, toBatchResponse(&batches[i]))
	}
	return responses
}

func toProductResponse(p *domain.Product) productResponse {
	if p == nil {
		return productResponse{}
	}

	return productResponse{
		ID:           p.ID,
		Code:         p.Code,
		BatchNumber:  p.BatchNumber,
		Date:         p.Date,
		IsAggregated: p.IsAggregated,
		AggregatedAt: p.AggregatedAt,
		BatchID:      p.BatchID,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	responses := make([]productResponse, 0, len(products))
	for i := range products {
		responses = append(responses, toProductResponse(&products[i]))
	}
	return responses
}

// toHTTPError maps domain errors onto the external contract. Conflicts,
// including the aggregation rejections, surface as 400 with a distinguishing
// message, not 409.
func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
