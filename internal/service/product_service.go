package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/observability"
	"github.com/kursadbilgin/aggregation-engine/internal/repository"
	"go.uber.org/zap"
)

// ProductService owns product uploads and the one-time aggregation scan.
type ProductService struct {
	products repository.ProductRepository
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewProductService(
	products repository.ProductRepository,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*ProductService, error) {
	if products == nil {
		return nil, fmt.Errorf("product repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ProductService{
		products: products,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}, nil
}

// CreateMany uploads a product list. Items whose (date, batch number) does
// not resolve to a loaded batch are dropped without error; a duplicate code
// aborts the whole upload.
func (s *ProductService) CreateMany(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("%w: at least one product is required", domain.ErrValidation)
	}
	if len(products) > maxBulkSize {
		return nil, fmt.Errorf("%w: bulk size exceeds %d", domain.ErrValidation, maxBulkSize)
	}

	ptrs := make([]*domain.Product, len(products))
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return nil, err
		}
		ptrs[i] = &products[i]
	}

	created, err := s.products.CreateMany(ctx, ptrs)
	if err != nil {
		return nil, err
	}

	skipped := len(products) - len(created)
	s.metrics.AddProductsCreated(len(created))
	s.metrics.AddProductsSkipped(skipped)
	observability.WithRequestLogger(s.logger, ctx).Info("product list loaded",
		zap.Int("created", len(created)),
		zap.Int("skipped", skipped),
	)

	return created, nil
}

// Aggregate validates a physical scan of code against the batch the operator
// is working and commits the one-time transition.
func (s *ProductService) Aggregate(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrValidation)
	}
	if expectedBatchID == 0 {
		return nil, fmt.Errorf("%w: batch id is required", domain.ErrValidation)
	}

	product, err := s.products.Aggregate(ctx, code, expectedBatchID, s.now().UTC())
	if err != nil {
		s.metrics.IncAggregationRejected(rejectionReason(err))
		return nil, err
	}

	s.metrics.IncProductAggregated()
	observability.WithRequestLogger(s.logger, ctx).Info("product aggregated",
		zap.String("code", product.Code),
		zap.Uint("batchId", product.BatchID),
	)

	return product, nil
}

func rejectionReason(err error) string {
	var alreadyAggregated *domain.AlreadyAggregatedError
	switch {
	case errors.As(err, &alreadyAggregated):
		return "already_aggregated"
	case errors.Is(err, domain.ErrWrongBatch):
		return "wrong_batch"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
