package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/observability"
	"github.com/kursadbilgin/aggregation-engine/internal/repository"
	"go.uber.org/zap"
)

const maxBulkSize = 1000

// BatchService owns batch identity: filtered listing, replace-on-conflict
// shift plan loads, and presence-aware partial updates.
type BatchService struct {
	batches repository.BatchRepository
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

func NewBatchService(
	batches repository.BatchRepository,
	logger *zap.Logger,
	metrics *observability.Metrics,
) (*BatchService, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &BatchService{
		batches: batches,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}, nil
}

func (s *BatchService) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.batches.List(ctx, params)
}

func (s *BatchService) GetByID(ctx context.Context, id uint) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.batches.GetByID(ctx, id)
}

// CreateMany loads a shift plan. Each submitted batch replaces any existing
// batch with the same (date, number); the whole load commits or rolls back as
// one unit.
func (s *BatchService) CreateMany(ctx context.Context, batches []domain.Batch) ([]domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if len(batches) == 0 {
		return nil, fmt.Errorf("%w: at least one batch is required", domain.ErrValidation)
	}
	if len(batches) > maxBulkSize {
		return nil, fmt.Errorf("%w: bulk size exceeds %d", domain.ErrValidation, maxBulkSize)
	}

	ptrs := make([]*domain.Batch, len(batches))
	for i := range batches {
		if err := batches[i].Validate(); err != nil {
			return nil, err
		}
		ptrs[i] = &batches[i]
	}

	if err := s.batches.ReplaceMany(ctx, ptrs); err != nil {
		return nil, err
	}

	s.metrics.AddBatchesReplaced(len(batches))
	observability.WithRequestLogger(s.logger, ctx).Info("shift plan loaded",
		zap.Int("count", len(batches)),
	)

	return batches, nil
}

func (s *BatchService) Update(ctx context.Context, id uint, patch domain.BatchPatch) (*domain.Batch, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	updated, err := s.batches.Update(ctx, id, patch, s.now().UTC())
	if err != nil {
		return nil, err
	}

	observability.WithRequestLogger(s.logger, ctx).Info("batch updated",
		zap.Uint("batchId", updated.ID),
		zap.Bool("closed", updated.Status),
	)

	return updated, nil
}
