package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"gorm.io/gorm"
)

type ProductRepository interface {
	CreateMany(ctx context.Context, products []*domain.Product) ([]domain.Product, error)
	Aggregate(ctx context.Context, code string, expectedBatchID uint, now time.Time) (*domain.Product, error)
}

type GormProductRepo struct {
	db *gorm.DB

	// runs between the aggregation check and its conditional write; nil in
	// production, injected to exercise the contended path.
	beforeAggregateWrite func()
}

func NewGormProductRepo(db *gorm.DB) *GormProductRepo {
	return &GormProductRepo{db: db}
}

// CreateMany persists the products whose (date, batch_number) resolves to an
// existing batch and silently drops the rest; that drop is a design choice of
// the upload contract, not an error. All inserts share one transaction: a
// duplicate code rolls back the entire upload and surfaces as a single
// conflict.
func (r *GormProductRepo) CreateMany(ctx context.Context, products []*domain.Product) ([]domain.Product, error) {
	created := make([]domain.Product, 0, len(products))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range products {
			if p == nil {
				continue
			}

			var batch BatchModel
			err := tx.Where("date = ? AND number = ?", p.Date, p.BatchNumber).First(&batch).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			model := productModelFromDomain(p)
			model.ID = 0
			model.BatchID = batch.ID
			if err := tx.Create(model).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return fmt.Errorf("%w: the request body is incorrect, check the product code", domain.ErrConflict)
				}
				return err
			}
			created = append(created, *productModelToDomain(model))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Aggregate commits the one-time scan transition. The write is a row-level
// compare-and-swap on is_aggregated, so of two concurrent scans for the same
// code exactly one wins; the loser rereads the row and reports the winner's
// timestamp.
func (r *GormProductRepo) Aggregate(ctx context.Context, code string, expectedBatchID uint, now time.Time) (*domain.Product, error) {
	model, err := r.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	product := productModelToDomain(model)
	if err := product.Aggregate(expectedBatchID, now); err != nil {
		return nil, err
	}

	if r.beforeAggregateWrite != nil {
		r.beforeAggregateWrite()
	}

	result := r.db.WithContext(ctx).
		Model(&ProductModel{}).
		Where("id = ? AND is_aggregated = ?", model.ID, false).
		Updates(map[string]any{
			"is_aggregated": true,
			"aggregated_at": *product.AggregatedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		fresh, err := r.getByCode(ctx, code)
		if err != nil {
			return nil, err
		}
		at := now
		if fresh.AggregatedAt != nil {
			at = *fresh.AggregatedAt
		}
		return nil, &domain.AlreadyAggregatedError{AggregatedAt: at}
	}

	return product, nil
}

func (r *GormProductRepo) getByCode(ctx context.Context, code string) (*ProductModel, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product not found", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &model, nil
}
