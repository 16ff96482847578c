package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 10
	MaxListLimit     = 1000
)

// ListParams filters the batch listing. Nil fields are not applied; all set
// filters are ANDed.
type ListParams struct {
	Status     *bool
	Line       *string
	Shift      *string
	Assignment *string // case-insensitive substring match
	Date       *domain.Date
	Number     *int
	Limit      int
	Offset     int
}

type BatchRepository interface {
	List(ctx context.Context, params ListParams) ([]domain.Batch, error)
	GetByID(ctx context.Context, id uint) (*domain.Batch, error)
	ReplaceMany(ctx context.Context, batches []*domain.Batch) error
	Update(ctx context.Context, id uint, patch domain.BatchPatch, now time.Time) (*domain.Batch, error)
}

type GormBatchRepo struct {
	db *gorm.DB
}

func NewGormBatchRepo(db *gorm.DB) *GormBatchRepo {
	return &GormBatchRepo{db: db}
}

func (r *GormBatchRepo) List(ctx context.Context, params ListParams) ([]domain.Batch, error) {
	query := r.db.WithContext(ctx).Model(&BatchModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Line != nil {
		query = query.Where("line = ?", *params.Line)
	}
	if params.Shift != nil {
		query = query.Where("shift = ?", *params.Shift)
	}
	if params.Assignment != nil && *params.Assignment != "" {
		pattern := "%" + strings.ToLower(*params.Assignment) + "%"
		query = query.Where("LOWER(assignment) LIKE ?", pattern)
	}
	if params.Date != nil {
		query = query.Where("date = ?", *params.Date)
	}
	if params.Number != nil {
		query = query.Where("number = ?", *params.Number)
	}

	// The HTTP layer rejects out-of-range bounds with a validation error;
	// direct callers get them clamped here instead of an error.
	limit := params.Limit
	if limit < 1 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset := max(params.Offset, 0)

	var models []BatchModel
	err := query.
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("products.id ASC")
		}).
		Order("batches.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	batches := make([]domain.Batch, 0, len(models))
	for i := range models {
		batches = append(batches, *batchModelToDomain(&models[i]))
	}

	return batches, nil
}

func (r *GormBatchRepo) GetByID(ctx context.Context, id uint) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).
		Preload("Products", func(db *gorm.DB) *gorm.DB {
			return db.Order("products.id ASC")
		}).
		First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: batch not found", domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return batchModelToDomain(&model), nil
}

// ReplaceMany inserts every batch, removing any existing batch with the same
// (date, number) natural key first. The whole call is one transaction: a
// failure on any row rolls back every delete and insert. Products of a
// replaced batch are removed with it; the replacement's product list arrives
// with the next product upload.
func (r *GormBatchRepo) ReplaceMany(ctx context.Context, batches []*domain.Batch) error {
	if len(batches) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range batches {
			if b == nil {
				continue
			}

			var existingIDs []uint
			err := tx.Model(&BatchModel{}).
				Where("date = ? AND number = ?", b.Date, b.Number).
				Pluck("id", &existingIDs).Error
			if err != nil {
				return err
			}

			if len(existingIDs) > 0 {
				if err := tx.Where("batch_id IN ?", existingIDs).Delete(&ProductModel{}).Error; err != nil {
					return err
				}
				if err := tx.Where("id IN ?", existingIDs).Delete(&BatchModel{}).Error; err != nil {
					return err
				}
			}

			model := batchModelFromDomain(b)
			model.ID = 0
			if err := tx.Create(model).Error; err != nil {
				return err
			}
			*b = *batchModelToDomain(model)
		}
		return nil
	})
}

// Update applies a presence-aware patch inside one transaction, so the status
// transition and its ClosedAt side effect commit together. The write touches
// only the patched columns: a concurrent update to a field this patch omits
// is never overwritten with a stale value.
func (r *GormBatchRepo) Update(ctx context.Context, id uint, patch domain.BatchPatch, now time.Time) (*domain.Batch, error) {
	var updated *domain.Batch

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model BatchModel
		err := tx.First(&model, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: batch not found", domain.ErrNotFound)
		}
		if err != nil {
			return err
		}

		batch := batchModelToDomain(&model)
		batch.Apply(patch, now)

		if columns := batchPatchColumns(&model, patch, batch); len(columns) > 0 {
			err := tx.Model(&BatchModel{}).Where("id = ?", id).Updates(columns).Error
			if err != nil {
				return err
			}
		}

		var fresh BatchModel
		if err := tx.First(&fresh, "id = ?", id).Error; err != nil {
			return err
		}
		updated = batchModelToDomain(&fresh)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// batchPatchColumns maps the present patch fields onto their columns, taking
// the applied values from batch so the ClosedAt side effect rides along with
// a status flip. Omitted fields stay out of the map entirely.
func batchPatchColumns(current *BatchModel, patch domain.BatchPatch, batch *domain.Batch) map[string]any {
	columns := map[string]any{}

	if patch.Status != nil && *patch.Status != current.Status {
		columns["status"] = batch.Status
		columns["closed_at"] = batch.ClosedAt
	}
	if patch.Assignment != nil {
		columns["assignment"] = batch.Assignment
	}
	if patch.Line != nil {
		columns["line"] = batch.Line
	}
	if patch.Shift != nil {
		columns["shift"] = batch.Shift
	}
	if patch.Squad != nil {
		columns["squad"] = batch.Squad
	}
	if patch.Number != nil {
		columns["number"] = batch.Number
	}
	if patch.Date != nil {
		columns["date"] = batch.Date
	}
	if patch.Nomenclature != nil {
		columns["nomenclature"] = batch.Nomenclature
	}
	if patch.CodeKN != nil {
		columns["codekn"] = batch.CodeKN
	}
	if patch.IdentificatorRC != nil {
		columns["identificator_rc"] = batch.IdentificatorRC
	}
	if patch.StartTime != nil {
		columns["start_time"] = batch.StartTime
	}
	if patch.EndTime != nil {
		columns["end_time"] = batch.EndTime
	}

	return columns
}
