package domain

import (
	"fmt"
	"time"
)

// Product is a single item scanned against a batch. Its Code is printed or
// engraved externally and globally unique; the system never generates one.
type Product struct {
	ID           uint
	Code         string
	BatchNumber  int
	Date         Date
	IsAggregated bool
	AggregatedAt *time.Time
	BatchID      uint
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (p *Product) Validate() error {
	if p.Code == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if p.BatchNumber <= 0 {
		return fmt.Errorf("%w: batch number must be positive", ErrValidation)
	}
	if p.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	return nil
}

// Aggregate performs the one-time scan transition against the batch the
// operator is working. Check order is load bearing: a repeated scan is
// reported before a wrong-batch scan.
func (p *Product) Aggregate(expectedBatchID uint, now time.Time) error {
	if p.IsAggregated {
		at := now
		if p.AggregatedAt != nil {
			at = *p.AggregatedAt
		}
		return &AlreadyAggregatedError{AggregatedAt: at}
	}
	if p.BatchID != expectedBatchID {
		return ErrWrongBatch
	}
	aggregatedAt := now
	p.IsAggregated = true
	p.AggregatedAt = &aggregatedAt
	return nil
}
