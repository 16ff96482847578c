package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
)

// ErrWrongBatch is returned when a scanned code is bound to a different batch
// than the one it is being aggregated against.
var ErrWrongBatch = fmt.Errorf("%w: unique code is attached to another batch", ErrConflict)

const aggregatedAtLayout = "2006-01-02 15:04:05"

// AlreadyAggregatedError rejects a repeated aggregation of the same code. It
// carries the timestamp of the original scan so operators can see when the
// code was first used.
type AlreadyAggregatedError struct {
	AggregatedAt time.Time
}

func (e *AlreadyAggregatedError) Error() string {
	return fmt.Sprintf("unique code already used at %s", e.AggregatedAt.Format(aggregatedAtLayout))
}

func (e *AlreadyAggregatedError) Is(target error) bool {
	return target == ErrConflict
}
