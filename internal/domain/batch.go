package domain

import (
	"fmt"
	"time"
)

// Batch is one production run on a line, loaded from a shift plan. Its
// natural key is (Date, Number); the surrogate ID is assigned by the store.
type Batch struct {
	ID              uint
	Status          bool // false = open, true = closed
	Assignment      string
	Line            string
	Shift           string
	Squad           string
	Number          int
	Date            Date
	Nomenclature    string
	CodeKN          string
	IdentificatorRC string
	StartTime       time.Time
	EndTime         time.Time
	ClosedAt        *time.Time
	Products        []Product
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b *Batch) Validate() error {
	if b.Assignment == "" {
		return fmt.Errorf("%w: assignment is required", ErrValidation)
	}
	if b.Line == "" {
		return fmt.Errorf("%w: line is required", ErrValidation)
	}
	if b.Shift == "" {
		return fmt.Errorf("%w: shift is required", ErrValidation)
	}
	if b.Squad == "" {
		return fmt.Errorf("%w: squad is required", ErrValidation)
	}
	if b.Number <= 0 {
		return fmt.Errorf("%w: number must be positive", ErrValidation)
	}
	if b.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if b.Nomenclature == "" {
		return fmt.Errorf("%w: nomenclature is required", ErrValidation)
	}
	if b.CodeKN == "" {
		return fmt.Errorf("%w: codekn is required", ErrValidation)
	}
	if b.IdentificatorRC == "" {
		return fmt.Errorf("%w: identificator_rc is required", ErrValidation)
	}
	if b.StartTime.IsZero() || b.EndTime.IsZero() {
		return fmt.Errorf("%w: shift start and end times are required", ErrValidation)
	}
	return nil
}

// BatchPatch carries a partial update. A nil field means "leave unchanged"; a
// non-nil field is applied even when it points at the zero value. ClosedAt is
// deliberately absent: it is owned by the status transition and cannot be set
// directly.
type BatchPatch struct {
	Status          *bool
	Assignment      *string
	Line            *string
	Shift           *string
	Squad           *string
	Number          *int
	Date            *Date
	Nomenclature    *string
	CodeKN          *string
	IdentificatorRC *string
	StartTime       *time.Time
	EndTime         *time.Time
}

// Apply mutates b with the fields present in the patch. Flipping Status to
// closed stamps ClosedAt with the transition time; flipping it back to open
// clears it. ClosedAt stays non-nil iff Status is closed.
func (b *Batch) Apply(patch BatchPatch, now time.Time) {
	if patch.Status != nil && *patch.Status != b.Status {
		if *patch.Status {
			closedAt := now
			b.ClosedAt = &closedAt
		} else {
			b.ClosedAt = nil
		}
	}
	if patch.Status != nil {
		b.Status = *patch.Status
	}
	if patch.Assignment != nil {
		b.Assignment = *patch.Assignment
	}
	if patch.Line != nil {
		b.Line = *patch.Line
	}
	if patch.Shift != nil {
		b.Shift = *patch.Shift
	}
	if patch.Squad != nil {
		b.Squad = *patch.Squad
	}
	if patch.Number != nil {
		b.Number = *patch.Number
	}
	if patch.Date != nil {
		b.Date = *patch.Date
	}
	if patch.Nomenclature != nil {
		b.Nomenclature = *patch.Nomenclature
	}
	if patch.CodeKN != nil {
		b.CodeKN = *patch.CodeKN
	}
	if patch.IdentificatorRC != nil {
		b.IdentificatorRC = *patch.IdentificatorRC
	}
	if patch.StartTime != nil {
		b.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		b.EndTime = *patch.EndTime
	}
}
