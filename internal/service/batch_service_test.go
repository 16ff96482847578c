package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/repository"
)

type fakeBatchRepo struct {
	listFn        func(ctx context.Context, params repository.ListParams) ([]domain.Batch, error)
	getByIDFn     func(ctx context.Context, id uint) (*domain.Batch, error)
	replaceManyFn func(ctx context.Context, batches []*domain.Batch) error
	updateFn      func(ctx context.Context, id uint, patch domain.BatchPatch, now time.Time) (*domain.Batch, error)
}

func (f *fakeBatchRepo) List(ctx context.Context, params repository.ListParams) ([]domain.Batch, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx, params)
}

func (f *fakeBatchRepo) GetByID(ctx context.Context, id uint) (*domain.Batch, error) {
	if f.getByIDFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeBatchRepo) ReplaceMany(ctx context.Context, batches []*domain.Batch) error {
	if f.replaceManyFn == nil {
		return nil
	}
	return f.replaceManyFn(ctx, batches)
}

func (f *fakeBatchRepo) Update(ctx context.Context, id uint, patch domain.BatchPatch, now time.Time) (*domain.Batch, error) {
	if f.updateFn == nil {
		return nil, domain.ErrNotFound
	}
	return f.updateFn(ctx, id, patch, now)
}

func serviceBatch(number int) domain.Batch {
	return domain.Batch{
		Assignment:      "shift plan",
		Line:            "L1",
		Shift:           "1",
		Squad:           "alpha",
		Number:          number,
		Date:            domain.NewDate(2024, time.February, 10),
		Nomenclature:    "bottled water 0.5",
		CodeKN:          "11111",
		IdentificatorRC: "RC-01",
		StartTime:       time.Date(2024, time.February, 9, 20, 0, 0, 0, time.UTC),
		EndTime:         time.Date(2024, time.February, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestBatchServiceCreateManyHappyPath(t *testing.T) {
	t.Parallel()

	repo := &fakeBatchRepo{
		replaceManyFn: func(ctx context.Context, batches []*domain.Batch) error {
			for i, b := range batches {
				b.ID = uint(i + 1)
			}
			return nil
		},
	}

	svc, err := NewBatchService(repo, nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	created, err := svc.CreateMany(context.Background(), []domain.Batch{serviceBatch(11111), serviceBatch(22222)})
	if err != nil {
		t.Fatalf("CreateMany() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created = %d batches, want 2", len(created))
	}
	if created[0].ID != 1 || created[1].ID != 2 {
		t.Fatal("store-assigned ids should be visible on the returned batches")
	}
}

func TestBatchServiceCreateManyValidation(t *testing.T) {
	t.Parallel()

	repoCalled := false
	repo := &fakeBatchRepo{
		replaceManyFn: func(ctx context.Context, batches []*domain.Batch) error {
			repoCalled = true
			return nil
		},
	}

	svc, err := NewBatchService(repo, nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	if _, err := svc.CreateMany(context.Background(), nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateMany(empty) error = %v, want ErrValidation", err)
	}

	invalid := serviceBatch(11111)
	invalid.Line = ""
	if _, err := svc.CreateMany(context.Background(), []domain.Batch{invalid}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateMany(invalid) error = %v, want ErrValidation", err)
	}

	if repoCalled {
		t.Fatal("repository must not be reached for invalid input")
	}
}

func TestBatchServiceUpdatePassesUTCTransitionTime(t *testing.T) {
	t.Parallel()

	fixedNow := time.Date(2024, time.February, 10, 9, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	var seenNow time.Time
	repo := &fakeBatchRepo{
		updateFn: func(ctx context.Context, id uint, patch domain.BatchPatch, now time.Time) (*domain.Batch, error) {
			seenNow = now
			b := serviceBatch(11111)
			b.ID = id
			b.Apply(patch, now)
			return &b, nil
		},
	}

	svc, err := NewBatchService(repo, nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}
	svc.now = func() time.Time { return fixedNow }

	closed := true
	updated, err := svc.Update(context.Background(), 3, domain.BatchPatch{Status: &closed})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if seenNow.Location() != time.UTC {
		t.Fatalf("transition time zone = %v, want UTC", seenNow.Location())
	}
	if updated.ClosedAt == nil || !updated.ClosedAt.Equal(fixedNow) {
		t.Fatalf("ClosedAt = %v, want %v", updated.ClosedAt, fixedNow)
	}
}

func TestBatchServiceUpdateNotFound(t *testing.T) {
	t.Parallel()

	svc, err := NewBatchService(&fakeBatchRepo{}, nil, nil)
	if err != nil {
		t.Fatalf("NewBatchService() error = %v", err)
	}

	closed := true
	if _, err := svc.Update(context.Background(), 999, domain.BatchPatch{Status: &closed}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestBatchServiceRequiresRepository(t *testing.T) {
	t.Parallel()

	if _, err := NewBatchService(nil, nil, nil); err == nil {
		t.Fatal("NewBatchService(nil) should fail")
	}
}
