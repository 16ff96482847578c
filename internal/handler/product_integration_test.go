package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/kursadbilgin/aggregation-engine/internal/domain"
	"github.com/kursadbilgin/aggregation-engine/internal/ratelimit"
	"github.com/kursadbilgin/aggregation-engine/internal/transport"
)

type stubProductService struct {
	createManyFn func(ctx context.Context, products []domain.Product) ([]domain.Product, error)
	aggregateFn  func(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error)
}

func (s *stubProductService) CreateMany(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
	if s.createManyFn == nil {
		return nil, nil
	}
	return s.createManyFn(ctx, products)
}

func (s *stubProductService) Aggregate(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
	if s.aggregateFn == nil {
		return nil, domain.ErrNotFound
	}
	return s.aggregateFn(ctx, code, expectedBatchID)
}

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (l *stubLimiter) Allow(ctx context.Context, scope string) (bool, error) {
	l.calls++
	return l.allowed, l.err
}

func newProductTestApp(t *testing.T, svc ProductService, limiter ratelimit.RateLimiter) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(zap.NewNop()),
	})

	if err := RegisterProductRoutes(app, svc, limiter); err != nil {
		t.Fatalf("RegisterProductRoutes() error = %v", err)
	}

	return app
}

func TestProductIntegration_CreateProducts(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{
		createManyFn: func(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
			if len(products) != 2 {
				t.Fatalf("products = %d, want 2", len(products))
			}
			if products[0].Code != "A-001" || products[0].BatchNumber != 11111 {
				t.Fatalf("decoded product = %+v, want external vocabulary mapped", products[0])
			}
			// The second row matches no batch and is dropped.
			bound := products[0]
			bound.ID = 1
			bound.BatchID = 7
			return []domain.Product{bound}, nil
		},
	}

	app := newProductTestApp(t, svc, nil)

	body := `[
		{"УникальныйКодПродукта": "A-001", "НомерПартии": 11111, "ДатаПартии": "2024-02-10"},
		{"УникальныйКодПродукта": "B-002", "НомерПартии": 99999, "ДатаПартии": "2024-02-10"}
	]`
	resp, respBody := performRequest(t, app, http.MethodPost, "/products/", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(respBody))
	}

	var created []map[string]any
	if err := json.Unmarshal(respBody, &created); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if len(created) != 1 {
		t.Fatalf("created = %d items, want only the bound product", len(created))
	}
	if created[0]["code"] != "A-001" || created[0]["batch_id"] != float64(7) {
		t.Fatalf("created[0] = %v, want internal field names", created[0])
	}

	resp, _ = performRequest(t, app, http.MethodPost, "/products/", `{"not":"an array"}`)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for non-array body", resp.StatusCode)
	}
}

func TestProductIntegration_CreateProductsDuplicateCode(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{
		createManyFn: func(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
			return nil, fmt.Errorf("%w: the request body is incorrect, check the product code", domain.ErrConflict)
		},
	}

	app := newProductTestApp(t, svc, nil)

	body := `[{"УникальныйКодПродукта": "A-001", "НомерПартии": 11111, "ДатаПартии": "2024-02-10"}]`
	resp, respBody := performRequest(t, app, http.MethodPost, "/products/", body)
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for duplicate code, body=%s", resp.StatusCode, string(respBody))
	}
	if !strings.Contains(string(respBody), "check the product code") {
		t.Fatalf("body = %s, want duplicate code message", string(respBody))
	}
}

func TestProductIntegration_Aggregate(t *testing.T) {
	t.Parallel()

	aggregatedAt := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	svc := &stubProductService{
		aggregateFn: func(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
			if code != "A-001" || expectedBatchID != 3 {
				t.Fatalf("scan = %q/%d, want A-001/3", code, expectedBatchID)
			}
			return &domain.Product{ID: 1, Code: code, BatchID: 3, IsAggregated: true, AggregatedAt: &aggregatedAt}, nil
		},
	}

	app := newProductTestApp(t, svc, nil)

	resp, body := performRequest(t, app, http.MethodPatch, "/products/", `{"id": 3, "code": "A-001"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", resp.StatusCode, string(body))
	}

	var product map[string]any
	if err := json.Unmarshal(body, &product); err != nil {
		t.Fatalf("json unmarshal error = %v", err)
	}
	if product["is_aggregated"] != true {
		t.Fatalf("is_aggregated = %v, want true", product["is_aggregated"])
	}
	if product["aggregated_at"] == nil {
		t.Fatal("aggregated_at should be set after the scan")
	}
}

func TestProductIntegration_AggregateRejections(t *testing.T) {
	t.Parallel()

	aggregatedAt := time.Date(2024, time.February, 10, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
	}{
		{
			name:        "unknown code",
			err:         fmt.Errorf("%w: product not found", domain.ErrNotFound),
			wantStatus:  fiber.StatusNotFound,
			wantMessage: "product not found",
		},
		{
			name:        "already aggregated",
			err:         &domain.AlreadyAggregatedError{AggregatedAt: aggregatedAt},
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "unique code already used at 2024-02-10 12:00:00",
		},
		{
			name:        "wrong batch",
			err:         domain.ErrWrongBatch,
			wantStatus:  fiber.StatusBadRequest,
			wantMessage: "unique code is attached to another batch",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubProductService{
				aggregateFn: func(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
					return nil, tc.err
				},
			}

			app := newProductTestApp(t, svc, nil)

			resp, body := performRequest(t, app, http.MethodPatch, "/products/", `{"id": 3, "code": "A-001"}`)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d, body=%s", resp.StatusCode, tc.wantStatus, string(body))
			}
			if !strings.Contains(string(body), tc.wantMessage) {
				t.Fatalf("body = %s, want message %q", string(body), tc.wantMessage)
			}
		})
	}
}

func TestProductIntegration_AggregateRateLimited(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{
		aggregateFn: func(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
			t.Fatal("service must not be reached when the limiter rejects")
			return nil, nil
		},
	}
	limiter := &stubLimiter{allowed: false}

	app := newProductTestApp(t, svc, limiter)

	resp, body := performRequest(t, app, http.MethodPatch, "/products/", `{"id": 3, "code": "A-001"}`)
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429, body=%s", resp.StatusCode, string(body))
	}
	if limiter.calls != 1 {
		t.Fatalf("limiter calls = %d, want 1", limiter.calls)
	}
}

func TestProductIntegration_AggregateLimiterFailsOpen(t *testing.T) {
	t.Parallel()

	svc := &stubProductService{
		aggregateFn: func(ctx context.Context, code string, expectedBatchID uint) (*domain.Product, error) {
			return &domain.Product{ID: 1, Code: code, BatchID: expectedBatchID, IsAggregated: true}, nil
		},
	}
	limiter := &stubLimiter{err: errors.New("redis down")}

	app := newProductTestApp(t, svc, limiter)

	resp, body := performRequest(t, app, http.MethodPatch, "/products/", `{"id": 3, "code": "A-001"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200 when the limiter fails open, body=%s", resp.StatusCode, string(body))
	}
}

func TestProductIntegration_CreateProductsUpstreamRateLimitNotApplied(t *testing.T) {
	t.Parallel()

	limiter := &stubLimiter{allowed: false}
	svc := &stubProductService{
		createManyFn: func(ctx context.Context, products []domain.Product) ([]domain.Product, error) {
			return []domain.Product{{ID: 1, Code: products[0].Code, BatchID: 7}}, nil
		},
	}

	app := newProductTestApp(t, svc, limiter)

	body := `[{"УникальныйКодПродукта": "A-001", "НомерПартии": 11111, "ДатаПартии": "2024-02-10"}]`
	resp, respBody := performRequest(t, app, http.MethodPost, "/products/", body)
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("status = %d, want 201, body=%s", resp.StatusCode, string(respBody))
	}
	if limiter.calls != 0 {
		t.Fatal("uploads must not consume the scan rate limit")
	}
}
