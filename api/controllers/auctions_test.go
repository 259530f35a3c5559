package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/api/middleware"
	auctionsvc "github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/pkg/config"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/outbox"
	"github.com/bidloop/bidloop-backend/pkg/types"
)

type memAuctionRepo struct {
	auctions map[uuid.UUID]*models.Auction
}

func newMemAuctionRepo() *memAuctionRepo {
	return &memAuctionRepo{auctions: make(map[uuid.UUID]*models.Auction)}
}

func (m *memAuctionRepo) WithTx(tx *gorm.DB) auctionsvc.Repository { return m }

func (m *memAuctionRepo) Create(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	copied := *a
	m.auctions[a.ID] = &copied
	return a, nil
}

func (m *memAuctionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	a, ok := m.auctions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memAuctionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return m.FindByID(ctx, id)
}

func (m *memAuctionRepo) Save(ctx context.Context, a *models.Auction) error {
	copied := *a
	m.auctions[a.ID] = &copied
	return nil
}

func (m *memAuctionRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	if a, ok := m.auctions[id]; ok {
		a.ViewCount++
	}
	return nil
}

func (m *memAuctionRepo) List(ctx context.Context, params auctionsvc.ListParams) ([]models.Auction, string, error) {
	var out []models.Auction
	for _, a := range m.auctions {
		if params.Status != nil && a.Status != *params.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, "", nil
}

func (m *memAuctionRepo) FindDueToOpen(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (m *memAuctionRepo) FindDueToClose(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

type allowAllProducts struct{}

func (allowAllProducts) EnsureSellable(ctx context.Context, tx *gorm.DB, productID, sellerID uuid.UUID) error {
	return nil
}
func (allowAllProducts) MarkAuctioned(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return nil
}
func (allowAllProducts) MarkAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return nil
}

type passthroughTx struct{}

func (passthroughTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type dropOutbox struct{}

func (dropOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error { return nil }
func (dropOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return nil
}

func newAuctionService(t *testing.T) (*auctionsvc.Service, *memAuctionRepo) {
	t.Helper()
	repo := newMemAuctionRepo()
	svc, err := auctionsvc.NewService(auctionsvc.ServiceParams{
		Repo:     repo,
		Products: allowAllProducts{},
		Tx:       passthroughTx{},
		Outbox:   dropOutbox{},
		Locks:    auctionsvc.NewLockTable(),
		Logger:   logger.New(logger.Options{ServiceName: "controllers-test"}),
		Config:   config.AuctionConfig{DefaultMinIncrement: "1.00", MaxCascadeDepth: 8},
	})
	if err != nil {
		t.Fatalf("construct auction service: %v", err)
	}
	return svc, repo
}

func serveCreate(t *testing.T, svc *auctionsvc.Service, actorID uuid.UUID, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auctions", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if actorID != uuid.Nil {
		req = req.WithContext(middleware.WithUserID(req.Context(), actorID))
	}
	rec := httptest.NewRecorder()
	logg := logger.New(logger.Options{ServiceName: "controllers-test"})
	CreateAuction(svc, logg).ServeHTTP(rec, req)
	return rec
}

func TestCreateAuctionHappyPath(t *testing.T) {
	svc, repo := newAuctionService(t)
	seller := uuid.New()
	start := time.Now().Add(time.Hour)

	rec := serveCreate(t, svc, seller, map[string]any{
		"product_id":  uuid.NewString(),
		"start_price": "25.00",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    start.Add(24 * time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(repo.auctions) != 1 {
		t.Fatalf("expected one persisted auction, got %d", len(repo.auctions))
	}
}

func TestCreateAuctionValidation(t *testing.T) {
	svc, _ := newAuctionService(t)
	seller := uuid.New()
	start := time.Now().Add(time.Hour)

	cases := map[string]map[string]any{
		"missing product": {
			"start_price": "25.00",
			"start_time":  start.Format(time.RFC3339),
			"end_time":    start.Add(time.Hour).Format(time.RFC3339),
		},
		"bad price": {
			"product_id":  uuid.NewString(),
			"start_price": "not-money",
			"start_time":  start.Format(time.RFC3339),
			"end_time":    start.Add(time.Hour).Format(time.RFC3339),
		},
		"end before start": {
			"product_id":  uuid.NewString(),
			"start_price": "25.00",
			"start_time":  start.Format(time.RFC3339),
			"end_time":    start.Add(-time.Hour).Format(time.RFC3339),
		},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := serveCreate(t, svc, seller, body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetAuctionBumpsViews(t *testing.T) {
	svc, repo := newAuctionService(t)
	seller := uuid.New()
	start := time.Now().Add(time.Hour)

	rec := serveCreate(t, svc, seller, map[string]any{
		"product_id":  uuid.NewString(),
		"start_price": "25.00",
		"start_time":  start.Format(time.RFC3339),
		"end_time":    start.Add(24 * time.Hour).Format(time.RFC3339),
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create failed: %s", rec.Body.String())
	}

	var auctionID uuid.UUID
	for id := range repo.auctions {
		auctionID = id
	}

	router := chi.NewRouter()
	logg := logger.New(logger.Options{ServiceName: "controllers-test"})
	router.Get("/api/v1/auctions/{auctionId}", GetAuction(svc, logg))

	getRec := httptest.NewRecorder()
	router.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet,
		fmt.Sprintf("/api/v1/auctions/%s", auctionID), nil))
	if getRec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", getRec.Code, getRec.Body.String())
	}
	if repo.auctions[auctionID].ViewCount != 1 {
		t.Fatalf("expected view count 1, got %d", repo.auctions[auctionID].ViewCount)
	}

	var envelope types.SuccessEnvelope
	if err := json.NewDecoder(getRec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.Data == nil {
		t.Fatal("expected auction payload")
	}
}
