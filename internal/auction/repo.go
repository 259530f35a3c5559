package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	"github.com/bidloop/bidloop-backend/pkg/pagination"
)

// repository is the GORM-backed Repository implementation.
type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the auction and returns the persisted row.
func (r *repository) Create(ctx context.Context, auction *models.Auction) (*models.Auction, error) {
	if err := r.db.WithContext(ctx).Create(auction).Error; err != nil {
		return nil, err
	}
	return auction, nil
}

// FindByID loads the auction without row locking.
func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	if err := r.db.WithContext(ctx).First(&auction, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &auction, nil
}

// FindByIDForUpdate loads the auction under FOR UPDATE inside a transaction.
func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	var auction models.Auction
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&auction, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &auction, nil
}

// Save persists the full aggregate state.
func (r *repository) Save(ctx context.Context, auction *models.Auction) error {
	return r.db.WithContext(ctx).Save(auction).Error
}

// IncrementViewCount bumps view_count without touching updated_at semantics.
func (r *repository) IncrementViewCount(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Auction{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// ListParams filters and paginates auction listings.
type ListParams struct {
	Status   *enums.AuctionStatus
	SellerID *uuid.UUID
	WinnerID *uuid.UUID
	Limit    int
	Cursor   string
}

// List returns a page of auctions ordered newest first, plus the cursor for
// the next page when more rows exist.
func (r *repository) List(ctx context.Context, params ListParams) ([]models.Auction, string, error) {
	query := r.db.WithContext(ctx).Model(&models.Auction{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.SellerID != nil {
		query = query.Where("seller_id = ?", *params.SellerID)
	}
	if params.WinnerID != nil {
		query = query.Where("winner_id = ?", *params.WinnerID)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where(
			"(created_at, id) < (?, ?)",
			cursor.CreatedAt, cursor.ID,
		)
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var auctions []models.Auction
	err = query.
		Order("created_at DESC, id DESC").
		Limit(limit + 1).
		Find(&auctions).Error
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(auctions) > limit {
		auctions = auctions[:limit]
		last := auctions[len(auctions)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return auctions, next, nil
}

// FindDueToOpen returns scheduled auctions whose start time has passed.
func (r *repository) FindDueToOpen(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND start_time <= ?", enums.AuctionStatusScheduled, now).
		Order("start_time ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}

// FindDueToClose returns active auctions whose end time has passed.
func (r *repository) FindDueToClose(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	var auctions []models.Auction
	err := r.db.WithContext(ctx).
		Where("status = ? AND end_time <= ?", enums.AuctionStatusActive, now).
		Order("end_time ASC").
		Limit(limit).
		Find(&auctions).Error
	if err != nil {
		return nil, err
	}
	return auctions, nil
}
