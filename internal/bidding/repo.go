package bidding

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bid ledger repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateBid(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	if err := r.db.WithContext(ctx).Create(bid).Error; err != nil {
		return nil, err
	}
	return bid, nil
}

func (r *repository) FindWinningBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND is_winning", auctionID).
		First(&bid).Error
	if err != nil {
		return nil, err
	}
	return &bid, nil
}

// DemoteBid clears is_winning; amount and bid_time stay immutable.
func (r *repository) DemoteBid(ctx context.Context, bidID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		UpdateColumn("is_winning", false).Error
}

func (r *repository) ListBids(ctx context.Context, auctionID uuid.UUID, orderBy BidOrder, limit int) ([]models.Bid, error) {
	query := r.db.WithContext(ctx).Where("auction_id = ?", auctionID)
	switch orderBy {
	case BidOrderAmount:
		query = query.Order("amount DESC, bid_time ASC")
	default:
		query = query.Order("bid_time DESC, id DESC")
	}

	var bids []models.Bid
	err := query.Limit(pagination.NormalizeLimit(limit)).Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) AppendHistory(ctx context.Context, entry *models.BidHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}
