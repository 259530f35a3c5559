package autobid

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
)

// Repository defines persistence for auto-bid instructions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, instruction *models.AutoBid) (*models.AutoBid, error)
	FindActivePair(ctx context.Context, auctionID, bidderID uuid.UUID) (*models.AutoBid, error)
	DeactivateByID(ctx context.Context, id uuid.UUID) error
	DeactivatePair(ctx context.Context, auctionID, bidderID uuid.UUID) error
	ListActiveByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AutoBid, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an auto-bid repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, instruction *models.AutoBid) (*models.AutoBid, error) {
	if err := r.db.WithContext(ctx).Create(instruction).Error; err != nil {
		return nil, err
	}
	return instruction, nil
}

func (r *repository) FindActivePair(ctx context.Context, auctionID, bidderID uuid.UUID) (*models.AutoBid, error) {
	var instruction models.AutoBid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND bidder_id = ? AND is_active", auctionID, bidderID).
		First(&instruction).Error
	if err != nil {
		return nil, err
	}
	return &instruction, nil
}

func (r *repository) DeactivateByID(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AutoBid{}).
		Where("id = ?", id).
		UpdateColumn("is_active", false).Error
}

func (r *repository) DeactivatePair(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.AutoBid{}).
		Where("auction_id = ? AND bidder_id = ? AND is_active", auctionID, bidderID).
		UpdateColumn("is_active", false).Error
}

func (r *repository) ListActiveByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AutoBid, error) {
	var instructions []models.AutoBid
	err := r.db.WithContext(ctx).
		Where("auction_id = ? AND is_active", auctionID).
		Order("created_at ASC").
		Find(&instructions).Error
	if err != nil {
		return nil, err
	}
	return instructions, nil
}
