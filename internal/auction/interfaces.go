package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
)

// Repository defines persistence operations for the auctions table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, auction *models.Auction) (*models.Auction, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error)
	Save(ctx context.Context, auction *models.Auction) error
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, params ListParams) ([]models.Auction, string, error)
	FindDueToOpen(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
	FindDueToClose(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
}
