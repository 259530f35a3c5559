package bidding

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
)

// BidOrder selects the sort order for bid listings.
type BidOrder string

const (
	BidOrderAmount BidOrder = "amount"
	BidOrderTime   BidOrder = "time"
)

// Repository defines persistence operations for the bid ledger and its
// append-only history trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateBid(ctx context.Context, bid *models.Bid) (*models.Bid, error)
	FindWinningBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error)
	DemoteBid(ctx context.Context, bidID uuid.UUID) error
	ListBids(ctx context.Context, auctionID uuid.UUID, orderBy BidOrder, limit int) ([]models.Bid, error)
	AppendHistory(ctx context.Context, entry *models.BidHistory) error
}

// Reaction is an auto-bid follow-up the reactor wants placed.
type Reaction struct {
	AutoBidID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
}

// AutoBidReactor decides whether the bidder who just lost the lead should
// counter automatically. A nil reaction means no-op, including the
// ceiling-reached case, which deactivates the instruction internally.
type AutoBidReactor interface {
	React(ctx context.Context, tx *gorm.DB, auction *models.Auction, outbidBidderID uuid.UUID) (*Reaction, error)
}

// userDirectory resolves display names denormalized onto bid rows.
type userDirectory interface {
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
}

// productGate is the slice of the products service the settlement paths need.
type productGate interface {
	MarkSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
	MarkAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
