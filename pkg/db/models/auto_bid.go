package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoBid is a standing instruction to re-bid up to MaxAmount whenever the
// bidder is outbid. At most one active row exists per (auction, bidder).
type AutoBid struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID uuid.UUID       `gorm:"column:auction_id;type:uuid;not null;uniqueIndex:ux_auto_bids_active_pair,where:is_active"`
	BidderID  uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null;uniqueIndex:ux_auto_bids_active_pair,where:is_active"`
	MaxAmount decimal.Decimal `gorm:"column:max_amount;type:numeric(14,2);not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
