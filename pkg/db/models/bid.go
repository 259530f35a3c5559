package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an append-only ledger row. Amount and BidTime are immutable after
// insert; only IsWinning flips, and at most one row per auction carries it.
type Bid struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID  uuid.UUID       `gorm:"column:auction_id;type:uuid;not null;index"`
	BidderID   uuid.UUID       `gorm:"column:bidder_id;type:uuid;not null;index"`
	BidderName string          `gorm:"column:bidder_name;not null"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	BidTime    time.Time       `gorm:"column:bid_time;not null"`
	IsWinning  bool            `gorm:"column:is_winning;not null;default:false"`
	IsAutoBid  bool            `gorm:"column:is_auto_bid;not null;default:false"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
