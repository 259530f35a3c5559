package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidloop/bidloop-backend/pkg/enums"
)

// Auction is the aggregate root for a timed sale. currentPrice never drops
// below startPrice, and WinnerID/WinningBidID are set and cleared together.
type Auction struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID           `gorm:"column:product_id;type:uuid;not null;uniqueIndex:ux_auctions_product_open,where:status IN ('scheduled','active')"`
	SellerID     uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	StartPrice   decimal.Decimal     `gorm:"column:start_price;type:numeric(14,2);not null"`
	CurrentPrice decimal.Decimal     `gorm:"column:current_price;type:numeric(14,2);not null"`
	BuyNowPrice  *decimal.Decimal    `gorm:"column:buy_now_price;type:numeric(14,2)"`
	MinIncrement decimal.Decimal     `gorm:"column:min_increment;type:numeric(14,2);not null"`
	StartTime    time.Time           `gorm:"column:start_time;not null"`
	EndTime      time.Time           `gorm:"column:end_time;not null"`
	Status       enums.AuctionStatus `gorm:"column:status;type:auction_status_enum;not null;default:'scheduled';index"`
	WinnerID     *uuid.UUID          `gorm:"column:winner_id;type:uuid;index"`
	WinningBidID *uuid.UUID          `gorm:"column:winning_bid_id;type:uuid"`
	BidCount     int                 `gorm:"column:bid_count;not null;default:0"`
	ViewCount    int                 `gorm:"column:view_count;not null;default:0"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
