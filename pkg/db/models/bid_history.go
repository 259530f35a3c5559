package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidloop/bidloop-backend/pkg/enums"
)

// BidHistory is the append-only audit trail. Rows are never updated or
// deleted and are not consulted for bidding decisions.
type BidHistory struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID uuid.UUID                 `gorm:"column:auction_id;type:uuid;not null;index"`
	BidderID  uuid.UUID                 `gorm:"column:bidder_id;type:uuid;not null"`
	Amount    decimal.Decimal           `gorm:"column:amount;type:numeric(14,2);not null"`
	EventType enums.BidHistoryEventType `gorm:"column:event_type;type:bid_history_event_type_enum;not null"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}
