package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuctionCreatedEvent announces a newly listed auction.
type AuctionCreatedEvent struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	StartPrice decimal.Decimal `json:"start_price"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    time.Time       `json:"end_time"`
}

// BidPlacedEvent is emitted for every accepted bid, automatic or manual.
type BidPlacedEvent struct {
	AuctionID uuid.UUID       `json:"auction_id"`
	ProductID uuid.UUID       `json:"product_id"`
	BidID     uuid.UUID       `json:"bid_id"`
	BidderID  uuid.UUID       `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	IsAutoBid bool            `json:"is_auto_bid"`
	BidTime   time.Time       `json:"bid_time"`
}

// BidOutbidEvent tells the previous winner they lost the lead.
type BidOutbidEvent struct {
	AuctionID    uuid.UUID       `json:"auction_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	BidderID     uuid.UUID       `json:"bidder_id"`
	OutbidAmount decimal.Decimal `json:"outbid_amount"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// AuctionEndedEvent is emitted when an auction closes, sold or not.
type AuctionEndedEvent struct {
	AuctionID  uuid.UUID       `json:"auction_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	SellerID   uuid.UUID       `json:"seller_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
	WinnerID   *uuid.UUID      `json:"winner_id,omitempty"`
	EndedAt    time.Time       `json:"ended_at"`
}

// AuctionWonEvent is emitted once per auction that closed with a winner.
type AuctionWonEvent struct {
	AuctionID    uuid.UUID       `json:"auction_id"`
	ProductID    uuid.UUID       `json:"product_id"`
	SellerID     uuid.UUID       `json:"seller_id"`
	WinnerID     uuid.UUID       `json:"winner_id"`
	WinningBidID uuid.UUID       `json:"winning_bid_id"`
	FinalPrice   decimal.Decimal `json:"final_price"`
	ViaBuyNow    bool            `json:"via_buy_now"`
}

// AuctionCanceledEvent is emitted when a seller withdraws a bid-free auction.
type AuctionCanceledEvent struct {
	AuctionID  uuid.UUID `json:"auction_id"`
	ProductID  uuid.UUID `json:"product_id"`
	SellerID   uuid.UUID `json:"seller_id"`
	CanceledAt time.Time `json:"canceled_at"`
}
