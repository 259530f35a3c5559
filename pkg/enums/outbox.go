package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateAuction OutboxAggregateType = "auction"
	AggregateBid     OutboxAggregateType = "bid"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateAuction,
	AggregateBid,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAuctionCreated  OutboxEventType = "auction_created"
	EventBidPlaced       OutboxEventType = "bid_placed"
	EventBidOutbid       OutboxEventType = "bid_outbid"
	EventAuctionEnded    OutboxEventType = "auction_ended"
	EventAuctionWon      OutboxEventType = "auction_won"
	EventAuctionCanceled OutboxEventType = "auction_canceled"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAuctionCreated,
	EventBidPlaced,
	EventBidOutbid,
	EventAuctionEnded,
	EventAuctionWon,
	EventAuctionCanceled,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
