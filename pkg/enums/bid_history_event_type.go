package enums

import "fmt"

// BidHistoryEventType labels entries in the append-only bid audit trail.
type BidHistoryEventType string

const (
	BidHistoryBidPlaced  BidHistoryEventType = "bid_placed"
	BidHistoryBidOutbid  BidHistoryEventType = "bid_outbid"
	BidHistoryAuctionWon BidHistoryEventType = "auction_won"
)

var validBidHistoryEventTypes = []BidHistoryEventType{
	BidHistoryBidPlaced,
	BidHistoryBidOutbid,
	BidHistoryAuctionWon,
}

// IsValid reports whether the value is a known BidHistoryEventType.
func (e BidHistoryEventType) IsValid() bool {
	for _, candidate := range validBidHistoryEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseBidHistoryEventType converts raw input into a BidHistoryEventType.
func ParseBidHistoryEventType(value string) (BidHistoryEventType, error) {
	for _, candidate := range validBidHistoryEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid bid history event type %q", value)
}
