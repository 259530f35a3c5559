package enums

import "fmt"

// AuctionStatus tracks the lifecycle of an auction.
type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "scheduled"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCanceled  AuctionStatus = "canceled"
)

var validAuctionStatuses = []AuctionStatus{
	AuctionStatusScheduled,
	AuctionStatusActive,
	AuctionStatusEnded,
	AuctionStatusCanceled,
}

// auctionTransitions is the allow-list of legal status moves. Anything not
// listed here is rejected, so illegal transitions are a fixed set rather
// than an artifact of declaration order.
var auctionTransitions = map[AuctionStatus][]AuctionStatus{
	AuctionStatusScheduled: {AuctionStatusActive, AuctionStatusCanceled},
	AuctionStatusActive:    {AuctionStatusEnded, AuctionStatusCanceled},
	AuctionStatusEnded:     {},
	AuctionStatusCanceled:  {},
}

// String implements fmt.Stringer.
func (s AuctionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known AuctionStatus.
func (s AuctionStatus) IsValid() bool {
	for _, candidate := range validAuctionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s AuctionStatus) IsTerminal() bool {
	targets, ok := auctionTransitions[s]
	return ok && len(targets) == 0
}

// CanTransition reports whether moving from s to target is legal.
func (s AuctionStatus) CanTransition(target AuctionStatus) bool {
	for _, candidate := range auctionTransitions[s] {
		if candidate == target {
			return true
		}
	}
	return false
}

// ParseAuctionStatus converts raw input into an AuctionStatus.
func ParseAuctionStatus(value string) (AuctionStatus, error) {
	for _, candidate := range validAuctionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auction status %q", value)
}
