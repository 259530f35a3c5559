package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
)

// State transition helpers for the auction aggregate. Every mutation below
// validates first and only touches the model once validation passed, so a
// rejected operation leaves the aggregate untouched.

// Open moves a scheduled auction to active once its start time has passed.
func Open(a *models.Auction, now time.Time) error {
	if !a.Status.CanTransition(enums.AuctionStatusActive) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction cannot be opened in current state").
			WithDetails(map[string]any{"status": a.Status.String()})
	}
	if now.Before(a.StartTime) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction start time has not been reached")
	}
	a.Status = enums.AuctionStatusActive
	return nil
}

// MinimumBid returns the lowest acceptable bid amount. Every bid must clear
// the current price by at least the minimum increment; since the current
// price starts at the start price, the first bid pays the increment too.
func MinimumBid(a *models.Auction) decimal.Decimal {
	return a.CurrentPrice.Add(a.MinIncrement)
}

// ValidateBid checks whether bidderID may place amount right now. It never
// mutates the aggregate.
func ValidateBid(a *models.Auction, bidderID uuid.UUID, amount decimal.Decimal, now time.Time) error {
	if a.Status != enums.AuctionStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction is not active").
			WithDetails(map[string]any{"status": a.Status.String()})
	}
	if !now.Before(a.EndTime) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction has expired")
	}
	if bidderID == a.SellerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller cannot bid on own auction")
	}
	if minimum := MinimumBid(a); amount.LessThan(minimum) {
		return pkgerrors.New(pkgerrors.CodeValidation, "bid amount below minimum").
			WithDetails(map[string]any{"minimumBid": minimum.String()})
	}
	return nil
}

// ApplyBid records an accepted bid's effect on price and count. The winning
// bid reference is set separately once the bid row exists.
func ApplyBid(a *models.Auction, amount decimal.Decimal) {
	a.CurrentPrice = amount
	a.BidCount++
}

// SetWinner points the aggregate at its current winning bid.
func SetWinner(a *models.Auction, bidderID, bidID uuid.UUID) {
	winner := bidderID
	winning := bidID
	a.WinnerID = &winner
	a.WinningBidID = &winning
}

// ValidateBuyNow checks whether buyerID may settle at the buy-now price.
func ValidateBuyNow(a *models.Auction, buyerID uuid.UUID, now time.Time) error {
	if a.Status != enums.AuctionStatusActive {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction is not active").
			WithDetails(map[string]any{"status": a.Status.String()})
	}
	if !now.Before(a.EndTime) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction has expired")
	}
	if a.BuyNowPrice == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction has no buy-now price")
	}
	if buyerID == a.SellerID {
		return pkgerrors.New(pkgerrors.CodeValidation, "seller cannot buy own auction")
	}
	if a.BidCount > 0 && !a.CurrentPrice.LessThan(*a.BuyNowPrice) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "bidding has passed the buy-now price")
	}
	return nil
}

// ApplyBuyNow settles the auction immediately at the buy-now price.
func ApplyBuyNow(a *models.Auction) decimal.Decimal {
	amount := *a.BuyNowPrice
	a.CurrentPrice = amount
	a.BidCount++
	a.Status = enums.AuctionStatusEnded
	return amount
}

// End closes an active auction. The winner, if any, is already recorded on
// the aggregate.
func End(a *models.Auction) error {
	if !a.Status.CanTransition(enums.AuctionStatusEnded) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction cannot be ended in current state").
			WithDetails(map[string]any{"status": a.Status.String()})
	}
	a.Status = enums.AuctionStatusEnded
	return nil
}

// Cancel withdraws an auction. Active auctions can only be canceled while no
// bids have been placed.
func Cancel(a *models.Auction) error {
	if !a.Status.CanTransition(enums.AuctionStatusCanceled) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction cannot be canceled in current state").
			WithDetails(map[string]any{"status": a.Status.String()})
	}
	if a.Status == enums.AuctionStatusActive && a.BidCount > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "auction with bids cannot be canceled")
	}
	a.Status = enums.AuctionStatusCanceled
	return nil
}
