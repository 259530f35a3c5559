package controllers

import (
	"net/http"
	"strings"

	"github.com/bidloop/bidloop-backend/api/responses"
	"github.com/bidloop/bidloop-backend/api/validators"
	biddingsvc "github.com/bidloop/bidloop-backend/internal/bidding"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/pagination"
)

// PlaceBid handles manual bids on an auction.
func PlaceBid(svc *biddingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidderID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		auctionID, err := parseAuctionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload placeBidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		amount, err := parseMoney(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.PlaceBid(r.Context(), biddingsvc.PlaceBidInput{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

// ListBids returns an auction's bid ledger ordered by amount or recency.
func ListBids(svc *biddingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := parseAuctionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderBy := biddingsvc.BidOrderAmount
		if raw := strings.TrimSpace(r.URL.Query().Get("orderBy")); raw != "" {
			switch biddingsvc.BidOrder(raw) {
			case biddingsvc.BidOrderAmount, biddingsvc.BidOrderTime:
				orderBy = biddingsvc.BidOrder(raw)
			default:
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "orderBy must be amount or time"))
				return
			}
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bids, err := svc.ListBids(r.Context(), auctionID, orderBy, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]any{"bids": bids})
	}
}

// BuyNow closes the auction at its buy-now price for the caller.
func BuyNow(svc *biddingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		auctionID, err := parseAuctionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bid, err := svc.BuyNow(r.Context(), auctionID, buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, bid)
	}
}

type placeBidRequest struct {
	Amount string `json:"amount" validate:"required"`
}
