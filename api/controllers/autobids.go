package controllers

import (
	"net/http"

	"github.com/bidloop/bidloop-backend/api/responses"
	"github.com/bidloop/bidloop-backend/api/validators"
	autobidsvc "github.com/bidloop/bidloop-backend/internal/autobid"
	"github.com/bidloop/bidloop-backend/pkg/logger"
)

// RegisterAutoBid stores the caller's standing maximum for an auction,
// replacing any prior instruction.
func RegisterAutoBid(svc *autobidsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		var payload registerAutoBidRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		maxAmount, err := parseMoney(payload.MaxAmount, "max_amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		instruction, err := svc.Register(r.Context(), autobidsvc.RegisterInput{
			AuctionID: auctionID,
			BidderID:  bidderID,
			MaxAmount: maxAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, instruction)
	}
}

// CancelAutoBid deactivates the caller's instruction for an auction.
func CancelAutoBid(svc *autobidsvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		if err := svc.Cancel(r.Context(), auctionID, bidderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

type registerAutoBidRequest struct {
	MaxAmount string `json:"max_amount" validate:"required"`
}
