package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bidloop/bidloop-backend/api/middleware"
	"github.com/bidloop/bidloop-backend/api/responses"
	"github.com/bidloop/bidloop-backend/api/validators"
	auctionsvc "github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/pagination"
)

// CreateAuction handles new auction listings.
func CreateAuction(svc *auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload createAuctionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toCreateInput(sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, auction)
	}
}

// GetAuction returns a single auction and bumps its view counter.
func GetAuction(svc *auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auctionID, err := parseAuctionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auction, err := svc.Get(r.Context(), auctionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, auction)
	}
}

// ListAuctions returns a filtered, cursor-paginated auction page.
func ListAuctions(svc *auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := listParamsFromQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		auctions, next, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, listAuctionsResponse{
			Auctions:   auctions,
			NextCursor: next,
		})
	}
}

// CancelAuction withdraws a bid-free auction. Seller only.
func CancelAuction(svc *auctionsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		auctionID, err := parseAuctionID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), auctionID, actorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

type createAuctionRequest struct {
	ProductID    string  `json:"product_id" validate:"required,uuid4"`
	StartPrice   string  `json:"start_price" validate:"required"`
	BuyNowPrice  *string `json:"buy_now_price,omitempty"`
	MinIncrement *string `json:"min_increment,omitempty"`
	StartTime    string  `json:"start_time" validate:"required"`
	EndTime      string  `json:"end_time" validate:"required"`
}

type listAuctionsResponse struct {
	Auctions   interface{} `json:"auctions"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

func (req createAuctionRequest) toCreateInput(sellerID uuid.UUID) (auctionsvc.CreateInput, error) {
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return auctionsvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
	}

	startPrice, err := parseMoney(req.StartPrice, "start_price")
	if err != nil {
		return auctionsvc.CreateInput{}, err
	}

	var buyNowPrice *decimal.Decimal
	if req.BuyNowPrice != nil {
		parsed, err := parseMoney(*req.BuyNowPrice, "buy_now_price")
		if err != nil {
			return auctionsvc.CreateInput{}, err
		}
		buyNowPrice = &parsed
	}

	var minIncrement *decimal.Decimal
	if req.MinIncrement != nil {
		parsed, err := parseMoney(*req.MinIncrement, "min_increment")
		if err != nil {
			return auctionsvc.CreateInput{}, err
		}
		minIncrement = &parsed
	}

	startTime, err := parseTimestamp(req.StartTime, "start_time")
	if err != nil {
		return auctionsvc.CreateInput{}, err
	}
	endTime, err := parseTimestamp(req.EndTime, "end_time")
	if err != nil {
		return auctionsvc.CreateInput{}, err
	}

	return auctionsvc.CreateInput{
		SellerID:     sellerID,
		ProductID:    productID,
		StartPrice:   startPrice,
		BuyNowPrice:  buyNowPrice,
		MinIncrement: minIncrement,
		StartTime:    startTime,
		EndTime:      endTime,
	}, nil
}

func listParamsFromQuery(r *http.Request) (auctionsvc.ListParams, error) {
	params := auctionsvc.ListParams{
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, err := enums.ParseAuctionStatus(raw)
		if err != nil {
			return auctionsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		params.Status = &status
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("seller_id")); raw != "" {
		sellerID, err := uuid.Parse(raw)
		if err != nil {
			return auctionsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seller id filter")
		}
		params.SellerID = &sellerID
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("winner_id")); raw != "" {
		winnerID, err := uuid.Parse(raw)
		if err != nil {
			return auctionsvc.ListParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid winner id filter")
		}
		params.WinnerID = &winnerID
	}

	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return auctionsvc.ListParams{}, err
	}
	params.Limit = limit

	return params, nil
}

func parseAuctionID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "auctionId")
	auctionID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid auction id")
	}
	return auctionID, nil
}

func parseMoney(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount").
			WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

func parseTimestamp(raw, field string) (time.Time, error) {
	value, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid timestamp").
			WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == uuid.Nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "user identity required"))
		return uuid.Nil, false
	}
	return userID, true
}
