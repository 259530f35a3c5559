package autobid

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages auto-bid registrations. Registering a new instruction for
// a pair that already holds one replaces it rather than stacking ceilings.
type Service struct {
	repo     Repository
	auctions auction.Repository
	tx       txRunner
	locks    *auction.LockTable
}

// ServiceParams collects the registry dependencies.
type ServiceParams struct {
	Repo     Repository
	Auctions auction.Repository
	Tx       txRunner
	Locks    *auction.LockTable
}

// NewService builds the auto-bid registry service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("auto-bid repository required")
	}
	if params.Auctions == nil {
		return nil, fmt.Errorf("auction repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock table required")
	}
	return &Service{
		repo:     params.Repo,
		auctions: params.Auctions,
		tx:       params.Tx,
		locks:    params.Locks,
	}, nil
}

// RegisterInput carries a standing auto-bid instruction.
type RegisterInput struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	MaxAmount decimal.Decimal
}

// Register stores the bidder's ceiling for the auction, replacing any prior
// active instruction for the same pair.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.AutoBid, error) {
	if input.AuctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if input.BidderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder id required")
	}
	if !input.MaxAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max amount must be positive")
	}

	release := s.locks.Lock(input.AuctionID)
	defer release()

	var instruction *models.AutoBid
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.auctions.WithTx(tx).FindByIDForUpdate(ctx, input.AuctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
		}
		if loaded.Status != enums.AuctionStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "auction is not active").
				WithDetails(map[string]any{"status": loaded.Status.String()})
		}
		if input.BidderID == loaded.SellerID {
			return pkgerrors.New(pkgerrors.CodeValidation, "seller cannot auto-bid on own auction")
		}

		repo := s.repo.WithTx(tx)
		if err := repo.DeactivatePair(ctx, input.AuctionID, input.BidderID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace auto-bid instruction")
		}
		instruction = &models.AutoBid{
			AuctionID: input.AuctionID,
			BidderID:  input.BidderID,
			MaxAmount: input.MaxAmount,
			IsActive:  true,
		}
		if _, err := repo.Create(ctx, instruction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auto-bid instruction")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instruction, nil
}

// Cancel deactivates the bidder's active instruction for the auction.
func (s *Service) Cancel(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	if auctionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if bidderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bidder id required")
	}

	release := s.locks.Lock(auctionID)
	defer release()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		instruction, err := repo.FindActivePair(ctx, auctionID, bidderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "no active auto-bid for auction")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auto-bid instruction")
		}
		if err := repo.DeactivateByID(ctx, instruction.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate auto-bid instruction")
		}
		return nil
	})
}
