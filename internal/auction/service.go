package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/config"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/outbox"
	"github.com/bidloop/bidloop-backend/pkg/outbox/payloads"
)

// sweepBatchSize caps how many auctions one lifecycle sweep touches.
const sweepBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// productGate is the slice of the products service the auction flows need.
type productGate interface {
	EnsureSellable(ctx context.Context, tx *gorm.DB, productID, sellerID uuid.UUID) error
	MarkAuctioned(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
	MarkAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error
}

// Service owns auction listing lifecycle: create, read, cancel, and the
// open-due sweep. Closing auctions lives with the bidding coordinator, which
// also owns winner resolution.
type Service struct {
	repo         Repository
	products     productGate
	tx           txRunner
	outbox       outboxPublisher
	locks        *LockTable
	logg         *logger.Logger
	minIncrement decimal.Decimal
}

// ServiceParams collects the service dependencies.
type ServiceParams struct {
	Repo     Repository
	Products productGate
	Tx       txRunner
	Outbox   outboxPublisher
	Locks    *LockTable
	Logger   *logger.Logger
	Config   config.AuctionConfig
}

// NewService builds an auction service with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("auction repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("products gate required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock table required")
	}
	minIncrement, err := decimal.NewFromString(params.Config.DefaultMinIncrement)
	if err != nil || !minIncrement.IsPositive() {
		return nil, fmt.Errorf("invalid default min increment %q", params.Config.DefaultMinIncrement)
	}
	return &Service{
		repo:         params.Repo,
		products:     params.Products,
		tx:           params.Tx,
		outbox:       params.Outbox,
		locks:        params.Locks,
		logg:         params.Logger,
		minIncrement: minIncrement,
	}, nil
}

// CreateInput carries the fields required to list an auction.
type CreateInput struct {
	SellerID     uuid.UUID
	ProductID    uuid.UUID
	StartPrice   decimal.Decimal
	BuyNowPrice  *decimal.Decimal
	MinIncrement *decimal.Decimal
	StartTime    time.Time
	EndTime      time.Time
}

// Create validates and persists a new auction. Auctions whose start time has
// already passed open immediately instead of waiting for the next sweep.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Auction, error) {
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if !input.StartPrice.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start price must be positive")
	}
	if input.BuyNowPrice != nil && !input.BuyNowPrice.GreaterThan(input.StartPrice) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buy-now price must exceed start price")
	}
	minIncrement := s.minIncrement
	if input.MinIncrement != nil {
		if !input.MinIncrement.IsPositive() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "min increment must be positive")
		}
		minIncrement = *input.MinIncrement
	}
	now := time.Now()
	if !input.EndTime.After(input.StartTime) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be after start time")
	}
	if !input.EndTime.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end time must be in the future")
	}

	auction := &models.Auction{
		ProductID:    input.ProductID,
		SellerID:     input.SellerID,
		StartPrice:   input.StartPrice,
		CurrentPrice: input.StartPrice,
		BuyNowPrice:  input.BuyNowPrice,
		MinIncrement: minIncrement,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Status:       enums.AuctionStatusScheduled,
	}
	if !now.Before(input.StartTime) {
		if err := Open(auction, now); err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.products.EnsureSellable(ctx, tx, input.ProductID, input.SellerID); err != nil {
			return err
		}
		if _, err := s.repo.WithTx(tx).Create(ctx, auction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction")
		}
		if err := s.products.MarkAuctioned(ctx, tx, input.ProductID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionCreated,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.SellerID, Role: "seller"},
			Data: payloads.AuctionCreatedEvent{
				AuctionID:  auction.ID,
				ProductID:  auction.ProductID,
				SellerID:   auction.SellerID,
				StartPrice: auction.StartPrice,
				StartTime:  auction.StartTime,
				EndTime:    auction.EndTime,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return auction, nil
}

// Get loads an auction and counts the view.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	auction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
	}
	if err := s.repo.IncrementViewCount(ctx, id); err == nil {
		auction.ViewCount++
	}
	return auction, nil
}

// List returns a filtered page of auctions.
func (s *Service) List(ctx context.Context, params ListParams) ([]models.Auction, string, error) {
	auctions, next, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list auctions")
	}
	return auctions, next, nil
}

// Cancel withdraws the auction on behalf of its seller.
func (s *Service) Cancel(ctx context.Context, auctionID, actorID uuid.UUID) error {
	if auctionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if actorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "user identity missing")
	}

	release := s.locks.Lock(auctionID)
	defer release()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auction, err := repo.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
		}
		if auction.SellerID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "auction does not belong to seller")
		}
		if err := Cancel(auction); err != nil {
			return err
		}
		if err := repo.Save(ctx, auction); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction status")
		}
		if err := s.products.MarkAvailable(ctx, tx, auction.ProductID); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionCanceled,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: "seller"},
			Data: payloads.AuctionCanceledEvent{
				AuctionID:  auction.ID,
				ProductID:  auction.ProductID,
				SellerID:   auction.SellerID,
				CanceledAt: time.Now(),
			},
		})
	})
}

// OpenDueAuctions activates scheduled auctions whose start time has passed.
// Failures are collected per auction so one bad row cannot stall the sweep;
// re-running is a no-op for auctions already opened.
func (s *Service) OpenDueAuctions(ctx context.Context, now time.Time) (int, error) {
	due, err := s.repo.FindDueToOpen(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find due auctions")
	}

	opened := 0
	var errs error
	for _, candidate := range due {
		if err := s.openOne(ctx, candidate.ID, now); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithAuctionID(ctx, candidate.ID.String()), "open auction failed", err)
			}
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", candidate.ID, err))
			continue
		}
		opened++
	}
	return opened, errs
}

func (s *Service) openOne(ctx context.Context, auctionID uuid.UUID, now time.Time) error {
	release := s.locks.Lock(auctionID)
	defer release()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auction, err := repo.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		// Another instance may have opened or canceled it since the scan.
		if auction.Status != enums.AuctionStatusScheduled || now.Before(auction.StartTime) {
			return nil
		}
		if err := Open(auction, now); err != nil {
			return err
		}
		return repo.Save(ctx, auction)
	})
}
