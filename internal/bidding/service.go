package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
	"github.com/bidloop/bidloop-backend/pkg/logger"
	"github.com/bidloop/bidloop-backend/pkg/metrics"
	"github.com/bidloop/bidloop-backend/pkg/outbox"
	"github.com/bidloop/bidloop-backend/pkg/outbox/payloads"
)

// sweepBatchSize caps how many auctions one close sweep touches.
const sweepBatchSize = 100

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the bidding coordinator. It owns the bid acceptance pipeline:
// validate, record, demote the previous winner, run the auto-bid cascade,
// and queue notification events. It also closes expired auctions, since
// winner resolution lives here.
type Service struct {
	auctions        auction.Repository
	bids            Repository
	users           userDirectory
	products        productGate
	tx              txRunner
	outbox          outboxPublisher
	reactor         AutoBidReactor
	locks           *auction.LockTable
	metrics         *metrics.BiddingMetrics
	logg            *logger.Logger
	maxCascadeDepth int
}

// ServiceParams collects the coordinator dependencies.
type ServiceParams struct {
	Auctions        auction.Repository
	Bids            Repository
	Users           userDirectory
	Products        productGate
	Tx              txRunner
	Outbox          outboxPublisher
	Reactor         AutoBidReactor
	Locks           *auction.LockTable
	Metrics         *metrics.BiddingMetrics
	Logger          *logger.Logger
	MaxCascadeDepth int
}

// NewService builds the bidding coordinator with the required dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Auctions == nil {
		return nil, fmt.Errorf("auction repository required")
	}
	if params.Bids == nil {
		return nil, fmt.Errorf("bid repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user directory required")
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
	if params.Reactor == nil {
		return nil, fmt.Errorf("auto-bid reactor required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock table required")
	}
	if params.MaxCascadeDepth <= 0 {
		return nil, fmt.Errorf("max cascade depth must be positive")
	}
	return &Service{
		auctions:        params.Auctions,
		bids:            params.Bids,
		users:           params.Users,
		products:        params.Products,
		tx:              params.Tx,
		outbox:          params.Outbox,
		reactor:         params.Reactor,
		locks:           params.Locks,
		metrics:         params.Metrics,
		logg:            params.Logger,
		maxCascadeDepth: params.MaxCascadeDepth,
	}, nil
}

// PlaceBidInput carries a manual bid submission.
type PlaceBidInput struct {
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
}

// PlaceBid accepts a manual bid and runs the auto-bid cascade it may
// trigger. The whole exchange happens inside the auction's critical
// section; each hop commits in its own transaction, so a committed bid is
// never rolled back by a later reaction failure.
func (s *Service) PlaceBid(ctx context.Context, input PlaceBidInput) (*models.Bid, error) {
	if input.AuctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if input.BidderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bidder id required")
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive")
	}

	release := s.locks.Lock(input.AuctionID)
	defer release()

	var bid *models.Bid
	var outbid *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.loadForBidding(ctx, tx, input.AuctionID)
		if err != nil {
			return err
		}
		bid, outbid, err = s.acceptBid(ctx, tx, loaded, input.BidderID, input.Amount, false, time.Now())
		return err
	})
	if err != nil {
		s.metrics.IncRejected(string(pkgerrors.As(err).Code()))
		return nil, err
	}
	s.metrics.IncAccepted(metrics.BidSourceManual)

	depth := s.cascade(ctx, input.AuctionID, outbid)
	s.metrics.ObserveCascadeDepth(depth)
	return bid, nil
}

// BuyNow settles the auction immediately at its buy-now price. The auction
// ends on the spot and no auto-bid reaction runs.
func (s *Service) BuyNow(ctx context.Context, auctionID, buyerID uuid.UUID) (*models.Bid, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}

	release := s.locks.Lock(auctionID)
	defer release()

	now := time.Now()
	var bid *models.Bid
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		auctions := s.auctions.WithTx(tx)
		bids := s.bids.WithTx(tx)

		loaded, err := auctions.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
		}
		if err := auction.ValidateBuyNow(loaded, buyerID, now); err != nil {
			return err
		}

		name, err := s.users.DisplayName(ctx, buyerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve bidder name")
		}

		prev, err := bids.FindWinningBid(ctx, auctionID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load winning bid")
		}

		amount := auction.ApplyBuyNow(loaded)
		bid = &models.Bid{
			AuctionID:  auctionID,
			BidderID:   buyerID,
			BidderName: name,
			Amount:     amount,
			BidTime:    now,
			IsWinning:  true,
		}
		if _, err := bids.CreateBid(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}
		if prev != nil {
			if err := bids.DemoteBid(ctx, prev.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote winning bid")
			}
		}
		auction.SetWinner(loaded, buyerID, bid.ID)
		if err := auctions.Save(ctx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction")
		}
		if err := s.products.MarkSold(ctx, tx, loaded.ProductID); err != nil {
			return err
		}

		for _, entry := range []models.BidHistory{
			{AuctionID: auctionID, BidderID: buyerID, Amount: amount, EventType: enums.BidHistoryBidPlaced},
			{AuctionID: auctionID, BidderID: buyerID, Amount: amount, EventType: enums.BidHistoryAuctionWon},
		} {
			entry := entry
			if err := bids.AppendHistory(ctx, &entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append bid history")
			}
		}

		actor := &outbox.ActorRef{UserID: buyerID, Role: "bidder"}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBidPlaced,
			AggregateType: enums.AggregateBid,
			AggregateID:   bid.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.BidPlacedEvent{
				AuctionID: auctionID,
				ProductID: loaded.ProductID,
				BidID:     bid.ID,
				BidderID:  buyerID,
				Amount:    amount,
				BidTime:   now,
			},
		}); err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionWon,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auctionID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AuctionWonEvent{
				AuctionID:    auctionID,
				ProductID:    loaded.ProductID,
				SellerID:     loaded.SellerID,
				WinnerID:     buyerID,
				WinningBidID: bid.ID,
				FinalPrice:   amount,
				ViaBuyNow:    true,
			},
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionEnded,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auctionID,
			Version:       1,
			Actor:         actor,
			Data: payloads.AuctionEndedEvent{
				AuctionID:  auctionID,
				ProductID:  loaded.ProductID,
				SellerID:   loaded.SellerID,
				FinalPrice: amount,
				WinnerID:   loaded.WinnerID,
				EndedAt:    now,
			},
		})
	})
	if err != nil {
		s.metrics.IncRejected(string(pkgerrors.As(err).Code()))
		return nil, err
	}
	s.metrics.IncAccepted(metrics.BidSourceBuyNow)
	return bid, nil
}

// ListBids returns the auction's bids in the requested order.
func (s *Service) ListBids(ctx context.Context, auctionID uuid.UUID, orderBy BidOrder, limit int) ([]models.Bid, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if _, err := s.auctions.FindByID(ctx, auctionID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
	}
	bids, err := s.bids.ListBids(ctx, auctionID, orderBy, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return bids, nil
}

// CloseExpiredAuctions ends active auctions whose end time has passed,
// resolving the winner from the ledger. Failures are collected per auction
// and re-running is a no-op for auctions already closed.
func (s *Service) CloseExpiredAuctions(ctx context.Context, now time.Time) (int, error) {
	due, err := s.auctions.FindDueToClose(ctx, now, sweepBatchSize)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired auctions")
	}

	closed := 0
	var errs error
	for _, candidate := range due {
		if err := s.closeOne(ctx, candidate.ID, now); err != nil {
			if s.logg != nil {
				s.logg.Error(s.logg.WithAuctionID(ctx, candidate.ID.String()), "close auction failed", err)
			}
			errs = multierr.Append(errs, fmt.Errorf("auction %s: %w", candidate.ID, err))
			continue
		}
		closed++
	}
	return closed, errs
}

func (s *Service) closeOne(ctx context.Context, auctionID uuid.UUID, now time.Time) error {
	release := s.locks.Lock(auctionID)
	defer release()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		auctions := s.auctions.WithTx(tx)
		bids := s.bids.WithTx(tx)

		loaded, err := auctions.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			return err
		}
		// A concurrent buy-now or cancel may have settled it already.
		if loaded.Status != enums.AuctionStatusActive || now.Before(loaded.EndTime) {
			return nil
		}
		if err := auction.End(loaded); err != nil {
			return err
		}
		if err := auctions.Save(ctx, loaded); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction")
		}

		if loaded.WinnerID != nil && loaded.WinningBidID != nil {
			if err := s.products.MarkSold(ctx, tx, loaded.ProductID); err != nil {
				return err
			}
			entry := models.BidHistory{
				AuctionID: auctionID,
				BidderID:  *loaded.WinnerID,
				Amount:    loaded.CurrentPrice,
				EventType: enums.BidHistoryAuctionWon,
			}
			if err := bids.AppendHistory(ctx, &entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append bid history")
			}
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAuctionWon,
				AggregateType: enums.AggregateAuction,
				AggregateID:   auctionID,
				Version:       1,
				Data: payloads.AuctionWonEvent{
					AuctionID:    auctionID,
					ProductID:    loaded.ProductID,
					SellerID:     loaded.SellerID,
					WinnerID:     *loaded.WinnerID,
					WinningBidID: *loaded.WinningBidID,
					FinalPrice:   loaded.CurrentPrice,
				},
			}); err != nil {
				return err
			}
		} else {
			if err := s.products.MarkAvailable(ctx, tx, loaded.ProductID); err != nil {
				return err
			}
		}

		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionEnded,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auctionID,
			Version:       1,
			Data: payloads.AuctionEndedEvent{
				AuctionID:  auctionID,
				ProductID:  loaded.ProductID,
				SellerID:   loaded.SellerID,
				FinalPrice: loaded.CurrentPrice,
				WinnerID:   loaded.WinnerID,
				EndedAt:    now,
			},
		})
	})
}

func (s *Service) loadForBidding(ctx context.Context, tx *gorm.DB, auctionID uuid.UUID) (*models.Auction, error) {
	loaded, err := s.auctions.WithTx(tx).FindByIDForUpdate(ctx, auctionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "auction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auction")
	}
	return loaded, nil
}

// acceptBid runs the full acceptance pipeline for one bid inside tx:
// validate, insert, demote the previous winner, append history, and queue
// events. It returns the bidder who lost the lead, if any.
func (s *Service) acceptBid(ctx context.Context, tx *gorm.DB, loaded *models.Auction, bidderID uuid.UUID, amount decimal.Decimal, isAutoBid bool, now time.Time) (*models.Bid, *uuid.UUID, error) {
	if err := auction.ValidateBid(loaded, bidderID, amount, now); err != nil {
		return nil, nil, err
	}

	name, err := s.users.DisplayName(ctx, bidderID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve bidder name")
	}

	auctions := s.auctions.WithTx(tx)
	bids := s.bids.WithTx(tx)

	prev, err := bids.FindWinningBid(ctx, loaded.ID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load winning bid")
	}

	bid := &models.Bid{
		AuctionID:  loaded.ID,
		BidderID:   bidderID,
		BidderName: name,
		Amount:     amount,
		BidTime:    now,
		IsWinning:  true,
		IsAutoBid:  isAutoBid,
	}
	if _, err := bids.CreateBid(ctx, bid); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
	}

	var outbid *uuid.UUID
	if prev != nil {
		if err := bids.DemoteBid(ctx, prev.ID); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "demote winning bid")
		}
		if prev.BidderID != bidderID {
			demoted := prev.BidderID
			outbid = &demoted
			entry := models.BidHistory{
				AuctionID: loaded.ID,
				BidderID:  prev.BidderID,
				Amount:    prev.Amount,
				EventType: enums.BidHistoryBidOutbid,
			}
			if err := bids.AppendHistory(ctx, &entry); err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append bid history")
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventBidOutbid,
				AggregateType: enums.AggregateBid,
				AggregateID:   prev.ID,
				Version:       1,
				Data: payloads.BidOutbidEvent{
					AuctionID:    loaded.ID,
					ProductID:    loaded.ProductID,
					BidderID:     prev.BidderID,
					OutbidAmount: prev.Amount,
					CurrentPrice: amount,
				},
			}); err != nil {
				return nil, nil, err
			}
		}
	}

	auction.ApplyBid(loaded, amount)
	auction.SetWinner(loaded, bidderID, bid.ID)
	if err := auctions.Save(ctx, loaded); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update auction")
	}

	entry := models.BidHistory{
		AuctionID: loaded.ID,
		BidderID:  bidderID,
		Amount:    amount,
		EventType: enums.BidHistoryBidPlaced,
	}
	if err := bids.AppendHistory(ctx, &entry); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append bid history")
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBidPlaced,
		AggregateType: enums.AggregateBid,
		AggregateID:   bid.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: bidderID, Role: "bidder"},
		Data: payloads.BidPlacedEvent{
			AuctionID: loaded.ID,
			ProductID: loaded.ProductID,
			BidID:     bid.ID,
			BidderID:  bidderID,
			Amount:    amount,
			IsAutoBid: isAutoBid,
			BidTime:   now,
		},
	}); err != nil {
		return nil, nil, err
	}
	return bid, outbid, nil
}

// cascade places auto-bid follow-ups while the auction's lock is still held.
// Each hop commits in its own transaction. The loop is bounded by the
// configured depth on top of the natural bound from strictly increasing
// prices and finite ceilings.
func (s *Service) cascade(ctx context.Context, auctionID uuid.UUID, outbid *uuid.UUID) int {
	depth := 0
	for outbid != nil && depth < s.maxCascadeDepth {
		target := *outbid
		var next *uuid.UUID
		reacted := false

		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			loaded, err := s.loadForBidding(ctx, tx, auctionID)
			if err != nil {
				return err
			}
			if loaded.Status != enums.AuctionStatusActive {
				return nil
			}
			reaction, err := s.reactor.React(ctx, tx, loaded, target)
			if err != nil {
				return err
			}
			if reaction == nil {
				return nil
			}
			_, demoted, err := s.acceptBid(ctx, tx, loaded, reaction.BidderID, reaction.Amount, true, time.Now())
			if err != nil {
				return err
			}
			next = demoted
			reacted = true
			return nil
		})
		if err != nil {
			// Committed hops stand; the failed reaction is dropped.
			if s.logg != nil {
				s.logg.Error(s.logg.WithAuctionID(ctx, auctionID.String()), "auto-bid reaction failed", err)
			}
			break
		}
		if !reacted {
			break
		}
		s.metrics.IncAccepted(metrics.BidSourceAuto)
		depth++
		outbid = next
	}
	return depth
}
