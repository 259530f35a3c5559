package autobid

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
)

type stubAutoBidRepo struct {
	instructions map[uuid.UUID]*models.AutoBid
}

func newStubAutoBidRepo() *stubAutoBidRepo {
	return &stubAutoBidRepo{instructions: make(map[uuid.UUID]*models.AutoBid)}
}

func (s *stubAutoBidRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAutoBidRepo) Create(ctx context.Context, instruction *models.AutoBid) (*models.AutoBid, error) {
	if instruction.ID == uuid.Nil {
		instruction.ID = uuid.New()
	}
	copied := *instruction
	s.instructions[instruction.ID] = &copied
	return instruction, nil
}

func (s *stubAutoBidRepo) FindActivePair(ctx context.Context, auctionID, bidderID uuid.UUID) (*models.AutoBid, error) {
	for _, instruction := range s.instructions {
		if instruction.AuctionID == auctionID && instruction.BidderID == bidderID && instruction.IsActive {
			copied := *instruction
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubAutoBidRepo) DeactivateByID(ctx context.Context, id uuid.UUID) error {
	if instruction, ok := s.instructions[id]; ok {
		instruction.IsActive = false
	}
	return nil
}

func (s *stubAutoBidRepo) DeactivatePair(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	for _, instruction := range s.instructions {
		if instruction.AuctionID == auctionID && instruction.BidderID == bidderID {
			instruction.IsActive = false
		}
	}
	return nil
}

func (s *stubAutoBidRepo) ListActiveByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AutoBid, error) {
	var out []models.AutoBid
	for _, instruction := range s.instructions {
		if instruction.AuctionID == auctionID && instruction.IsActive {
			out = append(out, *instruction)
		}
	}
	return out, nil
}

func (s *stubAutoBidRepo) activeCount(auctionID, bidderID uuid.UUID) int {
	count := 0
	for _, instruction := range s.instructions {
		if instruction.AuctionID == auctionID && instruction.BidderID == bidderID && instruction.IsActive {
			count++
		}
	}
	return count
}

type stubAuctionRepo struct {
	auction *models.Auction
}

func (s *stubAuctionRepo) WithTx(tx *gorm.DB) auction.Repository { return s }

func (s *stubAuctionRepo) Create(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	return a, nil
}

func (s *stubAuctionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	if s.auction == nil || s.auction.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *s.auction
	return &copied, nil
}

func (s *stubAuctionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return s.FindByID(ctx, id)
}

func (s *stubAuctionRepo) Save(ctx context.Context, a *models.Auction) error { return nil }

func (s *stubAuctionRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubAuctionRepo) List(ctx context.Context, params auction.ListParams) ([]models.Auction, string, error) {
	return nil, "", nil
}

func (s *stubAuctionRepo) FindDueToOpen(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (s *stubAuctionRepo) FindDueToClose(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func activeTestAuction() *models.Auction {
	now := time.Now()
	return &models.Auction{
		ID:           uuid.New(),
		ProductID:    uuid.New(),
		SellerID:     uuid.New(),
		StartPrice:   decimal.NewFromInt(100),
		CurrentPrice: decimal.NewFromInt(100),
		MinIncrement: decimal.NewFromInt(10),
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Status:       enums.AuctionStatusActive,
	}
}

func newRegistry(t *testing.T, a *models.Auction) (*Service, *stubAutoBidRepo) {
	t.Helper()
	repo := newStubAutoBidRepo()
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Auctions: &stubAuctionRepo{auction: a},
		Tx:       stubTxRunner{},
		Locks:    auction.NewLockTable(),
	})
	require.NoError(t, err)
	return svc, repo
}

func TestRegisterReplacesPriorInstruction(t *testing.T) {
	a := activeTestAuction()
	svc, repo := newRegistry(t, a)
	bidder := uuid.New()

	first, err := svc.Register(context.Background(), RegisterInput{
		AuctionID: a.ID,
		BidderID:  bidder,
		MaxAmount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	second, err := svc.Register(context.Background(), RegisterInput{
		AuctionID: a.ID,
		BidderID:  bidder,
		MaxAmount: decimal.NewFromInt(800),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, 1, repo.activeCount(a.ID, bidder), "replace, never accumulate")
	active, err := repo.FindActivePair(context.Background(), a.ID, bidder)
	require.NoError(t, err)
	assert.True(t, active.MaxAmount.Equal(decimal.NewFromInt(800)))
}

func TestRegisterRejections(t *testing.T) {
	t.Run("auction not active", func(t *testing.T) {
		a := activeTestAuction()
		a.Status = enums.AuctionStatusScheduled
		svc, _ := newRegistry(t, a)
		_, err := svc.Register(context.Background(), RegisterInput{
			AuctionID: a.ID,
			BidderID:  uuid.New(),
			MaxAmount: decimal.NewFromInt(500),
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	})

	t.Run("seller self-registration", func(t *testing.T) {
		a := activeTestAuction()
		svc, _ := newRegistry(t, a)
		_, err := svc.Register(context.Background(), RegisterInput{
			AuctionID: a.ID,
			BidderID:  a.SellerID,
			MaxAmount: decimal.NewFromInt(500),
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})

	t.Run("unknown auction", func(t *testing.T) {
		svc, _ := newRegistry(t, activeTestAuction())
		_, err := svc.Register(context.Background(), RegisterInput{
			AuctionID: uuid.New(),
			BidderID:  uuid.New(),
			MaxAmount: decimal.NewFromInt(500),
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	})

	t.Run("non-positive ceiling", func(t *testing.T) {
		a := activeTestAuction()
		svc, _ := newRegistry(t, a)
		_, err := svc.Register(context.Background(), RegisterInput{
			AuctionID: a.ID,
			BidderID:  uuid.New(),
			MaxAmount: decimal.Zero,
		})
		require.Error(t, err)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	})
}

func TestCancelInstruction(t *testing.T) {
	a := activeTestAuction()
	svc, repo := newRegistry(t, a)
	bidder := uuid.New()

	_, err := svc.Register(context.Background(), RegisterInput{
		AuctionID: a.ID,
		BidderID:  bidder,
		MaxAmount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), a.ID, bidder))
	assert.Equal(t, 0, repo.activeCount(a.ID, bidder))

	err = svc.Cancel(context.Background(), a.ID, bidder)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestReactorProposesNextBid(t *testing.T) {
	a := activeTestAuction()
	a.BidCount = 2
	a.CurrentPrice = decimal.NewFromInt(200)
	repo := newStubAutoBidRepo()
	reactor := NewReactor(repo)
	bidder := uuid.New()

	repo.Create(context.Background(), &models.AutoBid{
		AuctionID: a.ID,
		BidderID:  bidder,
		MaxAmount: decimal.NewFromInt(300),
		IsActive:  true,
	})

	reaction, err := reactor.React(context.Background(), nil, a, bidder)
	require.NoError(t, err)
	require.NotNil(t, reaction)
	assert.Equal(t, bidder, reaction.BidderID)
	assert.True(t, reaction.Amount.Equal(decimal.NewFromInt(210)), "current price plus increment")
}

func TestReactorNoInstructionIsNoop(t *testing.T) {
	a := activeTestAuction()
	reactor := NewReactor(newStubAutoBidRepo())

	reaction, err := reactor.React(context.Background(), nil, a, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, reaction)
}

func TestReactorCeilingExhaustionDeactivates(t *testing.T) {
	a := activeTestAuction()
	a.BidCount = 3
	a.CurrentPrice = decimal.NewFromInt(295)
	repo := newStubAutoBidRepo()
	reactor := NewReactor(repo)
	bidder := uuid.New()

	repo.Create(context.Background(), &models.AutoBid{
		AuctionID: a.ID,
		BidderID:  bidder,
		MaxAmount: decimal.NewFromInt(300),
		IsActive:  true,
	})

	// Required 305 exceeds the 300 ceiling: no reaction, no error, and the
	// instruction goes inactive.
	reaction, err := reactor.React(context.Background(), nil, a, bidder)
	require.NoError(t, err)
	assert.Nil(t, reaction)
	assert.Equal(t, 0, repo.activeCount(a.ID, bidder))
}
