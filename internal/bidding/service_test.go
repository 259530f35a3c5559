package bidding_test

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/internal/autobid"
	"github.com/bidloop/bidloop-backend/internal/bidding"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
	"github.com/bidloop/bidloop-backend/pkg/outbox"
)

// In-memory fakes shared by the coordinator tests. The lock table provides
// the serialization, so plain maps guarded by a mutex stand in for the DB.

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*models.Auction
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*models.Auction)}
}

func (f *fakeAuctionRepo) put(a *models.Auction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *a
	f.auctions[a.ID] = &copied
}

func (f *fakeAuctionRepo) get(id uuid.UUID) models.Auction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.auctions[id]
}

func (f *fakeAuctionRepo) WithTx(tx *gorm.DB) auction.Repository { return f }

func (f *fakeAuctionRepo) Create(ctx context.Context, a *models.Auction) (*models.Auction, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	f.put(a)
	return a, nil
}

func (f *fakeAuctionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.auctions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (f *fakeAuctionRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Auction, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeAuctionRepo) Save(ctx context.Context, a *models.Auction) error {
	f.put(a)
	return nil
}

func (f *fakeAuctionRepo) IncrementViewCount(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeAuctionRepo) List(ctx context.Context, params auction.ListParams) ([]models.Auction, string, error) {
	return nil, "", nil
}

func (f *fakeAuctionRepo) FindDueToOpen(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) FindDueToClose(ctx context.Context, now time.Time, limit int) ([]models.Auction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []models.Auction
	for _, a := range f.auctions {
		if a.Status == enums.AuctionStatusActive && !a.EndTime.After(now) {
			due = append(due, *a)
		}
	}
	return due, nil
}

type fakeBidRepo struct {
	mu      sync.Mutex
	bids    map[uuid.UUID]*models.Bid
	history []models.BidHistory
}

func newFakeBidRepo() *fakeBidRepo {
	return &fakeBidRepo{bids: make(map[uuid.UUID]*models.Bid)}
}

func (f *fakeBidRepo) WithTx(tx *gorm.DB) bidding.Repository { return f }

func (f *fakeBidRepo) CreateBid(ctx context.Context, bid *models.Bid) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bid.ID == uuid.Nil {
		bid.ID = uuid.New()
	}
	copied := *bid
	f.bids[bid.ID] = &copied
	return bid, nil
}

func (f *fakeBidRepo) FindWinningBid(ctx context.Context, auctionID uuid.UUID) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, bid := range f.bids {
		if bid.AuctionID == auctionID && bid.IsWinning {
			copied := *bid
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBidRepo) DemoteBid(ctx context.Context, bidID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bid, ok := f.bids[bidID]; ok {
		bid.IsWinning = false
	}
	return nil
}

func (f *fakeBidRepo) ListBids(ctx context.Context, auctionID uuid.UUID, orderBy bidding.BidOrder, limit int) ([]models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Bid
	for _, bid := range f.bids {
		if bid.AuctionID == auctionID {
			out = append(out, *bid)
		}
	}
	if orderBy == bidding.BidOrderAmount {
		sort.Slice(out, func(i, j int) bool { return out[i].Amount.GreaterThan(out[j].Amount) })
	} else {
		sort.Slice(out, func(i, j int) bool { return out[i].BidTime.After(out[j].BidTime) })
	}
	return out, nil
}

func (f *fakeBidRepo) AppendHistory(ctx context.Context, entry *models.BidHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeBidRepo) winningBids(auctionID uuid.UUID) []models.Bid {
	f.mu.Lock()
	defer f.mu.Unlock()
	var winning []models.Bid
	for _, bid := range f.bids {
		if bid.AuctionID == auctionID && bid.IsWinning {
			winning = append(winning, *bid)
		}
	}
	return winning
}

type fakeUserDirectory struct{}

func (fakeUserDirectory) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	return "bidder-" + id.String()[:8], nil
}

type fakeProductGate struct {
	mu        sync.Mutex
	sold      []uuid.UUID
	available []uuid.UUID
}

func (f *fakeProductGate) MarkSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sold = append(f.sold, productID)
	return nil
}

func (f *fakeProductGate) MarkAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.available = append(f.available, productID)
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeOutbox struct {
	mu     sync.Mutex
	events []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.events {
		if existing.EventType == event.EventType && existing.AggregateID == event.AggregateID {
			return nil
		}
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutbox) countByType(eventType enums.OutboxEventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, event := range f.events {
		if event.EventType == eventType {
			count++
		}
	}
	return count
}

type noopReactor struct{}

func (noopReactor) React(ctx context.Context, tx *gorm.DB, a *models.Auction, outbid uuid.UUID) (*bidding.Reaction, error) {
	return nil, nil
}

type fakeAutoBidRepo struct {
	mu           sync.Mutex
	instructions map[uuid.UUID]*models.AutoBid
}

func newFakeAutoBidRepo() *fakeAutoBidRepo {
	return &fakeAutoBidRepo{instructions: make(map[uuid.UUID]*models.AutoBid)}
}

func (f *fakeAutoBidRepo) WithTx(tx *gorm.DB) autobid.Repository { return f }

func (f *fakeAutoBidRepo) Create(ctx context.Context, instruction *models.AutoBid) (*models.AutoBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if instruction.ID == uuid.Nil {
		instruction.ID = uuid.New()
	}
	copied := *instruction
	f.instructions[instruction.ID] = &copied
	return instruction, nil
}

func (f *fakeAutoBidRepo) FindActivePair(ctx context.Context, auctionID, bidderID uuid.UUID) (*models.AutoBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, instruction := range f.instructions {
		if instruction.AuctionID == auctionID && instruction.BidderID == bidderID && instruction.IsActive {
			copied := *instruction
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAutoBidRepo) DeactivateByID(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if instruction, ok := f.instructions[id]; ok {
		instruction.IsActive = false
	}
	return nil
}

func (f *fakeAutoBidRepo) DeactivatePair(ctx context.Context, auctionID, bidderID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, instruction := range f.instructions {
		if instruction.AuctionID == auctionID && instruction.BidderID == bidderID {
			instruction.IsActive = false
		}
	}
	return nil
}

func (f *fakeAutoBidRepo) ListActiveByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.AutoBid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AutoBid
	for _, instruction := range f.instructions {
		if instruction.AuctionID == auctionID && instruction.IsActive {
			out = append(out, *instruction)
		}
	}
	return out, nil
}

type fixture struct {
	svc      *bidding.Service
	auctions *fakeAuctionRepo
	bids     *fakeBidRepo
	autoBids *fakeAutoBidRepo
	products *fakeProductGate
	sink     *fakeOutbox
	auction  *models.Auction
}

func newFixture(t *testing.T, reactor bidding.AutoBidReactor) *fixture {
	t.Helper()
	auctions := newFakeAuctionRepo()
	bids := newFakeBidRepo()
	autoBids := newFakeAutoBidRepo()
	products := &fakeProductGate{}
	sink := &fakeOutbox{}

	if reactor == nil {
		reactor = autobid.NewReactor(autoBids)
	}

	svc, err := bidding.NewService(bidding.ServiceParams{
		Auctions:        auctions,
		Bids:            bids,
		Users:           fakeUserDirectory{},
		Products:        products,
		Tx:              fakeTxRunner{},
		Outbox:          sink,
		Reactor:         reactor,
		Locks:           auction.NewLockTable(),
		MaxCascadeDepth: 64,
	})
	require.NoError(t, err)

	now := time.Now()
	a := &models.Auction{
		ID:           uuid.New(),
		ProductID:    uuid.New(),
		SellerID:     uuid.New(),
		StartPrice:   decimal.NewFromInt(10000),
		CurrentPrice: decimal.NewFromInt(10000),
		MinIncrement: decimal.NewFromInt(1000),
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(time.Hour),
		Status:       enums.AuctionStatusActive,
	}
	auctions.put(a)

	return &fixture{
		svc:      svc,
		auctions: auctions,
		bids:     bids,
		autoBids: autoBids,
		products: products,
		sink:     sink,
		auction:  a,
	}
}

func (f *fixture) placeBid(t *testing.T, bidderID uuid.UUID, amount int64) *models.Bid {
	t.Helper()
	bid, err := f.svc.PlaceBid(context.Background(), bidding.PlaceBidInput{
		AuctionID: f.auction.ID,
		BidderID:  bidderID,
		Amount:    decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return bid
}

func TestPlaceBidAcceptsAndRejectsByMinimum(t *testing.T) {
	f := newFixture(t, noopReactor{})
	bidderA, bidderB := uuid.New(), uuid.New()

	// Even the opening bid must clear start price plus increment.
	_, err := f.svc.PlaceBid(context.Background(), bidding.PlaceBidInput{
		AuctionID: f.auction.ID,
		BidderID:  bidderA,
		Amount:    decimal.NewFromInt(10000),
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]any{"minimumBid": "11000"}, typed.Details())
	assert.Equal(t, 0, f.auctions.get(f.auction.ID).BidCount)

	f.placeBid(t, bidderA, 11000)
	state := f.auctions.get(f.auction.ID)
	assert.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(11000)))
	assert.Equal(t, 1, state.BidCount)

	_, err = f.svc.PlaceBid(context.Background(), bidding.PlaceBidInput{
		AuctionID: f.auction.ID,
		BidderID:  bidderB,
		Amount:    decimal.NewFromInt(11500),
	})
	require.Error(t, err)
	typed = pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]any{"minimumBid": "12000"}, typed.Details())

	// Rejection leaves auction, ledger, and sink untouched.
	state = f.auctions.get(f.auction.ID)
	assert.Equal(t, 1, state.BidCount)
	assert.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(11000)))
	assert.Len(t, f.bids.winningBids(f.auction.ID), 1)
	assert.Equal(t, 1, f.sink.countByType(enums.EventBidPlaced))
}

func TestPlaceBidDemotesPreviousWinner(t *testing.T) {
	f := newFixture(t, noopReactor{})
	bidderA, bidderB := uuid.New(), uuid.New()

	first := f.placeBid(t, bidderA, 11000)
	second := f.placeBid(t, bidderB, 12000)

	winning := f.bids.winningBids(f.auction.ID)
	require.Len(t, winning, 1)
	assert.Equal(t, second.ID, winning[0].ID)

	state := f.auctions.get(f.auction.ID)
	require.NotNil(t, state.WinningBidID)
	assert.Equal(t, second.ID, *state.WinningBidID)
	require.NotNil(t, state.WinnerID)
	assert.Equal(t, bidderB, *state.WinnerID)
	assert.False(t, f.bids.bids[first.ID].IsWinning)

	assert.Equal(t, 1, f.sink.countByType(enums.EventBidOutbid))
}

func TestPlaceBidRaisingOwnBidSkipsOutbid(t *testing.T) {
	f := newFixture(t, noopReactor{})
	bidder := uuid.New()

	first := f.placeBid(t, bidder, 11000)
	second := f.placeBid(t, bidder, 12000)

	winning := f.bids.winningBids(f.auction.ID)
	require.Len(t, winning, 1)
	assert.Equal(t, second.ID, winning[0].ID)
	assert.False(t, f.bids.bids[first.ID].IsWinning)

	// The bidder never lost the lead, so no outbid notice is queued.
	assert.Equal(t, 0, f.sink.countByType(enums.EventBidOutbid))
	assert.Equal(t, 2, f.sink.countByType(enums.EventBidPlaced))
}

func TestAutoBidCascadeProxyWar(t *testing.T) {
	f := newFixture(t, nil)
	bidderA, bidderB := uuid.New(), uuid.New()

	// A holds the lead with a 15000 ceiling.
	f.placeBid(t, bidderA, 11000)
	f.autoBids.Create(context.Background(), &models.AutoBid{
		AuctionID: f.auction.ID,
		BidderID:  bidderA,
		MaxAmount: decimal.NewFromInt(15000),
		IsActive:  true,
	})

	// B's 12000 triggers A's counter at 13000.
	f.placeBid(t, bidderB, 12000)
	state := f.auctions.get(f.auction.ID)
	assert.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(13000)))
	require.NotNil(t, state.WinnerID)
	assert.Equal(t, bidderA, *state.WinnerID)

	// B's 14000 triggers A's final counter at 15000, exactly the ceiling.
	f.placeBid(t, bidderB, 14000)
	state = f.auctions.get(f.auction.ID)
	assert.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, bidderA, *state.WinnerID)

	// B's 16000 would require 17000 from A; the instruction deactivates
	// and B keeps the lead.
	f.placeBid(t, bidderB, 16000)
	state = f.auctions.get(f.auction.ID)
	assert.True(t, state.CurrentPrice.Equal(decimal.NewFromInt(16000)))
	assert.Equal(t, bidderB, *state.WinnerID)
	assert.Equal(t, 6, state.BidCount)

	_, err := f.autoBids.FindActivePair(context.Background(), f.auction.ID, bidderA)
	assert.Equal(t, gorm.ErrRecordNotFound, err, "spent instruction must be inactive")

	// No auto-bid ever exceeded the ceiling.
	for _, bid := range f.bids.bids {
		if bid.IsAutoBid {
			assert.True(t, bid.Amount.LessThanOrEqual(decimal.NewFromInt(15000)))
		}
	}
	assert.Len(t, f.bids.winningBids(f.auction.ID), 1)
}

func TestBuyNowEndsImmediately(t *testing.T) {
	f := newFixture(t, noopReactor{})
	price := decimal.NewFromInt(50000)
	f.auction.BuyNowPrice = &price
	f.auctions.put(f.auction)
	buyer := uuid.New()

	bid, err := f.svc.BuyNow(context.Background(), f.auction.ID, buyer)
	require.NoError(t, err)

	state := f.auctions.get(f.auction.ID)
	assert.Equal(t, enums.AuctionStatusEnded, state.Status)
	assert.True(t, state.CurrentPrice.Equal(price))
	require.NotNil(t, state.WinnerID)
	assert.Equal(t, buyer, *state.WinnerID)
	require.NotNil(t, state.WinningBidID)
	assert.Equal(t, bid.ID, *state.WinningBidID)
	assert.Equal(t, []uuid.UUID{f.auction.ProductID}, f.products.sold)
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionWon))
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionEnded))

	// The auction is terminal; further bids are state conflicts.
	_, err = f.svc.PlaceBid(context.Background(), bidding.PlaceBidInput{
		AuctionID: f.auction.ID,
		BidderID:  uuid.New(),
		Amount:    decimal.NewFromInt(60000),
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestConcurrentBidsExactlyOneWins(t *testing.T) {
	f := newFixture(t, noopReactor{})
	f.placeBid(t, uuid.New(), 11000)

	amounts := []int64{12000, 12500}
	results := make(chan error, len(amounts))
	var wg sync.WaitGroup
	for _, amount := range amounts {
		amount := amount
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceBid(context.Background(), bidding.PlaceBidInput{
				AuctionID: f.auction.ID,
				BidderID:  uuid.New(),
				Amount:    decimal.NewFromInt(amount),
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		if err == nil {
			accepted++
		} else {
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
			rejected++
		}
	}
	assert.Equal(t, 1, accepted, "exactly one concurrent bid may win")
	assert.Equal(t, 1, rejected)

	state := f.auctions.get(f.auction.ID)
	assert.Equal(t, 2, state.BidCount)
	assert.Len(t, f.bids.winningBids(f.auction.ID), 1)
}

func TestCloseExpiredAuctionsResolvesWinner(t *testing.T) {
	f := newFixture(t, noopReactor{})
	winner := uuid.New()
	f.placeBid(t, winner, 11000)

	now := time.Now().Add(2 * time.Hour)
	closed, err := f.svc.CloseExpiredAuctions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	state := f.auctions.get(f.auction.ID)
	assert.Equal(t, enums.AuctionStatusEnded, state.Status)
	require.NotNil(t, state.WinnerID)
	assert.Equal(t, winner, *state.WinnerID)
	assert.Equal(t, []uuid.UUID{f.auction.ProductID}, f.products.sold)
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionWon))
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionEnded))

	// Re-running the sweep changes nothing.
	closed, err = f.svc.CloseExpiredAuctions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, closed)
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionEnded))
}

func TestCloseExpiredAuctionsWithoutBids(t *testing.T) {
	f := newFixture(t, noopReactor{})

	now := time.Now().Add(2 * time.Hour)
	closed, err := f.svc.CloseExpiredAuctions(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	state := f.auctions.get(f.auction.ID)
	assert.Equal(t, enums.AuctionStatusEnded, state.Status)
	assert.Nil(t, state.WinnerID)
	assert.Equal(t, []uuid.UUID{f.auction.ProductID}, f.products.available)
	assert.Equal(t, 0, f.sink.countByType(enums.EventAuctionWon))
	assert.Equal(t, 1, f.sink.countByType(enums.EventAuctionEnded))
}

func TestListBidsOrdering(t *testing.T) {
	f := newFixture(t, noopReactor{})
	f.placeBid(t, uuid.New(), 11000)
	f.placeBid(t, uuid.New(), 12000)
	f.placeBid(t, uuid.New(), 13000)

	byAmount, err := f.svc.ListBids(context.Background(), f.auction.ID, bidding.BidOrderAmount, 10)
	require.NoError(t, err)
	require.Len(t, byAmount, 3)
	assert.True(t, byAmount[0].Amount.GreaterThan(byAmount[1].Amount))

	_, err = f.svc.ListBids(context.Background(), uuid.New(), bidding.BidOrderTime, 10)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
