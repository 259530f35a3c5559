package autobid

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/internal/auction"
	"github.com/bidloop/bidloop-backend/internal/bidding"
	"github.com/bidloop/bidloop-backend/pkg/db/models"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
)

// Reactor answers the coordinator's outbid signal: if the demoted bidder
// holds an active instruction that still clears the next required amount,
// it proposes the follow-up bid; a spent ceiling deactivates the
// instruction and is a normal termination, not an error.
type Reactor struct {
	repo Repository
}

// NewReactor builds the reactor over the auto-bid registry.
func NewReactor(repo Repository) *Reactor {
	return &Reactor{repo: repo}
}

// React implements the coordinator's AutoBidReactor contract. It runs inside
// the hop's transaction and the auction's critical section, so the ceiling
// check is consistent with the live price.
func (r *Reactor) React(ctx context.Context, tx *gorm.DB, loaded *models.Auction, outbidBidderID uuid.UUID) (*bidding.Reaction, error) {
	if outbidBidderID == uuid.Nil {
		return nil, nil
	}

	repo := r.repo.WithTx(tx)
	instruction, err := repo.FindActivePair(ctx, loaded.ID, outbidBidderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load auto-bid instruction")
	}

	next := auction.MinimumBid(loaded)
	if instruction.MaxAmount.LessThan(next) {
		if err := repo.DeactivateByID(ctx, instruction.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate spent auto-bid")
		}
		return nil, nil
	}

	return &bidding.Reaction{
		AutoBidID: instruction.ID,
		BidderID:  instruction.BidderID,
		Amount:    next,
	}, nil
}
