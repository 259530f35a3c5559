package products

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bidloop/bidloop-backend/pkg/enums"
	pkgerrors "github.com/bidloop/bidloop-backend/pkg/errors"
)

// Service answers sellability questions and tracks product lifecycle status
// as auctions open and settle around it.
type Service struct {
	repo *Repository
}

// NewService builds a product service with the required dependencies.
func NewService(repo *Repository) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	return &Service{repo: repo}, nil
}

// EnsureSellable verifies the product exists, belongs to the seller, and is
// available for a new auction.
func (s *Service) EnsureSellable(ctx context.Context, tx *gorm.DB, productID, sellerID uuid.UUID) error {
	repo := s.repo.WithTx(tx)
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if product.SellerID != sellerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product does not belong to seller")
	}
	if product.Status != enums.ProductStatusAvailable {
		return pkgerrors.New(pkgerrors.CodeConflict, "product is not available for auction")
	}
	return nil
}

// MarkAuctioned flags the product as tied to an open auction.
func (s *Service) MarkAuctioned(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.setStatus(ctx, tx, productID, enums.ProductStatusAuctioned)
}

// MarkSold flags the product as sold after a winning close or buy-now.
func (s *Service) MarkSold(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.setStatus(ctx, tx, productID, enums.ProductStatusSold)
}

// MarkAvailable returns the product to the open pool after a cancel or an
// unsold close.
func (s *Service) MarkAvailable(ctx context.Context, tx *gorm.DB, productID uuid.UUID) error {
	return s.setStatus(ctx, tx, productID, enums.ProductStatusAvailable)
}

func (s *Service) setStatus(ctx context.Context, tx *gorm.DB, productID uuid.UUID, status enums.ProductStatus) error {
	if err := s.repo.WithTx(tx).UpdateStatus(ctx, productID, status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product status")
	}
	return nil
}
