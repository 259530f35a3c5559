package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bidloop/bidloop-backend/pkg/enums"
)

// Product is the minimal catalog projection this service needs: who owns the
// item and whether it can still be put up for auction.
type Product struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID  uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index"`
	Name      string              `gorm:"column:name;not null"`
	Status    enums.ProductStatus `gorm:"column:status;type:product_status_enum;not null;default:'available'"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
