package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, mapping *Mapping) error
	FindByProviderCustomerID(ctx context.Context, db *gorm.DB, providerCustomerID string) (*Mapping, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Mapping, error)
}
