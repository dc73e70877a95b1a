package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// Upsert inserts or updates the row keyed on subscription id in a
	// single atomic statement. Nullable fields absent from the incoming
	// record never overwrite stored values.
	Upsert(ctx context.Context, db *gorm.DB, subscription *Subscription) error

	// Reidentify moves the account's row from oldID to the incoming
	// record's id, rewriting its fields in the same statement. Returns the
	// number of rows moved (zero when oldID no longer exists).
	Reidentify(ctx context.Context, db *gorm.DB, accountID snowflake.ID, oldID string, subscription *Subscription) (int64, error)

	// DemoteCurrentExcept clears the current flag on every other row of the
	// account, preserving the at-most-one-current invariant.
	DemoteCurrentExcept(ctx context.Context, db *gorm.DB, accountID snowflake.ID, keepID string) error

	FindByID(ctx context.Context, db *gorm.DB, id string) (*Subscription, error)
	FindCurrentByAccountID(ctx context.Context, db *gorm.DB, accountID snowflake.ID) (*Subscription, error)
	FindByProviderCustomerID(ctx context.Context, db *gorm.DB, providerCustomerID string) (*Subscription, error)
	ListRecentOpen(ctx context.Context, db *gorm.DB, limit int) ([]Subscription, error)
}
