package repository

import (
	"context"
	"strings"

	"github.com/vocaldesk/vocaldesk/internal/customer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, mapping *domain.Mapping) error {
	incoming := "excluded.email"
	if db != nil && strings.EqualFold(db.Dialector.Name(), "mysql") {
		incoming = "VALUES(email)"
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider_customer_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"account_id": mapping.AccountID,
			// An event without a billing email must not blank a known one.
			"email":      gorm.Expr("COALESCE(NULLIF(" + incoming + ", ''), email)"),
			"updated_at": mapping.UpdatedAt,
		}),
	}).Create(mapping).Error
}

func (r *repo) FindByProviderCustomerID(ctx context.Context, db *gorm.DB, providerCustomerID string) (*domain.Mapping, error) {
	var mapping domain.Mapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, provider_customer_id, email, created_at, updated_at
		 FROM customer_mappings WHERE provider_customer_id = ?
		 LIMIT 1`,
		strings.TrimSpace(providerCustomerID),
	).Scan(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Mapping, error) {
	var mapping domain.Mapping
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, provider_customer_id, email, created_at, updated_at
		 FROM customer_mappings WHERE LOWER(email) = ?
		 ORDER BY created_at DESC
		 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}
