package repository

import (
	"context"
	"strings"

	"github.com/vocaldesk/vocaldesk/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, email, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.Email,
		account.Metadata,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, metadata, created_at, updated_at
		 FROM accounts WHERE LOWER(email) = ?
		 ORDER BY created_at ASC
		 LIMIT 1`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}
