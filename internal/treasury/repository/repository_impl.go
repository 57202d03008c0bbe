package repository

import (
	"context"
	"time"

	"github.com/heliovolt/solshare/internal/treasury/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) GetAccount(ctx context.Context, db *gorm.DB, address string) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, address, balance, updated_at FROM treasury_accounts WHERE address = ?`,
		address,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

func (r *repo) CreditAccount(ctx context.Context, db *gorm.DB, account *domain.Account, amount int64) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE treasury_accounts SET balance = balance + ?, updated_at = ? WHERE address = ?`,
		amount,
		account.UpdatedAt,
		account.Address,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO treasury_accounts (id, address, balance, updated_at)
		 VALUES (?, ?, ?, ?)`,
		account.ID,
		account.Address,
		amount,
		account.UpdatedAt,
	).Error
}

func (r *repo) DebitAccount(ctx context.Context, db *gorm.DB, address string, amount int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE treasury_accounts SET balance = balance - ?, updated_at = ?
		 WHERE address = ? AND balance >= ?`,
		amount,
		now,
		address,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
