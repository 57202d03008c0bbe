package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/heliovolt/solshare/internal/sale/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sale *domain.Sale) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO sales (id, panel_id, seller_address, price_per_share, shares_for_sale, shares_sold, ends_at, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID,
		sale.PanelID,
		sale.SellerAddress,
		sale.PricePerShare,
		sale.SharesForSale,
		sale.SharesSold,
		sale.EndsAt,
		sale.Active,
		sale.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Sale, error) {
	var sale domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, seller_address, price_per_share, shares_for_sale, shares_sold, ends_at, active, created_at
		 FROM sales WHERE id = ?`,
		id,
	).Scan(&sale).Error
	if err != nil {
		return nil, err
	}
	if sale.ID == 0 {
		return nil, nil
	}
	return &sale, nil
}

func (r *repo) ListByPanel(ctx context.Context, db *gorm.DB, panelID snowflake.ID) ([]*domain.Sale, error) {
	var sales []*domain.Sale
	err := db.WithContext(ctx).Raw(
		`SELECT id, panel_id, seller_address, price_per_share, shares_for_sale, shares_sold, ends_at, active, created_at
		 FROM sales WHERE panel_id = ? ORDER BY id DESC`,
		panelID,
	).Scan(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repo) AddSharesSold(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE sales SET shares_sold = shares_sold + ?
		 WHERE id = ? AND shares_sold + ? <= shares_for_sale`,
		quantity,
		id,
		quantity,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE sales SET active = ? WHERE id = ?`,
		active,
		id,
	).Error
}
