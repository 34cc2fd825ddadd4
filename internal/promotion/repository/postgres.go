package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/promotion/dto"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, promo *model.Promotion) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO promotions (id, restaurant_id, product_id, name, kind, value, starts_at, ends_at, is_active, created_at, updated_at)
        VALUES (:id, :restaurant_id, :product_id, :name, :kind, :value, :starts_at, :ends_at, :is_active, :created_at, :updated_at)
    `
	if _, err := tx.NamedExecContext(ctx, query, promo); err != nil {
		return fmt.Errorf("failed to insert promotion: %w", err)
	}

	for _, storeID := range promo.StoreIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO promotion_stores (promotion_id, store_id) VALUES ($1, $2)`,
			promo.ID, storeID,
		); err != nil {
			return fmt.Errorf("failed to assign promotion to store: %w", err)
		}
	}

	return tx.Commit()
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.Promotion, error) {
	var promo model.Promotion
	query := `SELECT * FROM promotions WHERE id = $1 LIMIT 1`
	err := r.DB.GetContext(ctx, &promo, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if err := r.loadStores(ctx, &promo); err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.PromotionFilters) ([]model.Promotion, int, error) {
	var promos []model.Promotion
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.RestaurantID != "" {
		conditions = append(conditions, "restaurant_id = :restaurant_id")
		args["restaurant_id"] = f.RestaurantID
	}
	if f.ProductID != "" {
		conditions = append(conditions, "product_id = :product_id")
		args["product_id"] = f.ProductID
	}
	if f.IsActive != nil {
		conditions = append(conditions, "is_active = :is_active")
		args["is_active"] = *f.IsActive
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM promotions" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	if rows.Next() {
		rows.Scan(&count)
	}

	query := "SELECT * FROM promotions" + whereClause + " ORDER BY starts_at DESC, id ASC"
	if f.PageSize > 0 {
		offset := (f.Page - 1) * f.PageSize
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, offset)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	err = nstmt.SelectContext(ctx, &promos, args)
	return promos, count, err
}

func (r *PGRepository) Update(ctx context.Context, promo *model.Promotion) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        UPDATE promotions
        SET name = :name,
            kind = :kind,
            value = :value,
            starts_at = :starts_at,
            ends_at = :ends_at,
            is_active = :is_active,
            updated_at = :updated_at
        WHERE id = :id AND restaurant_id = :restaurant_id
    `
	if _, err := tx.NamedExecContext(ctx, query, promo); err != nil {
		return fmt.Errorf("failed to update promotion: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM promotion_stores WHERE promotion_id = $1`, promo.ID); err != nil {
		return err
	}
	for _, storeID := range promo.StoreIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO promotion_stores (promotion_id, store_id) VALUES ($1, $2)`,
			promo.ID, storeID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PGRepository) Deactivate(ctx context.Context, id, restaurantID string) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE promotions SET is_active = false, updated_at = now() WHERE id = $1 AND restaurant_id = $2`,
		id, restaurantID,
	)
	return err
}

func (r *PGRepository) FindByProduct(ctx context.Context, restaurantID, productID string) ([]model.Promotion, error) {
	var promos []model.Promotion
	query := `
        SELECT * FROM promotions
        WHERE restaurant_id = $1 AND product_id = $2 AND is_active = true
        ORDER BY starts_at ASC, id ASC
    `
	err := r.DB.SelectContext(ctx, &promos, query, restaurantID, productID)
	return promos, err
}

func (r *PGRepository) loadStores(ctx context.Context, promo *model.Promotion) error {
	var storeIDs []string
	err := r.DB.SelectContext(ctx, &storeIDs,
		`SELECT store_id FROM promotion_stores WHERE promotion_id = $1 ORDER BY store_id`,
		promo.ID,
	)
	if err != nil {
		return err
	}
	promo.StoreIDs = storeIDs
	return nil
}
