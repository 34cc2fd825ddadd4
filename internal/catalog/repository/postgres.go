package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, restaurantID, productID string) (*model.Product, error) {
	var product model.Product
	query := `SELECT * FROM products WHERE id = $1 AND restaurant_id = $2 LIMIT 1`
	err := r.DB.GetContext(ctx, &product, query, productID, restaurantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &product, nil
}

func (r *PGRepository) FindByIDs(ctx context.Context, restaurantID string, productIDs []string) (map[string]model.Product, error) {
	out := make(map[string]model.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM products WHERE restaurant_id = ? AND id IN (?)`, restaurantID, productIDs)
	if err != nil {
		return nil, err
	}

	// Rebind for Postgres ($1, $2...)
	query = r.DB.Rebind(query)

	var products []model.Product
	if err := r.DB.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}

	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}
