package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

// groupRow maps the table_groups table. Tables and items live in child
// tables and are assembled on load.
type groupRow struct {
	ID           string    `db:"id"`
	RestaurantID string    `db:"restaurant_id"`
	StoreID      *string   `db:"store_id"`
	ServerID     string    `db:"server_id"`
	Status       string    `db:"status"`
	Total        float64   `db:"total"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type itemRow struct {
	ID                string          `db:"id"`
	GroupID           string          `db:"group_id"`
	ProductID         string          `db:"product_id"`
	ProductName       string          `db:"product_name"`
	Quantity          int             `db:"quantity"`
	Notes             string          `db:"notes"`
	Modifiers         json.RawMessage `db:"modifiers"`
	OriginalUnitPrice float64         `db:"original_unit_price"`
	UnitPrice         float64         `db:"unit_price"`
	LineTotal         float64         `db:"line_total"`
	PromotionID       *string         `db:"promotion_id"`
	PromotionName     *string         `db:"promotion_name"`
	PromotionKind     *string         `db:"promotion_kind"`
	PromotionValue    *float64        `db:"promotion_value"`
	DiscountAmount    *float64        `db:"discount_amount"`
	Position          int             `db:"position"`
}

func (r *PGRepository) Create(ctx context.Context, group *model.TableGroup) error {
	return r.SaveState(ctx, group)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.TableGroup, error) {
	var row groupRow
	err := r.DB.GetContext(ctx, &row, `SELECT * FROM table_groups WHERE id = $1 LIMIT 1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	group := rowToGroup(&row)
	if err := r.loadTables(ctx, group); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, group); err != nil {
		return nil, err
	}
	return group, nil
}

func (r *PGRepository) FindOpenByTables(ctx context.Context, restaurantID string, tableIDs []string) ([]model.TableGroup, error) {
	if len(tableIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
        SELECT DISTINCT g.* FROM table_groups g
        JOIN table_group_tables t ON t.group_id = g.id
        WHERE g.restaurant_id = ? AND g.status != 'CLOSED' AND t.table_id IN (?)
    `, restaurantID, tableIDs)
	if err != nil {
		return nil, err
	}
	query = r.DB.Rebind(query)

	var rows []groupRow
	if err := r.DB.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	groups := make([]model.TableGroup, 0, len(rows))
	for i := range rows {
		group := rowToGroup(&rows[i])
		if err := r.loadTables(ctx, group); err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, nil
}

// SaveState rewrites each group's row, table set, and cart lines inside one
// transaction. Either every group persists or none does.
func (r *PGRepository) SaveState(ctx context.Context, groups ...*model.TableGroup) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, group := range groups {
		if err := saveGroupTx(ctx, tx, group); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func saveGroupTx(ctx context.Context, tx *sqlx.Tx, group *model.TableGroup) error {
	row := groupToRow(group)
	upsert := `
        INSERT INTO table_groups (id, restaurant_id, store_id, server_id, status, total, created_at, updated_at)
        VALUES (:id, :restaurant_id, :store_id, :server_id, :status, :total, :created_at, :updated_at)
        ON CONFLICT (id)
        DO UPDATE SET
            status = EXCLUDED.status,
            total = EXCLUDED.total,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := tx.NamedExecContext(ctx, upsert, row); err != nil {
		return fmt.Errorf("failed to save table group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM table_group_tables WHERE group_id = $1`, group.ID); err != nil {
		return err
	}
	for pos, tableID := range group.TableIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO table_group_tables (group_id, table_id, position) VALUES ($1, $2, $3)`,
			group.ID, tableID, pos,
		); err != nil {
			return fmt.Errorf("failed to save group tables: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM table_group_items WHERE group_id = $1`, group.ID); err != nil {
		return err
	}
	insertItem := `
        INSERT INTO table_group_items (
            id, group_id, product_id, product_name, quantity, notes, modifiers,
            original_unit_price, unit_price, line_total,
            promotion_id, promotion_name, promotion_kind, promotion_value, discount_amount,
            position
        )
        VALUES (
            :id, :group_id, :product_id, :product_name, :quantity, :notes, :modifiers,
            :original_unit_price, :unit_price, :line_total,
            :promotion_id, :promotion_name, :promotion_kind, :promotion_value, :discount_amount,
            :position
        )
    `
	for pos := range group.Cart.Items {
		row, err := itemToRow(&group.Cart.Items[pos], group.ID, pos)
		if err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertItem, row); err != nil {
			return fmt.Errorf("failed to save cart line: %w", err)
		}
	}

	return nil
}

func (r *PGRepository) ListActive(ctx context.Context, restaurantID string) ([]model.TableGroup, error) {
	var rows []groupRow
	err := r.DB.SelectContext(ctx, &rows,
		`SELECT * FROM table_groups WHERE restaurant_id = $1 AND status != 'CLOSED' ORDER BY created_at DESC`,
		restaurantID,
	)
	if err != nil {
		return nil, err
	}

	groups := make([]model.TableGroup, 0, len(rows))
	for i := range rows {
		group := rowToGroup(&rows[i])
		if err := r.loadTables(ctx, group); err != nil {
			return nil, err
		}
		if err := r.loadItems(ctx, group); err != nil {
			return nil, err
		}
		groups = append(groups, *group)
	}
	return groups, nil
}

func (r *PGRepository) loadTables(ctx context.Context, group *model.TableGroup) error {
	var tableIDs []string
	err := r.DB.SelectContext(ctx, &tableIDs,
		`SELECT table_id FROM table_group_tables WHERE group_id = $1 ORDER BY position`,
		group.ID,
	)
	if err != nil {
		return err
	}
	group.TableIDs = tableIDs
	return nil
}

func (r *PGRepository) loadItems(ctx context.Context, group *model.TableGroup) error {
	var rows []itemRow
	err := r.DB.SelectContext(ctx, &rows,
		`SELECT * FROM table_group_items WHERE group_id = $1 ORDER BY position`,
		group.ID,
	)
	if err != nil {
		return err
	}

	items := make([]model.CartItem, 0, len(rows))
	for i := range rows {
		item, err := rowToItem(&rows[i])
		if err != nil {
			return err
		}
		items = append(items, *item)
	}
	group.Cart.Items = items
	return nil
}

func rowToGroup(row *groupRow) *model.TableGroup {
	return &model.TableGroup{
		BaseModel: model.BaseModel{
			ID:        row.ID,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		},
		RestaurantID: row.RestaurantID,
		StoreID:      row.StoreID,
		ServerID:     row.ServerID,
		Status:       model.TableGroupStatus(row.Status),
		Cart:         model.Cart{Total: row.Total},
	}
}

func groupToRow(group *model.TableGroup) *groupRow {
	return &groupRow{
		ID:           group.ID,
		RestaurantID: group.RestaurantID,
		StoreID:      group.StoreID,
		ServerID:     group.ServerID,
		Status:       string(group.Status),
		Total:        group.Cart.Total,
		CreatedAt:    group.CreatedAt,
		UpdatedAt:    group.UpdatedAt,
	}
}

func itemToRow(item *model.CartItem, groupID string, position int) (*itemRow, error) {
	modifiers, err := json.Marshal(item.Modifiers)
	if err != nil {
		return nil, err
	}

	row := &itemRow{
		ID:                item.ID,
		GroupID:           groupID,
		ProductID:         item.ProductID,
		ProductName:       item.ProductName,
		Quantity:          item.Quantity,
		Notes:             item.Notes,
		Modifiers:         modifiers,
		OriginalUnitPrice: item.OriginalUnitPrice,
		UnitPrice:         item.UnitPrice,
		LineTotal:         item.LineTotal,
		Position:          position,
	}

	if item.Promotion != nil {
		kind := string(item.Promotion.Kind)
		row.PromotionID = &item.Promotion.PromotionID
		row.PromotionName = &item.Promotion.Name
		row.PromotionKind = &kind
		row.PromotionValue = &item.Promotion.Value
		row.DiscountAmount = &item.Promotion.DiscountAmount
	}

	return row, nil
}

func rowToItem(row *itemRow) (*model.CartItem, error) {
	var modifiers []string
	if len(row.Modifiers) > 0 {
		if err := json.Unmarshal(row.Modifiers, &modifiers); err != nil {
			return nil, err
		}
	}

	item := &model.CartItem{
		ID:                row.ID,
		ProductID:         row.ProductID,
		ProductName:       row.ProductName,
		Quantity:          row.Quantity,
		Notes:             row.Notes,
		Modifiers:         modifiers,
		OriginalUnitPrice: row.OriginalUnitPrice,
		UnitPrice:         row.UnitPrice,
		LineTotal:         row.LineTotal,
	}

	if row.PromotionID != nil {
		item.Promotion = &model.AppliedPromotion{
			PromotionID:    *row.PromotionID,
			Name:           deref(row.PromotionName),
			Kind:           model.PromotionKind(deref(row.PromotionKind)),
			Value:          derefF(row.PromotionValue),
			OriginalPrice:  row.OriginalUnitPrice,
			DiscountAmount: derefF(row.DiscountAmount),
			FinalPrice:     row.UnitPrice,
		}
	}

	return item, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefF(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
