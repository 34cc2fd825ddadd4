package model

// Product is a read-only view of the catalog service's product. The order
// service never mutates it; price and name are snapshotted into cart lines
// at the moment an item is added.
type Product struct {
	BaseModel
	RestaurantID string  `db:"restaurant_id" json:"restaurant_id"`
	CategoryID   *string `db:"category_id" json:"category_id"` // Nullable
	Name         string  `db:"name" json:"name"`
	Price        float64 `db:"price" json:"price"`
	StockQty     float64 `db:"stock_qty" json:"stock_qty"`
	IsAvailable  bool    `db:"is_available" json:"is_available"`
}
