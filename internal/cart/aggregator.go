package cart

import (
	"math"
	"time"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/model"
	"github.com/fekuna/omnipos-order-service/internal/promotion"
	"github.com/google/uuid"
)

// Aggregator owns the cart-line mutation rules: idempotent merging of
// duplicate lines, per-line promotion re-evaluation, and total recomputation.
// It is stateless; callers hold the Cart and its lock.
type Aggregator struct{}

func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// AddItem adds quantity of a product to the cart. A line with the same
// product, notes, and modifiers is incremented instead of duplicated, so
// adding twice with quantity 1 equals adding once with quantity 2. Every
// line is re-evaluated against the supplied candidate promotions afterwards.
func (a *Aggregator) AddItem(c *model.Cart, product *model.Product, qty int, notes string, modifiers []string, promos map[string][]model.Promotion, at time.Time) (*model.CartItem, error) {
	if qty <= 0 {
		return nil, apperr.NewValidation("quantity must be a positive integer, got %d", qty)
	}

	var line *model.CartItem
	for i := range c.Items {
		existing := &c.Items[i]
		if existing.ProductID == product.ID && existing.Notes == notes && sameModifiers(existing.Modifiers, modifiers) {
			existing.Quantity += qty
			line = existing
			break
		}
	}

	if line == nil {
		c.Items = append(c.Items, model.CartItem{
			ID:                uuid.New().String(),
			ProductID:         product.ID,
			ProductName:       product.Name,
			Quantity:          qty,
			Notes:             notes,
			Modifiers:         append([]string(nil), modifiers...),
			OriginalUnitPrice: product.Price,
			UnitPrice:         product.Price,
		})
		line = &c.Items[len(c.Items)-1]
	}

	a.Recompute(c, promos, at)
	return line, nil
}

// RemoveItem deletes a line entirely. Quantity decrements below a merged
// line's count are deliberately not supported: callers must remove and
// re-add.
func (a *Aggregator) RemoveItem(c *model.Cart, itemID string, promos map[string][]model.Promotion, at time.Time) error {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			a.Recompute(c, promos, at)
			return nil
		}
	}
	return apperr.NewNotFound("cart item", itemID)
}

// Recompute re-runs the promotion evaluator on every line and restores the
// total invariant: Total == sum of final unit price x quantity.
func (a *Aggregator) Recompute(c *model.Cart, promos map[string][]model.Promotion, at time.Time) {
	total := 0.0
	for i := range c.Items {
		item := &c.Items[i]

		applied := promotion.Evaluate(item.ProductID, item.OriginalUnitPrice, promos[item.ProductID], at)
		item.Promotion = applied
		if applied != nil {
			item.UnitPrice = applied.FinalPrice
		} else {
			item.UnitPrice = item.OriginalUnitPrice
		}

		item.LineTotal = round2(item.UnitPrice * float64(item.Quantity))
		total += item.LineTotal
	}
	c.Total = round2(total)
}

func sameModifiers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
