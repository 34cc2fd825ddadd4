package model

// CartItem is one product line inside a running order. The ID is synthesized
// so duplicate products with different notes/modifiers stay distinct lines.
type CartItem struct {
	ID                string            `json:"id"`
	ProductID         string            `json:"product_id"`
	ProductName       string            `json:"product_name"`
	Quantity          int               `json:"quantity"`
	Notes             string            `json:"notes,omitempty"`
	Modifiers         []string          `json:"modifiers,omitempty"`
	OriginalUnitPrice float64           `json:"original_unit_price"`
	UnitPrice         float64           `json:"unit_price"`
	LineTotal         float64           `json:"line_total"`
	Promotion         *AppliedPromotion `json:"promotion,omitempty"`
}

func (i *CartItem) Clone() CartItem {
	out := *i
	if i.Modifiers != nil {
		out.Modifiers = append([]string(nil), i.Modifiers...)
	}
	if i.Promotion != nil {
		promo := *i.Promotion
		out.Promotion = &promo
	}
	return out
}

// Cart holds the accumulated lines of an order and their running total.
// Invariant: Total == sum of LineTotal over Items.
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

func (c *Cart) Clone() Cart {
	out := Cart{Total: c.Total}
	if c.Items != nil {
		out.Items = make([]CartItem, len(c.Items))
		for i := range c.Items {
			out.Items[i] = c.Items[i].Clone()
		}
	}
	return out
}

func (c *Cart) FindItem(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}
