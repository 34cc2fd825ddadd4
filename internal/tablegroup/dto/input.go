package dto

type OpenGroupInput struct {
	RestaurantID string
	StoreID      *string
	ServerID     string
	TableIDs     []string
}

type ItemInput struct {
	ProductID string
	Quantity  int
	Notes     string
	Modifiers []string
}

type AddItemsInput struct {
	RestaurantID string
	GroupID      string
	Items        []ItemInput
}
