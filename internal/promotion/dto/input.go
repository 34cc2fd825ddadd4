package dto

import "time"

type CreatePromotionInput struct {
	RestaurantID string
	ProductID    string
	Name         string
	Kind         string
	Value        float64
	StartsAt     time.Time
	EndsAt       time.Time
	StoreIDs     []string
}

type UpdatePromotionInput struct {
	ID           string
	RestaurantID string
	Name         string
	Kind         string
	Value        float64
	StartsAt     time.Time
	EndsAt       time.Time
	StoreIDs     []string
}
