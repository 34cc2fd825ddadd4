package dto

import "time"

// CloseResult is the immutable outcome of checking a group out.
type CloseResult struct {
	GroupID    string    `json:"group_id"`
	FinalTotal float64   `json:"final_total"`
	ClosedAt   time.Time `json:"closed_at"`
}
