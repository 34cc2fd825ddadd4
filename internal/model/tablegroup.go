package model

type TableGroupStatus string

const (
	TableGroupOpen   TableGroupStatus = "OPEN"
	TableGroupMerged TableGroupStatus = "MERGED"
	TableGroupClosed TableGroupStatus = "CLOSED"
)

// TableGroup is one or more physical tables billed as a single running
// order. It exclusively owns its cart lines: a line never belongs to two
// groups at once.
type TableGroup struct {
	BaseModel
	RestaurantID string           `json:"restaurant_id"`
	StoreID      *string          `json:"store_id,omitempty"`
	ServerID     string           `json:"server_id"`
	Status       TableGroupStatus `json:"status"`
	TableIDs     []string         `json:"table_ids"`
	Cart         Cart             `json:"cart"`
}

func (g *TableGroup) IsClosed() bool {
	return g.Status == TableGroupClosed
}

func (g *TableGroup) HasTable(tableID string) bool {
	for _, id := range g.TableIDs {
		if id == tableID {
			return true
		}
	}
	return false
}

// Clone deep-copies the group so callers can mutate a working copy and throw
// it away on failure, or hand out snapshots of closed groups.
func (g *TableGroup) Clone() *TableGroup {
	out := *g
	out.TableIDs = append([]string(nil), g.TableIDs...)
	out.Cart = g.Cart.Clone()
	if g.StoreID != nil {
		storeID := *g.StoreID
		out.StoreID = &storeID
	}
	return &out
}
