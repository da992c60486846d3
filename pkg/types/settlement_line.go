package types

// SettlementOrderLine is the per-order audit line embedded in a guide's
// locked settlement row. It is a snapshot taken at lock time and never
// updated afterwards.
type SettlementOrderLine struct {
	OrderID   string `json:"order_id"`
	TourTitle string `json:"tour_title"`
	Amount    int64  `json:"amount"`
}

// SettlementOrderLines stores the capped audit lines as a jsonb column.
type SettlementOrderLines []SettlementOrderLine
