package settlement

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hyeonlabs/guideport-backend/pkg/types"
)

// OrderInput is the slice of an order the calculator needs.
type OrderInput struct {
	OrderID   uuid.UUID
	GuideID   uuid.UUID
	TourTitle string
	Amount    int64
}

// GuideAggregate is one guide's computed share of a period.
type GuideAggregate struct {
	GuideID    uuid.UUID
	OrderCount int
	Gross      int64
	Fee        int64
	Net        int64
	// OrderLines holds the contributing orders for audit, capped by the
	// caller-supplied limit. Totals are computed over all orders regardless.
	OrderLines types.SettlementOrderLines
}

// Totals are the run-level sums across every guide aggregate.
type Totals struct {
	OrderCount int
	GuideCount int
	Gross      int64
	Fee        int64
	Net        int64
}

// CalcResult bundles the per-guide aggregates with the grand totals.
type CalcResult struct {
	Guides []GuideAggregate
	Totals Totals
}

var oneHundred = decimal.NewFromInt(100)

// commissionFee rounds half-up on the fee only; net absorbs the remainder.
func commissionFee(gross int64, commissionPct int) int64 {
	return decimal.NewFromInt(gross).
		Mul(decimal.NewFromInt(int64(commissionPct))).
		Div(oneHundred).
		Round(0).
		IntPart()
}

// Calculate groups confirmed orders by guide and computes gross, fee and net
// per guide plus grand totals. Totals are sums of the per-guide figures, so
// the per-guide nets always add up to the total net exactly. Empty input
// yields zero totals and no groups.
func Calculate(orders []OrderInput, commissionPct int, auditLineCap int) CalcResult {
	groups := make(map[uuid.UUID]*GuideAggregate)
	var ordered []uuid.UUID

	for _, order := range orders {
		agg, ok := groups[order.GuideID]
		if !ok {
			agg = &GuideAggregate{GuideID: order.GuideID}
			groups[order.GuideID] = agg
			ordered = append(ordered, order.GuideID)
		}
		agg.OrderCount++
		agg.Gross += order.Amount
		if auditLineCap <= 0 || len(agg.OrderLines) < auditLineCap {
			agg.OrderLines = append(agg.OrderLines, types.SettlementOrderLine{
				OrderID:   order.OrderID.String(),
				TourTitle: order.TourTitle,
				Amount:    order.Amount,
			})
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].String() < ordered[j].String()
	})

	result := CalcResult{Guides: make([]GuideAggregate, 0, len(ordered))}
	for _, guideID := range ordered {
		agg := groups[guideID]
		agg.Fee = commissionFee(agg.Gross, commissionPct)
		agg.Net = agg.Gross - agg.Fee

		result.Totals.OrderCount += agg.OrderCount
		result.Totals.Gross += agg.Gross
		result.Totals.Fee += agg.Fee
		result.Totals.Net += agg.Net
		result.Guides = append(result.Guides, *agg)
	}
	result.Totals.GuideCount = len(result.Guides)
	return result
}
