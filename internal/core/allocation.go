package core

import (
	"slices"
)

// CommitmentLedger tracks, per product, the quantity already spoken for by
// orders whose stock claim is final.
type CommitmentLedger map[string]int

// NewCommitmentLedger seeds a ledger from the items of every order in one of the given statuses.
func NewCommitmentLedger(orders []Order, items []OrderItem, statuses ...OrderStatus) CommitmentLedger {
	counted := make(map[string]bool, len(orders))
	for _, o := range orders {
		if slices.Contains(statuses, o.Status) {
			counted[o.ID] = true
		}
	}
	ledger := CommitmentLedger{}
	for _, it := range items {
		if counted[it.OrderID] {
			ledger[it.ProductID] += it.Quantity
		}
	}
	return ledger
}

func (l CommitmentLedger) Committed(productID string) int {
	return l[productID]
}

// Reserve adds every item's quantity to the ledger.
func (l CommitmentLedger) Reserve(items []OrderItem) {
	for _, it := range items {
		l[it.ProductID] += it.Quantity
	}
}

// fits reports whether all items can be served from stock not yet committed.
// Lines for the same product are summed before the check. A missing product
// makes the whole set unfulfillable.
func (l CommitmentLedger) fits(items []OrderItem, stock map[string]int) bool {
	wanted := make(map[string]int, len(items))
	for _, it := range items {
		wanted[it.ProductID] += it.Quantity
	}
	for pid, qty := range wanted {
		onHand, ok := stock[pid]
		if !ok {
			return false
		}
		if onHand-l[pid] < qty {
			return false
		}
	}
	return true
}

// AllocationResult is the outcome of one allocation pass.
type AllocationResult struct {
	// Orders is the full order list with promotions applied, in input order.
	Orders []Order
	// Promoted holds the ids of orders moved to Ready, oldest first.
	Promoted []string
}

// Changed reports whether any order was promoted.
func (r AllocationResult) Changed() bool {
	return len(r.Promoted) > 0
}

// Allocate promotes Open orders to Ready, oldest first, when every one of their
// items can be covered by physical stock minus what Ready and InProduction
// orders already hold. Promotion is all-or-nothing per order and each promoted
// order reserves its quantities before the next order is considered.
//
// Allocate does not modify its arguments. Running it on its own output promotes nothing.
func Allocate(orders []Order, products []Product, items []OrderItem) AllocationResult {
	ledger := NewCommitmentLedger(orders, items, OrderStatusReady, OrderStatusInProduction)

	stock := make(map[string]int, len(products))
	for _, p := range products {
		stock[p.ID] = p.CurrentStock
	}

	byOrder := make(map[string][]OrderItem)
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}

	var open []int
	for i, o := range orders {
		if o.Status == OrderStatusOpen {
			open = append(open, i)
		}
	}
	slices.SortStableFunc(open, func(a, b int) int {
		return orders[a].OrderDate.Compare(orders[b].OrderDate)
	})

	result := AllocationResult{Orders: slices.Clone(orders)}
	for _, idx := range open {
		lines := byOrder[orders[idx].ID]
		if len(lines) == 0 {
			continue
		}
		if !ledger.fits(lines, stock) {
			continue
		}
		result.Orders[idx].Status = OrderStatusReady
		result.Promoted = append(result.Promoted, orders[idx].ID)
		ledger.Reserve(lines)
	}
	return result
}
