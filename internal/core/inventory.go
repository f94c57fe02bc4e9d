package core

import (
	"context"
	"fmt"
	"slices"
)

// StockLevels reports, for every product, the quantity held by Open,
// InProduction and Ready orders and what remains free.
func StockLevels(s *Snapshot) []StockLevel {
	committed := NewCommitmentLedger(s.Orders, s.OrderItems,
		OrderStatusOpen, OrderStatusInProduction, OrderStatusReady)

	levels := make([]StockLevel, 0, len(s.Products))
	for _, p := range s.Products {
		held := committed.Committed(p.ID)
		available := p.CurrentStock - held
		levels = append(levels, StockLevel{
			ProductID:    p.ID,
			ProductName:  p.Name,
			Barcode:      p.Barcode,
			OnHand:       p.CurrentStock,
			Committed:    held,
			Available:    available,
			MinimumStock: p.MinimumStock,
			LowStock:     available < p.MinimumStock,
		})
	}
	return levels
}

// LowStock returns only the levels below their minimum.
func LowStock(s *Snapshot) []StockLevel {
	return slices.DeleteFunc(StockLevels(s), func(l StockLevel) bool { return !l.LowStock })
}

// ProductionNeeds computes, per product, how much must be produced to serve
// Open orders and to restore the minimum stock, after counting free stock
// (physical minus what Ready orders hold) and unfinished production.
// Products with no need are omitted.
func ProductionNeeds(s *Snapshot) []ProductionNeed {
	demand := NewCommitmentLedger(s.Orders, s.OrderItems, OrderStatusOpen)
	ready := NewCommitmentLedger(s.Orders, s.OrderItems, OrderStatusReady)

	incoming := map[string]int{}
	for _, po := range s.ProductionOrders {
		if po.Status != ProductionFinished {
			incoming[po.ProductID] += po.Quantity - po.Produced
		}
	}

	var needs []ProductionNeed
	for _, p := range s.Products {
		open := demand.Committed(p.ID)
		free := max(0, p.CurrentStock-ready.Committed(p.ID))
		in := incoming[p.ID]

		forOrders := max(0, open-free-in)
		forMinimum := max(0, p.MinimumStock-(free+forOrders+in))
		total := forOrders + forMinimum
		if total <= 0 {
			continue
		}
		reason := NeedForMinimum
		if forOrders > 0 {
			reason = NeedForOrders
		}
		needs = append(needs, ProductionNeed{
			ProductID:     p.ID,
			ProductName:   p.Name,
			OpenDemand:    open,
			FreeStock:     free,
			Incoming:      in,
			ForOrders:     forOrders,
			ForMinimum:    forMinimum,
			TotalQuantity: total,
			Reason:        reason,
		})
	}
	return needs
}

// SuggestionsFromNeeds drafts one suggestion per need. Shortfalls against open
// orders are due today; minimum-stock top-ups go to the Stock queue.
func SuggestionsFromNeeds(needs []ProductionNeed) []ProductionSuggestion {
	drafts := make([]ProductionSuggestion, 0, len(needs))
	for _, n := range needs {
		d := ProductionSuggestion{
			ProductID:         n.ProductID,
			SuggestedQuantity: n.TotalQuantity,
			Priority:          PriorityStock,
			Reason:            "below minimum stock",
		}
		if n.Reason == NeedForOrders {
			d.Priority = PriorityToday
			d.Reason = fmt.Sprintf("%d units short for open orders", n.ForOrders)
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// ── Suggestions ──────────────────────────────────────────────────────────────

// RecordSuggestions stores drafts as Pending suggestions. Products that already
// have a Pending suggestion are skipped.
func (c *Coordinator) RecordSuggestions(ctx context.Context, drafts []ProductionSuggestion, user string) ([]ProductionSuggestion, error) {
	var created []ProductionSuggestion
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		pending := map[string]bool{}
		for _, sg := range s.Suggestions {
			if sg.SuggestionStatus == SuggestionPending {
				pending[sg.ProductID] = true
			}
		}
		for _, d := range drafts {
			if pending[d.ProductID] || d.SuggestedQuantity <= 0 {
				continue
			}
			if _, ok := s.Product(d.ProductID); !ok {
				continue
			}
			if !d.Priority.Valid() {
				d.Priority = PriorityStock
			}
			d.ID = c.newID("SG")
			d.SuggestionStatus = SuggestionPending
			d.CreatedBy = user
			d.SuggestionDate = c.now()
			pending[d.ProductID] = true

			s.Suggestions = append(s.Suggestions, d)
			b.create(TableSuggestions, d.ID, d)
			created = append(created, d)
		}
		if len(created) > 0 {
			c.logAction(b, user, "Suggest", TableSuggestions, "", fmt.Sprintf("%d suggestions", len(created)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// ApproveSuggestion turns a Pending suggestion into a production order.
// A zero quantity keeps the suggested quantity.
func (c *Coordinator) ApproveSuggestion(ctx context.Context, id string, quantity int, user string) (*ProductionOrder, error) {
	if quantity < 0 {
		return nil, fmt.Errorf("quantity must not be negative: %w", ErrValidation)
	}
	var out ProductionOrder
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		sg, err := pendingSuggestion(s, id)
		if err != nil {
			return err
		}
		if quantity == 0 {
			quantity = sg.SuggestedQuantity
		}
		sg.SuggestionStatus = SuggestionApproved
		b.update(TableSuggestions, sg.ID, *sg)

		out = c.newProductionOrder(NewProductionInput{ProductID: sg.ProductID, Quantity: quantity, Priority: sg.Priority})
		s.ProductionOrders = append(s.ProductionOrders, out)
		b.create(TableProductionOrders, out.ID, out)
		c.logAction(b, user, "Approve", TableSuggestions, sg.ID, out.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) RejectSuggestion(ctx context.Context, id, user string) (*ProductionSuggestion, error) {
	var out ProductionSuggestion
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		sg, err := pendingSuggestion(s, id)
		if err != nil {
			return err
		}
		sg.SuggestionStatus = SuggestionRejected
		b.update(TableSuggestions, sg.ID, *sg)
		c.logAction(b, user, "Reject", TableSuggestions, sg.ID, "")
		out = *sg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func pendingSuggestion(s *Snapshot, id string) (*ProductionSuggestion, error) {
	i := s.suggestionIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
	}
	sg := &s.Suggestions[i]
	if sg.SuggestionStatus != SuggestionPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", id, sg.SuggestionStatus, ErrInvalidTransition)
	}
	return sg, nil
}
