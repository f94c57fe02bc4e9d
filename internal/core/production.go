package core

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"factory-erp/internal/logger"
)

// NewProductionInput describes a production batch to schedule.
type NewProductionInput struct {
	ProductID string             `json:"productId"`
	Quantity  int                `json:"quantity"`
	Priority  ProductionPriority `json:"priority"`
	OrderID   string             `json:"orderId,omitempty"`
}

// AddProductionOrder schedules a new Pending batch.
func (c *Coordinator) AddProductionOrder(ctx context.Context, in NewProductionInput, user string) (*ProductionOrder, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	if in.Priority == "" {
		in.Priority = PriorityStock
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q: %w", in.Priority, ErrValidation)
	}
	var out ProductionOrder
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		if _, ok := s.Product(in.ProductID); !ok {
			return fmt.Errorf("product %s: %w", in.ProductID, ErrNotFound)
		}
		if in.OrderID != "" {
			if _, ok := s.Order(in.OrderID); !ok {
				return fmt.Errorf("order %s: %w", in.OrderID, ErrNotFound)
			}
		}
		out = c.newProductionOrder(in)
		s.ProductionOrders = append(s.ProductionOrders, out)
		b.create(TableProductionOrders, out.ID, out)
		c.logAction(b, user, "Create", TableProductionOrders, out.ID, fmt.Sprintf("%d × %s", in.Quantity, in.ProductID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) newProductionOrder(in NewProductionInput) ProductionOrder {
	return ProductionOrder{
		ID:           c.newID("PR"),
		OrderID:      in.OrderID,
		ProductID:    in.ProductID,
		Quantity:     in.Quantity,
		Priority:     in.Priority,
		Status:       ProductionPending,
		CreationDate: c.now(),
	}
}

// ProduceForStock schedules a Stock-priority batch. A zero quantity takes the
// product's current production need.
func (c *Coordinator) ProduceForStock(ctx context.Context, productID string, quantity int, user string) (*ProductionOrder, error) {
	if quantity <= 0 {
		snap := c.Snapshot()
		for _, n := range ProductionNeeds(snap) {
			if n.ProductID == productID {
				quantity = n.TotalQuantity
			}
		}
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("product %s has no production need: %w", productID, ErrValidation)
	}
	return c.AddProductionOrder(ctx, NewProductionInput{ProductID: productID, Quantity: quantity, Priority: PriorityStock}, user)
}

// UpdateProductionStatus moves a batch through Pending → Producing → Finished.
// Finishing adds the produced quantity (default: the full batch) to stock and
// re-runs allocation. A Finished batch cannot change status again.
func (c *Coordinator) UpdateProductionStatus(ctx context.Context, id string, status ProductionStatus, produced *int, user string) (*ProductionOrder, error) {
	switch status {
	case ProductionPending, ProductionProducing, ProductionFinished:
	default:
		return nil, fmt.Errorf("unknown production status %q: %w", status, ErrValidation)
	}
	if produced != nil && *produced < 0 {
		return nil, fmt.Errorf("produced quantity must not be negative: %w", ErrValidation)
	}

	var out ProductionOrder
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productionIndex(id)
		if i < 0 {
			return fmt.Errorf("production order %s: %w", id, ErrNotFound)
		}
		po := &s.ProductionOrders[i]
		if po.Status == ProductionFinished {
			return fmt.Errorf("production order %s: %w", id, ErrTerminalStatus)
		}

		now := c.now()
		po.Status = status
		if produced != nil {
			po.Produced = *produced
		} else if status == ProductionFinished {
			po.Produced = po.Quantity
		}
		if status == ProductionProducing && po.StartDate == nil {
			po.StartDate = &now
		}
		if status == ProductionFinished && po.CompletionDate == nil {
			po.CompletionDate = &now
		}
		b.update(TableProductionOrders, po.ID, *po)
		c.logAction(b, user, "Production", TableProductionOrders, po.ID, string(status))
		out = *po

		if status != ProductionFinished {
			return nil
		}
		if j := s.productIndex(po.ProductID); j >= 0 {
			s.Products[j].CurrentStock += po.Produced
			b.update(TableProducts, s.Products[j].ID, s.Products[j])
		} else {
			c.log.Warn("finished production for unknown product", logger.String("product_id", po.ProductID))
		}
		c.reallocate(s, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) UpdateProductionPriority(ctx context.Context, id string, priority ProductionPriority, user string) (*ProductionOrder, error) {
	if !priority.Valid() {
		return nil, fmt.Errorf("unknown priority %q: %w", priority, ErrValidation)
	}
	return c.editProduction(ctx, id, user, "Priority", func(po *ProductionOrder) error {
		po.Priority = priority
		return nil
	})
}

// UpdateProductionQuantity changes the planned size of an unfinished batch.
func (c *Coordinator) UpdateProductionQuantity(ctx context.Context, id string, quantity int, user string) (*ProductionOrder, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive: %w", ErrValidation)
	}
	return c.editProduction(ctx, id, user, "Quantity", func(po *ProductionOrder) error {
		if po.Status == ProductionFinished {
			return fmt.Errorf("production order %s: %w", id, ErrTerminalStatus)
		}
		po.Quantity = quantity
		return nil
	})
}

func (c *Coordinator) editProduction(ctx context.Context, id, user, action string, edit func(*ProductionOrder) error) (*ProductionOrder, error) {
	var out ProductionOrder
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productionIndex(id)
		if i < 0 {
			return fmt.Errorf("production order %s: %w", id, ErrNotFound)
		}
		if err := edit(&s.ProductionOrders[i]); err != nil {
			return err
		}
		out = s.ProductionOrders[i]
		b.update(TableProductionOrders, id, out)
		c.logAction(b, user, action, TableProductionOrders, id, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Coordinator) DeleteProductionOrder(ctx context.Context, id, user string) error {
	return c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productionIndex(id)
		if i < 0 {
			return fmt.Errorf("production order %s: %w", id, ErrNotFound)
		}
		s.ProductionOrders = slices.Delete(s.ProductionOrders, i, i+1)
		b.remove(TableProductionOrders, id, c.now())
		c.logAction(b, user, "Delete", TableProductionOrders, id, "")
		return nil
	})
}

// ── Queries ──────────────────────────────────────────────────────────────────

var priorityRank = map[ProductionPriority]int{
	PriorityImmediate: 1,
	PriorityToday:     2,
	PriorityTomorrow:  3,
	PriorityStock:     4,
}

// ProductionQueue returns unfinished batches, most urgent first and newest
// first within a priority. An empty filter returns every priority.
func ProductionQueue(s *Snapshot, filter ProductionPriority) []ProductionOrder {
	var queue []ProductionOrder
	for _, po := range s.ProductionOrders {
		if po.Status == ProductionFinished {
			continue
		}
		if filter != "" && po.Priority != filter {
			continue
		}
		queue = append(queue, po)
	}
	slices.SortStableFunc(queue, func(a, b ProductionOrder) int {
		if c := cmp.Compare(rankOf(a.Priority), rankOf(b.Priority)); c != 0 {
			return c
		}
		return b.CreationDate.Compare(a.CreationDate)
	})
	return queue
}

func rankOf(p ProductionPriority) int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank) + 1
}

// ProductionLoad is the quantity of one product in active batches.
type ProductionLoad struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
}

// ActiveProduction sums Pending and Producing batches per product.
func ActiveProduction(s *Snapshot) []ProductionLoad {
	totals := map[string]int{}
	var ids []string
	for _, po := range s.ProductionOrders {
		if po.Status == ProductionFinished {
			continue
		}
		if _, seen := totals[po.ProductID]; !seen {
			ids = append(ids, po.ProductID)
		}
		totals[po.ProductID] += po.Quantity
	}
	out := make([]ProductionLoad, 0, len(ids))
	for _, id := range ids {
		load := ProductionLoad{ProductID: id, ProductName: "Unknown", Quantity: totals[id]}
		if p, ok := s.Product(id); ok {
			load.ProductName = p.Name
		}
		out = append(out, load)
	}
	return out
}
