package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"factory-erp/internal/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReturnNotesPrefix marks orders created by CreateReturn.
const ReturnNotesPrefix = "[RETURN]"

// Coordinator owns the application state. Every mutation runs under one lock,
// works on a copy of the snapshot, persists a Batch through the Store and only
// then swaps the copy in. Mutations that change stock or open demand re-run
// Allocate before committing.
type Coordinator struct {
	mu    sync.Mutex
	state *Snapshot
	store Store
	log   logger.Logger
	now   func() time.Time
	newID func(prefix string) string
	// onCommit runs after every successful commit, outside the lock.
	onCommit func()
}

type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithIDGenerator replaces the uuid-based record id generator.
func WithIDGenerator(gen func(prefix string) string) Option {
	return func(c *Coordinator) { c.newID = gen }
}

// WithCommitHook registers fn to run after each persisted mutation.
func WithCommitHook(fn func()) Option {
	return func(c *Coordinator) { c.onCommit = fn }
}

func NewCoordinator(store Store, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		state: NewSnapshot(),
		store: store,
		log:   log,
		now:   time.Now,
		newID: func(prefix string) string { return prefix + "-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Load replaces the in-memory state with what the store holds.
func (c *Coordinator) Load(ctx context.Context) error {
	snap, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	if snap.Deleted == nil {
		snap.Deleted = DeletedSet{}
	}
	if len(snap.PaymentMethods) == 0 {
		snap.PaymentMethods = NewSnapshot().PaymentMethods
	}
	c.mu.Lock()
	c.state = snap
	c.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current state for read-only use.
func (c *Coordinator) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// mutate runs fn against a copy of the state and commits the resulting batch.
// If fn fails or the store rejects the batch, the state is left untouched.
func (c *Coordinator) mutate(ctx context.Context, fn func(s *Snapshot, b *Batch) error) error {
	committed, err := c.commit(ctx, fn)
	if committed && c.onCommit != nil {
		c.onCommit()
	}
	return err
}

func (c *Coordinator) commit(ctx context.Context, fn func(s *Snapshot, b *Batch) error) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.state.Clone()
	var b Batch
	if err := fn(next, &b); err != nil {
		return false, err
	}
	if b.Empty() {
		return false, nil
	}
	for id, at := range b.Tombstones {
		next.Deleted[id] = at
	}
	for _, id := range b.Pruned {
		delete(next.Deleted, id)
	}
	next.Logs = append(next.Logs, b.Logs...)

	if err := c.store.Commit(ctx, b); err != nil {
		return false, fmt.Errorf("failed to commit changes: %w", err)
	}
	c.state = next
	return true, nil
}

// reallocate runs the allocation engine over s and records every promotion.
func (c *Coordinator) reallocate(s *Snapshot, b *Batch) {
	res := Allocate(s.Orders, s.Products, s.OrderItems)
	if !res.Changed() {
		return
	}
	s.Orders = res.Orders
	for _, id := range res.Promoted {
		o, _ := s.Order(id)
		b.update(TableOrders, id, o)
	}
	c.log.Info("orders promoted to ready", logger.Int("count", len(res.Promoted)), logger.Any("orders", res.Promoted))
}

func (c *Coordinator) logAction(b *Batch, user, action string, table Table, recordID, notes string) {
	b.audit(AuditLog{
		ID:        c.newID("LOG"),
		Timestamp: c.now(),
		User:      user,
		Action:    action,
		TableName: string(table),
		RecordID:  recordID,
		Notes:     notes,
	})
}

// ── Orders ───────────────────────────────────────────────────────────────────

// UpdateOrderStatus applies a manual status change.
// Allowed: Open → InProduction, and any non-terminal status → Cancelled | Delivered.
// Ready can only be reached through allocation.
func (c *Coordinator) UpdateOrderStatus(ctx context.Context, orderID string, status OrderStatus, user string) (*Order, error) {
	var out Order
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.orderIndex(orderID)
		if i < 0 {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		o := &s.Orders[i]
		if err := checkTransition(o.Status, status); err != nil {
			return fmt.Errorf("order %s: %w", orderID, err)
		}
		if o.Status == status {
			out = *o
			return nil
		}

		o.Status = status
		if status == OrderStatusDelivered {
			o.MarkRomaneio(c.now())
		}
		b.update(TableOrders, o.ID, *o)
		c.logAction(b, user, "Status", TableOrders, o.ID, string(status))

		if status.IsTerminal() {
			c.reallocate(s, b)
		}
		out, _ = s.Order(orderID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func checkTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("unknown status %q: %w", to, ErrValidation)
	}
	if to == OrderStatusReady {
		return ErrReadyIsDerived
	}
	if from.IsTerminal() {
		return ErrTerminalStatus
	}
	if from == to {
		return nil
	}
	switch to {
	case OrderStatusCancelled, OrderStatusDelivered:
		return nil
	case OrderStatusInProduction:
		if from == OrderStatusOpen {
			return nil
		}
	}
	return fmt.Errorf("%s → %s: %w", from, to, ErrInvalidTransition)
}

// CreateOrder registers a new Open order and runs allocation, so an order that
// can be served from stock comes back Ready.
func (c *Coordinator) CreateOrder(ctx context.Context, in NewOrderInput, user string) (*Order, []OrderItem, error) {
	var (
		out   Order
		items []OrderItem
	)
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		order, lines, err := c.buildOrder(s, in, user)
		if err != nil {
			return err
		}
		order.Status = OrderStatusOpen

		s.Orders = append(s.Orders, order)
		s.OrderItems = append(s.OrderItems, lines...)
		b.create(TableOrders, order.ID, order)
		for _, it := range lines {
			b.create(TableOrderItems, it.ID, it)
		}
		c.logAction(b, user, "Create", TableOrders, order.ID, fmt.Sprintf("order #%d", order.OrderNumber))

		c.reallocate(s, b)
		out, _ = s.Order(order.ID)
		items = lines
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &out, items, nil
}

// CreateReturn records goods coming back from a customer. The return is stored
// as a Delivered order with negative unit prices, and the returned quantities
// go back into stock.
func (c *Coordinator) CreateReturn(ctx context.Context, in NewOrderInput, user string) (*Order, error) {
	var out Order
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		order, lines, err := c.buildOrder(s, in, user)
		if err != nil {
			return err
		}
		order.Status = OrderStatusDelivered
		order.Notes = strings.TrimSpace(ReturnNotesPrefix + " " + in.Notes)
		order.Installments = nil
		for i := range lines {
			lines[i].UnitPrice = lines[i].UnitPrice.Abs().Neg()
		}

		returned := map[string]int{}
		for _, it := range lines {
			returned[it.ProductID] += it.Quantity
		}

		s.Orders = append(s.Orders, order)
		s.OrderItems = append(s.OrderItems, lines...)
		b.create(TableOrders, order.ID, order)
		for _, it := range lines {
			b.create(TableOrderItems, it.ID, it)
		}
		for i := range s.Products {
			if qty, ok := returned[s.Products[i].ID]; ok {
				s.Products[i].CurrentStock += qty
				b.update(TableProducts, s.Products[i].ID, s.Products[i])
			}
		}
		c.logAction(b, user, "Return", TableOrders, order.ID, "items credited to customer")

		c.reallocate(s, b)
		out = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// buildOrder validates input and prices every line. The order is not yet added to s.
func (c *Coordinator) buildOrder(s *Snapshot, in NewOrderInput, user string) (Order, []OrderItem, error) {
	if len(in.Lines) == 0 {
		return Order{}, nil, fmt.Errorf("order has no lines: %w", ErrValidation)
	}
	var customer *Customer
	if in.CustomerID != "" {
		cust, ok := s.Customer(in.CustomerID)
		if !ok {
			return Order{}, nil, fmt.Errorf("customer %s: %w", in.CustomerID, ErrNotFound)
		}
		customer = &cust
	}

	order := Order{
		ID:               c.newID("O"),
		OrderNumber:      s.NextOrderNumber(),
		CustomerID:       in.CustomerID,
		OrderDate:        c.now(),
		DeliveryDate:     in.DeliveryDate,
		SendToProduction: in.SendToProduction,
		PaymentMethodID:  in.PaymentMethodID,
		CreatedBy:        user,
		Notes:            in.Notes,
		Installments:     in.Installments,
	}

	lines := make([]OrderItem, 0, len(in.Lines))
	for n, l := range in.Lines {
		if l.Quantity <= 0 {
			return Order{}, nil, fmt.Errorf("line %d: quantity must be positive: %w", n+1, ErrValidation)
		}
		p, ok := s.Product(l.ProductID)
		if !ok {
			return Order{}, nil, fmt.Errorf("line %d: product %s: %w", n+1, l.ProductID, ErrNotFound)
		}
		price := l.UnitPrice
		if price.IsZero() {
			price = customer.PriceFor(p)
		}
		cost := p.CostPrice
		lines = append(lines, OrderItem{
			ID:        c.newID("I"),
			OrderID:   order.ID,
			ProductID: p.ID,
			Quantity:  l.Quantity,
			UnitPrice: price,
			CostPrice: &cost,
		})
	}
	return order, lines, nil
}

// DeleteOrder removes an order and its items. Their ids are tombstoned so a
// later pull does not bring them back.
func (c *Coordinator) DeleteOrder(ctx context.Context, orderID, user string) error {
	return c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.orderIndex(orderID)
		if i < 0 {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		held := s.Orders[i].Status == OrderStatusReady || s.Orders[i].Status == OrderStatusInProduction
		now := c.now()

		s.Orders = append(s.Orders[:i], s.Orders[i+1:]...)
		kept := s.OrderItems[:0]
		for _, it := range s.OrderItems {
			if it.OrderID == orderID {
				b.remove(TableOrderItems, it.ID, now)
				continue
			}
			kept = append(kept, it)
		}
		s.OrderItems = kept
		b.remove(TableOrders, orderID, now)
		c.logAction(b, user, "Delete", TableOrders, orderID, "")

		// Removing a Ready or InProduction order frees the stock it held.
		if held {
			c.reallocate(s, b)
		}
		return nil
	})
}

// SaveSignature stores the customer's delivery signature.
func (c *Coordinator) SaveSignature(ctx context.Context, orderID, signature, user string) (*Order, error) {
	var out Order
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.orderIndex(orderID)
		if i < 0 {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		s.Orders[i].DeliverySignature = signature
		b.update(TableOrders, orderID, s.Orders[i])
		c.logAction(b, user, "Signature", TableOrders, orderID, "")
		out = s.Orders[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateRomaneio produces the dispatch manifest for a Ready or Delivered order.
// The first generation fixes the manifest timestamp; a Ready order is marked Delivered.
func (c *Coordinator) GenerateRomaneio(ctx context.Context, orderID, user string) (*Romaneio, error) {
	var out Romaneio
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.orderIndex(orderID)
		if i < 0 {
			return fmt.Errorf("order %s: %w", orderID, ErrNotFound)
		}
		o := &s.Orders[i]
		if o.Status != OrderStatusReady && o.Status != OrderStatusDelivered {
			return fmt.Errorf("order %s is %s: %w", orderID, o.Status, ErrInvalidTransition)
		}

		changed := o.MarkRomaneio(c.now())
		dispatched := o.Status == OrderStatusReady
		if dispatched {
			o.Status = OrderStatusDelivered
			changed = true
		}
		if changed {
			b.update(TableOrders, o.ID, *o)
			c.logAction(b, user, "Romaneio", TableOrders, o.ID, string(o.Status))
		}
		out = buildRomaneio(s, *o)
		if dispatched {
			c.reallocate(s, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func buildRomaneio(s *Snapshot, o Order) Romaneio {
	r := Romaneio{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		OrderDate:    o.OrderDate,
		DeliveryDate: o.DeliveryDate,
		Signed:       o.DeliverySignature != "",
		Total:        decimal.Zero,
	}
	if o.RomaneioDate != nil {
		r.EmittedAt = *o.RomaneioDate
	}
	if cust, ok := s.Customer(o.CustomerID); ok {
		r.Customer = &cust
	}
	for _, it := range s.ItemsFor(o.ID) {
		line := RomaneioLine{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal(),
		}
		if p, ok := s.Product(it.ProductID); ok {
			line.ProductName = p.Name
			line.Barcode = p.Barcode
		}
		r.Lines = append(r.Lines, line)
		r.Total = r.Total.Add(line.LineTotal)
	}
	for _, p := range s.Payments {
		if p.OrderID == o.ID && (r.PaidAt == nil || p.PaymentDate.After(*r.PaidAt)) {
			at := p.PaymentDate
			r.PaidAt = &at
		}
	}
	return r
}

// ── Stock ────────────────────────────────────────────────────────────────────

// AdjustStock sets a product's physical count and minimum after a manual count.
func (c *Coordinator) AdjustStock(ctx context.Context, productID string, currentStock, minimumStock int, user string) (*Product, error) {
	if currentStock < 0 || minimumStock < 0 {
		return nil, fmt.Errorf("stock levels must not be negative: %w", ErrValidation)
	}
	var out Product
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productIndex(productID)
		if i < 0 {
			return fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		p := &s.Products[i]
		before := p.CurrentStock
		p.CurrentStock = currentStock
		p.MinimumStock = minimumStock
		b.update(TableProducts, p.ID, *p)
		c.logAction(b, user, "Stock", TableProducts, p.ID, fmt.Sprintf("%d → %d", before, currentStock))
		out = *p

		c.reallocate(s, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunAllocation re-runs the allocation engine on demand and returns how many
// orders were promoted. Nothing is written when no order changes.
func (c *Coordinator) RunAllocation(ctx context.Context, user string) (int, error) {
	promoted := 0
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		c.reallocate(s, b)
		promoted = len(b.Changes)
		if promoted > 0 {
			c.logAction(b, user, "run allocation", TableOrders, "", fmt.Sprintf("%d orders promoted", promoted))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}

// ── Synchronisation ──────────────────────────────────────────────────────────

// ApplyRemoteSnapshot replaces local tables with rows pulled from the remote
// store, drops rows whose ids were deleted locally, and re-runs allocation.
// A nil table in remote means the sheet was absent and the local table is kept.
// It returns the number of orders promoted by the post-pull allocation.
func (c *Coordinator) ApplyRemoteSnapshot(ctx context.Context, remote *Snapshot) (int, error) {
	promoted := 0
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		keep := func(id string) bool { return !s.Deleted.Has(id) }

		if remote.Customers != nil {
			s.Customers = filterByID(remote.Customers, func(v Customer) string { return v.ID }, keep)
		}
		if remote.Products != nil {
			s.Products = filterByID(remote.Products, func(v Product) string { return v.ID }, keep)
		}
		if remote.Orders != nil {
			s.Orders = filterByID(remote.Orders, func(v Order) string { return v.ID }, keep)
		}
		if remote.OrderItems != nil {
			s.OrderItems = filterByID(remote.OrderItems, func(v OrderItem) string { return v.ID }, keep)
		}
		if remote.ProductionOrders != nil {
			s.ProductionOrders = filterByID(remote.ProductionOrders, func(v ProductionOrder) string { return v.ID }, keep)
		}
		if remote.Payments != nil {
			s.Payments = filterByID(remote.Payments, func(v Payment) string { return v.ID }, keep)
		}
		if remote.Users != nil {
			s.Users = mergeUsers(s.Users, filterByID(remote.Users, func(v User) string { return v.ID }, keep))
		}

		before := len(b.Changes)
		c.reallocate(s, b)
		promoted = len(b.Changes) - before

		b.Replace = s
		return nil
	})
	if err != nil {
		return 0, err
	}
	return promoted, nil
}

// mergeUsers keeps local password hashes, which never leave this process.
func mergeUsers(local, remote []User) []User {
	hashes := make(map[string]string, len(local))
	for _, u := range local {
		hashes[u.ID] = u.PasswordHash
	}
	for i := range remote {
		if remote[i].PasswordHash == "" {
			remote[i].PasswordHash = hashes[remote[i].ID]
		}
	}
	return remote
}

// filterByID drops rejected ids and duplicate ids; the last duplicate wins
// and takes the position of the first.
func filterByID[T any](rows []T, id func(T) string, keep func(string) bool) []T {
	pos := make(map[string]int, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		key := id(r)
		if !keep(key) {
			continue
		}
		if i, ok := pos[key]; ok {
			out[i] = r
			continue
		}
		pos[key] = len(out)
		out = append(out, r)
	}
	return out
}

// PruneTombstones forgets deletions recorded before cutoff and returns how many were dropped.
func (c *Coordinator) PruneTombstones(ctx context.Context, cutoff time.Time) (int, error) {
	n := 0
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		b.Pruned = s.Deleted.Expired(cutoff)
		n = len(b.Pruned)
		return nil
	})
	return n, err
}
