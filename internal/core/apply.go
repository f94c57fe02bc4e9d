package core

import (
	"fmt"
	"slices"
)

// ApplyChange replays one change onto s. Stores without their own schema use it
// to keep a persisted snapshot in step with the coordinator.
func ApplyChange(s *Snapshot, ch Change) error {
	switch ch.Table {
	case TableCustomers:
		s.Customers = applyTo(s.Customers, ch, func(v Customer) string { return v.ID })
	case TableProducts:
		s.Products = applyTo(s.Products, ch, func(v Product) string { return v.ID })
	case TableOrders:
		s.Orders = applyTo(s.Orders, ch, func(v Order) string { return v.ID })
	case TableOrderItems:
		s.OrderItems = applyTo(s.OrderItems, ch, func(v OrderItem) string { return v.ID })
	case TableProductionOrders:
		s.ProductionOrders = applyTo(s.ProductionOrders, ch, func(v ProductionOrder) string { return v.ID })
	case TablePayments:
		s.Payments = applyTo(s.Payments, ch, func(v Payment) string { return v.ID })
	case TableUsers:
		s.Users = applyTo(s.Users, ch, func(v User) string { return v.ID })
	case TableSuggestions:
		s.Suggestions = applyTo(s.Suggestions, ch, func(v ProductionSuggestion) string { return v.ID })
	default:
		return fmt.Errorf("unknown table %q", ch.Table)
	}
	return nil
}

func applyTo[T any](rows []T, ch Change, id func(T) string) []T {
	i := slices.IndexFunc(rows, func(v T) bool { return id(v) == ch.RecordID })
	if ch.Action == ActionDelete {
		if i >= 0 {
			return slices.Delete(rows, i, i+1)
		}
		return rows
	}
	rec, ok := ch.Record.(T)
	if !ok {
		return rows
	}
	if i >= 0 {
		rows[i] = rec
		return rows
	}
	return append(rows, rec)
}

// ApplyBatch replays a whole batch onto s, including tombstones and logs.
// Replace overwrites the record tables only; s keeps its logs and tombstones.
func ApplyBatch(s *Snapshot, b Batch) (*Snapshot, error) {
	if b.Replace != nil {
		r := b.Replace.Clone()
		r.Logs, r.Deleted = s.Logs, s.Deleted
		s = r
	}
	for _, ch := range b.Changes {
		if err := ApplyChange(s, ch); err != nil {
			return nil, err
		}
	}
	if s.Deleted == nil {
		s.Deleted = DeletedSet{}
	}
	for id, at := range b.Tombstones {
		s.Deleted[id] = at
	}
	for _, id := range b.Pruned {
		delete(s.Deleted, id)
	}
	s.Logs = append(s.Logs, b.Logs...)
	return s, nil
}
