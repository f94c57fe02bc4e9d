package core

import (
	"context"
	"time"
)

// Table identifies a synchronised collection. Values are the remote sheet names.
type Table string

const (
	TableCustomers        Table = "Clientes"
	TableProducts         Table = "Produtos"
	TableOrders           Table = "Pedidos"
	TableOrderItems       Table = "Itens_Pedido"
	TableProductionOrders Table = "Producao"
	TablePayments         Table = "Pagamentos"
	TableUsers            Table = "Usuarios"
	TableSuggestions      Table = "Sugestoes"
)

// SyncedTables lists the tables that exist in the remote workbook.
var SyncedTables = []Table{
	TableCustomers, TableProducts, TableOrders, TableOrderItems,
	TableProductionOrders, TablePayments, TableUsers,
}

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Change is one record-level mutation to be persisted and pushed.
// Record holds the full value for create/update and is nil for delete.
type Change struct {
	Table    Table  `json:"table"`
	Action   Action `json:"action"`
	RecordID string `json:"recordId"`
	Record   any    `json:"record,omitempty"`
}

// Batch is everything one coordinator mutation writes. A Store applies it atomically.
type Batch struct {
	Changes    []Change
	Tombstones map[string]time.Time
	Pruned     []string
	Logs       []AuditLog
	// Replace, when set, overwrites every stored table with its contents before
	// Changes are applied. Used after a remote pull.
	Replace *Snapshot
}

func (b *Batch) create(t Table, id string, rec any) {
	b.Changes = append(b.Changes, Change{Table: t, Action: ActionCreate, RecordID: id, Record: rec})
}

func (b *Batch) update(t Table, id string, rec any) {
	b.Changes = append(b.Changes, Change{Table: t, Action: ActionUpdate, RecordID: id, Record: rec})
}

func (b *Batch) remove(t Table, id string, at time.Time) {
	b.Changes = append(b.Changes, Change{Table: t, Action: ActionDelete, RecordID: id})
	if b.Tombstones == nil {
		b.Tombstones = make(map[string]time.Time)
	}
	b.Tombstones[id] = at
}

func (b *Batch) audit(l AuditLog) {
	b.Logs = append(b.Logs, l)
}

// Empty reports whether the batch writes nothing.
func (b *Batch) Empty() bool {
	return len(b.Changes) == 0 && len(b.Tombstones) == 0 && len(b.Pruned) == 0 &&
		len(b.Logs) == 0 && b.Replace == nil
}

// OutboxEntry is a pending delivery of one Change to one sink.
type OutboxEntry struct {
	ID            int64
	Sink          string
	Change        Change
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	Failed        bool
	CreatedAt     time.Time
}

// OutboxStats counts undelivered entries.
type OutboxStats struct {
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// Store persists coordinator state. Commit must apply the whole batch or nothing,
// and must enqueue one outbox entry per change per configured sink in the same unit of work.
type Store interface {
	Load(ctx context.Context) (*Snapshot, error)
	Commit(ctx context.Context, b Batch) error
}
