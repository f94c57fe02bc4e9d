package app

import (
	"factory-erp/internal/core"
	"factory-erp/internal/syncer"

	"github.com/shopspring/decimal"
)

// UserSession is the authenticated identity handed to adapters.
type UserSession struct {
	UserID      string            `json:"userId"`
	Name        string            `json:"name"`
	Email       string            `json:"email"`
	IsAdmin     bool              `json:"isAdmin"`
	Permissions []core.Permission `json:"permissions"`
}

// Can reports whether the session may access screen p.
func (s *UserSession) Can(p core.Permission) bool {
	if s.IsAdmin {
		return true
	}
	for _, have := range s.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// OrderResult is returned by order lifecycle operations.
type OrderResult struct {
	Order   core.Order       `json:"order"`
	Items   []core.OrderItem `json:"items"`
	Total   decimal.Decimal  `json:"total"`
	Paid    decimal.Decimal  `json:"paid"`
	Balance decimal.Decimal  `json:"balance"`
}

// OrderListResult is returned by ListOrders.
type OrderListResult struct {
	Orders []core.Order `json:"orders"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels   []core.StockLevel `json:"levels"`
	LowStock int               `json:"lowStock"`
}

// SyncResult is returned by PullNow.
type SyncResult = syncer.PullResult

// SyncStatusResult reports the outbox backlog and the last pull.
type SyncStatusResult struct {
	Outbox      core.OutboxStats   `json:"outbox"`
	LastPull    *syncer.PullResult `json:"lastPull,omitempty"`
	LastError   string             `json:"lastError,omitempty"`
	AutoSync    bool               `json:"autoSync"`
	PullEnabled bool               `json:"pullEnabled"`
}
