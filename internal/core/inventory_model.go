package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. CurrentStock is the physical count; it changes only
// through stock adjustment, production completion, or return intake.
// MinimumStock is a reorder threshold used by reports; it never blocks allocation.
type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Barcode      string          `json:"barcode"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	CostPrice    decimal.Decimal `json:"costPrice"`
	CurrentStock int             `json:"currentStock"`
	MinimumStock int             `json:"minimumStock"`
}

// StockLevel is a read view of a product with its committed and free quantities.
type StockLevel struct {
	ProductID    string `json:"productId"`
	ProductName  string `json:"productName"`
	Barcode      string `json:"barcode"`
	OnHand       int    `json:"onHand"`
	Committed    int    `json:"committed"`
	Available    int    `json:"available"` // = OnHand - Committed
	MinimumStock int    `json:"minimumStock"`
	LowStock     bool   `json:"lowStock"`
}

type ProductionStatus string

const (
	ProductionPending   ProductionStatus = "Pendente"
	ProductionProducing ProductionStatus = "Produzindo"
	ProductionFinished  ProductionStatus = "Finalizado"
)

type ProductionPriority string

const (
	PriorityImmediate ProductionPriority = "Imediato"
	PriorityToday     ProductionPriority = "Para Hoje"
	PriorityTomorrow  ProductionPriority = "Para Amanhã"
	PriorityStock     ProductionPriority = "Estoque"
)

// Valid reports whether p is a known priority.
func (p ProductionPriority) Valid() bool {
	switch p {
	case PriorityImmediate, PriorityToday, PriorityTomorrow, PriorityStock:
		return true
	}
	return false
}

// ProductionOrder is a batch to be produced for a product. Finishing it
// adds Produced units to the product's stock.
type ProductionOrder struct {
	ID             string             `json:"id"`
	OrderID        string             `json:"orderId,omitempty"`
	ProductID      string             `json:"productId"`
	Quantity       int                `json:"quantity"`
	Produced       int                `json:"produced"`
	Priority       ProductionPriority `json:"priority"`
	Status         ProductionStatus   `json:"status"`
	StartDate      *time.Time         `json:"startDate,omitempty"`
	CompletionDate *time.Time         `json:"completionDate,omitempty"`
	CreationDate   time.Time          `json:"creationDate"`
}

// Remaining is the quantity still to be produced.
func (p ProductionOrder) Remaining() int {
	if p.Produced >= p.Quantity {
		return 0
	}
	return p.Quantity - p.Produced
}

type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "Pendente"
	SuggestionApproved SuggestionStatus = "Aprovado"
	SuggestionRejected SuggestionStatus = "Rejeitado"
)

// NeedReason explains why a production need exists.
type NeedReason string

const (
	NeedForOrders  NeedReason = "orders"
	NeedForMinimum NeedReason = "minimum"
)

// ProductionNeed is the computed shortfall for one product.
type ProductionNeed struct {
	ProductID      string     `json:"productId"`
	ProductName    string     `json:"productName"`
	OpenDemand     int        `json:"openDemand"`
	FreeStock      int        `json:"freeStock"`
	Incoming       int        `json:"incoming"`
	ForOrders      int        `json:"forOrders"`
	ForMinimum     int        `json:"forMinimum"`
	TotalQuantity  int        `json:"totalQuantity"`
	Reason         NeedReason `json:"reason"`
}

// ProductionSuggestion is a proposed production batch awaiting approval.
type ProductionSuggestion struct {
	ID                string             `json:"id"`
	ProductID         string             `json:"productId"`
	SuggestedQuantity int                `json:"suggestedQuantity"`
	Priority          ProductionPriority `json:"priority"`
	SuggestionStatus  SuggestionStatus   `json:"suggestionStatus"`
	Reason            string             `json:"reason,omitempty"`
	CreatedBy         string             `json:"createdBy"`
	SuggestionDate    time.Time          `json:"suggestionDate"`
}
