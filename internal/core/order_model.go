package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a sales order.
// Values match the status column of the remote spreadsheet.
//
//	Open → Ready            (allocation engine only)
//	Open → InProduction     (manual / production module)
//	Open|InProduction|Ready → Delivered | Cancelled   (terminal)
type OrderStatus string

const (
	OrderStatusOpen         OrderStatus = "Aberto"
	OrderStatusInProduction OrderStatus = "Em Produção"
	OrderStatusReady        OrderStatus = "Pronto"
	OrderStatusDelivered    OrderStatus = "Entregue"
	OrderStatusCancelled    OrderStatus = "Cancelado"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusOpen, OrderStatusInProduction, OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Installment is one scheduled payment of a sale on credit.
type Installment struct {
	Number  int             `json:"number"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate string          `json:"dueDate"`
	Status  string          `json:"status"` // "Pending" | "Paid"
}

// Order is a sales order header. Returns are stored as orders created directly
// in Delivered status with negative unit prices on their items.
type Order struct {
	ID                string        `json:"id"`
	OrderNumber       int           `json:"orderNumber"`
	CustomerID        string        `json:"customerId"`
	OrderDate         time.Time     `json:"orderDate"`
	DeliveryDate      *time.Time    `json:"deliveryDate,omitempty"`
	Status            OrderStatus   `json:"status"`
	SendToProduction  bool          `json:"sendToProduction"`
	PaymentMethodID   string        `json:"paymentMethodId"`
	CreatedBy         string        `json:"createdBy"`
	DeliverySignature string        `json:"deliverySignature,omitempty"`
	Notes             string        `json:"notes,omitempty"`
	Installments      []Installment `json:"installments,omitempty"`
	RomaneioDate      *time.Time    `json:"romaneioDate,omitempty"`
}

// MarkRomaneio fixes the dispatch-document timestamp. The first call wins;
// later calls leave the stored value untouched and return false.
func (o *Order) MarkRomaneio(at time.Time) bool {
	if o.RomaneioDate != nil {
		return false
	}
	t := at
	o.RomaneioDate = &t
	return true
}

// OrderItem is one line of an order.
// CostPrice is the product cost captured at sale time so margins stay stable.
type OrderItem struct {
	ID        string           `json:"id"`
	OrderID   string           `json:"orderId"`
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	UnitPrice decimal.Decimal  `json:"unitPrice"`
	CostPrice *decimal.Decimal `json:"costPrice,omitempty"`
}

// LineTotal is quantity × unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderLineInput is used when creating an order or a return.
// A zero UnitPrice means "price from the customer's pricing rules".
type OrderLineInput struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// NewOrderInput carries the user-supplied header fields of a new order.
type NewOrderInput struct {
	CustomerID       string           `json:"customerId"`
	DeliveryDate     *time.Time       `json:"deliveryDate,omitempty"`
	PaymentMethodID  string           `json:"paymentMethodId"`
	SendToProduction bool             `json:"sendToProduction"`
	Notes            string           `json:"notes,omitempty"`
	Installments     []Installment    `json:"installments,omitempty"`
	Lines            []OrderLineInput `json:"lines"`
}

// RomaneioLine is one line of a dispatch manifest.
type RomaneioLine struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Barcode     string          `json:"barcode"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// Romaneio is the delivery manifest for an order. EmittedAt is always the
// order's fixed RomaneioDate, so regenerating the document reprints the same time.
type Romaneio struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  int             `json:"orderNumber"`
	OrderDate    time.Time       `json:"orderDate"`
	DeliveryDate *time.Time      `json:"deliveryDate,omitempty"`
	EmittedAt    time.Time       `json:"emittedAt"`
	PaidAt       *time.Time      `json:"paidAt,omitempty"`
	Customer     *Customer       `json:"customer,omitempty"`
	Lines        []RomaneioLine  `json:"lines"`
	Total        decimal.Decimal `json:"total"`
	Signed       bool            `json:"signed"`
}
