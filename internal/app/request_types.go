package app

import (
	"time"

	"factory-erp/internal/core"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the input for creating an order or a return.
type CreateOrderRequest struct {
	CustomerID       string             `json:"customerId"`
	DeliveryDate     *time.Time         `json:"deliveryDate,omitempty"`
	PaymentMethodID  string             `json:"paymentMethodId"`
	SendToProduction bool               `json:"sendToProduction"`
	Notes            string             `json:"notes"`
	Installments     []core.Installment `json:"installments,omitempty"`
	Lines            []OrderLineInput   `json:"lines"`
	User             string             `json:"-"`
}

// OrderLineInput is a single line within a CreateOrderRequest.
type OrderLineInput struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"` // zero means "use customer price"
}

// SaveCustomerRequest creates the customer when ID is empty, otherwise updates it.
type SaveCustomerRequest struct {
	Customer core.Customer
	User     string
}

// SaveProductRequest creates the product when ID is empty, otherwise updates
// its metadata. Stock is only taken on create.
type SaveProductRequest struct {
	Product core.Product
	User    string
}

// SaveUserRequest creates or updates a user. An empty Password keeps the stored hash.
type SaveUserRequest struct {
	User     core.User
	Password string
	Admin    string
}

type AdjustStockRequest struct {
	ProductID    string `json:"productId"`
	CurrentStock int    `json:"currentStock"`
	MinimumStock int    `json:"minimumStock"`
	User         string `json:"-"`
}

// UpdateProductionRequest applies whichever of Status, Priority and Quantity are set.
type UpdateProductionRequest struct {
	ID       string                   `json:"-"`
	Status   *core.ProductionStatus   `json:"status,omitempty"`
	Produced *int                     `json:"produced,omitempty"`
	Priority *core.ProductionPriority `json:"priority,omitempty"`
	Quantity *int                     `json:"quantity,omitempty"`
	User     string                   `json:"-"`
}
