package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CustomerProductPrice overrides a product's base price for one customer.
type CustomerProductPrice struct {
	ProductID string          `json:"productId"`
	Price     decimal.Decimal `json:"price"`
}

// Customer is a buyer. DiscountPercentage applies to products without a special price.
type Customer struct {
	ID                 string                 `json:"id"`
	Name               string                 `json:"name"`
	Phone              string                 `json:"phone"`
	Email              string                 `json:"email"`
	ContactPerson      string                 `json:"contactPerson,omitempty"`
	CpfCnpj            string                 `json:"cpfCnpj,omitempty"`
	Cep                string                 `json:"cep,omitempty"`
	Address            string                 `json:"address"`
	Number             string                 `json:"number,omitempty"`
	Neighborhood       string                 `json:"neighborhood,omitempty"`
	City               string                 `json:"city,omitempty"`
	State              string                 `json:"state,omitempty"`
	Notes              string                 `json:"notes,omitempty"`
	DiscountPercentage decimal.Decimal        `json:"discountPercentage"`
	SpecialPrices      []CustomerProductPrice `json:"specialPrices,omitempty"`
}

// PriceFor returns the unit price this customer pays for p:
// special price, else base price less the discount percentage, else base price.
func (c *Customer) PriceFor(p Product) decimal.Decimal {
	if c == nil {
		return p.BasePrice
	}
	for _, sp := range c.SpecialPrices {
		if sp.ProductID == p.ID {
			return sp.Price
		}
	}
	if c.DiscountPercentage.IsPositive() {
		factor := decimal.NewFromInt(1).Sub(c.DiscountPercentage.Div(decimal.NewFromInt(100)))
		return p.BasePrice.Mul(factor).Round(2)
	}
	return p.BasePrice
}

// Payment is money received from a customer, optionally tied to an order.
type Payment struct {
	ID              string          `json:"id"`
	CustomerID      string          `json:"customerId"`
	OrderID         string          `json:"orderId,omitempty"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	PaymentDate     time.Time       `json:"paymentDate"`
	PaymentMethodID string          `json:"paymentMethodId"`
}

type PaymentMethod struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DefaultPaymentMethods is the fixed list offered at checkout.
var DefaultPaymentMethods = []PaymentMethod{
	{ID: "FP-001", Name: "PIX"},
	{ID: "FP-002", Name: "Dinheiro"},
	{ID: "FP-003", Name: "Cartão"},
	{ID: "FP-004", Name: "Blu"},
	{ID: "FP-005", Name: "Boleto"},
}

// AuditLog records one user action.
type AuditLog struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	TableName string    `json:"tableName"`
	RecordID  string    `json:"recordId"`
	Notes     string    `json:"notes"`
}
