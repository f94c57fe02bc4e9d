package core_test

import (
	"testing"
	"time"

	"factory-erp/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func financeSnapshot(now time.Time) *core.Snapshot {
	yesterday := now.Add(-24 * time.Hour)
	cost := dec("4")
	s := core.NewSnapshot()
	s.Customers = []core.Customer{
		{ID: "C1", Name: "Acme", Phone: "111"},
		{ID: "C2", Name: "Globex"},
		{ID: "C3", Name: "Initech"},
	}
	s.Products = []core.Product{
		{ID: "P1", Name: "Widget", CostPrice: dec("6"), CurrentStock: 1, MinimumStock: 3},
		{ID: "P2", Name: "Gadget", CostPrice: dec("10"), CurrentStock: 50},
	}
	s.Orders = []core.Order{
		{ID: "O1", OrderNumber: 1, CustomerID: "C1", Status: core.OrderStatusDelivered, OrderDate: yesterday},
		{ID: "O2", OrderNumber: 2, CustomerID: "C1", Status: core.OrderStatusReady, OrderDate: now},
		{ID: "O3", OrderNumber: 3, CustomerID: "C2", Status: core.OrderStatusDelivered, OrderDate: now},
		{ID: "O4", OrderNumber: 4, CustomerID: "C3", Status: core.OrderStatusCancelled, OrderDate: now},
	}
	s.OrderItems = []core.OrderItem{
		{ID: "a", OrderID: "O1", ProductID: "P1", Quantity: 10, UnitPrice: dec("10"), CostPrice: &cost},
		{ID: "b", OrderID: "O2", ProductID: "P2", Quantity: 2, UnitPrice: dec("25")},
		{ID: "c", OrderID: "O3", ProductID: "P1", Quantity: 1, UnitPrice: dec("10.00")},
		{ID: "d", OrderID: "O4", ProductID: "P2", Quantity: 100, UnitPrice: dec("1")},
	}
	s.Payments = []core.Payment{
		{ID: "pay1", CustomerID: "C1", OrderID: "O1", AmountPaid: dec("60"), PaymentDate: yesterday, PaymentMethodID: "FP-001"},
		{ID: "pay2", CustomerID: "C2", OrderID: "O3", AmountPaid: dec("9.99"), PaymentDate: now, PaymentMethodID: "FP-002"},
	}
	done := now
	s.ProductionOrders = []core.ProductionOrder{
		{ID: "PR1", ProductID: "P1", Quantity: 5, Produced: 4, Status: core.ProductionFinished, CompletionDate: &done},
	}
	return s
}

func TestDashboard(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	d := core.Dashboard(financeSnapshot(now), now)

	assert.Equal(t, 2, d.SalesTodayCount)
	assert.True(t, dec("60").Equal(d.SalesTodayValue), "got %s", d.SalesTodayValue)
	assert.Equal(t, 4, d.ProducedToday)
	require.Len(t, d.ReadyForDispatch, 1)
	assert.Equal(t, "O2", d.ReadyForDispatch[0].ID)
	require.Len(t, d.LowStock, 1)
	assert.Equal(t, "P1", d.LowStock[0].ProductID)
}

func TestPendingSettlements(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	pending := core.PendingSettlements(financeSnapshot(now), "")

	// O3 is within tolerance; O4 is cancelled.
	require.Len(t, pending, 2)
	assert.Equal(t, "O1", pending[0].OrderID)
	assert.True(t, dec("40").Equal(pending[0].Balance))
	assert.Equal(t, "O2", pending[1].OrderID)

	assert.Empty(t, core.PendingSettlements(financeSnapshot(now), "globex"))
	assert.Len(t, core.PendingSettlements(financeSnapshot(now), "ACME"), 2)
}

func TestDebtors(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	debtors := core.Debtors(financeSnapshot(now))

	require.Len(t, debtors, 1)
	d := debtors[0]
	assert.Equal(t, "C1", d.CustomerID)
	assert.True(t, dec("150").Equal(d.Purchased))
	assert.True(t, dec("60").Equal(d.Paid))
	assert.True(t, dec("90").Equal(d.Balance))
	assert.Len(t, d.OpenOrders, 2)
}

func TestProfitability(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	rows := core.Profitability(financeSnapshot(now), core.DateRange{})

	require.Len(t, rows, 2)
	// P1: revenue 110, cost 10×4 (captured) + 1×6 (fallback) = 46.
	assert.Equal(t, "P1", rows[0].ProductID)
	assert.Equal(t, 11, rows[0].Quantity)
	assert.True(t, dec("64").Equal(rows[0].Profit), "got %s", rows[0].Profit)
	assert.True(t, dec("58.18").Equal(rows[0].MarginPct), "got %s", rows[0].MarginPct)
	// P2: revenue 50, cost 20; the cancelled order is ignored.
	assert.Equal(t, 2, rows[1].Quantity)
	assert.True(t, dec("30").Equal(rows[1].Profit))

	today := core.Profitability(financeSnapshot(now), core.DateRange{From: now.Add(-time.Hour)})
	require.Len(t, today, 2)
	assert.Equal(t, "P2", today[0].ProductID)
}

func TestSalesAndPaymentHistory(t *testing.T) {
	now := time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)
	s := financeSnapshot(now)

	sales := core.Sales(s, core.DateRange{From: now.Add(-48 * time.Hour), To: now})
	require.Len(t, sales, 3)
	assert.Equal(t, "O1", sales[0].OrderID)
	assert.True(t, dec("100").Equal(sales[0].Revenue))

	history := core.PaymentHistory(s, core.DateRange{})
	require.Len(t, history, 2)
	assert.Equal(t, "pay2", history[0].ID)
	assert.Equal(t, "Dinheiro", history[0].MethodName)
	assert.Equal(t, "Globex", history[0].CustomerName)
}
