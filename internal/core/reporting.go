package core

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// debtorTolerance hides balances that are only rounding noise.
	debtorTolerance = decimal.NewFromFloat(0.05)
	// settlementTolerance is how far below the total a payment may fall and still settle the order.
	settlementTolerance = decimal.NewFromFloat(0.01)
)

// DateRange is inclusive at both ends. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// OrderTotal sums the line totals of one order.
func OrderTotal(s *Snapshot, orderID string) decimal.Decimal {
	total := decimal.Zero
	for _, it := range s.OrderItems {
		if it.OrderID == orderID {
			total = total.Add(it.LineTotal())
		}
	}
	return total
}

// PaidForOrder sums the payments tied to one order.
func PaidForOrder(s *Snapshot, orderID string) decimal.Decimal {
	paid := decimal.Zero
	for _, p := range s.Payments {
		if p.OrderID == orderID {
			paid = paid.Add(p.AmountPaid)
		}
	}
	return paid
}

func customerName(s *Snapshot, id string) string {
	if c, ok := s.Customer(id); ok {
		return c.Name
	}
	return ""
}

// ── Dashboard ────────────────────────────────────────────────────────────────

type DashboardSummary struct {
	SalesTodayCount  int             `json:"salesTodayCount"`
	SalesTodayValue  decimal.Decimal `json:"salesTodayValue"`
	ProducedToday    int             `json:"producedToday"`
	ReadyForDispatch []Order         `json:"readyForDispatch"`
	LowStock         []StockLevel    `json:"lowStock"`
}

// Dashboard summarises the current day as seen from now's location.
func Dashboard(s *Snapshot, now time.Time) DashboardSummary {
	d := DashboardSummary{SalesTodayValue: decimal.Zero}
	for _, o := range s.Orders {
		if o.Status != OrderStatusCancelled && sameDay(o.OrderDate, now) {
			d.SalesTodayCount++
			d.SalesTodayValue = d.SalesTodayValue.Add(OrderTotal(s, o.ID))
		}
		if o.Status == OrderStatusReady {
			d.ReadyForDispatch = append(d.ReadyForDispatch, o)
		}
	}
	for _, po := range s.ProductionOrders {
		if po.Status == ProductionFinished && po.CompletionDate != nil && sameDay(*po.CompletionDate, now) {
			d.ProducedToday += po.Produced
		}
	}
	d.LowStock = LowStock(s)
	return d
}

// ── Finance ──────────────────────────────────────────────────────────────────

// OrderBalance is what remains to be paid on one order.
type OrderBalance struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  int             `json:"orderNumber"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	OrderDate    time.Time       `json:"orderDate"`
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
}

func balanceOf(s *Snapshot, o Order) OrderBalance {
	total := OrderTotal(s, o.ID)
	paid := PaidForOrder(s, o.ID)
	return OrderBalance{
		OrderID:      o.ID,
		OrderNumber:  o.OrderNumber,
		CustomerID:   o.CustomerID,
		CustomerName: customerName(s, o.CustomerID),
		OrderDate:    o.OrderDate,
		Total:        total,
		Paid:         paid,
		Balance:      total.Sub(paid),
	}
}

// PendingSettlements lists non-cancelled orders not yet fully paid. The
// search term filters on customer name, case-insensitively.
func PendingSettlements(s *Snapshot, search string) []OrderBalance {
	term := strings.ToLower(search)
	var out []OrderBalance
	for _, o := range s.Orders {
		if o.Status == OrderStatusCancelled {
			continue
		}
		ob := balanceOf(s, o)
		if ob.Paid.GreaterThanOrEqual(ob.Total.Sub(settlementTolerance)) {
			continue
		}
		if !strings.Contains(strings.ToLower(ob.CustomerName), term) {
			continue
		}
		out = append(out, ob)
	}
	return out
}

type Debtor struct {
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Phone        string          `json:"phone"`
	Purchased    decimal.Decimal `json:"purchased"`
	Paid         decimal.Decimal `json:"paid"`
	Balance      decimal.Decimal `json:"balance"`
	OpenOrders   []OrderBalance  `json:"openOrders"`
}

// Debtors lists customers owing more than the tolerance, largest balance first.
func Debtors(s *Snapshot) []Debtor {
	var out []Debtor
	for _, c := range s.Customers {
		d := Debtor{
			CustomerID:   c.ID,
			CustomerName: c.Name,
			Phone:        c.Phone,
			Purchased:    decimal.Zero,
			Paid:         decimal.Zero,
		}
		for _, o := range s.Orders {
			if o.CustomerID != c.ID || o.Status == OrderStatusCancelled {
				continue
			}
			ob := balanceOf(s, o)
			d.Purchased = d.Purchased.Add(ob.Total)
			if ob.Balance.GreaterThan(debtorTolerance) {
				d.OpenOrders = append(d.OpenOrders, ob)
			}
		}
		for _, p := range s.Payments {
			if p.CustomerID == c.ID {
				d.Paid = d.Paid.Add(p.AmountPaid)
			}
		}
		d.Balance = d.Purchased.Sub(d.Paid)
		if d.Balance.GreaterThan(debtorTolerance) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b Debtor) int { return b.Balance.Cmp(a.Balance) })
	return out
}

// PaymentEntry is a payment joined with its customer and method names.
type PaymentEntry struct {
	Payment
	CustomerName string `json:"customerName"`
	MethodName   string `json:"methodName"`
}

// PaymentHistory lists payments within r, newest first.
func PaymentHistory(s *Snapshot, r DateRange) []PaymentEntry {
	methods := make(map[string]string, len(s.PaymentMethods))
	for _, m := range s.PaymentMethods {
		methods[m.ID] = m.Name
	}
	var out []PaymentEntry
	for _, p := range s.Payments {
		if !r.Contains(p.PaymentDate) {
			continue
		}
		out = append(out, PaymentEntry{Payment: p, CustomerName: customerName(s, p.CustomerID), MethodName: methods[p.PaymentMethodID]})
	}
	slices.SortStableFunc(out, func(a, b PaymentEntry) int { return b.PaymentDate.Compare(a.PaymentDate) })
	return out
}

// ── Sales ────────────────────────────────────────────────────────────────────

type SaleEntry struct {
	OrderID      string          `json:"orderId"`
	OrderNumber  int             `json:"orderNumber"`
	OrderDate    time.Time       `json:"orderDate"`
	CustomerName string          `json:"customerName"`
	Status       OrderStatus     `json:"status"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// Sales lists non-cancelled orders placed within r, oldest first.
func Sales(s *Snapshot, r DateRange) []SaleEntry {
	var out []SaleEntry
	for _, o := range s.Orders {
		if o.Status == OrderStatusCancelled || !r.Contains(o.OrderDate) {
			continue
		}
		out = append(out, SaleEntry{
			OrderID:      o.ID,
			OrderNumber:  o.OrderNumber,
			OrderDate:    o.OrderDate,
			CustomerName: customerName(s, o.CustomerID),
			Status:       o.Status,
			Revenue:      OrderTotal(s, o.ID),
		})
	}
	slices.SortStableFunc(out, func(a, b SaleEntry) int { return a.OrderDate.Compare(b.OrderDate) })
	return out
}

type ProductProfit struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
	Cost        decimal.Decimal `json:"cost"`
	Profit      decimal.Decimal `json:"profit"`
	// MarginPct is profit over revenue in percent, zero when there is no revenue.
	MarginPct decimal.Decimal `json:"marginPct"`
}

// Profitability aggregates revenue and cost per product for non-cancelled
// orders placed within r, most profitable first. Item cost uses the price
// captured at sale time and falls back to the product's current cost.
// Items of deleted products are skipped.
func Profitability(s *Snapshot, r DateRange) []ProductProfit {
	inRange := map[string]bool{}
	for _, o := range s.Orders {
		if o.Status != OrderStatusCancelled && r.Contains(o.OrderDate) {
			inRange[o.ID] = true
		}
	}

	stats := map[string]*ProductProfit{}
	var order []string
	for _, it := range s.OrderItems {
		if !inRange[it.OrderID] {
			continue
		}
		p, ok := s.Product(it.ProductID)
		if !ok {
			continue
		}
		st, seen := stats[p.ID]
		if !seen {
			st = &ProductProfit{ProductID: p.ID, ProductName: p.Name, Revenue: decimal.Zero, Cost: decimal.Zero}
			stats[p.ID] = st
			order = append(order, p.ID)
		}
		unitCost := p.CostPrice
		if it.CostPrice != nil {
			unitCost = *it.CostPrice
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		st.Quantity += it.Quantity
		st.Revenue = st.Revenue.Add(it.LineTotal())
		st.Cost = st.Cost.Add(unitCost.Mul(qty))
	}

	out := make([]ProductProfit, 0, len(order))
	for _, id := range order {
		st := stats[id]
		st.Profit = st.Revenue.Sub(st.Cost)
		st.MarginPct = decimal.Zero
		if st.Revenue.IsPositive() {
			st.MarginPct = st.Profit.Div(st.Revenue).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, *st)
	}
	slices.SortStableFunc(out, func(a, b ProductProfit) int { return b.Profit.Cmp(a.Profit) })
	return out
}

// AuditTrail returns the audit log, newest first, optionally limited.
func AuditTrail(s *Snapshot, limit int) []AuditLog {
	logs := slices.Clone(s.Logs)
	slices.SortStableFunc(logs, func(a, b AuditLog) int { return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano()) })
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs
}
