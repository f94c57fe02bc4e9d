package core

import (
	"slices"
	"time"
)

// DeletedSet records ids removed locally, with the time of removal.
// Remote rows carrying a tombstoned id are ignored on pull.
type DeletedSet map[string]time.Time

func (d DeletedSet) Has(id string) bool {
	_, ok := d[id]
	return ok
}

// Expired returns the ids tombstoned before cutoff.
func (d DeletedSet) Expired(cutoff time.Time) []string {
	var ids []string
	for id, at := range d {
		if at.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// Snapshot is the full in-memory state of the application.
type Snapshot struct {
	Customers        []Customer
	Products         []Product
	Orders           []Order
	OrderItems       []OrderItem
	ProductionOrders []ProductionOrder
	Suggestions      []ProductionSuggestion
	Payments         []Payment
	PaymentMethods   []PaymentMethod
	Users            []User
	Logs             []AuditLog
	Deleted          DeletedSet
}

// NewSnapshot returns an empty snapshot seeded with the default payment methods.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		PaymentMethods: slices.Clone(DefaultPaymentMethods),
		Deleted:        DeletedSet{},
	}
}

func (s *Snapshot) productIndex(id string) int {
	return slices.IndexFunc(s.Products, func(p Product) bool { return p.ID == id })
}

func (s *Snapshot) orderIndex(id string) int {
	return slices.IndexFunc(s.Orders, func(o Order) bool { return o.ID == id })
}

func (s *Snapshot) customerIndex(id string) int {
	return slices.IndexFunc(s.Customers, func(c Customer) bool { return c.ID == id })
}

func (s *Snapshot) productionIndex(id string) int {
	return slices.IndexFunc(s.ProductionOrders, func(p ProductionOrder) bool { return p.ID == id })
}

func (s *Snapshot) userIndex(id string) int {
	return slices.IndexFunc(s.Users, func(u User) bool { return u.ID == id })
}

func (s *Snapshot) suggestionIndex(id string) int {
	return slices.IndexFunc(s.Suggestions, func(p ProductionSuggestion) bool { return p.ID == id })
}

func (s *Snapshot) Product(id string) (Product, bool) {
	if i := s.productIndex(id); i >= 0 {
		return s.Products[i], true
	}
	return Product{}, false
}

func (s *Snapshot) Order(id string) (Order, bool) {
	if i := s.orderIndex(id); i >= 0 {
		return s.Orders[i], true
	}
	return Order{}, false
}

func (s *Snapshot) Customer(id string) (Customer, bool) {
	if i := s.customerIndex(id); i >= 0 {
		return s.Customers[i], true
	}
	return Customer{}, false
}

func (s *Snapshot) ProductionOrder(id string) (ProductionOrder, bool) {
	if i := s.productionIndex(id); i >= 0 {
		return s.ProductionOrders[i], true
	}
	return ProductionOrder{}, false
}

func (s *Snapshot) User(id string) (User, bool) {
	if i := s.userIndex(id); i >= 0 {
		return s.Users[i], true
	}
	return User{}, false
}

// UserByEmail matches case-sensitively, like the login form.
func (s *Snapshot) UserByEmail(email string) (User, bool) {
	for _, u := range s.Users {
		if u.Email == email {
			return u, true
		}
	}
	return User{}, false
}

// ItemsFor returns the items of one order in stored order.
func (s *Snapshot) ItemsFor(orderID string) []OrderItem {
	var items []OrderItem
	for _, it := range s.OrderItems {
		if it.OrderID == orderID {
			items = append(items, it)
		}
	}
	return items
}

// NextOrderNumber is the highest existing number plus one. Gaps left by
// deleted orders are not refilled.
func (s *Snapshot) NextOrderNumber() int {
	highest := 0
	for _, o := range s.Orders {
		if o.OrderNumber > highest {
			highest = o.OrderNumber
		}
	}
	return highest + 1
}

// Clone returns a copy that can be modified without affecting s.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Customers:        slices.Clone(s.Customers),
		Products:         slices.Clone(s.Products),
		Orders:           slices.Clone(s.Orders),
		OrderItems:       slices.Clone(s.OrderItems),
		ProductionOrders: slices.Clone(s.ProductionOrders),
		Suggestions:      slices.Clone(s.Suggestions),
		Payments:         slices.Clone(s.Payments),
		PaymentMethods:   slices.Clone(s.PaymentMethods),
		Users:            slices.Clone(s.Users),
		Logs:             slices.Clone(s.Logs),
		Deleted:          make(DeletedSet, len(s.Deleted)),
	}
	for i := range c.Customers {
		c.Customers[i].SpecialPrices = slices.Clone(c.Customers[i].SpecialPrices)
	}
	for i := range c.Orders {
		c.Orders[i].Installments = slices.Clone(c.Orders[i].Installments)
	}
	for id, at := range s.Deleted {
		c.Deleted[id] = at
	}
	return c
}
