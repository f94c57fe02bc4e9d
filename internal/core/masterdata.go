package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// ── Customers ────────────────────────────────────────────────────────────────

func (c *Coordinator) AddCustomer(ctx context.Context, cust Customer, user string) (*Customer, error) {
	if strings.TrimSpace(cust.Name) == "" {
		return nil, fmt.Errorf("customer name is required: %w", ErrValidation)
	}
	if cust.DiscountPercentage.IsNegative() {
		return nil, fmt.Errorf("discount must not be negative: %w", ErrValidation)
	}
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		cust.ID = c.newID("CL")
		s.Customers = append(s.Customers, cust)
		b.create(TableCustomers, cust.ID, cust)
		c.logAction(b, user, "Create", TableCustomers, cust.ID, cust.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Coordinator) UpdateCustomer(ctx context.Context, cust Customer, user string) (*Customer, error) {
	if strings.TrimSpace(cust.Name) == "" {
		return nil, fmt.Errorf("customer name is required: %w", ErrValidation)
	}
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.customerIndex(cust.ID)
		if i < 0 {
			return fmt.Errorf("customer %s: %w", cust.ID, ErrNotFound)
		}
		s.Customers[i] = cust
		b.update(TableCustomers, cust.ID, cust)
		c.logAction(b, user, "Update", TableCustomers, cust.ID, cust.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cust, nil
}

func (c *Coordinator) DeleteCustomer(ctx context.Context, id, user string) error {
	return c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.customerIndex(id)
		if i < 0 {
			return fmt.Errorf("customer %s: %w", id, ErrNotFound)
		}
		s.Customers = slices.Delete(s.Customers, i, i+1)
		b.remove(TableCustomers, id, c.now())
		c.logAction(b, user, "Delete", TableCustomers, id, "")
		return nil
	})
}

// ── Products ─────────────────────────────────────────────────────────────────

func validateProduct(p Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("product name is required: %w", ErrValidation)
	}
	if p.BasePrice.IsNegative() || p.CostPrice.IsNegative() {
		return fmt.Errorf("prices must not be negative: %w", ErrValidation)
	}
	if p.CurrentStock < 0 || p.MinimumStock < 0 {
		return fmt.Errorf("stock levels must not be negative: %w", ErrValidation)
	}
	return nil
}

// AddProduct registers a product. Its initial stock counts immediately, so
// allocation runs afterwards.
func (c *Coordinator) AddProduct(ctx context.Context, p Product, user string) (*Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		p.ID = c.newID("P")
		s.Products = append(s.Products, p)
		b.create(TableProducts, p.ID, p)
		c.logAction(b, user, "Create", TableProducts, p.ID, p.Name)
		if p.CurrentStock > 0 {
			c.reallocate(s, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProduct edits product metadata. The stored physical stock is kept;
// use AdjustStock to change it.
func (c *Coordinator) UpdateProduct(ctx context.Context, p Product, user string) (*Product, error) {
	var out Product
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productIndex(p.ID)
		if i < 0 {
			return fmt.Errorf("product %s: %w", p.ID, ErrNotFound)
		}
		p.CurrentStock = s.Products[i].CurrentStock
		if err := validateProduct(p); err != nil {
			return err
		}
		s.Products[i] = p
		b.update(TableProducts, p.ID, p)
		c.logAction(b, user, "Update", TableProducts, p.ID, p.Name)
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct removes a product from the active list. Historical order items
// keep their reference.
func (c *Coordinator) DeleteProduct(ctx context.Context, id, user string) error {
	return c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.productIndex(id)
		if i < 0 {
			return fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		s.Products = slices.Delete(s.Products, i, i+1)
		b.remove(TableProducts, id, c.now())
		c.logAction(b, user, "Delete", TableProducts, id, "")
		return nil
	})
}

// ── Payments ─────────────────────────────────────────────────────────────────

// AddPayment records money received. A payment tied to an order must belong
// to that order's customer.
func (c *Coordinator) AddPayment(ctx context.Context, p Payment, user string) (*Payment, error) {
	if !p.AmountPaid.IsPositive() {
		return nil, fmt.Errorf("amount must be positive: %w", ErrValidation)
	}
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		if _, ok := s.Customer(p.CustomerID); !ok {
			return fmt.Errorf("customer %s: %w", p.CustomerID, ErrNotFound)
		}
		if p.OrderID != "" {
			o, ok := s.Order(p.OrderID)
			if !ok {
				return fmt.Errorf("order %s: %w", p.OrderID, ErrNotFound)
			}
			if o.CustomerID != p.CustomerID {
				return fmt.Errorf("order %s belongs to another customer: %w", p.OrderID, ErrValidation)
			}
		}
		if p.PaymentMethodID != "" && !slices.ContainsFunc(s.PaymentMethods, func(m PaymentMethod) bool { return m.ID == p.PaymentMethodID }) {
			return fmt.Errorf("payment method %s: %w", p.PaymentMethodID, ErrNotFound)
		}
		if p.PaymentDate.IsZero() {
			p.PaymentDate = c.now()
		}
		p.ID = c.newID("PMT")
		s.Payments = append(s.Payments, p)
		b.create(TablePayments, p.ID, p)
		c.logAction(b, user, "Payment", TablePayments, p.ID, p.AmountPaid.StringFixed(2))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ── Users ────────────────────────────────────────────────────────────────────

func (c *Coordinator) AddUser(ctx context.Context, u User, admin string) (*User, error) {
	if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
		return nil, fmt.Errorf("user name and email are required: %w", ErrValidation)
	}
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		if _, taken := s.UserByEmail(u.Email); taken {
			return fmt.Errorf("email %s already in use: %w", u.Email, ErrValidation)
		}
		u.ID = c.newID("U")
		s.Users = append(s.Users, u)
		b.create(TableUsers, u.ID, u)
		c.logAction(b, admin, "New User", TableUsers, u.ID, u.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateUser replaces a user's profile and permissions. An empty PasswordHash
// keeps the stored one.
func (c *Coordinator) UpdateUser(ctx context.Context, u User, admin string) (*User, error) {
	err := c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.userIndex(u.ID)
		if i < 0 {
			return fmt.Errorf("user %s: %w", u.ID, ErrNotFound)
		}
		if other, taken := s.UserByEmail(u.Email); taken && other.ID != u.ID {
			return fmt.Errorf("email %s already in use: %w", u.Email, ErrValidation)
		}
		if u.PasswordHash == "" {
			u.PasswordHash = s.Users[i].PasswordHash
		}
		s.Users[i] = u
		b.update(TableUsers, u.ID, u)
		c.logAction(b, admin, "Update", TableUsers, u.ID, u.Name)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Coordinator) DeleteUser(ctx context.Context, id, admin string) error {
	return c.mutate(ctx, func(s *Snapshot, b *Batch) error {
		i := s.userIndex(id)
		if i < 0 {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		s.Users = slices.Delete(s.Users, i, i+1)
		b.remove(TableUsers, id, c.now())
		c.logAction(b, admin, "Delete", TableUsers, id, "")
		return nil
	})
}
