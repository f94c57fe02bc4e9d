package core

// Permission names a screen a user may be allowed to view.
type Permission string

const (
	PermDashboard  Permission = "dashboard"
	PermOrders     Permission = "orders"
	PermCustomers  Permission = "customers"
	PermProduction Permission = "production"
	PermDispatch   Permission = "dispatch"
	PermStock      Permission = "stock"
	PermProducts   Permission = "products"
	PermFinance    Permission = "finance"
	PermReports    Permission = "reports"
	PermSettings   Permission = "settings"
)

// AllPermissions lists every permission in display order.
var AllPermissions = []Permission{
	PermDashboard, PermOrders, PermCustomers, PermProduction, PermDispatch,
	PermStock, PermProducts, PermFinance, PermReports, PermSettings,
}

// User is an application user. PasswordHash is a bcrypt hash and is never
// pushed to the remote store.
type User struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PasswordHash      string `json:"-"`
	IsAdmin           bool   `json:"isAdmin"`
	CanViewDashboard  bool   `json:"canViewDashboard"`
	CanViewOrders     bool   `json:"canViewOrders"`
	CanViewCustomers  bool   `json:"canViewCustomers"`
	CanViewProduction bool   `json:"canViewProduction"`
	CanViewExpedicao  bool   `json:"canViewExpedicao"`
	CanViewStock      bool   `json:"canViewStock"`
	CanViewProducts   bool   `json:"canViewProducts"`
	CanViewFinance    bool   `json:"canViewFinance"`
	CanViewReports    bool   `json:"canViewReports"`
	CanViewSettings   bool   `json:"canViewSettings"`
}

// Can reports whether the user may access the given screen. Admins can access all.
func (u User) Can(p Permission) bool {
	if u.IsAdmin {
		return true
	}
	switch p {
	case PermDashboard:
		return u.CanViewDashboard
	case PermOrders:
		return u.CanViewOrders
	case PermCustomers:
		return u.CanViewCustomers
	case PermProduction:
		return u.CanViewProduction
	case PermDispatch:
		return u.CanViewExpedicao
	case PermStock:
		return u.CanViewStock
	case PermProducts:
		return u.CanViewProducts
	case PermFinance:
		return u.CanViewFinance
	case PermReports:
		return u.CanViewReports
	case PermSettings:
		return u.CanViewSettings
	}
	return false
}

// Permissions returns the list of screens the user may access.
func (u User) Permissions() []Permission {
	var out []Permission
	for _, p := range AllPermissions {
		if u.Can(p) {
			out = append(out, p)
		}
	}
	return out
}
