package entity

import "github.com/shopspring/decimal"

// SupplierSpend is one row of the top-suppliers ranking.
type SupplierSpend struct {
	SupplierID   string          `json:"supplier_id"`
	SupplierName string          `json:"supplier_name"`
	OrderCount   int             `json:"order_count"`
	TotalSpent   decimal.Decimal `json:"total_spent"`
}

// CategorySpend is the spend attributed to one item category.
type CategorySpend struct {
	Category   ItemCategory    `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Percentage decimal.Decimal `json:"percentage"`
}

// PurchasingMetrics is a read-only aggregate over a tenant's orders.
type PurchasingMetrics struct {
	TotalOrders        int             `json:"total_orders"`
	TotalSpent         decimal.Decimal `json:"total_spent"`
	PendingOrders      int             `json:"pending_orders"`
	OverdueOrders      int             `json:"overdue_orders"`
	TopSuppliers       []SupplierSpend `json:"top_suppliers"`
	SpendingByCategory []CategorySpend `json:"spending_by_category"`
	RecentActivity     []Activity      `json:"recent_activity"`
}
