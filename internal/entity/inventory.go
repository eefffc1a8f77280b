package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// InventoryStatus is the lifecycle state of a stock record.
type InventoryStatus string

const (
	InventoryStatusActive       InventoryStatus = "active"
	InventoryStatusDiscontinued InventoryStatus = "discontinued"
	InventoryStatusOutOfStock   InventoryStatus = "out_of_stock"
)

// IsValid checks if the status is known.
func (s InventoryStatus) IsValid() bool {
	switch s {
	case InventoryStatusActive, InventoryStatusDiscontinued, InventoryStatusOutOfStock:
		return true
	}
	return false
}

// InventoryItem is a stock record kept by a hospital.
type InventoryItem struct {
	bun.BaseModel `bun:"table:inventory_items,alias:inv"`

	ID             string          `bun:"id,pk" json:"id"`
	HospitalID     string          `bun:"hospital_id,notnull" json:"hospital_id"`
	Name           string          `bun:"name,notnull" json:"name"`
	Description    string          `bun:"description" json:"description,omitempty"`
	ItemCode       string          `bun:"item_code" json:"item_code,omitempty"`
	Category       ItemCategory    `bun:"category,notnull" json:"category"`
	CurrentStock   int64           `bun:"current_stock,notnull" json:"current_stock"`
	MinimumStock   int64           `bun:"minimum_stock,notnull" json:"minimum_stock"`
	MaximumStock   int64           `bun:"maximum_stock,notnull" json:"maximum_stock"`
	UnitOfMeasure  string          `bun:"unit_of_measure,notnull" json:"unit_of_measure"`
	UnitCost       decimal.Decimal `bun:"unit_cost,type:numeric(14,2),notnull" json:"unit_cost"`
	Location       string          `bun:"location,notnull" json:"location"`
	ExpirationDate *time.Time      `bun:"expiration_date" json:"expiration_date,omitempty"`
	LotNumber      string          `bun:"lot_number" json:"lot_number,omitempty"`
	SupplierID     string          `bun:"supplier_id" json:"supplier_id,omitempty"`
	Status         InventoryStatus `bun:"status,notnull" json:"status"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Column exposes filterable fields by column name.
func (i InventoryItem) Column(name string) (any, bool) {
	switch name {
	case "id":
		return i.ID, true
	case "hospital_id":
		return i.HospitalID, true
	case "name":
		return i.Name, true
	case "category":
		return string(i.Category), true
	case "status":
		return string(i.Status), true
	case "current_stock":
		return i.CurrentStock, true
	case "minimum_stock":
		return i.MinimumStock, true
	case "supplier_id":
		return i.SupplierID, true
	case "created_at":
		return i.CreatedAt, true
	}
	return nil, false
}

// IsLowStock reports whether an active item sits at or below its minimum.
func (i InventoryItem) IsLowStock() bool {
	return i.Status == InventoryStatusActive && i.CurrentStock <= i.MinimumStock
}
