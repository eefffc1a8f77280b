package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// InventoryForm creates a stock record.
type InventoryForm struct {
	Name           string          `json:"name" validate:"required"`
	Description    string          `json:"description"`
	ItemCode       string          `json:"item_code"`
	Category       string          `json:"category" validate:"required,oneof=medication medical_supplies equipment food cleaning office other"`
	CurrentStock   int64           `json:"current_stock" validate:"gte=0"`
	MinimumStock   int64           `json:"minimum_stock" validate:"gte=0"`
	MaximumStock   int64           `json:"maximum_stock" validate:"gte=0,gtefield=MinimumStock"`
	UnitOfMeasure  string          `json:"unit_of_measure" validate:"required"`
	UnitCost       decimal.Decimal `json:"unit_cost" validate:"gte=0,money"`
	Location       string          `json:"location" validate:"required"`
	ExpirationDate *time.Time      `json:"expiration_date"`
	LotNumber      string          `json:"lot_number"`
	SupplierID     string          `json:"supplier_id"`
	Status         string          `json:"status" validate:"omitempty,oneof=active discontinued out_of_stock"`
}

// StockUpdate sets the on-hand quantity of a stock record.
type StockUpdate struct {
	CurrentStock *int64 `json:"current_stock" validate:"required"`
}
