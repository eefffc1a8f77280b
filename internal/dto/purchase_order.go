package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrderItemForm is one requested order line.
type PurchaseOrderItemForm struct {
	ItemName        string          `json:"item_name" validate:"required"`
	ItemDescription string          `json:"item_description"`
	ItemCode        string          `json:"item_code"`
	Category        string          `json:"category" validate:"required,oneof=medication medical_supplies equipment food cleaning office other"`
	QuantityOrdered int64           `json:"quantity_ordered" validate:"gte=1"`
	UnitOfMeasure   string          `json:"unit_of_measure" validate:"required"`
	UnitPrice       decimal.Decimal `json:"unit_price" validate:"gte=0,money"`
	Notes           string          `json:"notes"`
}

// PurchaseOrderForm creates a purchase order. Addresses default to the
// hospital address when omitted.
type PurchaseOrderForm struct {
	SupplierID           string                  `json:"supplier_id" validate:"required"`
	Priority             string                  `json:"priority" validate:"required,oneof=low medium high urgent"`
	ExpectedDeliveryDate *time.Time              `json:"expected_delivery_date"`
	ShippingCost         decimal.Decimal         `json:"shipping_cost" validate:"gte=0,money"`
	ShippingAddress      *AddressForm            `json:"shipping_address"`
	BillingAddress       *AddressForm            `json:"billing_address"`
	Notes                string                  `json:"notes"`
	Items                []PurchaseOrderItemForm `json:"items" validate:"required,min=1,dive"`
}

// StatusUpdate moves an order or RFQ to another lifecycle state.
type StatusUpdate struct {
	Status string `json:"status" validate:"required"`
}

// ItemReceipt records goods received against one order line.
type ItemReceipt struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

// ReceiptForm records a delivery.
type ReceiptForm struct {
	Receipts []ItemReceipt `json:"receipts" validate:"required,min=1,dive"`
}

// ApprovalForm names who approves an order. The acting user is used when
// ApproverID is empty.
type ApprovalForm struct {
	ApproverID string `json:"approver_id"`
}

// DetailsForm edits a draft order. Nil fields are left unchanged.
type DetailsForm struct {
	Priority             *string          `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date"`
	Notes                *string          `json:"notes"`
	ShippingCost         *decimal.Decimal `json:"shipping_cost" validate:"omitempty,gte=0,money"`
}
