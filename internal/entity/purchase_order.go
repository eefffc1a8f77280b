package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// PurchaseOrderStatus is a lifecycle state of a purchase order.
type PurchaseOrderStatus string

const (
	POStatusDraft             PurchaseOrderStatus = "draft"
	POStatusSent              PurchaseOrderStatus = "sent"
	POStatusConfirmed         PurchaseOrderStatus = "confirmed"
	POStatusPartiallyReceived PurchaseOrderStatus = "partially_received"
	POStatusCompleted         PurchaseOrderStatus = "completed"
	POStatusCancelled         PurchaseOrderStatus = "cancelled"
)

// IsValid checks if the status is a known PurchaseOrderStatus.
func (s PurchaseOrderStatus) IsValid() bool {
	_, ok := poTransitions[s]
	return ok
}

// IsTerminal reports whether no further transitions are possible.
func (s PurchaseOrderStatus) IsTerminal() bool {
	return s == POStatusCompleted || s == POStatusCancelled
}

// IsPending reports whether the order still awaits supplier fulfilment.
func (s PurchaseOrderStatus) IsPending() bool {
	return s == POStatusDraft || s == POStatusSent || s == POStatusConfirmed
}

var poTransitions = map[PurchaseOrderStatus][]PurchaseOrderStatus{
	POStatusDraft:             {POStatusSent, POStatusCancelled},
	POStatusSent:              {POStatusConfirmed, POStatusCancelled},
	POStatusConfirmed:         {POStatusPartiallyReceived, POStatusCompleted, POStatusCancelled},
	POStatusPartiallyReceived: {POStatusCompleted, POStatusCancelled},
	POStatusCompleted:         {},
	POStatusCancelled:         {},
}

// CanTransitionTo checks if a transition to the target status is allowed.
func (s PurchaseOrderStatus) CanTransitionTo(target PurchaseOrderStatus) bool {
	for _, allowed := range poTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// Priority expresses the urgency of a purchase order.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// IsValid checks if the priority is known.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ItemCategory groups order lines and inventory for spend reporting.
type ItemCategory string

const (
	CategoryMedication      ItemCategory = "medication"
	CategoryMedicalSupplies ItemCategory = "medical_supplies"
	CategoryEquipment       ItemCategory = "equipment"
	CategoryFood            ItemCategory = "food"
	CategoryCleaning        ItemCategory = "cleaning"
	CategoryOffice          ItemCategory = "office"
	CategoryOther           ItemCategory = "other"
)

// IsValid checks if the category is known.
func (c ItemCategory) IsValid() bool {
	switch c {
	case CategoryMedication, CategoryMedicalSupplies, CategoryEquipment,
		CategoryFood, CategoryCleaning, CategoryOffice, CategoryOther:
		return true
	}
	return false
}

// PurchaseOrder is a tenant-scoped order placed with a supplier.
type PurchaseOrder struct {
	bun.BaseModel `bun:"table:purchase_orders,alias:po"`

	ID                   string              `bun:"id,pk" json:"id"`
	PONumber             string              `bun:"po_number,notnull" json:"po_number"`
	SupplierID           string              `bun:"supplier_id,notnull" json:"supplier_id"`
	HospitalID           string              `bun:"hospital_id,notnull" json:"hospital_id"`
	Status               PurchaseOrderStatus `bun:"status,notnull" json:"status"`
	Priority             Priority            `bun:"priority,notnull" json:"priority"`
	OrderDate            time.Time           `bun:"order_date,notnull" json:"order_date"`
	ExpectedDeliveryDate *time.Time          `bun:"expected_delivery_date" json:"expected_delivery_date,omitempty"`
	ActualDeliveryDate   *time.Time          `bun:"actual_delivery_date" json:"actual_delivery_date,omitempty"`
	Subtotal             decimal.Decimal     `bun:"subtotal,type:numeric(14,2),notnull" json:"subtotal"`
	TaxAmount            decimal.Decimal     `bun:"tax_amount,type:numeric(14,2),notnull" json:"tax_amount"`
	ShippingCost         decimal.Decimal     `bun:"shipping_cost,type:numeric(14,2),notnull" json:"shipping_cost"`
	TotalAmount          decimal.Decimal     `bun:"total_amount,type:numeric(14,2),notnull" json:"total_amount"`
	Currency             string              `bun:"currency,notnull" json:"currency"`
	ShippingAddress      Address             `bun:"embed:shipping_" json:"shipping_address"`
	BillingAddress       Address             `bun:"embed:billing_" json:"billing_address"`
	Notes                string              `bun:"notes" json:"notes,omitempty"`
	CreatedBy            string              `bun:"created_by,notnull" json:"created_by"`
	ApprovedBy           string              `bun:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt           *time.Time          `bun:"approved_at" json:"approved_at,omitempty"`
	CreatedAt            time.Time           `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt            time.Time           `bun:"updated_at,notnull" json:"updated_at"`

	Items []PurchaseOrderItem `bun:"-" json:"items"`
}

// Column exposes filterable fields by column name.
func (o PurchaseOrder) Column(name string) (any, bool) {
	switch name {
	case "id":
		return o.ID, true
	case "po_number":
		return o.PONumber, true
	case "supplier_id":
		return o.SupplierID, true
	case "hospital_id":
		return o.HospitalID, true
	case "status":
		return string(o.Status), true
	case "priority":
		return string(o.Priority), true
	case "order_date":
		return o.OrderDate, true
	case "total_amount":
		return o.TotalAmount, true
	case "created_at":
		return o.CreatedAt, true
	case "updated_at":
		return o.UpdatedAt, true
	}
	return nil, false
}

// LineTotals returns the total price of every item.
func (o PurchaseOrder) LineTotals() []decimal.Decimal {
	totals := make([]decimal.Decimal, 0, len(o.Items))
	for _, item := range o.Items {
		totals = append(totals, item.TotalPrice)
	}
	return totals
}

// ApplyTotals overwrites the financial fields with derived values.
func (o *PurchaseOrder) ApplyTotals(t Totals) {
	o.Subtotal = t.Subtotal
	o.TaxAmount = t.TaxAmount
	o.ShippingCost = t.ShippingCost
	o.TotalAmount = t.TotalAmount
}

// TotalsConsistent reports whether the stored financial fields match the
// values derived from the items and shipping cost.
func (o PurchaseOrder) TotalsConsistent() bool {
	for _, item := range o.Items {
		if !item.TotalPrice.Equal(item.ExpectedTotal()) {
			return false
		}
	}
	want := ComputeTotals(o.LineTotals(), o.ShippingCost)
	return o.Subtotal.Equal(want.Subtotal) &&
		o.TaxAmount.Equal(want.TaxAmount) &&
		o.TotalAmount.Equal(o.Subtotal.Add(o.TaxAmount).Add(o.ShippingCost)) &&
		o.TotalAmount.Equal(want.TotalAmount)
}

// IsOverdue reports whether the expected delivery date has passed for an
// order that is still open.
func (o PurchaseOrder) IsOverdue(now time.Time) bool {
	if o.ExpectedDeliveryDate == nil || o.Status.IsTerminal() {
		return false
	}
	return o.ExpectedDeliveryDate.Before(now)
}

// PurchaseOrderItem is a single order line.
type PurchaseOrderItem struct {
	bun.BaseModel `bun:"table:purchase_order_items,alias:poi"`

	ID               string          `bun:"id,pk" json:"id"`
	PurchaseOrderID  string          `bun:"purchase_order_id,notnull" json:"purchase_order_id"`
	ItemName         string          `bun:"item_name,notnull" json:"item_name"`
	ItemDescription  string          `bun:"item_description" json:"item_description,omitempty"`
	ItemCode         string          `bun:"item_code" json:"item_code,omitempty"`
	Category         ItemCategory    `bun:"category,notnull" json:"category"`
	QuantityOrdered  int64           `bun:"quantity_ordered,notnull" json:"quantity_ordered"`
	QuantityReceived int64           `bun:"quantity_received,notnull" json:"quantity_received"`
	UnitOfMeasure    string          `bun:"unit_of_measure,notnull" json:"unit_of_measure"`
	UnitPrice        decimal.Decimal `bun:"unit_price,type:numeric(14,2),notnull" json:"unit_price"`
	TotalPrice       decimal.Decimal `bun:"total_price,type:numeric(14,2),notnull" json:"total_price"`
	Notes            string          `bun:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Column exposes filterable fields by column name.
func (i PurchaseOrderItem) Column(name string) (any, bool) {
	switch name {
	case "id":
		return i.ID, true
	case "purchase_order_id":
		return i.PurchaseOrderID, true
	case "category":
		return string(i.Category), true
	case "item_name":
		return i.ItemName, true
	case "created_at":
		return i.CreatedAt, true
	}
	return nil, false
}

// ExpectedTotal is quantity ordered times unit price at currency precision.
func (i PurchaseOrderItem) ExpectedTotal() decimal.Decimal {
	return RoundMoney(i.UnitPrice.Mul(decimal.NewFromInt(i.QuantityOrdered)))
}

// Outstanding is the quantity still to be received.
func (i PurchaseOrderItem) Outstanding() int64 {
	return i.QuantityOrdered - i.QuantityReceived
}
