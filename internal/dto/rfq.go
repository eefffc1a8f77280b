package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// RFQItemForm is one line suppliers are asked to price.
type RFQItemForm struct {
	ItemName       string `json:"item_name" validate:"required"`
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity" validate:"gte=1"`
	UnitOfMeasure  string `json:"unit_of_measure" validate:"required"`
	Specifications string `json:"specifications"`
}

// RFQForm creates a request for quote.
type RFQForm struct {
	Title       string        `json:"title" validate:"required,max=200"`
	Description string        `json:"description"`
	DueDate     time.Time     `json:"due_date" validate:"required"`
	SupplierIDs []string      `json:"supplier_ids" validate:"required,min=1,dive,required"`
	Items       []RFQItemForm `json:"items" validate:"required,min=1,dive"`
}

// QuoteItemForm prices one RFQ line.
type QuoteItemForm struct {
	RFQItemID    string          `json:"rfq_item_id" validate:"required"`
	UnitPrice    decimal.Decimal `json:"unit_price" validate:"gte=0,money"`
	DeliveryTime string          `json:"delivery_time" validate:"required"`
	Notes        string          `json:"notes"`
}

// QuoteForm is a supplier's answer to an RFQ.
type QuoteForm struct {
	SupplierID    string          `json:"supplier_id" validate:"required"`
	QuoteNumber   string          `json:"quote_number"`
	Currency      string          `json:"currency" validate:"omitempty,len=3"`
	ValidityDate  time.Time       `json:"validity_date" validate:"required"`
	PaymentTerms  string          `json:"payment_terms" validate:"required,oneof=due_on_receipt net_15 net_30 net_45 net_60"`
	DeliveryTerms string          `json:"delivery_terms"`
	Notes         string          `json:"notes"`
	Items         []QuoteItemForm `json:"items" validate:"required,min=1,dive"`
}

// PerformanceForm records one supplier evaluation.
type PerformanceForm struct {
	PeriodStart        time.Time `json:"evaluation_period_start" validate:"required"`
	PeriodEnd          time.Time `json:"evaluation_period_end" validate:"required,gtefield=PeriodStart"`
	DeliveryScore      int       `json:"delivery_score" validate:"min=1,max=10"`
	QualityScore       int       `json:"quality_score" validate:"min=1,max=10"`
	PricingScore       int       `json:"pricing_score" validate:"min=1,max=10"`
	CommunicationScore int       `json:"communication_score" validate:"min=1,max=10"`
	TotalOrders        int64     `json:"total_orders" validate:"gte=0"`
	OnTimeDeliveries   int64     `json:"on_time_deliveries" validate:"gte=0,ltefield=TotalOrders"`
	QualityIssues      int64     `json:"quality_issues" validate:"gte=0"`
	Notes              string    `json:"notes"`
}
