package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// RFQStatus is a lifecycle state of a request for quote.
type RFQStatus string

const (
	RFQStatusDraft     RFQStatus = "draft"
	RFQStatusSent      RFQStatus = "sent"
	RFQStatusReceived  RFQStatus = "received"
	RFQStatusEvaluated RFQStatus = "evaluated"
	RFQStatusAccepted  RFQStatus = "accepted"
	RFQStatusRejected  RFQStatus = "rejected"
)

var rfqTransitions = map[RFQStatus][]RFQStatus{
	RFQStatusDraft:     {RFQStatusSent},
	RFQStatusSent:      {RFQStatusReceived, RFQStatusRejected},
	RFQStatusReceived:  {RFQStatusEvaluated, RFQStatusAccepted, RFQStatusRejected},
	RFQStatusEvaluated: {RFQStatusAccepted, RFQStatusRejected},
	RFQStatusAccepted:  {},
	RFQStatusRejected:  {},
}

// IsValid checks if the status is known.
func (s RFQStatus) IsValid() bool {
	_, ok := rfqTransitions[s]
	return ok
}

// CanTransitionTo checks if a transition to the target status is allowed.
func (s RFQStatus) CanTransitionTo(target RFQStatus) bool {
	for _, allowed := range rfqTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AcceptsQuotes reports whether suppliers may still submit quotes.
func (s RFQStatus) AcceptsQuotes() bool {
	return s == RFQStatusSent || s == RFQStatusReceived
}

// RFQItem is a requested line on an RFQ.
type RFQItem struct {
	ID             string `json:"id"`
	ItemName       string `json:"item_name"`
	Description    string `json:"description"`
	Quantity       int64  `json:"quantity"`
	UnitOfMeasure  string `json:"unit_of_measure"`
	Specifications string `json:"specifications,omitempty"`
}

// RequestForQuote invites suppliers to price a list of items.
type RequestForQuote struct {
	bun.BaseModel `bun:"table:rfqs,alias:rfq"`

	ID          string    `bun:"id,pk" json:"id"`
	RFQNumber   string    `bun:"rfq_number,notnull" json:"rfq_number"`
	HospitalID  string    `bun:"hospital_id,notnull" json:"hospital_id"`
	Title       string    `bun:"title,notnull" json:"title"`
	Description string    `bun:"description" json:"description"`
	Status      RFQStatus `bun:"status,notnull" json:"status"`
	DueDate     time.Time `bun:"due_date,notnull" json:"due_date"`
	SupplierIDs []string  `bun:"supplier_ids" json:"supplier_ids"`
	Items       []RFQItem `bun:"items" json:"items"`
	CreatedBy   string    `bun:"created_by,notnull" json:"created_by"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

// Column exposes filterable fields by column name.
func (r RequestForQuote) Column(name string) (any, bool) {
	switch name {
	case "id":
		return r.ID, true
	case "rfq_number":
		return r.RFQNumber, true
	case "hospital_id":
		return r.HospitalID, true
	case "status":
		return string(r.Status), true
	case "due_date":
		return r.DueDate, true
	case "created_at":
		return r.CreatedAt, true
	}
	return nil, false
}

// Invited reports whether the supplier was asked to quote.
func (r RequestForQuote) Invited(supplierID string) bool {
	for _, id := range r.SupplierIDs {
		if id == supplierID {
			return true
		}
	}
	return false
}

// Item returns the RFQ line with the given id.
func (r RequestForQuote) Item(id string) (RFQItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return RFQItem{}, false
}

// QuoteStatus is a lifecycle state of a supplier quote.
type QuoteStatus string

const (
	QuoteStatusDraft     QuoteStatus = "draft"
	QuoteStatusSubmitted QuoteStatus = "submitted"
	QuoteStatusAccepted  QuoteStatus = "accepted"
	QuoteStatusRejected  QuoteStatus = "rejected"
)

// QuoteItem prices one RFQ line.
type QuoteItem struct {
	ID           string          `json:"id"`
	RFQItemID    string          `json:"rfq_item_id"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	DeliveryTime string          `json:"delivery_time"`
	Notes        string          `json:"notes,omitempty"`
}

// Quote is a supplier's answer to an RFQ.
type Quote struct {
	bun.BaseModel `bun:"table:quotes,alias:q"`

	ID            string          `bun:"id,pk" json:"id"`
	RFQID         string          `bun:"rfq_id,notnull" json:"rfq_id"`
	SupplierID    string          `bun:"supplier_id,notnull" json:"supplier_id"`
	HospitalID    string          `bun:"hospital_id,notnull" json:"hospital_id"`
	QuoteNumber   string          `bun:"quote_number,notnull" json:"quote_number"`
	TotalAmount   decimal.Decimal `bun:"total_amount,type:numeric(14,2),notnull" json:"total_amount"`
	Currency      string          `bun:"currency,notnull" json:"currency"`
	ValidityDate  time.Time       `bun:"validity_date,notnull" json:"validity_date"`
	PaymentTerms  PaymentTerms    `bun:"payment_terms,notnull" json:"payment_terms"`
	DeliveryTerms string          `bun:"delivery_terms" json:"delivery_terms"`
	Notes         string          `bun:"notes" json:"notes,omitempty"`
	Status        QuoteStatus     `bun:"status,notnull" json:"status"`
	Items         []QuoteItem     `bun:"items" json:"items"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Column exposes filterable fields by column name.
func (q Quote) Column(name string) (any, bool) {
	switch name {
	case "id":
		return q.ID, true
	case "rfq_id":
		return q.RFQID, true
	case "supplier_id":
		return q.SupplierID, true
	case "hospital_id":
		return q.HospitalID, true
	case "status":
		return string(q.Status), true
	case "total_amount":
		return q.TotalAmount, true
	case "created_at":
		return q.CreatedAt, true
	}
	return nil, false
}
