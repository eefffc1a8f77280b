package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// VendorPerformance is one periodic evaluation of a supplier.
type VendorPerformance struct {
	bun.BaseModel `bun:"table:vendor_performance,alias:vp"`

	ID                 string          `bun:"id,pk" json:"id"`
	SupplierID         string          `bun:"supplier_id,notnull" json:"supplier_id"`
	HospitalID         string          `bun:"hospital_id,notnull" json:"hospital_id"`
	PeriodStart        time.Time       `bun:"period_start,notnull" json:"evaluation_period_start"`
	PeriodEnd          time.Time       `bun:"period_end,notnull" json:"evaluation_period_end"`
	DeliveryScore      int             `bun:"delivery_score,notnull" json:"delivery_score"`
	QualityScore       int             `bun:"quality_score,notnull" json:"quality_score"`
	PricingScore       int             `bun:"pricing_score,notnull" json:"pricing_score"`
	CommunicationScore int             `bun:"communication_score,notnull" json:"communication_score"`
	OverallScore       decimal.Decimal `bun:"overall_score,type:numeric(4,1),notnull" json:"overall_score"`
	TotalOrders        int64           `bun:"total_orders,notnull" json:"total_orders"`
	OnTimeDeliveries   int64           `bun:"on_time_deliveries,notnull" json:"on_time_deliveries"`
	QualityIssues      int64           `bun:"quality_issues,notnull" json:"quality_issues"`
	Notes              string          `bun:"notes" json:"notes,omitempty"`
	EvaluatedBy        string          `bun:"evaluated_by,notnull" json:"evaluated_by"`
	CreatedAt          time.Time       `bun:"created_at,notnull" json:"created_at"`
}

// Column exposes filterable fields by column name.
func (v VendorPerformance) Column(name string) (any, bool) {
	switch name {
	case "id":
		return v.ID, true
	case "supplier_id":
		return v.SupplierID, true
	case "hospital_id":
		return v.HospitalID, true
	case "period_end":
		return v.PeriodEnd, true
	case "created_at":
		return v.CreatedAt, true
	}
	return nil, false
}

// OverallOf averages the four scores to one decimal place.
func OverallOf(delivery, quality, pricing, communication int) decimal.Decimal {
	sum := decimal.NewFromInt(int64(delivery + quality + pricing + communication))
	return sum.Div(decimal.NewFromInt(4)).Round(1)
}
