package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// ActivityType names an entry in the procurement activity feed.
type ActivityType string

const (
	ActivityOrderCreated       ActivityType = "order_created"
	ActivityOrderStatusChanged ActivityType = "order_status_changed"
	ActivityOrderReceived      ActivityType = "order_received"
	ActivitySupplierAdded      ActivityType = "supplier_added"
)

// Activity is a persisted feed entry.
type Activity struct {
	bun.BaseModel `bun:"table:procurement_activities,alias:act"`

	ID          string       `bun:"id,pk" json:"id"`
	HospitalID  string       `bun:"hospital_id,notnull" json:"hospital_id"`
	Type        ActivityType `bun:"type,notnull" json:"type"`
	ReferenceID string       `bun:"reference_id,notnull" json:"reference_id"`
	Description string       `bun:"description,notnull" json:"description"`
	OccurredAt  time.Time    `bun:"occurred_at,notnull" json:"timestamp"`
}

// Column exposes filterable fields by column name.
func (a Activity) Column(name string) (any, bool) {
	switch name {
	case "id":
		return a.ID, true
	case "hospital_id":
		return a.HospitalID, true
	case "type":
		return string(a.Type), true
	case "reference_id":
		return a.ReferenceID, true
	case "occurred_at":
		return a.OccurredAt, true
	}
	return nil, false
}
