package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// PaymentTerms is the agreed settlement window with a supplier.
type PaymentTerms string

const (
	PaymentTermsDueOnReceipt PaymentTerms = "due_on_receipt"
	PaymentTermsNet15        PaymentTerms = "net_15"
	PaymentTermsNet30        PaymentTerms = "net_30"
	PaymentTermsNet45        PaymentTerms = "net_45"
	PaymentTermsNet60        PaymentTerms = "net_60"
)

// SupplierType classifies what a supplier provides.
type SupplierType string

const (
	SupplierTypeMedication SupplierType = "medication"
	SupplierTypeEquipment  SupplierType = "equipment"
	SupplierTypeSupplies   SupplierType = "supplies"
	SupplierTypeFood       SupplierType = "food"
	SupplierTypeLaboratory SupplierType = "laboratory"
	SupplierTypeOther      SupplierType = "other"
)

// IsValid checks if the type is a known SupplierType.
func (t SupplierType) IsValid() bool {
	switch t {
	case SupplierTypeMedication, SupplierTypeEquipment, SupplierTypeSupplies,
		SupplierTypeFood, SupplierTypeLaboratory, SupplierTypeOther:
		return true
	}
	return false
}

// SupplierStatus is the lifecycle state of a supplier record.
type SupplierStatus string

const (
	SupplierStatusActive   SupplierStatus = "active"
	SupplierStatusInactive SupplierStatus = "inactive"
	SupplierStatusPending  SupplierStatus = "pending"
)

// Supplier is a vendor a hospital buys from.
type Supplier struct {
	bun.BaseModel `bun:"table:suppliers,alias:sup"`

	ID            string         `bun:"id,pk" json:"id"`
	HospitalID    string         `bun:"hospital_id,notnull" json:"hospital_id"`
	Name          string         `bun:"name,notnull" json:"name"`
	Email         string         `bun:"email,notnull" json:"email"`
	Phone         string         `bun:"phone,notnull" json:"phone"`
	Address       Address        `bun:"embed:address_" json:"address"`
	ContactPerson string         `bun:"contact_person,notnull" json:"contact_person"`
	TaxID         string         `bun:"tax_id" json:"tax_id,omitempty"`
	PaymentTerms  PaymentTerms   `bun:"payment_terms,notnull" json:"payment_terms"`
	SupplierType  SupplierType   `bun:"supplier_type,notnull" json:"supplier_type"`
	Status        SupplierStatus `bun:"status,notnull" json:"status"`
	Notes         string         `bun:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// Column exposes filterable fields by column name.
func (s Supplier) Column(name string) (any, bool) {
	switch name {
	case "id":
		return s.ID, true
	case "hospital_id":
		return s.HospitalID, true
	case "name":
		return s.Name, true
	case "email":
		return s.Email, true
	case "supplier_type":
		return string(s.SupplierType), true
	case "status":
		return string(s.Status), true
	case "created_at":
		return s.CreatedAt, true
	case "updated_at":
		return s.UpdatedAt, true
	}
	return nil, false
}
