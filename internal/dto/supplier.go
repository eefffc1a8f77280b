package dto

import "github.com/furfield/procurement/internal/entity"

// AddressForm is a postal address as submitted by clients.
type AddressForm struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// Entity converts the form to the stored address.
func (a AddressForm) Entity() entity.Address {
	return entity.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		Zip:     a.Zip,
		Country: a.Country,
	}
}

// SupplierForm creates a supplier.
type SupplierForm struct {
	Name          string      `json:"name" validate:"required,max=200"`
	Email         string      `json:"email" validate:"required,email"`
	Phone         string      `json:"phone" validate:"required"`
	Address       AddressForm `json:"address" validate:"required"`
	ContactPerson string      `json:"contact_person" validate:"required"`
	TaxID         string      `json:"tax_id"`
	PaymentTerms  string      `json:"payment_terms" validate:"required,oneof=due_on_receipt net_15 net_30 net_45 net_60"`
	SupplierType  string      `json:"supplier_type" validate:"required,oneof=medication equipment supplies food laboratory other"`
	Notes         string      `json:"notes"`
}

// SupplierPatch updates a supplier. Nil fields are left unchanged.
type SupplierPatch struct {
	Name          *string      `json:"name" validate:"omitempty,max=200"`
	Email         *string      `json:"email" validate:"omitempty,email"`
	Phone         *string      `json:"phone"`
	Address       *AddressForm `json:"address"`
	ContactPerson *string      `json:"contact_person"`
	TaxID         *string      `json:"tax_id"`
	PaymentTerms  *string      `json:"payment_terms" validate:"omitempty,oneof=due_on_receipt net_15 net_30 net_45 net_60"`
	SupplierType  *string      `json:"supplier_type" validate:"omitempty,oneof=medication equipment supplies food laboratory other"`
	Status        *string      `json:"status" validate:"omitempty,oneof=active inactive pending"`
	Notes         *string      `json:"notes"`
}
