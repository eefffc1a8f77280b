package seeder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/furfield/procurement/internal/entity"
)

var seedNamespace = uuid.MustParse("5b0f6a8e-64c1-4a61-9d2b-8f0d7c0e9a31")

// fixtureID derives a stable id so reseeding a tenant finds its own rows.
func fixtureID(hospitalID, kind, key string) string {
	return uuid.NewSHA1(seedNamespace, []byte(hospitalID+"/"+kind+"/"+key)).String()
}

func at(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

// Fixtures is the demo data set written for one hospital.
type Fixtures struct {
	Suppliers  []entity.Supplier
	Orders     []entity.PurchaseOrder
	Inventory  []entity.InventoryItem
	Activities []entity.Activity
}

// Build returns the demo data set for hospitalID. Order totals are derived
// from the line items the same way the purchase order service derives them.
func Build(hospitalID string, address entity.Address, currency string) Fixtures {
	vetMed := fixtureID(hospitalID, "supplier", "vetmed")
	petEquipment := fixtureID(hospitalID, "supplier", "pet-equipment")
	animalFoods := fixtureID(hospitalID, "supplier", "animal-foods")

	suppliers := []entity.Supplier{
		{
			ID:            vetMed,
			HospitalID:    hospitalID,
			Name:          "VetMed Supplies Inc.",
			Email:         "orders@vetmedsupplies.com",
			Phone:         "(555) 123-4567",
			Address:       entity.Address{Street: "123 Medical Drive", City: "Veterinary City", State: "CA", Zip: "90210", Country: "US"},
			ContactPerson: "John Smith",
			TaxID:         "12-3456789",
			PaymentTerms:  entity.PaymentTermsNet30,
			SupplierType:  entity.SupplierTypeMedication,
			Status:        entity.SupplierStatusActive,
			Notes:         "Primary medication supplier with 24/7 emergency services",
			CreatedAt:     at("2024-01-15T10:00:00Z"),
			UpdatedAt:     at("2024-01-15T10:00:00Z"),
		},
		{
			ID:            petEquipment,
			HospitalID:    hospitalID,
			Name:          "Pet Equipment Co.",
			Email:         "sales@petequipment.com",
			Phone:         "(555) 987-6543",
			Address:       entity.Address{Street: "456 Equipment Blvd", City: "Tech Town", State: "TX", Zip: "75001", Country: "US"},
			ContactPerson: "Sarah Johnson",
			PaymentTerms:  entity.PaymentTermsNet15,
			SupplierType:  entity.SupplierTypeEquipment,
			Status:        entity.SupplierStatusActive,
			CreatedAt:     at("2024-02-01T10:00:00Z"),
			UpdatedAt:     at("2024-02-01T10:00:00Z"),
		},
		{
			ID:            animalFoods,
			HospitalID:    hospitalID,
			Name:          "Animal Foods Direct",
			Email:         "info@animalfoodsdirect.com",
			Phone:         "(555) 456-7890",
			Address:       entity.Address{Street: "789 Nutrition Way", City: "Food Valley", State: "OR", Zip: "97001", Country: "US"},
			ContactPerson: "Mike Wilson",
			PaymentTerms:  entity.PaymentTermsNet30,
			SupplierType:  entity.SupplierTypeFood,
			Status:        entity.SupplierStatusActive,
			CreatedAt:     at("2024-01-20T10:00:00Z"),
			UpdatedAt:     at("2024-01-20T10:00:00Z"),
		},
	}

	surgical := newOrder(hospitalID, "PO-202410001", vetMed, address, currency, at("2024-10-20T10:00:00Z"))
	surgical.Status = entity.POStatusConfirmed
	surgical.Priority = entity.PriorityHigh
	surgical.ExpectedDeliveryDate = ptr(at("2024-10-25T10:00:00Z"))
	surgical.Notes = "Urgent order for surgical supplies"
	surgical.Items = []entity.PurchaseOrderItem{
		line(surgical, "gloves", "Surgical Gloves", "GLV-M", entity.CategoryMedicalSupplies, 50, "boxes", "12.00"),
		line(surgical, "amoxicillin", "Antibiotics - Amoxicillin", "AMX-500", entity.CategoryMedication, 25, "bottles", "26.00"),
	}
	surgical.ApplyTotals(entity.ComputeTotals(surgical.LineTotals(), money("50")))

	equipment := newOrder(hospitalID, "PO-202410002", petEquipment, address, currency, at("2024-10-22T10:00:00Z"))
	equipment.Status = entity.POStatusDraft
	equipment.Priority = entity.PriorityMedium
	equipment.ExpectedDeliveryDate = ptr(at("2024-10-30T10:00:00Z"))
	equipment.Items = []entity.PurchaseOrderItem{
		line(equipment, "thermometer", "Digital Thermometer", "THM-D", entity.CategoryEquipment, 10, "units", "85.00"),
	}
	equipment.ApplyTotals(entity.ComputeTotals(equipment.LineTotals(), money("25")))

	inventory := []entity.InventoryItem{
		{
			ID:             fixtureID(hospitalID, "inventory", "AMX-500"),
			HospitalID:     hospitalID,
			Name:           "Antibiotics - Amoxicillin",
			Description:    "500mg tablets",
			ItemCode:       "AMX-500",
			Category:       entity.CategoryMedication,
			CurrentStock:   15,
			MinimumStock:   50,
			MaximumStock:   200,
			UnitOfMeasure:  "bottles",
			UnitCost:       money("25.50"),
			Location:       "Pharmacy",
			ExpirationDate: ptr(at("2025-06-15T00:00:00Z")),
			LotNumber:      "LOT12345",
			SupplierID:     vetMed,
			Status:         entity.InventoryStatusActive,
			CreatedAt:      at("2024-01-15T10:00:00Z"),
			UpdatedAt:      at("2024-10-23T10:00:00Z"),
		},
		{
			ID:            fixtureID(hospitalID, "inventory", "GLV-M"),
			HospitalID:    hospitalID,
			Name:          "Surgical Gloves",
			Description:   "Latex-free surgical gloves, size M",
			ItemCode:      "GLV-M",
			Category:      entity.CategoryMedicalSupplies,
			CurrentStock:  5,
			MinimumStock:  20,
			MaximumStock:  100,
			UnitOfMeasure: "boxes",
			UnitCost:      money("12.00"),
			Location:      "Supply Room",
			SupplierID:    vetMed,
			Status:        entity.InventoryStatusActive,
			CreatedAt:     at("2024-02-01T10:00:00Z"),
			UpdatedAt:     at("2024-10-23T10:00:00Z"),
		},
		{
			ID:            fixtureID(hospitalID, "inventory", "XRF-1417"),
			HospitalID:    hospitalID,
			Name:          "X-Ray Film",
			Description:   "14x17 inch X-ray film",
			ItemCode:      "XRF-1417",
			Category:      entity.CategoryMedicalSupplies,
			CurrentStock:  8,
			MinimumStock:  25,
			MaximumStock:  75,
			UnitOfMeasure: "boxes",
			UnitCost:      money("45.00"),
			Location:      "Radiology",
			SupplierID:    petEquipment,
			Status:        entity.InventoryStatusActive,
			CreatedAt:     at("2024-01-20T10:00:00Z"),
			UpdatedAt:     at("2024-10-23T10:00:00Z"),
		},
	}

	orders := []entity.PurchaseOrder{surgical, equipment}
	activities := make([]entity.Activity, 0, len(suppliers)+len(orders))
	for _, sup := range suppliers {
		activities = append(activities, entity.Activity{
			ID:          fixtureID(hospitalID, "activity", sup.ID),
			HospitalID:  hospitalID,
			Type:        entity.ActivitySupplierAdded,
			ReferenceID: sup.ID,
			Description: "New supplier added: " + sup.Name,
			OccurredAt:  sup.CreatedAt,
		})
	}
	for _, po := range orders {
		activities = append(activities, entity.Activity{
			ID:          fixtureID(hospitalID, "activity", po.ID),
			HospitalID:  hospitalID,
			Type:        entity.ActivityOrderCreated,
			ReferenceID: po.ID,
			Description: "Purchase Order " + po.PONumber + " created",
			OccurredAt:  po.CreatedAt,
		})
	}

	return Fixtures{Suppliers: suppliers, Orders: orders, Inventory: inventory, Activities: activities}
}

func newOrder(hospitalID, number, supplierID string, address entity.Address, currency string, placed time.Time) entity.PurchaseOrder {
	return entity.PurchaseOrder{
		ID:              fixtureID(hospitalID, "purchase_order", number),
		PONumber:        number,
		SupplierID:      supplierID,
		HospitalID:      hospitalID,
		OrderDate:       placed,
		Currency:        currency,
		ShippingAddress: address,
		BillingAddress:  address,
		CreatedBy:       "mock-user-id",
		CreatedAt:       placed,
		UpdatedAt:       placed,
	}
}

func line(po entity.PurchaseOrder, key, name, code string, category entity.ItemCategory, qty int64, unit, price string) entity.PurchaseOrderItem {
	unitPrice := money(price)
	return entity.PurchaseOrderItem{
		ID:              fixtureID(po.HospitalID, "purchase_order_item", po.PONumber+"/"+key),
		PurchaseOrderID: po.ID,
		ItemName:        name,
		ItemCode:        code,
		Category:        category,
		QuantityOrdered: qty,
		UnitOfMeasure:   unit,
		UnitPrice:       unitPrice,
		TotalPrice:      entity.RoundMoney(unitPrice.Mul(decimal.NewFromInt(qty))),
		CreatedAt:       po.CreatedAt,
		UpdatedAt:       po.CreatedAt,
	}
}
