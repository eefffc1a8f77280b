package entity

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPurchaseOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    PurchaseOrderStatus
		to      PurchaseOrderStatus
		allowed bool
	}{
		{POStatusDraft, POStatusSent, true},
		{POStatusDraft, POStatusCancelled, true},
		{POStatusDraft, POStatusConfirmed, false},
		{POStatusDraft, POStatusDraft, false},
		{POStatusSent, POStatusConfirmed, true},
		{POStatusSent, POStatusDraft, false},
		{POStatusConfirmed, POStatusPartiallyReceived, true},
		{POStatusConfirmed, POStatusCompleted, true},
		{POStatusPartiallyReceived, POStatusCompleted, true},
		{POStatusPartiallyReceived, POStatusCancelled, true},
		{POStatusCompleted, POStatusCancelled, false},
		{POStatusCompleted, POStatusDraft, false},
		{POStatusCancelled, POStatusDraft, false},
		{POStatusCancelled, POStatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPurchaseOrderStatus_Classification(t *testing.T) {
	assert.True(t, POStatusConfirmed.IsPending())
	assert.False(t, POStatusPartiallyReceived.IsPending())
	assert.True(t, POStatusCancelled.IsTerminal())
	assert.False(t, PurchaseOrderStatus("archived").IsValid())
}

func TestComputeTotals(t *testing.T) {
	items := []PurchaseOrderItem{
		{QuantityOrdered: 2, UnitPrice: dec("10.00")},
		{QuantityOrdered: 1, UnitPrice: dec("5.00")},
	}
	var lines []decimal.Decimal
	for _, item := range items {
		lines = append(lines, item.ExpectedTotal())
	}

	totals := ComputeTotals(lines, dec("3.00"))

	assert.True(t, dec("25.00").Equal(totals.Subtotal))
	assert.True(t, dec("2.00").Equal(totals.TaxAmount))
	assert.True(t, dec("30.00").Equal(totals.TotalAmount))
}

func TestComputeTotals_RoundsTax(t *testing.T) {
	totals := ComputeTotals([]decimal.Decimal{dec("12.34")}, decimal.Zero)

	assert.Equal(t, "0.99", totals.TaxAmount.StringFixed(2))
	assert.Equal(t, "13.33", totals.TotalAmount.StringFixed(2))
}

func TestPurchaseOrder_TotalsConsistent(t *testing.T) {
	order := PurchaseOrder{
		ShippingCost: dec("3.00"),
		Items: []PurchaseOrderItem{
			{QuantityOrdered: 2, UnitPrice: dec("10.00"), TotalPrice: dec("20.00")},
			{QuantityOrdered: 1, UnitPrice: dec("5.00"), TotalPrice: dec("5.00")},
		},
	}
	order.ApplyTotals(ComputeTotals(order.LineTotals(), order.ShippingCost))
	assert.True(t, order.TotalsConsistent())

	order.TotalAmount = dec("31.00")
	assert.False(t, order.TotalsConsistent())

	order.ApplyTotals(ComputeTotals(order.LineTotals(), order.ShippingCost))
	order.Items[0].TotalPrice = dec("19.00")
	assert.False(t, order.TotalsConsistent())
}

func TestPurchaseOrder_IsOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name     string
		order    PurchaseOrder
		expected bool
	}{
		{"no expected date", PurchaseOrder{Status: POStatusSent}, false},
		{"past and open", PurchaseOrder{Status: POStatusSent, ExpectedDeliveryDate: &past}, true},
		{"past and partially received", PurchaseOrder{Status: POStatusPartiallyReceived, ExpectedDeliveryDate: &past}, true},
		{"past but completed", PurchaseOrder{Status: POStatusCompleted, ExpectedDeliveryDate: &past}, false},
		{"past but cancelled", PurchaseOrder{Status: POStatusCancelled, ExpectedDeliveryDate: &past}, false},
		{"future", PurchaseOrder{Status: POStatusConfirmed, ExpectedDeliveryDate: &future}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.order.IsOverdue(now))
		})
	}
}

func TestInventoryItem_IsLowStock(t *testing.T) {
	tests := []struct {
		name     string
		item     InventoryItem
		expected bool
	}{
		{"below minimum", InventoryItem{CurrentStock: 2, MinimumStock: 5, Status: InventoryStatusActive}, true},
		{"at minimum", InventoryItem{CurrentStock: 5, MinimumStock: 5, Status: InventoryStatusActive}, true},
		{"above minimum", InventoryItem{CurrentStock: 6, MinimumStock: 5, Status: InventoryStatusActive}, false},
		{"discontinued", InventoryItem{CurrentStock: 0, MinimumStock: 5, Status: InventoryStatusDiscontinued}, false},
		{"out of stock status", InventoryItem{CurrentStock: 0, MinimumStock: 5, Status: InventoryStatusOutOfStock}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.item.IsLowStock())
		})
	}
}

func TestRFQStatus_CanTransitionTo(t *testing.T) {
	assert.True(t, RFQStatusDraft.CanTransitionTo(RFQStatusSent))
	assert.True(t, RFQStatusSent.CanTransitionTo(RFQStatusRejected))
	assert.True(t, RFQStatusEvaluated.CanTransitionTo(RFQStatusAccepted))
	assert.False(t, RFQStatusDraft.CanTransitionTo(RFQStatusAccepted))
	assert.False(t, RFQStatusAccepted.CanTransitionTo(RFQStatusRejected))
}

func TestOverallOf(t *testing.T) {
	assert.Equal(t, "7.8", OverallOf(8, 7, 9, 7).StringFixed(1))
	assert.Equal(t, "10.0", OverallOf(10, 10, 10, 10).StringFixed(1))
}
