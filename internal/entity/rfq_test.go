package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRFQStatus_CanTransitionTo_Table(t *testing.T) {
	tests := []struct {
		from, to RFQStatus
		want     bool
	}{
		{RFQStatusDraft, RFQStatusSent, true},
		{RFQStatusDraft, RFQStatusAccepted, false},
		{RFQStatusSent, RFQStatusReceived, true},
		{RFQStatusReceived, RFQStatusAccepted, true},
		{RFQStatusEvaluated, RFQStatusAccepted, true},
		{RFQStatusEvaluated, RFQStatusSent, false},
		{RFQStatusAccepted, RFQStatusRejected, false},
		{RFQStatusRejected, RFQStatusDraft, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRFQStatus_AcceptsQuotes(t *testing.T) {
	assert.True(t, RFQStatusSent.AcceptsQuotes())
	assert.True(t, RFQStatusReceived.AcceptsQuotes())
	assert.False(t, RFQStatusDraft.AcceptsQuotes())
	assert.False(t, RFQStatusAccepted.AcceptsQuotes())
	assert.False(t, RFQStatus("closed").IsValid())
}

func TestRequestForQuote_Lookup(t *testing.T) {
	rfq := RequestForQuote{
		SupplierIDs: []string{"s-1", "s-2"},
		Items:       []RFQItem{{ID: "i-1", ItemName: "Gauze", Quantity: 10}},
	}

	assert.True(t, rfq.Invited("s-2"))
	assert.False(t, rfq.Invited("s-9"))

	item, ok := rfq.Item("i-1")
	assert.True(t, ok)
	assert.Equal(t, "Gauze", item.ItemName)

	_, ok = rfq.Item("i-2")
	assert.False(t, ok)
}

func TestOverallOf_RFQ(t *testing.T) {
	assert.Equal(t, "8.3", OverallOf(9, 8, 7, 9).StringFixed(1))
	assert.Equal(t, "10.0", OverallOf(10, 10, 10, 10).StringFixed(1))
	assert.Equal(t, "1.8", OverallOf(1, 2, 2, 2).StringFixed(1))
}

func TestInventoryItem_IsLowStock_RFQ(t *testing.T) {
	item := InventoryItem{Status: InventoryStatusActive, CurrentStock: 20, MinimumStock: 20}
	assert.True(t, item.IsLowStock())

	item.CurrentStock = 21
	assert.False(t, item.IsLowStock())

	item.CurrentStock = 0
	item.Status = InventoryStatusDiscontinued
	assert.False(t, item.IsLowStock())
}
