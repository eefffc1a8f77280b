package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/furfield/procurement/pkg/errorbank"
)

type lineForm struct {
	Name      string          `json:"item_name" validate:"required"`
	Quantity  int64           `json:"quantity_ordered" validate:"gte=1"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

type orderForm struct {
	SupplierID string     `json:"supplier_id" validate:"required"`
	Email      string     `json:"email" validate:"omitempty,email"`
	Priority   string     `json:"priority" validate:"required,oneof=low medium high urgent"`
	Items      []lineForm `json:"items" validate:"min=1,dive"`
}

func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	require.True(t, errorbank.IsKind(err, errorbank.KindValidation))
	details := errorbank.From(err).Details()
	out := map[string]string{}
	for _, fe := range details["fields"].([]FieldError) {
		out[fe.Field] = fe.Message
	}
	return out
}

func TestStruct_Valid(t *testing.T) {
	v := New()
	err := v.Struct(orderForm{
		SupplierID: "s1",
		Priority:   "high",
		Items:      []lineForm{{Name: "Gauze", Quantity: 2, UnitPrice: decimal.RequireFromString("0.00")}},
	}, "purchase_order")
	assert.NoError(t, err)
}

func TestStruct_ReportsFieldPaths(t *testing.T) {
	v := New()
	err := v.Struct(orderForm{
		Email:    "not-an-email",
		Priority: "whenever",
		Items:    []lineForm{{Name: "", Quantity: 0, UnitPrice: decimal.RequireFromString("-1")}},
	}, "purchase_order")

	got := fields(t, err)
	assert.Equal(t, "is required", got["supplier_id"])
	assert.Equal(t, "must be a valid email address", got["email"])
	assert.Equal(t, "must be one of: low medium high urgent", got["priority"])
	assert.Equal(t, "is required", got["items[0].item_name"])
	assert.Equal(t, "must be greater than or equal to 1", got["items[0].quantity_ordered"])
	assert.Equal(t, "must be greater than or equal to 0", got["items[0].unit_price"])
	assert.Equal(t, "purchase_order", errorbank.From(err).Details()["entity"])
}

func TestStruct_EmptyItems(t *testing.T) {
	err := New().Struct(orderForm{SupplierID: "s1", Priority: "low"}, "purchase_order")
	assert.Equal(t, "must contain at least 1 entries", fields(t, err)["items"])
}

type amountForm struct {
	Price    decimal.Decimal  `json:"price" validate:"gte=0,money"`
	Shipping *decimal.Decimal `json:"shipping" validate:"omitempty,gte=0,money"`
}

func TestStruct_MoneyPrecision(t *testing.T) {
	d := decimal.RequireFromString
	ptr := func(v string) *decimal.Decimal {
		x := d(v)
		return &x
	}

	tests := []struct {
		name  string
		form  amountForm
		field string
	}{
		{"whole amount", amountForm{Price: d("100")}, ""},
		{"cents", amountForm{Price: d("12.50"), Shipping: ptr("3.05")}, ""},
		{"trailing zeros", amountForm{Price: d("1.2500")}, ""},
		{"sub-cent price", amountForm{Price: d("0.125")}, "price"},
		{"sub-cent shipping", amountForm{Price: d("1"), Shipping: ptr("3.333")}, "shipping"},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.form, "purchase_order")
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, "must have at most 2 decimal places", fields(t, err)[tt.field])
		})
	}
}
