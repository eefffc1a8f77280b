// Package validation checks transport forms with struct tags and reports
// failures as validation errors with per-field details.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"

	"github.com/furfield/procurement/pkg/errorbank"
)

// Module provides a shared Validator.
var Module = fx.Provide(New)

// FieldError is one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator wraps a configured validator.Validate.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator that names fields by their json tag and validates
// decimal amounts numerically.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	// Registration only fails for an empty tag or a nil func.
	_ = v.RegisterValidation("money", moneyPrecision)
	return &Validator{v: v}
}

// moneyPrecision accepts decimal amounts with at most two fractional digits.
// The custom type func hands validators a float64, so the original decimal is
// read back from the parent struct.
func moneyPrecision(fl validator.FieldLevel) bool {
	parent := fl.Parent()
	for parent.Kind() == reflect.Ptr {
		if parent.IsNil() {
			return true
		}
		parent = parent.Elem()
	}
	if parent.Kind() != reflect.Struct {
		return false
	}
	field := parent.FieldByName(fl.StructFieldName())
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return true
		}
		field = field.Elem()
	}
	d, ok := field.Interface().(decimal.Decimal)
	if !ok {
		return false
	}
	return d.Equal(d.Round(2))
}

// Struct validates s. entity names the record kind in the error details.
func (val *Validator) Struct(s any, entity string) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorbank.Validation("invalid "+entity, errorbank.WithCause(err), errorbank.WithEntity(entity, "", ""))
	}

	details := make([]FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, FieldError{Field: fieldPath(fe), Message: message(fe)})
	}
	return errorbank.Validation("invalid "+entity,
		errorbank.WithEntity(entity, "", ""),
		errorbank.WithDetail("fields", details),
	)
}

// fieldPath drops the top-level struct name from the namespace, e.g.
// "SupplierForm.address.city" becomes "address.city".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return "must contain at least " + fe.Param() + " entries"
		}
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "money":
		return "must have at most 2 decimal places"
	case "gtefield":
		return "must be greater than or equal to " + fieldName(fe.Param())
	case "ltefield":
		return "must be less than or equal to " + fieldName(fe.Param())
	default:
		return "is invalid"
	}
}

// fieldName turns a Go field name such as MinimumStock into minimum_stock.
func fieldName(goName string) string {
	var b strings.Builder
	for i, r := range goName {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
