package dto

import (
	"reflect"
	"strings"

	"currency-ledger/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency_code", validateCurrencyCode)
		_ = v.RegisterValidation("handle", validateHandle)
	}
}

// validateCurrencyCode accepts 3-4 letters in any case; codes are upper-cased
// by the catalog.
func validateCurrencyCode(fl validator.FieldLevel) bool {
	return domain.ValidCurrencyCode(domain.NormalizeCurrencyCode(fl.Field().String()))
}

func validateHandle(fl validator.FieldLevel) bool {
	return domain.ValidHandle(strings.TrimSpace(fl.Field().String()))
}

// SanitizeStruct trims whitespace from every exported string field
// (including *string and named string types) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(strings.TrimSpace(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(strings.TrimSpace(elem.String()))
			}
		}
	}
}
